package kafka

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/points-ledger/internal/config"
	"github.com/points-ledger/internal/domain"
)

func TestDecodeSubmission(t *testing.T) {
	sub, err := DecodeSubmission([]byte(`{"identity":"0xA","game_type":"snake","score":12,"points":3,"metadata":{"k":"v"}}`))
	require.NoError(t, err)
	assert.Equal(t, "0xA", sub.Identity)
	assert.Equal(t, "snake", sub.GameType)
	assert.Equal(t, 12.0, sub.Score)
	assert.Equal(t, 3.0, sub.Points)
	assert.JSONEq(t, `{"k":"v"}`, string(sub.Metadata))

	_, err = DecodeSubmission([]byte(`{"identity":" ","game_type":"snake"}`))
	assert.Error(t, err)
	_, err = DecodeSubmission([]byte(`{"identity":"0xa"}`))
	assert.Error(t, err)
	_, err = DecodeSubmission([]byte(`not json`))
	assert.Error(t, err)
}

type batchRecorder struct {
	mu      sync.Mutex
	batches [][]domain.IdentifiedSubmission
}

func (r *batchRecorder) SubmitScoreBatch(_ context.Context, batch []domain.IdentifiedSubmission) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, append([]domain.IdentifiedSubmission(nil), batch...))
	return len(batch), nil
}

type fakeSession struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32 { return nil }
func (s *fakeSession) MemberID() string { return "test" }
func (s *fakeSession) GenerationID() int32 { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string) {}
func (s *fakeSession) Commit() {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Context() context.Context { return s.ctx }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string { return "score-submissions" }
func (c *fakeClaim) Partition() int32 { return 0 }
func (c *fakeClaim) InitialOffset() int64 { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64 { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func TestConsumeClaim_BatchesValidMessages(t *testing.T) {
	recorder := &batchRecorder{}
	consumer := &Consumer{
		config:  &config.KafkaConfig{BatchSize: 2, BatchTimeout: time.Hour},
		handler: recorder,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	handler := &consumerGroupHandler{consumer: consumer, ready: make(chan bool)}

	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 4)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 1, Value: []byte(`{"identity":"0xa","game_type":"snake","score":1,"points":1}`)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 2, Value: []byte(`garbage`)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 3, Value: []byte(`{"identity":"0xb","game_type":"snake","score":2,"points":2}`)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 4, Value: []byte(`{"identity":"0xc","game_type":"snake","score":3,"points":3}`)}
	close(claim.messages)

	session := &fakeSession{ctx: context.Background()}
	require.NoError(t, handler.ConsumeClaim(session, claim))

	require.Len(t, recorder.batches, 2)
	assert.Len(t, recorder.batches[0], 2)
	assert.Equal(t, "0xa", recorder.batches[0][0].Identity)
	assert.Equal(t, "0xb", recorder.batches[0][1].Identity)
	require.Len(t, recorder.batches[1], 1, "the remainder is flushed when the claim ends")
	assert.Equal(t, "0xc", recorder.batches[1][0].Identity)
	assert.Equal(t, []int64{1, 2, 3, 4}, session.marked)
}
