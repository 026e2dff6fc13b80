package kafka

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/points-ledger/internal/domain"
)

// ScoreMessage is one play result as carried on the submissions topic. The key is the identity.
type ScoreMessage struct {
	Identity string          `json:"identity"`
	GameType string          `json:"game_type"`
	Score    float64         `json:"score"`
	Points   float64         `json:"points"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// DecodeSubmission parses a message value. Fields are validated by the service.
func DecodeSubmission(value []byte) (domain.IdentifiedSubmission, error) {
	var msg ScoreMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return domain.IdentifiedSubmission{}, fmt.Errorf("decoding score message: %w", err)
	}
	if domain.NormalizeIdentity(msg.Identity) == "" || msg.GameType == "" {
		return domain.IdentifiedSubmission{}, errors.New("score message needs identity and game_type")
	}
	return domain.IdentifiedSubmission{
		Identity: msg.Identity,
		ScoreSubmission: domain.ScoreSubmission{
			GameType: msg.GameType,
			Score:    msg.Score,
			Points:   msg.Points,
			Metadata: msg.Metadata,
		},
	}, nil
}
