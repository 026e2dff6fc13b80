package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"

	"github.com/points-ledger/internal/kafka"
)

var playerPrefixes = []string{
	"Phoenix", "Shadow", "Thunder", "Storm", "Blaze", "Ninja", "Dragon", "Wolf", "Hawk", "Viper",
	"Ghost", "Titan", "Frost", "Cyber", "Nova", "Raven", "Omega", "Alpha", "Delta", "Sigma",
}

// playerIdentity returns a stable wallet-style identity for the idx-th synthetic player
func playerIdentity(idx int) string {
	prefix := playerPrefixes[idx%len(playerPrefixes)]
	return fmt.Sprintf("0x%x%036x", prefix[0], idx)
}

// play fabricates one play result. Points are roughly a tenth of the score with some spread.
func play(rng *rand.Rand, players int, games []string) kafka.ScoreMessage {
	idx := rng.Intn(players)
	if rng.Intn(100) < 60 && players > 20 {
		idx = rng.Intn(20)
	}
	score := float64(rng.Intn(900) + 100)
	if idx < 10 {
		score += float64(rng.Intn(400))
	}
	points := float64(int(score/10) + rng.Intn(5))
	meta, _ := json.Marshal(map[string]any{
		"source":   "kafka-producer",
		"duration": rng.Intn(180) + 20,
		"nickname": playerPrefixes[idx%len(playerPrefixes)],
	})
	return kafka.ScoreMessage{
		Identity: playerIdentity(idx),
		GameType: games[rng.Intn(len(games))],
		Score:    score,
		Points:   points,
		Metadata: meta,
	}
}

func main() {
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "score-submissions", "Kafka topic")
	gameList := flag.String("games", "snake,fallingFruit", "Game types to play (comma-separated)")
	totalPlayers := flag.Int("players", 200, "Number of synthetic players")
	playsPerSecond := flag.Int("rate", 50, "Plays per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	brokerList := strings.Split(*brokers, ",")
	games := strings.Split(*gameList, ",")
	if *totalPlayers <= 0 || *playsPerSecond <= 0 || len(games) == 0 {
		log.Fatal("players, rate and games must be positive")
	}

	fmt.Printf("Producing plays to %s on %s: %d players, %d/sec, games %v\n",
		*topic, *brokers, *totalPlayers, *playsPerSecond, games)

	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Flush.Frequency = 100 * time.Millisecond
	cfg.Producer.Flush.Messages = 100
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokerList, cfg)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}

	var successCount, errorCount, playCount int64
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	finish := func(reason string) {
		fmt.Printf("\n%s, shutting down...\n", reason)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("Completed. Plays: %d, Sent: %d, Errors: %d\n",
			atomic.LoadInt64(&playCount), atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(time.Second / time.Duration(*playsPerSecond))
	defer ticker.Stop()
	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var deadline <-chan time.Time
	if *duration > 0 {
		deadline = time.After(*duration)
	}

	for {
		select {
		case <-sigChan:
			finish("Interrupted")
			return
		case <-deadline:
			finish("Duration reached")
			return
		case <-ticker.C:
			msg := play(rng, *totalPlayers, games)
			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("Failed to marshal message: %v", err)
				continue
			}
			producer.Input() <- &sarama.ProducerMessage{
				Topic: *topic,
				Key:   sarama.StringEncoder(msg.Identity),
				Value: sarama.ByteEncoder(data),
			}
			atomic.AddInt64(&playCount, 1)
		case <-statsTicker.C:
			fmt.Printf("[%s] Plays: %d | Sent: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				atomic.LoadInt64(&playCount),
				atomic.LoadInt64(&successCount),
				atomic.LoadInt64(&errorCount),
			)
		}
	}
}
