// Command loadgen publishes synthetic document events to the ingest and
// delete topics to exercise the ingestion daemon under load.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/praveenmunagapati/BitFunnel/internal/feed"
	"github.com/praveenmunagapati/BitFunnel/pkg/config"
	"github.com/praveenmunagapati/BitFunnel/pkg/kafka"
)

var vocabulary = []string{
	"packed", "array", "signature", "posting", "shard", "column",
	"row", "epoch", "token", "recycler", "gram", "stream", "index",
	"document", "ingest", "frequency", "hash", "slot", "capacity",
	"bitmap", "group", "expiry", "catalog", "histogram", "statistics",
}

func randomText(rng *rand.Rand, words int) string {
	out := make([]byte, 0, words*8)
	for i := 0; i < words; i++ {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, vocabulary[rng.Intn(len(vocabulary))]...)
	}
	return string(out)
}

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	concurrency := flag.Int("concurrency", 4, "number of publisher workers")
	duration := flag.Duration("duration", 30*time.Second, "how long to publish")
	deleteRatio := flag.Float64("delete-ratio", 0.1, "fraction of events that are deletes")
	bodyWords := flag.Int("body-words", 50, "words per synthetic document body")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	ingestProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest)
	defer ingestProducer.Close()
	deleteProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentDelete)
	defer deleteProducer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	fmt.Println("=== Ingestion Load Generator ===")
	fmt.Printf("Brokers:      %v\n", cfg.Kafka.Brokers)
	fmt.Printf("Concurrency:  %d\n", *concurrency)
	fmt.Printf("Duration:     %s\n", *duration)
	fmt.Printf("Delete ratio: %.2f\n", *deleteRatio)
	fmt.Println()

	var published, deleted, failed atomic.Int64
	var nextID atomic.Uint64

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < *concurrency; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for ctx.Err() == nil {
				if rng.Float64() < *deleteRatio {
					id := nextID.Load()
					if id == 0 {
						continue
					}
					event := feed.DeleteEvent{
						DocID:     rng.Uint64()%id + 1,
						DeletedAt: time.Now().UTC(),
					}
					if err := deleteProducer.Publish(ctx, kafka.Event{
						Key:   fmt.Sprint(event.DocID),
						Value: event,
					}); err != nil {
						failed.Add(1)
						continue
					}
					deleted.Add(1)
					continue
				}

				event := feed.IngestEvent{
					DocID:      nextID.Add(1),
					Title:      randomText(rng, 3),
					Body:       randomText(rng, *bodyWords),
					IngestedAt: time.Now().UTC(),
				}
				if err := ingestProducer.Publish(ctx, kafka.Event{
					Key:   fmt.Sprint(event.DocID),
					Value: event,
				}); err != nil {
					failed.Add(1)
					continue
				}
				published.Add(1)
			}
		}(int64(w) + time.Now().UnixNano())
	}
	wg.Wait()

	elapsed := time.Since(start)
	total := published.Load() + deleted.Load()
	fmt.Println("=== Results ===")
	fmt.Printf("Ingest events: %d\n", published.Load())
	fmt.Printf("Delete events: %d\n", deleted.Load())
	fmt.Printf("Failures:      %d\n", failed.Load())
	fmt.Printf("Throughput:    %.0f events/s\n", float64(total)/elapsed.Seconds())
}
