package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/suPer8Hu/career-chat/internal/config"
	"github.com/suPer8Hu/career-chat/internal/db"
	"github.com/suPer8Hu/career-chat/internal/store/rabbitmq"
	"github.com/suPer8Hu/career-chat/internal/upload"
	"github.com/suPer8Hu/career-chat/pkg/logger"
)

var errBadMessage = errors.New("bad cleanup message")

type remover interface {
	Remove(ctx context.Context, id string) error
}

func main() {
	cfg := config.Load()
	if err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		panic(err)
	}
	if cfg.RabbitURL == "" {
		logger.Fatalf("RABBIT_URL is required for the worker")
	}

	gdb, err := db.Open(cfg.DBDSN)
	if err != nil {
		logger.Fatalf("db open: %v", err)
	}
	repo := upload.NewRepo(gdb)
	if err := repo.Migrate(); err != nil {
		logger.Fatalf("db migrate: %v", err)
	}
	uploads := upload.NewStore(cfg.UploadDir, repo, upload.NoopScheduler{}, cfg.UploadRetention, cfg.MaxUploadBytes)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		logger.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	if err := rabbitmq.Declare(ch, cfg.RabbitQueue); err != nil {
		logger.Fatalf("queue declare: %v", err)
	}

	//  strict concurrency control
	concurrency := cfg.WorkerConcurrency

	if err := ch.Qos(concurrency, 0, false); err != nil {
		logger.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		logger.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infof("worker started, queue=%s concurrency=%d", cfg.RabbitQueue, concurrency)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				start := time.Now()
				if err := handleCleanup(ctx, uploads, d.Body); err != nil {
					logger.Warnf("worker=%d cleanup failed cost=%s err=%v", workerID, time.Since(start), err)
					_ = d.Nack(false, false)
					continue
				}
				if err := d.Ack(false); err != nil {
					logger.Warnf("worker=%d ack failed err=%v", workerID, err)
				}
			}
		}(i)
	}

	// records whose message was lost (publish failure, purged queue) still expire
	sweep := time.NewTicker(cfg.JanitorInterval)
	defer sweep.Stop()

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case <-sweep.C:
			start := time.Now()
			n, err := uploads.SweepExpired(ctx, time.Now())
			if err != nil {
				logger.Warnf("sweep failed cost=%s err=%v", time.Since(start), err)
				continue
			}
			if n > 0 {
				logger.Infof("sweep removed=%d cost=%s", n, time.Since(start))
			}

		case d, ok := <-msgs:
			if !ok {
				logger.Warnf("delivery channel closed")
				msgs = nil
				stop()
				continue
			}
			jobs <- d
		}
	}
}

// handleCleanup removes the upload named in body. Removing an upload that
// is already gone succeeds.
func handleCleanup(ctx context.Context, uploads remover, body []byte) error {
	var m rabbitmq.CleanupMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return errors.Join(errBadMessage, err)
	}
	if m.UploadID == "" {
		return errBadMessage
	}

	start := time.Now()
	if err := uploads.Remove(ctx, m.UploadID); err != nil {
		return err
	}
	if cost := time.Since(start); cost > 500*time.Millisecond {
		logger.Infof("cleanup_timing upload=%s total=%s", m.UploadID, cost)
	}
	return nil
}
