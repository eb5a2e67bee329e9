package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"geoattend/internal/attendance"
	"geoattend/internal/audit"
	"geoattend/internal/config"
	"geoattend/internal/metrics"
	"geoattend/internal/queue"
	"geoattend/internal/roster"
	"geoattend/internal/store"
)

// The auditor examines sessions that recently ended and voids the records of
// any with turnout below the configured threshold. It wakes on a ticker and
// also accepts on-demand runs enqueued by the API; both paths are safe to
// repeat because voiding is idempotent.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "geoattend:audit")
	}

	catalog := roster.NewRepository(db.Client)
	records := attendance.NewRepository(db.Client)
	auditor := audit.New(catalog, records, cfg.AuditMinTurnout, cfg.AuditLookback, nil)

	runOnce := func(trigger string) {
		sum, err := auditor.Run(ctx)
		if err != nil {
			log.Printf("audit run (%s) failed: %v", trigger, err)
			return
		}
		metrics.AuditSessionsExamined.Add(float64(sum.SessionsExamined))
		metrics.AuditRecordsVoided.Add(float64(sum.RecordsVoided))
		log.Printf("audit run (%s): %d session(s) examined, %d voided, %d record(s) invalidated",
			trigger, sum.SessionsExamined, sum.SessionsVoided, sum.RecordsVoided)
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	ticker := time.NewTicker(cfg.AuditInterval)
	defer ticker.Stop()

	log.Printf("auditor started: threshold %.0f%%, lookback %s, interval %s",
		cfg.AuditMinTurnout*100, cfg.AuditLookback, cfg.AuditInterval)

	for {
		select {
		case <-ctx.Done():
			log.Println("auditor stopped")
			return
		case <-ticker.C:
			runOnce("scheduled")
		case msg, ok := <-messages:
			if !ok {
				log.Println("auditor stopped")
				return
			}
			if msg.Type != queue.TypeAuditRun {
				continue
			}
			log.Printf("on-demand audit requested by %s", string(msg.Body))
			runOnce("on-demand")
		}
	}
}
