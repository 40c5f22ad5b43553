package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bankledger/internal/config"
	"bankledger/internal/db"
	"bankledger/internal/events"
	"bankledger/internal/handlers"
	"bankledger/internal/ledger"
	"bankledger/internal/services"
	"bankledger/internal/session"
	"bankledger/internal/store"
	"bankledger/internal/websocket"
)

// backend is the ledger plus the session store that goes with it. close
// flushes or releases whatever the backend holds.
type backend struct {
	ledger   ledger.Ledger
	sessions session.Store
	close    func(ctx context.Context) error
}

func main() {
	cfg := config.Load()

	b, err := openBackend(cfg)
	if err != nil {
		log.Fatalf("failed to open %s backend: %v", cfg.Backend, err)
	}

	publisher := newPublisher(cfg)
	hub := websocket.NewHub()
	sessions := session.NewManager(b.sessions, cfg.TokenSecret, cfg.SessionTTL)

	handler := handlers.New(
		cfg,
		services.NewAuthService(b.ledger, sessions),
		services.NewBankService(b.ledger, hub, publisher),
		services.NewReportService(b.ledger),
		hub,
	)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("bank ledger API (%s backend) listening on %s", cfg.Backend, server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	if err := publisher.Close(); err != nil {
		log.Printf("close publisher: %v", err)
	}
	if err := b.close(ctx); err != nil {
		log.Fatalf("close backend: %v", err)
	}
	log.Printf("bank ledger API stopped (%d balance updates dropped on slow clients)", hub.Dropped())
}

func openBackend(cfg config.Config) (backend, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		return openPostgres(cfg)
	default:
		return openMemory(cfg)
	}
}

func openMemory(cfg config.Config) (backend, error) {
	memory := ledger.NewMemory(ledger.Options{LockTimeout: cfg.LockTimeout})
	restored, err := memory.LoadFile(cfg.SnapshotPath)
	if err != nil {
		return backend{}, err
	}
	if restored {
		log.Printf("restored ledger snapshot from %s", cfg.SnapshotPath)
	}
	return backend{
		ledger:   memory,
		sessions: session.NewMemoryStore(),
		close: func(ctx context.Context) error {
			if err := memory.SaveFile(ctx, cfg.SnapshotPath); err != nil {
				return err
			}
			log.Printf("saved ledger snapshot to %s", cfg.SnapshotPath)
			return nil
		},
	}, nil
}

func openPostgres(cfg config.Config) (backend, error) {
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return backend{}, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.EnsureSchema(ctx, database); err != nil {
		_ = database.Close()
		return backend{}, err
	}

	accounts := store.NewAccountStore(database)
	transactions := store.NewTransactionStore(database)
	txRunner := db.NewTxRunner(database, cfg.LockTimeout)
	return backend{
		ledger:   services.NewLedgerService(txRunner, accounts, transactions),
		sessions: store.NewSessionStore(database),
		close: func(context.Context) error {
			return database.Close()
		},
	}, nil
}

func newPublisher(cfg config.Config) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NopPublisher{}
	}
	log.Printf("publishing transaction events to %s on %v", cfg.KafkaTopic, cfg.KafkaBrokers)
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
}
