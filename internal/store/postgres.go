package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const (
	postgresChannel  = "ourapp_kv"
	listenRetryDelay = 2 * time.Second
)

// Postgres keeps entries in a kv table and announces every change with
// NOTIFY. One connection outside the pool LISTENs for the whole store and
// fans notifications out to subscribers of the announced key.
type Postgres struct {
	db           *pgxpool.Pool
	listenConfig *pgx.ConnConfig
	subs         *fanout
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewPostgres connects to dsn, creates the kv table if needed and starts
// listening for changes
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database dsn: %w", err)
	}

	db, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	query := `
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	if _, err := db.Exec(ctx, query); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	p := &Postgres{
		db:           db,
		listenConfig: cfg.ConnConfig.Copy(),
		subs:         newFanout(),
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	go p.listenLoop(listenCtx)

	return p, nil
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.db.QueryRow(ctx, `SELECT value FROM kv WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	query := `
		WITH upsert AS (
			INSERT INTO kv (key, value, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
			RETURNING key
		)
		SELECT pg_notify($3, key) FROM upsert
	`
	if _, err := p.db.Exec(ctx, query, key, value, postgresChannel); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	query := `
		WITH removed AS (
			DELETE FROM kv WHERE key = $1 RETURNING key
		)
		SELECT pg_notify($2, key) FROM removed
	`
	if _, err := p.db.Exec(ctx, query, key, postgresChannel); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Subscribe registers fn with the shared listener and reports the current
// value. No pool connection is held while waiting.
func (p *Postgres) Subscribe(ctx context.Context, key string, fn ChangeFunc) (Unsubscribe, error) {
	sub, unsub := p.subs.add(key, fn)

	value, err := p.Get(ctx, key)
	switch {
	case err == nil:
		sub.deliver(value, true)
	case IsNotFound(err):
	default:
		unsub()
		return nil, err
	}
	return unsub, nil
}

func (p *Postgres) listenLoop(ctx context.Context) {
	defer close(p.done)

	for ctx.Err() == nil {
		err := p.listenOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Msg("Postgres listen connection lost, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(listenRetryDelay):
		}
	}
}

func (p *Postgres) listenOnce(ctx context.Context) error {
	conn, err := pgx.ConnectConfig(ctx, p.listenConfig)
	if err != nil {
		return fmt.Errorf("failed to open listen connection: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+postgresChannel); err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	// changes made while disconnected were not announced to us
	for _, key := range p.subs.keys() {
		p.report(ctx, key)
	}

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		if p.subs.has(n.Payload) {
			p.report(ctx, n.Payload)
		}
	}
}

func (p *Postgres) report(ctx context.Context, key string) {
	value, err := p.Get(ctx, key)
	switch {
	case err == nil:
		p.subs.deliver(key, value, true)
	case IsNotFound(err):
		p.subs.deliver(key, nil, false)
	default:
		log.Warn().Err(err).Str("key", key).Msg("Failed to read notified key")
	}
}

// Close stops the listener and closes the pool
func (p *Postgres) Close() {
	p.cancel()
	<-p.done
	p.db.Close()
}
