package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/GuardianChain/launch_layer/internal/platform/migrations"
)

// PostgresRecorder stores events in the launch_events table.
type PostgresRecorder struct {
	db *sqlx.DB
}

type eventRow struct {
	ID        string    `db:"id"`
	Action    string    `db:"action"`
	Target    string    `db:"target"`
	Status    string    `db:"status"`
	Detail    []byte    `db:"detail"`
	CreatedAt time.Time `db:"created_at"`
}

// Open connects to Postgres and applies migrations.
func Open(ctx context.Context, dsn string) (*PostgresRecorder, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := migrations.Apply(ctx, db.DB); err != nil {
		db.Close()
		return nil, err
	}
	return NewPostgresRecorder(db), nil
}

// NewPostgresRecorder wraps an existing connection.
func NewPostgresRecorder(db *sqlx.DB) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

// Close closes the connection pool.
func (r *PostgresRecorder) Close() error {
	return r.db.Close()
}

// Record inserts an event.
func (r *PostgresRecorder) Record(ctx context.Context, ev Event) error {
	if err := ev.normalize(); err != nil {
		return err
	}
	detail := ev.Detail
	if detail == nil {
		detail = map[string]interface{}{}
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal event detail: %w", err)
	}

	row := eventRow{
		ID:        ev.ID,
		Action:    ev.Action,
		Target:    ev.Target,
		Status:    ev.Status,
		Detail:    raw,
		CreatedAt: ev.CreatedAt,
	}
	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO launch_events (id, action, target, status, detail, created_at)
		VALUES (:id, :action, :target, :status, :detail, :created_at)`, row)
	if err != nil {
		return fmt.Errorf("insert launch event: %w", err)
	}
	return nil
}

// Recent returns the newest events first.
func (r *PostgresRecorder) Recent(ctx context.Context, limit int) ([]Event, error) {
	var rows []eventRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, action, target, status, detail, created_at
		FROM launch_events
		ORDER BY created_at DESC
		LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("select launch events: %w", err)
	}

	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		ev := Event{
			ID:        row.ID,
			Action:    row.Action,
			Target:    row.Target,
			Status:    row.Status,
			CreatedAt: row.CreatedAt,
		}
		if len(row.Detail) > 0 {
			if err := json.Unmarshal(row.Detail, &ev.Detail); err != nil {
				return nil, fmt.Errorf("decode event %s detail: %w", row.ID, err)
			}
		}
		events = append(events, ev)
	}
	return events, nil
}

var _ Recorder = (*PostgresRecorder)(nil)
