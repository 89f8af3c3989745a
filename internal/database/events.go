// Package database records launch events in Postgres or in memory.
package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusScheduled = "scheduled"
)

// Event actions.
const (
	ActionDeployNetwork     = "deploy_network"
	ActionAddLiquidity      = "add_liquidity"
	ActionSubmitApplication = "submit_exchange_application"
	ActionConfigureBridge   = "configure_bridge"
	ActionTestBridge        = "test_bridge"
	ActionHardenSupabase    = "harden_supabase"
	ActionAutoDeploy        = "auto_deploy"
)

const (
	// DefaultRecentLimit is used when Recent is called with limit <= 0.
	DefaultRecentLimit = 50
	// MaxRecentLimit caps Recent.
	MaxRecentLimit = 500
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// IsNotFound reports whether err is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Event is one launch operation outcome.
type Event struct {
	ID        string                 `json:"id"`
	Action    string                 `json:"action"`
	Target    string                 `json:"target"`
	Status    string                 `json:"status"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Recorder persists launch events.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// NewEvent builds an event with a fresh ID and timestamp.
func NewEvent(action, target, status string, detail map[string]interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Action:    action,
		Target:    target,
		Status:    status,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
}

// normalize fills ID and CreatedAt and validates required fields.
func (e *Event) normalize() error {
	e.Action = strings.TrimSpace(e.Action)
	if e.Action == "" {
		return fmt.Errorf("%w: action cannot be empty", ErrInvalidInput)
	}
	if strings.TrimSpace(e.Status) == "" {
		return fmt.Errorf("%w: status cannot be empty", ErrInvalidInput)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	} else if _, err := uuid.Parse(e.ID); err != nil {
		return fmt.Errorf("%w: id must be a uuid", ErrInvalidInput)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		return MaxRecentLimit
	}
	return limit
}
