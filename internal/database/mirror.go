package database

import (
	"context"
	"fmt"

	"github.com/GuardianChain/launch_layer/internal/logging"
	supabase "github.com/GuardianChain/launch_layer/supabase/client"
)

// DefaultMirrorTable is the Supabase table launch events are copied to.
const DefaultMirrorTable = "launch_events"

// SupabaseMirror records events in a primary Recorder and copies each one
// to a Supabase table. Mirror failures are logged and never fail Record.
type SupabaseMirror struct {
	primary Recorder
	client  *supabase.Client
	table   string
	logger  *logging.Logger
}

// NewSupabaseMirror wraps primary. An empty table uses DefaultMirrorTable.
func NewSupabaseMirror(primary Recorder, client *supabase.Client, table string, logger *logging.Logger) *SupabaseMirror {
	if table == "" {
		table = DefaultMirrorTable
	}
	if logger == nil {
		logger = logging.NewDiscard("database")
	}
	return &SupabaseMirror{primary: primary, client: client, table: table, logger: logger}
}

// Record stores ev in the primary recorder, then mirrors it.
func (m *SupabaseMirror) Record(ctx context.Context, ev Event) error {
	if err := ev.normalize(); err != nil {
		return err
	}
	if err := m.primary.Record(ctx, ev); err != nil {
		return err
	}
	if err := m.mirror(ctx, ev); err != nil {
		m.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"event_id": ev.ID,
			"action":   ev.Action,
		}).Warn("mirror event failed")
	}
	return nil
}

func (m *SupabaseMirror) mirror(ctx context.Context, ev Event) error {
	resp, err := m.client.From(m.table).ExecuteInsert(ctx, ev)
	if err != nil {
		return fmt.Errorf("insert %s: %w", m.table, err)
	}
	return resp.Error()
}

// Recent reads from the primary recorder.
func (m *SupabaseMirror) Recent(ctx context.Context, limit int) ([]Event, error) {
	return m.primary.Recent(ctx, limit)
}
