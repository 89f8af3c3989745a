package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRecorder(t *testing.T) (*PostgresRecorder, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRecorder(sqlx.NewDb(db, "postgres")), mock
}

func TestPostgresRecorder_Record(t *testing.T) {
	rec, mock := newMockRecorder(t)

	ev := NewEvent(ActionDeployNetwork, "polygon", StatusSucceeded, map[string]interface{}{"address": "0xabc"})
	mock.ExpectExec("INSERT INTO launch_events").
		WithArgs(ev.ID, ActionDeployNetwork, "polygon", StatusSucceeded, []byte(`{"address":"0xabc"}`), ev.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, rec.Record(context.Background(), ev))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecorder_RecordValidates(t *testing.T) {
	rec, _ := newMockRecorder(t)

	err := rec.Record(context.Background(), Event{Status: StatusSucceeded})
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = rec.Record(context.Background(), Event{ID: "not-a-uuid", Action: "x", Status: "y"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPostgresRecorder_Recent(t *testing.T) {
	rec, mock := newMockRecorder(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "action", "target", "status", "detail", "created_at"}).
		AddRow("11111111-1111-1111-1111-111111111111", ActionConfigureBridge, "wormhole", StatusSucceeded, []byte(`{"source":"polygon"}`), now).
		AddRow("22222222-2222-2222-2222-222222222222", ActionDeployNetwork, "base", StatusFailed, []byte(`{}`), now.Add(-time.Minute))
	mock.ExpectQuery(`SELECT id, action, target, status, detail, created_at\s+FROM launch_events`).
		WithArgs(DefaultRecentLimit).
		WillReturnRows(rows)

	events, err := rec.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "wormhole", events[0].Target)
	assert.Equal(t, "polygon", events[0].Detail["source"])
	assert.Equal(t, StatusFailed, events[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecorder_RecentError(t *testing.T) {
	rec, mock := newMockRecorder(t)
	mock.ExpectQuery("SELECT").WithArgs(MaxRecentLimit).WillReturnError(errors.New("connection refused"))

	_, err := rec.Recent(context.Background(), 10_000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "select launch events")
}

func TestMemoryRecorder_Ring(t *testing.T) {
	m := NewMemoryRecorder(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, m.Record(ctx, NewEvent(ActionTestBridge, fmt.Sprintf("b%d", i), StatusSucceeded, nil)))
	}
	assert.Equal(t, 3, m.Len())

	events, err := m.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, []string{"b4", "b3", "b2"}, []string{events[0].Target, events[1].Target, events[2].Target})

	events, err = m.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "b4", events[0].Target)
}

func TestMemoryRecorder_Empty(t *testing.T) {
	events, err := NewMemoryRecorder(0).Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMemoryRecorder_ErrorInjection(t *testing.T) {
	m := NewMemoryRecorder(10)
	m.ErrorOnNextCall = errors.New("boom")

	require.Error(t, m.Record(context.Background(), NewEvent("a", "", "ok", nil)))
	require.NoError(t, m.Record(context.Background(), NewEvent("a", "", "ok", nil)))
	assert.Equal(t, 1, m.Len())
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("event x: %w", ErrNotFound)))
	assert.False(t, IsNotFound(ErrInvalidInput))
}

func TestPostgresRecorder_Integration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rec, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer rec.Close()

	target := fmt.Sprintf("it-%d", time.Now().UnixNano())
	ev := NewEvent(ActionConfigureBridge, target, StatusSucceeded, map[string]interface{}{"bridge": "wormhole"})
	require.NoError(t, rec.Record(ctx, ev))

	events, err := rec.Recent(ctx, MaxRecentLimit)
	require.NoError(t, err)
	var found *Event
	for i := range events {
		if events[i].ID == ev.ID {
			found = &events[i]
		}
	}
	require.NotNil(t, found, "recorded event not returned")
	assert.Equal(t, target, found.Target)
	assert.Equal(t, "wormhole", found.Detail["bridge"])
}
