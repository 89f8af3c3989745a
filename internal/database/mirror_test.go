package database

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	supabase "github.com/GuardianChain/launch_layer/supabase/client"
)

func TestSupabaseMirror(t *testing.T) {
	var inserts atomic.Int32
	var lastAction atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rest/v1/launch_events" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var ev Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err == nil {
			lastAction.Store(ev.Action)
		}
		inserts.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client, err := supabase.New(supabase.Config{URL: srv.URL, APIKey: "service-key"})
	require.NoError(t, err)

	primary := NewMemoryRecorder(10)
	mirror := NewSupabaseMirror(primary, client, "", nil)
	ctx := context.Background()

	require.NoError(t, mirror.Record(ctx, NewEvent(ActionDeployNetwork, "polygon", StatusSucceeded, nil)))
	assert.Equal(t, int32(1), inserts.Load())
	assert.Equal(t, ActionDeployNetwork, lastAction.Load())

	events, err := mirror.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	assert.Error(t, mirror.Record(ctx, Event{Status: StatusSucceeded}))
	assert.Equal(t, int32(1), inserts.Load())
}

func TestSupabaseMirrorFailureIsNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"boom"}`))
	}))
	defer srv.Close()

	client, err := supabase.New(supabase.Config{URL: srv.URL, APIKey: "service-key"})
	require.NoError(t, err)

	primary := NewMemoryRecorder(10)
	mirror := NewSupabaseMirror(primary, client, "events", nil)

	require.NoError(t, mirror.Record(context.Background(), NewEvent(ActionTestBridge, "polygon", StatusFailed, nil)))
	assert.Equal(t, 1, primary.Len())
}
