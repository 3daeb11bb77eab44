package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixora/tollgate/domain/entity"
)

// readEvent returns the data payload of the next event named name.
func readEvent(t *testing.T, r *bufio.Reader, name string) SSEEvent {
	t.Helper()
	want := "event: " + name
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if strings.TrimSpace(line) != want {
			continue
		}
		data, err := r.ReadString('\n')
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(data, "data: "))

		var ev SSEEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(data), "data: ")), &ev))
		return ev
	}
}

func TestStreamer_PushesAuditRecords(t *testing.T) {
	s := NewStreamer(Config{HeartbeatInterval: time.Hour}, nil).
		WithSnapshot(func() interface{} { return map[string]bool{"locked": false} })
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	srv := httptest.NewServer(http.HandlerFunc(s.HandleSSE))
	defer srv.Close()
	defer cancel()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	hello := readEvent(t, reader, EventConnected)
	assert.Equal(t, EventConnected, hello.Type)
	assert.Contains(t, hello.Data, "status")
	require.Equal(t, 1, s.GetClientCount())

	s.OnAudit(entity.AuditRecord{Seq: 9, User: "ceo", EventKind: entity.EventMaximumBreach, Status: entity.StatusLockdown, Digest: "abc"})

	ev := readEvent(t, reader, EventAudit)
	data, ok := ev.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(9), data["seq"])
	assert.Equal(t, "MAXIMUM_BREACH", data["event_kind"])
	assert.Equal(t, "abc", data["digest"])
}

func TestStreamer_ShutdownClosesClients(t *testing.T) {
	s := NewStreamer(Config{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	c := s.AddClient()
	cancel()

	select {
	case <-c.Context.Done():
	case <-time.After(time.Second):
		t.Fatal("client not closed on shutdown")
	}
	assert.Eventually(t, func() bool { return s.GetClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestStreamer_RejectsOverCapacity(t *testing.T) {
	s := NewStreamer(Config{MaxConnections: 1}, nil)
	s.AddClient()

	rec := httptest.NewRecorder()
	s.HandleSSE(rec, httptest.NewRequest(http.MethodGet, "/v1/admin/events", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, 1, s.GetClientCount())
}

func TestStreamer_SlowClientIsDropped(t *testing.T) {
	s := NewStreamer(Config{BufferSize: 1}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	c := s.AddClient()
	for i := 0; i < 3; i++ {
		require.Eventually(t, func() bool {
			return s.Broadcast(EventAudit, i) == nil
		}, time.Second, time.Millisecond)
	}

	select {
	case <-c.Context.Done():
	case <-time.After(time.Second):
		t.Fatal("slow client was not disconnected")
	}
}
