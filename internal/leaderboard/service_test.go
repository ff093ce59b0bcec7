package leaderboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/smart-quiz/internal/storage"
	ws "github.com/gokatarajesh/smart-quiz/pkg/http/ws"
)

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	return storage.New(context.Background(), storage.NewMemoryBackend(), zerolog.Nop(), storage.Options{KeyPrefix: "quiz."})
}

type recordingHub struct {
	mu   sync.Mutex
	msgs []ws.Message
}

func (h *recordingHub) BroadcastAll(msg ws.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msg)
	return nil
}

func TestSubmitOrdersByScoreThenTime(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newStore(t), zerolog.Nop(), ServiceOptions{})

	assert.Equal(t, 1, svc.Submit(ctx, Entry{User: "a", Score: 3, TimeTakenSeconds: 5}))
	assert.Equal(t, 1, svc.Submit(ctx, Entry{User: "b", Score: 5, TimeTakenSeconds: 20}))
	assert.Equal(t, 1, svc.Submit(ctx, Entry{User: "c", Score: 5, TimeTakenSeconds: 10}))

	board := svc.List(ctx)
	require.Len(t, board, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{board[0].User, board[1].User, board[2].User})
}

func TestSubmitTiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newStore(t), zerolog.Nop(), ServiceOptions{})

	svc.Submit(ctx, Entry{User: "first", Score: 4, TimeTakenSeconds: 30})
	rank := svc.Submit(ctx, Entry{User: "second", Score: 4, TimeTakenSeconds: 30})

	assert.Equal(t, 2, rank)
	board := svc.List(ctx)
	assert.Equal(t, "first", board[0].User)
	assert.Equal(t, "second", board[1].User)
}

func TestSubmitKeepsBestHundred(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newStore(t), zerolog.Nop(), ServiceOptions{})

	for i := 0; i < 150; i++ {
		svc.Submit(ctx, Entry{User: "u", Score: float64(i), TimeTakenSeconds: 10})
	}

	board := svc.List(ctx)
	require.Len(t, board, DefaultCapacity)
	assert.Equal(t, 149.0, board[0].Score)
	assert.Equal(t, 50.0, board[len(board)-1].Score)
	for i := 1; i < len(board); i++ {
		assert.GreaterOrEqual(t, board[i-1].Score, board[i].Score)
	}

	assert.Zero(t, svc.Submit(ctx, Entry{User: "late", Score: 1, TimeTakenSeconds: 1}), "entry below the cut has no rank")
	assert.Len(t, svc.List(ctx), DefaultCapacity)
}

func TestSubmitSurvivesNewServiceOverSameStore(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	NewService(store, zerolog.Nop(), ServiceOptions{}).Submit(ctx, Entry{User: "a", Score: 2})

	assert.Len(t, NewService(store, zerolog.Nop(), ServiceOptions{}).List(ctx), 1)
}

func TestClearAndTop(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newStore(t), zerolog.Nop(), ServiceOptions{Capacity: 5})
	for i := 0; i < 4; i++ {
		svc.Submit(ctx, Entry{User: "u", Score: float64(i)})
	}

	assert.Len(t, svc.Top(ctx, 2), 2)
	assert.Len(t, svc.Top(ctx, 0), 4)
	assert.Len(t, svc.Top(ctx, 10), 4)

	svc.Clear(ctx)
	assert.Empty(t, svc.List(ctx))
}

func TestSubmitBroadcastsUpdate(t *testing.T) {
	ctx := context.Background()
	hub := &recordingHub{}
	svc := NewService(newStore(t), zerolog.Nop(), ServiceOptions{Notifier: NewBroadcaster(hub, zerolog.Nop())})

	for i := 0; i < 12; i++ {
		svc.Submit(ctx, Entry{User: "u", Score: float64(i)})
	}

	require.Len(t, hub.msgs, 12)
	last := hub.msgs[11]
	assert.Equal(t, ws.TypeLeaderboardUpdate, last.Type)

	var payload ws.LeaderboardUpdatePayload
	require.NoError(t, json.Unmarshal(last.Payload, &payload))
	assert.Len(t, payload.Top, broadcastTop)
	assert.Equal(t, 1, payload.Rank)
	assert.Equal(t, 11.0, payload.Top[0].Score)
}

func TestHTTPHandler(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newStore(t), zerolog.Nop(), ServiceOptions{})
	svc.Submit(ctx, Entry{User: "a", Score: 1})
	svc.Submit(ctx, Entry{User: "b", Score: 2})

	mux := http.NewServeMux()
	NewHTTPHandler(svc, zerolog.Nop()).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/leaderboard?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Top   []ws.LeaderboardEntry `json:"top"`
		Count int                   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Top, 1)
	assert.Equal(t, "b", resp.Top[0].User)
	assert.Equal(t, 1, resp.Top[0].Rank)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/leaderboard?limit=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/leaderboard", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, svc.List(ctx))
}
