package leaderboard

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	ws "github.com/gokatarajesh/smart-quiz/pkg/http/ws"
)

const broadcastTop = 10

type hub interface {
	BroadcastAll(msg ws.Message) error
}

// Broadcaster forwards leaderboard updates to every connected WebSocket client.
type Broadcaster struct {
	hub    hub
	logger zerolog.Logger
}

// NewBroadcaster creates a hub-backed leaderboard broadcaster.
func NewBroadcaster(hub hub, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		hub:    hub,
		logger: logger.With().Str("component", "leaderboard_broadcaster").Logger(),
	}
}

// Publish sends the top of board and the rank of the latest submission.
func (b *Broadcaster) Publish(board []Entry, rank int) {
	if b.hub == nil {
		return
	}
	top := board
	if len(top) > broadcastTop {
		top = top[:broadcastTop]
	}
	raw, err := json.Marshal(ws.LeaderboardUpdatePayload{
		Top:  toWSEntries(top),
		Rank: rank,
	})
	if err != nil {
		b.logger.Warn().Err(err).Msg("failed to marshal leaderboard WS payload")
		return
	}

	msg := ws.Message{
		Type:    ws.TypeLeaderboardUpdate,
		Payload: raw,
	}
	if err := b.hub.BroadcastAll(msg); err != nil {
		b.logger.Warn().Err(err).Msg("failed to broadcast leaderboard update")
	}
}

func toWSEntries(entries []Entry) []ws.LeaderboardEntry {
	result := make([]ws.LeaderboardEntry, len(entries))
	for i, e := range entries {
		result[i] = ws.LeaderboardEntry{
			Rank:             i + 1,
			User:             e.User,
			Score:            e.Score,
			CorrectCount:     e.CorrectCount,
			Total:            e.Total,
			Percentage:       e.Percentage,
			TimeTakenSeconds: e.TimeTakenSeconds,
			Category:         e.Category,
			Difficulty:       e.Difficulty,
			CompletedAt:      e.CompletedAt.UTC().Format(time.RFC3339),
		}
	}
	return result
}
