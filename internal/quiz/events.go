package quiz

import (
	"github.com/rs/zerolog"

	ws "github.com/gokatarajesh/smart-quiz/pkg/http/ws"
)

// EventType names a machine notification.
type EventType string

const (
	EventQuestionTick    EventType = ws.TypeQuestionTick
	EventQuestionTimeout EventType = ws.TypeQuestionTimeout
	EventAnswerRecorded  EventType = ws.TypeAnswerRecorded
	EventSessionFinished EventType = ws.TypeSessionFinished
)

// Event is emitted on every timer tick, answer, timeout and completion.
type Event struct {
	Type            EventType
	SessionID       string
	Index           int
	TimeLeftSeconds int
	Score           string
	Record          *AnsweredRecord
	Result          *Result
}

// Publisher receives machine events. Publish is called with the machine locked and must not block.
type Publisher interface {
	Publish(Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}

type broadcaster interface {
	BroadcastAll(msg ws.Message) error
}

// HubPublisher forwards machine events to every WebSocket client.
type HubPublisher struct {
	hub    broadcaster
	logger zerolog.Logger
}

func NewHubPublisher(hub broadcaster, logger zerolog.Logger) *HubPublisher {
	return &HubPublisher{
		hub:    hub,
		logger: logger.With().Str("component", "session_events").Logger(),
	}
}

func (p *HubPublisher) Publish(evt Event) {
	msg, err := ws.NewMessage(string(evt.Type), eventPayload(evt))
	if err != nil {
		p.logger.Warn().Err(err).Str("type", string(evt.Type)).Msg("failed to marshal session event")
		return
	}
	if err := p.hub.BroadcastAll(msg); err != nil {
		p.logger.Debug().Err(err).Str("type", string(evt.Type)).Msg("session event not delivered to every client")
	}
}

func eventPayload(evt Event) any {
	switch evt.Type {
	case EventQuestionTick:
		return ws.QuestionTickPayload{
			SessionID:        evt.SessionID,
			QuestionIndex:    evt.Index,
			RemainingSeconds: evt.TimeLeftSeconds,
		}
	case EventQuestionTimeout:
		p := ws.QuestionTimeoutPayload{
			SessionID:     evt.SessionID,
			QuestionIndex: evt.Index,
			Score:         evt.Score,
		}
		if evt.Record != nil {
			p.CorrectAnswer = evt.Record.CorrectAnswer
		}
		return p
	case EventAnswerRecorded:
		p := ws.AnswerRecordedPayload{
			SessionID:     evt.SessionID,
			QuestionIndex: evt.Index,
			Score:         evt.Score,
		}
		if evt.Record != nil {
			p.Selected = evt.Record.SelectedAnswer
			p.CorrectAnswer = evt.Record.CorrectAnswer
			p.IsCorrect = evt.Record.IsCorrect
			p.TimeTaken = evt.Record.TimeTakenSeconds
		}
		return p
	case EventSessionFinished:
		p := ws.SessionFinishedPayload{SessionID: evt.SessionID}
		if r := evt.Result; r != nil {
			p.User = r.User
			p.Score = r.Score
			p.Correct = r.CorrectCount
			p.Wrong = r.WrongCount
			p.Total = r.Total
			p.Percentage = r.Percentage
			p.ElapsedSeconds = r.ElapsedSeconds
			p.Rank = r.Rank
		}
		return p
	default:
		return evt
	}
}
