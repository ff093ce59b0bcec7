package ws

import "encoding/json"

// MessageType constants for WebSocket protocol.
const (
	// Client -> Server
	TypeSubmitAnswer = "submit_answer"
	TypeRequestState = "request_state"
	TypePing         = "ping"

	// Server -> Client
	TypeSessionState      = "session_state"
	TypeQuestionTick      = "question_tick"
	TypeQuestionTimeout   = "question_timeout"
	TypeAnswerRecorded    = "answer_recorded"
	TypeSessionFinished   = "session_finished"
	TypeLeaderboardUpdate = "leaderboard_update"
	TypeError             = "error"
	TypePong              = "pong"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id,omitempty"`
}

// NewMessage marshals payload into a typed message.
func NewMessage(msgType string, payload any) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: msgType, Payload: raw}, nil
}

// Client Messages (incoming)

type SubmitAnswerPayload struct {
	Answer string `json:"answer"`
}

// Server Messages (outgoing)

type QuestionTickPayload struct {
	SessionID        string `json:"session_id"`
	QuestionIndex    int    `json:"question_index"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

type QuestionTimeoutPayload struct {
	SessionID     string `json:"session_id"`
	QuestionIndex int    `json:"question_index"`
	CorrectAnswer string `json:"correct_answer"`
	Score         string `json:"score"`
}

type AnswerRecordedPayload struct {
	SessionID     string `json:"session_id"`
	QuestionIndex int    `json:"question_index"`
	Selected      string `json:"selected"`
	CorrectAnswer string `json:"correct_answer"`
	IsCorrect     bool   `json:"is_correct"`
	TimeTaken     int    `json:"time_taken_seconds"`
	Score         string `json:"score"`
}

type SessionFinishedPayload struct {
	SessionID      string  `json:"session_id"`
	User           string  `json:"user"`
	Score          float64 `json:"score"`
	Correct        int     `json:"correct"`
	Wrong          int     `json:"wrong"`
	Total          int     `json:"total"`
	Percentage     int     `json:"percentage"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
	Rank           int     `json:"rank,omitempty"`
}

type LeaderboardUpdatePayload struct {
	Top  []LeaderboardEntry `json:"top"`
	Rank int                `json:"rank,omitempty"`
}

type LeaderboardEntry struct {
	Rank             int     `json:"rank"`
	User             string  `json:"user"`
	Score            float64 `json:"score"`
	CorrectCount     int     `json:"correct"`
	Total            int     `json:"total"`
	Percentage       int     `json:"percentage"`
	TimeTakenSeconds int     `json:"time_taken_seconds"`
	Category         string  `json:"category"`
	Difficulty       string  `json:"difficulty"`
	CompletedAt      string  `json:"completed_at"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
