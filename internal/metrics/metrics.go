package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "smart_quiz"

// Metrics holds Prometheus metrics for the quiz service
type Metrics struct {
	SessionsStarted   prometheus.Counter
	SessionsFinished  prometheus.Counter
	SessionsResumed   prometheus.Counter
	SessionsQuit      prometheus.Counter
	Answers           *prometheus.CounterVec
	QuestionFetches   *prometheus.CounterVec
	LeaderboardSubmit prometheus.Counter
	StorageFailures   *prometheus.CounterVec
	RequestCounter    *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
}

// New registers the metrics on reg. Pass prometheus.DefaultRegisterer to expose them on promhttp.Handler.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "started_total",
			Help:      "Quiz sessions started",
		}),
		SessionsFinished: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "finished_total",
			Help:      "Quiz sessions completed",
		}),
		SessionsResumed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "resumed_total",
			Help:      "Quiz sessions restored from a snapshot",
		}),
		SessionsQuit: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "quit_total",
			Help:      "Quiz sessions left unfinished",
		}),
		Answers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "answers_total",
			Help:      "Recorded answers by outcome",
		}, []string{"outcome"}), // correct, wrong, timeout
		QuestionFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "questions",
			Name:      "fetches_total",
			Help:      "Question set resolutions by result",
		}, []string{"result"}),
		LeaderboardSubmit: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "submissions_total",
			Help:      "Runs submitted to the leaderboard",
		}),
		StorageFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "failures_total",
			Help:      "Swallowed key-value store failures",
		}, []string{"op"}),
		RequestCounter: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of requests",
		}, []string{"method", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

func (m *Metrics) SessionStarted()  { m.SessionsStarted.Inc() }
func (m *Metrics) SessionFinished() { m.SessionsFinished.Inc() }
func (m *Metrics) SessionResumed()  { m.SessionsResumed.Inc() }
func (m *Metrics) SessionQuit()     { m.SessionsQuit.Inc() }

func (m *Metrics) AnswerRecorded(outcome string) { m.Answers.WithLabelValues(outcome).Inc() }

func (m *Metrics) QuestionsResolved(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.QuestionFetches.WithLabelValues(result).Inc()
}

func (m *Metrics) Submitted() { m.LeaderboardSubmit.Inc() }

// StorageFailure matches storage.Options.OnFailure.
func (m *Metrics) StorageFailure(op string) { m.StorageFailures.WithLabelValues(op).Inc() }

// Middleware records request count and latency per method.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.RequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
		m.RequestCounter.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer (websocket hijack).
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
