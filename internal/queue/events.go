package queue

// EventType identifies a lifecycle observation emitted by the queue.
type EventType string

const (
	EventStarted   EventType = "started"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventStalled   EventType = "stalled"
)

// Event is delivered to registered listeners on lifecycle transitions and
// detected stalls. Listeners are observation hooks for logging and metrics;
// their failures never affect the job.
type Event struct {
	Type    EventType
	JobID   string
	UserID  string
	Attempt int
	Error   string
}

// Listener receives queue events. It must not block for long; events are
// delivered from queue goroutines.
type Listener func(Event)

// OnEvent registers a listener. Not safe to call after Start.
func (q *Queue) OnEvent(l Listener) {
	q.listeners = append(q.listeners, l)
}

func (q *Queue) emit(ev Event) {
	for _, l := range q.listeners {
		l(ev)
	}
}
