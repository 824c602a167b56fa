package actionlog

import (
	"sync"
	"time"

	"voltonic-power/internal/models"

	"github.com/google/uuid"
)

// Log buffers autonomous action records for the current tick until persistence drains them
type Log struct {
	mu      sync.Mutex
	pending []models.AutonomousAction
	now     func() time.Time
}

// NewLog creates an empty log
func NewLog() *Log {
	return &Log{now: time.Now}
}

// Append assigns an id and, when missing, a timestamp, then buffers the record
func (l *Log) Append(a *models.AutonomousAction) models.AutonomousAction {
	l.mu.Lock()
	defer l.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = l.now()
	}
	l.pending = append(l.pending, *a)
	return *a
}

// Drain hands over buffered records in append order
func (l *Log) Drain() []models.AutonomousAction {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := l.pending
	l.pending = nil
	return out
}

// Requeue puts drained records back ahead of anything appended since, keeping their ids
func (l *Log) Requeue(actions []models.AutonomousAction) {
	if len(actions) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending = append(append([]models.AutonomousAction(nil), actions...), l.pending...)
}

// Len buffered record count
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}
