package activity

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultCapacity is the number of entries kept, newest first
	DefaultCapacity = 50

	// DefaultInterval is the append cadence (20Hz)
	DefaultInterval = 50 * time.Millisecond
)

// Entry is one timestamped tick of the activity loop
type Entry struct {
	Seq       uint64
	Timestamp time.Time
}

func (e Entry) String() string {
	return fmt.Sprintf("Frame %d - %d", e.Seq, e.Timestamp.UnixMilli())
}

// Log is a bounded most-recent-first sequence of entries. It is owned by a
// single goroutine; readers get copies through the publish callback.
type Log struct {
	entries  []Entry
	capacity int
	seq      uint64
}

// NewLog creates an empty log. A non-positive capacity falls back to
// DefaultCapacity.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		entries:  make([]Entry, 0, capacity+1),
		capacity: capacity,
	}
}

// Append inserts a new entry at the head, evicting the tail when full, and
// returns the inserted entry.
func (l *Log) Append(now time.Time) Entry {
	l.seq++
	e := Entry{Seq: l.seq, Timestamp: now}

	l.entries = append(l.entries, Entry{})
	copy(l.entries[1:], l.entries)
	l.entries[0] = e

	if len(l.entries) > l.capacity {
		l.entries = l.entries[:l.capacity]
	}

	return e
}

// Entries returns a copy of the log, newest first
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries held
func (l *Log) Len() int {
	return len(l.entries)
}

// Loop appends to a Log at a fixed cadence until cancelled
type Loop struct {
	log      *Log
	interval time.Duration
	publish  func([]Entry)
	now      func() time.Time
}

// NewLoop builds the activity task. publish receives a fresh copy of the
// entries after every append and may be nil.
func NewLoop(log *Log, interval time.Duration, publish func([]Entry)) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if publish == nil {
		publish = func([]Entry) {}
	}
	return &Loop{
		log:      log,
		interval: interval,
		publish:  publish,
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled. Cancellation is observed before each
// append and while waiting for the next tick.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}

		l.log.Append(l.now())
		l.publish(l.log.Entries())

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
