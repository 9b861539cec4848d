package logging

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Entry is one decoded log record.
type Entry struct {
	Time      time.Time
	Level     zerolog.Level
	Message   string
	Component string
	Error     string
}

// Panel is an io.Writer that keeps the most recent records for display.
// It is safe for concurrent use.
type Panel struct {
	mu      sync.Mutex
	entries []Entry
	max     int
	notify  func(Entry)
}

// NewPanel keeps up to max records.
func NewPanel(max int) *Panel {
	if max <= 0 {
		max = 200
	}
	return &Panel{max: max, entries: make([]Entry, 0, max)}
}

// OnEntry registers a callback run after each record is stored. The
// callback must not log.
func (p *Panel) OnEntry(fn func(Entry)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notify = fn
}

// Write decodes a zerolog JSON record. Undecodable input is kept as the
// message text.
func (p *Panel) Write(b []byte) (int, error) {
	var rec struct {
		Time      time.Time `json:"time"`
		Level     string    `json:"level"`
		Message   string    `json:"message"`
		Component string    `json:"component"`
		Error     string    `json:"error"`
	}
	e := Entry{Time: time.Now(), Level: zerolog.InfoLevel}
	if err := json.Unmarshal(b, &rec); err == nil {
		if !rec.Time.IsZero() {
			e.Time = rec.Time
		}
		if lvl, err := zerolog.ParseLevel(rec.Level); err == nil {
			e.Level = lvl
		}
		e.Message = rec.Message
		e.Component = rec.Component
		e.Error = rec.Error
	} else {
		e.Message = string(b)
	}

	p.mu.Lock()
	p.entries = append(p.entries, e)
	if len(p.entries) > p.max {
		p.entries = p.entries[len(p.entries)-p.max:]
	}
	notify := p.notify
	p.mu.Unlock()

	if notify != nil {
		notify(e)
	}
	return len(b), nil
}

// Entries returns a copy of the stored records, oldest first.
func (p *Panel) Entries() []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Tail returns the last n records.
func (p *Panel) Tail(n int) []Entry {
	all := p.Entries()
	if n < len(all) {
		all = all[len(all)-n:]
	}
	return all
}
