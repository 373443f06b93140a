// Package notify delivers operator notifications. Delivery is best effort:
// sinks never return errors to the caller and only log failures locally.
package notify

import (
	"context"
	"sync"

	"github.com/rxtech-lab/argo-autotrade/internal/logger"
	"go.uber.org/zap"
)

// Sink receives operator-facing messages.
// Urgent messages are trade actions, risk triggers, target announcements and
// lifecycle events; everything else is informational.
type Sink interface {
	Notify(ctx context.Context, text string, urgent bool)
}

// LogSink writes every message to the structured log.
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log.Named("notify")}
}

func (s *LogSink) Notify(_ context.Context, text string, urgent bool) {
	if s.log == nil {
		return
	}

	s.log.Info(text, zap.Bool("urgent", urgent))
}

// MultiSink fans a message out to every sink in order.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	out := make([]Sink, 0, len(sinks))

	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}

	return &MultiSink{sinks: out}
}

func (m *MultiSink) Notify(ctx context.Context, text string, urgent bool) {
	for _, s := range m.sinks {
		s.Notify(ctx, text, urgent)
	}
}

// Message is a delivered notification captured by a Recorder.
type Message struct {
	Text   string
	Urgent bool
}

// Recorder keeps every message in memory. Used for dry runs and tests.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func NewRecorder() *Recorder {
	return &Recorder{
		mu:       sync.Mutex{},
		messages: nil,
	}
}

func (r *Recorder) Notify(_ context.Context, text string, urgent bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages = append(r.messages, Message{Text: text, Urgent: urgent})
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Message, len(r.messages))
	copy(out, r.messages)

	return out
}

// Urgent returns the recorded urgent messages.
func (r *Recorder) Urgent() []Message {
	var out []Message

	for _, m := range r.Messages() {
		if m.Urgent {
			out = append(out, m)
		}
	}

	return out
}
