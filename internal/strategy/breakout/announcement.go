package breakout

import (
	"context"
	"fmt"
	"sync"

	"github.com/rxtech-lab/argo-autotrade/internal/notify"
)

// AnnouncementSet records which symbols had their target announced today.
// It never influences trading decisions.
type AnnouncementSet struct {
	mu        sync.Mutex
	announced map[string]struct{}
}

func NewAnnouncementSet() *AnnouncementSet {
	return &AnnouncementSet{
		mu:        sync.Mutex{},
		announced: make(map[string]struct{}),
	}
}

// MarkAnnounced records code and reports whether it was not yet present.
func (s *AnnouncementSet) MarkAnnounced(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.announced[code]; ok {
		return false
	}

	s.announced[code] = struct{}{}

	return true
}

func (s *AnnouncementSet) Announced(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.announced[code]

	return ok
}

func (s *AnnouncementSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.announced)
}

// Reset clears the set at the start of a trading day.
func (s *AnnouncementSet) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.announced = make(map[string]struct{})
}

// Announcer publishes a target the first time it is seen in a trading day.
type Announcer interface {
	// AnnounceOnce reports whether the target was announced by this call.
	AnnounceOnce(ctx context.Context, target Target) bool
	// Reset forgets every announcement.
	Reset()
}

// NotifyAnnouncer sends an urgent notification per symbol per day.
type NotifyAnnouncer struct {
	set  *AnnouncementSet
	sink notify.Sink
}

func NewNotifyAnnouncer(set *AnnouncementSet, sink notify.Sink) *NotifyAnnouncer {
	return &NotifyAnnouncer{set: set, sink: sink}
}

func (a *NotifyAnnouncer) AnnounceOnce(ctx context.Context, target Target) bool {
	if !a.set.MarkAnnounced(target.Symbol.Code) {
		return false
	}

	if target.Volatility.Fallback && target.Volatility.Warning != nil {
		a.sink.Notify(ctx, fmt.Sprintf("[%s] %v", target.Symbol.Code, target.Volatility.Warning), false)
	}

	a.sink.Notify(ctx, FormatAnnouncement(target), true)

	return true
}

func (a *NotifyAnnouncer) Reset() {
	a.set.Reset()
}

// FormatAnnouncement renders the daily target message.
func FormatAnnouncement(t Target) string {
	return fmt.Sprintf("%s volatility: %.2f%%, multiplier: %.1f, target: $%.2f",
		t.Symbol.Code, t.Volatility.Value*100, t.Multiplier, t.Price)
}
