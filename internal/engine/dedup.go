package engine

import (
	"cmp"
	"slices"
	"time"
)

// DefaultExpiration is the minimum gap between two firings of one identity.
const DefaultExpiration = 24 * time.Hour

// Record is the last firing of an identity.
type Record struct {
	Identity    string    `json:"identity"`
	LastFiredAt time.Time `json:"last_fired_at"`
}

// Deduplicator suppresses repeated firings of the same identity within the
// expiration window. It is not safe for concurrent use; Processor serializes
// access.
type Deduplicator struct {
	window time.Duration
	fired  map[string]time.Time
}

func NewDeduplicator(window time.Duration) *Deduplicator {
	if window <= 0 {
		window = DefaultExpiration
	}
	return &Deduplicator{
		window: window,
		fired:  make(map[string]time.Time),
	}
}

func (d *Deduplicator) Window() time.Duration { return d.window }

// ShouldFire reports whether identity may fire at now. A record stamped in
// the future cannot be trusted and is dropped.
func (d *Deduplicator) ShouldFire(identity string, now time.Time) bool {
	last, ok := d.fired[identity]
	if !ok {
		return true
	}
	if last.After(now) {
		delete(d.fired, identity)
		return true
	}
	return now.Sub(last) > d.window
}

func (d *Deduplicator) MarkFired(identity string, now time.Time) {
	d.fired[identity] = now
}

// Sweep drops every record older than twice the window and returns how many
// were removed. It must run after the cycle's fire decisions.
func (d *Deduplicator) Sweep(now time.Time) int {
	removed := 0
	for id, last := range d.fired {
		if now.Sub(last) > 2*d.window {
			delete(d.fired, id)
			removed++
		}
	}
	return removed
}

// Reset forgets identity.
func (d *Deduplicator) Reset(identity string) {
	delete(d.fired, identity)
}

func (d *Deduplicator) Len() int { return len(d.fired) }

// Armed lists the current records ordered by identity.
func (d *Deduplicator) Armed() []Record {
	out := make([]Record, 0, len(d.fired))
	for id, last := range d.fired {
		out = append(out, Record{Identity: id, LastFiredAt: last})
	}
	slices.SortFunc(out, func(a, b Record) int { return cmp.Compare(a.Identity, b.Identity) })
	return out
}
