// Package biztime holds the business clock. Timestamps are stored in UTC; the
// business timezone only decides calendar-day boundaries for day offsets.
package biztime

import (
	"fmt"
	"sync"
	"time"
)

const DefaultTimezone = "Europe/Paris"

var (
	bizLocation *time.Location
	locMu       sync.RWMutex
)

// Init sets the business timezone. An empty tz selects DefaultTimezone.
func Init(tz string) error {
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", tz, err)
	}
	locMu.Lock()
	bizLocation = loc
	locMu.Unlock()
	return nil
}

func Location() *time.Location {
	locMu.RLock()
	loc := bizLocation
	locMu.RUnlock()
	if loc != nil {
		return loc
	}
	if err := Init(""); err != nil {
		panic(fmt.Sprintf("biztime: failed to auto-initialize: %v", err))
	}
	return Location()
}

func NowUTC() time.Time {
	return time.Now().UTC()
}

// StartOfDayUTC returns 00:00 of t's business day, expressed in UTC.
func StartOfDayUTC(t time.Time) time.Time {
	b := t.In(Location())
	return time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, Location()).UTC()
}

// AddDays moves t by n business calendar days, keeping the wall-clock time
// across DST changes.
func AddDays(t time.Time, n int) time.Time {
	return t.In(Location()).AddDate(0, 0, n).UTC()
}

// DaysBetween counts whole business days from a to b.
func DaysBetween(a, b time.Time) int {
	start := StartOfDayUTC(a)
	end := StartOfDayUTC(b)
	return int(end.Sub(start).Round(24*time.Hour) / (24 * time.Hour))
}

// MonthsBetween counts whole calendar months elapsed from a to b.
func MonthsBetween(a, b time.Time) int {
	if b.Before(a) {
		return 0
	}
	ab, bb := a.In(Location()), b.In(Location())
	months := (bb.Year()-ab.Year())*12 + int(bb.Month()-ab.Month())
	if bb.Day() < ab.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// Clock abstracts "now" so sweeps can be driven deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return NowUTC() }

// SystemClock reads the wall clock in UTC.
func SystemClock() Clock { return systemClock{} }

// ManualClock is a settable Clock.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t.UTC()}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.UTC()
	c.mu.Unlock()
}

// AdvanceDays moves the clock forward n business days.
func (c *ManualClock) AdvanceDays(n int) {
	c.mu.Lock()
	c.now = AddDays(c.now, n)
	c.mu.Unlock()
}
