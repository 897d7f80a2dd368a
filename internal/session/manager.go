// Package session classifies the current time into a trading session
// phase and exposes the phase's position-sizing multiplier and
// the no-trade window check used by RiskGate gate 3.
package session

import "time"

// Phase is a coarse trading-session classification, in UTC.
type Phase string

const (
	PhaseAsian       Phase = "asian"
	PhaseEuropean    Phase = "european"
	PhaseNYMorning   Phase = "ny_morning"
	PhaseNYAfternoon Phase = "ny_afternoon"
	PhaseOvernight   Phase = "overnight"
)

// window is a half-open [start, end) UTC hour-of-day range.
type window struct {
	startHour, endHour int
	phase              Phase
	multiplier         float64
}

// Manager classifies timestamps into session phases and their sizing
// multiplier (NY morning 1.2x, overnight 0.3x, etc).
type Manager struct {
	windows   []window
	openStart time.Duration // minutes after NY morning start still counted as "opening"
}

// NewDefault returns the manager with the documented example windows.
// All boundaries are UTC hour-of-day; ES/NQ trade nearly 24h so every
// hour falls in exactly one phase.
func NewDefault() *Manager {
	return &Manager{
		windows: []window{
			{startHour: 0, endHour: 7, phase: PhaseAsian, multiplier: 0.5},
			{startHour: 7, endHour: 12, phase: PhaseEuropean, multiplier: 0.8},
			{startHour: 12, endHour: 16, phase: PhaseNYMorning, multiplier: 1.2},
			{startHour: 16, endHour: 21, phase: PhaseNYAfternoon, multiplier: 1.0},
			{startHour: 21, endHour: 24, phase: PhaseOvernight, multiplier: 0.3},
		},
		openStart: 15 * time.Minute,
	}
}

// Classify returns the phase and sizing multiplier active at t.
func (m *Manager) Classify(t time.Time) (Phase, float64) {
	h := t.UTC().Hour()
	for _, w := range m.windows {
		if h >= w.startHour && h < w.endHour {
			return w.phase, w.multiplier
		}
	}
	return PhaseOvernight, 0.3
}

// IsOpeningWindow reports whether t falls within the opening-drive
// window used by Opening Drive Fail: the first openStart minutes of
// the NY morning session.
func (m *Manager) IsOpeningWindow(t time.Time) bool {
	u := t.UTC()
	for _, w := range m.windows {
		if w.phase == PhaseNYMorning && u.Hour() >= w.startHour && u.Hour() < w.endHour {
			sinceStart := time.Duration(u.Hour()-w.startHour)*time.Hour + time.Duration(u.Minute())*time.Minute
			return sinceStart < m.openStart
		}
	}
	return false
}

// InTradingWindow reports whether t's HH:MM (UTC) falls within
// [noTradeBefore, noTradeAfter], per RiskGate gate 3.
func InTradingWindow(t time.Time, noTradeBefore, noTradeAfter string) bool {
	before, errB := time.Parse("15:04", noTradeBefore)
	after, errA := time.Parse("15:04", noTradeAfter)
	if errB != nil || errA != nil {
		return true
	}
	hm := t.UTC().Format("15:04")
	cur, err := time.Parse("15:04", hm)
	if err != nil {
		return true
	}
	return !cur.Before(before) && !cur.After(after)
}
