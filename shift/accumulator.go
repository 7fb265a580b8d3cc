/*
accumulator.go - Shift state machine

PURPOSE:
  Tracks one work session from start to end and answers "how long has this
  person actually worked so far?".

STATES:
  NotStarted --Start--> Active --StartBreak--> OnBreak
                          ^  |                   |
                          |  +------End------+   |
                          +----EndBreak------|---+
                                             v
                                           Ended (terminal)

  Illegal transitions fail with a TransitionError that matches one of
  domain.ErrAlreadyActive, domain.ErrNotActive or domain.ErrNotOnBreak.
  The accumulator is never modified by a failed transition.

WORKED TIME:
  worked = (asOf - start) - sum(break durations)
  An open break counts up to asOf. Once ended, asOf is replaced by the end
  time so the value is frozen. The result is never negative.

SEE ALSO:
  - tracker.go: Per-worker sessions and persistence
  - domain/types.go: domain.Shift, the stored form
*/
package shift

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/crew-engine/domain"
)

// State is the position of a shift in its lifecycle.
type State string

const (
	StateNotStarted State = "not_started"
	StateActive     State = "active"
	StateOnBreak    State = "on_break"
	StateEnded      State = "ended"
)

// TransitionError reports an operation that is illegal in the current state.
type TransitionError struct {
	Op    string
	State State
	Err   error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %v (state %s)", e.Op, e.Err, e.State)
}

func (e *TransitionError) Unwrap() error { return e.Err }

// Accumulator is the only thing allowed to change a shift's timeline.
type Accumulator struct {
	start  time.Time
	end    *time.Time
	breaks []domain.Break
	state  State
}

// New returns an accumulator in the NotStarted state.
func New() *Accumulator {
	return &Accumulator{state: StateNotStarted}
}

func (a *Accumulator) State() State { return a.state }

func (a *Accumulator) fail(op string, err error) error {
	return &TransitionError{Op: op, State: a.state, Err: err}
}

// =============================================================================
// TRANSITIONS
// =============================================================================

func (a *Accumulator) Start(at time.Time) error {
	switch a.state {
	case StateNotStarted:
		a.start = at
		a.state = StateActive
		return nil
	case StateEnded:
		return a.fail("start", domain.ErrNotActive)
	default:
		return a.fail("start", domain.ErrAlreadyActive)
	}
}

func (a *Accumulator) StartBreak(at time.Time) error {
	if a.state != StateActive {
		return a.fail("start break", domain.ErrNotActive)
	}
	a.breaks = append(a.breaks, domain.Break{Start: a.clamp(at)})
	a.state = StateOnBreak
	return nil
}

func (a *Accumulator) EndBreak(at time.Time) error {
	if a.state != StateOnBreak {
		return a.fail("end break", domain.ErrNotOnBreak)
	}
	a.closeBreak(at)
	a.state = StateActive
	return nil
}

// End stops the shift. A running break is closed at the same instant.
func (a *Accumulator) End(at time.Time) error {
	switch a.state {
	case StateActive, StateOnBreak:
	default:
		return a.fail("end", domain.ErrNotActive)
	}
	if a.state == StateOnBreak {
		a.closeBreak(at)
	}
	end := a.clamp(at)
	if n := len(a.breaks); n > 0 && a.breaks[n-1].End != nil && a.breaks[n-1].End.After(end) {
		end = *a.breaks[n-1].End
	}
	a.end = &end
	a.state = StateEnded
	return nil
}

// closeBreak never lets a break end before it started.
func (a *Accumulator) closeBreak(at time.Time) {
	last := &a.breaks[len(a.breaks)-1]
	end := at
	if end.Before(last.Start) {
		end = last.Start
	}
	last.End = &end
}

// clamp keeps timestamps inside the shift: nothing happens before start, and
// nothing before the previous break ended.
func (a *Accumulator) clamp(at time.Time) time.Time {
	floor := a.start
	if n := len(a.breaks); n > 0 && a.breaks[n-1].End != nil && a.breaks[n-1].End.After(floor) {
		floor = *a.breaks[n-1].End
	}
	if at.Before(floor) {
		return floor
	}
	return at
}

// =============================================================================
// WORKED TIME
// =============================================================================

// Worked returns the time worked as of asOf, excluding breaks.
func (a *Accumulator) Worked(asOf time.Time) time.Duration {
	if a.state == StateNotStarted {
		return 0
	}
	if a.end != nil {
		asOf = *a.end
	}
	if !asOf.After(a.start) {
		return 0
	}

	total := asOf.Sub(a.start)
	for _, b := range a.breaks {
		total -= breakLength(b, asOf)
	}
	if total < 0 {
		return 0
	}
	return total
}

// BreakTime returns the total break time as of asOf.
func (a *Accumulator) BreakTime(asOf time.Time) time.Duration {
	if a.end != nil {
		asOf = *a.end
	}
	var total time.Duration
	for _, b := range a.breaks {
		total += breakLength(b, asOf)
	}
	return total
}

func breakLength(b domain.Break, asOf time.Time) time.Duration {
	end := asOf
	if b.End != nil && b.End.Before(asOf) {
		end = *b.End
	}
	if !end.After(b.Start) {
		return 0
	}
	return end.Sub(b.Start)
}

// WorkedHours is Worked expressed as decimal hours.
func (a *Accumulator) WorkedHours(asOf time.Time) decimal.Decimal {
	return domain.HoursOf(a.Worked(asOf))
}

// =============================================================================
// SNAPSHOT / RESTORE
// =============================================================================

// Started returns the start instant (zero when NotStarted).
func (a *Accumulator) Started() time.Time { return a.start }

// Ended returns the end instant, nil while the shift runs.
func (a *Accumulator) Ended() *time.Time {
	if a.end == nil {
		return nil
	}
	e := *a.end
	return &e
}

// Snapshot copies the timeline into s, leaving the identity fields alone.
func (a *Accumulator) Snapshot(s domain.Shift) domain.Shift {
	s.Start = a.start
	s.End = a.Ended()
	s.Breaks = copyBreaks(a.breaks)
	return s
}

func copyBreaks(in []domain.Break) []domain.Break {
	out := make([]domain.Break, len(in))
	for i, b := range in {
		out[i] = domain.Break{Start: b.Start}
		if b.End != nil {
			e := *b.End
			out[i].End = &e
		}
	}
	return out
}

// Restore rebuilds an accumulator from a stored shift after checking that
// the breaks are ordered, non-overlapping and inside the shift, and that
// only the last break is open (and only while the shift is running).
func Restore(s domain.Shift) (*Accumulator, error) {
	if s.Start.IsZero() {
		return nil, invalid(s, errors.New("missing start"))
	}
	if s.End != nil && s.End.Before(s.Start) {
		return nil, invalid(s, errors.New("end before start"))
	}

	prev := s.Start
	for i, b := range s.Breaks {
		last := i == len(s.Breaks)-1
		switch {
		case b.Start.Before(prev):
			return nil, invalid(s, fmt.Errorf("break %d starts before %s", i, prev.Format(time.RFC3339)))
		case b.End == nil && (!last || s.End != nil):
			return nil, invalid(s, fmt.Errorf("break %d is open", i))
		case b.End != nil && b.End.Before(b.Start):
			return nil, invalid(s, fmt.Errorf("break %d ends before it starts", i))
		case s.End != nil && b.End != nil && b.End.After(*s.End):
			return nil, invalid(s, fmt.Errorf("break %d ends after the shift", i))
		}
		if b.End != nil {
			prev = *b.End
		}
	}

	a := &Accumulator{start: s.Start, state: StateActive}
	a.breaks = copyBreaks(s.Breaks)
	if s.End != nil {
		e := *s.End
		a.end = &e
		a.state = StateEnded
	} else if n := len(a.breaks); n > 0 && a.breaks[n-1].End == nil {
		a.state = StateOnBreak
	}
	return a, nil
}

func invalid(s domain.Shift, err error) error {
	return fmt.Errorf("shift %s: %w: %v", s.ID, domain.ErrInvalidShift, err)
}
