package window

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
)

// Decision is the context attached to a request once the gate has ruled;
// downstream handlers may read it (eg. to display remaining time).
type Decision struct {
	Track     string    `json:"track"`
	Step      Step      `json:"step"`
	Allowed   bool      `json:"allowed"`
	Bypassed  bool      `json:"bypassed"`
	IsActive  bool      `json:"is_active"`
	Window    *Window   `json:"window,omitempty"` // matched window, if any
	CheckedAt time.Time `json:"checked_at"`
}

// AuthorizationError: a matching enforced window exists and `now` falls
// outside its bounds, with no bypass. Bounds and the check instant ride along
// for diagnostic display.
type AuthorizationError struct {
	Track  string
	Step   Step
	Window Window
	Now    time.Time
}

func (e *AuthorizationError) Error() string {
	switch e.Window.Status(e.Now) {
	case StatusUpcoming:
		return fmt.Sprintf("the %s %s window opens on %s", e.Track, e.Step, e.Window.StartsAt.Format(time.RFC1123))
	default:
		return fmt.Sprintf("the %s %s window closed on %s", e.Track, e.Step, e.Window.EndsAt.Format(time.RFC1123))
	}
}

// Gate is the request-time enforcement check gating protected actions on
// whether their phase window is currently open.
//
// A window's enforcement state is never stored: it is derived from the wall
// clock on every check, so it moves from upcoming to active to ended and
// never back.
type Gate struct {
	repo Repository
}

func NewGate(repo Repository) *Gate {
	return &Gate{repo: repo}
}

// Check rules on access to an action bound to one or more sequence steps of
// `track`, with OR semantics over targets: access is allowed if any target's
// window currently permits it. Rules, per target:
//
//   - no window configured: allow, absence of configuration is not a denial;
//   - window not enforced: allow regardless of time;
//   - otherwise allow iff the window is active at NowFunc().
//
// A caller-established bypass (privileged capability) allows unconditionally.
// The returned Decision is only meaningful when err is nil; a denial comes
// back as *AuthorizationError carrying the closest matched window.
func (g *Gate) Check(ctx context.Context, track string, bypassed bool, targets ...Step) (Decision, error) {
	if !IsValidTrack(track) {
		return Decision{}, core.NewValidationError(
			fmt.Errorf("unknown track %q", track),
			core.FieldError{Field: "track", Error: "a valid track is required"},
		)
	}
	if len(targets) == 0 {
		return Decision{}, errors.New("no enforcement targets declared")
	}

	now := core.NowFunc()
	if bypassed {
		return Decision{
			Track:     track,
			Step:      targets[0],
			Allowed:   true,
			Bypassed:  true,
			CheckedAt: now,
		}, nil
	}

	var denied *AuthorizationError
	for _, target := range targets {
		w, err := g.repo.GetWindowByStep(ctx, track, target)
		if err != nil {
			if err == ErrNotFound {
				// open by default
				return Decision{Track: track, Step: target, Allowed: true, CheckedAt: now}, nil
			}
			return Decision{}, errors.Wrap(err, "looking up window")
		}

		if !w.Enforced || w.IsActive(now) {
			w := w
			return Decision{
				Track:     track,
				Step:      target,
				Allowed:   true,
				IsActive:  w.IsActive(now),
				Window:    &w,
				CheckedAt: now,
			}, nil
		}
		if denied == nil {
			denied = &AuthorizationError{Track: track, Step: target, Window: w, Now: now}
		}
	}
	return Decision{}, denied
}
