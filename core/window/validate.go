package window

import (
	"fmt"
	"strings"
	"time"
)

// Violation codes
const (
	ViolationDateOrder     = "date_order"
	ViolationStartInPast   = "start_in_past"
	ViolationInvalidPhase  = "invalid_phase"
	ViolationInvalidTrack  = "invalid_track"
	ViolationInvalidCycle  = "invalid_cycle"
	ViolationOverlap       = "overlap"
	ViolationSlotTaken     = "slot_taken"
	ViolationPrereqMissing = "prerequisite_missing"
	ViolationPrereqOrder   = "prerequisite_order"
	ViolationIDPPrecedence = "idp_proposal_precedence"
)

// Violation is one business rule failure for a proposed window. It carries
// enough structure for a client to render its own message: the offending
// field, the conflicting/prerequisite step and, when relevant, the instant
// the proposed window must start after.
type Violation struct {
	Code       string     `json:"code"`
	Field      string     `json:"field,omitempty"`
	Message    string     `json:"message"`
	Step       *Step      `json:"step,omitempty"`        // conflicting or prerequisite step
	WindowID   string     `json:"window_id,omitempty"`   // conflicting window, if persisted
	NotBefore  *time.Time `json:"not_before,omitempty"`  // proposed start must be strictly after this
	ConflictAt *time.Time `json:"conflict_at,omitempty"` // conflicting window's start
}

// Violations accumulates every rule failure found for one proposed window;
// it implements error so services can return it as the write-blocking result.
type Violations []Violation

func (vs Violations) Error() string {
	msgs := make([]string, 0, len(vs))
	for _, v := range vs {
		msgs = append(msgs, v.Message)
	}
	return strings.Join(msgs, "; ")
}

// Policy holds the validation knobs that are deployment policy rather than
// hard invariants.
type Policy struct {
	// RequireFutureStart rejects proposed windows starting at or before `now`.
	RequireFutureStart bool
}

// Validate checks a proposed window against every scheduling rule and returns
// the full set of violations. Checks are independent and never short-circuit,
// so the caller can surface the complete list in one pass. An empty result
// means the proposal may be persisted (subject to the store's own constraints;
// see the repository implementations).
//
//   - sameTrack: every existing window of proposed.Track.
//   - idpProposals: existing IDP proposal windows; only consulted when the
//     proposed window is a non-IDP proposal (IDP is the first-mover track for
//     the proposal phase).
//   - editingID: the window being edited, excluded from conflict checks;
//     empty on create.
func Validate(proposed Window, sameTrack, idpProposals []Window, editingID string, policy Policy, now time.Time) Violations {
	var vs Violations

	vs = append(vs, validateIdentity(proposed)...)
	vs = append(vs, validateDates(proposed, policy, now)...)
	vs = append(vs, validateOverlap(proposed, sameTrack, editingID)...)
	vs = append(vs, validateSlot(proposed, sameTrack, editingID, now)...)
	vs = append(vs, validatePrecedence(proposed, sameTrack, editingID)...)
	vs = append(vs, validateIDPPrecedence(proposed, idpProposals, now)...)

	return vs
}

func validateIdentity(proposed Window) Violations {
	var vs Violations
	if !IsValidPhase(proposed.Phase) {
		vs = append(vs, Violation{
			Code:    ViolationInvalidPhase,
			Field:   "phase",
			Message: fmt.Sprintf("unknown phase %q", proposed.Phase),
		})
	}
	if !IsValidTrack(proposed.Track) {
		vs = append(vs, Violation{
			Code:    ViolationInvalidTrack,
			Field:   "track",
			Message: fmt.Sprintf("unknown track %q", proposed.Track),
		})
	}
	switch {
	case PhaseHasCycle(proposed.Phase) && !IsValidCycle(proposed.Cycle):
		vs = append(vs, Violation{
			Code:    ViolationInvalidCycle,
			Field:   "cycle",
			Message: fmt.Sprintf("%s windows require a valid cycle, got %q", proposed.Phase, proposed.Cycle),
		})
	case !PhaseHasCycle(proposed.Phase) && IsValidPhase(proposed.Phase) && proposed.Cycle != CycleNone:
		vs = append(vs, Violation{
			Code:    ViolationInvalidCycle,
			Field:   "cycle",
			Message: fmt.Sprintf("%s windows take no cycle", proposed.Phase),
		})
	}
	return vs
}

func validateDates(proposed Window, policy Policy, now time.Time) Violations {
	var vs Violations
	if !proposed.EndsAt.After(proposed.StartsAt) {
		vs = append(vs, Violation{
			Code:    ViolationDateOrder,
			Field:   "ends_at",
			Message: "end must be after start",
		})
	}
	if policy.RequireFutureStart && !proposed.StartsAt.After(now) {
		vs = append(vs, Violation{
			Code:      ViolationStartInPast,
			Field:     "starts_at",
			Message:   "start must be in the future",
			NotBefore: &now,
		})
	}
	return vs
}

// validateOverlap rejects any time overlap with another window of the same
// track, regardless of phase kind: phases of one track occupy disjoint time.
func validateOverlap(proposed Window, sameTrack []Window, editingID string) Violations {
	var vs Violations
	for _, w := range sameTrack {
		if w.ID == editingID || w.Track != proposed.Track {
			continue
		}
		if proposed.Overlaps(w.StartsAt, w.EndsAt) {
			w := w
			step := w.Step()
			vs = append(vs, Violation{
				Code:       ViolationOverlap,
				Field:      "starts_at",
				Message:    fmt.Sprintf("overlaps the %s window (%s – %s)", w.Label(), w.StartsAt.Format(time.RFC3339), w.EndsAt.Format(time.RFC3339)),
				Step:       &step,
				WindowID:   w.ID,
				ConflictAt: &w.StartsAt,
				NotBefore:  &w.EndsAt,
			})
		}
	}
	return vs
}

// validateSlot enforces tuple uniqueness: at most one not-yet-ended window per
// (phase, track, cycle).
func validateSlot(proposed Window, sameTrack []Window, editingID string, now time.Time) Violations {
	for _, w := range sameTrack {
		if w.ID == editingID {
			continue
		}
		if w.Step() == proposed.Step() && !w.Ended(now) {
			step := w.Step()
			return Violations{{
				Code:     ViolationSlotTaken,
				Field:    "phase",
				Message:  fmt.Sprintf("a %s window already exists for this track", w.Label()),
				Step:     &step,
				WindowID: w.ID,
			}}
		}
	}
	return nil
}

// validatePrecedence requires every prerequisite step's window to exist and to
// end strictly before the proposed start.
func validatePrecedence(proposed Window, sameTrack []Window, editingID string) Violations {
	var vs Violations
	for _, prereq := range Prerequisites(proposed.Phase, proposed.Cycle) {
		prereq := prereq
		pw, ok := findStep(sameTrack, prereq, editingID)
		if !ok {
			vs = append(vs, Violation{
				Code:    ViolationPrereqMissing,
				Field:   "phase",
				Message: fmt.Sprintf("the %s window has not been created yet", prereq),
				Step:    &prereq,
			})
			continue
		}
		if !proposed.StartsAt.After(pw.EndsAt) {
			vs = append(vs, Violation{
				Code:      ViolationPrereqOrder,
				Field:     "starts_at",
				Message:   fmt.Sprintf("must start after the %s window ends (%s)", prereq, pw.EndsAt.Format(time.RFC3339)),
				Step:      &prereq,
				WindowID:  pw.ID,
				NotBefore: &pw.EndsAt,
			})
		}
	}
	return vs
}

// validateIDPPrecedence: IDP is the privileged first-mover track for the
// proposal phase; a non-IDP proposal may only start after the current
// (active or upcoming) IDP proposal window has ended.
func validateIDPPrecedence(proposed Window, idpProposals []Window, now time.Time) Violations {
	if proposed.Phase != PhaseProposal || proposed.Track == TrackIDP {
		return nil
	}
	var vs Violations
	for _, w := range idpProposals {
		if w.Track != TrackIDP || w.Phase != PhaseProposal || w.Ended(now) {
			continue
		}
		if !proposed.StartsAt.After(w.EndsAt) {
			w := w
			step := w.Step()
			vs = append(vs, Violation{
				Code:      ViolationIDPPrecedence,
				Field:     "starts_at",
				Message:   fmt.Sprintf("%s proposals must start after the IDP proposal window ends (%s)", proposed.Track, w.EndsAt.Format(time.RFC3339)),
				Step:      &step,
				WindowID:  w.ID,
				NotBefore: &w.EndsAt,
			})
		}
	}
	return vs
}

func findStep(windows []Window, step Step, editingID string) (Window, bool) {
	for _, w := range windows {
		if w.ID != editingID && w.Step() == step {
			return w, true
		}
	}
	return Window{}, false
}
