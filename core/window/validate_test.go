package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var vnow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// day returns vnow + n days.
func day(n int) time.Time { return vnow.Add(time.Duration(n) * 24 * time.Hour) }

func win(id, phase, track, cycle string, start, end time.Time) Window {
	return Window{
		ID: id, Phase: phase, Track: track, Cycle: cycle,
		StartsAt: start, EndsAt: end, Enforced: true,
	}
}

func codes(vs Violations) []string {
	if len(vs) == 0 {
		return nil
	}
	cs := make([]string, 0, len(vs))
	for _, v := range vs {
		cs = append(cs, v.Code)
	}
	return cs
}

// The first window of a track has nothing to conflict with.
func Test_Validate_firstWindow(t *testing.T) {
	proposed := win("", PhaseProposal, TrackIDP, CycleNone, day(1), day(10))
	vs := Validate(proposed, nil, nil, "", Policy{RequireFutureStart: true}, vnow)
	assert.Empty(t, vs)
}

func Test_Validate_dateSanity(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Time
		policy     Policy
		wantCodes  []string
	}{
		{"end before start", day(10), day(1), Policy{}, []string{ViolationDateOrder}},
		{"end equals start", day(1), day(1), Policy{}, []string{ViolationDateOrder}},
		{"start in past, policy off", day(-1), day(10), Policy{}, nil},
		{"start in past, policy on", day(-1), day(10), Policy{RequireFutureStart: true}, []string{ViolationStartInPast}},
		{"start is now, policy on", vnow, day(10), Policy{RequireFutureStart: true}, []string{ViolationStartInPast}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proposed := win("", PhaseProposal, TrackIDP, CycleNone, tt.start, tt.end)
			vs := Validate(proposed, nil, nil, "", tt.policy, vnow)
			assert.Equal(t, tt.wantCodes, codes(vs))
		})
	}
}

func Test_Validate_identity(t *testing.T) {
	tests := []struct {
		name                string
		phase, track, cycle string
		wantCodes           []string
	}{
		{"unknown phase", "enrollment", TrackIDP, CycleNone, []string{ViolationInvalidPhase}},
		{"unknown track", PhaseProposal, "PHD", CycleNone, []string{ViolationInvalidTrack}},
		{"submission without cycle", PhaseSubmission, TrackIDP, CycleNone, []string{ViolationInvalidCycle}},
		{"unknown cycle", PhaseAssessment, TrackIDP, "CLA-9", []string{ViolationInvalidCycle}},
		{"proposal with cycle", PhaseProposal, TrackIDP, CycleCLA1, []string{ViolationInvalidCycle}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proposed := win("", tt.phase, tt.track, tt.cycle, day(1), day(10))
			vs := Validate(proposed, nil, nil, "", Policy{}, vnow)
			assert.Equal(t, tt.wantCodes, codes(vs))
		})
	}
}

// An application window starting before the proposal window ends is a
// precedence violation naming proposal.
func Test_Validate_precedence(t *testing.T) {
	proposal := win("w1", PhaseProposal, TrackIDP, CycleNone, day(1), day(10))

	proposed := win("", PhaseApplication, TrackIDP, CycleNone, day(20), day(30))
	vs := Validate(proposed, []Window{proposal}, nil, "", Policy{}, vnow)
	assert.Empty(t, vs)

	// too early: inside the proposal window it is also an overlap
	proposed = win("", PhaseApplication, TrackIDP, CycleNone, day(5), day(15))
	vs = Validate(proposed, []Window{proposal}, nil, "", Policy{}, vnow)
	require.NotEmpty(t, vs)
	assert.Contains(t, codes(vs), ViolationPrereqOrder)

	var order Violation
	for _, v := range vs {
		if v.Code == ViolationPrereqOrder {
			order = v
		}
	}
	require.NotNil(t, order.Step)
	assert.Equal(t, PhaseProposal, order.Step.Phase)
	require.NotNil(t, order.NotBefore)
	assert.True(t, order.NotBefore.Equal(proposal.EndsAt))

	// start exactly at the prerequisite's end is still too early (strictly after)
	proposed = win("", PhaseApplication, TrackIDP, CycleNone, day(10), day(15))
	vs = Validate(proposed, []Window{proposal}, nil, "", Policy{}, vnow)
	assert.Contains(t, codes(vs), ViolationPrereqOrder)
}

func Test_Validate_missingPrerequisite(t *testing.T) {
	proposed := win("", PhaseApplication, TrackIDP, CycleNone, day(1), day(10))
	vs := Validate(proposed, nil, nil, "", Policy{}, vnow)
	require.Len(t, vs, 1)
	assert.Equal(t, ViolationPrereqMissing, vs[0].Code)
	assert.Equal(t, PhaseProposal, vs[0].Step.Phase)
}

// Overlap spans phase kinds within a track.
func Test_Validate_crossPhaseOverlap(t *testing.T) {
	proposal := win("w1", PhaseProposal, TrackIDP, CycleNone, day(1), day(10))
	application := win("w2", PhaseApplication, TrackIDP, CycleNone, day(11), day(20))

	proposed := win("", PhaseSubmission, TrackIDP, CycleCLA1, day(15), day(25))
	vs := Validate(proposed, []Window{proposal, application}, nil, "", Policy{}, vnow)
	assert.Contains(t, codes(vs), ViolationOverlap)

	var overlap Violation
	for _, v := range vs {
		if v.Code == ViolationOverlap {
			overlap = v
		}
	}
	assert.Equal(t, "w2", overlap.WindowID)
	require.NotNil(t, overlap.Step)
	assert.Equal(t, PhaseApplication, overlap.Step.Phase)
}

func Test_Validate_overlapIgnoresOtherTracks(t *testing.T) {
	urop := win("w1", PhaseApplication, TrackUROP, CycleNone, day(1), day(10))

	proposed := win("", PhaseProposal, TrackIDP, CycleNone, day(5), day(15))
	vs := Validate(proposed, []Window{urop}, nil, "", Policy{}, vnow)
	assert.Empty(t, vs)
}

func Test_Validate_slotTaken(t *testing.T) {
	existing := win("w1", PhaseProposal, TrackIDP, CycleNone, day(1), day(10))

	// not-yet-ended same tuple: rejected (also overlaps here, but the slot
	// violation must be present on its own)
	proposed := win("", PhaseProposal, TrackIDP, CycleNone, day(20), day(30))
	vs := Validate(proposed, []Window{existing}, nil, "", Policy{}, vnow)
	assert.Contains(t, codes(vs), ViolationSlotTaken)

	// the same window being edited is not a conflict with itself
	vs = Validate(win("w1", PhaseProposal, TrackIDP, CycleNone, day(20), day(30)),
		[]Window{existing}, nil, "w1", Policy{}, vnow)
	assert.Empty(t, vs)

	// an ended window frees its slot
	ended := win("w1", PhaseProposal, TrackIDP, CycleNone, day(-10), day(-5))
	vs = Validate(proposed, []Window{ended}, nil, "", Policy{}, vnow)
	for _, v := range vs {
		assert.NotEqual(t, ViolationSlotTaken, v.Code)
	}
}

// A grade_release window with a missing assessment cycle is rejected with
// a distinct "not created" violation naming that cycle.
func Test_Validate_gradeReleaseFanIn(t *testing.T) {
	existing := make([]Window, 0, len(Sequence()))
	d := 0
	for _, step := range Sequence()[:len(Sequence())-1] {
		existing = append(existing, win(step.String(), step.Phase, TrackIDP, step.Cycle, day(d), day(d+5)))
		d += 10
	}

	// drop assessment(External); the worst case for a linear-chain model
	var partial []Window
	for _, w := range existing {
		if w.Phase == PhaseAssessment && w.Cycle == CycleExternal {
			continue
		}
		partial = append(partial, w)
	}

	proposed := win("", PhaseGradeRelease, TrackIDP, CycleNone, day(d+10), day(d+20))
	vs := Validate(proposed, partial, nil, "", Policy{}, vnow)
	require.Len(t, vs, 1)
	assert.Equal(t, ViolationPrereqMissing, vs[0].Code)
	assert.Equal(t, &Step{Phase: PhaseAssessment, Cycle: CycleExternal}, vs[0].Step)

	// all four present: accepted
	vs = Validate(proposed, existing, nil, "", Policy{}, vnow)
	assert.Empty(t, vs)
}

func Test_Validate_idpProposalPrecedence(t *testing.T) {
	idp := win("w1", PhaseProposal, TrackIDP, CycleNone, day(1), day(10))

	// UROP proposal starting inside the live IDP proposal window: rejected
	proposed := win("", PhaseProposal, TrackUROP, CycleNone, day(5), day(15))
	vs := Validate(proposed, nil, []Window{idp}, "", Policy{}, vnow)
	require.Len(t, vs, 1)
	assert.Equal(t, ViolationIDPPrecedence, vs[0].Code)
	require.NotNil(t, vs[0].NotBefore)
	assert.True(t, vs[0].NotBefore.Equal(idp.EndsAt))

	// after the IDP window ends: accepted
	proposed = win("", PhaseProposal, TrackUROP, CycleNone, day(11), day(20))
	vs = Validate(proposed, nil, []Window{idp}, "", Policy{}, vnow)
	assert.Empty(t, vs)

	// an already-ended IDP window imposes nothing
	endedIDP := win("w1", PhaseProposal, TrackIDP, CycleNone, day(-10), day(-5))
	proposed = win("", PhaseProposal, TrackUROP, CycleNone, day(1), day(5))
	vs = Validate(proposed, nil, []Window{endedIDP}, "", Policy{}, vnow)
	assert.Empty(t, vs)

	// IDP itself is exempt
	proposed = win("", PhaseProposal, TrackIDP, CycleNone, day(11), day(20))
	vs = Validate(proposed, nil, []Window{idp}, "", Policy{}, vnow)
	for _, v := range vs {
		assert.NotEqual(t, ViolationIDPPrecedence, v.Code)
	}
}

// violations accumulate; no check short-circuits another.
func Test_Validate_accumulatesAll(t *testing.T) {
	proposal := win("w1", PhaseProposal, TrackIDP, CycleNone, day(1), day(10))

	// bad date order + overlap + missing prerequisite + slot: all reported
	proposed := win("", PhaseProposal, TrackIDP, CycleNone, day(5), day(2))
	vs := Validate(proposed, []Window{proposal}, nil, "", Policy{RequireFutureStart: true}, day(6))
	got := codes(vs)
	assert.Contains(t, got, ViolationDateOrder)
	assert.Contains(t, got, ViolationStartInPast)
	assert.Contains(t, got, ViolationSlotTaken)
}
