package window

import (
	"fmt"
	"strings"
	"time"

	"github.com/trezcool/ratiba/core"
)

// Tracks
const (
	TrackIDP      = "IDP"
	TrackUROP     = "UROP"
	TrackCapstone = "CAPSTONE"
)

// Phase kinds
const (
	PhaseProposal     = "proposal"
	PhaseApplication  = "application"
	PhaseSubmission   = "submission"
	PhaseAssessment   = "assessment"
	PhaseGradeRelease = "grade_release"
)

// Assessment cycles; CycleNone for the cycle-less phases.
const (
	CycleNone     = ""
	CycleCLA1     = "CLA-1"
	CycleCLA2     = "CLA-2"
	CycleCLA3     = "CLA-3"
	CycleExternal = "External"
)

var (
	AllTracks = []string{TrackIDP, TrackUROP, TrackCapstone}
	AllPhases = []string{PhaseProposal, PhaseApplication, PhaseSubmission, PhaseAssessment, PhaseGradeRelease}
	AllCycles = []string{CycleCLA1, CycleCLA2, CycleCLA3, CycleExternal}
)

func IsValidTrack(track string) bool { return contains(AllTracks, track) }
func IsValidPhase(phase string) bool { return contains(AllPhases, phase) }
func IsValidCycle(cycle string) bool { return contains(AllCycles, cycle) }

// PhaseHasCycle reports whether windows of this phase kind are scoped to an
// assessment cycle.
func PhaseHasCycle(phase string) bool {
	return phase == PhaseSubmission || phase == PhaseAssessment
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// Status of a Window relative to a wall-clock instant. Never persisted;
// always derived. A window moves from upcoming to active to ended and
// never back.
type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusActive   Status = "active"
	StatusEnded    Status = "ended"
)

// Window is a time interval during which a (phase, track[, cycle]) combination
// is open for action.
type Window struct {
	ID        string    `json:"id"`
	Phase     string    `json:"phase"`
	Track     string    `json:"track"`
	Cycle     string    `json:"cycle,omitempty"`
	StartsAt  time.Time `json:"starts_at"` // UTC
	EndsAt    time.Time `json:"ends_at"`   // UTC
	Enforced  bool      `json:"enforced"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Status classifies the window against `now`. Pure: same (window, now) pair,
// same answer. The interval is inclusive on both bounds for enforcement.
func (w Window) Status(now time.Time) Status {
	if now.Before(w.StartsAt) {
		return StatusUpcoming
	}
	if now.After(w.EndsAt) {
		return StatusEnded
	}
	return StatusActive
}

func (w Window) IsActive(now time.Time) bool { return w.Status(now) == StatusActive }

// Ended reports whether the window is strictly in the past.
func (w Window) Ended(now time.Time) bool { return w.Status(now) == StatusEnded }

// Overlaps is the standard half-open [start, end) interval overlap test.
func (w Window) Overlaps(start, end time.Time) bool {
	return start.Before(w.EndsAt) && end.After(w.StartsAt)
}

// Step is the window's position in the phase sequence.
func (w Window) Step() Step { return Step{Phase: w.Phase, Cycle: w.Cycle} }

func (w Window) Label() string {
	if w.Cycle != "" {
		return fmt.Sprintf("%s (%s)", w.Phase, w.Cycle)
	}
	return w.Phase
}

// QueryFilter applies an AND operation on available fields.
type QueryFilter struct {
	Track    string
	Phase    string
	Cycle    string
	IsActive *bool // windows active at NowFunc()
}

// Match is the in-memory predicate equivalent of the filter; the SQL repo
// compiles the same conditions into its WHERE clause.
func (f QueryFilter) Match(w Window, now time.Time) bool {
	if f.Track != "" && w.Track != f.Track {
		return false
	}
	if f.Phase != "" && w.Phase != f.Phase {
		return false
	}
	if f.Cycle != "" && w.Cycle != f.Cycle {
		return false
	}
	if f.IsActive != nil && w.IsActive(now) != *f.IsActive {
		return false
	}
	return true
}

// NewWindow is the window creation payload.
type NewWindow struct {
	Phase    string    `json:"phase" validate:"required"`
	Track    string    `json:"track" validate:"required"`
	Cycle    string    `json:"cycle"`
	StartsAt time.Time `json:"starts_at" validate:"required"`
	EndsAt   time.Time `json:"ends_at" validate:"required"`
	Enforced *bool     `json:"enforced"` // defaults to true
}

// UpdateWindow is the window edit payload; zero-valued fields keep their
// current value.
type UpdateWindow struct {
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	Enforced *bool     `json:"enforced"`
}

func (nw NewWindow) window(createdBy string) Window {
	now := core.NowFunc()
	w := Window{
		Phase:     core.CleanString(nw.Phase, true /* lower */),
		Track:     strings.ToUpper(core.CleanString(nw.Track)),
		Cycle:     core.CleanString(nw.Cycle),
		StartsAt:  nw.StartsAt.UTC(),
		EndsAt:    nw.EndsAt.UTC(),
		Enforced:  true,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nw.Enforced != nil {
		w.Enforced = *nw.Enforced
	}
	return w
}
