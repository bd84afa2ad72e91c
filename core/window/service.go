package window

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/trezcool/ratiba/core"
)

var (
	// errors
	ErrNotFound        = errors.New("window not found")
	ErrOverlapConflict = errors.New("window overlaps an existing window for this track")
	ErrSlotConflict    = errors.New("a window already exists for this phase")
)

type (
	Repository interface {
		CreateWindow(ctx context.Context, w Window) (Window, error)
		GetWindowByID(ctx context.Context, id string) (Window, error)
		// GetWindowByStep returns the single not-yet-deleted window for
		// (track, step), or ErrNotFound.
		GetWindowByStep(ctx context.Context, track string, step Step) (Window, error)
		QueryWindowsByTrack(ctx context.Context, track string) ([]Window, error)
		// FilterWindows applies AND operation on available QueryFilter fields.
		FilterWindows(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Window, error)
		UpdateWindow(ctx context.Context, w Window) (Window, error)
		DeleteWindowsByID(ctx context.Context, ids ...string) error
	}

	// RecipientsFunc resolves who gets notified of schedule changes
	// (typically the track coordinators); supplied by the composition root.
	RecipientsFunc func(ctx context.Context) []mail.Address

	Service struct {
		repo       Repository
		mailSvc    core.EmailService
		policy     Policy
		recipients RecipientsFunc
	}
)

func NewService(repo Repository, mailSvc core.EmailService, policy Policy, recipients ...RecipientsFunc) *Service {
	svc := &Service{
		repo:    repo,
		mailSvc: mailSvc,
		policy:  policy,
	}
	if len(recipients) > 0 {
		svc.recipients = recipients[0]
	}
	return svc
}

// Create validates a proposed window against every scheduling rule and
// persists it. Business failures come back as Violations; the store-level
// constraints remain the final arbiter under concurrency, and their conflict
// errors are mapped back to Violations too.
func (svc *Service) Create(ctx context.Context, nw NewWindow, createdBy string) (Window, error) {
	proposed := nw.window(createdBy)
	if vs, err := svc.validate(ctx, proposed, ""); err != nil {
		return Window{}, err
	} else if len(vs) > 0 {
		return Window{}, vs
	}

	w, err := svc.repo.CreateWindow(ctx, proposed)
	if err != nil {
		return Window{}, svc.trapConflictErr(err)
	}
	svc.notify(ctx, w, "scheduled")
	return w, nil
}

// Update shifts a window's dates and/or its enforced flag; identity fields
// (phase, track, cycle) are immutable once created.
func (svc *Service) Update(ctx context.Context, id string, uw UpdateWindow) (Window, error) {
	w, err := svc.repo.GetWindowByID(ctx, id)
	if err != nil {
		return Window{}, err
	}

	alreadyStarted := !w.StartsAt.After(core.NowFunc())
	if !uw.StartsAt.IsZero() {
		w.StartsAt = uw.StartsAt.UTC()
	}
	if !uw.EndsAt.IsZero() {
		w.EndsAt = uw.EndsAt.UTC()
	}
	if uw.Enforced != nil {
		w.Enforced = *uw.Enforced
	}
	w.UpdatedAt = core.NowFunc()

	if vs, err := svc.validateEdit(ctx, w, alreadyStarted); err != nil {
		return Window{}, err
	} else if len(vs) > 0 {
		return Window{}, vs
	}

	w, err = svc.repo.UpdateWindow(ctx, w)
	if err != nil {
		return Window{}, svc.trapConflictErr(err)
	}
	svc.notify(ctx, w, "rescheduled")
	return w, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Window, error) {
	return svc.repo.GetWindowByID(ctx, id)
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Window, error) {
	return svc.repo.FilterWindows(ctx, filter, ordering...)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteWindowsByID(ctx, ids...)
}

func (svc *Service) validate(ctx context.Context, proposed Window, editingID string) (Violations, error) {
	return svc.validateWith(ctx, proposed, editingID, svc.policy)
}

// validateEdit relaxes the future-start policy for windows that had already
// started before the edit: shifting an in-flight window's end must not be
// rejected because its start is in the past.
func (svc *Service) validateEdit(ctx context.Context, proposed Window, alreadyStarted bool) (Violations, error) {
	policy := svc.policy
	if alreadyStarted {
		policy.RequireFutureStart = false
	}
	return svc.validateWith(ctx, proposed, proposed.ID, policy)
}

func (svc *Service) validateWith(ctx context.Context, proposed Window, editingID string, policy Policy) (Violations, error) {
	sameTrack, err := svc.repo.QueryWindowsByTrack(ctx, proposed.Track)
	if err != nil {
		return nil, err
	}

	var idpProposals []Window
	if proposed.Phase == PhaseProposal && proposed.Track != TrackIDP {
		idpProposals, err = svc.repo.FilterWindows(ctx, QueryFilter{Track: TrackIDP, Phase: PhaseProposal})
		if err != nil {
			return nil, err
		}
	}

	return Validate(proposed, sameTrack, idpProposals, editingID, policy, core.NowFunc()), nil
}

// trapConflictErr maps store constraint errors (the TOCTOU race losers) back
// to Violations so callers still get a structured business error.
func (svc *Service) trapConflictErr(err error) error {
	switch err {
	case ErrOverlapConflict:
		return Violations{{Code: ViolationOverlap, Field: "starts_at", Message: err.Error()}}
	case ErrSlotConflict:
		return Violations{{Code: ViolationSlotTaken, Field: "phase", Message: err.Error()}}
	}
	return err
}

// notify emails the configured recipients about a schedule change.
// Fire and forget: the write has already committed.
func (svc *Service) notify(ctx context.Context, w Window, action string) {
	if svc.mailSvc == nil || svc.recipients == nil {
		return
	}
	to := svc.recipients(ctx)
	if len(to) == 0 {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      to,
		Subject: fmt.Sprintf("%s %s window %s", w.Track, w.Label(), action),
		BodyStr: fmt.Sprintf(
			"The %s %s window has been %s:\n\n  opens:  %s\n  closes: %s\n  enforced: %t\n",
			w.Track, w.Label(), action,
			w.StartsAt.Format(time.RFC1123), w.EndsAt.Format(time.RFC1123), w.Enforced,
		),
	})
}
