package window_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/window"
	dummydb "github.com/trezcool/ratiba/storage/database/dummy"
)

var now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func setupService(t *testing.T) (*window.Service, window.Repository) {
	t.Helper()

	db, err := dummydb.Open()
	require.NoError(t, err)
	repo := dummydb.NewWindowRepository(db)

	prevNow := core.NowFunc
	core.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { core.NowFunc = prevNow })

	return window.NewService(repo, nil, window.Policy{}), repo
}

func at(n int) time.Time { return now.Add(time.Duration(n) * 24 * time.Hour) }

func newWin(phase, track, cycle string, start, end time.Time) window.NewWindow {
	return window.NewWindow{Phase: phase, Track: track, Cycle: cycle, StartsAt: start, EndsAt: end}
}

func TestService_Create(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	w, err := svc.Create(ctx, newWin(window.PhaseProposal, window.TrackIDP, "", at(1), at(10)), "usr1")
	require.NoError(t, err)
	assert.NotEmpty(t, w.ID)
	assert.True(t, w.Enforced) // default
	assert.Equal(t, "usr1", w.CreatedBy)

	// inputs are normalized before validation
	w2, err := svc.Create(ctx, newWin("  Application ", "idp", "", at(11), at(20)), "usr1")
	require.NoError(t, err)
	assert.Equal(t, window.PhaseApplication, w2.Phase)
	assert.Equal(t, window.TrackIDP, w2.Track)

	// business failures come back as Violations
	_, err = svc.Create(ctx, newWin(window.PhaseProposal, window.TrackIDP, "", at(5), at(8)), "usr1")
	var vs window.Violations
	require.ErrorAs(t, err, &vs)
	assert.Contains(t, violationCodes(vs), window.ViolationOverlap)
	assert.Contains(t, violationCodes(vs), window.ViolationSlotTaken)
}

// conflictingRepo simulates losing the store-level race: validation sees a
// clear schedule but the write hits a constraint.
type conflictingRepo struct {
	window.Repository
	err error
}

func (repo conflictingRepo) CreateWindow(context.Context, window.Window) (window.Window, error) {
	return window.Window{}, repo.err
}

func TestService_Create_storeConflictMapsToViolations(t *testing.T) {
	_, repo := setupService(t)
	ctx := context.Background()

	tests := []struct {
		storeErr error
		wantCode string
	}{
		{window.ErrOverlapConflict, window.ViolationOverlap},
		{window.ErrSlotConflict, window.ViolationSlotTaken},
	}
	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			svc := window.NewService(conflictingRepo{Repository: repo, err: tt.storeErr}, nil, window.Policy{})

			_, err := svc.Create(ctx, newWin(window.PhaseProposal, window.TrackIDP, "", at(1), at(10)), "usr1")
			var vs window.Violations
			require.ErrorAs(t, err, &vs)
			require.Len(t, vs, 1)
			assert.Equal(t, tt.wantCode, vs[0].Code)
		})
	}
}

func TestService_Update(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	w, err := svc.Create(ctx, newWin(window.PhaseProposal, window.TrackIDP, "", at(1), at(10)), "usr1")
	require.NoError(t, err)

	// shift the end, keep the start
	w, err = svc.Update(ctx, w.ID, window.UpdateWindow{EndsAt: at(12)})
	require.NoError(t, err)
	assert.True(t, w.StartsAt.Equal(at(1)))
	assert.True(t, w.EndsAt.Equal(at(12)))

	// flip enforcement off
	off := false
	w, err = svc.Update(ctx, w.ID, window.UpdateWindow{Enforced: &off})
	require.NoError(t, err)
	assert.False(t, w.Enforced)

	// invalid edit is rejected
	_, err = svc.Update(ctx, w.ID, window.UpdateWindow{EndsAt: at(-5)})
	var vs window.Violations
	require.ErrorAs(t, err, &vs)
	assert.Contains(t, violationCodes(vs), window.ViolationDateOrder)

	_, err = svc.Update(ctx, "nope", window.UpdateWindow{EndsAt: at(12)})
	assert.Equal(t, window.ErrNotFound, err)
}

// an in-flight window's end may be shifted even under the future-start policy.
func TestService_Update_startedWindowExemptFromFutureStart(t *testing.T) {
	db, err := dummydb.Open()
	require.NoError(t, err)
	repo := dummydb.NewWindowRepository(db)

	prevNow := core.NowFunc
	core.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { core.NowFunc = prevNow })

	svc := window.NewService(repo, nil, window.Policy{RequireFutureStart: true})
	ctx := context.Background()

	w, err := repo.CreateWindow(ctx, window.Window{
		ID: "w1", Phase: window.PhaseProposal, Track: window.TrackIDP,
		StartsAt: at(-5), EndsAt: at(5), Enforced: true,
	})
	require.NoError(t, err)

	w, err = svc.Update(ctx, w.ID, window.UpdateWindow{EndsAt: at(8)})
	require.NoError(t, err)
	assert.True(t, w.EndsAt.Equal(at(8)))

	// but a future window cannot be moved into the past
	fw, err := svc.Create(ctx, newWin(window.PhaseApplication, window.TrackIDP, "", at(10), at(20)), "usr1")
	require.NoError(t, err)
	_, err = svc.Update(ctx, fw.ID, window.UpdateWindow{StartsAt: at(-1)})
	var vs window.Violations
	require.ErrorAs(t, err, &vs)
	assert.Contains(t, violationCodes(vs), window.ViolationStartInPast)
}

func TestService_FilterAndDelete(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	w1, err := svc.Create(ctx, newWin(window.PhaseProposal, window.TrackIDP, "", at(-5), at(5)), "usr1") // active
	require.NoError(t, err)
	w2, err := svc.Create(ctx, newWin(window.PhaseApplication, window.TrackIDP, "", at(6), at(10)), "usr1")
	require.NoError(t, err)
	_, err = svc.Create(ctx, newWin(window.PhaseProposal, window.TrackUROP, "", at(6), at(10)), "usr1")
	require.NoError(t, err)

	ws, err := svc.Filter(ctx, window.QueryFilter{Track: window.TrackIDP})
	require.NoError(t, err)
	assert.Len(t, ws, 2)

	active := true
	ws, err = svc.Filter(ctx, window.QueryFilter{IsActive: &active})
	require.NoError(t, err)
	require.Len(t, ws, 1)
	assert.Equal(t, w1.ID, ws[0].ID)

	require.NoError(t, svc.Delete(ctx, w2.ID))
	_, err = svc.GetByID(ctx, w2.ID)
	assert.Equal(t, window.ErrNotFound, err)

	assert.Equal(t, window.ErrNotFound, svc.Delete(ctx, "no-such-id"))
	assert.Equal(t, window.ErrNotFound, svc.Delete(ctx, w2.ID))
}

func violationCodes(vs window.Violations) []string {
	cs := make([]string, 0, len(vs))
	for _, v := range vs {
		cs = append(cs, v.Code)
	}
	return cs
}
