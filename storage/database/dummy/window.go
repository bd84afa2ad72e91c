package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/window"
)

type windowRepository struct {
	db *windowTable
}

var _ window.Repository = (*windowRepository)(nil) // interface compliance check

func NewWindowRepository(db *DB) window.Repository {
	return &windowRepository{db: db.window}
}

func (repo *windowRepository) query() []window.Window {
	ws := make([]window.Window, 0, len(repo.db.table))
	for _, w := range repo.db.table {
		ws = append(ws, *w)
	}
	return ws
}

// checkConstraints mirrors the store constraints the SQL schema carries:
// the per-track overlap exclusion and the not-yet-ended slot uniqueness.
// Held under the write lock, so concurrent writers cannot both pass.
func (repo *windowRepository) checkConstraints(w window.Window) error {
	now := core.NowFunc()
	for _, other := range repo.query() {
		if other.ID == w.ID || other.Track != w.Track {
			continue
		}
		if w.Overlaps(other.StartsAt, other.EndsAt) {
			return window.ErrOverlapConflict
		}
		if other.Step() == w.Step() && !other.Ended(now) {
			return window.ErrSlotConflict
		}
	}
	return nil
}

func (repo *windowRepository) CreateWindow(_ context.Context, w window.Window) (window.Window, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if err := repo.checkConstraints(w); err != nil {
		return window.Window{}, err
	}
	w.ID = uuid.New().String()
	repo.db.table[w.ID] = &w
	return w, nil
}

func (repo *windowRepository) GetWindowByID(_ context.Context, id string) (window.Window, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if w, ok := repo.db.table[id]; ok {
		return *w, nil
	}
	return window.Window{}, window.ErrNotFound
}

func (repo *windowRepository) GetWindowByStep(_ context.Context, track string, step window.Step) (window.Window, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var found *window.Window
	for _, w := range repo.query() {
		w := w
		if w.Track != track || w.Step() != step {
			continue
		}
		if found == nil || w.StartsAt.After(found.StartsAt) {
			found = &w
		}
	}
	if found == nil {
		return window.Window{}, window.ErrNotFound
	}
	return *found, nil
}

func (repo *windowRepository) QueryWindowsByTrack(_ context.Context, track string) ([]window.Window, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var ws []window.Window
	for _, w := range repo.query() {
		if w.Track == track {
			ws = append(ws, w)
		}
	}
	sortByStart(ws)
	return ws, nil
}

func (repo *windowRepository) FilterWindows(_ context.Context, filter window.QueryFilter, _ ...core.DBOrdering) ([]window.Window, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	now := core.NowFunc()
	var ws []window.Window
	for _, w := range repo.query() {
		if filter.Match(w, now) {
			ws = append(ws, w)
		}
	}
	sortByStart(ws)
	return ws, nil
}

func (repo *windowRepository) UpdateWindow(_ context.Context, w window.Window) (window.Window, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[w.ID]; !ok {
		return window.Window{}, window.ErrNotFound
	}
	if err := repo.checkConstraints(w); err != nil {
		return window.Window{}, err
	}
	repo.db.table[w.ID] = &w
	return w, nil
}

func (repo *windowRepository) DeleteWindowsByID(_ context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	var deleted int
	for _, id := range ids {
		if _, ok := repo.db.table[id]; ok {
			delete(repo.db.table, id)
			deleted++
		}
	}
	if deleted == 0 {
		return window.ErrNotFound
	}
	return nil
}

func sortByStart(ws []window.Window) {
	sort.Slice(ws, func(i, j int) bool { return ws[i].StartsAt.Before(ws[j].StartsAt) })
}
