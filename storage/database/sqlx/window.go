package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/window"
)

// pq error codes
const (
	pqExclusionViolation = "23P01"
	pqUniqueViolation    = "23505"
	pqSerializationFail  = "40001"
)

type windowRepository struct {
	db *sqlx.DB
}

var _ window.Repository = (*windowRepository)(nil) // interface compliance check

func NewWindowRepository(db *sql.DB) *windowRepository {
	return &windowRepository{db: sqlx.NewDb(db, "postgres")}
}

type windowRow struct {
	ID        string         `db:"id"`
	Phase     string         `db:"phase"`
	Track     string         `db:"track"`
	Cycle     string         `db:"cycle"`
	StartsAt  time.Time      `db:"starts_at"`
	EndsAt    time.Time      `db:"ends_at"`
	Enforced  bool           `db:"enforced"`
	CreatedBy sql.NullString `db:"created_by"`
	CreatedAt sql.NullTime   `db:"created_at"`
	UpdatedAt sql.NullTime   `db:"updated_at"`
}

func toRow(w window.Window) windowRow {
	return windowRow{
		ID:        w.ID,
		Phase:     w.Phase,
		Track:     w.Track,
		Cycle:     w.Cycle,
		StartsAt:  w.StartsAt.UTC(),
		EndsAt:    w.EndsAt.UTC(),
		Enforced:  w.Enforced,
		CreatedBy: sql.NullString{String: w.CreatedBy, Valid: w.CreatedBy != ""},
		CreatedAt: sql.NullTime{Time: w.CreatedAt.UTC(), Valid: !w.CreatedAt.IsZero()},
		UpdatedAt: sql.NullTime{Time: w.UpdatedAt.UTC(), Valid: !w.UpdatedAt.IsZero()},
	}
}

func (r windowRow) window() window.Window {
	return window.Window{
		ID:        r.ID,
		Phase:     r.Phase,
		Track:     r.Track,
		Cycle:     r.Cycle,
		StartsAt:  r.StartsAt,
		EndsAt:    r.EndsAt,
		Enforced:  r.Enforced,
		CreatedBy: r.CreatedBy.String,
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
	}
}

func windows(rows []windowRow) []window.Window {
	ws := make([]window.Window, 0, len(rows))
	for _, r := range rows {
		ws = append(ws, r.window())
	}
	return ws
}

// trapWindowErr maps store errors to their window domain counterparts.
// The gist EXCLUDE constraint and the in-transaction slot re-check make the
// store the final arbiter of the overlap/slot invariants: two requests that
// both passed application-level validation cannot both commit.
func trapWindowErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return window.ErrNotFound
	}
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		switch string(pqErr.Code) {
		case pqExclusionViolation:
			return window.ErrOverlapConflict
		case pqSerializationFail:
			return window.ErrSlotConflict
		}
	}
	return errors.Wrap(err, msg)
}

// checkSlotFree rejects a write when another not-yet-ended window occupies the
// same (phase, track, cycle) tuple. Runs inside the caller's serializable
// transaction; a plain partial unique index cannot express the "not yet
// ended" predicate (now() is not immutable).
func (repo windowRepository) checkSlotFree(ctx context.Context, tx *sqlx.Tx, w window.Window) error {
	var taken bool
	err := tx.GetContext(ctx, &taken,
		`SELECT EXISTS (
			SELECT 1 FROM phase_window
			WHERE phase = $1 AND track = $2 AND cycle = $3 AND ends_at >= now() AND id != $4
		)`,
		w.Phase, w.Track, w.Cycle, w.ID,
	)
	if err != nil {
		return errors.Wrap(err, "checking window slot")
	}
	if taken {
		return window.ErrSlotConflict
	}
	return nil
}

func (repo windowRepository) CreateWindow(ctx context.Context, w window.Window) (window.Window, error) {
	w.ID = uuid.New().String()

	tx, err := repo.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return window.Window{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err = repo.checkSlotFree(ctx, tx, w); err != nil {
		return window.Window{}, err
	}

	_, err = tx.NamedExecContext(ctx,
		`INSERT INTO phase_window (id, phase, track, cycle, starts_at, ends_at, enforced, created_by, created_at, updated_at)
		 VALUES (:id, :phase, :track, :cycle, :starts_at, :ends_at, :enforced, :created_by, :created_at, :updated_at)`,
		toRow(w),
	)
	if err != nil {
		return window.Window{}, trapWindowErr(err, "inserting window")
	}
	if err = tx.Commit(); err != nil {
		return window.Window{}, trapWindowErr(err, "committing window insert")
	}
	return w, nil
}

func (repo windowRepository) GetWindowByID(ctx context.Context, id string) (window.Window, error) {
	var row windowRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM phase_window WHERE id = $1`, id)
	if err != nil {
		return window.Window{}, trapWindowErr(err, "getting window by id")
	}
	return row.window(), nil
}

func (repo windowRepository) GetWindowByStep(ctx context.Context, track string, step window.Step) (window.Window, error) {
	var row windowRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM phase_window WHERE phase = $1 AND track = $2 AND cycle = $3
		 ORDER BY starts_at DESC LIMIT 1`,
		step.Phase, track, step.Cycle,
	)
	if err != nil {
		return window.Window{}, trapWindowErr(err, "getting window by step")
	}
	return row.window(), nil
}

func (repo windowRepository) QueryWindowsByTrack(ctx context.Context, track string) ([]window.Window, error) {
	var rows []windowRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM phase_window WHERE track = $1 ORDER BY starts_at`, track)
	if err != nil {
		return nil, errors.Wrap(err, "querying windows by track")
	}
	return windows(rows), nil
}

func (repo windowRepository) FilterWindows(ctx context.Context, filter window.QueryFilter, ordering ...core.DBOrdering) ([]window.Window, error) {
	var conds []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Track != "" {
		conds = append(conds, "track = "+arg(filter.Track))
	}
	if filter.Phase != "" {
		conds = append(conds, "phase = "+arg(filter.Phase))
	}
	if filter.Cycle != "" {
		conds = append(conds, "cycle = "+arg(filter.Cycle))
	}
	if filter.IsActive != nil {
		now := arg(core.NowFunc())
		cond := "(starts_at <= " + now + " AND ends_at >= " + now + ")"
		if !*filter.IsActive {
			cond = "NOT " + cond
		}
		conds = append(conds, cond)
	}

	q := `SELECT * FROM phase_window`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "starts_at", Ascending: true}}
	}
	ords := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		ords = append(ords, ord.String())
	}
	q += " ORDER BY " + strings.Join(ords, ", ")

	var rows []windowRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering windows")
	}
	return windows(rows), nil
}

func (repo windowRepository) UpdateWindow(ctx context.Context, w window.Window) (window.Window, error) {
	tx, err := repo.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return window.Window{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err = repo.checkSlotFree(ctx, tx, w); err != nil {
		return window.Window{}, err
	}

	res, err := tx.NamedExecContext(ctx,
		`UPDATE phase_window
		 SET starts_at = :starts_at, ends_at = :ends_at, enforced = :enforced, updated_at = :updated_at
		 WHERE id = :id`,
		toRow(w),
	)
	if err != nil {
		return window.Window{}, trapWindowErr(err, "updating window")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return window.Window{}, window.ErrNotFound
	}
	if err = tx.Commit(); err != nil {
		return window.Window{}, trapWindowErr(err, "committing window update")
	}
	return w, nil
}

func (repo windowRepository) DeleteWindowsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM phase_window WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building window delete query")
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(q), args...)
	if err != nil {
		return errors.Wrap(err, "deleting windows")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return window.ErrNotFound
	}
	return nil
}
