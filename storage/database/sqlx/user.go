package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core/user"
)

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sql.DB) *userRepository {
	return &userRepository{db: sqlx.NewDb(db, "postgres")}
}

type userRow struct {
	ID           string         `db:"id"`
	Name         sql.NullString `db:"name"`
	Username     sql.NullString `db:"username"`
	Email        sql.NullString `db:"email"`
	IsActive     sql.NullBool   `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	Tracks       pq.StringArray `db:"tracks"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    sql.NullTime   `db:"created_at"`
	UpdatedAt    sql.NullTime   `db:"updated_at"`
	LastLogin    sql.NullTime   `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	row := userRow{
		ID:           usr.ID,
		Name:         sql.NullString{String: usr.Name, Valid: usr.Name != ""},
		Username:     sql.NullString{String: usr.Username, Valid: usr.Username != ""},
		Email:        sql.NullString{String: usr.Email, Valid: usr.Email != ""},
		Roles:        pq.StringArray(usr.Roles),
		Tracks:       pq.StringArray(usr.Tracks),
		PasswordHash: usr.PasswordHash,
		CreatedAt:    sql.NullTime{Time: usr.CreatedAt.UTC(), Valid: !usr.CreatedAt.IsZero()},
		UpdatedAt:    sql.NullTime{Time: usr.UpdatedAt.UTC(), Valid: !usr.UpdatedAt.IsZero()},
		LastLogin:    sql.NullTime{Time: usr.LastLogin.UTC(), Valid: !usr.LastLogin.IsZero()},
	}
	if usr.IsActive != nil {
		row.IsActive = sql.NullBool{Bool: *usr.IsActive, Valid: true}
	}
	return row
}

func (r userRow) user() user.User {
	usr := user.User{
		ID:           r.ID,
		Name:         r.Name.String,
		Username:     r.Username.String,
		Email:        r.Email.String,
		Roles:        []string(r.Roles),
		Tracks:       []string(r.Tracks),
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.Time,
		UpdatedAt:    r.UpdatedAt.Time,
		LastLogin:    r.LastLogin.Time,
	}
	if r.IsActive.Valid {
		usr.IsActive = &r.IsActive.Bool
	}
	return usr
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	q := `SELECT username, email FROM "user" WHERE username = $1 OR email = $2`
	args := []interface{}{username, email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		q += ` AND NOT (id = ANY($3))`
		args = append(args, pq.StringArray(ids))
	}

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, r := range rows {
		if r.Username.String == username {
			return user.ErrUsernameExists
		}
		if r.Email.String == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO "user" (id, name, username, email, is_active, roles, tracks, password_hash, created_at, updated_at, last_login)
		 VALUES (:id, :name, :username, :email, :is_active, :roles, :tracks, :password_hash, :created_at, :updated_at, :last_login)`,
		toUserRow(usr),
	)
	if err != nil {
		// uniqueness is re-checked by the store; losing that race is a
		// business error, not a server error
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && string(pqErr.Code) == pqUniqueViolation {
			return user.User{}, user.ErrUserExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var row userRow
	var err error
	switch {
	case filter.ID != "":
		err = repo.db.GetContext(ctx, &row, `SELECT * FROM "user" WHERE id = $1`, filter.ID)
	case len(filter.UsernameOrEmail) > 0:
		err = repo.db.GetContext(ctx, &row,
			`SELECT * FROM "user" WHERE username = ANY($1) OR email = ANY($1) LIMIT 1`,
			pq.StringArray(filter.UsernameOrEmail),
		)
	default:
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, trapNoRowsErr(err, "getting user")
	}
	return row.user(), nil
}

func (repo userRepository) QueryUsersByRole(ctx context.Context, rolePrefix string) ([]user.User, error) {
	var rows []userRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM "user"
		 WHERE is_active AND EXISTS (SELECT 1 FROM unnest(roles) AS role WHERE role LIKE $1 || '%')`,
		rolePrefix,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying users by role")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.CreatedAt = time.Now().UTC()
		usr.UpdatedAt = usr.CreatedAt
		return repo.CreateUser(ctx, usr)
	}
	return repo.UpdateUser(ctx, usr, usr.IsActive)
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	if isActive != nil {
		usr.IsActive = isActive
	}
	usr.UpdatedAt = time.Now().UTC()
	res, err := repo.db.NamedExecContext(ctx,
		`UPDATE "user"
		 SET name = :name, username = :username, email = :email, is_active = COALESCE(:is_active, is_active),
		     roles = :roles, tracks = :tracks,
		     password_hash = CASE WHEN :password_hash::bytea IS NULL THEN password_hash ELSE :password_hash END,
		     updated_at = :updated_at,
		     last_login = CASE WHEN :last_login IS NULL THEN last_login ELSE :last_login END
		 WHERE id = :id`,
		toUserRow(usr),
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM "user" WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building user delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
