package repo

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/Skryldev/useradmin/db"
	"github.com/Skryldev/useradmin/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// UserRepository
// ─────────────────────────────────────────────────────────────────────────────

// UserRepository defines the contract for user persistence operations.
type UserRepository interface {
	Insert(ctx context.Context, params models.CreateUserParams) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, params models.UpdateUserParams) (*models.User, error)
	Delete(ctx context.Context, id int64) error
	BatchInsert(ctx context.Context, params []models.CreateUserParams) ([]*models.User, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Dialect
// ─────────────────────────────────────────────────────────────────────────────

// Dialect captures the SQL differences between the supported drivers.
type Dialect struct {
	Placeholder sq.PlaceholderFormat
	// Returning is true when INSERT/UPDATE ... RETURNING is available.
	Returning bool
}

// DialectFor returns the Dialect for a database/sql driver name.
func DialectFor(driverName string) (Dialect, error) {
	switch driverName {
	case "postgres":
		return Dialect{Placeholder: sq.Dollar, Returning: true}, nil
	case "sqlite3":
		return Dialect{Placeholder: sq.Question, Returning: true}, nil
	case "mysql":
		return Dialect{Placeholder: sq.Question, Returning: false}, nil
	}
	return Dialect{}, fmt.Errorf("repo: unsupported driver %q", driverName)
}

// ─────────────────────────────────────────────────────────────────────────────
// userRepo
// ─────────────────────────────────────────────────────────────────────────────

type userRepo struct {
	q       db.Querier
	dialect Dialect
	sb      sq.StatementBuilderType
}

// NewUserRepo returns a UserRepository backed by q.
// q can be a *db.DB or *db.Tx; both satisfy db.Querier.
func NewUserRepo(q db.Querier, dialect Dialect) UserRepository {
	return &userRepo{
		q:       q,
		dialect: dialect,
		sb:      sq.StatementBuilder.PlaceholderFormat(dialect.Placeholder),
	}
}

const (
	usersTable   = "users"
	userColumns  = "id, name, email"
	returningAll = "RETURNING " + userColumns
)

// Insert creates a new user and returns it with its database-assigned id.
// A taken name surfaces as db.ErrDuplicateKey.
func (r *userRepo) Insert(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	b := r.sb.Insert(usersTable).Columns("name", "email").Values(params.Name, params.Email)

	if r.dialect.Returning {
		query, args, err := b.Suffix(returningAll).ToSql()
		if err != nil {
			return nil, fmt.Errorf("repo/user: build insert: %w", err)
		}
		return scanUser(r.q.QueryRow(ctx, query, args...))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("repo/user: build insert: %w", err)
	}
	res, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repo/user: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("repo/user: last insert id: %w", err)
	}
	return &models.User{ID: id, Name: params.Name, Email: params.Email}, nil
}

// GetByID returns a single user by primary key.
// Returns db.ErrNotFound when no record matches.
func (r *userRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query, args, err := r.sb.Select(userColumns).From(usersTable).Where(sq.Eq{"id": id}).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("repo/user: build select: %w", err)
	}
	return scanUser(r.q.QueryRow(ctx, query, args...))
}

// List returns every user ordered by id. An empty table yields an empty,
// non-nil slice.
func (r *userRepo) List(ctx context.Context) ([]models.User, error) {
	query, args, err := r.sb.Select(userColumns).From(usersTable).OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("repo/user: build list: %w", err)
	}
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repo/user: list: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, fmt.Errorf("repo/user: scan: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Update replaces name and email of an existing user.
// Returns db.ErrNotFound when the id does not exist and db.ErrDuplicateKey
// when the new name is taken.
func (r *userRepo) Update(ctx context.Context, params models.UpdateUserParams) (*models.User, error) {
	b := r.sb.Update(usersTable).
		Set("name", params.Name).
		Set("email", params.Email).
		Where(sq.Eq{"id": params.ID})

	if r.dialect.Returning {
		query, args, err := b.Suffix(returningAll).ToSql()
		if err != nil {
			return nil, fmt.Errorf("repo/user: build update: %w", err)
		}
		return scanUser(r.q.QueryRow(ctx, query, args...))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("repo/user: build update: %w", err)
	}
	res, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repo/user: update: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("repo/user: rows affected: %w", err)
	} else if n == 0 {
		return nil, db.ErrNotFound
	}
	return &models.User{ID: params.ID, Name: params.Name, Email: params.Email}, nil
}

// Delete removes a user by id.
// Returns db.ErrNotFound if no row was deleted.
func (r *userRepo) Delete(ctx context.Context, id int64) error {
	query, args, err := r.sb.Delete(usersTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("repo/user: build delete: %w", err)
	}
	res, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("repo/user: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repo/user: rows affected: %w", err)
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

// BatchInsert inserts multiple users through one prepared statement. Run it
// on a *db.Tx when all rows must be inserted or none.
func (r *userRepo) BatchInsert(ctx context.Context, params []models.CreateUserParams) ([]*models.User, error) {
	if len(params) == 0 {
		return nil, nil
	}

	b := r.sb.Insert(usersTable).Columns("name", "email").Values("", "")
	if r.dialect.Returning {
		b = b.Suffix(returningAll)
	}
	query, _, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("repo/user: build batch insert: %w", err)
	}

	stmt, err := r.q.Prepare(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repo/user: prepare batch insert: %w", err)
	}
	defer stmt.Close()

	users := make([]*models.User, 0, len(params))
	for _, p := range params {
		if r.dialect.Returning {
			u, err := scanUser(stmt.QueryRow(ctx, p.Name, p.Email))
			if err != nil {
				return nil, err
			}
			users = append(users, u)
			continue
		}
		res, err := stmt.Exec(ctx, p.Name, p.Email)
		if err != nil {
			return nil, fmt.Errorf("repo/user: batch insert %q: %w", p.Name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("repo/user: last insert id: %w", err)
		}
		users = append(users, &models.User{ID: id, Name: p.Name, Email: p.Email})
	}
	return users, nil
}

// scanUser keeps the column mapping in one place.
func scanUser(row *db.Row) (*models.User, error) {
	u := &models.User{}
	if err := row.Scan(&u.ID, &u.Name, &u.Email); err != nil {
		return nil, fmt.Errorf("repo/user: %w", err)
	}
	return u, nil
}

var _ UserRepository = (*userRepo)(nil)
