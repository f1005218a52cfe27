package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-auth-api/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolation = "23505"

	emailConstraint    = "users_email_key"
	usernameConstraint = "users_username_key"

	userColumns = "id, username, email, password_hash, recovery_email, verified, verification_code, is_admin"
)

// updatable whitelists the columns a partial update may touch.
var updatable = map[string]bool{
	domain.FieldUsername:         true,
	domain.FieldEmail:            true,
	domain.FieldPasswordHash:     true,
	domain.FieldRecoveryEmail:    true,
	domain.FieldVerified:         true,
	domain.FieldVerificationCode: true,
	domain.FieldIsAdmin:          true,
}

// UserRepo stores users in Postgres. Email and username uniqueness is
// enforced by table constraints.
type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	const op = "postgres.UserRepo.Create"

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err := r.pool.Exec(ctx, query,
		u.UserID, u.Username, u.Email, u.PasswordHash, u.RecoveryEmail, u.Verified, u.VerificationCode, u.IsAdmin)
	if err != nil {
		return translate(op, err)
	}
	return nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "email", email)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, "username", username)
}

func (r *UserRepo) Update(ctx context.Context, match domain.UserMatch, updates map[string]interface{}) error {
	const op = "postgres.UserRepo.Update"

	query, args, err := buildUpdate(match, updates)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return translate(op, err)
	}
	if tag.RowsAffected() == 0 {
		if match.CodeHash != nil {
			return fmt.Errorf("verification code already consumed: %w", domain.ErrConflict)
		}
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *UserRepo) DeleteByUsername(ctx context.Context, username string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE username = $1;`, username)
	if err != nil {
		return fmt.Errorf("postgres.UserRepo.DeleteByUsername: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *UserRepo) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at;`)
	if err != nil {
		return nil, fmt.Errorf("postgres.UserRepo.List: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *UserRepo) getOne(ctx context.Context, column, value string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = $1;`, value)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres.UserRepo.get: %w", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.UserID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.RecoveryEmail,
		&u.Verified,
		&u.VerificationCode,
		&u.IsAdmin,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// buildUpdate renders an UPDATE statement. Columns are sorted so the output
// is deterministic; unknown columns are rejected.
func buildUpdate(match domain.UserMatch, updates map[string]interface{}) (string, []interface{}, error) {
	if len(updates) == 0 {
		return "", nil, errors.New("no fields to update")
	}
	cols := make([]string, 0, len(updates))
	for k := range updates {
		if !updatable[k] {
			return "", nil, fmt.Errorf("column %q is not updatable", k)
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)

	var sets []string
	var args []interface{}
	for _, c := range cols {
		args = append(args, updates[c])
		sets = append(sets, fmt.Sprintf("%s = $%d", c, len(args)))
	}

	var where string
	switch {
	case match.Email != "":
		args = append(args, match.Email)
		where = fmt.Sprintf("email = $%d", len(args))
	case match.Username != "":
		args = append(args, match.Username)
		where = fmt.Sprintf("username = $%d", len(args))
	default:
		return "", nil, errors.New("empty user match")
	}
	if match.CodeHash != nil {
		args = append(args, *match.CodeHash)
		where += fmt.Sprintf(" AND verification_code = $%d", len(args))
	}

	query := fmt.Sprintf("UPDATE users SET %s, updated_at = now() WHERE %s;", strings.Join(sets, ", "), where)
	return query, args, nil
}

func translate(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case emailConstraint:
			return domain.ErrDuplicateEmail
		case usernameConstraint:
			return domain.ErrDuplicateUsername
		}
		return fmt.Errorf("%s: %w", op, domain.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
