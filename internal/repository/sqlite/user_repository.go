package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"library-server/internal/domain"
	"library-server/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'user',
	is_banned INTEGER NOT NULL DEFAULT 0,
	ban_reason TEXT NOT NULL DEFAULT '',
	banned_at DATETIME NULL,
	dob TEXT NOT NULL DEFAULT '',
	gender TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	profile_image TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

const userColumns = `id, name, email, password_hash, role, is_banned, ban_reason, banned_at, dob, gender, address, phone, profile_image, created_at, updated_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (int64, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Role == "" {
		user.Role = domain.RoleUser
	}

	res, err := r.db.ExecContext(ctx, `
INSERT INTO users (name, email, password_hash, role, dob, gender, address, phone, profile_image, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Name,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.DOB,
		user.Gender,
		user.Address,
		user.Phone,
		user.ProfileImage,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, domain.ErrEmailRegistered
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user last insert id: %w", err)
	}
	user.ID = id
	return id, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)),
	)
	return scanUser(row)
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, update domain.ProfileUpdate) error {
	sets := []string{}
	args := []any{}
	add := func(column string, v *string) {
		if v == nil {
			return
		}
		sets = append(sets, column+"=?")
		args = append(args, *v)
	}
	add("name", update.Name)
	add("dob", update.DOB)
	add("gender", update.Gender)
	add("address", update.Address)
	add("phone", update.Phone)
	add("profile_image", update.ProfileImage)
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at=?")
	args = append(args, time.Now().UTC(), id)

	res, err := r.db.ExecContext(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id=?`, args...)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return expectOneRow(res, domain.ErrUserNotFound)
}

// SetBan stores the ban state. Unbanning clears reason and timestamp.
func (r *UserRepository) SetBan(ctx context.Context, id int64, banned bool, reason string) error {
	now := time.Now().UTC()
	var bannedAt *time.Time
	if banned {
		bannedAt = &now
	} else {
		reason = ""
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET is_banned=?, ban_reason=?, banned_at=?, updated_at=?
WHERE id=?`,
		banned,
		reason,
		nullTime(bannedAt),
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("update ban state: %w", err)
	}
	return expectOneRow(res, domain.ErrUserNotFound)
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user     domain.User
		role     string
		bannedAt sql.NullTime
	)
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.IsBanned,
		&user.BanReason,
		&bannedAt,
		&user.DOB,
		&user.Gender,
		&user.Address,
		&user.Phone,
		&user.ProfileImage,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.Role = domain.Role(role)
	user.BannedAt = timePtr(bannedAt)
	return &user, nil
}

func expectOneRow(res sql.Result, notFound error) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if aff == 0 {
		return notFound
	}
	return nil
}
