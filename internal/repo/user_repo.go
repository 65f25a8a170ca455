package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/veriqo/server/internal/model"
)

// ErrNotFound is returned when no user matches the lookup.
var ErrNotFound = errors.New("user not found")

// ConflictError reports a uniqueness violation on a specific field.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists", e.Field)
}

// CreateUser is the payload for creating a user record.
type CreateUser struct {
	FirstName    string
	LastName     string
	Phone        string
	Email        *string
	Password     string
	OTPHash      string
	OTPExpiresAt time.Time
}

// UserUpdate is a partial update; nil fields are left untouched.
type UserUpdate struct {
	Password        *string
	OTPHash         *string
	OTPExpiresAt    *time.Time
	IsPhoneVerified *bool
	AccountStatus   *model.AccountStatus
	FirstName       *string
	LastName        *string
	Email           *string
	Country         *string
	DocType         *string
	DocNumber       *string
	DocPath         *string
	ProfilePath     *string
	Gender          *string
	MaritalStatus   *string
	DateOfBirth     *time.Time
}

// UserRepo defines the durable storage contract for user records.
// Implementations must enforce uniqueness on phone and email and signal
// violations as *ConflictError naming the collided field.
type UserRepo interface {
	FindByPhone(ctx context.Context, phone string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (model.User, error)
	Create(ctx context.Context, data CreateUser) (uuid.UUID, error)
	Update(ctx context.Context, id uuid.UUID, data UserUpdate) (model.User, error)
	ListByStatus(ctx context.Context, status model.AccountStatus) ([]model.User, error)
}

type userRepo struct {
	db *sql.DB
}

// NewUserRepo creates a UserRepo backed by PostgreSQL.
func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

const userColumns = `id, first_name, last_name, phone, email, password,
	otp_hash, otp_expires_at, is_phone_verified, account_status, role,
	country, doc_type, doc_number, doc_path, profile_path, gender,
	marital_status, dob, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	var idStr string
	var status sql.NullString
	err := row.Scan(
		&idStr,
		&u.FirstName,
		&u.LastName,
		&u.Phone,
		&u.Email,
		&u.Password,
		&u.OTPHash,
		&u.OTPExpiresAt,
		&u.IsPhoneVerified,
		&status,
		&u.Role,
		&u.Country,
		&u.DocType,
		&u.DocNumber,
		&u.DocPath,
		&u.ProfilePath,
		&u.Gender,
		&u.MaritalStatus,
		&u.DateOfBirth,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return model.User{}, err
	}
	if status.Valid {
		s := model.AccountStatus(status.String)
		u.AccountStatus = &s
	}
	u.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.User{}, fmt.Errorf("parse user ID: %w", err)
	}
	return u, nil
}

func (r *userRepo) findBy(ctx context.Context, column, value string) (model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s = $1`, userColumns, column)
	u, err := scanUser(r.db.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("query user by %s: %w", column, err)
	}
	return u, nil
}

// FindByPhone retrieves a user by phone number.
func (r *userRepo) FindByPhone(ctx context.Context, phone string) (model.User, error) {
	return r.findBy(ctx, "phone", phone)
}

// FindByEmail retrieves a user by email address.
func (r *userRepo) FindByEmail(ctx context.Context, email string) (model.User, error) {
	return r.findBy(ctx, "email", email)
}

// FindByID retrieves a user by ID.
func (r *userRepo) FindByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	return r.findBy(ctx, "id", id.String())
}

// Create inserts a new user with a hashed password and an issued OTP.
// Uniqueness violations on phone or email surface as *ConflictError.
func (r *userRepo) Create(ctx context.Context, data CreateUser) (uuid.UUID, error) {
	query := `
		INSERT INTO users (first_name, last_name, phone, email, password, otp_hash, otp_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	var idStr string
	err := r.db.QueryRowContext(ctx, query,
		data.FirstName,
		data.LastName,
		data.Phone,
		data.Email,
		data.Password,
		data.OTPHash,
		data.OTPExpiresAt,
	).Scan(&idStr)
	if err != nil {
		if conflict := conflictFieldOf(err); conflict != "" {
			return uuid.Nil, &ConflictError{Field: conflict}
		}
		return uuid.Nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse user ID: %w", err)
	}
	return id, nil
}

// Update applies a partial update and returns the new record value.
func (r *userRepo) Update(ctx context.Context, id uuid.UUID, data UserUpdate) (model.User, error) {
	set := make([]string, 0, 8)
	args := make([]interface{}, 0, 8)

	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if data.Password != nil {
		add("password", *data.Password)
	}
	if data.OTPHash != nil {
		add("otp_hash", *data.OTPHash)
	}
	if data.OTPExpiresAt != nil {
		add("otp_expires_at", *data.OTPExpiresAt)
	}
	if data.IsPhoneVerified != nil {
		add("is_phone_verified", *data.IsPhoneVerified)
	}
	if data.AccountStatus != nil {
		add("account_status", string(*data.AccountStatus))
	}
	if data.FirstName != nil {
		add("first_name", *data.FirstName)
	}
	if data.LastName != nil {
		add("last_name", *data.LastName)
	}
	if data.Email != nil {
		add("email", *data.Email)
	}
	if data.Country != nil {
		add("country", *data.Country)
	}
	if data.DocType != nil {
		add("doc_type", *data.DocType)
	}
	if data.DocNumber != nil {
		add("doc_number", *data.DocNumber)
	}
	if data.DocPath != nil {
		add("doc_path", *data.DocPath)
	}
	if data.ProfilePath != nil {
		add("profile_path", *data.ProfilePath)
	}
	if data.Gender != nil {
		add("gender", *data.Gender)
	}
	if data.MaritalStatus != nil {
		add("marital_status", *data.MaritalStatus)
	}
	if data.DateOfBirth != nil {
		add("dob", *data.DateOfBirth)
	}

	if len(set) == 0 {
		return r.FindByID(ctx, id)
	}

	set = append(set, "updated_at = now()")
	args = append(args, id.String())

	query := fmt.Sprintf(`
		UPDATE users SET %s
		WHERE id = $%d
		RETURNING %s
	`, strings.Join(set, ", "), len(args), userColumns)

	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		if conflict := conflictFieldOf(err); conflict != "" {
			return model.User{}, &ConflictError{Field: conflict}
		}
		return model.User{}, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

// ListByStatus returns all users with the given account status.
func (r *userRepo) ListByStatus(ctx context.Context, status model.AccountStatus) ([]model.User, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM users
		WHERE account_status = $1
		ORDER BY updated_at DESC
	`, userColumns)

	rows, err := r.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("list users by status: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users by status: %w", err)
	}
	return users, nil
}

// conflictFieldOf returns the colliding field name for a Postgres
// unique-violation error, or "" when err is something else.
func conflictFieldOf(err error) string {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return ""
	}
	switch {
	case strings.Contains(pqErr.Constraint, "phone"):
		return "phone"
	case strings.Contains(pqErr.Constraint, "email"):
		return "email"
	default:
		return pqErr.Constraint
	}
}
