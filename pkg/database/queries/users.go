package queries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/OldStager01/cloudpulse/pkg/database"
	"github.com/OldStager01/cloudpulse/pkg/models"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrUsernameTaken  = errors.New("username already exists")
	ErrUsernameNeeded = errors.New("username is required")
)

const userColumns = `id, username, email, password_hash, notification_emails, created_at, updated_at`

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE username = ?`)
	return r.scanOne(r.db.QueryRowContext(ctx, query, username))
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) Exists(ctx context.Context, username string) (bool, error) {
	query := r.db.Rebind(`SELECT COUNT(1) FROM users WHERE username = ?`)

	var n int
	if err := r.db.QueryRowContext(ctx, query, username).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return n > 0, nil
}

func (r *UserRepository) Create(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrUsernameNeeded
	}

	exists, err := r.Exists(ctx, username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUsernameTaken
	}

	now := time.Now().UTC().Truncate(time.Second)
	query := r.db.Rebind(`
		INSERT INTO users (username, email, password_hash, notification_emails, created_at, updated_at)
		VALUES (?, ?, ?, '', ?, ?)
		RETURNING id`)

	user := &models.User{
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = r.db.QueryRowContext(ctx, query, user.Username, user.Email, passwordHash, now, now).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (r *UserRepository) GetNotificationEmails(ctx context.Context, id int) ([]string, error) {
	query := r.db.Rebind(`SELECT notification_emails FROM users WHERE id = ?`)

	var raw string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification emails: %w", err)
	}
	return models.SplitEmailList(raw), nil
}

// SetNotificationEmails replaces the account's extra notification addresses.
func (r *UserRepository) SetNotificationEmails(ctx context.Context, id int, emails []string) error {
	query := r.db.Rebind(`UPDATE users SET notification_emails = ?, updated_at = ? WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query, models.JoinEmailList(emails), time.Now().UTC().Truncate(time.Second), id)
	if err != nil {
		return fmt.Errorf("failed to update notification emails: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) scanOne(row *sql.Row) (*models.User, error) {
	var (
		user      models.User
		emails    string
		createdAt flexTime
		updatedAt flexTime
	)
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&emails,
		&createdAt,
		&updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	user.NotificationEmails = models.SplitEmailList(emails)
	user.CreatedAt = createdAt.Time
	user.UpdatedAt = updatedAt.Time
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// flexTime scans timestamps from drivers that return either time.Time or text.
type flexTime struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (t *flexTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	}
	return fmt.Errorf("cannot scan %T into time", src)
}

func (t *flexTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("cannot parse time %q", s)
}
