package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	authmw "github.com/mind-engage/mindengage-ilq/internal/auth/middleware"
	"github.com/mind-engage/mindengage-ilq/internal/db"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Users stores local accounts with bcrypt password hashes.
type Users struct {
	db   *sql.DB
	cost int
}

func NewUsers(h *sql.DB) *Users { return &Users{db: h, cost: bcrypt.DefaultCost} }

type User struct {
	ID       string `json:"id" yaml:"id"`
	Username string `json:"username" yaml:"username"`
	Role     string `json:"role" yaml:"role"`
}

// Put creates or updates a user. An empty ID gets a fresh uuid; an empty
// password keeps the stored hash.
func (u *Users) Put(ctx context.Context, usr User, password string) (User, error) {
	usr.Username = strings.TrimSpace(usr.Username)
	if usr.Username == "" {
		return User{}, errors.New("username is required")
	}
	if usr.Role == "" {
		usr.Role = "student"
	}
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	hash := ""
	if password != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(password), u.cost)
		if err != nil {
			return User{}, fmt.Errorf("hash password: %w", err)
		}
		hash = string(b)
	}
	_, err := db.Conn(ctx, u.db).ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, role) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (id) DO UPDATE SET username=EXCLUDED.username, role=EXCLUDED.role,
		   password_hash=CASE WHEN EXCLUDED.password_hash='' THEN users.password_hash ELSE EXCLUDED.password_hash END`,
		usr.ID, usr.Username, hash, usr.Role)
	if err != nil {
		return User{}, err
	}
	return usr, nil
}

// PutHash stores a precomputed bcrypt hash, as the configured admin has.
func (u *Users) PutHash(ctx context.Context, usr User, hash string) error {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return fmt.Errorf("user %s: %w", usr.Username, err)
	}
	_, err := db.Conn(ctx, u.db).ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, role) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (id) DO UPDATE SET username=EXCLUDED.username, role=EXCLUDED.role, password_hash=EXCLUDED.password_hash`,
		usr.ID, usr.Username, hash, usr.Role)
	return err
}

func (u *Users) ByUsername(ctx context.Context, username string) (User, string, error) {
	var (
		usr  User
		hash string
	)
	err := db.Conn(ctx, u.db).QueryRowContext(ctx,
		`SELECT id, username, role, password_hash FROM users WHERE username=$1`, username).
		Scan(&usr.ID, &usr.Username, &usr.Role, &hash)
	return usr, hash, err
}

// Authenticate checks a password and starts a session.
func (u *Users) Authenticate(ctx context.Context, username, password string) (authmw.Session, error) {
	usr, hash, err := u.ByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, sql.ErrNoRows) {
		return authmw.Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return authmw.Session{}, err
	}
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return authmw.Session{}, ErrInvalidCredentials
	}
	return authmw.NewSession(usr.ID, usr.Username, usr.Role), nil
}

// Enrol adds a user to a course.
func (u *Users) Enrol(ctx context.Context, userID string, courseID int64) error {
	_, err := db.Conn(ctx, u.db).ExecContext(ctx,
		`INSERT INTO enrolments (user_id, course_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`, userID, courseID)
	return err
}

// Assign gives a user a role in one context and, through the context path,
// everything below it.
func (u *Users) Assign(ctx context.Context, userID string, contextID int64, role string) error {
	_, err := db.Conn(ctx, u.db).ExecContext(ctx,
		`INSERT INTO role_assignments (user_id, context_id, role) VALUES ($1,$2,$3)
		 ON CONFLICT (user_id, context_id) DO UPDATE SET role=EXCLUDED.role`, userID, contextID, role)
	return err
}

var (
	ErrUserNotFound = errors.New("user not found")
	ErrLastAdmin    = errors.New("cannot demote the last admin")
)

// ChangePassword replaces the hash after checking the old password.
func (u *Users) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if newPassword == "" {
		return errors.New("new password required")
	}
	conn := db.Conn(ctx, u.db)
	var stored string
	err := conn.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id=$1`, userID).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(stored), []byte(oldPassword)) != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), u.cost)
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, string(hash), userID)
	return err
}

// SetRole changes the site role of the user with the given id or username.
func (u *Users) SetRole(ctx context.Context, target, role string) error {
	return db.WithTx(ctx, db.NewStore(u.db), func(ctx context.Context) error {
		conn := db.Conn(ctx, u.db)
		var id, cur string
		err := conn.QueryRowContext(ctx,
			`SELECT id, role FROM users WHERE id=$1 OR username=$1`, target).Scan(&id, &cur)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}
		if cur == "admin" && role != "admin" {
			var admins int
			if err := conn.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE role='admin'`).Scan(&admins); err != nil {
				return err
			}
			if admins <= 1 {
				return ErrLastAdmin
			}
		}
		_, err = conn.ExecContext(ctx, `UPDATE users SET role=$1 WHERE id=$2`, role, id)
		return err
	})
}

func (u *Users) List(ctx context.Context, role string) ([]User, error) {
	q, args := `SELECT id, username, role FROM users ORDER BY username`, []any{}
	if role != "" {
		q, args = `SELECT id, username, role FROM users WHERE role=$1 ORDER BY username`, []any{role}
	}
	rows, err := db.Conn(ctx, u.db).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		var usr User
		if err := rows.Scan(&usr.ID, &usr.Username, &usr.Role); err != nil {
			return nil, err
		}
		out = append(out, usr)
	}
	return out, rows.Err()
}
