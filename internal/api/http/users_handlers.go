package http

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-ilq/internal/auth"
	"github.com/mind-engage/mindengage-ilq/internal/db"
	"github.com/mind-engage/mindengage-ilq/internal/rbac"
)

type userRow struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`               // usually "student"
	Password string `json:"password,omitempty"` // plaintext optional (LAN-only)
	CourseID int64  `json:"course_id,omitempty"`
}

// UserAdmin serves the bulk user endpoints.
type UserAdmin struct {
	Users   *auth.Users
	Store   *db.Store
	Checker *rbac.Checker
	Log     *zap.Logger
}

// BulkUpsert serves POST /users. It accepts a JSON array body or a
// multipart file= holding JSON or CSV. A course_id column enrols the user.
func (a *UserAdmin) BulkUpsert(w http.ResponseWriter, r *http.Request) {
	var rows []userRow
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file required", http.StatusBadRequest)
			return
		}
		defer f.Close()
		br := bufio.NewReader(f)
		first, err := peekNonSpace(br)
		if err != nil {
			http.Error(w, "empty file", http.StatusBadRequest)
			return
		}
		if first == '[' {
			if err := json.NewDecoder(br).Decode(&rows); err != nil {
				http.Error(w, "bad json", http.StatusBadRequest)
				return
			}
		} else if rows, err = parseCSV(br); err != nil {
			http.Error(w, "bad csv: "+err.Error(), http.StatusBadRequest)
			return
		}
	} else if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
		http.Error(w, "expected JSON array or multipart file", http.StatusBadRequest)
		return
	}

	ins, upd, err := a.upsert(r.Context(), rows)
	var bad *badRowError
	if errors.As(err, &bad) {
		http.Error(w, bad.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		a.Log.Error("bulk upsert users", zap.Error(err))
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"inserted": ins, "updated": upd})
}

// List serves GET /users?role=.
func (a *UserAdmin) List(w http.ResponseWriter, r *http.Request) {
	out, err := a.Users.List(r.Context(), r.URL.Query().Get("role"))
	if err != nil {
		a.Log.Error("list users", zap.Error(err))
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

type badRowError struct {
	line int
	msg  string
}

func (e *badRowError) Error() string { return fmt.Sprintf("row %d: %s", e.line, e.msg) }

// upsert writes all rows or none. Rows match existing users by id, then
// username; a new user needs a password.
func (a *UserAdmin) upsert(ctx context.Context, rows []userRow) (inserted, updated int, err error) {
	err = db.WithTx(ctx, a.Store, func(ctx context.Context) error {
		for i, row := range rows {
			row.Role = strings.ToLower(strings.TrimSpace(row.Role))
			if row.Role == "" {
				row.Role = "student"
			}
			if _, ok := a.Checker.RolePermissions[row.Role]; !ok {
				return &badRowError{i + 1, "invalid role: " + row.Role}
			}
			existing, _, err := a.Users.ByUsername(ctx, strings.TrimSpace(row.Username))
			switch {
			case err == nil:
				if row.ID != "" && row.ID != existing.ID {
					return &badRowError{i + 1, "username taken: " + row.Username}
				}
				row.ID = existing.ID
				updated++
			case errors.Is(err, sql.ErrNoRows):
				if row.Password == "" {
					return &badRowError{i + 1, "password required for new user: " + row.Username}
				}
				inserted++
			default:
				return err
			}
			usr, err := a.Users.Put(ctx, auth.User{ID: row.ID, Username: row.Username, Role: row.Role}, row.Password)
			if err != nil {
				return err
			}
			if row.CourseID != 0 {
				if err := a.Users.Enrol(ctx, usr.ID, row.CourseID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return inserted, updated, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for n := 1; ; n++ {
		b, err := br.Peek(n)
		if len(b) < n {
			if err == nil {
				err = io.EOF
			}
			return 0, err
		}
		if c := b[n-1]; c != ' ' && c != '\t' && c != '\r' && c != '\n' {
			return c, nil
		}
	}
}

func parseCSV(r io.Reader) ([]userRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	hdr, err := cr.Read()
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	for i, h := range hdr {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := idx["username"]; !ok {
		return nil, errors.New("missing column: username")
	}
	col := func(rec []string, name string) string {
		if i, ok := idx[name]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	var rows []userRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := userRow{
			ID:       col(rec, "id"),
			Username: col(rec, "username"),
			Role:     col(rec, "role"),
			Password: col(rec, "password"),
		}
		if s := col(rec, "course_id"); s != "" {
			if row.CourseID, err = strconv.ParseInt(s, 10, 64); err != nil {
				return nil, fmt.Errorf("course_id %q: %w", s, err)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
