package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	authmw "github.com/mind-engage/mindengage-ilq/internal/auth/middleware"
	"github.com/mind-engage/mindengage-ilq/internal/db"
	"github.com/mind-engage/mindengage-ilq/internal/engine"
)

// CapViewAllCourses lets a role into every course without an enrolment.
const CapViewAllCourses = "course:viewall"

// Authz implements engine.Authz for the session in the request context.
type Authz struct {
	db      *sql.DB
	checker *Checker
	log     *zap.Logger
}

func NewAuthz(h *sql.DB, c *Checker, log *zap.Logger) *Authz {
	if c == nil {
		c = NewChecker(nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Authz{db: h, checker: c, log: log}
}

// RequireSession needs a logged-in user and, for a course scope, an
// enrolment in that course unless the role may view all courses.
func (a *Authz) RequireSession(ctx context.Context, s engine.Scope) error {
	sess, ok := authmw.SessionFromContext(ctx)
	if !ok {
		return engine.ErrRequireLogin
	}
	if s.CourseID == 0 || a.checker.Has(sess.Role, CapViewAllCourses) {
		return nil
	}
	var one int
	err := db.Conn(ctx, a.db).QueryRowContext(ctx,
		`SELECT 1 FROM enrolments WHERE user_id=$1 AND course_id=$2`, sess.UserID, s.CourseID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("course %d: %w", s.CourseID, engine.ErrNotEnrolled)
	}
	if err != nil {
		return fmt.Errorf("check enrolment: %w", err)
	}
	return nil
}

// HasCapability grants cap when the session role, or a role assigned to the
// user in c or any of its ancestors, holds it.
func (a *Authz) HasCapability(ctx context.Context, capability string, c engine.Context) bool {
	sess, ok := authmw.SessionFromContext(ctx)
	if !ok {
		return false
	}
	if a.checker.Has(sess.Role, capability) {
		return true
	}
	roles, err := a.assignedRoles(ctx, sess.UserID, c)
	if err != nil {
		a.log.Warn("role assignments", zap.String("user", sess.UserID), zap.Int64("context", c.ID), zap.Error(err))
		return false
	}
	return a.checker.HasAny(roles, capability)
}

func (a *Authz) assignedRoles(ctx context.Context, userID string, c engine.Context) ([]string, error) {
	path := c.Path
	if len(path) == 0 {
		path = []int64{c.ID}
	}
	inPath := make(map[int64]bool, len(path))
	for _, id := range path {
		inPath[id] = true
	}
	rows, err := db.Conn(ctx, a.db).QueryContext(ctx,
		`SELECT context_id, role FROM role_assignments WHERE user_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var (
			ctxID int64
			role  string
		)
		if err := rows.Scan(&ctxID, &role); err != nil {
			return nil, err
		}
		if inPath[ctxID] {
			roles = append(roles, role)
		}
	}
	return roles, rows.Err()
}
