package qengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mind-engage/mindengage-ilq/internal/db"
	"github.com/mind-engage/mindengage-ilq/internal/engine"
)

// Contexts resolves the permission hierarchy stored in the contexts table.
type Contexts struct{ db *sql.DB }

func NewContexts(h *sql.DB) *Contexts { return &Contexts{db: h} }

func (c *Contexts) CourseModule(ctx context.Context, cmid int64) (*engine.CourseModule, error) {
	var cm engine.CourseModule
	err := db.Conn(ctx, c.db).QueryRowContext(ctx,
		`SELECT id, course_id FROM course_modules WHERE id=$1`, cmid).Scan(&cm.ID, &cm.CourseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("course module %d: %w", cmid, engine.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &cm, nil
}

func (c *Contexts) ModuleContext(ctx context.Context, cmid int64) (engine.Context, error) {
	return c.byInstance(ctx, engine.LevelModule, cmid)
}

func (c *Contexts) CourseContext(ctx context.Context, courseID int64) (engine.Context, error) {
	return c.byInstance(ctx, engine.LevelCourse, courseID)
}

func (c *Contexts) ContextOwningCategory(ctx context.Context, categoryID int64) (engine.Context, error) {
	row := db.Conn(ctx, c.db).QueryRowContext(ctx,
		`SELECT c.id, c.contextlevel, c.instance_id, c.path
		   FROM question_categories qc JOIN contexts c ON c.id = qc.context_id
		  WHERE qc.id=$1`, categoryID)
	out, err := scanContext(row)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Context{}, fmt.Errorf("question category %d: %w", categoryID, engine.ErrNotFound)
	}
	return out, err
}

// ByID loads one context.
func (c *Contexts) ByID(ctx context.Context, id int64) (engine.Context, error) {
	row := db.Conn(ctx, c.db).QueryRowContext(ctx,
		`SELECT id, contextlevel, instance_id, path FROM contexts WHERE id=$1`, id)
	out, err := scanContext(row)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Context{}, fmt.Errorf("context %d: %w", id, engine.ErrNotFound)
	}
	return out, err
}

func (c *Contexts) byInstance(ctx context.Context, level engine.ContextLevel, instance int64) (engine.Context, error) {
	row := db.Conn(ctx, c.db).QueryRowContext(ctx,
		`SELECT id, contextlevel, instance_id, path FROM contexts
		  WHERE contextlevel=$1 AND instance_id=$2`, int(level), instance)
	out, err := scanContext(row)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Context{}, fmt.Errorf("%s context %d: %w", level, instance, engine.ErrNotFound)
	}
	return out, err
}

// PutContext upserts a context. An empty Path is stored as just the id.
func (c *Contexts) PutContext(ctx context.Context, x engine.Context) error {
	if len(x.Path) == 0 {
		x.Path = []int64{x.ID}
	}
	_, err := db.Conn(ctx, c.db).ExecContext(ctx,
		`INSERT INTO contexts (id, contextlevel, instance_id, path) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (id) DO UPDATE SET contextlevel=EXCLUDED.contextlevel,
		   instance_id=EXCLUDED.instance_id, path=EXCLUDED.path`,
		x.ID, int(x.Level), x.InstanceID, FormatPath(x.Path))
	return err
}

func (c *Contexts) PutCourse(ctx context.Context, id int64, shortname, fullname string) error {
	_, err := db.Conn(ctx, c.db).ExecContext(ctx,
		`INSERT INTO courses (id, shortname, fullname) VALUES ($1,$2,$3)
		 ON CONFLICT (id) DO UPDATE SET shortname=EXCLUDED.shortname, fullname=EXCLUDED.fullname`,
		id, shortname, fullname)
	return err
}

func (c *Contexts) PutCourseModule(ctx context.Context, cm engine.CourseModule, name string) error {
	_, err := db.Conn(ctx, c.db).ExecContext(ctx,
		`INSERT INTO course_modules (id, course_id, name) VALUES ($1,$2,$3)
		 ON CONFLICT (id) DO UPDATE SET course_id=EXCLUDED.course_id, name=EXCLUDED.name`,
		cm.ID, cm.CourseID, name)
	return err
}

func scanContext(row *sql.Row) (engine.Context, error) {
	var (
		out   engine.Context
		level int
		path  string
	)
	if err := row.Scan(&out.ID, &level, &out.InstanceID, &path); err != nil {
		return engine.Context{}, err
	}
	out.Level = engine.ContextLevel(level)
	p, err := ParsePath(path)
	if err != nil {
		return engine.Context{}, fmt.Errorf("context %d: %w", out.ID, err)
	}
	out.Path = p
	return out, nil
}

// FormatPath renders ancestor ids as "/1/5/12".
func FormatPath(ids []int64) string {
	var b strings.Builder
	for _, id := range ids {
		b.WriteByte('/')
		b.WriteString(strconv.FormatInt(id, 10))
	}
	return b.String()
}

func ParsePath(s string) ([]int64, error) {
	s = strings.Trim(s, "/")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, "/")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad context path %q", s)
		}
		out = append(out, id)
	}
	return out, nil
}
