// Package content stores the pages whose text runs through the filter.
package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mind-engage/mindengage-ilq/internal/db"
	"github.com/mind-engage/mindengage-ilq/internal/engine"
)

// Page is authored HTML. CourseID and CMID place it in the context
// hierarchy; zero means site level.
type Page struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Content   string    `json:"content" yaml:"content"`
	CourseID  int64     `json:"course_id,omitempty" yaml:"course_id"`
	CMID      int64     `json:"cmid,omitempty" yaml:"cmid"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(h *sql.DB) *Store { return &Store{db: h, now: time.Now} }

func (s *Store) Put(ctx context.Context, p Page) error {
	if p.ID == "" {
		return errors.New("page id is required")
	}
	_, err := db.Conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO pages (id, title, content, course_id, cmid, updated_at) VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, content=EXCLUDED.content,
		   course_id=EXCLUDED.course_id, cmid=EXCLUDED.cmid, updated_at=EXCLUDED.updated_at`,
		p.ID, p.Title, p.Content, p.CourseID, p.CMID, s.now().Unix())
	return err
}

func (s *Store) Get(ctx context.Context, id string) (Page, error) {
	var (
		p       Page
		updated int64
	)
	err := db.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT id, title, content, course_id, cmid, updated_at FROM pages WHERE id=$1`, id).
		Scan(&p.ID, &p.Title, &p.Content, &p.CourseID, &p.CMID, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Page{}, fmt.Errorf("page %q: %w", id, engine.ErrNotFound)
	}
	if err != nil {
		return Page{}, err
	}
	p.UpdatedAt = time.Unix(updated, 0)
	return p, nil
}

func (s *Store) List(ctx context.Context) ([]Page, error) {
	rows, err := db.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT id, title, course_id, cmid, updated_at FROM pages ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Page
	for rows.Next() {
		var (
			p       Page
			updated int64
		)
		if err := rows.Scan(&p.ID, &p.Title, &p.CourseID, &p.CMID, &updated); err != nil {
			return nil, err
		}
		p.UpdatedAt = time.Unix(updated, 0)
		out = append(out, p)
	}
	return out, rows.Err()
}
