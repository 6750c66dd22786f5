package content

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-ilq/internal/db"
	"github.com/mind-engage/mindengage-ilq/internal/engine"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	h, err := db.Open(ctx, db.DriverSQLite, "file::memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = h.Close() })
	s := NewStore(h)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	if err := s.Put(ctx, Page{Title: "no id"}); err == nil {
		t.Fatal("expected error for missing id")
	}
	if err := s.Put(ctx, Page{ID: "b", Title: "B", Content: "{ILQ:id=1}", CourseID: 2, CMID: 7}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, Page{ID: "a", Title: "A"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, Page{ID: "a", Title: "A2", Content: "x"}); err != nil {
		t.Fatal(err)
	}

	p, err := s.Get(ctx, "b")
	if err != nil {
		t.Fatal(err)
	}
	if p.Content != "{ILQ:id=1}" || p.CourseID != 2 || p.CMID != 7 || p.UpdatedAt.Unix() != 1700000000 {
		t.Fatalf("page = %+v", p)
	}
	if _, err := s.Get(ctx, "zz"); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("missing page err = %v", err)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != "a" || list[0].Title != "A2" || list[0].Content != "" {
		t.Fatalf("list = %+v", list)
	}
}
