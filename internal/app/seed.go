package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mind-engage/mindengage-ilq/internal/auth"
	"github.com/mind-engage/mindengage-ilq/internal/content"
	"github.com/mind-engage/mindengage-ilq/internal/db"
	"github.com/mind-engage/mindengage-ilq/internal/engine"
	"github.com/mind-engage/mindengage-ilq/internal/qengine"
)

// Fixture is a site snapshot: the context tree, the question bank, users
// and pages. Import applies it in dependency order.
type Fixture struct {
	Contexts []struct {
		ID       int64  `yaml:"id"`
		Level    string `yaml:"level"`
		Instance int64  `yaml:"instance"`
		Path     string `yaml:"path"`
	} `yaml:"contexts"`
	Courses []struct {
		ID        int64  `yaml:"id"`
		Shortname string `yaml:"shortname"`
		Fullname  string `yaml:"fullname"`
	} `yaml:"courses"`
	Modules []struct {
		ID       int64  `yaml:"id"`
		CourseID int64  `yaml:"course_id"`
		Name     string `yaml:"name"`
	} `yaml:"modules"`
	Categories []engine.Category `yaml:"categories"`
	Questions  []struct {
		ID         int64           `yaml:"id"`
		CategoryID int64           `yaml:"category_id"`
		Name       string          `yaml:"name"`
		Type       string          `yaml:"type"`
		Prompt     string          `yaml:"prompt"`
		Choices    []engine.Choice `yaml:"choices"`
		Answer     []string        `yaml:"answer"`
		MaxMark    float64         `yaml:"max_mark"`
	} `yaml:"questions"`
	Users []struct {
		auth.User `yaml:",inline"`
		Password  string  `yaml:"password"`
		Courses   []int64 `yaml:"courses"`
		Roles     []struct {
			Context int64  `yaml:"context"`
			Role    string `yaml:"role"`
		} `yaml:"roles"`
	} `yaml:"users"`
	Pages []content.Page `yaml:"pages"`
}

func ReadFixture(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("fixture: %w", err)
	}
	return &f, nil
}

var levels = map[string]engine.ContextLevel{
	"system": engine.LevelSystem,
	"course": engine.LevelCourse,
	"module": engine.LevelModule,
}

// Import writes the fixture in one transaction.
func (a *App) Import(ctx context.Context, f *Fixture) error {
	return db.WithTx(ctx, a.Store, func(ctx context.Context) error {
		for _, c := range f.Courses {
			if err := a.Contexts.PutCourse(ctx, c.ID, c.Shortname, c.Fullname); err != nil {
				return fmt.Errorf("course %d: %w", c.ID, err)
			}
		}
		for _, m := range f.Modules {
			if err := a.Contexts.PutCourseModule(ctx, engine.CourseModule{ID: m.ID, CourseID: m.CourseID}, m.Name); err != nil {
				return fmt.Errorf("module %d: %w", m.ID, err)
			}
		}
		for _, c := range f.Contexts {
			lvl, ok := levels[c.Level]
			if !ok {
				return fmt.Errorf("context %d: unknown level %q", c.ID, c.Level)
			}
			var path []int64
			if c.Path != "" {
				var err error
				if path, err = qengine.ParsePath(c.Path); err != nil {
					return fmt.Errorf("context %d: %w", c.ID, err)
				}
			}
			if err := a.Contexts.PutContext(ctx, engine.Context{ID: c.ID, Level: lvl, InstanceID: c.Instance, Path: path}); err != nil {
				return fmt.Errorf("context %d: %w", c.ID, err)
			}
		}
		for _, c := range f.Categories {
			if err := a.Bank.PutCategory(ctx, c); err != nil {
				return fmt.Errorf("category %d: %w", c.ID, err)
			}
		}
		for _, q := range f.Questions {
			err := a.Bank.PutQuestion(ctx, engine.Question{
				ID: q.ID, CategoryID: q.CategoryID, Name: q.Name, Type: q.Type,
				PromptHTML: q.Prompt, Choices: q.Choices, AnswerKey: q.Answer, MaxMark: q.MaxMark,
			})
			if err != nil {
				return fmt.Errorf("question %d: %w", q.ID, err)
			}
		}
		for _, u := range f.Users {
			if u.ID == "" {
				existing, _, err := a.Users.ByUsername(ctx, u.Username)
				if err != nil && !errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("user %s: %w", u.Username, err)
				}
				u.ID = existing.ID
			}
			usr, err := a.Users.Put(ctx, u.User, u.Password)
			if err != nil {
				return fmt.Errorf("user %s: %w", u.Username, err)
			}
			for _, c := range u.Courses {
				if err := a.Users.Enrol(ctx, usr.ID, c); err != nil {
					return fmt.Errorf("enrol %s in %d: %w", usr.Username, c, err)
				}
			}
			for _, ra := range u.Roles {
				if err := a.Users.Assign(ctx, usr.ID, ra.Context, ra.Role); err != nil {
					return fmt.Errorf("assign %s: %w", usr.Username, err)
				}
			}
		}
		for _, p := range f.Pages {
			if err := a.Pages.Put(ctx, p); err != nil {
				return fmt.Errorf("page %s: %w", p.ID, err)
			}
		}
		a.Log.Info("fixture imported",
			zap.Int("questions", len(f.Questions)),
			zap.Int("users", len(f.Users)),
			zap.Int("pages", len(f.Pages)))
		return nil
	})
}

// EnsureAdmin creates or refreshes the configured admin account.
func (a *App) EnsureAdmin(ctx context.Context, username, hash string) error {
	usr, _, err := a.Users.ByUsername(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		usr, err = auth.User{ID: "admin|" + username, Username: username}, nil
	}
	if err != nil {
		return err
	}
	usr.Role = "admin"
	return a.Users.PutHash(ctx, usr, hash)
}
