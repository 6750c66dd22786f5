package filter_test

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-ilq/internal/engine"
)

/* ---------------- fakes for the engine seams ---------------- */

type fakeRequest struct {
	params  map[string]int64
	sesskey string
	form    url.Values
	page    *engine.Context
}

func newRequest(params map[string]int64) *fakeRequest {
	if params == nil {
		params = map[string]int64{}
	}
	return &fakeRequest{params: params, sesskey: "sk-1", form: url.Values{}}
}

func (r *fakeRequest) OptionalInt(name string) (int64, bool) {
	v, ok := r.params[name]
	return v, ok
}
func (r *fakeRequest) SessionToken() string { return r.sesskey }
func (r *fakeRequest) Form() url.Values { return r.form }
func (r *fakeRequest) SetPageContext(c engine.Context) { r.page = &c }

type fakeHost struct {
	questions  map[int64]*engine.Question
	categories map[int64]engine.Context // category id -> owning context
	modules    map[int64]engine.CourseModule
	usages     map[int64]*engine.Usage
	nextUsage  int64

	denyCapability bool
	loginErr       error
	persistErr     error
	applyErr       error

	calls    []string
	sessions []engine.Scope
	applied  []time.Time
	commits  int
	rollback int
	inTx     bool
}

func newHost() *fakeHost {
	return &fakeHost{
		questions:  map[int64]*engine.Question{},
		categories: map[int64]engine.Context{},
		modules:    map[int64]engine.CourseModule{},
		usages:     map[int64]*engine.Usage{},
		nextUsage:  100,
	}
}

func (h *fakeHost) addQuestion(id, category int64) {
	h.questions[id] = &engine.Question{ID: id, CategoryID: category, Name: fmt.Sprintf("Q%d", id), Type: "mcq_single", MaxMark: 1}
}

func (h *fakeHost) record(format string, args ...any) {
	h.calls = append(h.calls, fmt.Sprintf(format, args...))
}

func (h *fakeHost) callsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range h.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// QuestionBank

func (h *fakeHost) LoadQuestion(_ context.Context, id int64) (*engine.Question, error) {
	q, ok := h.questions[id]
	if !ok {
		return nil, fmt.Errorf("question %d: %w", id, engine.ErrNotFound)
	}
	return q, nil
}

// ContextResolver

func (h *fakeHost) CourseModule(_ context.Context, cmid int64) (*engine.CourseModule, error) {
	cm, ok := h.modules[cmid]
	if !ok {
		return nil, engine.ErrNotFound
	}
	return &cm, nil
}
func (h *fakeHost) ModuleContext(_ context.Context, cmid int64) (engine.Context, error) {
	return engine.Context{ID: 7000 + cmid, Level: engine.LevelModule, InstanceID: cmid}, nil
}
func (h *fakeHost) CourseContext(_ context.Context, courseID int64) (engine.Context, error) {
	return engine.Context{ID: 5000 + courseID, Level: engine.LevelCourse, InstanceID: courseID}, nil
}
func (h *fakeHost) ContextOwningCategory(_ context.Context, categoryID int64) (engine.Context, error) {
	c, ok := h.categories[categoryID]
	if !ok {
		return engine.Context{}, engine.ErrNotFound
	}
	return c, nil
}

// Authz

func (h *fakeHost) RequireSession(_ context.Context, s engine.Scope) error {
	h.sessions = append(h.sessions, s)
	return h.loginErr
}
func (h *fakeHost) HasCapability(_ context.Context, capability string, c engine.Context) bool {
	h.record("capability %s %d", capability, c.ID)
	return !h.denyCapability
}

// AttemptService

func (h *fakeHost) Create(_ context.Context, owner string, c engine.Context) (*engine.Usage, error) {
	h.record("create %s %d", owner, c.ID)
	return &engine.Usage{Owner: owner, ContextID: c.ID}, nil
}
func (h *fakeHost) Load(_ context.Context, usageID int64) (*engine.Usage, error) {
	h.record("load %d tx=%v", usageID, h.inTx)
	u, ok := h.usages[usageID]
	if !ok {
		return nil, engine.ErrNotFound
	}
	return u, nil
}
func (h *fakeHost) SetBehaviour(_ context.Context, u *engine.Usage, behaviour string) error {
	h.record("behaviour %s", behaviour)
	u.Behaviour = behaviour
	return nil
}
func (h *fakeHost) AttachQuestion(_ context.Context, u *engine.Usage, q *engine.Question) (int, error) {
	h.record("attach %d", q.ID)
	u.Slots = append(u.Slots, &engine.Slot{Number: len(u.Slots) + 1, Question: q, MaxMark: q.MaxMark})
	return len(u.Slots), nil
}
func (h *fakeHost) StartAll(_ context.Context, u *engine.Usage) error {
	h.record("start")
	for _, s := range u.Slots {
		s.Steps = append(s.Steps, engine.Step{State: engine.StateTodo})
	}
	return nil
}
func (h *fakeHost) ApplyPendingActions(_ context.Context, u *engine.Usage, form url.Values, at time.Time) error {
	h.record("apply %d %s tx=%v", u.ID, form.Get("answer"), h.inTx)
	h.applied = append(h.applied, at)
	return h.applyErr
}
func (h *fakeHost) Persist(_ context.Context, u *engine.Usage) error {
	if h.persistErr != nil {
		return h.persistErr
	}
	if u.ID == 0 {
		h.nextUsage++
		u.ID = h.nextUsage
		h.usages[u.ID] = u
	}
	h.record("persist %d tx=%v", u.ID, h.inTx)
	return nil
}
func (h *fakeHost) RenderBody(_ context.Context, u *engine.Usage, slot int, opts engine.DisplayOptions) (string, error) {
	s, err := u.Slot(slot)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`<div class="que" data-q="%d" data-marks="%d" data-flags="%d" data-ro="%v"></div>`,
		s.Question.ID, opts.Marks, opts.Flags, opts.ReadOnly), nil
}

// Datastore

type fakeTx struct {
	h    *fakeHost
	done bool
}

func (h *fakeHost) BeginTx(ctx context.Context) (context.Context, engine.Tx, error) {
	h.inTx = true
	return ctx, &fakeTx{h: h}, nil
}
func (t *fakeTx) Commit() error {
	t.h.inTx = false
	t.h.commits++
	t.done = true
	return nil
}
func (t *fakeTx) Rollback() error {
	if t.done {
		return nil
	}
	t.h.inTx = false
	t.h.rollback++
	t.done = true
	return nil
}
