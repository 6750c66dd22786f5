// Package engine defines the seams between the inline question filter and the
// host platform: request data, the question bank, the attempt (usage)
// service, authorization, context resolution and transactions.
package engine

import (
	"context"
	"errors"
	"net/url"
	"time"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrRequireLogin = errors.New("login required")
	ErrNotEnrolled  = errors.New("not enrolled")
	ErrNoSuchSlot   = errors.New("no such slot")
)

// RequestContext is the inbound page request being filtered.
type RequestContext interface {
	// OptionalInt returns a request parameter; ok is false when it is absent
	// or not an integer.
	OptionalInt(name string) (v int64, ok bool)
	SessionToken() string
	// Form is the submitted data the attempt service replays on postback.
	Form() url.Values
	SetPageContext(c Context)
}

type QuestionBank interface {
	LoadQuestion(ctx context.Context, id int64) (*Question, error)
}

type AttemptService interface {
	Create(ctx context.Context, owner string, c Context) (*Usage, error)
	Load(ctx context.Context, usageID int64) (*Usage, error)
	SetBehaviour(ctx context.Context, u *Usage, behaviour string) error
	AttachQuestion(ctx context.Context, u *Usage, q *Question) (slot int, err error)
	StartAll(ctx context.Context, u *Usage) error
	ApplyPendingActions(ctx context.Context, u *Usage, form url.Values, at time.Time) error
	Persist(ctx context.Context, u *Usage) error
	RenderBody(ctx context.Context, u *Usage, slot int, opts DisplayOptions) (string, error)
}

type Authz interface {
	RequireSession(ctx context.Context, s Scope) error
	HasCapability(ctx context.Context, capability string, c Context) bool
}

type ContextResolver interface {
	CourseModule(ctx context.Context, cmid int64) (*CourseModule, error)
	ModuleContext(ctx context.Context, cmid int64) (Context, error)
	CourseContext(ctx context.Context, courseID int64) (Context, error)
	// ContextOwningCategory fails with ErrNotFound when the category record
	// does not exist.
	ContextOwningCategory(ctx context.Context, categoryID int64) (Context, error)
}

// Datastore starts transactions. The returned context carries the
// transaction; collaborator calls made with it take part in it.
type Datastore interface {
	BeginTx(ctx context.Context) (context.Context, Tx, error)
}

type Tx interface {
	Commit() error
	// Rollback after a successful Commit is a no-op.
	Rollback() error
}
