// Package filter replaces {ILQ:...} tags in page text with interactive
// question forms backed by the host's attempt service.
package filter

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-ilq/internal/engine"
	"github.com/mind-engage/mindengage-ilq/internal/tag"
)

const (
	// Component owns the usages this filter creates.
	Component = "filter_inlinequestions"
	Behaviour = "adaptivenopenalty"

	CapViewAll = "question:viewall"
)

type Deps struct {
	Bank     engine.QuestionBank
	Attempts engine.AttemptService
	Authz    engine.Authz
	Contexts engine.ContextResolver
	Store    engine.Datastore

	Log *zap.Logger
	Now func() time.Time
}

// Filter is safe for concurrent use; all per-invocation state lives in a
// pass created by Apply.
type Filter struct {
	bank     engine.QuestionBank
	attempts engine.AttemptService
	authz    engine.Authz
	contexts engine.ContextResolver
	store    engine.Datastore
	log      *zap.Logger
	now      func() time.Time
}

func New(d Deps) *Filter {
	f := &Filter{
		bank:     d.Bank,
		attempts: d.Attempts,
		authz:    d.Authz,
		contexts: d.Contexts,
		store:    d.Store,
		log:      d.Log,
		now:      d.Now,
	}
	if f.log == nil {
		f.log = zap.NewNop()
	}
	if f.now == nil {
		f.now = time.Now
	}
	return f
}

// Filter returns text with every tag rendered. If any tag fails, the
// original text is returned untouched.
func (f *Filter) Filter(ctx context.Context, req engine.RequestContext, text string) string {
	out, err := f.Apply(ctx, req, text)
	if err != nil {
		f.log.Warn("inline questions left unfiltered", zap.Error(err))
		return text
	}
	return out
}

// FilterValue filters strings and passes any other value through.
func (f *Filter) FilterValue(ctx context.Context, req engine.RequestContext, v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	return f.Filter(ctx, req, s)
}

// Apply is Filter with the failure reported instead of swallowed.
func (f *Filter) Apply(ctx context.Context, req engine.RequestContext, text string) (string, error) {
	if !tag.Contains(text) {
		return text, nil
	}
	p := &pass{f: f, req: req}
	return tag.ReplaceAll(text, func(raw string) (string, error) {
		return p.renderTag(ctx, raw)
	})
}
