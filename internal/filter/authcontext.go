package filter

import (
	"context"
	"fmt"

	"github.com/mind-engage/mindengage-ilq/internal/engine"
)

// authContext picks the context a new usage lives in and checks the user may
// be there. A module id in the request wins over a course id, which wins
// over the context of the question's category.
func (p *pass) authContext(ctx context.Context, q *engine.Question) (engine.Context, error) {
	if cmid, ok := p.req.OptionalInt("cmid"); ok && cmid != 0 {
		cm, err := p.f.contexts.CourseModule(ctx, cmid)
		if err != nil {
			return engine.Context{}, fmt.Errorf("course module %d: %w", cmid, err)
		}
		if err := p.f.authz.RequireSession(ctx, engine.Scope{CourseID: cm.CourseID, ModuleID: cm.ID}); err != nil {
			return engine.Context{}, err
		}
		return p.f.contexts.ModuleContext(ctx, cm.ID)
	}

	if courseID, ok := p.req.OptionalInt("courseid"); ok && courseID != 0 {
		if err := p.f.authz.RequireSession(ctx, engine.Scope{CourseID: courseID}); err != nil {
			return engine.Context{}, err
		}
		return p.f.contexts.CourseContext(ctx, courseID)
	}

	if err := p.f.authz.RequireSession(ctx, engine.Scope{}); err != nil {
		return engine.Context{}, err
	}
	c, err := p.f.contexts.ContextOwningCategory(ctx, q.CategoryID)
	if err != nil {
		return engine.Context{}, fmt.Errorf("question %d category %d: %w", q.ID, q.CategoryID, err)
	}
	p.req.SetPageContext(c)
	return c, nil
}
