package filter

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-ilq/internal/engine"
	"github.com/mind-engage/mindengage-ilq/internal/tag"
)

// slot is fixed: every usage created here holds exactly one question.
const slot = 1

type outcome int

const (
	emitted outcome = iota
	skipped
	fatal
)

// result is the outcome of rendering one question id.
type result struct {
	kind   outcome
	html   string
	reason string
	err    error
}

func emit(html string) result { return result{kind: emitted, html: html} }
func skip(reason string) result { return result{kind: skipped, reason: reason} }
func failed(err error) result { return result{kind: fatal, err: err} }

// pass is the state of one filter invocation. scrollpos counts emitted
// fragments across every tag in the text.
type pass struct {
	f         *Filter
	req       engine.RequestContext
	scrollpos int
}

func (p *pass) renderTag(ctx context.Context, raw string) (string, error) {
	opts, err := tag.Parse(raw)
	if err != nil {
		return "", err
	}
	ids, invalid := opts.IDs()
	for _, s := range invalid {
		p.f.log.Debug("question skipped", zap.String("question_id", s), zap.String("reason", "invalid question id"))
	}
	display := displayOptions(opts)

	var b strings.Builder
	for _, id := range ids {
		r := p.renderQuestion(ctx, id, display)
		switch r.kind {
		case skipped:
			p.f.log.Debug("question skipped", zap.Int64("question_id", id), zap.String("reason", r.reason))
		case fatal:
			return "", fmt.Errorf("question %d: %w", id, r.err)
		default:
			b.WriteString(r.html)
		}
	}
	return b.String(), nil
}

func (p *pass) renderQuestion(ctx context.Context, id int64, display engine.DisplayOptions) result {
	var u *engine.Usage
	if usageID, isPostback := p.postbackFor(id); isPostback {
		var err error
		if u, err = p.replay(ctx, usageID); err != nil {
			return failed(err)
		}
	} else {
		var r result
		if u, r = p.start(ctx, id); u == nil {
			return r
		}
	}

	body, err := p.f.attempts.RenderBody(ctx, u, slot, display)
	if err != nil {
		return failed(fmt.Errorf("render usage %d: %w", u.ID, err))
	}
	html, err := questionForm([]hiddenField{
		{name: "sesskey", value: p.req.SessionToken()},
		{name: "slots", value: strconv.Itoa(slot)},
		{name: "scrollpos", value: "q" + strconv.Itoa(p.scrollpos), id: "scrollpos"},
		{name: "usage_id", value: strconv.FormatInt(u.ID, 10)},
		{name: "question_id", value: strconv.FormatInt(id, 10)},
	}, body)
	if err != nil {
		return failed(err)
	}
	p.scrollpos++
	return emit(html)
}

// postbackFor reports whether the request submits answers for question id.
func (p *pass) postbackFor(id int64) (int64, bool) {
	usageID, hasUsage := p.req.OptionalInt("usage_id")
	qid, hasQuestion := p.req.OptionalInt("question_id")
	if !hasUsage || !hasQuestion || usageID == 0 || qid == 0 {
		return 0, false
	}
	return usageID, qid == id
}

// replay applies the submitted actions to an existing usage atomically.
func (p *pass) replay(ctx context.Context, usageID int64) (u *engine.Usage, err error) {
	txCtx, tx, err := p.f.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin postback: %w", err)
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, tx.Rollback())
		}
	}()

	u, err = p.f.attempts.Load(txCtx, usageID)
	if err != nil {
		return nil, fmt.Errorf("load usage %d: %w", usageID, err)
	}
	if err = p.f.attempts.ApplyPendingActions(txCtx, u, p.req.Form(), p.f.now()); err != nil {
		return nil, fmt.Errorf("process actions for usage %d: %w", usageID, err)
	}
	if err = p.f.attempts.Persist(txCtx, u); err != nil {
		return nil, fmt.Errorf("save usage %d: %w", usageID, err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit postback: %w", err)
	}
	return u, nil
}

// start creates a fresh usage for question id. A nil usage comes with a skip
// or fatal result.
func (p *pass) start(ctx context.Context, id int64) (*engine.Usage, result) {
	q, err := p.f.bank.LoadQuestion(ctx, id)
	if err != nil {
		return nil, skip(err.Error())
	}
	c, err := p.authContext(ctx, q)
	if err != nil {
		return nil, failed(err)
	}
	if !p.f.authz.HasCapability(ctx, CapViewAll, c) {
		return nil, skip("missing capability " + CapViewAll)
	}

	u, err := p.f.attempts.Create(ctx, Component, c)
	if err != nil {
		return nil, failed(fmt.Errorf("create usage: %w", err))
	}
	if err := p.f.attempts.SetBehaviour(ctx, u, Behaviour); err != nil {
		return nil, failed(err)
	}
	if _, err := p.f.attempts.AttachQuestion(ctx, u, q); err != nil {
		return nil, failed(err)
	}
	if err := p.f.attempts.StartAll(ctx, u); err != nil {
		return nil, failed(err)
	}
	if err := p.f.attempts.Persist(ctx, u); err != nil {
		return nil, failed(fmt.Errorf("save usage: %w", err))
	}
	return u, result{}
}
