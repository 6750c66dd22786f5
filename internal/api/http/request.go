package http

import (
	"errors"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"

	authmw "github.com/mind-engage/mindengage-ilq/internal/auth/middleware"
	"github.com/mind-engage/mindengage-ilq/internal/engine"
)

const maxFormMemory = 1 << 20

// parseForm reads query and body parameters, multipart or urlencoded.
func parseForm(r *nethttp.Request) error {
	err := r.ParseMultipartForm(maxFormMemory)
	if errors.Is(err, nethttp.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

// requestContext is the engine.RequestContext of one HTTP request. Params
// missing from the request fall back to defaults, such as the course and
// module a stored page belongs to.
type requestContext struct {
	form     url.Values
	defaults map[string]int64
	sesskey  string
	page     *engine.Context
}

func newRequestContext(r *nethttp.Request, defaults map[string]int64) *requestContext {
	rc := &requestContext{form: r.Form, defaults: defaults}
	if rc.form == nil {
		rc.form = url.Values{}
	}
	if s, ok := authmw.SessionFromContext(r.Context()); ok {
		rc.sesskey = s.SessKey
	}
	return rc
}

func (rc *requestContext) OptionalInt(name string) (int64, bool) {
	if vs, ok := rc.form[name]; ok && len(vs) > 0 {
		v, err := strconv.ParseInt(strings.TrimSpace(vs[0]), 10, 64)
		return v, err == nil
	}
	if v, ok := rc.defaults[name]; ok && v != 0 {
		return v, true
	}
	return 0, false
}

func (rc *requestContext) SessionToken() string { return rc.sesskey }

func (rc *requestContext) Form() url.Values { return rc.form }

func (rc *requestContext) SetPageContext(c engine.Context) { rc.page = &c }

// PageContext is the context the filter set for the page, if any.
func (rc *requestContext) PageContext() (engine.Context, bool) {
	if rc.page == nil {
		return engine.Context{}, false
	}
	return *rc.page, true
}
