package http

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"html/template"
	nethttp "net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	authmw "github.com/mind-engage/mindengage-ilq/internal/auth/middleware"
	"github.com/mind-engage/mindengage-ilq/internal/content"
	"github.com/mind-engage/mindengage-ilq/internal/engine"
	"github.com/mind-engage/mindengage-ilq/internal/filter"
)

var pageLayout = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{ .Title }}</title></head>
<body data-context="{{ .ContextID }}">
<h1>{{ .Title }}</h1>
<div class="content">{{ .Body }}</div>
</body>
</html>
`))

type pageView struct {
	Title     string
	ContextID int64
	Body      template.HTML
}

// PageHandler serves GET|POST /pages/{pageID}: the stored page with its
// content run through the filter. A POST carries answers for one of the
// page's questions and must echo the session's sesskey.
func PageHandler(pages *content.Store, f *filter.Filter, log *zap.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		p, err := pages.Get(r.Context(), chi.URLParam(r, "pageID"))
		if errors.Is(err, engine.ErrNotFound) {
			nethttp.NotFound(w, r)
			return
		}
		if err != nil {
			log.Error("load page", zap.Error(err))
			nethttp.Error(w, "db error", nethttp.StatusInternalServerError)
			return
		}
		if err := parseForm(r); err != nil {
			nethttp.Error(w, "bad form", nethttp.StatusBadRequest)
			return
		}
		if r.Method == nethttp.MethodPost && !validSesskey(r) {
			nethttp.Error(w, "invalid sesskey", nethttp.StatusForbidden)
			return
		}

		rc := newRequestContext(r, map[string]int64{"courseid": p.CourseID, "cmid": p.CMID})
		body := f.Filter(r.Context(), rc, p.Content)

		v := pageView{Title: p.Title, Body: template.HTML(body)}
		if c, ok := rc.PageContext(); ok {
			v.ContextID = c.ID
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := pageLayout.Execute(w, v); err != nil {
			log.Warn("write page", zap.String("page", p.ID), zap.Error(err))
		}
	}
}

func validSesskey(r *nethttp.Request) bool {
	s, ok := authmw.SessionFromContext(r.Context())
	got := r.Form.Get("sesskey")
	return ok && got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(s.SessKey)) == 1
}

// ListPagesHandler serves GET /pages.
func ListPagesHandler(pages *content.Store, log *zap.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		out, err := pages.List(r.Context())
		if err != nil {
			log.Error("list pages", zap.Error(err))
			nethttp.Error(w, "db error", nethttp.StatusInternalServerError)
			return
		}
		if out == nil {
			out = []content.Page{}
		}
		respondJSON(w, nethttp.StatusOK, out)
	}
}

// PutPageHandler serves PUT /pages/{pageID} with a JSON page body.
func PutPageHandler(pages *content.Store, log *zap.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var p content.Page
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			nethttp.Error(w, "bad json", nethttp.StatusBadRequest)
			return
		}
		p.ID = chi.URLParam(r, "pageID")
		if err := pages.Put(r.Context(), p); err != nil {
			log.Error("put page", zap.String("page", p.ID), zap.Error(err))
			nethttp.Error(w, "db error", nethttp.StatusInternalServerError)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}
