package http

import (
	"encoding/json"
	nethttp "net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-ilq/internal/filter"
	"github.com/mind-engage/mindengage-ilq/internal/tag"
)

type previewReq struct {
	Text     string `json:"text"`
	CourseID int64  `json:"courseid,omitempty"`
	CMID     int64  `json:"cmid,omitempty"`
}

type previewResp struct {
	HTML  string       `json:"html"`
	Tags  []previewTag `json:"tags"`
	Error string       `json:"error,omitempty"`
}

type previewTag struct {
	Raw        string            `json:"raw"`
	Options    map[string]string `json:"options,omitempty"`
	InvalidIDs []string          `json:"invalid_ids,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// PreviewHandler serves POST /filter/preview: it runs raw text through the
// filter and reports each tag's parse so authors can see why a tag was left
// alone.
func PreviewHandler(f *filter.Filter, log *zap.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req previewReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			nethttp.Error(w, "bad json", nethttp.StatusBadRequest)
			return
		}
		// a preview never replays answers
		r.Form = url.Values{}
		rc := newRequestContext(r, map[string]int64{"courseid": req.CourseID, "cmid": req.CMID})

		out := previewResp{Tags: []previewTag{}}
		html, err := f.Apply(r.Context(), rc, req.Text)
		if err != nil {
			log.Debug("preview left text unfiltered", zap.Error(err))
			out.HTML, out.Error = req.Text, err.Error()
		} else {
			out.HTML = html
		}
		for _, m := range tag.Scan(req.Text) {
			pt := previewTag{Raw: m.Raw}
			opts, err := tag.Parse(m.Raw)
			if err != nil {
				pt.Error = err.Error()
				out.Tags = append(out.Tags, pt)
				continue
			}
			pt.Options = map[string]string{}
			for _, k := range opts.Keys() {
				v, _ := opts.Get(k)
				pt.Options[k] = v.String()
			}
			ids, invalid := opts.IDs()
			pt.Options["id"] = joinIDs(ids)
			pt.InvalidIDs = invalid
			out.Tags = append(out.Tags, pt)
		}
		respondJSON(w, nethttp.StatusOK, out)
	}
}

func joinIDs(ids []int64) string {
	b := make([]byte, 0, len(ids)*4)
	for i, id := range ids {
		if i > 0 {
			b = append(b, ',')
		}
		b = strconv.AppendInt(b, id, 10)
	}
	return string(b)
}
