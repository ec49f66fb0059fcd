package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/churn-radar/internal/datanorm"
	"github.com/ignite/churn-radar/internal/export"
	"github.com/ignite/churn-radar/internal/pipeline"
	"github.com/ignite/churn-radar/internal/pkg/httputil"
	"github.com/ignite/churn-radar/internal/scoring"
	"github.com/ignite/churn-radar/internal/service/rules"
	"github.com/ignite/churn-radar/internal/source"
	"github.com/ignite/churn-radar/internal/suggest"
)

const (
	defaultMaxUpload = 64 << 20
	multipartMemory  = 32 << 20
	maxRuleSetBody   = 1 << 20
)

// Handlers contains all HTTP handlers
type Handlers struct {
	pipeline  *pipeline.Service
	rules     *rules.Service
	sources   *source.Set
	suggester suggest.Suggester
	maxUpload int64
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Deps, maxUpload int64) *Handlers {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &Handlers{
		pipeline:  deps.Pipeline,
		rules:     deps.Rules,
		sources:   deps.Sources,
		suggester: deps.Suggester,
		maxUpload: maxUpload,
	}
}

// CreateSnapshot unifies three uploaded CSVs.
//
//	POST /api/snapshots   multipart: subscription, engagement, support
func (h *Handlers) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		httputil.BadRequest(w, "invalid multipart upload: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	var tables datanorm.Tables
	dst := map[datanorm.Source]*datanorm.Table{
		datanorm.SourceSubscription: &tables.Subscription,
		datanorm.SourceEngagement:   &tables.Engagement,
		datanorm.SourceSupport:      &tables.Support,
	}
	for _, src := range datanorm.Sources {
		f, _, err := r.FormFile(string(src))
		if err != nil {
			httputil.BadRequest(w, fmt.Sprintf("missing %s file", src))
			return
		}
		t, err := datanorm.ReadTable(src, f)
		f.Close()
		if err != nil {
			if errors.Is(err, datanorm.ErrEmptyInput) {
				respondError(w, err)
				return
			}
			httputil.BadRequest(w, fmt.Sprintf("unreadable %s file: %v", src, err))
			return
		}
		*dst[src] = t
	}

	_, report, err := h.pipeline.Unify(r.Context(), tables)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.Created(w, report)
}

// LoadSnapshot unifies a batch pulled from the configured sources.
//
//	POST /api/snapshots/load
func (h *Handlers) LoadSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.sources == nil {
		httputil.ServiceUnavailable(w, "no sources configured")
		return
	}
	_, report, err := h.pipeline.LoadAndUnify(r.Context(), *h.sources)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.Created(w, report)
}

// GetSnapshot returns snapshot metadata.
//
//	GET /api/snapshots/{batchID}
func (h *Handlers) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.pipeline.Snapshot(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"batch_id":   snap.BatchID,
		"created_at": snap.CreatedAt,
		"profiles":   len(snap.Profiles),
	})
}

// DownloadUnified streams every unified profile as CSV.
//
//	GET /api/snapshots/{batchID}/unified.csv
func (h *Handlers) DownloadUnified(w http.ResponseWriter, r *http.Request) {
	snap, err := h.pipeline.Snapshot(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.CSV(w, "unified_"+snap.BatchID+".csv", func(buf *bytes.Buffer) error {
		return export.WriteUnifiedCSV(buf, snap.Profiles)
	})
}

type scoreRequest struct {
	Rules   scoring.RuleSet `json:"rules"`
	RuleSet string          `json:"rule_set"`
}

// ScoreSnapshot scores a snapshot and returns the distribution summary.
// The body is optional; without it the default rules apply.
//
//	POST /api/snapshots/{batchID}/score   {"rule_set": "name"} or {"rules": [...]}
func (h *Handlers) ScoreSnapshot(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRuleSetBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.BadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	rs := req.Rules
	if rs == nil {
		var err error
		if rs, err = h.rules.Resolve(r.Context(), req.RuleSet); err != nil {
			respondError(w, err)
			return
		}
	}
	res, err := h.pipeline.Score(r.Context(), chi.URLParam(r, "batchID"), rs)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, res)
}

// scoreFromQuery previews scores with the rule set named by ?rules=,
// default when absent. Downloads never write exports or history; POST
// .../score does. It writes the error response itself and returns nil on
// failure.
func (h *Handlers) scoreFromQuery(w http.ResponseWriter, r *http.Request) *pipeline.ScoreResult {
	rs, err := h.rules.Resolve(r.Context(), r.URL.Query().Get("rules"))
	if err != nil {
		respondError(w, err)
		return nil
	}
	res, err := h.pipeline.Preview(r.Context(), chi.URLParam(r, "batchID"), rs)
	if err != nil {
		respondError(w, err)
		return nil
	}
	return res
}

// DownloadScored streams scored profiles as CSV. active_only=true restricts
// the export to Active profiles with the downstream column set.
//
//	GET /api/snapshots/{batchID}/scored.csv?rules=name&active_only=true
func (h *Handlers) DownloadScored(w http.ResponseWriter, r *http.Request) {
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active_only"))
	res := h.scoreFromQuery(w, r)
	if res == nil {
		return
	}
	name := "scored_" + res.BatchID + ".csv"
	if activeOnly {
		name = "churn_risk_active_" + res.BatchID + ".csv"
	}
	httputil.CSV(w, name, func(buf *bytes.Buffer) error {
		return export.WriteScoredCSV(buf, res.Scored, export.ScoredOptions{ActiveOnly: activeOnly})
	})
}

// ActiveSegments returns the email and segment pairs of Active profiles.
//
//	GET /api/snapshots/{batchID}/active-segments?rules=name
func (h *Handlers) ActiveSegments(w http.ResponseWriter, r *http.Request) {
	res := h.scoreFromQuery(w, r)
	if res == nil {
		return
	}
	httputil.OK(w, map[string]any{
		"batch_id":    res.BatchID,
		"assignments": res.ActiveSegments(),
	})
}

type suggestRequest struct {
	SampleRows int    `json:"sample_rows"`
	SaveAs     string `json:"save_as"`
}

// SuggestRules asks the suggester for thresholds fitted to a snapshot and
// optionally stores the result as a named rule set.
//
//	POST /api/snapshots/{batchID}/suggest   {"sample_rows": 50, "save_as": "fitted"}
func (h *Handlers) SuggestRules(w http.ResponseWriter, r *http.Request) {
	if h.suggester == nil {
		respondError(w, suggest.ErrDisabled)
		return
	}
	var req suggestRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRuleSetBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.BadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	snap, err := h.pipeline.Snapshot(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		respondError(w, err)
		return
	}
	s, err := h.suggester.Suggest(r.Context(), suggest.Request{Profiles: snap.Profiles, SampleRows: req.SampleRows})
	if err != nil {
		respondError(w, err)
		return
	}

	resp := map[string]any{"batch_id": snap.BatchID, "suggestion": s}
	if req.SaveAs != "" {
		saved, err := h.rules.Save(r.Context(), req.SaveAs, s.Rules, rules.OriginSuggested)
		if err != nil {
			respondError(w, err)
			return
		}
		resp["saved"] = saved
	}
	httputil.OK(w, resp)
}

// ListRuleSets returns the built-in rule set and the latest version of
// every stored one.
//
//	GET /api/rule-sets
func (h *Handlers) ListRuleSets(w http.ResponseWriter, r *http.Request) {
	all, err := h.rules.List(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"rule_sets": all})
}

// ListRuns returns the run history, newest first.
//
//	GET /api/runs?limit=20
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			httputil.BadRequest(w, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	runs, err := h.pipeline.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, err)
		return
	}
	if runs == nil {
		runs = []pipeline.RunRecord{}
	}
	httputil.OK(w, map[string]any{"runs": runs})
}

type saveRuleSetRequest struct {
	Name  string          `json:"name"`
	Rules json.RawMessage `json:"rules"`
}

// SaveRuleSet stores a new version of a named rule set. JSON bodies carry
// name and rules; YAML bodies carry the rules and take the name from ?name=.
//
//	POST /api/rule-sets
func (h *Handlers) SaveRuleSet(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRuleSetBody))
	if err != nil {
		httputil.BadRequest(w, "unreadable body")
		return
	}

	name, doc := r.URL.Query().Get("name"), body
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "application/json" || mt == "" {
		var req saveRuleSetRequest
		if err := json.Unmarshal(body, &req); err != nil {
			httputil.BadRequest(w, "invalid JSON: "+err.Error())
			return
		}
		name, doc = req.Name, req.Rules
	}
	if name == "" {
		httputil.BadRequest(w, "name is required")
		return
	}

	rs, err := scoring.ParseRuleSet(doc)
	if err != nil {
		respondError(w, err)
		return
	}
	saved, err := h.rules.Save(r.Context(), name, rs, rules.OriginManual)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.Created(w, saved)
}

func (h *Handlers) lookupRuleSet(r *http.Request) (*rules.SavedRuleSet, error) {
	name := chi.URLParam(r, "name")
	if v := r.URL.Query().Get("version"); v != "" {
		version, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: version %q", rules.ErrNotFound, v)
		}
		return h.rules.GetVersion(r.Context(), name, version)
	}
	return h.rules.Get(r.Context(), name)
}

// GetRuleSet returns the latest version of a rule set, or ?version=n.
//
//	GET /api/rule-sets/{name}
func (h *Handlers) GetRuleSet(w http.ResponseWriter, r *http.Request) {
	saved, err := h.lookupRuleSet(r)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, saved)
}

// GetRuleSetYAML returns a rule set as a YAML document.
//
//	GET /api/rule-sets/{name}/yaml
func (h *Handlers) GetRuleSetYAML(w http.ResponseWriter, r *http.Request) {
	saved, err := h.lookupRuleSet(r)
	if err != nil {
		respondError(w, err)
		return
	}
	out, err := scoring.MarshalYAML(saved.Rules)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}
