package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/HyperAST/HyperAST-sub006/internal/diff"
	"github.com/HyperAST/HyperAST-sub006/internal/metrics"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/errors"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/logger"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/security"
	"github.com/HyperAST/HyperAST-sub006/internal/store"
	"github.com/HyperAST/HyperAST-sub006/internal/treegen"
	"github.com/HyperAST/HyperAST-sub006/internal/workspace"
)

// APIHandler serves the /v1 workspace endpoints.
type APIHandler struct {
	ws        *workspace.Workspace
	maxBody   int64
	log       *logger.Logger
	collector *metrics.Collector
}

func NewAPIHandler(ws *workspace.Workspace, maxBody int64, log *logger.Logger) *APIHandler {
	return &APIHandler{ws: ws, maxBody: maxBody, log: logger.OrDefault(log)}
}

// WithCollector adds a metrics snapshot to /v1/stats.
func (h *APIHandler) WithCollector(c *metrics.Collector) *APIHandler {
	h.collector = c
	return h
}

// StoreSizes returns a size source for metrics.NewCollector.
func StoreSizes(ws *workspace.Workspace) func() metrics.StoreSizes {
	return func() metrics.StoreSizes {
		st := ws.Stats()
		return metrics.StoreSizes{
			Nodes:     st.Store.Nodes,
			Labels:    st.Store.Labels,
			Types:     st.Store.Types,
			Revisions: st.Revisions,
			Files:     st.Files,
		}
	}
}

func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/generate", h.handleGenerate)
	mux.HandleFunc("POST /v1/diff", h.handleDiff)
	mux.HandleFunc("GET /v1/nodes/{id}", h.handleNode)
	mux.HandleFunc("GET /v1/files", h.handleListFiles)
	mux.HandleFunc("GET /v1/files/{path...}", h.handleFile)
	mux.HandleFunc("DELETE /v1/files/{path...}", h.handleRemoveFile)
	mux.HandleFunc("GET /v1/stats", h.handleStats)
}

// decode reads a JSON body bounded by maxBody.
func (h *APIHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := r.Body
	if h.maxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case stderrors.As(err, &tooLarge):
			errors.WriteErrorWithStatus(w, http.StatusRequestEntityTooLarge,
				errors.ValidationError("request body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes"))
		case err == io.EOF:
			errors.WriteError(w, errors.InvalidRequestError("request body is empty"))
		default:
			errors.WriteError(w, errors.InvalidRequestError("invalid JSON: "+err.Error()))
		}
		return false
	}
	return true
}

func (h *APIHandler) fail(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.CodeOf(err) == "" || errors.CodeOf(err) == errors.CodeInternal {
		h.log.WithContext(ctx).WithError(err).Error("Request failed")
	}
	errors.WriteError(w, err)
}

type generateRequest struct {
	Path     string `json:"path"`
	Language string `json:"language,omitempty"`
	Content  string `json:"content"`
	Force    bool   `json:"force,omitempty"`
}

type generateResponse struct {
	Root     store.NodeID         `json:"root"`
	Metrics  store.SubTreeMetrics `json:"metrics"`
	Revision workspace.Revision   `json:"revision"`
}

func (h *APIHandler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !h.decode(w, r, &req) {
		return
	}
	v := security.GenerateRequestValidator{Path: req.Path, Language: req.Language}
	if err := v.Validate(); err != nil {
		errors.WriteError(w, err)
		return
	}
	rev, err := h.ws.Generate(r.Context(), workspace.GenerateRequest{
		Path:     req.Path,
		Language: req.Language,
		Content:  []byte(req.Content),
		Force:    req.Force,
	})
	if err != nil {
		h.fail(r.Context(), w, err)
		return
	}
	status := http.StatusCreated
	if rev.Unchanged {
		status = http.StatusOK
	}
	writeJSON(w, status, generateResponse{
		Root:     rev.Root,
		Metrics:  h.ws.Stores().Resolve(rev.Root).Metrics(),
		Revision: rev,
	})
}

// diffRequest selects the trees to diff in one of three ways: inline
// contents, node ids, or revisions of a tracked path.
type diffRequest struct {
	Name     string `json:"name,omitempty"`
	Language string `json:"language,omitempty"`
	Old      string `json:"old,omitempty"`
	New      string `json:"new,omitempty"`

	Src *store.NodeID `json:"src,omitempty"`
	Dst *store.NodeID `json:"dst,omitempty"`

	Path string `json:"path,omitempty"`
	From int    `json:"from,omitempty"`
	To   int    `json:"to,omitempty"`
}

type diffResponse struct {
	*diff.Result
	Entries []diff.Entry `json:"entries"`
}

func (h *APIHandler) handleDiff(w http.ResponseWriter, r *http.Request) {
	var req diffRequest
	if !h.decode(w, r, &req) {
		return
	}
	v := security.DiffRequestValidator{Name: req.Name, Language: req.Language, Path: req.Path, From: req.From, To: req.To}
	if err := v.Validate(); err != nil {
		errors.WriteError(w, err)
		return
	}
	ctx := r.Context()

	var res *diff.Result
	var err error
	switch {
	case req.Src != nil || req.Dst != nil:
		if req.Src == nil || req.Dst == nil {
			errors.WriteError(w, errors.ValidationError("src and dst are both required"))
			return
		}
		res, err = h.ws.Diff(ctx, *req.Src, *req.Dst)
	case req.Path != "" && req.From == 0 && req.To == 0:
		res, err = h.ws.DiffPath(ctx, req.Path)
	case req.Path != "":
		res, err = h.ws.DiffRevisions(ctx, req.Path, req.From, req.To)
	default:
		if req.Language == "" && req.Name == "" {
			errors.WriteError(w, errors.ValidationError("language or name is required for inline contents"))
			return
		}
		res, err = h.diffContents(ctx, req)
	}
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, diffResponse{Result: res, Entries: diff.Describe(h.ws.Stores(), res)})
}

func (h *APIHandler) diffContents(ctx context.Context, req diffRequest) (*diff.Result, error) {
	if req.Name == "" {
		req.Name = "inline"
	}
	src, err := h.ws.Intern(ctx, req.Name, req.Language, []byte(req.Old))
	if err != nil {
		return nil, err
	}
	dst, err := h.ws.Intern(ctx, req.Name, req.Language, []byte(req.New))
	if err != nil {
		return nil, err
	}
	return h.ws.Diff(ctx, src.ID, dst.ID)
}

// NodeView is the JSON form of an interned node.
type NodeView struct {
	ID       store.NodeID         `json:"id"`
	Type     string               `json:"type"`
	Label    string               `json:"label,omitempty"`
	Metrics  store.SubTreeMetrics `json:"metrics"`
	Children []ChildView          `json:"children,omitempty"`
	Text     string               `json:"text,omitempty"`
}

type ChildView struct {
	ID    store.NodeID `json:"id"`
	Type  string       `json:"type"`
	Role  string       `json:"role,omitempty"`
	Label string       `json:"label,omitempty"`
}

func (h *APIHandler) handleNode(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		errors.WriteError(w, errors.ValidationError("invalid node id "+strconv.Quote(r.PathValue("id"))))
		return
	}
	id := store.NodeID(n)
	stores := h.ws.Stores()
	if !stores.Nodes.Has(id) {
		errors.WriteError(w, errors.NotFoundError("node "+r.PathValue("id")))
		return
	}

	v := stores.Resolve(id)
	view := NodeView{
		ID:      id,
		Type:    stores.TypeName(id),
		Label:   stores.LabelOf(id),
		Metrics: v.Metrics(),
	}
	for i, c := range v.Children() {
		cv := ChildView{ID: c, Type: stores.TypeName(c), Label: stores.LabelOf(c)}
		if role, ok := v.RoleAt(i); ok {
			cv.Role = stores.Types.RoleName(role)
		}
		view.Children = append(view.Children, cv)
	}
	if text, _ := strconv.ParseBool(r.URL.Query().Get("text")); text {
		view.Text = treegen.Serialize(stores, id)
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *APIHandler) handleListFiles(w http.ResponseWriter, r *http.Request) {
	page, err := intParam(r, "page", 1, security.ValidatePage)
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	size, err := intParam(r, "page_size", 50, security.ValidatePageSize)
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	files, total := h.ws.Tracker().ListFiles(page, size)
	if files == nil {
		files = []workspace.FileInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"files": files,
		"total": total,
	})
}

// intParam reads an optional integer query parameter.
func intParam(r *http.Request, name string, def int, validate func(int) error) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.ValidationError(name+" must be an integer").WithDetail("field", name)
	}
	return n, validate(n)
}

// trackedPath maps the wildcard of /v1/files/{path...} to a tracked path.
// The mux strips the leading slash of absolute paths.
func (h *APIHandler) trackedPath(r *http.Request) (string, bool) {
	p := r.PathValue("path")
	if _, ok := h.ws.Tracker().Latest(p); ok {
		return p, true
	}
	if !strings.HasPrefix(p, "/") {
		if _, ok := h.ws.Tracker().Latest("/" + p); ok {
			return "/" + p, true
		}
	}
	return p, false
}

func (h *APIHandler) handleFile(w http.ResponseWriter, r *http.Request) {
	path, ok := h.trackedPath(r)
	if !ok {
		errors.WriteError(w, errors.NotFoundError("file "+path))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path":      path,
		"revisions": h.ws.Tracker().Revisions(path),
	})
}

func (h *APIHandler) handleRemoveFile(w http.ResponseWriter, r *http.Request) {
	path, ok := h.trackedPath(r)
	if !ok || !h.ws.Remove(r.Context(), path) {
		errors.WriteError(w, errors.NotFoundError("file "+path))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statsResponse struct {
	workspace.Stats
	Metrics *metrics.Snapshot `json:"metrics,omitempty"`
}

func (h *APIHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{Stats: h.ws.Stats()}
	if h.collector != nil {
		snap, err := h.collector.Collect(r.Context())
		if err != nil {
			h.fail(r.Context(), w, errors.Wrap(errors.CodeInternal, "collecting metrics", err))
			return
		}
		resp.Metrics = &snap
	}
	writeJSON(w, http.StatusOK, resp)
}
