package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/otl-tools/otltemplate/internal/catalog"
	"github.com/otl-tools/otltemplate/internal/pipeline"
	"github.com/otl-tools/otltemplate/internal/synth"
)

// DefaultMaxBodyBytes bounds uploaded subsets
const DefaultMaxBodyBytes = 64 << 20

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeZip  = "application/zip"
)

// API serves the template endpoints
type API struct {
	generator    *pipeline.Generator
	cache        *CatalogCache
	metrics      *Metrics
	logger       *zap.Logger
	renders      RenderStore
	auth         *Authenticator
	maxBodyBytes int64
}

// NewAPI creates the API. metrics may be shared with the cache.
func NewAPI(generator *pipeline.Generator, cache *CatalogCache, metrics *Metrics, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &API{
		generator:    generator,
		cache:        cache,
		metrics:      metrics,
		logger:       logger,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
}

// WithRenderStore enables reuse of rendered responses for seeded requests
func (a *API) WithRenderStore(store RenderStore) *API {
	a.renders = store
	return a
}

// WithAuthenticator requires a bearer token on the /v1 routes
func (a *API) WithAuthenticator(auth *Authenticator) *API {
	a.auth = auth
	return a
}

// Routes builds the router
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(a.metrics.Instrument)

	r.Get("/healthz", a.health)
	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if a.auth != nil {
			r.Use(a.auth.Require)
		}
		r.Post("/templates", a.templates)
		r.Post("/classes", a.classes)
	})
	return r
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// classes lists the classes of the posted subset; ?all=true includes abstract classes
func (a *API) classes(w http.ResponseWriter, r *http.Request) {
	body, ok := a.readBody(w, r)
	if !ok {
		return
	}
	cat, ok := a.catalogOf(w, r, body)
	if !ok {
		return
	}
	all, err := boolParam(r, "all", false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, pipeline.ListClasses(cat, all))
}

// templates generates templates for the posted subset. Options come from the query string.
func (a *API) templates(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = string(pipeline.FormatXLSX)
	}
	if format != string(pipeline.FormatXLSX) && format != string(pipeline.FormatCSV) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %q", pipeline.ErrUnsupportedFormat, format))
		return
	}

	dir, err := os.MkdirTemp("", "otltemplate-request-")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer os.RemoveAll(dir)

	req, err := requestFromQuery(r, filepath.Join(dir, "template."+format))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	body, ok := a.readBody(w, r)
	if !ok {
		return
	}

	var key string
	if a.renders != nil && req.Seed != 0 {
		key = RenderKey(Digest(body), r.URL.Query())
		if out, ok := a.cachedRender(r.Context(), key); ok {
			w.Header().Set("X-Template-Cache", "hit")
			out.write(w)
			return
		}
	}

	cat, ok := a.catalogOf(w, r, body)
	if !ok {
		return
	}

	result, err := a.generator.GenerateFromCatalog(r.Context(), cat, req)
	if err != nil {
		a.metrics.ObserveGeneration(format, "error", 0)
		a.logger.Error("generation failed", zap.String("request_id", middleware.GetReqID(r.Context())), zap.Error(err))
		writeError(w, statusOf(err), err)
		return
	}
	a.metrics.ObserveGeneration(format, "ok", len(result.Outputs))
	subject, _ := SubjectFrom(r.Context())
	a.logger.Debug("templates generated",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("subject", subject),
		zap.String("run", result.RunID),
		zap.Int("outputs", len(result.Outputs)))

	out, err := renderResult(result)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if key != "" {
		a.storeRender(r.Context(), key, out)
		w.Header().Set("X-Template-Cache", "miss")
	}
	out.write(w)
}

// rendered is a finished template response
type rendered struct {
	RunID       string `json:"run_id"`
	Seed        int64  `json:"seed"`
	Classes     int    `json:"classes"`
	ContentType string `json:"content_type,omitempty"`
	Filename    string `json:"filename,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// renderResult packs the outputs of result: nothing, the single file, or a zip of all files
func renderResult(result *pipeline.Result) (*rendered, error) {
	out := &rendered{
		RunID:   result.RunID,
		Seed:    result.Seed,
		Classes: len(result.Classes),
	}

	switch len(result.Outputs) {
	case 0:
	case 1:
		data, err := os.ReadFile(result.Outputs[0])
		if err != nil {
			return nil, err
		}
		out.ContentType = contentTypeXLSX
		if result.Format == pipeline.FormatCSV {
			out.ContentType = contentTypeCSV
		}
		out.Filename = filepath.Base(result.Outputs[0])
		out.Body = data
	default:
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		for _, path := range result.Outputs {
			if err := addToZip(zw, path); err != nil {
				return nil, fmt.Errorf("failed to add %s to archive: %w", filepath.Base(path), err)
			}
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		out.ContentType = contentTypeZip
		out.Filename = "templates.zip"
		out.Body = buf.Bytes()
	}
	return out, nil
}

func (o *rendered) write(w http.ResponseWriter) {
	w.Header().Set("X-Template-Run", o.RunID)
	w.Header().Set("X-Template-Seed", strconv.FormatInt(o.Seed, 10))
	w.Header().Set("X-Template-Classes", strconv.Itoa(o.Classes))
	if o.ContentType == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", o.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", o.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(o.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(o.Body)
}

// cachedRender looks key up in the render store. Store failures count as misses.
func (a *API) cachedRender(ctx context.Context, key string) (*rendered, bool) {
	data, err := a.renders.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrRenderMiss) {
			a.logger.Warn("render cache unavailable", zap.Error(err))
			a.metrics.renderCache.WithLabelValues("error").Inc()
		} else {
			a.metrics.renderCache.WithLabelValues("miss").Inc()
		}
		return nil, false
	}

	var out rendered
	if err := json.Unmarshal(data, &out); err != nil {
		a.logger.Warn("discarding corrupt render cache entry", zap.String("key", key), zap.Error(err))
		a.metrics.renderCache.WithLabelValues("error").Inc()
		return nil, false
	}
	a.metrics.renderCache.WithLabelValues("hit").Inc()
	return &out, true
}

func (a *API) storeRender(ctx context.Context, key string, out *rendered) {
	data, err := json.Marshal(out)
	if err == nil {
		err = a.renders.Set(ctx, key, data)
	}
	if err != nil {
		a.logger.Warn("failed to store render", zap.String("key", key), zap.Error(err))
	}
}

// readBody reads the request body, answering the request itself on failure
func (a *API) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
		} else {
			writeError(w, http.StatusBadRequest, err)
		}
		return nil, false
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("request body must contain a subset"))
		return nil, false
	}
	return body, true
}

// catalogOf loads body as a subset, answering the request itself on failure
func (a *API) catalogOf(w http.ResponseWriter, r *http.Request, body []byte) (*catalog.Catalog, bool) {
	cat, err := a.cache.Get(r.Context(), body)
	if err != nil {
		var loadErr *catalog.LoadError
		if errors.As(err, &loadErr) {
			// the temporary path means nothing to the client
			err = fmt.Errorf("failed to load subset: %v", loadErr.Err)
		}
		writeError(w, http.StatusUnprocessableEntity, err)
		return nil, false
	}
	return cat, true
}

func addToZip(zw *zip.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:     filepath.Base(path),
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, f)
	return err
}

// requestFromQuery maps query parameters onto a request for dest. Unset parameters keep
// their defaults.
func requestFromQuery(r *http.Request, dest string) (pipeline.TemplateRequest, error) {
	req := pipeline.DefaultRequest("request", dest)
	q := r.URL.Query()

	flags := []struct {
		name   string
		target *bool
	}{
		{"ignore_relations", &req.IgnoreRelations},
		{"filter_attributes", &req.FilterAttributes},
		{"geometry", &req.AddGeometry},
		{"attribute_info", &req.AttributeInfo},
		{"tag_deprecated", &req.TagDeprecated},
		{"choice_list", &req.ChoiceLists},
		{"split", &req.SplitPerType},
	}
	for _, f := range flags {
		v, err := boolParam(r, f.name, *f.target)
		if err != nil {
			return req, err
		}
		*f.target = v
	}

	if s := q.Get("rows"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return req, fmt.Errorf("invalid rows %q", s)
		}
		req.DummyRows = n
	}
	if s := q.Get("seed"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return req, fmt.Errorf("invalid seed %q", s)
		}
		req.Seed = n
	}

	if classes, ok := q["class"]; ok {
		req.ClassURIs = make([]string, 0, len(classes))
		for _, c := range classes {
			if c = strings.TrimSpace(c); c != "" {
				req.ClassURIs = append(req.ClassURIs, c)
			}
		}
	}
	if none, err := boolParam(r, "no_classes", false); err != nil {
		return req, err
	} else if none {
		req.ClassURIs = []string{}
	}
	return req, nil
}

func boolParam(r *http.Request, name string, def bool) (bool, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return def, fmt.Errorf("invalid %s %q", name, s)
	}
	return v, nil
}

func statusOf(err error) int {
	var genErr *synth.GenerationError
	switch {
	case errors.Is(err, pipeline.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.As(err, &genErr):
		return http.StatusConflict
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		a.logger.Info("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rw.status),
			zap.Int("bytes", rw.written),
			zap.Duration("duration", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
