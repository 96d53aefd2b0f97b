package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/contracts-tracker/internal/common"
	"github.com/joseph-ayodele/contracts-tracker/internal/entity"
	"github.com/joseph-ayodele/contracts-tracker/internal/export"
	"github.com/joseph-ayodele/contracts-tracker/internal/ingest"
	"github.com/joseph-ayodele/contracts-tracker/internal/pipeline"
	"github.com/joseph-ayodele/contracts-tracker/internal/repository"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func uploadRequest(t *testing.T, path, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

func TestExtractReturnsResult(t *testing.T) {
	proc := newFakeProcessor()
	r := NewRouter(RouterConfig{Service: NewExtractionService(proc, nil, nil, discardLogger()), Logger: discardLogger()})

	w := serve(r, uploadRequest(t, "/api/extract", "lease.pdf", []byte("%PDF-1.4 lease"), map[string]string{"format": "pdf"}))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res pipeline.ExtractionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, []string{"Acme Corp", "Jane Doe"}, res.PartyNames)
	require.NotNil(t, res.EndDate)
	assert.Equal(t, "2024-12-31", *res.EndDate)

	assert.Equal(t, proc.jobID.String(), w.Header().Get("X-Job-ID"))
	assert.Equal(t, "miss", w.Header().Get("X-Cache"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	got := proc.last()
	assert.Equal(t, "lease.pdf", got.Name)
	assert.Equal(t, "pdf", got.FormatHint)
}

func TestExtractAcceptsUnknownFormatHint(t *testing.T) {
	proc := newFakeProcessor()
	r := NewRouter(RouterConfig{Service: NewExtractionService(proc, nil, nil, discardLogger()), Logger: discardLogger()})

	w := serve(r, uploadRequest(t, "/api/extract", "notes.bin", []byte("opaque"), map[string]string{"format": "UNKNOWN"}))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "UNKNOWN", proc.last().FormatHint)
}

func TestExtractReportsCacheHit(t *testing.T) {
	proc := newFakeProcessor()
	proc.cached = true
	r := NewRouter(RouterConfig{Service: NewExtractionService(proc, nil, nil, discardLogger()), Logger: discardLogger()})

	w := serve(r, uploadRequest(t, "/api/extract", "lease.pdf", []byte("x"), nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hit", w.Header().Get("X-Cache"))
}

func TestExtractRejectsBadUploads(t *testing.T) {
	r := NewRouter(RouterConfig{Service: NewExtractionService(newFakeProcessor(), nil, nil, discardLogger()), Logger: discardLogger()})

	tests := []struct {
		name     string
		filename string
		data     []byte
		fields   map[string]string
		want     int
	}{
		{name: "missing file", want: http.StatusBadRequest},
		{name: "unsupported format", filename: "a.pdf", data: []byte("x"), fields: map[string]string{"format": "XLS"}, want: http.StatusBadRequest},
		{name: "empty upload", filename: "a.pdf", data: []byte{}, want: http.StatusBadRequest},
		{name: "recovery failure", filename: "a.pdf", data: []byte("broken"), want: http.StatusBadRequest},
		{name: "storage failure", filename: "a.pdf", data: []byte("db-down"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, uploadRequest(t, "/api/extract", tt.filename, tt.data, tt.fields))
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			body := decodeBody(t, w)
			assert.NotEmpty(t, body["error"])
			assert.Equal(t, w.Header().Get("X-Request-ID"), body["request_id"])
		})
	}
}

func TestExtractPanicIsRecovered(t *testing.T) {
	r := NewRouter(RouterConfig{Service: NewExtractionService(newFakeProcessor(), nil, nil, discardLogger()), Logger: discardLogger()})

	w := serve(r, uploadRequest(t, "/api/extract", "a.pdf", []byte("panic"), nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", decodeBody(t, w)["error"])
}

func TestSubmitQueuesJob(t *testing.T) {
	q := &fakeQueue{}
	r := NewRouter(RouterConfig{Service: NewExtractionService(newFakeProcessor(), q, nil, discardLogger()), Logger: discardLogger()})

	req := uploadRequest(t, "/api/jobs", "nda.docx", []byte("PK docx"), nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := serve(r, req)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	body := decodeBody(t, w)
	jobs := q.enqueued()
	require.Len(t, jobs, 1)
	assert.Equal(t, jobs[0].ID.String(), body["job_id"])
	assert.Equal(t, "QUEUED", body["status"])
	assert.Equal(t, "req-42", jobs[0].RequestID)
	assert.Equal(t, "nda.docx", jobs[0].Request.Name)
	assert.Equal(t, "/api/jobs/"+jobs[0].ID.String(), w.Header().Get("Location"))
}

func TestSubmitWithoutQueueIsUnavailable(t *testing.T) {
	r := NewRouter(RouterConfig{Service: NewExtractionService(newFakeProcessor(), nil, nil, discardLogger()), Logger: discardLogger()})

	w := serve(r, uploadRequest(t, "/api/jobs", "a.pdf", []byte("x"), nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSubmitMarksJobFailedWhenQueueRejects(t *testing.T) {
	jobs := &mockJobs{}
	jobs.On("FinishFailure", mock.Anything, mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("string")).Return(nil).Once()
	q := &fakeQueue{err: common.ErrQueueClosed}
	r := NewRouter(RouterConfig{Service: NewExtractionService(newFakeProcessor(), q, jobs, discardLogger()), Logger: discardLogger()})

	w := serve(r, uploadRequest(t, "/api/jobs", "a.pdf", []byte("x"), nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	jobs.AssertExpectations(t)
}

func TestGetJob(t *testing.T) {
	id := uuid.New()
	jobs := &mockJobs{}
	jobs.On("Get", mock.Anything, id).Return(&entity.ExtractJob{
		ID:         id,
		SourceName: "lease.pdf",
		Status:     "OK",
		ResultJSON: json.RawMessage(`{"party_names":["Acme Corp"]}`),
	}, nil)
	missing := uuid.New()
	jobs.On("Get", mock.Anything, missing).Return(nil, common.NewNotFound("extract job not found"))

	r := NewRouter(RouterConfig{Service: NewExtractionService(newFakeProcessor(), nil, jobs, discardLogger()), Logger: discardLogger()})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/jobs/"+id.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "lease.pdf", body["source_name"])
	assert.Equal(t, []any{"Acme Corp"}, body["result"].(map[string]any)["party_names"])

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/jobs/"+missing.String(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/jobs/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListJobsFilters(t *testing.T) {
	review := true
	jobs := &mockJobs{}
	jobs.On("List", mock.Anything, repository.JobFilter{Status: "OK", NeedsReview: &review, Limit: 5}).
		Return([]entity.ExtractJob{{ID: uuid.New(), Status: "OK", NeedsReview: true}}, nil)

	r := NewRouter(RouterConfig{Service: NewExtractionService(newFakeProcessor(), nil, jobs, discardLogger()), Logger: discardLogger()})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/jobs?status=ok&needs_review=true&limit=5", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 1, decodeBody(t, w)["count"])

	for _, q := range []string{"status=DONE", "needs_review=maybe", "limit=-1"} {
		w = serve(r, httptest.NewRequest(http.MethodGet, "/api/jobs?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestExportXLSX(t *testing.T) {
	jobs := &mockJobs{}
	jobs.On("List", mock.Anything, repository.JobFilter{}).
		Return([]entity.ExtractJob{{ID: uuid.New(), SourceName: "a.pdf", Status: "OK"}}, nil)

	r := NewRouter(RouterConfig{
		Service:  NewExtractionService(newFakeProcessor(), nil, jobs, discardLogger()),
		Exporter: export.NewService(jobs, discardLogger()),
		Logger:   discardLogger(),
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/export.xlsx", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "contracts_")
	assert.Equal(t, []byte("PK"), w.Body.Bytes()[:2])
}

func TestIngestDirectorySubmitsFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lease.pdf"), []byte("%PDF lease"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	q := &fakeQueue{}
	svc := NewExtractionService(newFakeProcessor(), q, nil, discardLogger())
	r := NewRouter(RouterConfig{
		Service:  svc,
		Ingestor:   ingest.NewFSIngestor(svc, discardLogger(), 0),
		IngestRoot: dir,
		Logger:     discardLogger(),
	})

	body, _ := json.Marshal(map[string]any{"path": dir, "skip_hidden": true})
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := serve(r, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, q.enqueued(), 1)
	stats := decodeBody(t, w)["stats"].(map[string]any)
	assert.EqualValues(t, 1, stats["succeeded"])
}

func TestIngestRequiresPath(t *testing.T) {
	svc := NewExtractionService(newFakeProcessor(), &fakeQueue{}, nil, discardLogger())
	r := NewRouter(RouterConfig{Service: svc, Ingestor: ingest.NewFSIngestor(svc, discardLogger(), 0), IngestRoot: t.TempDir(), Logger: discardLogger()})

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")

	assert.Equal(t, http.StatusBadRequest, serve(r, req).Code)
}

func TestIngestStaysInsideRoot(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "inbox")
	outside := filepath.Join(base, "private")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.MkdirAll(outside, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "lease.pdf"), []byte("%PDF lease"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.pdf"), []byte("%PDF secret"), 0o644))

	q := &fakeQueue{}
	svc := NewExtractionService(newFakeProcessor(), q, nil, discardLogger())
	r := NewRouter(RouterConfig{
		Service:    svc,
		Ingestor:   ingest.NewFSIngestor(svc, discardLogger(), 0),
		IngestRoot: root,
		Logger:     discardLogger(),
	})
	post := func(path string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(map[string]any{"path": path})
		req := httptest.NewRequest(http.MethodPost, "/api/ingest", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return serve(r, req)
	}

	assert.Equal(t, http.StatusForbidden, post(filepath.Join(outside, "secret.pdf")).Code)
	assert.Equal(t, http.StatusForbidden, post("../private/secret.pdf").Code)
	assert.Equal(t, http.StatusForbidden, post(filepath.Join(root, "..", "private")).Code)
	if err := os.Symlink(outside, filepath.Join(root, "link")); err == nil {
		assert.Equal(t, http.StatusForbidden, post("link/secret.pdf").Code)
	}
	assert.Empty(t, q.enqueued())

	w := post("lease.pdf")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, q.enqueued(), 1)
}

func TestOptionalRoutesAreHidden(t *testing.T) {
	svc := NewExtractionService(newFakeProcessor(), &fakeQueue{}, nil, discardLogger())
	r := NewRouter(RouterConfig{Service: svc, Ingestor: ingest.NewFSIngestor(svc, discardLogger(), 0), Logger: discardLogger()})

	assert.Equal(t, http.StatusNotFound, serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil)).Code)
	assert.Equal(t, http.StatusNotFound, serve(r, httptest.NewRequest(http.MethodGet, "/api/export.xlsx", nil)).Code)
	assert.Equal(t, http.StatusNotFound, serve(r, httptest.NewRequest(http.MethodPost, "/api/ingest", bytes.NewReader([]byte(`{"path":"."}`)))).Code)
}

func TestHealth(t *testing.T) {
	healthy := true
	r := NewRouter(RouterConfig{
		Service: NewExtractionService(newFakeProcessor(), nil, nil, discardLogger()),
		Health: func(context.Context) error {
			if healthy {
				return nil
			}
			return errors.New("db unreachable")
		},
		Logger: discardLogger(),
	})

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
	healthy = false
	w := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unhealthy", decodeBody(t, w)["status"])
}

func TestUploadRateLimit(t *testing.T) {
	r := NewRouter(RouterConfig{
		Service:   NewExtractionService(newFakeProcessor(), nil, nil, discardLogger()),
		RateLimit: 1,
		Logger:    discardLogger(),
	})

	assert.Equal(t, http.StatusOK, serve(r, uploadRequest(t, "/api/extract", "a.pdf", []byte("x"), nil)).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, uploadRequest(t, "/api/extract", "a.pdf", []byte("x"), nil)).Code)
	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
}
