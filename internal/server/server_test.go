package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"melaknowma/internal/classify"
	"melaknowma/internal/ingest"
	"melaknowma/internal/jobs"
	"melaknowma/internal/objectstore"
	"melaknowma/internal/record"
	"melaknowma/internal/scoring"
	"melaknowma/internal/store"
	"melaknowma/internal/store/memory"
	"melaknowma/internal/types"
)

type fakePusher struct {
	mu     sync.Mutex
	pushed []string
}

func (p *fakePusher) Push(ctx context.Context, cfg map[types.Category]string, rec *types.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushed = append(p.pushed, rec.ID)
	return nil
}

type fixture struct {
	server *Server
	repo   *record.Repository
	jobs   *jobs.Config
	pusher *fakePusher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv := memory.New(store.LockOptions{
		Wait:          time.Second,
		TTL:           time.Second,
		RetryInterval: time.Millisecond,
	})
	repo := record.New(kv)
	jobCfg := jobs.New(kv)
	objects, err := objectstore.NewFS(t.TempDir(), "http://localhost/objects")
	require.NoError(t, err)
	pusher := &fakePusher{}
	handler := ingest.NewHandler(repo, jobCfg, scoring.DefaultWeights(), classify.DefaultPolicy(), zap.NewNop())
	srv := New(Options{
		Handler: handler,
		Repo:    repo,
		Jobs:    jobCfg,
		Crowd:   pusher,
		Objects: objects,
		Store:   kv,
		Logger:  zap.NewNop(),
	})
	return &fixture{server: srv, repo: repo, jobs: jobCfg, pusher: pusher}
}

func (f *fixture) configure(t *testing.T, mapping map[types.Category]string) {
	t.Helper()
	require.NoError(t, f.jobs.Configure(context.Background(), mapping))
}

func webhookJSON(t *testing.T, f *fixture, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/crowdflower", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.server.ServeHTTP(rr, req)
	return rr
}

func TestWebhookJSONBody(t *testing.T) {
	f := newFixture(t)
	f.configure(t, map[types.Category]string{types.CategoryBorder: "5001"})

	rr := webhookJSON(t, f, `{
		"signal": "unit_complete",
		"job_id": "5001",
		"data": {"image_id": "r1"},
		"results": {"judgments": [
			{"tainted": false, "data": {"border": "no"}},
			{"tainted": false, "data": {"border": "no"}},
			{"tainted": false, "data": {"border": "yes"}}
		]}
	}`)
	assert.Equal(t, http.StatusOK, rr.Code)

	rec, err := f.repo.Get(context.Background(), "r1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 2.0, rec.Scores[types.CategoryBorder])
}

// The provider's form shape: signal rides next to a payload field holding a
// JSON string.
func TestWebhookFormPayload(t *testing.T) {
	f := newFixture(t)
	f.configure(t, map[types.Category]string{types.CategoryBorder: "5001"})

	payload := `{"job_id": "5001", "data": {"image_id": "r1"},
		"results": {"judgments": [{"tainted": false, "data": {"border": "no"}}]}}`
	form := url.Values{"signal": {"unit_complete"}, "payload": {payload}}

	req := httptest.NewRequest(http.MethodPost, "/crowdflower", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	f.server.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	rec, err := f.repo.Get(context.Background(), "r1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 1.0, rec.Scores[types.CategoryBorder])
}

// A non-batch-complete signal is acknowledged and changes nothing.
func TestWebhookIgnoresOtherSignals(t *testing.T) {
	f := newFixture(t)
	f.configure(t, map[types.Category]string{types.CategoryBorder: "5001"})

	rr := webhookJSON(t, f, `{"signal": "unit_created", "job_id": "5001", "data": {"image_id": "r1"}}`)
	assert.Equal(t, http.StatusOK, rr.Code)

	rec, err := f.repo.Get(context.Background(), "r1")
	require.NoError(t, err)
	assert.Nil(t, rec, "ignored signal must create no state")
}

// A job id matching no configured category is acknowledged (the provider must
// not retry) and changes nothing.
func TestWebhookUnknownJobIDIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	f.configure(t, map[types.Category]string{types.CategoryBorder: "5001"})

	rr := webhookJSON(t, f, `{
		"signal": "unit_complete",
		"job_id": "9999",
		"data": {"image_id": "r1"},
		"results": {"judgments": [{"tainted": false, "data": {"border": "no"}}]}
	}`)
	assert.Equal(t, http.StatusOK, rr.Code)

	rec, err := f.repo.Get(context.Background(), "r1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestWebhookMalformedPayloadIsAcknowledged(t *testing.T) {
	f := newFixture(t)

	rr := webhookJSON(t, f, `{"signal": "unit_comp`)
	assert.Equal(t, http.StatusOK, rr.Code, "retrying an unparsable payload cannot succeed")
}

func TestUploadStoresRecordAndPushes(t *testing.T) {
	f := newFixture(t)
	f.configure(t, map[types.Category]string{
		types.CategorySymmetry: "5002",
		types.CategoryBorder:   "5001",
		types.CategoryColor:    "5003",
	})

	imageBytes := []byte("fake image bytes")
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image_mole", "mole.jpg")
	require.NoError(t, err)
	_, err = part.Write(imageBytes)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := httptest.NewRecorder()
	f.server.ServeHTTP(rr, req)

	require.Equal(t, http.StatusSeeOther, rr.Code)
	wantID := types.FingerprintData(imageBytes)
	assert.Equal(t, "/image/"+wantID, rr.Header().Get("Location"))

	rec, err := f.repo.Get(context.Background(), wantID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, types.DiagnosisPending, rec.Diagnosis)
	assert.NotEmpty(t, rec.DataRef)
	assert.Equal(t, []string{wantID}, f.pusher.pushed)
}

// The data-only ingestion path: record exists with ground truth but no
// attached image reference.
func TestAPIUploadCreatesRecordWithoutDataRef(t *testing.T) {
	f := newFixture(t)

	data := []byte("raw image bytes")
	req := httptest.NewRequest(http.MethodPost, "/api/upload?disease_real=melanoma", bytes.NewReader(data))
	rr := httptest.NewRecorder()
	f.server.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, types.FingerprintData(data), resp["id"])

	rec, err := f.repo.Get(context.Background(), resp["id"])
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Empty(t, rec.DataRef)
	assert.Equal(t, "melanoma", rec.GroundTruth)
	assert.Empty(t, f.pusher.pushed, "data-only path does not push work units")
}

func TestConfigureEndpoint(t *testing.T) {
	f := newFixture(t)

	form := url.Values{"border": {"5001"}, "symmetry": {"5002"}}
	req := httptest.NewRequest(http.MethodPost, "/configurate", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	f.server.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)

	category, ok, err := f.jobs.ResolveCategory(context.Background(), "5001")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.CategoryBorder, category)
}

func TestShowRecord(t *testing.T) {
	f := newFixture(t)

	rec := types.NewRecord([]byte("mole"))
	require.NoError(t, f.repo.Create(context.Background(), rec))

	req := httptest.NewRequest(http.MethodGet, "/image/"+rec.ID, nil)
	rr := httptest.NewRecorder()
	f.server.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var got types.Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, types.DiagnosisPending, got.Diagnosis)
}

func TestShowUnknownRecord(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/image/deadbeef", nil)
	rr := httptest.NewRecorder()
	f.server.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	f.server.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
