package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/fansync/internal/activity"
	"github.com/d60-Lab/fansync/internal/api/handler"
	"github.com/d60-Lab/fansync/internal/model"
	"github.com/d60-Lab/fansync/internal/scheduler"
	"github.com/d60-Lab/fansync/internal/service"
	"github.com/d60-Lab/fansync/internal/upstream"
)

type fakeSyncer struct {
	limit      int
	fanID      int64
	backfilled bool
	err        error
}

func (f *fakeSyncer) FullSync(_ context.Context, limit int) error { f.limit = limit; return f.err }
func (f *fakeSyncer) RefreshFan(_ context.Context, id int64) error {
	f.fanID = id
	return f.err
}
func (f *fakeSyncer) Backfill(context.Context) error { f.backfilled = true; return f.err }

type fakeDrafts struct{ items []model.QueueItem }

func (f *fakeDrafts) Enqueue(_ context.Context, fanID int64, text string, at time.Time) (*model.QueueItem, error) {
	item, err := model.NewDraft(fanID, text, at)
	if err != nil {
		return nil, err
	}
	item.QueueID = int64(len(f.items) + 1)
	f.items = append(f.items, *item)
	return item, nil
}

type fakeFans struct{}

func (fakeFans) ListFans(_ context.Context, limit int) ([]model.FanSummary, error) {
	return []model.FanSummary{{FanID: 1, DisplayName: "A", SpendTotal: 10, MsgTotal: int64(limit)}}, nil
}

func (fakeFans) ExportAndDelete(_ context.Context, fanID int64) (*service.FanExport, error) {
	if fanID != 1 {
		return nil, service.ErrFanNotFound
	}
	return &service.FanExport{Fan: &model.Fan{FanID: 1}}, nil
}

type fakeSettings struct{ values map[string]string }

func (f *fakeSettings) Flags(context.Context) (map[string]bool, error) {
	out := map[string]bool{}
	for k, v := range f.values {
		out[k] = v == "true"
	}
	return out, nil
}

func (f *fakeSettings) Set(_ context.Context, k, v string) error { f.values[k] = v; return nil }

type fakeJobs struct{ ran []string }

func (f *fakeJobs) Run(_ context.Context, name string) error {
	switch name {
	case scheduler.JobOutbox, scheduler.JobNudge:
		f.ran = append(f.ran, name)
		return nil
	case "busy":
		return scheduler.ErrJobRunning
	default:
		return fmt.Errorf("%w: %s", scheduler.ErrUnknownJob, name)
	}
}

type fixture struct {
	syncer   *fakeSyncer
	drafts   *fakeDrafts
	settings *fakeSettings
	jobs     *fakeJobs
	log      *activity.MemoryLog
	router   http.Handler
}

func newFixture() *fixture {
	f := &fixture{
		syncer:   &fakeSyncer{},
		drafts:   &fakeDrafts{},
		settings: &fakeSettings{values: map[string]string{}},
		jobs:     &fakeJobs{},
		log:      activity.NewMemoryLog(10),
	}
	h := handler.NewHandler(f.syncer, f.drafts, fakeFans{}, f.settings, f.jobs, f.log)
	f.router = NewRouter(h, Options{Mode: "test"})
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestHealthz(t *testing.T) {
	w := newFixture().do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSyncEndpoints(t *testing.T) {
	f := newFixture()

	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/sync?max=3", "").Code)
	assert.Equal(t, 3, f.syncer.limit)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/sync?max=x", "").Code)

	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/fans/42/sync", "").Code)
	assert.EqualValues(t, 42, f.syncer.fanID)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/fans/abc/sync", "").Code)

	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/messages/backfill", "").Code)
	assert.True(t, f.syncer.backfilled)
}

func TestSyncUpstreamDownIs503(t *testing.T) {
	f := newFixture()
	f.syncer.err = fmt.Errorf("fetch chats: %w", upstream.ErrUnavailable)

	w := f.do(http.MethodPost, "/api/sync", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestActivityLog(t *testing.T) {
	f := newFixture()
	f.log.Append(context.Background(), "first")
	f.log.Append(context.Background(), "second")

	env := decode(t, f.do(http.MethodGet, "/api/log", ""))
	var entries []string
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	require.Len(t, entries, 2)
	assert.True(t, strings.HasSuffix(entries[0], " first"))
	assert.True(t, strings.HasSuffix(entries[1], " second"))
}

func TestFansAndGDPR(t *testing.T) {
	f := newFixture()

	env := decode(t, f.do(http.MethodGet, "/api/fans?limit=7", ""))
	var list []model.FanSummary
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.EqualValues(t, 7, list[0].MsgTotal)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/fans?limit=-1", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/gdpr/export/1", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/gdpr/export/2", "").Code)
}

func TestSettings(t *testing.T) {
	f := newFixture()

	w := f.do(http.MethodPost, "/api/settings", `{"key":"generateRepliesEnabled","value":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", f.settings.values["generateRepliesEnabled"])

	w = f.do(http.MethodPost, "/api/settings", `{"key":"spendTierNudgerEnabled","value":false}`)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/settings", `{"key":"x"}`).Code)

	env := decode(t, f.do(http.MethodGet, "/api/settings", ""))
	var flags map[string]bool
	require.NoError(t, json.Unmarshal(env.Data, &flags))
	assert.Equal(t, map[string]bool{"generateRepliesEnabled": true, "spendTierNudgerEnabled": false}, flags)
}

func TestSettingsKeepLiteralValues(t *testing.T) {
	f := newFixture()

	cases := map[string]string{
		`123456789`:        "123456789",
		`9007199254740993`: "9007199254740993",
		`0.85`:             "0.85",
		`"150"`:            "150",
		`"line\u0021"`:     "line!",
	}
	for body, want := range cases {
		w := f.do(http.MethodPost, "/api/settings", `{"key":"spendNudgeLastTxn","value":`+body+`}`)
		require.Equal(t, http.StatusOK, w.Code, body)
		assert.Equal(t, want, f.settings.values["spendNudgeLastTxn"], body)
	}

	for _, body := range []string{`null`, `{"a":1}`, `[1]`} {
		w := f.do(http.MethodPost, "/api/settings", `{"key":"spendNudgeLastTxn","value":`+body+`}`)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestEnqueueDraft(t *testing.T) {
	f := newFixture()

	w := f.do(http.MethodPost, "/api/queue/drafts", `{"fan_id":5,"text":"hello","publish_at":"2026-06-01T10:00:00Z"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.drafts.items, 1)
	payload, err := f.drafts.items[0].DecodePayload()
	require.NoError(t, err)
	assert.Equal(t, "hello", payload.Text)
	assert.Equal(t, time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC), f.drafts.items[0].PublishAt.UTC())

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/queue/drafts", `{"text":"no fan"}`).Code)
}

func TestRunJob(t *testing.T) {
	f := newFixture()

	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/jobs/outbox/run", "").Code)
	assert.Equal(t, []string{scheduler.JobOutbox}, f.jobs.ran)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/api/jobs/unknown/run", "").Code)
	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/api/jobs/busy/run", "").Code)
}

func TestAuthRequiredWhenSecretSet(t *testing.T) {
	f := newFixture()
	h := handler.NewHandler(f.syncer, f.drafts, fakeFans{}, f.settings, f.jobs, f.log)
	r := NewRouter(h, Options{Mode: "test", JWTSecret: "s3cret"})

	req := httptest.NewRequest(http.MethodGet, "/api/log", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
