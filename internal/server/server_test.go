package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ppiankov/callfacts/internal/model"
	"github.com/ppiankov/callfacts/internal/pipeline"
	"github.com/ppiankov/callfacts/internal/store"
	"github.com/ppiankov/callfacts/internal/worker"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubProcessor writes a done record and records what it received
type stubProcessor struct {
	mu    sync.Mutex
	store store.Store
	facts []string
	err   error
	seen  []pipeline.Submission
}

func (p *stubProcessor) Process(ctx context.Context, sub pipeline.Submission) (*pipeline.Outcome, error) {
	p.mu.Lock()
	p.seen = append(p.seen, sub)
	p.mu.Unlock()

	if err := p.store.Put(ctx, sub.SessionID, model.NewProcessingRecord(sub.Question)); err != nil {
		return nil, err
	}
	if p.err != nil {
		return nil, p.err
	}
	record := model.ProcessingRecord{Question: sub.Question, Facts: p.facts, Status: model.StatusDone}
	if err := p.store.Put(ctx, sub.SessionID, record); err != nil {
		return nil, err
	}
	return &pipeline.Outcome{Facts: p.facts, Documents: len(sub.Documents)}, nil
}

func (p *stubProcessor) submissions() []pipeline.Submission {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pipeline.Submission(nil), p.seen...)
}

type testEnv struct {
	srv       *Server
	store     *store.MemoryStore
	pool      *worker.Pool
	processor *stubProcessor
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	st := store.NewMemoryStore(time.Hour)
	pool := worker.NewPool(2, 4)
	pool.Start()
	t.Cleanup(func() { _ = pool.Shutdown(context.Background()) })

	processor := &stubProcessor{store: st, facts: []string{"- The order was cancelled."}}

	cfg := model.DefaultConfig().Server
	cfg.AppKey = "test-app-key"

	srv, err := NewServer(cfg, Deps{Processor: processor, Pool: pool, Store: st}, nil)
	require.NoError(t, err)

	return &testEnv{srv: srv, store: st, pool: pool, processor: processor}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.srv.router.ServeHTTP(w, req)
	return w
}

func jsonSubmit(body string, sessionID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/submit_question_and_documents", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(sessionHeader, sessionID)
	}
	return req
}

func sessionCookieFrom(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestHealthCheck(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestIndex(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="call_logs[]"`)
	assert.Contains(t, w.Body.String(), `name="question"`)
}

func TestSubmitJSON_Success(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(jsonSubmit(`{"question": "What is the order status?", "documents": ["https://logs/1.txt", "https://logs/2.txt"]}`, "session-1"))
	require.Equal(t, http.StatusOK, w.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "https://example.com/results", resp.RedirectURL)
	assert.Empty(t, resp.Error)

	subs := env.processor.submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, "session-1", subs[0].SessionID)
	assert.Equal(t, []string{"https://logs/1.txt", "https://logs/2.txt"}, subs[0].Documents)

	// The cookie alone identifies the session on the next request
	poll := httptest.NewRequest(http.MethodGet, "/get_question_and_facts", nil)
	poll.AddCookie(sessionCookieFrom(t, w))
	pw := env.do(poll)
	require.Equal(t, http.StatusOK, pw.Code)

	var record model.ProcessingRecord
	require.NoError(t, json.Unmarshal(pw.Body.Bytes(), &record))
	assert.Equal(t, "What is the order status?", record.Question)
	assert.Equal(t, []string{"- The order was cancelled."}, record.Facts)
	assert.Equal(t, model.StatusDone, record.Status)
}

func TestSubmitJSON_GeneratesSessionID(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(jsonSubmit(`{"question": "q", "documents": []}`, ""))
	require.Equal(t, http.StatusOK, w.Code)

	subs := env.processor.submissions()
	require.Len(t, subs, 1)
	assert.Len(t, subs[0].SessionID, 36)
	assert.NotNil(t, subs[0].Documents)

	id, err := env.srv.sessions.Decode(sessionCookieFrom(t, w).Value)
	require.NoError(t, err)
	assert.Equal(t, subs[0].SessionID, id)
}

func TestSubmitJSON_BadRequest(t *testing.T) {
	env := setupTestServer(t)

	tests := map[string]string{
		"not json":         `{"question":`,
		"missing question": `{"documents": ["https://logs/1.txt"]}`,
		"blank question":   `{"question": "   "}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			w := env.do(jsonSubmit(body, "s"))
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp submitResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}
	assert.Empty(t, env.processor.submissions())
}

func TestSubmitJSON_DocumentFailure(t *testing.T) {
	env := setupTestServer(t)
	env.processor.err = &pipeline.SubmissionError{
		Index: 1,
		Err:   &pipeline.FetchError{Kind: pipeline.KindUnreachable, URL: "https://logs/2.txt"},
	}

	w := env.do(jsonSubmit(`{"question": "q", "documents": ["https://logs/1.txt", "https://logs/2.txt"]}`, "s"))
	require.Equal(t, http.StatusOK, w.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "URL number 2 contents could not be accessed.", resp.Error)
	assert.Equal(t, 2, resp.Index)
	assert.Empty(t, resp.RedirectURL)
}

func TestSubmit_PoolClosed(t *testing.T) {
	env := setupTestServer(t)
	require.NoError(t, env.pool.Shutdown(context.Background()))

	w := env.do(jsonSubmit(`{"question": "q"}`, "s"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSubmitForm(t *testing.T) {
	env := setupTestServer(t)

	form := url.Values{}
	form.Set("question", "Who called?")
	form.Add("call_logs[]", "https://logs/a.txt")
	form.Add("call_logs[]", "https://logs/b.txt")
	form.Set("session_id", "form-session")

	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := env.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	subs := env.processor.submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, "form-session", subs[0].SessionID)
	assert.Equal(t, "Who called?", subs[0].Question)
	assert.Equal(t, []string{"https://logs/a.txt", "https://logs/b.txt"}, subs[0].Documents)
}

func TestGetQuestionAndFacts_Placeholder(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/get_question_and_facts", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"question": "No question found", "facts": null, "status": "processing"}`, w.Body.String())
	_, found, err := env.store.Get(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, found, "polling must not create a record")
}

func TestGetQuestionAndFacts_HeaderFallback(t *testing.T) {
	env := setupTestServer(t)
	require.NoError(t, env.store.Put(context.Background(), "header-session", model.ProcessingRecord{
		Question: "q", Facts: []string{"- a"}, Status: model.StatusProcessing,
	}))

	req := httptest.NewRequest(http.MethodGet, "/get_question_and_facts", nil)
	req.Header.Set(sessionHeader, "header-session")
	w := env.do(req)

	assert.JSONEq(t, `{"question": "q", "facts": ["- a"], "status": "processing"}`, w.Body.String())
}

func TestGetQuestionAndFacts_TamperedCookie(t *testing.T) {
	env := setupTestServer(t)
	require.NoError(t, env.store.Put(context.Background(), "victim", model.NewProcessingRecord("secret question")))

	other, err := NewSessionCodec("another-key", time.Hour)
	require.NoError(t, err)
	forged, err := other.Encode("victim")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/get_question_and_facts", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: forged})
	w := env.do(req)

	var record model.ProcessingRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, model.NoQuestionText, record.Question)
}

func TestResults(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/results", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No question found")
	assert.Contains(t, w.Body.String(), "<li>No facts found</li>")
	assert.Contains(t, w.Body.String(), `http-equiv="refresh"`)

	require.NoError(t, env.store.Put(context.Background(), "s", model.ProcessingRecord{
		Question: "Status?", Facts: []string{"- <b>escaped</b>"}, Status: model.StatusDone,
	}))
	req := httptest.NewRequest(http.MethodGet, "/results", nil)
	req.Header.Set(sessionHeader, "s")
	w = env.do(req)

	body := w.Body.String()
	assert.Contains(t, body, "Status?")
	assert.Contains(t, body, "&lt;b&gt;escaped&lt;/b&gt;")
	assert.NotContains(t, body, `http-equiv="refresh"`)
}

func TestResultsURL_PublicURL(t *testing.T) {
	env := setupTestServer(t)
	env.srv.config.PublicURL = "https://facts.example.org/"

	w := env.do(jsonSubmit(`{"question": "q"}`, "s"))

	var resp submitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "https://facts.example.org/results", resp.RedirectURL)
}

func TestCORS_Preflight(t *testing.T) {
	env := setupTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/submit_question_and_documents", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, Session-ID")
	w := env.do(req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestNewServer_RequiresAppKey(t *testing.T) {
	st := store.NewMemoryStore(time.Hour)
	pool := worker.NewPool(1, 1)

	_, err := NewServer(model.DefaultConfig().Server, Deps{Processor: &stubProcessor{store: st}, Pool: pool, Store: st}, nil)
	assert.Error(t, err)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{name: "queue full", err: worker.ErrQueueFull, code: http.StatusServiceUnavailable},
		{name: "closed", err: worker.ErrPoolClosed, code: http.StatusServiceUnavailable},
		{name: "cancelled", err: context.Canceled, code: http.StatusServiceUnavailable},
		{name: "document", err: &pipeline.SubmissionError{Index: 0, Err: errors.New("x")}, code: http.StatusOK},
		{name: "store", err: errors.New("redis set: connection refused"), code: http.StatusInternalServerError},
		{name: "app error", err: NewAppError(http.StatusBadRequest, "bad", nil), code: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, MapError(tt.err).Code)
		})
	}

	doc := MapError(&pipeline.SubmissionError{Index: 2, Err: errors.New("bad reply")})
	assert.Equal(t, "URL number 3 contents could not be processed.", doc.Message)
	assert.Equal(t, 3, doc.Index)
}

func TestSessionCodec(t *testing.T) {
	codec, err := NewSessionCodec("k", time.Hour)
	require.NoError(t, err)

	token, err := codec.Encode("abc")
	require.NoError(t, err)
	id, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	_, err = codec.Decode(token + "x")
	assert.Error(t, err)

	// Expiry is truncated to whole seconds, so a 1ns TTL is already past
	shortLived, err := NewSessionCodec("k", time.Nanosecond)
	require.NoError(t, err)
	stale, err := shortLived.Encode("abc")
	require.NoError(t, err)
	_, err = codec.Decode(stale)
	assert.Error(t, err)

	_, err = NewSessionCodec("  ", time.Hour)
	assert.Error(t, err)
}

func newServerWith(t *testing.T, st store.Store, pool *worker.Pool, logger *zap.Logger) *Server {
	t.Helper()
	cfg := model.DefaultConfig().Server
	cfg.AppKey = "test-app-key"

	srv, err := NewServer(cfg, Deps{Processor: &stubProcessor{store: st}, Pool: pool, Store: st}, logger)
	require.NoError(t, err)
	return srv
}

func TestGetQuestionAndFacts_RepeatedPollIdentical(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	backends := map[string]store.Store{
		"memory": store.NewMemoryStore(time.Hour),
		"redis":  store.NewRedisStore(rdb, time.Hour),
	}
	for name, st := range backends {
		t.Run(name, func(t *testing.T) {
			pool := worker.NewPool(1, 1)
			t.Cleanup(func() { _ = pool.Shutdown(context.Background()) })
			srv := newServerWith(t, st, pool, nil)

			require.NoError(t, st.Put(context.Background(), "s", model.ProcessingRecord{
				Question: "What is the order status?",
				Facts:    []string{"- The order shipped.", "- A refund is pending."},
				Status:   model.StatusProcessing,
			}))

			poll := func() string {
				req := httptest.NewRequest(http.MethodGet, "/get_question_and_facts", nil)
				req.Header.Set(sessionHeader, "s")
				w := httptest.NewRecorder()
				srv.Handler().ServeHTTP(w, req)
				require.Equal(t, http.StatusOK, w.Code)
				return w.Body.String()
			}

			first := poll()
			assert.Equal(t, first, poll())
			assert.JSONEq(t, `{"question": "What is the order status?", "facts": ["- The order shipped.", "- A refund is pending."], "status": "processing"}`, first)
		})
	}
}

// A pool that is never started keeps submissions queued
func TestSubmit_QueueFullLogsPending(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	st := store.NewMemoryStore(time.Hour)
	pool := worker.NewPool(1, 1)
	t.Cleanup(func() { _ = pool.Shutdown(context.Background()) })
	srv := newServerWith(t, st, pool, zap.New(core))

	require.NoError(t, st.Put(context.Background(), "s", model.ProcessingRecord{
		Question: "old question", Facts: []string{"- old fact"}, Status: model.StatusDone,
	}))

	// The first submission takes the only queue slot; its caller gives up waiting
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, jsonSubmit(`{"question": "new question"}`, "s").WithContext(ctx))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, 1, pool.Pending())

	// The queued resubmission hides the previous run's record from pollers
	_, found, err := st.Get(context.Background(), "s")
	require.NoError(t, err)
	assert.False(t, found)

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, jsonSubmit(`{"question": "another"}`, "other"))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Server is busy, try again later", resp.Error)

	rejected := logs.FilterMessage("submission rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, int64(1), rejected[0].ContextMap()["pending"])
}

func TestNewServer_NoAllowedOrigins(t *testing.T) {
	st := store.NewMemoryStore(time.Hour)
	pool := worker.NewPool(1, 1)
	cfg := model.DefaultConfig().Server
	cfg.AppKey = "test-app-key"
	cfg.AllowedOrigins = nil

	var srv *Server
	require.NotPanics(t, func() {
		var err error
		srv, err = NewServer(cfg, Deps{Processor: &stubProcessor{store: st}, Pool: pool, Store: st}, nil)
		require.NoError(t, err)
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
