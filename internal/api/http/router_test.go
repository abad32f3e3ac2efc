package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"house-ai/internal/api/http/middleware"
	"house-ai/internal/catalog"
	"house-ai/internal/classify"
	"house-ai/internal/storage/metadata"
	"house-ai/internal/orchestrator"
	"house-ai/pkg/auth"
	"house-ai/pkg/config"
	herrors "house-ai/pkg/errors"
)

type fakeService struct {
	mu       sync.Mutex
	userIDs  []string
	chunks   []orchestrator.Chunk
	err      error
	panicMsg string
}

func (f *fakeService) seen(ctx context.Context, bodyUserID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userIDs = append(f.userIDs, auth.ResolveUserID(ctx, bodyUserID))
}

func (f *fakeService) Chat(ctx context.Context, req orchestrator.ChatRequest) *orchestrator.ChatResponse {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.seen(ctx, req.UserID)
	return &orchestrator.ChatResponse{
		Message:   "echo: " + req.Message,
		SessionID: "s-1",
		Intent:    classify.IntentGeneralChat,
		Language:  classify.LanguageEnglish,
		Sources:   []string{},
	}
}

func (f *fakeService) Stream(ctx context.Context, req orchestrator.ChatRequest, emit func(orchestrator.Chunk) error) error {
	f.seen(ctx, req.UserID)
	for _, ch := range f.chunks {
		if err := emit(ch); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeService) Recommend(ctx context.Context, req orchestrator.RecommendRequest) (*orchestrator.RecommendResponse, error) {
	f.seen(ctx, req.UserID)
	if f.err != nil {
		return nil, f.err
	}
	return &orchestrator.RecommendResponse{
		Message:  "ok",
		Products: []catalog.ProductCard{{Name: "Galaxy S24"}},
		Language: classify.LanguageEnglish,
	}, nil
}

func (f *fakeService) Compare(ctx context.Context, req orchestrator.CompareRequest) (*orchestrator.CompareResponse, error) {
	f.seen(ctx, req.UserID)
	if f.err != nil {
		return nil, f.err
	}
	return &orchestrator.CompareResponse{Message: strings.Join(req.ProductNames, " vs ")}, nil
}

func (f *fakeService) CreateSession(ctx context.Context, req orchestrator.SessionRequest) (*metadata.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	id := req.AnonymousSessionID
	if id == "" {
		id = "generated"
	}
	return &metadata.Session{ID: id, CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}, nil
}

func testAPIConfig() config.APIConfig {
	cfg := config.Default().API
	cfg.CORS = config.CORSConfig{Enable: true, AllowOrigins: []string{"https://house.uz"}}
	return cfg
}

func buildServer(t *testing.T, svc Service, cfg config.APIConfig, jwt *middleware.JWTAuth) *server.Hertz {
	t.Helper()
	h, err := NewHandler(svc, Info{Name: "House AI", Version: "1.0.0"}, nil)
	require.NoError(t, err)
	r := NewRouter(h, middleware.NewMiddleware(cfg, nil))
	if jwt != nil {
		r.SetJWT(jwt)
	}
	return r.Build(":0")
}

func post(s *server.Hertz, path, body string, headers ...ut.Header) *ut.ResponseRecorder {
	b := []byte(body)
	headers = append(headers, ut.Header{Key: "Content-Type", Value: "application/json"})
	return ut.PerformRequest(s.Engine, "POST", path, &ut.Body{Body: bytes.NewReader(b), Len: len(b)}, headers...)
}

func get(s *server.Hertz, path string) *ut.ResponseRecorder {
	return ut.PerformRequest(s.Engine, "GET", path, &ut.Body{Body: bytes.NewReader(nil), Len: 0})
}

func decode(t *testing.T, w *ut.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Result().Body(), &out), string(w.Result().Body()))
	return out
}

func TestHealthAndRoot(t *testing.T) {
	s := buildServer(t, &fakeService{}, testAPIConfig(), nil)

	w := get(s, "/health")
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Equal(t, map[string]any{"status": "healthy", "version": "1.0.0"}, decode(t, w))
	assert.NotEmpty(t, w.Result().Header.Get(middleware.HeaderRequestID))
	assert.NotEmpty(t, w.Result().Header.Get(middleware.HeaderResponseTime))

	w = get(s, "/")
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Equal(t, "House AI", decode(t, w)["name"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := buildServer(t, &fakeService{}, testAPIConfig(), nil)
	w := get(s, "/metrics")
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Contains(t, string(w.Result().Body()), "house_budget_rejections_total")
}

func TestRequestIDPropagated(t *testing.T) {
	s := buildServer(t, &fakeService{}, testAPIConfig(), nil)
	w := post(s, "/api/chat", `{"message":"hi"}`, ut.Header{Key: middleware.HeaderRequestID, Value: "req-42"})
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Equal(t, "req-42", w.Result().Header.Get(middleware.HeaderRequestID))
}

func TestChat(t *testing.T) {
	svc := &fakeService{}
	s := buildServer(t, svc, testAPIConfig(), nil)

	w := post(s, "/api/chat", `{"message":"hello","user_id":"u-body"}`)
	require.Equal(t, 200, w.Result().StatusCode())
	out := decode(t, w)
	assert.Equal(t, "echo: hello", out["message"])
	assert.Equal(t, "s-1", out["session_id"])
	assert.Equal(t, string(classify.IntentGeneralChat), out["intent"])
	assert.Equal(t, []string{"u-body"}, svc.userIDs)
}

func TestChatValidation(t *testing.T) {
	s := buildServer(t, &fakeService{}, testAPIConfig(), nil)
	cases := map[string]string{
		"empty message": `{"message":""}`,
		"missing":       `{}`,
		"too long":      `{"message":"` + strings.Repeat("a", 4001) + `"}`,
		"bad language":  `{"message":"hi","language":"de"}`,
		"not json":      `{"message":`,
		"wrong type":    `{"message":42}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := post(s, "/api/chat", body)
			require.Equal(t, 400, w.Result().StatusCode())
			out := decode(t, w)
			assert.Equal(t, "validation failed", out["error"])
			assert.NotEmpty(t, out["detail"])
		})
	}
}

func TestChatMaxLengthAccepted(t *testing.T) {
	s := buildServer(t, &fakeService{}, testAPIConfig(), nil)
	w := post(s, "/api/chat", `{"message":"`+strings.Repeat("a", 4000)+`"}`)
	assert.Equal(t, 200, w.Result().StatusCode())
}

func TestChatStreamNDJSON(t *testing.T) {
	svc := &fakeService{chunks: []orchestrator.Chunk{
		{Type: orchestrator.ChunkText, Content: "Salom "},
		{Type: orchestrator.ChunkText, Content: "dunyo"},
		{Type: orchestrator.ChunkDone, Data: map[string]any{"session_id": "s-1"}},
	}}
	s := buildServer(t, svc, testAPIConfig(), nil)

	w := post(s, "/api/chat/stream", `{"message":"salom"}`)
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Equal(t, "application/x-ndjson", string(w.Result().Header.ContentType()))

	var got []orchestrator.Chunk
	sc := bufio.NewScanner(bytes.NewReader(w.Result().Body()))
	for sc.Scan() {
		var ch orchestrator.Chunk
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ch))
		got = append(got, ch)
	}
	require.Len(t, got, 3)
	assert.Equal(t, "Salom ", got[0].Content)
	assert.Equal(t, orchestrator.ChunkDone, got[2].Type)
	assert.Equal(t, "s-1", got[2].Data["session_id"])
}

func TestRecommend(t *testing.T) {
	s := buildServer(t, &fakeService{}, testAPIConfig(), nil)

	w := post(s, "/api/recommend", `{"query":"gaming phone","budget_max":5000000}`)
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Equal(t, "ok", decode(t, w)["message"])

	w = post(s, "/api/recommend", `{"query":"phone","budget_min":10,"budget_max":5}`)
	assert.Equal(t, 400, w.Result().StatusCode())

	w = post(s, "/api/recommend", `{"query":"phone","budget_max":-1}`)
	assert.Equal(t, 400, w.Result().StatusCode())
}

func TestCompareValidation(t *testing.T) {
	s := buildServer(t, &fakeService{}, testAPIConfig(), nil)

	w := post(s, "/api/compare", `{"product_names":["Galaxy S24","iPhone 15"]}`)
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Equal(t, "Galaxy S24 vs iPhone 15", decode(t, w)["message"])

	w = post(s, "/api/compare", `{"product_names":["only one"]}`)
	assert.Equal(t, 400, w.Result().StatusCode())

	w = post(s, "/api/compare", `{"product_names":["a","b","c","d","e","f"]}`)
	assert.Equal(t, 400, w.Result().StatusCode())
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{&orchestrator.BudgetError{Message: "limit reached"}, 403, "budget exceeded"},
		{herrors.Wrap(herrors.ErrInvalidArg, "names"), 400, "validation failed"},
		{herrors.Wrap(herrors.ErrNotFound, "product"), 404, "not found"},
		{herrors.Wrap(herrors.ErrUnavailable, "db"), 503, "service unavailable"},
		{errors.New("boom"), 500, "internal server error"},
	}
	for _, tc := range cases {
		s := buildServer(t, &fakeService{err: tc.err}, testAPIConfig(), nil)
		w := post(s, "/api/compare", `{"product_names":["a","b"]}`)
		require.Equal(t, tc.status, w.Result().StatusCode(), tc.err.Error())
		assert.Equal(t, tc.msg, decode(t, w)["error"])
	}

	s := buildServer(t, &fakeService{err: &orchestrator.BudgetError{Message: "limit reached"}}, testAPIConfig(), nil)
	out := decode(t, post(s, "/api/recommend", `{"query":"phone"}`))
	assert.Equal(t, "limit reached", out["detail"])
}

func TestSession(t *testing.T) {
	s := buildServer(t, &fakeService{}, testAPIConfig(), nil)

	out := decode(t, post(s, "/api/session", `{"anonymous_session_id":"anon-1"}`))
	assert.Equal(t, "anon-1", out["session_id"])
	assert.Equal(t, "2026-01-02T03:04:05Z", out["created_at"])

	w := post(s, "/api/session", ``)
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Equal(t, "generated", decode(t, w)["session_id"])
}

func TestRecoveryReturnsJSON(t *testing.T) {
	s := buildServer(t, &fakeService{panicMsg: "kaboom"}, testAPIConfig(), nil)
	w := post(s, "/api/chat", `{"message":"hi"}`)
	require.Equal(t, 500, w.Result().StatusCode())
	assert.Equal(t, "internal server error", decode(t, w)["error"])
}

func TestRateLimitAnonymous(t *testing.T) {
	cfg := testAPIConfig()
	cfg.Middleware.AnonRateLimitPerMinute = 2
	s := buildServer(t, &fakeService{}, cfg, nil)

	for i := 0; i < 2; i++ {
		w := post(s, "/api/chat", `{"message":"hi"}`)
		require.Equal(t, 200, w.Result().StatusCode())
		assert.Equal(t, "2", w.Result().Header.Get("X-RateLimit-Limit"))
	}
	w := post(s, "/api/chat", `{"message":"hi"}`)
	require.Equal(t, 429, w.Result().StatusCode())
	assert.NotEmpty(t, w.Result().Header.Get("Retry-After"))
	assert.Equal(t, "rate limit exceeded", decode(t, w)["error"])

	// 健康检查不受限流影响
	assert.Equal(t, 200, get(s, "/health").Result().StatusCode())
}

func TestRateLimitDisabled(t *testing.T) {
	cfg := testAPIConfig()
	cfg.Middleware.RateLimit = false
	cfg.Middleware.AnonRateLimitPerMinute = 1
	s := buildServer(t, &fakeService{}, cfg, nil)
	for i := 0; i < 3; i++ {
		assert.Equal(t, 200, post(s, "/api/chat", `{"message":"hi"}`).Result().StatusCode())
	}
}

func TestJWTIdentityOverridesBody(t *testing.T) {
	jwt, err := middleware.NewJWTAuth([]byte("test-secret"), time.Hour)
	require.NoError(t, err)
	token, _, err := jwt.Issue("u-token")
	require.NoError(t, err)

	svc := &fakeService{}
	s := buildServer(t, svc, testAPIConfig(), jwt)

	w := post(s, "/api/chat", `{"message":"hi","user_id":"u-body"}`, ut.Header{Key: "Authorization", Value: "Bearer " + token})
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Equal(t, "30", w.Result().Header.Get("X-RateLimit-Limit"))

	w = post(s, "/api/chat", `{"message":"hi","user_id":"u-body"}`, ut.Header{Key: "Authorization", Value: "Bearer garbage"})
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Equal(t, "10", w.Result().Header.Get("X-RateLimit-Limit"))

	assert.Equal(t, []string{"u-token", "u-body"}, svc.userIDs)
}

func TestCORSPreflight(t *testing.T) {
	s := buildServer(t, &fakeService{}, testAPIConfig(), nil)
	w := ut.PerformRequest(s.Engine, "OPTIONS", "/api/chat", &ut.Body{Body: bytes.NewReader(nil), Len: 0},
		ut.Header{Key: "Origin", Value: "https://house.uz"},
		ut.Header{Key: "Access-Control-Request-Method", Value: "POST"})
	require.Equal(t, 204, w.Result().StatusCode())
	assert.Equal(t, "https://house.uz", w.Result().Header.Get("Access-Control-Allow-Origin"))

	w = post(s, "/api/chat", `{"message":"hi"}`, ut.Header{Key: "Origin", Value: "https://evil.example"})
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Empty(t, w.Result().Header.Get("Access-Control-Allow-Origin"))
}
