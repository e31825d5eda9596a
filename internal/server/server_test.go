package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-chat-backend/internal/catalog"
	"support-chat-backend/internal/config"
	"support-chat-backend/internal/inference"
	"support-chat-backend/internal/session"
)

type call struct {
	sessionID string
	message   string
	context   *inference.ConversationContext
}

type stubSender struct {
	resp  *inference.Response
	err   error
	calls []call
}

func (s *stubSender) Send(ctx context.Context, message string, cc *inference.ConversationContext) (*inference.Response, error) {
	s.calls = append(s.calls, call{sessionID: session.IDFromContext(ctx), message: message, context: cc})
	return s.resp, s.err
}

type fixture struct {
	srv      *Server
	sender   *stubSender
	memory   *session.MemoryStore
	sessions *session.Provider
}

func newFixture(t *testing.T, sender inference.Sender) *fixture {
	t.Helper()
	memory := session.NewMemoryStore(40)
	return newFixtureWith(t, sender, memory, session.NewProvider(session.Options{Memory: memory}, zerolog.Nop()))
}

func newFixtureWith(t *testing.T, sender inference.Sender, memory *session.MemoryStore, sessions *session.Provider) *fixture {
	t.Helper()
	cat, err := catalog.Default("")
	require.NoError(t, err)
	stub, _ := sender.(*stubSender)
	srv := New(config.Config{AllowedOrigin: "*", InferenceBackend: config.BackendRemote}, Deps{
		Sender:   sender,
		Sessions: sessions,
		Memory:   memory,
		Catalog:  cat,
	}, zerolog.Nop())
	return &fixture{srv: srv, sender: stub, memory: memory, sessions: sessions}
}

func (f *fixture) do(t *testing.T, method, path, sid string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if sid != "" {
		req.Header.Set("X-Session-Id", sid)
	}
	rec := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func textReply(text string) *inference.Response {
	return &inference.Response{
		Message: inference.Reply{Text: text},
		Context: inference.ResponseContext{CustomerIntent: "greeting"},
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, &stubSender{})
	rec := f.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestChatCreatesSessionAndReturnsMessage(t *testing.T) {
	sender := &stubSender{resp: textReply("Hi! How can I help?")}
	f := newFixture(t, sender)

	rec := f.do(t, http.MethodPost, "/api/chat", "", map[string]any{"message": "hello"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	sid, _ := body["sessionId"].(string)
	assert.True(t, session.ValidID(sid), sid)
	assert.Equal(t, sid, rec.Header().Get("X-Session-Id"))
	assert.Contains(t, rec.Header().Get("Set-Cookie"), CookieName+"="+sid)
	assert.Equal(t, "greeting", body["intent"])

	msg := body["message"].(map[string]any)
	assert.Equal(t, "text", msg["type"])
	assert.Equal(t, "bot", msg["sender"])
	assert.Equal(t, "Hi! How can I help?", msg["content"])
	assert.NotEmpty(t, msg["timestamp"])

	require.Len(t, sender.calls, 1)
	assert.Equal(t, sid, sender.calls[0].sessionID)
	assert.Equal(t, "greeting", sender.calls[0].context.ConversationStage)
	assert.Empty(t, sender.calls[0].context.History)
	assert.Len(t, f.memory.History(sid), 2)
}

func TestChatForwardsHistoryAndHints(t *testing.T) {
	sender := &stubSender{resp: textReply("Sure")}
	f := newFixture(t, sender)
	sid := session.NewID()

	f.do(t, http.MethodPost, "/api/chat", sid, map[string]any{"message": "hello"})
	rec := f.do(t, http.MethodPost, "/api/chat", sid, map[string]any{"message": "I need a trash can for my kitchen"})
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, sender.calls, 2)
	cc := sender.calls[1].context
	assert.Equal(t, []inference.Turn{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "Sure"},
	}, cc.History)
	assert.Equal(t, []string{"trash-can"}, cc.ProductInterests)
	assert.Equal(t, []string{"kitchen"}, cc.RoomTypes)
	assert.Equal(t, "exploring", cc.ConversationStage)
}

func TestChatHistoryRoutes(t *testing.T) {
	f := newFixture(t, &stubSender{resp: textReply("Sure")})
	sid := session.NewID()
	f.do(t, http.MethodPost, "/api/chat", sid, map[string]any{"message": "hello"})

	rec := f.do(t, http.MethodGet, "/api/chat/history", sid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, sid, body["sessionId"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].(map[string]any)["sender"])
	assert.Equal(t, "hello", msgs[0].(map[string]any)["content"])
	assert.Equal(t, "bot", msgs[1].(map[string]any)["sender"])

	rec = f.do(t, http.MethodDelete, "/api/chat/history", sid, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, f.memory.History(sid))

	rec = f.do(t, http.MethodGet, "/api/chat/history", sid, nil)
	assert.Empty(t, decode(t, rec)["messages"])
}

func TestChatExplicitContextWins(t *testing.T) {
	sender := &stubSender{resp: textReply("ok")}
	f := newFixture(t, sender)

	bodySID := session.NewID()
	rec := f.do(t, http.MethodPost, "/api/chat", "", map[string]any{
		"sessionId": bodySID,
		"message":   "show me something for the kitchen",
		"context":   map[string]any{"roomTypes": []string{"bathroom"}, "conversationStage": "purchase"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, bodySID, decode(t, rec)["sessionId"])

	cc := sender.calls[0].context
	assert.Equal(t, []string{"bathroom"}, cc.RoomTypes)
	assert.Equal(t, "purchase", cc.ConversationStage)
	assert.Equal(t, []string{"browse"}, cc.UserIntents)
}

func TestChatProductRecommendation(t *testing.T) {
	sender := &stubSender{resp: &inference.Response{
		Message: inference.Reply{
			Text: "Here are some options",
			RichContent: []inference.RichContent{{
				Type: "card", Title: "10L Round Step Can", Subtitle: "Compact design", ImageURL: "/img/a.jpg",
				Buttons: []inference.Button{{Label: "Buy", Action: "buy", Metadata: map[string]any{"product_id": "tc-03"}}},
			}},
			Suggestions: []inference.Suggestion{{Label: "More", Action: "more"}},
		},
		Context: inference.ResponseContext{CustomerIntent: "browse", Category: "trash-can"},
	}}
	f := newFixture(t, sender)

	rec := f.do(t, http.MethodPost, "/api/chat", "", map[string]any{"message": "small can?"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "trash-can", body["category"])
	assert.Len(t, body["suggestions"], 1)

	msg := body["message"].(map[string]any)
	assert.Equal(t, "product-recommendation", msg["type"])
	content := msg["content"].(map[string]any)
	assert.Equal(t, "Here are some options", content["introText"])
	products := content["products"].([]any)
	require.Len(t, products, 1)
	assert.Equal(t, "tc-03", products[0].(map[string]any)["id"])
}

func TestChatValidation(t *testing.T) {
	f := newFixture(t, &stubSender{})

	rec := f.do(t, http.MethodPost, "/api/chat", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/chat", "", map[string]any{"message": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "message is required", decode(t, rec)["error"])
	assert.Empty(t, f.sender.calls)
}

func TestChatInferenceErrors(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "model overloaded"}`))
	}))
	defer upstream.Close()

	memory := session.NewMemoryStore(40)
	sessions := session.NewProvider(session.Options{Memory: memory}, zerolog.Nop())
	client := inference.NewClient(inference.ClientOptions{Endpoint: upstream.URL}, sessions, zerolog.Nop())
	f := newFixtureWith(t, client, memory, sessions)
	sid := session.NewID()

	rec := f.do(t, http.MethodPost, "/api/chat", sid, map[string]any{"message": "hi"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "no active session")

	rec = f.do(t, http.MethodPost, "/api/session", sid, map[string]any{"userId": "u1", "accessToken": "tok"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/chat", sid, map[string]any{"message": "hi"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	errMsg, _ := decode(t, rec)["error"].(string)
	assert.True(t, strings.HasPrefix(errMsg, "error calling chat inference"), errMsg)
	assert.Contains(t, errMsg, "model overloaded")
	assert.Empty(t, memory.History(sid), "failed turns are not recorded")
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t, &stubSender{resp: textReply("ok")})
	sid := session.NewID()

	rec := f.do(t, http.MethodGet, "/api/session", sid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["authenticated"])

	rec = f.do(t, http.MethodPost, "/api/session", sid, map[string]any{"userId": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/session", sid, map[string]any{"userId": "u1", "accessToken": "tok", "expiresIn": 600})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["authenticated"])
	assert.NotEmpty(t, body["expiresAt"])

	rec = f.do(t, http.MethodGet, "/api/session", sid, nil)
	body = decode(t, rec)
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, "u1", body["userId"])
	assert.Equal(t, "memory", body["source"])

	f.do(t, http.MethodPost, "/api/chat", sid, map[string]any{"message": "hello"})
	require.NotEmpty(t, f.memory.History(sid))

	rec = f.do(t, http.MethodDelete, "/api/session", sid, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, f.memory.History(sid))

	rec = f.do(t, http.MethodGet, "/api/session", sid, nil)
	assert.Equal(t, false, decode(t, rec)["authenticated"])
}

func TestSignInClampsLifetime(t *testing.T) {
	f := newFixture(t, &stubSender{})
	sid := session.NewID()

	rec := f.do(t, http.MethodPost, "/api/session", sid, `{"userId": "u1", "accessToken": "tok", "expiresIn": 9223372036854775807}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	expiresAt, err := time.Parse(time.RFC3339, decode(t, rec)["expiresAt"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(maxSessionLifetime), expiresAt, time.Minute)

	rec = f.do(t, http.MethodGet, "/api/session", sid, nil)
	assert.Equal(t, true, decode(t, rec)["authenticated"])
}

func TestCatalogRoutes(t *testing.T) {
	f := newFixture(t, &stubSender{})

	tests := []struct {
		path string
		code int
		key  string
		n    int
	}{
		{path: "/api/products", code: http.StatusOK, key: "products", n: 15},
		{path: "/api/products?category=soap-dispenser&room=office", code: http.StatusOK, key: "products", n: 1},
		{path: "/api/products?q=paper", code: http.StatusOK, key: "products", n: 4},
		{path: "/api/categories", code: http.StatusOK, key: "categories", n: 5},
		{path: "/api/categories/dish-rack/questions", code: http.StatusOK, key: "questions", n: 4},
		{path: "/api/categories/trash-can/troubleshooting", code: http.StatusOK, key: "issues", n: 4},
		{path: "/api/answers", code: http.StatusOK, key: "topics", n: 8},
		{path: "/api/starters", code: http.StatusOK, key: "starters", n: 7},
		{path: "/api/scenarios", code: http.StatusOK, key: "scenarios", n: 5},
		{path: "/api/categories/mirror/troubleshooting", code: http.StatusNotFound},
		{path: "/api/categories/toaster/questions", code: http.StatusNotFound},
		{path: "/api/products/nope", code: http.StatusNotFound},
		{path: "/api/answers/nope", code: http.StatusNotFound},
		{path: "/api/scenarios/nope", code: http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tc.path, "", nil)
			require.Equal(t, tc.code, rec.Code, rec.Body.String())
			if tc.key != "" {
				assert.Len(t, decode(t, rec)[tc.key], tc.n)
			}
		})
	}

	rec := f.do(t, http.MethodGet, "/api/products/sd-01", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Rechargeable Sensor Pump", decode(t, rec)["name"])

	rec = f.do(t, http.MethodGet, "/api/answers/warranty", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec)["answer"], "warranty")

	rec = f.do(t, http.MethodGet, "/api/scenarios/refurbished-offer", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Refurbished Product Offer Scenario", decode(t, rec)["title"])
}

func TestDiagnosticsRoute(t *testing.T) {
	sender := &stubSender{resp: textReply("Hello!")}
	f := newFixture(t, sender)

	rec := f.do(t, http.MethodPost, "/api/diagnostics/inference", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	results := decode(t, rec)["results"].([]any)
	require.Len(t, results, 4)
	assert.Equal(t, true, results[0].(map[string]any)["success"])
	assert.Equal(t, false, results[3].(map[string]any)["success"])
	assert.Equal(t, "Hello, I need a trash can", sender.calls[0].message)
}

func TestMetricsRoute(t *testing.T) {
	f := newFixture(t, &stubSender{})
	rec := f.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestSessionIDResolution(t *testing.T) {
	query, header, cookie := session.NewID(), session.NewID(), session.NewID()

	req := httptest.NewRequest(http.MethodGet, "/api/session?sessionId="+query, nil)
	assert.Equal(t, query, getSessionID(req))

	req.Header.Set("X-Session-Id", header)
	assert.Equal(t, header, getSessionID(req))

	req.AddCookie(&http.Cookie{Name: CookieName, Value: cookie})
	assert.Equal(t, cookie, getSessionID(req))
}

func TestSessionIDRejectsForeignIDs(t *testing.T) {
	query := session.NewID()
	req := httptest.NewRequest(http.MethodGet, "/api/session?sessionId="+query, nil)
	req.Header.Set("X-Session-Id", "attacker-chosen")
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "s_nope"})
	assert.Equal(t, query, getSessionID(req), "malformed ids are skipped")

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Session-Id", "../../etc")
	assert.Empty(t, getSessionID(req))

	f := newFixture(t, &stubSender{resp: textReply("hi")})
	rec := f.do(t, http.MethodPost, "/api/chat", "", map[string]any{"sessionId": "not-issued", "message": "hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	sid := decode(t, rec)["sessionId"].(string)
	assert.NotEqual(t, "not-issued", sid)
	assert.True(t, session.ValidID(sid))
}
