package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/flowchat/internal/backend"
	"github.com/MikeSquared-Agency/flowchat/internal/chat"
	"github.com/MikeSquared-Agency/flowchat/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeBackendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// flowBackend fakes the hosted backend with a support chat and a testchat.
func flowBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fullchat":
			writeBackendJSON(w, http.StatusOK, map[string]any{"chats": []map[string]any{
				{"convtoken": "support", "conversation": map[string]string{"question1": "refund?", "answer1": "**sure**"}},
				{"convtoken": "testchat", "conversation": map[string]string{"question1": "hi", "answer1": "שלום"}},
			}})
		case "/conversation":
			switch r.URL.Query().Get("convtoken") {
			case "support":
				writeBackendJSON(w, http.StatusOK, map[string]any{"conversation": map[string]string{"question1": "refund?", "answer1": "**sure**"}})
			case "testchat":
				writeBackendJSON(w, http.StatusOK, map[string]any{"conversation": map[string]string{"question1": "hi", "answer1": "שלום"}})
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		case "/flow":
			var req backend.FlowRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode flow request: %v", err)
			}
			if req.Question == "quota" {
				w.WriteHeader(http.StatusPaymentRequired)
				return
			}
			writeBackendJSON(w, http.StatusOK, map[string]any{"conversation": map[string]string{
				"question1": "hi", "answer1": "שלום",
				"question2": req.Question, "answer2": "got it",
			}})
		case "/del-conv":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, loggedIn bool) *Server {
	t.Helper()
	backendSrv := flowBackend(t)
	st := session.NewMemoryStore()
	if loggedIn {
		if err := st.Save(session.New("user-token-123", "dana@example.com", 0)); err != nil {
			t.Fatalf("save session: %v", err)
		}
	}
	client := chat.New(backend.NewClient(backendSrv.URL, discardLogger()), st, discardLogger())
	return NewServer(8760, client, discardLogger())
}

func serve(srv *Server, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func expectCode(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, w.Code, w.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	w := serve(newTestServer(t, true), "GET", "/health", nil)
	expectCode(t, w, http.StatusOK)

	var body map[string]string
	decode(t, w, &body)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %s", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	w := serve(newTestServer(t, true), "GET", "/api/v1/flowchat/status", nil)
	expectCode(t, w, http.StatusOK)

	var body map[string]string
	decode(t, w, &body)
	if body["agent"] != "flowchat" {
		t.Errorf("expected agent flowchat, got %s", body["agent"])
	}
	if body["conversation"] != "testchat" {
		t.Errorf("expected conversation testchat, got %s", body["conversation"])
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	w := serve(newTestServer(t, true), "GET", "/nonexistent", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestListChats(t *testing.T) {
	srv := newTestServer(t, true)

	w := serve(srv, "GET", "/api/v1/chats", nil)
	expectCode(t, w, http.StatusOK)

	var resp ListResponse
	decode(t, w, &resp)
	if len(resp.Chats) != 2 {
		t.Fatalf("expected 2 chats, got %d", len(resp.Chats))
	}
	if resp.Chats[0].ID != "support" {
		t.Errorf("expected first chat support, got %s", resp.Chats[0].ID)
	}
	if resp.Chats[0].MessageCount != 2 {
		t.Errorf("expected 2 messages, got %d", resp.Chats[0].MessageCount)
	}
	if resp.Selected != "testchat" {
		t.Errorf("expected testchat selected, got %s", resp.Selected)
	}

	w = serve(srv, "GET", "/api/v1/chats?q=SUP", nil)
	resp = ListResponse{}
	decode(t, w, &resp)
	if len(resp.Chats) != 1 || resp.Chats[0].ID != "support" {
		t.Errorf("expected only support for q=SUP, got %+v", resp.Chats)
	}
}

func TestListChats_MissingCredential(t *testing.T) {
	w := serve(newTestServer(t, false), "GET", "/api/v1/chats", nil)
	expectCode(t, w, http.StatusUnauthorized)

	var body map[string]string
	decode(t, w, &body)
	if body["error"] != chat.MsgMissingCredential {
		t.Errorf("expected %q, got %q", chat.MsgMissingCredential, body["error"])
	}
}

func TestGetChat(t *testing.T) {
	w := serve(newTestServer(t, true), "GET", "/api/v1/chats/support", nil)
	expectCode(t, w, http.StatusOK)

	var resp ChatResponse
	decode(t, w, &resp)
	if resp.ID != "support" {
		t.Errorf("expected id support, got %s", resp.ID)
	}
	if len(resp.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(resp.Messages))
	}
	if !resp.Messages[0].IsFromUser {
		t.Error("expected first message from user")
	}
	if resp.Messages[1].Text != "**sure**" {
		t.Errorf("expected raw answer text, got %q", resp.Messages[1].Text)
	}
}

func TestGetChat_BackendError(t *testing.T) {
	w := serve(newTestServer(t, true), "GET", "/api/v1/chats/missing", nil)
	expectCode(t, w, http.StatusBadGateway)

	var body map[string]string
	decode(t, w, &body)
	if want := "Failed to load conversation (HTTP error status=404)"; body["error"] != want {
		t.Errorf("expected %q, got %q", want, body["error"])
	}
}

func TestSendMessage(t *testing.T) {
	w := serve(newTestServer(t, true), "POST", "/api/v1/chats/messages", strings.NewReader(`{"text":"opening hours?"}`))
	expectCode(t, w, http.StatusOK)

	var resp ChatResponse
	decode(t, w, &resp)
	if resp.ID != "testchat" {
		t.Errorf("expected id testchat, got %s", resp.ID)
	}
	if len(resp.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(resp.Messages))
	}
	if resp.Messages[2].Text != "opening hours?" {
		t.Errorf("expected sent text in transcript, got %q", resp.Messages[2].Text)
	}
}

func TestSendMessage_BadRequests(t *testing.T) {
	tests := map[string]string{
		"blank":        `{"text":"   "}`,
		"invalid json": `{`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			w := serve(newTestServer(t, true), "POST", "/api/v1/chats/messages", strings.NewReader(body))
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestSendMessage_Quota(t *testing.T) {
	w := serve(newTestServer(t, true), "POST", "/api/v1/chats/messages", strings.NewReader(`{"text":"quota"}`))
	expectCode(t, w, http.StatusPaymentRequired)

	var body map[string]string
	decode(t, w, &body)
	if body["error"] != chat.MsgQuotaExceeded {
		t.Errorf("expected %q, got %q", chat.MsgQuotaExceeded, body["error"])
	}
}

func TestClearChat(t *testing.T) {
	w := serve(newTestServer(t, true), "DELETE", "/api/v1/chats", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
}

func TestIndexPage(t *testing.T) {
	w := serve(newTestServer(t, true), "GET", "/", nil)
	expectCode(t, w, http.StatusOK)
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("expected html content type, got %s", ct)
	}

	body := w.Body.String()
	for _, want := range []string{`href="/?id=support"`, `dir="rtl"`, `action="/send"`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected page to contain %s", want)
		}
	}
}

func TestIndexPage_Selected(t *testing.T) {
	w := serve(newTestServer(t, true), "GET", "/?id=support", nil)
	expectCode(t, w, http.StatusOK)

	body := w.Body.String()
	if !strings.Contains(body, "<strong>sure</strong>") {
		t.Error("expected bold answer to be rendered")
	}
	if strings.Contains(body, `action="/send"`) {
		t.Error("composer should only show for testchat")
	}
}

func TestIndexPage_MissingCredential(t *testing.T) {
	w := serve(newTestServer(t, false), "GET", "/", nil)
	expectCode(t, w, http.StatusUnauthorized)
	if !strings.Contains(w.Body.String(), chat.MsgMissingCredential) {
		t.Errorf("expected page to show %q", chat.MsgMissingCredential)
	}
}

func TestSendForm_Redirects(t *testing.T) {
	form := url.Values{"text": {"hello there"}}
	req := httptest.NewRequest("POST", "/send", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	newTestServer(t, true).router.ServeHTTP(w, req)

	expectCode(t, w, http.StatusSeeOther)
	if loc := w.Header().Get("Location"); loc != "/?id=testchat" {
		t.Errorf("expected redirect to /?id=testchat, got %s", loc)
	}
}

func TestClearForm_Redirects(t *testing.T) {
	w := serve(newTestServer(t, true), "POST", "/clear", nil)
	if w.Code != http.StatusSeeOther {
		t.Errorf("expected 303, got %d", w.Code)
	}
}
