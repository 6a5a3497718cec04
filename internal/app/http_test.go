package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/time/rate"

	"agora/api/internal/store"
)

func newTestHandler(fs *fakeStore, writeLimit *rate.Limiter) http.Handler {
	service := NewService(fs, nil, nil, nil, 3)
	return NewHTTPServer(service, "*", writeLimit).Handler()
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func decodeResponse(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid JSON response: %v\n%s", err, recorder.Body.String())
	}
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestHandler(&fakeStore{}, nil)

	recorder := doRequest(t, handler, http.MethodGet, "/api/health", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if payload := decodeResponse(t, recorder); payload["ok"] != true {
		t.Errorf("expected ok true, got %v", payload["ok"])
	}
}

func TestReadyEndpointReportsDatabase(t *testing.T) {
	handler := newTestHandler(&fakeStore{}, nil)

	recorder := doRequest(t, handler, http.MethodGet, "/api/ready", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	payload := decodeResponse(t, recorder)
	if payload["status"] != "ready" {
		t.Errorf("expected ready status, got %v", payload["status"])
	}
}

func TestOptionsPreflightShortCircuits(t *testing.T) {
	handler := newTestHandler(&fakeStore{}, nil)

	recorder := doRequest(t, handler, http.MethodOptions, "/api/posts/post_1/votes", "", nil)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", recorder.Code)
	}
	if origin := recorder.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("expected CORS origin header, got %q", origin)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	handler := newTestHandler(&fakeStore{}, nil)

	recorder := doRequest(t, handler, http.MethodGet, "/api/health", "", map[string]string{"X-Request-ID": "req-42"})
	if got := recorder.Header().Get("X-Request-ID"); got != "req-42" {
		t.Errorf("expected request id echoed, got %q", got)
	}
}

func TestMutationsAreRateLimited(t *testing.T) {
	handler := newTestHandler(&fakeStore{}, rate.NewLimiter(0, 0))

	recorder := doRequest(t, handler, http.MethodPost, "/api/posts/post_1/votes", `{"direction":1}`, map[string]string{"X-Agora-Actor": "user-1"})
	if recorder.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", recorder.Code)
	}
	if payload := decodeResponse(t, recorder); payload["code"] != "RATE_LIMITED" {
		t.Errorf("expected RATE_LIMITED, got %v", payload["code"])
	}
}

func TestReadsBypassRateLimit(t *testing.T) {
	handler := newTestHandler(&fakeStore{}, rate.NewLimiter(0, 0))

	recorder := doRequest(t, handler, http.MethodGet, "/api/channels", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected reads unthrottled, got %d", recorder.Code)
	}
}

func TestVoteWithoutActorIsUnauthorized(t *testing.T) {
	handler := newTestHandler(&fakeStore{}, nil)

	recorder := doRequest(t, handler, http.MethodPost, "/api/posts/post_1/votes", `{"direction":1}`, nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
	if payload := decodeResponse(t, recorder); payload["code"] != "UNAUTHORIZED" {
		t.Errorf("expected UNAUTHORIZED, got %v", payload["code"])
	}
}

func TestUnknownPostIsNotFound(t *testing.T) {
	handler := newTestHandler(&fakeStore{}, nil)

	recorder := doRequest(t, handler, http.MethodPatch, "/api/posts/post_missing", `{"content":"x"}`, map[string]string{"X-Agora-Actor": "user-1"})
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
	if payload := decodeResponse(t, recorder); payload["code"] != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %v", payload["code"])
	}
}

func TestCreatePostReturns201(t *testing.T) {
	fs := &fakeStore{
		getPostFn: func(context.Context, string) (store.Post, error) {
			return store.Post{ID: "post_1", ThreadID: "thread_1", Content: "hello"}, nil
		},
	}
	postFixtures(fs, openChannel(true))
	handler := newTestHandler(fs, nil)

	recorder := doRequest(t, handler, http.MethodPost, "/api/threads/thread_1/posts", `{"content":"hello"}`, map[string]string{"X-Agora-Actor": "user-1"})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d\n%s", recorder.Code, recorder.Body.String())
	}
	payload := decodeResponse(t, recorder)
	post := payload["post"].(map[string]any)
	if post["content"] != "hello" {
		t.Errorf("unexpected post payload: %v", post)
	}
}

func TestCreatePostEmptyContentIsValidationError(t *testing.T) {
	fs := &fakeStore{}
	postFixtures(fs, openChannel(true))
	handler := newTestHandler(fs, nil)

	recorder := doRequest(t, handler, http.MethodPost, "/api/threads/thread_1/posts", `{"content":"  "}`, map[string]string{"X-Agora-Actor": "user-1"})
	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", recorder.Code)
	}
	if payload := decodeResponse(t, recorder); payload["code"] != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %v", payload["code"])
	}
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	handler := newTestHandler(&fakeStore{}, nil)

	recorder := doRequest(t, handler, http.MethodPost, "/api/posts/post_1/votes", `{direction`, map[string]string{"X-Agora-Actor": "user-1"})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	if payload := decodeResponse(t, recorder); payload["code"] != "INVALID_BODY" {
		t.Errorf("expected INVALID_BODY, got %v", payload["code"])
	}
}

func TestSearchRejectsUnknownType(t *testing.T) {
	handler := newTestHandler(&fakeStore{}, nil)

	recorder := doRequest(t, handler, http.MethodGet, "/api/search?q=hello&type=comment", "", nil)
	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", recorder.Code)
	}
}

func TestSearchWithoutBackendReturnsEmpty(t *testing.T) {
	handler := newTestHandler(&fakeStore{}, nil)

	recorder := doRequest(t, handler, http.MethodGet, "/api/search?q=hello", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	payload := decodeResponse(t, recorder)
	results, ok := payload["results"].([]any)
	if !ok || len(results) != 0 {
		t.Errorf("expected empty results, got %v", payload["results"])
	}
}

func TestModeratorHeaderAllowsForeignDelete(t *testing.T) {
	fs := &fakeStore{
		getPostFn: func(context.Context, string) (store.Post, error) {
			return store.Post{ID: "post_1", ThreadID: "thread_1", AuthorID: strPtr("owner")}, nil
		},
	}
	handler := newTestHandler(fs, nil)

	recorder := doRequest(t, handler, http.MethodDelete, "/api/posts/post_1", "", map[string]string{
		"X-Agora-Actor":     "mod",
		"X-Agora-Moderator": "true",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 for moderator delete, got %d\n%s", recorder.Code, recorder.Body.String())
	}

	recorder = doRequest(t, handler, http.MethodDelete, "/api/posts/post_1", "", map[string]string{"X-Agora-Actor": "stranger"})
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without moderator header, got %d", recorder.Code)
	}
}

func TestChannelTreeRoute(t *testing.T) {
	parentID := "chan_root"
	fs := &fakeStore{
		listChannelsFn: func(context.Context) ([]store.Channel, error) {
			return []store.Channel{
				{ID: "chan_root", Name: "Root"},
				{ID: "chan_child", Name: "Child", ParentID: &parentID},
			}, nil
		},
	}
	handler := newTestHandler(fs, nil)

	recorder := doRequest(t, handler, http.MethodGet, "/api/channels/tree", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	payload := decodeResponse(t, recorder)
	tree, ok := payload["tree"].([]any)
	if !ok || len(tree) != 1 {
		t.Fatalf("expected one root in tree, got %v", payload["tree"])
	}
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	handler := newTestHandler(&fakeStore{}, nil)

	recorder := doRequest(t, handler, http.MethodGet, "/api/nope/x/y", "", nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
}
