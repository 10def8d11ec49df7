package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newProxyRouter(target string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Any("/cms/v1/*any", To(NewHTTPClient(), target))
	return r
}

func TestProxyForwardsRequest(t *testing.T) {
	var gotMethod, gotPath, gotQuery, gotAuth, gotBody string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotQuery = r.Method, r.URL.Path, r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Backend", "cms")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"abc"}`))
	}))
	defer backend.Close()

	req := httptest.NewRequest(http.MethodPost, "/cms/v1/transactions?dry=1", strings.NewReader(`{"amount":"1.00"}`))
	req.Header.Set("Authorization", "Bearer token")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	newProxyRouter(backend.URL).ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d; body: %s", w.Code, w.Body.String())
	}
	if gotMethod != http.MethodPost || gotPath != "/cms/v1/transactions" || gotQuery != "dry=1" {
		t.Errorf("unexpected forwarded request %s %s?%s", gotMethod, gotPath, gotQuery)
	}
	if gotAuth != "Bearer token" {
		t.Errorf("authorization header not forwarded, got %q", gotAuth)
	}
	if gotBody != `{"amount":"1.00"}` {
		t.Errorf("unexpected forwarded body %q", gotBody)
	}
	if w.Header().Get("X-Backend") != "cms" {
		t.Errorf("response headers not copied")
	}
	if w.Body.String() != `{"id":"abc"}` {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestProxyPassesErrorStatus(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer backend.Close()

	w := httptest.NewRecorder()
	newProxyRouter(backend.URL).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cms/v1/accounts/x", nil))
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 got %d", w.Code)
	}
}

func TestProxyBackendDown(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := backend.URL
	backend.Close()

	w := httptest.NewRecorder()
	newProxyRouter(url).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cms/v1/accounts/x", nil))
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502 got %d", w.Code)
	}
}
