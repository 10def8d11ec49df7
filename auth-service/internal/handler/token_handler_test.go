package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/cardbank/cms/auth-service/internal/query"
	"github.com/cardbank/cms/shared/cqrs"
	"github.com/gin-gonic/gin"
)

// ---- mock implementation ----

type mockTokenQuerier struct {
	issueFn func(cqrs.ClientCredentialsCommand) (*query.TokenResponse, error)
}

func (m *mockTokenQuerier) IssueToken(cmd cqrs.ClientCredentialsCommand) (*query.TokenResponse, error) {
	if m.issueFn != nil {
		return m.issueFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}

// ---- helper ----

func newTokenTestRouter(qrys TokenQuerier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/oauth2/token", NewTokenHandler(qrys).Token)
	return r
}

func postForm(router *gin.Engine, form url.Values, basicUser, basicPass string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, "/oauth2/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if basicUser != "" {
		req.SetBasicAuth(basicUser, basicPass)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ---- tests ----

func TestToken(t *testing.T) {
	issued := &query.TokenResponse{AccessToken: "tok", TokenType: "Bearer", ExpiresIn: 900, Scope: "cards:write"}

	tests := []struct {
		name           string
		form           url.Values
		basicUser      string
		basicPass      string
		issueFn        func(cqrs.ClientCredentialsCommand) (*query.TokenResponse, error)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "success - form credentials",
			form: url.Values{"grant_type": {"client_credentials"}, "client_id": {"ops"}, "client_secret": {"s"}, "scope": {"cards:write"}},
			issueFn: func(cmd cqrs.ClientCredentialsCommand) (*query.TokenResponse, error) {
				if cmd.ClientID != "ops" || cmd.ClientSecret != "s" || cmd.Scope != "cards:write" {
					return nil, fmt.Errorf("unexpected command %+v", cmd)
				}
				return issued, nil
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"access_token":"tok"`,
		},
		{
			name:      "success - basic auth credentials",
			form:      url.Values{"grant_type": {"client_credentials"}},
			basicUser: "ops",
			basicPass: "s",
			issueFn: func(cmd cqrs.ClientCredentialsCommand) (*query.TokenResponse, error) {
				if cmd.ClientID != "ops" || cmd.ClientSecret != "s" {
					return nil, fmt.Errorf("unexpected command %+v", cmd)
				}
				return issued, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "unsupported grant",
			form:           url.Values{"grant_type": {"password"}, "client_id": {"ops"}, "client_secret": {"s"}},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "unsupported_grant_type",
		},
		{
			name:           "missing credentials",
			form:           url.Values{"grant_type": {"client_credentials"}},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "invalid_client",
		},
		{
			name: "bad credentials",
			form: url.Values{"grant_type": {"client_credentials"}, "client_id": {"ops"}, "client_secret": {"bad"}},
			issueFn: func(cqrs.ClientCredentialsCommand) (*query.TokenResponse, error) {
				return nil, query.ErrInvalidClient
			},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "invalid_client",
		},
		{
			name: "scope not allowed",
			form: url.Values{"grant_type": {"client_credentials"}, "client_id": {"ops"}, "client_secret": {"s"}, "scope": {"fraud:evaluate"}},
			issueFn: func(cqrs.ClientCredentialsCommand) (*query.TokenResponse, error) {
				return nil, fmt.Errorf("%w: fraud:evaluate", query.ErrInvalidScope)
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "invalid_scope",
		},
		{
			name: "signing failure",
			form: url.Values{"grant_type": {"client_credentials"}, "client_id": {"ops"}, "client_secret": {"s"}},
			issueFn: func(cqrs.ClientCredentialsCommand) (*query.TokenResponse, error) {
				return nil, fmt.Errorf("boom")
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTokenTestRouter(&mockTokenQuerier{issueFn: tt.issueFn})
			w := postForm(router, tt.form, tt.basicUser, tt.basicPass)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedBody != "" && !strings.Contains(w.Body.String(), tt.expectedBody) {
				t.Errorf("[%s] expected body to contain %q, got %s", tt.name, tt.expectedBody, w.Body.String())
			}
		})
	}
}
