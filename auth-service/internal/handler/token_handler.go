package handler

import (
	"errors"
	"net/http"

	"github.com/cardbank/cms/auth-service/internal/query"
	"github.com/cardbank/cms/shared/cqrs"
	"github.com/gin-gonic/gin"
)

// TokenQuerier defines the operations used by TokenHandler.
type TokenQuerier interface {
	IssueToken(cqrs.ClientCredentialsCommand) (*query.TokenResponse, error)
}

type TokenHandler struct {
	queries TokenQuerier
}

// TokenRequest is the form encoded client_credentials grant. Credentials may
// also arrive through HTTP Basic auth.
type TokenRequest struct {
	GrantType    string `form:"grant_type"`
	ClientID     string `form:"client_id"`
	ClientSecret string `form:"client_secret"`
	Scope        string `form:"scope"`
}

// OAuthError is the RFC 6749 error body.
type OAuthError struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func NewTokenHandler(queries TokenQuerier) *TokenHandler {
	return &TokenHandler{queries: queries}
}

func (h *TokenHandler) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, OAuthError{Error: "invalid_request"})
		return
	}
	if req.GrantType != "client_credentials" {
		c.JSON(http.StatusBadRequest, OAuthError{Error: "unsupported_grant_type"})
		return
	}
	if id, secret, ok := c.Request.BasicAuth(); ok {
		req.ClientID, req.ClientSecret = id, secret
	}
	if req.ClientID == "" || req.ClientSecret == "" {
		c.JSON(http.StatusUnauthorized, OAuthError{Error: "invalid_client"})
		return
	}

	resp, err := h.queries.IssueToken(cqrs.ClientCredentialsCommand{
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		Scope:        req.Scope,
	})
	switch {
	case errors.Is(err, query.ErrInvalidClient):
		c.JSON(http.StatusUnauthorized, OAuthError{Error: "invalid_client"})
		return
	case errors.Is(err, query.ErrInvalidScope):
		c.JSON(http.StatusBadRequest, OAuthError{Error: "invalid_scope", Description: err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, OAuthError{Error: "server_error"})
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, resp)
}
