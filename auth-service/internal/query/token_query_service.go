package query

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cardbank/cms/auth-service/internal/repository"
	"github.com/cardbank/cms/shared/cqrs"
	"github.com/cardbank/cms/shared/middleware"
	"github.com/cardbank/cms/shared/utils"
)

var (
	ErrInvalidClient = errors.New("invalid client credentials")
	ErrInvalidScope  = errors.New("requested scope not allowed")
)

// TokenResponse follows the OAuth2 token endpoint response shape.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope"`
}

// TokenQueryService issues access tokens for registered clients. It does not
// mutate state, so there is no command side.
type TokenQueryService struct {
	clients *repository.ClientRepository
	secret  []byte
	ttl     time.Duration
}

func NewTokenQueryService(clients *repository.ClientRepository, secret []byte, ttl time.Duration) *TokenQueryService {
	return &TokenQueryService{clients: clients, secret: secret, ttl: ttl}
}

func (s *TokenQueryService) IssueToken(cmd cqrs.ClientCredentialsCommand) (*TokenResponse, error) {
	client, err := s.clients.GetByID(cmd.ClientID)
	if err != nil {
		return nil, ErrInvalidClient
	}
	if !utils.CheckSecret(cmd.ClientSecret, client.SecretHash) {
		return nil, ErrInvalidClient
	}

	scopes := client.Scopes
	if requested := strings.Fields(cmd.Scope); len(requested) > 0 {
		for _, scope := range requested {
			if !slices.Contains(client.Scopes, scope) {
				return nil, fmt.Errorf("%w: %s", ErrInvalidScope, scope)
			}
		}
		scopes = requested
	}

	token, err := middleware.IssueToken(s.secret, client.ID, s.ttl, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.ttl.Seconds()),
		Scope:       strings.Join(scopes, " "),
	}, nil
}
