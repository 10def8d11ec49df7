package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/cardbank/cms/cms-service/internal/repository"
	"github.com/cardbank/cms/shared/cqrs"
	"github.com/cardbank/cms/shared/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type mockCardCommander struct {
	createFn    func(cqrs.CreateCardCommand) (*models.Card, error)
	setStatusFn func(cqrs.SetCardStatusCommand) (*models.Card, error)
}

func (m *mockCardCommander) CreateCard(_ context.Context, cmd cqrs.CreateCardCommand) (*models.Card, error) {
	if m.createFn != nil {
		return m.createFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockCardCommander) SetCardStatus(_ context.Context, cmd cqrs.SetCardStatusCommand) (*models.Card, error) {
	if m.setStatusFn != nil {
		return m.setStatusFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}

type mockCardQuerier struct {
	getFn  func(cqrs.GetCardQuery) (*models.CardView, error)
	listFn func(cqrs.ListCardIDsQuery) (*models.IDPage, error)
}

func (m *mockCardQuerier) GetCard(_ context.Context, q cqrs.GetCardQuery) (*models.CardView, error) {
	if m.getFn != nil {
		return m.getFn(q)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockCardQuerier) ListCardIDs(_ context.Context, q cqrs.ListCardIDsQuery) (*models.IDPage, error) {
	if m.listFn != nil {
		return m.listFn(q)
	}
	return nil, fmt.Errorf("not configured")
}

func newCardTestRouter(cmds CardCommander, qrys CardQuerier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewCardHandler(cmds, qrys)
	v1 := r.Group("/cms/v1")
	v1.POST("/cards", h.CreateCard)
	v1.GET("/cards", h.ListCards)
	v1.GET("/cards/:id", h.GetCard)
	v1.POST("/cards/:id/activate", h.ActivateCard)
	v1.POST("/cards/:id/deactivate", h.DeactivateCard)
	v1.GET("/accounts/:id/cards", h.ListAccountCards)
	return r
}

func testCard(status models.CardStatus) *models.Card {
	return &models.Card{
		ID: txTestCardID, AccountID: txTestAccountID, Status: status,
		Expiry: time.Now().AddDate(2, 0, 0), CardNumber: "4111111111111111",
	}
}

func TestCreateCard(t *testing.T) {
	expiry := time.Now().AddDate(2, 0, 0).Format(models.ExpiryLayout)

	tests := []struct {
		name           string
		body           any
		createFn       func(cqrs.CreateCardCommand) (*models.Card, error)
		expectedStatus int
	}{
		{
			name: "success - issue card",
			body: map[string]any{"accountId": txTestAccountID.String(), "cardNumber": "4111 1111 1111 1111", "expiry": expiry},
			createFn: func(cmd cqrs.CreateCardCommand) (*models.Card, error) {
				if cmd.Expiry.Format(models.ExpiryLayout) != expiry {
					return nil, fmt.Errorf("unexpected expiry %s", cmd.Expiry)
				}
				return testCard(models.CardInactive), nil
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "not found - account does not exist",
			body: map[string]any{"accountId": uuid.NewString(), "cardNumber": "4111111111111111", "expiry": expiry},
			createFn: func(cmd cqrs.CreateCardCommand) (*models.Card, error) {
				return nil, fmt.Errorf("failed to lock account: %w", repository.ErrAccountNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "bad request - luhn failure",
			body:           map[string]any{"accountId": txTestAccountID.String(), "cardNumber": "4111111111111112", "expiry": expiry},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - bad expiry format",
			body:           map[string]any{"accountId": txTestAccountID.String(), "cardNumber": "4111111111111111", "expiry": "12/30"},
			expectedStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newCardTestRouter(&mockCardCommander{createFn: tt.createFn}, &mockCardQuerier{})
			w := doRequest(router, http.MethodPost, "/cms/v1/cards", tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
			if strings.Contains(w.Body.String(), "4111111111111111") {
				t.Errorf("[%s] response leaked the card number: %s", tt.name, w.Body.String())
			}
		})
	}
}

func TestCardStatusChanges(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		setStatusFn    func(cqrs.SetCardStatusCommand) (*models.Card, error)
		expectedStatus int
		expectedCard   models.CardStatus
	}{
		{
			name: "success - activate",
			path: "/activate",
			setStatusFn: func(cmd cqrs.SetCardStatusCommand) (*models.Card, error) {
				return testCard(cmd.Status), nil
			},
			expectedStatus: http.StatusOK,
			expectedCard:   models.CardActive,
		},
		{
			name: "success - deactivate",
			path: "/deactivate",
			setStatusFn: func(cmd cqrs.SetCardStatusCommand) (*models.Card, error) {
				return testCard(cmd.Status), nil
			},
			expectedStatus: http.StatusOK,
			expectedCard:   models.CardInactive,
		},
		{
			name: "not found - card does not exist",
			path: "/activate",
			setStatusFn: func(cmd cqrs.SetCardStatusCommand) (*models.Card, error) {
				return nil, repository.ErrCardNotFound
			},
			expectedStatus: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newCardTestRouter(&mockCardCommander{setStatusFn: tt.setStatusFn}, &mockCardQuerier{})
			w := doRequest(router, http.MethodPost, "/cms/v1/cards/"+txTestCardID.String()+tt.path, nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedCard != "" {
				var view models.CardView
				_ = json.Unmarshal(w.Body.Bytes(), &view)
				if view.Status != tt.expectedCard {
					t.Errorf("[%s] expected status %s got %s", tt.name, tt.expectedCard, view.Status)
				}
			}
		})
	}
}

func TestListCards(t *testing.T) {
	tests := []struct {
		name           string
		url            string
		listFn         func(cqrs.ListCardIDsQuery) (*models.IDPage, error)
		expectedStatus int
	}{
		{
			name: "success - all cards",
			url:  "/cms/v1/cards?page=0&size=10",
			listFn: func(q cqrs.ListCardIDsQuery) (*models.IDPage, error) {
				if q.AccountID != nil {
					return nil, fmt.Errorf("unexpected account filter")
				}
				return &models.IDPage{IDs: []uuid.UUID{txTestCardID}, Size: 10, Total: 1}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "success - cards of one account",
			url:  "/cms/v1/accounts/" + txTestAccountID.String() + "/cards",
			listFn: func(q cqrs.ListCardIDsQuery) (*models.IDPage, error) {
				if q.AccountID == nil || *q.AccountID != txTestAccountID {
					return nil, fmt.Errorf("missing account filter")
				}
				return &models.IDPage{IDs: []uuid.UUID{txTestCardID}, Size: 20, Total: 1}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "not found - unknown account",
			url:  "/cms/v1/accounts/" + uuid.NewString() + "/cards",
			listFn: func(q cqrs.ListCardIDsQuery) (*models.IDPage, error) {
				return nil, repository.ErrAccountNotFound
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "bad request - size not a number",
			url:            "/cms/v1/cards?size=lots",
			expectedStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newCardTestRouter(&mockCardCommander{}, &mockCardQuerier{listFn: tt.listFn})
			w := doRequest(router, http.MethodGet, tt.url, nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}
