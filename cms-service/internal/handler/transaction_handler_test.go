package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cardbank/cms/cms-service/internal/command"
	"github.com/cardbank/cms/cms-service/internal/repository"
	"github.com/cardbank/cms/shared/cqrs"
	"github.com/cardbank/cms/shared/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---- mock implementations ----

type mockTransactionCommander struct {
	processFn func(cqrs.ProcessTransactionCommand) (*command.TransactionResult, error)
}

func (m *mockTransactionCommander) ProcessTransaction(_ context.Context, cmd cqrs.ProcessTransactionCommand) (*command.TransactionResult, error) {
	if m.processFn != nil {
		return m.processFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}

type mockTransactionQuerier struct {
	getFn  func(cqrs.GetTransactionQuery) (*models.TransactionView, error)
	listFn func(cqrs.ListTransactionsQuery) (*models.TransactionPage, error)
}

func (m *mockTransactionQuerier) GetTransaction(_ context.Context, q cqrs.GetTransactionQuery) (*models.TransactionView, error) {
	if m.getFn != nil {
		return m.getFn(q)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockTransactionQuerier) ListTransactions(_ context.Context, q cqrs.ListTransactionsQuery) (*models.TransactionPage, error) {
	if m.listFn != nil {
		return m.listFn(q)
	}
	return nil, fmt.Errorf("not configured")
}

// ---- helpers ----

func newTxTestRouter(cmds TransactionCommander, qrys TransactionQuerier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewTransactionHandler(cmds, qrys)
	v1 := r.Group("/cms/v1")
	v1.POST("/transactions", h.CreateTransaction)
	v1.GET("/transactions/:id", h.GetTransaction)
	v1.GET("/accounts/:id/transactions", h.ListAccountTransactions)
	return r
}

func doRequest(router *gin.Engine, method, url string, body any) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, url, nil)
	if body != nil {
		b, _ := json.Marshal(body)
		req, _ = http.NewRequest(method, url, strings.NewReader(string(b)))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ---- test data ----

var (
	txTestAccountID = uuid.MustParse("6f1c2f64-3d55-4b8e-9a43-8c9d2f0e7a11")
	txTestCardID    = uuid.MustParse("0b7d5c1e-2a4f-4c6b-8e3d-1f2a3b4c5d6e")
)

func txTestRecord(outcome models.Outcome, reason string) *models.Transaction {
	return &models.Transaction{
		ID: uuid.New(), AccountID: txTestAccountID, CardID: txTestCardID,
		Amount: decimal.RequireFromString("100.00"), Type: models.Debit,
		Outcome: outcome, Reason: reason, CreatedAt: time.Now(),
	}
}

func txDebitBody() map[string]any {
	return map[string]any{
		"accountId": txTestAccountID.String(),
		"cardId":    txTestCardID.String(),
		"amount":    "100.00",
		"type":      "DEBIT",
	}
}

// ---- tests ----

func TestCreateTransaction(t *testing.T) {
	tests := []struct {
		name           string
		body           any
		processFn      func(cqrs.ProcessTransactionCommand) (*command.TransactionResult, error)
		expectedStatus int
		expectedReason string
	}{
		{
			name: "success - approved debit",
			body: txDebitBody(),
			processFn: func(cmd cqrs.ProcessTransactionCommand) (*command.TransactionResult, error) {
				if cmd.AccountID != txTestAccountID || !cmd.Amount.Equal(decimal.RequireFromString("100")) || cmd.Type != models.Debit {
					return nil, fmt.Errorf("unexpected command %+v", cmd)
				}
				return &command.TransactionResult{Transaction: txTestRecord(models.Approved, "OK")}, nil
			},
			expectedStatus: http.StatusCreated,
			expectedReason: "OK",
		},
		{
			name: "unprocessable entity - fraud rejected record",
			body: txDebitBody(),
			processFn: func(cmd cqrs.ProcessTransactionCommand) (*command.TransactionResult, error) {
				return &command.TransactionResult{Transaction: txTestRecord(models.Rejected, "AMOUNT_EXCEEDS_LIMIT")}, nil
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedReason: "AMOUNT_EXCEEDS_LIMIT",
		},
		{
			name: "unprocessable entity - insufficient balance",
			body: txDebitBody(),
			processFn: func(cmd cqrs.ProcessTransactionCommand) (*command.TransactionResult, error) {
				return nil, &command.RejectedError{Reason: command.ReasonInsufficientBalance}
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedReason: command.ReasonInsufficientBalance,
		},
		{
			name: "not found - account does not exist",
			body: txDebitBody(),
			processFn: func(cmd cqrs.ProcessTransactionCommand) (*command.TransactionResult, error) {
				return nil, fmt.Errorf("failed to lock account: %w", repository.ErrAccountNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "service unavailable - fraud service down",
			body: txDebitBody(),
			processFn: func(cmd cqrs.ProcessTransactionCommand) (*command.TransactionResult, error) {
				return nil, fmt.Errorf("%w: connection refused", command.ErrFraudServiceUnavailable)
			},
			expectedStatus: http.StatusServiceUnavailable,
		},
		{
			name: "internal error - store failure",
			body: txDebitBody(),
			processFn: func(cmd cqrs.ProcessTransactionCommand) (*command.TransactionResult, error) {
				return nil, fmt.Errorf("failed to commit transaction: boom")
			},
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "bad request - missing required fields",
			body:           map[string]any{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "bad request - amount is zero",
			body: map[string]any{
				"accountId": txTestAccountID.String(), "cardId": txTestCardID.String(), "amount": "0", "type": "DEBIT",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "bad request - three decimal places",
			body: map[string]any{
				"accountId": txTestAccountID.String(), "cardId": txTestCardID.String(), "amount": "1.001", "type": "CREDIT",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "bad request - unknown type",
			body: map[string]any{
				"accountId": txTestAccountID.String(), "cardId": txTestCardID.String(), "amount": "1.00", "type": "REFUND",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "bad request - malformed card id",
			body: map[string]any{
				"accountId": txTestAccountID.String(), "cardId": "card-1", "amount": "1.00", "type": "DEBIT",
			},
			expectedStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds := &mockTransactionCommander{processFn: tt.processFn}
			router := newTxTestRouter(cmds, &mockTransactionQuerier{})
			w := doRequest(router, http.MethodPost, "/cms/v1/transactions", tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedReason != "" {
				var resp struct {
					Reason string `json:"reason"`
				}
				_ = json.Unmarshal(w.Body.Bytes(), &resp)
				if resp.Reason != tt.expectedReason {
					t.Errorf("[%s] expected reason %q got %q", tt.name, tt.expectedReason, resp.Reason)
				}
			}
		})
	}
}

func TestGetTransaction(t *testing.T) {
	view := models.TransactionToView(txTestRecord(models.Approved, "OK"))

	tests := []struct {
		name           string
		transactionID  string
		getFn          func(cqrs.GetTransactionQuery) (*models.TransactionView, error)
		expectedStatus int
	}{
		{
			name:           "success - fetch transaction",
			transactionID:  view.ID.String(),
			getFn:          func(q cqrs.GetTransactionQuery) (*models.TransactionView, error) { return view, nil },
			expectedStatus: http.StatusOK,
		},
		{
			name:          "not found - transaction does not exist",
			transactionID: uuid.NewString(),
			getFn: func(q cqrs.GetTransactionQuery) (*models.TransactionView, error) {
				return nil, repository.ErrTransactionNotFound
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "bad request - malformed id",
			transactionID:  "tan-001",
			expectedStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTxTestRouter(&mockTransactionCommander{}, &mockTransactionQuerier{getFn: tt.getFn})
			w := doRequest(router, http.MethodGet, "/cms/v1/transactions/"+tt.transactionID, nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestListAccountTransactions(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		listFn         func(cqrs.ListTransactionsQuery) (*models.TransactionPage, error)
		expectedStatus int
	}{
		{
			name:  "success - second page",
			query: "?page=1&size=5",
			listFn: func(q cqrs.ListTransactionsQuery) (*models.TransactionPage, error) {
				if q.Page != 1 || q.Size != 5 {
					return nil, fmt.Errorf("unexpected paging %+v", q)
				}
				return &models.TransactionPage{Page: 1, Size: 5, Total: 6}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "not found - account does not exist",
			listFn: func(q cqrs.ListTransactionsQuery) (*models.TransactionPage, error) {
				return nil, repository.ErrAccountNotFound
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "bad request - negative page",
			query:          "?page=-1",
			expectedStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTxTestRouter(&mockTransactionCommander{}, &mockTransactionQuerier{listFn: tt.listFn})
			url := "/cms/v1/accounts/" + txTestAccountID.String() + "/transactions" + tt.query
			w := doRequest(router, http.MethodGet, url, nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}
