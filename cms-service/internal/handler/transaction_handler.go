package handler

import (
	"context"
	"net/http"

	"github.com/cardbank/cms/cms-service/internal/command"
	"github.com/cardbank/cms/shared/cqrs"
	"github.com/cardbank/cms/shared/middleware"
	"github.com/cardbank/cms/shared/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionCommander defines the write-side operations used by TransactionHandler.
type TransactionCommander interface {
	ProcessTransaction(context.Context, cqrs.ProcessTransactionCommand) (*command.TransactionResult, error)
}

// TransactionQuerier defines the read-side operations used by TransactionHandler.
type TransactionQuerier interface {
	GetTransaction(context.Context, cqrs.GetTransactionQuery) (*models.TransactionView, error)
	ListTransactions(context.Context, cqrs.ListTransactionsQuery) (*models.TransactionPage, error)
}

type TransactionHandler struct {
	commands TransactionCommander
	queries  TransactionQuerier
}

type CreateTransactionRequest struct {
	AccountID string          `json:"accountId" validate:"required,uuid"`
	CardID    string          `json:"cardId" validate:"required,uuid"`
	Amount    decimal.Decimal `json:"amount" validate:"money"`
	Type      string          `json:"type" validate:"required,oneof=DEBIT CREDIT"`
}

func NewTransactionHandler(commands TransactionCommander, queries TransactionQuerier) *TransactionHandler {
	return &TransactionHandler{commands: commands, queries: queries}
}

// CreateTransaction answers 201 for approved transactions and 422 for both
// fraud declines (with the stored record) and business rule rejections.
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	result, err := h.commands.ProcessTransaction(c.Request.Context(), cqrs.ProcessTransactionCommand{
		AccountID: uuid.MustParse(req.AccountID),
		CardID:    uuid.MustParse(req.CardID),
		Amount:    req.Amount,
		Type:      models.TransactionType(req.Type),
	})
	if err != nil {
		respondWithServiceError(c, err, "process transaction")
		return
	}

	view := models.TransactionToView(result.Transaction)
	if !result.Approved() {
		c.JSON(http.StatusUnprocessableEntity, view)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	view, err := h.queries.GetTransaction(c.Request.Context(), cqrs.GetTransactionQuery{TransactionID: id})
	if err != nil {
		respondWithServiceError(c, err, "get transaction")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *TransactionHandler) ListAccountTransactions(c *gin.Context) {
	accountID, ok := parseID(c, "id")
	if !ok {
		return
	}
	page, size, ok := parsePage(c)
	if !ok {
		return
	}

	result, err := h.queries.ListTransactions(c.Request.Context(), cqrs.ListTransactionsQuery{
		AccountID: accountID,
		Page:      page,
		Size:      size,
	})
	if err != nil {
		respondWithServiceError(c, err, "list transactions")
		return
	}
	c.JSON(http.StatusOK, result)
}
