package handler

import (
	"context"
	"net/http"

	"github.com/cardbank/cms/shared/cqrs"
	"github.com/cardbank/cms/shared/middleware"
	"github.com/cardbank/cms/shared/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// AccountCommander defines the write-side operations used by AccountHandler.
type AccountCommander interface {
	CreateAccount(context.Context, cqrs.CreateAccountCommand) (*models.Account, error)
	UpdateAccount(context.Context, cqrs.UpdateAccountCommand) (*models.Account, error)
}

// AccountQuerier defines the read-side operations used by AccountHandler.
type AccountQuerier interface {
	GetAccount(context.Context, cqrs.GetAccountQuery) (*models.AccountView, error)
}

type AccountHandler struct {
	commands AccountCommander
	queries  AccountQuerier
}

type CreateAccountRequest struct {
	Status  string          `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
	Balance decimal.Decimal `json:"balance"`
}

type UpdateAccountRequest struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE INACTIVE"`
}

func NewAccountHandler(commands AccountCommander, queries AccountQuerier) *AccountHandler {
	return &AccountHandler{commands: commands, queries: queries}
}

func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	account, err := h.commands.CreateAccount(c.Request.Context(), cqrs.CreateAccountCommand{
		Status:         models.AccountStatus(req.Status),
		OpeningBalance: req.Balance,
	})
	if err != nil {
		respondWithServiceError(c, err, "create account")
		return
	}
	c.JSON(http.StatusCreated, models.AccountToView(account))
}

func (h *AccountHandler) GetAccount(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	view, err := h.queries.GetAccount(c.Request.Context(), cqrs.GetAccountQuery{AccountID: id})
	if err != nil {
		respondWithServiceError(c, err, "get account")
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateAccount only changes the status; balances move through transactions.
func (h *AccountHandler) UpdateAccount(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	account, err := h.commands.UpdateAccount(c.Request.Context(), cqrs.UpdateAccountCommand{
		AccountID: id,
		Status:    models.AccountStatus(req.Status),
	})
	if err != nil {
		respondWithServiceError(c, err, "update account")
		return
	}
	c.JSON(http.StatusOK, models.AccountToView(account))
}
