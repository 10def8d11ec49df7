package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cardbank/cms/fraud-service/internal/command"
	"github.com/cardbank/cms/shared/cqrs"
	"github.com/cardbank/cms/shared/middleware"
	"github.com/cardbank/cms/shared/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FraudCommander defines the operations used by FraudHandler.
type FraudCommander interface {
	Evaluate(context.Context, cqrs.EvaluateFraudCommand) (*models.FraudCheckResponse, error)
}

type FraudHandler struct {
	commands FraudCommander
}

type EvaluateRequest struct {
	CardID    string          `json:"cardId" validate:"required,uuid"`
	Amount    decimal.Decimal `json:"amount" validate:"money"`
	Timestamp time.Time       `json:"timestamp" validate:"required"`
}

func NewFraudHandler(commands FraudCommander) *FraudHandler {
	return &FraudHandler{commands: commands}
}

// Evaluate answers 200 with the decision whether or not the attempt is
// approved. A declined attempt is a normal outcome, not an error.
func (h *FraudHandler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	decision, err := h.commands.Evaluate(c.Request.Context(), cqrs.EvaluateFraudCommand{
		CardID:    uuid.MustParse(req.CardID),
		Amount:    req.Amount,
		EventTime: req.Timestamp,
	})
	if err != nil {
		if errors.Is(err, command.ErrInvalidRequest) {
			middleware.RespondWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to evaluate transaction")
		return
	}
	c.JSON(http.StatusOK, decision)
}
