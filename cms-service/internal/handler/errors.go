package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/cardbank/cms/cms-service/internal/command"
	"github.com/cardbank/cms/cms-service/internal/repository"
	"github.com/cardbank/cms/shared/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RejectedResponse struct {
	Message string `json:"message"`
	Reason  string `json:"reason"`
}

// respondWithServiceError maps command and repository errors to HTTP
// responses. action completes "Failed to ..." for unexpected errors.
func respondWithServiceError(c *gin.Context, err error, action string) {
	var rejected *command.RejectedError
	switch {
	case errors.As(err, &rejected):
		c.JSON(http.StatusUnprocessableEntity, RejectedResponse{Message: "Transaction rejected", Reason: rejected.Reason})
	case errors.Is(err, repository.ErrAccountNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "Account not found")
	case errors.Is(err, repository.ErrCardNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "Card not found")
	case errors.Is(err, repository.ErrTransactionNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "Transaction not found")
	case errors.Is(err, command.ErrFraudServiceUnavailable):
		middleware.RespondWithError(c, http.StatusServiceUnavailable, "Fraud service unavailable, retry later")
	case errors.Is(err, command.ErrInvalidAmount),
		errors.Is(err, command.ErrInvalidType),
		errors.Is(err, command.ErrInvalidStatus),
		errors.Is(err, command.ErrInvalidBalance),
		errors.Is(err, command.ErrInvalidCardNumber),
		errors.Is(err, command.ErrInvalidExpiry):
		middleware.RespondWithError(c, http.StatusBadRequest, err.Error())
	default:
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to "+action)
	}
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

// parsePage reads zero-based page and size query values.
func parsePage(c *gin.Context) (int, int, bool) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || page < 0 {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid page")
		return 0, 0, false
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", "20"))
	if err != nil || size <= 0 {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid size")
		return 0, 0, false
	}
	return page, size, true
}
