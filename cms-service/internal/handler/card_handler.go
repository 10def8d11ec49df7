package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/cardbank/cms/shared/cqrs"
	"github.com/cardbank/cms/shared/middleware"
	"github.com/cardbank/cms/shared/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CardCommander defines the write-side operations used by CardHandler.
type CardCommander interface {
	CreateCard(context.Context, cqrs.CreateCardCommand) (*models.Card, error)
	SetCardStatus(context.Context, cqrs.SetCardStatusCommand) (*models.Card, error)
}

// CardQuerier defines the read-side operations used by CardHandler.
type CardQuerier interface {
	GetCard(context.Context, cqrs.GetCardQuery) (*models.CardView, error)
	ListCardIDs(context.Context, cqrs.ListCardIDsQuery) (*models.IDPage, error)
}

type CardHandler struct {
	commands CardCommander
	queries  CardQuerier
}

type CreateCardRequest struct {
	AccountID  string `json:"accountId" validate:"required,uuid"`
	CardNumber string `json:"cardNumber" validate:"required,card_number"`
	Expiry     string `json:"expiry" validate:"required,datetime=2006-01-02"`
}

func NewCardHandler(commands CardCommander, queries CardQuerier) *CardHandler {
	return &CardHandler{commands: commands, queries: queries}
}

// CreateCard issues an INACTIVE card. The response only carries the masked
// number.
func (h *CardHandler) CreateCard(c *gin.Context) {
	var req CreateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}
	expiry, _ := time.Parse(models.ExpiryLayout, req.Expiry)

	card, err := h.commands.CreateCard(c.Request.Context(), cqrs.CreateCardCommand{
		AccountID:  uuid.MustParse(req.AccountID),
		CardNumber: req.CardNumber,
		Expiry:     expiry,
	})
	if err != nil {
		respondWithServiceError(c, err, "create card")
		return
	}
	c.JSON(http.StatusCreated, models.CardToView(card))
}

func (h *CardHandler) GetCard(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	view, err := h.queries.GetCard(c.Request.Context(), cqrs.GetCardQuery{CardID: id})
	if err != nil {
		respondWithServiceError(c, err, "get card")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *CardHandler) ListCards(c *gin.Context) {
	h.listCards(c, nil)
}

func (h *CardHandler) ListAccountCards(c *gin.Context) {
	accountID, ok := parseID(c, "id")
	if !ok {
		return
	}
	h.listCards(c, &accountID)
}

func (h *CardHandler) listCards(c *gin.Context, accountID *uuid.UUID) {
	page, size, ok := parsePage(c)
	if !ok {
		return
	}

	ids, err := h.queries.ListCardIDs(c.Request.Context(), cqrs.ListCardIDsQuery{
		AccountID: accountID,
		Page:      page,
		Size:      size,
	})
	if err != nil {
		respondWithServiceError(c, err, "list cards")
		return
	}
	c.JSON(http.StatusOK, ids)
}

func (h *CardHandler) ActivateCard(c *gin.Context) {
	h.setStatus(c, models.CardActive)
}

func (h *CardHandler) DeactivateCard(c *gin.Context) {
	h.setStatus(c, models.CardInactive)
}

func (h *CardHandler) setStatus(c *gin.Context, status models.CardStatus) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	card, err := h.commands.SetCardStatus(c.Request.Context(), cqrs.SetCardStatusCommand{CardID: id, Status: status})
	if err != nil {
		respondWithServiceError(c, err, "update card")
		return
	}
	c.JSON(http.StatusOK, models.CardToView(card))
}
