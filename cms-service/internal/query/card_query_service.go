package query

import (
	"context"

	"github.com/cardbank/cms/cms-service/internal/repository"
	"github.com/cardbank/cms/shared/cqrs"
	"github.com/cardbank/cms/shared/models"
	"github.com/cardbank/cms/shared/utils"
)

type CardQueryService struct {
	store repository.ReadStore
	cache ViewCache[models.CardView]
}

func NewCardQueryService(store repository.ReadStore, cache ViewCache[models.CardView]) *CardQueryService {
	return &CardQueryService{store: store, cache: cache}
}

// GetCard returns the masked card view.
func (s *CardQueryService) GetCard(ctx context.Context, q cqrs.GetCardQuery) (*models.CardView, error) {
	key := q.CardID.String()
	if s.cache != nil {
		if view, ok := s.cache.Get(ctx, key); ok {
			return view, nil
		}
	}

	card, err := s.store.GetCard(ctx, q.CardID)
	if err != nil {
		return nil, err
	}
	view := models.CardToView(card)
	if s.cache != nil {
		s.cache.Set(ctx, key, view)
	}
	return view, nil
}

// ListCardIDs pages card ids, optionally restricted to one account.
func (s *CardQueryService) ListCardIDs(ctx context.Context, q cqrs.ListCardIDsQuery) (*models.IDPage, error) {
	if q.AccountID != nil {
		if _, err := s.store.GetAccount(ctx, *q.AccountID); err != nil {
			return nil, err
		}
	}
	page, size := utils.NormalizePage(q.Page, q.Size)
	return s.store.ListCardIDs(ctx, q.AccountID, page, size)
}
