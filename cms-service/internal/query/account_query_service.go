package query

import (
	"context"

	"github.com/cardbank/cms/cms-service/internal/repository"
	"github.com/cardbank/cms/shared/cqrs"
	"github.com/cardbank/cms/shared/models"
)

// AccountQueryService reads accounts through the Redis projection, falling
// back to the store and warming the cache on a miss.
type AccountQueryService struct {
	store repository.ReadStore
	cache ViewCache[models.AccountView]
}

func NewAccountQueryService(store repository.ReadStore, cache ViewCache[models.AccountView]) *AccountQueryService {
	return &AccountQueryService{store: store, cache: cache}
}

func (s *AccountQueryService) GetAccount(ctx context.Context, q cqrs.GetAccountQuery) (*models.AccountView, error) {
	key := q.AccountID.String()
	if s.cache != nil {
		if view, ok := s.cache.Get(ctx, key); ok {
			return view, nil
		}
	}

	account, err := s.store.GetAccount(ctx, q.AccountID)
	if err != nil {
		return nil, err
	}
	view := models.AccountToView(account)
	if s.cache != nil {
		s.cache.Set(ctx, key, view)
	}
	return view, nil
}
