package catalog

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Service обслуживает чтение и создание товаров каталога.
type Service struct {
	repo   domain.ItemRepository
	logger *log.Entry
}

// NewService конструирует сервис каталога.
func NewService(repo domain.ItemRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "catalog-service")
	}
	return &Service{repo: repo, logger: logger}
}

// DefaultSeed — стартовый набор товаров демо-каталога.
func DefaultSeed() []domain.ItemDraft {
	return []domain.ItemDraft{
		{Name: "Coffee", Price: decimal.RequireFromString("199.00")},
		{Name: "Tea", Price: decimal.RequireFromString("99.50")},
	}
}

// Seed добавляет товары в каталог по порядку.
func (s *Service) Seed(ctx context.Context, drafts []domain.ItemDraft) error {
	for _, draft := range drafts {
		item, err := s.repo.Create(ctx, draft)
		if err != nil {
			return fmt.Errorf("seed item %q: %w", draft.Name, err)
		}
		s.logger.WithFields(log.Fields{
			"item_id": item.ID,
			"name":    item.Name,
		}).Debug("seeded catalog item")
	}
	return nil
}

// CreateItem валидирует и сохраняет новый товар.
func (s *Service) CreateItem(ctx context.Context, draft domain.ItemDraft) (domain.Item, error) {
	if err := draft.Validate(); err != nil {
		return domain.Item{}, err
	}
	item, err := s.repo.Create(ctx, draft)
	if err != nil {
		s.logger.WithError(err).Error("failed to create item")
		return domain.Item{}, fmt.Errorf("create item: %w", err)
	}
	s.logger.WithFields(log.Fields{
		"item_id": item.ID,
		"price":   domain.FormatMoney(item.Price),
	}).Info("item created")
	return item, nil
}

// GetItem возвращает товар по id или ErrItemNotFound.
func (s *Service) GetItem(ctx context.Context, id int64) (domain.Item, error) {
	if id <= 0 {
		return domain.Item{}, domain.NewValidationError("item_id", "must be a positive integer")
	}
	return s.repo.Get(ctx, id)
}

// ListItems возвращает снимок каталога.
func (s *Service) ListItems(ctx context.Context) ([]domain.Item, error) {
	return s.repo.List(ctx)
}
