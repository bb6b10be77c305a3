package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

// CreateOrderRequest — входные данные для создания заказа.
type CreateOrderRequest struct {
	ItemID int64
	Qty    int64
}

// Service — единственная точка, превращающая запрос (item_id, qty) в сохранённый заказ.
// Собственного состояния не имеет; повторов поверх резолвера не добавляет.
type Service struct {
	resolver  domain.ItemResolver
	orders    domain.OrderRepository
	publisher domain.EventPublisher
	metrics   *metrics.OrderMetrics
	logger    *log.Entry
	now       func() time.Time
}

// NewService собирает сервис заказов. publisher, metrics и logger могут быть nil.
func NewService(
	resolver domain.ItemResolver,
	orders domain.OrderRepository,
	publisher domain.EventPublisher,
	m *metrics.OrderMetrics,
	logger *log.Entry,
) *Service {
	if publisher == nil {
		publisher = domain.NopPublisher{}
	}
	if logger == nil {
		logger = log.WithField("component", "order-service")
	}
	return &Service{
		resolver:  resolver,
		orders:    orders,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder проверяет запрос, получает цену из каталога, считает сумму и сохраняет заказ.
// Ошибки резолвера (ErrItemNotFound, *domain.UnreachableError) возвращаются без изменений.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (domain.Order, error) {
	if err := domain.ValidateOrderRequest(req.ItemID, req.Qty); err != nil {
		s.metrics.RecordOrderRejected(metrics.OutcomeValidation)
		return domain.Order{}, err
	}

	// Хранилище не блокируется на время сетевого вызова: сначала цена, потом вставка.
	item, err := s.resolver.Resolve(ctx, req.ItemID)
	if err != nil {
		s.metrics.RecordOrderRejected(rejectReason(err))
		s.logger.WithFields(log.Fields{
			"item_id": req.ItemID,
			"qty":     req.Qty,
			"error":   err,
		}).Warn("failed to resolve catalog item")
		return domain.Order{}, err
	}

	total := domain.CalculateTotal(item.Price, req.Qty)
	if err := domain.ValidateMoney("total", total, domain.MaxTotalDigits); err != nil {
		s.metrics.RecordOrderRejected(metrics.OutcomeValidation)
		return domain.Order{}, err
	}

	order, err := s.orders.Create(ctx, domain.OrderDraft{
		ItemID:    item.ID,
		Qty:       req.Qty,
		UnitPrice: item.Price,
		Total:     total,
		CreatedAt: s.now(),
	})
	if err != nil {
		s.metrics.RecordOrderRejected(metrics.OutcomeStorage)
		return domain.Order{}, fmt.Errorf("save order: %w", err)
	}

	s.metrics.RecordOrderCreated()
	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"item_id":  order.ItemID,
		"qty":      order.Qty,
		"total":    domain.FormatMoney(order.Total),
	}).Info("order created")

	s.publish(ctx, order)
	return order, nil
}

// GetOrder возвращает заказ или domain.ErrOrderNotFound.
func (s *Service) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	if id <= 0 {
		return domain.Order{}, fmt.Errorf("order %d: %w", id, domain.ErrOrderNotFound)
	}
	return s.orders.Get(ctx, id)
}

// publish отправляет order.created. Заказ уже сохранён, поэтому ошибка только логируется.
func (s *Service) publish(ctx context.Context, order domain.Order) {
	if _, ok := s.publisher.(domain.NopPublisher); ok {
		return
	}
	if err := s.publisher.PublishOrderCreated(ctx, order); err != nil {
		s.metrics.RecordEventPublished(false)
		s.logger.WithError(err).WithField("order_id", order.ID).Error("failed to publish order event")
		return
	}
	s.metrics.RecordEventPublished(true)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrItemNotFound):
		return metrics.OutcomeNotFound
	case domain.IsUnreachable(err):
		return metrics.OutcomeUnreachable
	default:
		return "other"
	}
}
