package memory

import (
	"context"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// OrderRepository — in-memory хранилище заказов поверх SequencedStore.
type OrderRepository struct {
	store *SequencedStore[domain.Order]
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{store: NewSequencedStore[domain.Order]()}
}

// Create сохраняет заказ под следующим идентификатором.
func (r *OrderRepository) Create(_ context.Context, draft domain.OrderDraft) (domain.Order, error) {
	return r.store.Insert(draft.Build), nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *OrderRepository) Get(_ context.Context, id int64) (domain.Order, error) {
	order, ok := r.store.Get(id)
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

// LastID возвращает последний выданный идентификатор заказа.
func (r *OrderRepository) LastID() int64 {
	return r.store.LastID()
}

// Len возвращает количество сохранённых заказов.
func (r *OrderRepository) Len() int {
	return r.store.Len()
}

var _ domain.OrderRepository = (*OrderRepository)(nil)
