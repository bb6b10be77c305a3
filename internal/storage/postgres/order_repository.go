package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) Create(ctx context.Context, draft domain.OrderDraft) (domain.Order, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	// TIMESTAMPTZ хранит микросекунды: ответ Create должен совпадать с Get.
	draft.CreatedAt = draft.CreatedAt.UTC().Truncate(time.Microsecond)

	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO orders (item_id, qty, unit_price, total, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`,
		draft.ItemID, draft.Qty,
		domain.FormatMoney(draft.UnitPrice), domain.FormatMoney(draft.Total),
		draft.CreatedAt,
	).Scan(&id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}

	return draft.Build(id), nil
}

func (r *orderRepository) Get(ctx context.Context, id int64) (domain.Order, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var order domain.Order
	err := r.db.QueryRowContext(ctx, `
		SELECT id, item_id, qty, unit_price::text, total::text, created_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.ItemID, &order.Qty, &order.UnitPrice, &order.Total, &order.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("order %d: %w", id, domain.ErrOrderNotFound)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	order.CreatedAt = order.CreatedAt.UTC()
	return order, nil
}
