package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type itemRepository struct {
	db *sql.DB
}

// NewItemRepository создаёт PostgreSQL-реализацию ItemRepository.
// Идентификаторы выдаёт BIGSERIAL: они уникальны и возрастают, но откат
// транзакции может оставить пропуск.
func NewItemRepository(store *Store) domain.ItemRepository {
	return &itemRepository{db: store.DB()}
}

func (r *itemRepository) Create(ctx context.Context, draft domain.ItemDraft) (domain.Item, error) {
	if err := draft.Validate(); err != nil {
		return domain.Item{}, err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	name := strings.TrimSpace(draft.Name)
	var id int64
	if err := r.db.QueryRowContext(ctx, `
		INSERT INTO items (name, price)
		VALUES ($1, $2)
		RETURNING id
	`, name, domain.FormatMoney(draft.Price)).Scan(&id); err != nil {
		return domain.Item{}, fmt.Errorf("insert item: %w", err)
	}

	return domain.Item{ID: id, Name: name, Price: draft.Price}, nil
}

func (r *itemRepository) Get(ctx context.Context, id int64) (domain.Item, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var item domain.Item
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, price::text
		FROM items
		WHERE id = $1
	`, id).Scan(&item.ID, &item.Name, &item.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Item{}, fmt.Errorf("item %d: %w", id, domain.ErrItemNotFound)
	}
	if err != nil {
		return domain.Item{}, fmt.Errorf("select item: %w", err)
	}
	return item, nil
}

func (r *itemRepository) List(ctx context.Context) ([]domain.Item, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, price::text
		FROM items
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Item, 0)
	for rows.Next() {
		var item domain.Item
		if err := rows.Scan(&item.ID, &item.Name, &item.Price); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}
