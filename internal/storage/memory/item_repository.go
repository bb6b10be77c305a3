package memory

import (
	"context"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// itemRepositoryInMemory хранит товары каталога в SequencedStore.
type itemRepositoryInMemory struct {
	store *SequencedStore[domain.Item]
}

// NewItemRepository возвращает in-memory репозиторий каталога.
func NewItemRepository() domain.ItemRepository {
	return &itemRepositoryInMemory{store: NewSequencedStore[domain.Item]()}
}

// Create валидирует черновик и сохраняет товар со следующим id.
func (r *itemRepositoryInMemory) Create(_ context.Context, draft domain.ItemDraft) (domain.Item, error) {
	if err := draft.Validate(); err != nil {
		return domain.Item{}, err
	}
	item := r.store.Insert(func(id int64) domain.Item {
		return domain.Item{ID: id, Name: draft.Name, Price: draft.Price}
	})
	return item, nil
}

// Get возвращает товар или ErrItemNotFound.
func (r *itemRepositoryInMemory) Get(_ context.Context, id int64) (domain.Item, error) {
	item, ok := r.store.Get(id)
	if !ok {
		return domain.Item{}, domain.ErrItemNotFound
	}
	return item, nil
}

// List возвращает снимок каталога.
func (r *itemRepositoryInMemory) List(_ context.Context) ([]domain.Item, error) {
	return r.store.List(), nil
}

var _ domain.ItemRepository = (*itemRepositoryInMemory)(nil)
