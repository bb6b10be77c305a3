package domain

import "context"

// ItemRepository описывает хранилище товаров каталога.
type ItemRepository interface {
	// Create присваивает следующий идентификатор и сохраняет товар.
	Create(ctx context.Context, draft ItemDraft) (Item, error)
	// Get возвращает товар или ErrItemNotFound.
	Get(ctx context.Context, id int64) (Item, error)
	// List возвращает снимок товаров в порядке добавления.
	List(ctx context.Context) ([]Item, error)
}

// OrderRepository описывает хранилище заказов.
type OrderRepository interface {
	// Create присваивает следующий идентификатор и сохраняет заказ.
	Create(ctx context.Context, draft OrderDraft) (Order, error)
	// Get возвращает заказ или ErrOrderNotFound.
	Get(ctx context.Context, id int64) (Order, error)
}

// CatalogFetcher выполняет ровно одну попытку получить товар из каталога.
// Отсутствие товара сообщается через ErrItemNotFound, всё остальное считается
// временной ошибкой.
type CatalogFetcher interface {
	FetchItem(ctx context.Context, id int64) (Item, error)
}

// ItemResolver разрешает идентификатор товара в товар с ценой.
type ItemResolver interface {
	// Resolve возвращает товар, ErrItemNotFound или *UnreachableError.
	Resolve(ctx context.Context, id int64) (Item, error)
}

// EventPublisher публикует доменные события наружу.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, order Order) error
}

// NopPublisher ничего не публикует; используется, когда брокер не настроен.
type NopPublisher struct{}

// PublishOrderCreated реализует EventPublisher.
func (NopPublisher) PublishOrderCreated(context.Context, Order) error { return nil }
