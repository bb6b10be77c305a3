package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Денежные суммы передаются строками с двумя знаками ("199.00"), чтобы не терять точность.

// ItemResponse — представление товара каталога.
type ItemResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

// CreateItemRequest — тело POST /items. Цена принимается и строкой, и числом.
type CreateItemRequest struct {
	Name  string           `json:"name"`
	Price *decimal.Decimal `json:"price"`
}

// CreateOrderRequest — тело POST /orders.
type CreateOrderRequest struct {
	ItemID int64 `json:"item_id"`
	Qty    int64 `json:"qty"`
}

// OrderResponse — представление заказа.
type OrderResponse struct {
	ID        int64     `json:"id"`
	ItemID    int64     `json:"item_id"`
	Qty       int64     `json:"qty"`
	UnitPrice string    `json:"unit_price"`
	Total     string    `json:"total"`
	CreatedAt time.Time `json:"created_at"`
}

func mapItem(item domain.Item) ItemResponse {
	return ItemResponse{
		ID:    item.ID,
		Name:  item.Name,
		Price: domain.FormatMoney(item.Price),
	}
}

func mapItems(items []domain.Item) []ItemResponse {
	out := make([]ItemResponse, len(items))
	for i, item := range items {
		out[i] = mapItem(item)
	}
	return out
}

func mapOrder(order domain.Order) OrderResponse {
	return OrderResponse{
		ID:        order.ID,
		ItemID:    order.ItemID,
		Qty:       order.Qty,
		UnitPrice: domain.FormatMoney(order.UnitPrice),
		Total:     domain.FormatMoney(order.Total),
		CreatedAt: order.CreatedAt,
	}
}
