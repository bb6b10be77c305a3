package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventTypeOrderCreated — тип события о созданном заказе.
const EventTypeOrderCreated = "order.created"

// OrderCreatedEvent — полезная нагрузка события order.created.
type OrderCreatedEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	OrderID   int64     `json:"order_id"`
	ItemID    int64     `json:"item_id"`
	Qty       int64     `json:"qty"`
	UnitPrice string    `json:"unit_price"`
	Total     string    `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

// NewOrderCreatedEvent формирует событие по сохранённому заказу.
func NewOrderCreatedEvent(order Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		EventID:   uuid.NewString(),
		EventType: EventTypeOrderCreated,
		OrderID:   order.ID,
		ItemID:    order.ItemID,
		Qty:       order.Qty,
		UnitPrice: FormatMoney(order.UnitPrice),
		Total:     FormatMoney(order.Total),
		Timestamp: time.Now().UTC(),
	}
}
