package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order — зафиксированный заказ. После сохранения не изменяется и не удаляется.
type Order struct {
	ID     int64
	ItemID int64
	Qty    int64
	// UnitPrice — цена товара, полученная из каталога в момент создания.
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
	CreatedAt time.Time
}

// OrderDraft — данные заказа до присвоения идентификатора хранилищем.
type OrderDraft struct {
	ItemID    int64
	Qty       int64
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
	CreatedAt time.Time
}

// Build собирает заказ с выданным идентификатором.
func (d OrderDraft) Build(id int64) Order {
	return Order{
		ID:        id,
		ItemID:    d.ItemID,
		Qty:       d.Qty,
		UnitPrice: d.UnitPrice,
		Total:     d.Total,
		CreatedAt: d.CreatedAt,
	}
}

// CalculateTotal считает сумму заказа: price * qty с банковским округлением
// до двух знаков (round-half-even).
func CalculateTotal(price decimal.Decimal, qty int64) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(qty)).RoundBank(MoneyScale)
}

// ValidateOrderRequest проверяет входные параметры создания заказа.
func ValidateOrderRequest(itemID, qty int64) error {
	if itemID <= 0 {
		return NewValidationError("item_id", "must be a positive integer")
	}
	if qty <= 0 {
		return NewValidationError("qty", "must be a positive integer")
	}
	return nil
}
