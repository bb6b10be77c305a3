package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	// MaxItemNameLength — максимальная длина названия товара в символах.
	MaxItemNameLength = 80
	// MoneyScale — количество знаков после запятой для цен и сумм.
	MoneyScale = 2
	// MaxPriceDigits — максимум значащих цифр в цене товара.
	MaxPriceDigits = 10
	// MaxTotalDigits — максимум значащих цифр в сумме заказа.
	MaxTotalDigits = 12
)

// Item — товар каталога с актуальной ценой.
type Item struct {
	ID    int64
	Name  string
	Price decimal.Decimal
}

// ItemDraft — данные для создания товара до присвоения идентификатора.
type ItemDraft struct {
	Name  string
	Price decimal.Decimal
}

// Validate проверяет инварианты черновика товара.
func (d ItemDraft) Validate() error {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return NewValidationError("name", "must not be empty")
	}
	if utf8.RuneCountInString(d.Name) > MaxItemNameLength {
		return NewValidationError("name", "must be at most 80 characters")
	}
	return ValidateMoney("price", d.Price, MaxPriceDigits)
}

// Validate проверяет инварианты товара, полученного от каталога.
func (i Item) Validate() error {
	if i.ID <= 0 {
		return NewValidationError("id", "must be positive")
	}
	return ItemDraft{Name: i.Name, Price: i.Price}.Validate()
}

// ValidateMoney проверяет, что сумма положительна, имеет не более двух знаков
// после запятой и укладывается в maxDigits значащих цифр.
func ValidateMoney(field string, amount decimal.Decimal, maxDigits int) error {
	if !amount.IsPositive() {
		return NewValidationError(field, "must be greater than zero")
	}
	if !amount.Equal(amount.Round(MoneyScale)) {
		return NewValidationError(field, "must have at most 2 decimal places")
	}
	// Целая часть: maxDigits-2 цифр, остальное приходится на копейки.
	limit := decimal.New(1, int32(maxDigits-MoneyScale))
	if amount.GreaterThanOrEqual(limit) {
		return NewValidationError(field, "has too many digits")
	}
	return nil
}

// FormatMoney рендерит сумму ровно с двумя знаками после запятой.
func FormatMoney(amount decimal.Decimal) string {
	return amount.StringFixedBank(MoneyScale)
}
