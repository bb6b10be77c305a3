package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation — некорректный ввод вызывающей стороны; удалённых вызовов не было.
	ErrValidation = errors.New("validation failed")
	// ErrItemNotFound — товара нет в каталоге. Постоянная ошибка, повтор не поможет.
	ErrItemNotFound = errors.New("item not found")
	// ErrCatalogUnreachable — каталог не ответил за отведённое число попыток.
	ErrCatalogUnreachable = errors.New("catalog unreachable")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
)

// ValidationError описывает конкретное нарушенное поле.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is позволяет проверять ошибку через errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError создаёт ошибку валидации для поля.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// UnreachableError — каталог недоступен после исчерпания попыток.
// Cause хранит последнюю наблюдавшуюся причину для диагностики.
type UnreachableError struct {
	Attempts int
	Cause    error
}

func (e *UnreachableError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("catalog unreachable after %d attempts", e.Attempts)
	}
	return fmt.Sprintf("catalog unreachable after %d attempts: %v", e.Attempts, e.Cause)
}

func (e *UnreachableError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrCatalogUnreachable}
	}
	return []error{ErrCatalogUnreachable, e.Cause}
}

// IsValidation проверяет, является ли ошибка ошибкой валидации.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound проверяет, что товар или заказ отсутствует.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrItemNotFound) || errors.Is(err, ErrOrderNotFound)
}

// IsUnreachable проверяет, что зависимость недоступна.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrCatalogUnreachable)
}
