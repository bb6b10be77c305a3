package httpapi

import (
	"context"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/service/orders"
)

// OrderService — операции сервиса заказов, нужные HTTP-слою.
type OrderService interface {
	CreateOrder(ctx context.Context, req orders.CreateOrderRequest) (domain.Order, error)
	GetOrder(ctx context.Context, id int64) (domain.Order, error)
}

// OrderHandler обслуживает /orders.
type OrderHandler struct {
	orders OrderService
	logger *log.Entry
}

// NewOrderHandler создаёт обработчики заказов.
func NewOrderHandler(svc OrderService, logger *log.Entry) *OrderHandler {
	if logger == nil {
		logger = log.WithField("component", "orders-http")
	}
	return &OrderHandler{orders: svc, logger: logger}
}

// CreateOrder создаёт заказ и отвечает 201.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), orders.CreateOrderRequest{
		ItemID: req.ItemID,
		Qty:    req.Qty,
	})
	if err != nil {
		status, detail := h.mapCreateError(err)
		writeError(w, status, detail)
		return
	}
	writeJSON(w, http.StatusCreated, mapOrder(order))
}

// GetOrder отдаёт заказ по id.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.orders.GetOrder(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, mapOrder(order))
	case errors.Is(err, domain.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "Order not found")
	default:
		h.logger.WithError(err).WithField("order_id", id).Error("get order failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// mapCreateError переводит ошибку сценария в HTTP-ответ.
// Unreachable проверяется первым: его причина может оказаться чем угодно.
func (h *OrderHandler) mapCreateError(err error) (int, string) {
	var unreachable *domain.UnreachableError
	switch {
	case errors.As(err, &unreachable):
		return http.StatusBadGateway, "Catalog lookup failed: " + causeText(unreachable)
	case domain.IsUnreachable(err):
		return http.StatusBadGateway, "Catalog lookup failed: " + err.Error()
	case errors.Is(err, domain.ErrItemNotFound):
		return http.StatusNotFound, "Item not found in catalog"
	case domain.IsValidation(err):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		h.logger.WithError(err).Error("create order failed")
		return http.StatusInternalServerError, "Internal server error"
	}
}

func causeText(err *domain.UnreachableError) string {
	if err.Cause == nil {
		return err.Error()
	}
	return err.Cause.Error()
}
