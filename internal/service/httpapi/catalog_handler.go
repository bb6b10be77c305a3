package httpapi

import (
	"context"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// CatalogService — операции каталога, нужные HTTP-слою.
type CatalogService interface {
	CreateItem(ctx context.Context, draft domain.ItemDraft) (domain.Item, error)
	GetItem(ctx context.Context, id int64) (domain.Item, error)
	ListItems(ctx context.Context) ([]domain.Item, error)
}

// CatalogHandler обслуживает /items.
type CatalogHandler struct {
	items  CatalogService
	logger *log.Entry
}

// NewCatalogHandler создаёт обработчики каталога.
func NewCatalogHandler(items CatalogService, logger *log.Entry) *CatalogHandler {
	if logger == nil {
		logger = log.WithField("component", "catalog-http")
	}
	return &CatalogHandler{items: items, logger: logger}
}

// ListItems отдаёт все товары в порядке добавления.
func (h *CatalogHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.items.ListItems(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("list items failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, mapItems(items))
}

// GetItem отдаёт товар по id.
func (h *CatalogHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.items.GetItem(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, mapItem(item))
	case errors.Is(err, domain.ErrItemNotFound), domain.IsValidation(err):
		// Неположительный id в каталоге просто отсутствует.
		writeError(w, http.StatusNotFound, "Item not found")
	default:
		h.logger.WithError(err).WithField("item_id", id).Error("get item failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// CreateItem добавляет товар и отвечает 201.
func (h *CatalogHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if req.Price == nil {
		writeError(w, http.StatusUnprocessableEntity, "price: is required")
		return
	}

	item, err := h.items.CreateItem(r.Context(), domain.ItemDraft{Name: req.Name, Price: *req.Price})
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, mapItem(item))
	case domain.IsValidation(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.WithError(err).Error("create item failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
