package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const maxItemPayloadBytes = 1 << 20

// HTTPFetcher делает одну попытку GET {base}/items/{id}.
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFetcher создаёт fetcher. Таймауты задаёт Resolver через контекст,
// поэтому у клиента по умолчанию таймаута нет.
func NewHTTPFetcher(baseURL string, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

type itemPayload struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// FetchItem реализует domain.CatalogFetcher.
func (f *HTTPFetcher) FetchItem(ctx context.Context, id int64) (domain.Item, error) {
	url := fmt.Sprintf("%s/items/%d", f.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Item{}, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.Item{}, fmt.Errorf("get item %d: %w", id, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxItemPayloadBytes))
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.Item{}, fmt.Errorf("item %d: %w", id, domain.ErrItemNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return domain.Item{}, fmt.Errorf("catalog responded with status %d", resp.StatusCode)
	}

	var payload itemPayload
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxItemPayloadBytes)).Decode(&payload); err != nil {
		return domain.Item{}, fmt.Errorf("decode item %d: %w", id, err)
	}

	return toDomainItem(id, payload.ID, payload.Name, payload.Price)
}

// Ping проверяет доступность каталога через GET {base}/health.
func (f *HTTPFetcher) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog health status %d", resp.StatusCode)
	}
	return nil
}

// toDomainItem проверяет ответ каталога. Некорректный товар считается
// временной ошибкой и не оборачивается в ErrValidation.
func toDomainItem(requested, id int64, name string, price decimal.Decimal) (domain.Item, error) {
	item := domain.Item{ID: id, Name: name, Price: price}
	if id != requested {
		return domain.Item{}, fmt.Errorf("malformed item payload: requested id %d, got %d", requested, id)
	}
	if err := item.Validate(); err != nil {
		return domain.Item{}, fmt.Errorf("malformed item payload: %v", err)
	}
	return item, nil
}

var _ domain.CatalogFetcher = (*HTTPFetcher)(nil)
