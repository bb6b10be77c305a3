package catalog

import (
	"context"
	"fmt"

	grpcprom "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	catalogv1 "github.com/vladislavdragonenkov/shop/proto/catalog/v1"
)

// GRPCFetcher делает одну попытку catalog.v1.CatalogService/GetItem.
type GRPCFetcher struct {
	client catalogv1.CatalogClient
	health healthpb.HealthClient
}

// NewGRPCFetcher создаёт fetcher поверх готового соединения.
func NewGRPCFetcher(conn grpc.ClientConnInterface) *GRPCFetcher {
	return &GRPCFetcher{
		client: catalogv1.NewCatalogClient(conn),
		health: healthpb.NewHealthClient(conn),
	}
}

// DialCatalog открывает клиентское соединение к каталогу. clientMetrics может быть nil.
func DialCatalog(target string, clientMetrics *grpcprom.ClientMetrics, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if clientMetrics != nil {
		dialOpts = append(dialOpts, grpc.WithChainUnaryInterceptor(clientMetrics.UnaryClientInterceptor()))
	}
	dialOpts = append(dialOpts, opts...)

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial catalog %s: %w", target, err)
	}
	return conn, nil
}

// FetchItem реализует domain.CatalogFetcher.
func (f *GRPCFetcher) FetchItem(ctx context.Context, id int64) (domain.Item, error) {
	resp, err := f.client.GetItem(ctx, wrapperspb.Int64(id))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.Item{}, fmt.Errorf("item %d: %w", id, domain.ErrItemNotFound)
		}
		return domain.Item{}, fmt.Errorf("grpc get item %d: %w", id, err)
	}

	item, err := catalogv1.ItemFromStruct(resp)
	if err != nil {
		return domain.Item{}, fmt.Errorf("decode item %d: %w", id, err)
	}
	return toDomainItem(id, item.ID, item.Name, item.Price)
}

// Ping опрашивает grpc.health.v1 сервиса каталога.
func (f *GRPCFetcher) Ping(ctx context.Context) error {
	resp, err := f.health.Check(ctx, &healthpb.HealthCheckRequest{Service: catalogv1.ServiceName})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("catalog grpc status %s", resp.GetStatus())
	}
	return nil
}

var _ domain.CatalogFetcher = (*GRPCFetcher)(nil)
