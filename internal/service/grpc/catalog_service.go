package grpcsvc

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	catalogv1 "github.com/vladislavdragonenkov/shop/proto/catalog/v1"
)

// ItemReader — часть сервиса каталога, нужная gRPC-слою.
type ItemReader interface {
	GetItem(ctx context.Context, id int64) (domain.Item, error)
}

// CatalogService реализует gRPC API каталога поверх сервиса товаров.
type CatalogService struct {
	catalogv1.UnimplementedCatalogServer

	items  ItemReader
	logger *log.Entry
}

// NewCatalogService конструирует сервис с зависимостями.
func NewCatalogService(items ItemReader, logger *log.Entry) *CatalogService {
	if logger == nil {
		logger = log.New().WithField("component", "catalog-grpc")
	}
	return &CatalogService{items: items, logger: logger}
}

// GetItem возвращает товар или codes.NotFound.
func (s *CatalogService) GetItem(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	if req == nil || req.GetValue() <= 0 {
		return nil, status.Error(codes.InvalidArgument, "item id must be a positive integer")
	}

	item, err := s.items.GetItem(ctx, req.GetValue())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrItemNotFound):
			return nil, status.Error(codes.NotFound, "item not found")
		case domain.IsValidation(err):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		default:
			s.logger.WithError(err).WithField("item_id", req.GetValue()).Error("failed to load item")
			return nil, status.Error(codes.Internal, "failed to load item")
		}
	}

	payload, err := catalogv1.ItemToStruct(catalogv1.Item{ID: item.ID, Name: item.Name, Price: item.Price})
	if err != nil {
		s.logger.WithError(err).Error("failed to encode item")
		return nil, status.Error(codes.Internal, "failed to encode item")
	}
	return payload, nil
}

var _ catalogv1.CatalogServer = (*CatalogService)(nil)
