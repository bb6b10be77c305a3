// Package catalogv1 описывает gRPC-контракт сервиса каталога.
//
// Контракт собран вручную поверх well-known типов protobuf:
// запрос — google.protobuf.Int64Value (id товара), ответ —
// google.protobuf.Struct с полями id, name, price. Id и цена передаются
// строками: число в Struct — это double, и int64 выше 2^53 в нём не помещается.
// Кодогенерация для такого контракта не нужна.
package catalogv1

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// ServiceName — полное имя gRPC-сервиса каталога.
	ServiceName = "catalog.v1.CatalogService"
	// GetItemFullMethod — полное имя метода GetItem.
	GetItemFullMethod = "/" + ServiceName + "/GetItem"

	fieldID    = "id"
	fieldName  = "name"
	fieldPrice = "price"
)

// Item — транспортное представление товара.
type Item struct {
	ID    int64
	Name  string
	Price decimal.Decimal
}

// CatalogServer — серверная часть контракта.
type CatalogServer interface {
	GetItem(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error)
}

// UnimplementedCatalogServer возвращает codes.Unimplemented для всех методов.
type UnimplementedCatalogServer struct{}

// GetItem реализует CatalogServer.
func (UnimplementedCatalogServer) GetItem(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetItem not implemented")
}

// CatalogClient — клиентская часть контракта.
type CatalogClient interface {
	GetItem(ctx context.Context, req *wrapperspb.Int64Value, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type catalogClient struct {
	cc grpc.ClientConnInterface
}

// NewCatalogClient создаёт клиент поверх соединения.
func NewCatalogClient(cc grpc.ClientConnInterface) CatalogClient {
	return &catalogClient{cc: cc}
}

func (c *catalogClient) GetItem(ctx context.Context, req *wrapperspb.Int64Value, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetItemFullMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RegisterCatalogServer регистрирует реализацию на gRPC-сервере.
func RegisterCatalogServer(s grpc.ServiceRegistrar, srv CatalogServer) {
	s.RegisterService(&CatalogServiceDesc, srv)
}

func getItemHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.Int64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServer).GetItem(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GetItemFullMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CatalogServer).GetItem(ctx, req.(*wrapperspb.Int64Value))
	}
	return interceptor(ctx, in, info, handler)
}

// CatalogServiceDesc — дескриптор сервиса для grpc.ServiceRegistrar.
var CatalogServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetItem",
			Handler:    getItemHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "catalog/v1/catalog.proto",
}

// ItemToStruct кодирует товар в google.protobuf.Struct.
func ItemToStruct(item Item) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		fieldID:    strconv.FormatInt(item.ID, 10),
		fieldName:  item.Name,
		fieldPrice: item.Price.StringFixedBank(2),
	})
}

// ItemFromStruct декодирует товар; отсутствующие или битые поля — ошибка.
func ItemFromStruct(s *structpb.Struct) (Item, error) {
	if s == nil {
		return Item{}, fmt.Errorf("empty item payload")
	}
	fields := s.GetFields()

	idValue, ok := fields[fieldID]
	if !ok {
		return Item{}, fmt.Errorf("item payload: missing %q", fieldID)
	}
	if _, isString := idValue.GetKind().(*structpb.Value_StringValue); !isString {
		return Item{}, fmt.Errorf("item payload: %q must be a decimal string", fieldID)
	}
	id, err := strconv.ParseInt(idValue.GetStringValue(), 10, 64)
	if err != nil {
		return Item{}, fmt.Errorf("item payload: parse %q: %w", fieldID, err)
	}

	nameValue, ok := fields[fieldName]
	if !ok {
		return Item{}, fmt.Errorf("item payload: missing %q", fieldName)
	}

	priceValue, ok := fields[fieldPrice]
	if !ok {
		return Item{}, fmt.Errorf("item payload: missing %q", fieldPrice)
	}
	price, err := decimal.NewFromString(priceValue.GetStringValue())
	if err != nil {
		return Item{}, fmt.Errorf("item payload: parse price: %w", err)
	}

	return Item{
		ID:    id,
		Name:  nameValue.GetStringValue(),
		Price: price,
	}, nil
}
