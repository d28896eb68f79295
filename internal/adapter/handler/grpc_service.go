package handler

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"

	"github.com/rl1809/grocery-inventory/internal/core/domain"
)

const shopServiceName = "grocery.Shop"

type AddItemRequest struct {
	RequestID string          `json:"request_id"`
	Location  domain.Location `json:"location"`
	Name      string          `json:"name"`
	Quantity  uint32          `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	ExpiresAt time.Time       `json:"expires_at"`
}

type RemoveItemRequest struct {
	RequestID string          `json:"request_id"`
	Location  domain.Location `json:"location"`
}

type MoveItemRequest struct {
	RequestID string          `json:"request_id"`
	From      domain.Location `json:"from"`
	To        domain.Location `json:"to"`
}

type GetItemRequest struct {
	Location domain.Location `json:"location"`
}

type ItemsByNameRequest struct {
	Name string `json:"name"`
}

type ShopReply struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ItemReply struct {
	Found bool            `json:"found"`
	Item  *domain.Product `json:"item,omitempty"`
}

type ItemsReply struct {
	Items []domain.Placement[domain.Product] `json:"items"`
}

// ShopServer is the server API for the grocery.Shop service.
type ShopServer interface {
	AddItem(context.Context, *AddItemRequest) (*ShopReply, error)
	RemoveItem(context.Context, *RemoveItemRequest) (*ShopReply, error)
	MoveItem(context.Context, *MoveItemRequest) (*ShopReply, error)
	GetItem(context.Context, *GetItemRequest) (*ItemReply, error)
	ItemsByName(context.Context, *ItemsByNameRequest) (*ItemsReply, error)
}

var ShopServiceDesc = grpc.ServiceDesc{
	ServiceName: shopServiceName,
	HandlerType: (*ShopServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AddItem", Handler: unary("AddItem", ShopServer.AddItem)},
		{MethodName: "RemoveItem", Handler: unary("RemoveItem", ShopServer.RemoveItem)},
		{MethodName: "MoveItem", Handler: unary("MoveItem", ShopServer.MoveItem)},
		{MethodName: "GetItem", Handler: unary("GetItem", ShopServer.GetItem)},
		{MethodName: "ItemsByName", Handler: unary("ItemsByName", ShopServer.ItemsByName)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "grocery/shop.json",
}

func RegisterShopServer(s grpc.ServiceRegistrar, srv ShopServer) {
	s.RegisterService(&ShopServiceDesc, srv)
}

func unary[Req, Resp any](method string, call func(ShopServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	fullMethod := "/" + shopServiceName + "/" + method
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ShopServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(ShopServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ShopClient calls grocery.Shop over a connection using the JSON codec.
type ShopClient struct {
	cc grpc.ClientConnInterface
}

func NewShopClient(cc grpc.ClientConnInterface) *ShopClient {
	return &ShopClient{cc: cc}
}

func (c *ShopClient) AddItem(ctx context.Context, in *AddItemRequest, opts ...grpc.CallOption) (*ShopReply, error) {
	out := new(ShopReply)
	return out, c.invoke(ctx, "AddItem", in, out, opts)
}

func (c *ShopClient) RemoveItem(ctx context.Context, in *RemoveItemRequest, opts ...grpc.CallOption) (*ShopReply, error) {
	out := new(ShopReply)
	return out, c.invoke(ctx, "RemoveItem", in, out, opts)
}

func (c *ShopClient) MoveItem(ctx context.Context, in *MoveItemRequest, opts ...grpc.CallOption) (*ShopReply, error) {
	out := new(ShopReply)
	return out, c.invoke(ctx, "MoveItem", in, out, opts)
}

func (c *ShopClient) GetItem(ctx context.Context, in *GetItemRequest, opts ...grpc.CallOption) (*ItemReply, error) {
	out := new(ItemReply)
	return out, c.invoke(ctx, "GetItem", in, out, opts)
}

func (c *ShopClient) ItemsByName(ctx context.Context, in *ItemsByNameRequest, opts ...grpc.CallOption) (*ItemsReply, error) {
	out := new(ItemsReply)
	return out, c.invoke(ctx, "ItemsByName", in, out, opts)
}

func (c *ShopClient) invoke(ctx context.Context, method string, in, out interface{}, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+shopServiceName+"/"+method, in, out, opts...)
}
