package handler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/grocery-inventory/internal/core/domain"
	"github.com/rl1809/grocery-inventory/internal/core/service"
)

type GRPCHandler struct {
	shopService *service.ShopService
}

var _ ShopServer = (*GRPCHandler)(nil)

func NewGRPCHandler(shopService *service.ShopService) *GRPCHandler {
	return &GRPCHandler{shopService: shopService}
}

func (h *GRPCHandler) AddItem(ctx context.Context, req *AddItemRequest) (*ShopReply, error) {
	if req.Name == "" || req.Price.IsNegative() {
		return &ShopReply{Success: false, Message: "missing required fields"}, nil
	}
	item := domain.NewProduct(req.Name, req.Quantity, req.Price, req.ExpiresAt)
	if err := h.shopService.AddItem(ctx, req.RequestID, item, req.Location); err != nil {
		return failure(err), nil
	}

	return &ShopReply{Success: true, Message: "item added"}, nil
}

func (h *GRPCHandler) RemoveItem(ctx context.Context, req *RemoveItemRequest) (*ShopReply, error) {
	if err := h.shopService.RemoveItem(ctx, req.RequestID, req.Location); err != nil {
		return failure(err), nil
	}

	return &ShopReply{Success: true, Message: "item removed"}, nil
}

func (h *GRPCHandler) MoveItem(ctx context.Context, req *MoveItemRequest) (*ShopReply, error) {
	if err := h.shopService.MoveItem(ctx, req.RequestID, req.From, req.To); err != nil {
		return failure(err), nil
	}

	return &ShopReply{Success: true, Message: "item moved"}, nil
}

func (h *GRPCHandler) GetItem(ctx context.Context, req *GetItemRequest) (*ItemReply, error) {
	item, ok := h.shopService.GetItem(req.Location)
	if !ok {
		return &ItemReply{}, nil
	}
	return &ItemReply{Found: true, Item: &item}, nil
}

func (h *GRPCHandler) ItemsByName(ctx context.Context, req *ItemsByNameRequest) (*ItemsReply, error) {
	if req.Name == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}
	items, err := h.shopService.ItemsByName(req.Name)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &ItemsReply{Items: items}, nil
}

func failure(err error) *ShopReply {
	switch {
	case errors.Is(err, service.ErrDuplicateRequest):
		return &ShopReply{Success: false, Message: "duplicate request"}
	case errors.Is(err, domain.ErrMoveFailed),
		errors.Is(err, domain.ErrLocationNotFound),
		errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, domain.ErrCapacityExceeded):
		return &ShopReply{Success: false, Message: err.Error()}
	default:
		return &ShopReply{Success: false, Message: "internal error"}
	}
}

// LoggingInterceptor logs every unary call with its duration.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		if err != nil {
			logger.Error("gRPC request failed",
				zap.String("method", info.FullMethod),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
		} else {
			logger.Debug("gRPC request completed",
				zap.String("method", info.FullMethod),
				zap.Duration("duration", time.Since(start)),
			)
		}

		return resp, err
	}
}
