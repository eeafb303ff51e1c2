package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "standingorders.v1.StandingOrderService"

// Method names of the standing order service
const (
	MethodExecuteDueNow     = "ExecuteDueNow"
	MethodCreateOrder       = "CreateOrder"
	MethodGetOrder          = "GetOrder"
	MethodUpdateOrder       = "UpdateOrder"
	MethodCancelOrder       = "CancelOrder"
	MethodListOrders        = "ListOrders"
	MethodListLedger        = "ListLedger"
	MethodListNotifications = "ListNotifications"
	MethodMarkRead          = "MarkNotificationRead"
	MethodMarkAllRead       = "MarkAllNotificationsRead"
)

// FullMethod returns the /service/method path of a method
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// StandingOrderServiceServer is the server API of the standing order service.
// Messages are well-known protobuf types so no generated code is needed.
type StandingOrderServiceServer interface {
	// ExecuteDueNow runs every order due on the given date (YYYY-MM-DD), or today when empty
	ExecuteDueNow(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	CreateOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetOrder(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	UpdateOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	// CancelOrder returns true if an active order was deactivated
	CancelOrder(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	ListOrders(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	ListLedger(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListNotifications(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	MarkNotificationRead(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	// MarkAllNotificationsRead returns the number of notifications updated
	MarkAllNotificationsRead(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.Int64Value, error)
}

// RegisterStandingOrderServiceServer registers srv on s
func RegisterStandingOrderServiceServer(s grpc.ServiceRegistrar, srv StandingOrderServiceServer) {
	s.RegisterService(&StandingOrderServiceDesc, srv)
}

// StandingOrderServiceDesc describes the standing order service for grpc.Server
var StandingOrderServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StandingOrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodExecuteDueNow, newString, func(s StandingOrderServiceServer, ctx context.Context, req proto.Message) (proto.Message, error) {
			return s.ExecuteDueNow(ctx, req.(*wrapperspb.StringValue))
		}),
		unary(MethodCreateOrder, newStruct, func(s StandingOrderServiceServer, ctx context.Context, req proto.Message) (proto.Message, error) {
			return s.CreateOrder(ctx, req.(*structpb.Struct))
		}),
		unary(MethodGetOrder, newString, func(s StandingOrderServiceServer, ctx context.Context, req proto.Message) (proto.Message, error) {
			return s.GetOrder(ctx, req.(*wrapperspb.StringValue))
		}),
		unary(MethodUpdateOrder, newStruct, func(s StandingOrderServiceServer, ctx context.Context, req proto.Message) (proto.Message, error) {
			return s.UpdateOrder(ctx, req.(*structpb.Struct))
		}),
		unary(MethodCancelOrder, newString, func(s StandingOrderServiceServer, ctx context.Context, req proto.Message) (proto.Message, error) {
			return s.CancelOrder(ctx, req.(*wrapperspb.StringValue))
		}),
		unary(MethodListOrders, newString, func(s StandingOrderServiceServer, ctx context.Context, req proto.Message) (proto.Message, error) {
			return s.ListOrders(ctx, req.(*wrapperspb.StringValue))
		}),
		unary(MethodListLedger, newStruct, func(s StandingOrderServiceServer, ctx context.Context, req proto.Message) (proto.Message, error) {
			return s.ListLedger(ctx, req.(*structpb.Struct))
		}),
		unary(MethodListNotifications, newString, func(s StandingOrderServiceServer, ctx context.Context, req proto.Message) (proto.Message, error) {
			return s.ListNotifications(ctx, req.(*wrapperspb.StringValue))
		}),
		unary(MethodMarkRead, newString, func(s StandingOrderServiceServer, ctx context.Context, req proto.Message) (proto.Message, error) {
			return s.MarkNotificationRead(ctx, req.(*wrapperspb.StringValue))
		}),
		unary(MethodMarkAllRead, newString, func(s StandingOrderServiceServer, ctx context.Context, req proto.Message) (proto.Message, error) {
			return s.MarkAllNotificationsRead(ctx, req.(*wrapperspb.StringValue))
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "standingorders/v1/service.proto",
}

func newString() proto.Message { return new(wrapperspb.StringValue) }
func newStruct() proto.Message { return new(structpb.Struct) }

type call func(s StandingOrderServiceServer, ctx context.Context, req proto.Message) (proto.Message, error)

// unary builds the method descriptor the way generated code does: decode, then run through the interceptor chain
func unary(method string, newReq func() proto.Message, fn call) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}

			server := srv.(StandingOrderServiceServer)
			if interceptor == nil {
				return fn(server, ctx, in)
			}

			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(method),
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return fn(server, ctx, req.(proto.Message))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
