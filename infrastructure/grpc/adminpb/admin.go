// Package adminpb describes the operator service. Requests and responses reuse
// the protobuf well-known types, so no generated message code is needed.
package adminpb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "gymchat.admin.v1.AdminService"

const (
	BroadcastSystemNotificationFullMethodName = "/" + ServiceName + "/BroadcastSystemNotification"
	PushToRoleFullMethodName                  = "/" + ServiceName + "/PushToRole"
	ExpirySweepFullMethodName                 = "/" + ServiceName + "/ExpirySweep"
	PresenceFullMethodName                    = "/" + ServiceName + "/Presence"
	UnreadCountFullMethodName                 = "/" + ServiceName + "/UnreadCount"
)

// AdminServiceServer is implemented by the gRPC admin server.
type AdminServiceServer interface {
	BroadcastSystemNotification(context.Context, *structpb.Struct) (*wrapperspb.Int64Value, error)
	PushToRole(context.Context, *structpb.Struct) (*wrapperspb.Int64Value, error)
	ExpirySweep(context.Context, *emptypb.Empty) (*wrapperspb.Int64Value, error)
	Presence(context.Context, *wrapperspb.StringValue) (*wrapperspb.Int64Value, error)
	UnreadCount(context.Context, *wrapperspb.StringValue) (*wrapperspb.Int64Value, error)
}

func RegisterAdminServiceServer(s grpc.ServiceRegistrar, srv AdminServiceServer) {
	s.RegisterService(&AdminServiceDesc, srv)
}

var AdminServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AdminServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "BroadcastSystemNotification", Handler: unaryHandler(BroadcastSystemNotificationFullMethodName, AdminServiceServer.BroadcastSystemNotification)},
		{MethodName: "PushToRole", Handler: unaryHandler(PushToRoleFullMethodName, AdminServiceServer.PushToRole)},
		{MethodName: "ExpirySweep", Handler: unaryHandler(ExpirySweepFullMethodName, AdminServiceServer.ExpirySweep)},
		{MethodName: "Presence", Handler: unaryHandler(PresenceFullMethodName, AdminServiceServer.Presence)},
		{MethodName: "UnreadCount", Handler: unaryHandler(UnreadCountFullMethodName, AdminServiceServer.UnreadCount)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gymchat/admin/v1/admin.proto",
}

func unaryHandler[Req any](fullMethod string,
	call func(AdminServiceServer, context.Context, *Req) (*wrapperspb.Int64Value, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AdminServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AdminServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AdminServiceClient is the client side of the operator service.
type AdminServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewAdminServiceClient(cc grpc.ClientConnInterface) *AdminServiceClient {
	return &AdminServiceClient{cc: cc}
}

func (c *AdminServiceClient) BroadcastSystemNotification(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.Int64Value, error) {
	return invoke(ctx, c.cc, BroadcastSystemNotificationFullMethodName, in, opts)
}

func (c *AdminServiceClient) PushToRole(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.Int64Value, error) {
	return invoke(ctx, c.cc, PushToRoleFullMethodName, in, opts)
}

func (c *AdminServiceClient) ExpirySweep(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.Int64Value, error) {
	return invoke(ctx, c.cc, ExpirySweepFullMethodName, in, opts)
}

func (c *AdminServiceClient) Presence(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.Int64Value, error) {
	return invoke(ctx, c.cc, PresenceFullMethodName, in, opts)
}

func (c *AdminServiceClient) UnreadCount(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.Int64Value, error) {
	return invoke(ctx, c.cc, UnreadCountFullMethodName, in, opts)
}

func invoke(ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*wrapperspb.Int64Value, error) {
	out := new(wrapperspb.Int64Value)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
