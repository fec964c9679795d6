package pointrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "point.v1.PointService"

const (
	OpenUserFullMethodName    = "/" + ServiceName + "/OpenUser"
	GetPointFullMethodName    = "/" + ServiceName + "/GetPoint"
	ChargeFullMethodName      = "/" + ServiceName + "/Charge"
	UseFullMethodName         = "/" + ServiceName + "/Use"
	ListHistoryFullMethodName = "/" + ServiceName + "/ListHistory"
	ReconcileFullMethodName   = "/" + ServiceName + "/Reconcile"
)

// PointServiceServer 是 server 端需要實作的介面
type PointServiceServer interface {
	OpenUser(context.Context, *UserIDRequest) (*UserPoint, error)
	GetPoint(context.Context, *UserIDRequest) (*UserPoint, error)
	Charge(context.Context, *AmountRequest) (*UserPoint, error)
	Use(context.Context, *AmountRequest) (*UserPoint, error)
	ListHistory(context.Context, *UserIDRequest) (*HistoryList, error)
	Reconcile(context.Context, *ReconcileRequest) (*Reconciliation, error)
}

// UnimplementedPointServiceServer 內嵌後未實作的方法回傳 codes.Unimplemented
type UnimplementedPointServiceServer struct{}

func (UnimplementedPointServiceServer) OpenUser(context.Context, *UserIDRequest) (*UserPoint, error) {
	return nil, status.Error(codes.Unimplemented, "method OpenUser not implemented")
}
func (UnimplementedPointServiceServer) GetPoint(context.Context, *UserIDRequest) (*UserPoint, error) {
	return nil, status.Error(codes.Unimplemented, "method GetPoint not implemented")
}
func (UnimplementedPointServiceServer) Charge(context.Context, *AmountRequest) (*UserPoint, error) {
	return nil, status.Error(codes.Unimplemented, "method Charge not implemented")
}
func (UnimplementedPointServiceServer) Use(context.Context, *AmountRequest) (*UserPoint, error) {
	return nil, status.Error(codes.Unimplemented, "method Use not implemented")
}
func (UnimplementedPointServiceServer) ListHistory(context.Context, *UserIDRequest) (*HistoryList, error) {
	return nil, status.Error(codes.Unimplemented, "method ListHistory not implemented")
}
func (UnimplementedPointServiceServer) Reconcile(context.Context, *ReconcileRequest) (*Reconciliation, error) {
	return nil, status.Error(codes.Unimplemented, "method Reconcile not implemented")
}

// RegisterPointServiceServer 註冊到 grpc.Server
func RegisterPointServiceServer(s grpc.ServiceRegistrar, srv PointServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc 手寫的 grpc.ServiceDesc，對應 protoc-gen-go-grpc 產生的結構
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PointServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "OpenUser",
			Handler:    unaryHandler(OpenUserFullMethodName, PointServiceServer.OpenUser),
		},
		{
			MethodName: "GetPoint",
			Handler:    unaryHandler(GetPointFullMethodName, PointServiceServer.GetPoint),
		},
		{
			MethodName: "Charge",
			Handler:    unaryHandler(ChargeFullMethodName, PointServiceServer.Charge),
		},
		{
			MethodName: "Use",
			Handler:    unaryHandler(UseFullMethodName, PointServiceServer.Use),
		},
		{
			MethodName: "ListHistory",
			Handler:    unaryHandler(ListHistoryFullMethodName, PointServiceServer.ListHistory),
		},
		{
			MethodName: "Reconcile",
			Handler:    unaryHandler(ReconcileFullMethodName, PointServiceServer.Reconcile),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "point/v1/point.json",
}

func unaryHandler[Req, Resp any](
	fullMethod string,
	call func(PointServiceServer, context.Context, *Req) (*Resp, error),
) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PointServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PointServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
