package pointrpc

import (
	"context"

	"google.golang.org/grpc"
)

// PointServiceClient 是 PointService 的 client 端介面
type PointServiceClient interface {
	OpenUser(ctx context.Context, in *UserIDRequest, opts ...grpc.CallOption) (*UserPoint, error)
	GetPoint(ctx context.Context, in *UserIDRequest, opts ...grpc.CallOption) (*UserPoint, error)
	Charge(ctx context.Context, in *AmountRequest, opts ...grpc.CallOption) (*UserPoint, error)
	Use(ctx context.Context, in *AmountRequest, opts ...grpc.CallOption) (*UserPoint, error)
	ListHistory(ctx context.Context, in *UserIDRequest, opts ...grpc.CallOption) (*HistoryList, error)
	Reconcile(ctx context.Context, in *ReconcileRequest, opts ...grpc.CallOption) (*Reconciliation, error)
}

type pointServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewPointServiceClient(cc grpc.ClientConnInterface) PointServiceClient {
	return &pointServiceClient{cc: cc}
}

func (c *pointServiceClient) OpenUser(ctx context.Context, in *UserIDRequest, opts ...grpc.CallOption) (*UserPoint, error) {
	out := new(UserPoint)
	if err := c.invoke(ctx, OpenUserFullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *pointServiceClient) GetPoint(ctx context.Context, in *UserIDRequest, opts ...grpc.CallOption) (*UserPoint, error) {
	out := new(UserPoint)
	if err := c.invoke(ctx, GetPointFullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *pointServiceClient) Charge(ctx context.Context, in *AmountRequest, opts ...grpc.CallOption) (*UserPoint, error) {
	out := new(UserPoint)
	if err := c.invoke(ctx, ChargeFullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *pointServiceClient) Use(ctx context.Context, in *AmountRequest, opts ...grpc.CallOption) (*UserPoint, error) {
	out := new(UserPoint)
	if err := c.invoke(ctx, UseFullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *pointServiceClient) ListHistory(ctx context.Context, in *UserIDRequest, opts ...grpc.CallOption) (*HistoryList, error) {
	out := new(HistoryList)
	if err := c.invoke(ctx, ListHistoryFullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *pointServiceClient) Reconcile(ctx context.Context, in *ReconcileRequest, opts ...grpc.CallOption) (*Reconciliation, error) {
	out := new(Reconciliation)
	if err := c.invoke(ctx, ReconcileFullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// invoke 固定使用 JSON codec
func (c *pointServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	callOpts := append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, callOpts...)
}
