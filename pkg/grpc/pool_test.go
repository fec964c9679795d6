package grpc

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	pb "github.com/JoeShih716/go-mem-point/pkg/pointrpc"
)

func TestPool_GetConnectionReusesTarget(t *testing.T) {
	pool := NewPool()
	defer pool.Close()

	const n = 20
	conns := make([]any, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			conn, err := pool.GetConnection("localhost:50051")
			assert.NoError(t, err)
			conns[i] = conn
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, conns[0], conns[i])
	}

	other, err := pool.GetConnection("localhost:50052")
	require.NoError(t, err)
	assert.NotSame(t, conns[0], other)
}

func TestPool_ReplacesShutdownConnection(t *testing.T) {
	pool := NewPool()
	defer pool.Close()

	first, err := pool.GetConnection("localhost:50051")
	require.NoError(t, err)
	require.NoError(t, first.Close())
	assert.Equal(t, connectivity.Shutdown, first.GetState())

	second, err := pool.GetConnection("localhost:50051")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestPool_Close(t *testing.T) {
	pool := NewPool()
	conn, err := pool.GetConnection("localhost:50051")
	require.NoError(t, err)

	require.NoError(t, pool.Close())
	assert.Equal(t, connectivity.Shutdown, conn.GetState())
}

func TestPool_AppliesInterceptorAndCallOptions(t *testing.T) {
	lis := bufconn.Listen(1024 * 1024)
	s := grpc.NewServer()
	go func() {
		_ = s.Serve(lis)
	}()
	t.Cleanup(s.Stop)

	var calls atomic.Int32
	pool := NewPool(
		WithDefaultCallOptions(grpc.CallContentSubtype(pb.CodecName)),
		WithInterceptor(func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn,
			invoker grpc.UnaryInvoker, opts ...grpc.CallOption,
		) error {
			calls.Add(1)
			return invoker(ctx, method, req, reply, cc, opts...)
		}),
		WithKeepalive(keepalive.ClientParameters{Time: time.Minute, Timeout: time.Second}),
	)
	defer pool.Close()

	conn, err := pool.GetConnection("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// 沒有註冊任何 service，server 回 Unimplemented，但 interceptor 仍會被呼叫
	err = conn.Invoke(ctx, "/point.v1.PointService/GetPoint", &pb.UserIDRequest{UserID: 1}, &pb.UserPoint{})
	assert.Equal(t, codes.Unimplemented, status.Code(err))
	assert.Equal(t, int32(1), calls.Load())
}
