package main

import (
	"context"
	"flag"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	ggrpc "google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/JoeShih716/go-mem-point/pkg/grpc"
	"github.com/JoeShih716/go-mem-point/pkg/logger"
	pb "github.com/JoeShih716/go-mem-point/pkg/pointrpc"
)

// 壓測: 對同一個使用者併發充值 1 點，最後確認餘額與對帳結果
func main() {
	target := flag.String("target", "localhost:50051", "gRPC server address")
	userID := flag.Int64("user", 1, "user id")
	totalCount := flag.Int("n", 100000, "number of charge requests")
	concurrency := flag.Int("c", 1000, "max in-flight requests")
	timeout := flag.Duration("timeout", 120*time.Second, "overall timeout")
	pingEvery := flag.Duration("keepalive", 10*time.Second, "keepalive ping interval")
	flag.Parse()

	log := logger.New("info", nil)

	var maxLatency atomic.Int64
	pool := grpc.NewPool(
		grpc.WithDefaultCallOptions(ggrpc.CallContentSubtype(pb.CodecName)),
		grpc.WithInterceptor(latencyInterceptor(&maxLatency)),
		grpc.WithKeepalive(keepalive.ClientParameters{
			Time:                *pingEvery,
			Timeout:             time.Second,
			PermitWithoutStream: true,
		}),
	)
	defer pool.Close()
	conn, err := pool.GetConnection(*target)
	if err != nil {
		log.Fatal().Err(err).Msg("did not connect")
	}
	c := pb.NewPointServiceClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	before, err := c.OpenUser(ctx, &pb.UserIDRequest{UserID: *userID})
	if err != nil {
		log.Fatal().Err(err).Int64("user_id", *userID).Msg("OpenUser failed")
	}

	var (
		wg     sync.WaitGroup
		failed atomic.Int64
	)
	wg.Add(*totalCount)
	sem := make(chan struct{}, *concurrency)

	startTime := time.Now()
	for i := 0; i < *totalCount; i++ {
		sem <- struct{}{}

		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			_, err := c.Charge(ctx, &pb.AmountRequest{UserID: *userID, Amount: 1})
			if err != nil {
				failed.Add(1)
				if idx%10000 == 0 {
					log.Warn().Err(err).Int("idx", idx).Msg("Charge failed")
				}
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(startTime)

	after, err := c.GetPoint(ctx, &pb.UserIDRequest{UserID: *userID})
	if err != nil {
		log.Fatal().Err(err).Msg("GetPoint failed")
	}
	rec, err := c.Reconcile(ctx, &pb.ReconcileRequest{UserID: *userID})
	if err != nil {
		log.Fatal().Err(err).Msg("Reconcile failed")
	}

	succeeded := int64(*totalCount) - failed.Load()
	fmt.Printf("Completed %d requests in %v (%d failed)\n", *totalCount, elapsed, failed.Load())
	fmt.Printf("TPS: %.2f\n", float64(*totalCount)/elapsed.Seconds())
	fmt.Printf("Max latency: %v\n", time.Duration(maxLatency.Load()))
	fmt.Printf("Balance: %d -> %d (expected %d)\n", before.Point, after.Point, before.Point+succeeded)
	fmt.Printf("Reconcile: stored=%d computed=%d entries=%d consistent=%v\n",
		rec.Stored, rec.Computed, rec.Entries, rec.Consistent)
}

// latencyInterceptor 記錄單次呼叫的最大延遲
func latencyInterceptor(slowest *atomic.Int64) ggrpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *ggrpc.ClientConn,
		invoker ggrpc.UnaryInvoker, opts ...ggrpc.CallOption,
	) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		elapsed := int64(time.Since(start))
		for {
			cur := slowest.Load()
			if elapsed <= cur || slowest.CompareAndSwap(cur, elapsed) {
				break
			}
		}
		return err
	}
}
