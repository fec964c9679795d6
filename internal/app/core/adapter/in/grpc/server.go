package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-mem-point/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-point/internal/app/core/usecase"
	pb "github.com/JoeShih716/go-mem-point/pkg/pointrpc"
)

type GrpcServer struct {
	pb.UnimplementedPointServiceServer
	ledger *usecase.PointLedger
}

func NewGrpcServer(ledger *usecase.PointLedger) *GrpcServer {
	return &GrpcServer{
		ledger: ledger,
	}
}

func (s *GrpcServer) OpenUser(ctx context.Context, req *pb.UserIDRequest) (*pb.UserPoint, error) {
	point, err := s.ledger.Open(ctx, req.UserID)
	if err != nil {
		return nil, toStatus(err)
	}
	return toUserPoint(point), nil
}

func (s *GrpcServer) GetPoint(ctx context.Context, req *pb.UserIDRequest) (*pb.UserPoint, error) {
	point, err := s.ledger.GetBalance(ctx, req.UserID)
	if err != nil {
		return nil, toStatus(err)
	}
	return toUserPoint(point), nil
}

func (s *GrpcServer) Charge(ctx context.Context, req *pb.AmountRequest) (*pb.UserPoint, error) {
	point, err := s.ledger.Charge(ctx, req.UserID, req.Amount)
	if err != nil {
		return nil, toStatus(err)
	}
	return toUserPoint(point), nil
}

func (s *GrpcServer) Use(ctx context.Context, req *pb.AmountRequest) (*pb.UserPoint, error) {
	point, err := s.ledger.Use(ctx, req.UserID, req.Amount)
	if err != nil {
		return nil, toStatus(err)
	}
	return toUserPoint(point), nil
}

func (s *GrpcServer) ListHistory(ctx context.Context, req *pb.UserIDRequest) (*pb.HistoryList, error) {
	histories, err := s.ledger.History(ctx, req.UserID)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &pb.HistoryList{
		Histories: make([]pb.PointHistory, 0, len(histories)),
	}
	for _, h := range histories {
		resp.Histories = append(resp.Histories, pb.PointHistory{
			ID:        h.ID.String(),
			UserID:    h.UserID,
			Amount:    h.Amount,
			Type:      h.Type.String(),
			CreatedAt: h.CreatedAt,
		})
	}
	return resp, nil
}

// Reconcile 不一致時仍回傳結果 (Consistent=false)，不視為 RPC 錯誤
func (s *GrpcServer) Reconcile(ctx context.Context, req *pb.ReconcileRequest) (*pb.Reconciliation, error) {
	rec, err := s.ledger.Reconcile(ctx, req.UserID, req.Opening)
	if err != nil && !errors.Is(err, domain.ErrReconciliationMismatch) {
		return nil, toStatus(err)
	}
	return &pb.Reconciliation{
		UserID:     rec.UserID,
		Stored:     rec.Stored,
		Computed:   rec.Computed,
		Entries:    rec.Entries,
		Consistent: rec.Consistent,
	}, nil
}

func toUserPoint(point domain.UserPoint) *pb.UserPoint {
	return &pb.UserPoint{
		UserID:    point.UserID,
		Point:     point.Point,
		UpdatedAt: point.UpdatedAt,
	}
}

// toStatus 把 domain 錯誤轉成 gRPC status code
func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrUserNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientBalance):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrBalanceOverflow):
		return status.Error(codes.OutOfRange, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

var _ pb.PointServiceServer = (*GrpcServer)(nil)
