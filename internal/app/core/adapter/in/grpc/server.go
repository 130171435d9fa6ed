package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/JoeShih716/go-ledger-service/internal/app/core/domain"
	"github.com/JoeShih716/go-ledger-service/internal/app/core/usecase"
)

// GrpcServer 將 LedgerService 的請求轉給 usecase.Ledger
type GrpcServer struct {
	ledger usecase.Ledger
}

func NewGrpcServer(ledger usecase.Ledger) *GrpcServer {
	return &GrpcServer{
		ledger: ledger,
	}
}

func (s *GrpcServer) CreateCustomer(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error) {
	customer, err := s.ledger.CreateCustomer(ctx, getString(req, "name"))
	if err != nil {
		return nil, mapError(err)
	}
	return encodeCustomer(customer), nil
}

func (s *GrpcServer) OpenAccount(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error) {
	deposit, err := parseDeposit(getString(req, "initial_deposit"))
	if err != nil {
		return nil, mapError(err)
	}
	account, err := s.ledger.OpenAccount(ctx, getInt64(req, "customer_id"), deposit)
	if err != nil {
		return nil, mapError(err)
	}
	return encodeAccount(account), nil
}

func (s *GrpcServer) TransferFunds(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error) {
	// 1. 解析金額與追蹤號
	amount, err := parseAmount(getString(req, "amount"))
	if err != nil {
		return nil, mapError(err)
	}
	refID, err := parseRef(getString(req, "ref_id"))
	if err != nil {
		return nil, mapError(err)
	}

	// 2. 執行轉帳 (同一個 ref_id 重送時回傳原紀錄)
	transfer, err := s.ledger.TransferFundsWithRef(ctx, refID,
		getInt64(req, "from_account_id"),
		getInt64(req, "to_account_id"),
		amount,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return encodeTransfer(transfer), nil
}

func (s *GrpcServer) GetBalance(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error) {
	accountID := getInt64(req, "account_id")
	balance, err := s.ledger.GetBalance(ctx, accountID)
	if err != nil {
		return nil, mapError(err)
	}
	return encodeBalance(accountID, balance), nil
}

func (s *GrpcServer) GetTransferHistory(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error) {
	transfers, err := s.ledger.GetTransferHistory(ctx, getInt64(req, "account_id"))
	if err != nil {
		return nil, mapError(err)
	}
	return encodeHistory(transfers), nil
}

// mapError 將領域錯誤轉成 gRPC status。
// 順序有意義: 建立失敗可能包著 ErrEmptyName，轉帳失敗可能包著 context 錯誤
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var code codes.Code
	switch {
	case errors.Is(err, domain.ErrCustomerNotFound), errors.Is(err, domain.ErrAccountNotFound):
		code = codes.NotFound
	case errors.Is(err, domain.ErrInsufficientFunds):
		code = codes.FailedPrecondition
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrEmptyName), errors.Is(err, errMalformed):
		code = codes.InvalidArgument
	case errors.Is(err, domain.ErrDuplicateRef):
		code = codes.AlreadyExists
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, domain.ErrCustomerNotCreated),
		errors.Is(err, domain.ErrAccountNotCreated),
		errors.Is(err, domain.ErrAccountNotUpdated),
		errors.Is(err, domain.ErrTransferFailed):
		code = codes.Unavailable
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

var _ LedgerServer = (*GrpcServer)(nil)
