package grpc

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/JoeShih716/go-ledger-service/internal/app/core/domain"
)

// Client 是 LedgerService 的型別化客戶端。
// 錯誤為 gRPC status，可用 status.Code 判斷 (例如 codes.FailedPrecondition 表示餘額不足)
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in *dynamicpb.Message, out protoreflect.MessageDescriptor, opts ...grpc.CallOption) (*dynamicpb.Message, error) {
	resp := dynamicpb.NewMessage(out)
	if err := c.cc.Invoke(ctx, method, in, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) CreateCustomer(ctx context.Context, name string, opts ...grpc.CallOption) (*domain.Customer, error) {
	in := dynamicpb.NewMessage(createCustomerRequestDesc)
	setString(in, "name", name)
	resp, err := c.invoke(ctx, CreateCustomerMethod, in, customerDesc, opts...)
	if err != nil {
		return nil, err
	}
	return decodeCustomer(resp)
}

func (c *Client) OpenAccount(ctx context.Context, customerID int64, initialDeposit decimal.Decimal, opts ...grpc.CallOption) (*domain.Account, error) {
	in := dynamicpb.NewMessage(openAccountRequestDesc)
	setInt64(in, "customer_id", customerID)
	setString(in, "initial_deposit", initialDeposit.String())
	resp, err := c.invoke(ctx, OpenAccountMethod, in, accountDesc, opts...)
	if err != nil {
		return nil, err
	}
	return decodeAccount(resp)
}

// TransferFunds refID 為 uuid.Nil 時由伺服器產生；重試時請帶同一個 refID
func (c *Client) TransferFunds(ctx context.Context, refID uuid.UUID, fromID, toID int64, amount decimal.Decimal, opts ...grpc.CallOption) (*domain.Transfer, error) {
	in := dynamicpb.NewMessage(transferFundsRequestDesc)
	setInt64(in, "from_account_id", fromID)
	setInt64(in, "to_account_id", toID)
	setString(in, "amount", amount.String())
	if refID != uuid.Nil {
		setString(in, "ref_id", refID.String())
	}
	resp, err := c.invoke(ctx, TransferFundsMethod, in, transferDesc, opts...)
	if err != nil {
		return nil, err
	}
	return decodeTransfer(resp)
}

func (c *Client) GetBalance(ctx context.Context, accountID int64, opts ...grpc.CallOption) (decimal.Decimal, error) {
	in := dynamicpb.NewMessage(getBalanceRequestDesc)
	setInt64(in, "account_id", accountID)
	resp, err := c.invoke(ctx, GetBalanceMethod, in, getBalanceResponseDesc, opts...)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(getString(resp, "balance"))
}

func (c *Client) GetTransferHistory(ctx context.Context, accountID int64, opts ...grpc.CallOption) ([]*domain.Transfer, error) {
	in := dynamicpb.NewMessage(getTransferHistoryRequestDesc)
	setInt64(in, "account_id", accountID)
	resp, err := c.invoke(ctx, GetTransferHistoryMethod, in, getTransferHistoryRespDesc, opts...)
	if err != nil {
		return nil, err
	}
	return decodeHistory(resp)
}
