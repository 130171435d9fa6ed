package grpc

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/JoeShih716/go-ledger-service/internal/app/core/domain"
)

// errMalformed 請求欄位缺漏或格式錯誤
var errMalformed = errors.New("malformed request")

func field(m protoreflect.Message, name protoreflect.Name) protoreflect.FieldDescriptor {
	fd := m.Descriptor().Fields().ByName(name)
	if fd == nil {
		panic(fmt.Sprintf("ledger: %s has no field %q", m.Descriptor().FullName(), name))
	}
	return fd
}

func getString(m protoreflect.Message, name protoreflect.Name) string {
	return m.Get(field(m, name)).String()
}

func getInt64(m protoreflect.Message, name protoreflect.Name) int64 {
	return m.Get(field(m, name)).Int()
}

func setString(m protoreflect.Message, name protoreflect.Name, v string) {
	m.Set(field(m, name), protoreflect.ValueOfString(v))
}

func setInt64(m protoreflect.Message, name protoreflect.Name, v int64) {
	m.Set(field(m, name), protoreflect.ValueOfInt64(v))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// --- domain -> proto ---

func encodeCustomer(c *domain.Customer) *dynamicpb.Message {
	m := dynamicpb.NewMessage(customerDesc)
	setInt64(m, "id", c.ID)
	setString(m, "name", c.Name)
	setString(m, "created_at", formatTime(c.CreatedAt))
	return m
}

func encodeAccount(a *domain.Account) *dynamicpb.Message {
	m := dynamicpb.NewMessage(accountDesc)
	setInt64(m, "id", a.ID)
	setInt64(m, "customer_id", a.CustomerID)
	setString(m, "balance", a.Balance.StringFixed(domain.MoneyScale))
	setString(m, "created_at", formatTime(a.CreatedAt))
	return m
}

func fillTransfer(m protoreflect.Message, t *domain.Transfer) {
	setInt64(m, "id", t.ID)
	setInt64(m, "from_account_id", t.FromAccountID)
	setInt64(m, "to_account_id", t.ToAccountID)
	setString(m, "amount", t.Amount.StringFixed(domain.MoneyScale))
	setString(m, "ref_id", t.RefID.String())
	setString(m, "created_at", formatTime(t.CreatedAt))
}

func encodeTransfer(t *domain.Transfer) *dynamicpb.Message {
	m := dynamicpb.NewMessage(transferDesc)
	fillTransfer(m, t)
	return m
}

func encodeBalance(accountID int64, balance decimal.Decimal) *dynamicpb.Message {
	m := dynamicpb.NewMessage(getBalanceResponseDesc)
	setInt64(m, "account_id", accountID)
	setString(m, "balance", balance.StringFixed(domain.MoneyScale))
	return m
}

func encodeHistory(transfers []*domain.Transfer) *dynamicpb.Message {
	m := dynamicpb.NewMessage(getTransferHistoryRespDesc)
	list := m.Mutable(field(m, "transfers")).List()
	for _, t := range transfers {
		elem := list.NewElement()
		fillTransfer(elem.Message(), t)
		list.Append(elem)
	}
	return m
}

// --- proto -> domain ---

func decodeCustomer(m protoreflect.Message) (*domain.Customer, error) {
	createdAt, err := parseTime(getString(m, "created_at"))
	if err != nil {
		return nil, fmt.Errorf("customer created_at: %w", err)
	}
	return &domain.Customer{
		Record: domain.Record{ID: getInt64(m, "id"), CreatedAt: createdAt, UpdatedAt: createdAt},
		Name:   getString(m, "name"),
	}, nil
}

func decodeAccount(m protoreflect.Message) (*domain.Account, error) {
	balance, err := decimal.NewFromString(getString(m, "balance"))
	if err != nil {
		return nil, fmt.Errorf("account balance: %w", err)
	}
	createdAt, err := parseTime(getString(m, "created_at"))
	if err != nil {
		return nil, fmt.Errorf("account created_at: %w", err)
	}
	return &domain.Account{
		Record:     domain.Record{ID: getInt64(m, "id"), CreatedAt: createdAt, UpdatedAt: createdAt},
		CustomerID: getInt64(m, "customer_id"),
		Balance:    balance,
	}, nil
}

func decodeTransfer(m protoreflect.Message) (*domain.Transfer, error) {
	amount, err := decimal.NewFromString(getString(m, "amount"))
	if err != nil {
		return nil, fmt.Errorf("transfer amount: %w", err)
	}
	refID, err := uuid.Parse(getString(m, "ref_id"))
	if err != nil {
		return nil, fmt.Errorf("transfer ref_id: %w", err)
	}
	createdAt, err := parseTime(getString(m, "created_at"))
	if err != nil {
		return nil, fmt.Errorf("transfer created_at: %w", err)
	}
	return &domain.Transfer{
		Record:        domain.Record{ID: getInt64(m, "id"), CreatedAt: createdAt, UpdatedAt: createdAt},
		RefID:         refID,
		FromAccountID: getInt64(m, "from_account_id"),
		ToAccountID:   getInt64(m, "to_account_id"),
		Amount:        amount,
	}, nil
}

func decodeHistory(m protoreflect.Message) ([]*domain.Transfer, error) {
	list := m.Get(field(m, "transfers")).List()
	transfers := make([]*domain.Transfer, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		t, err := decodeTransfer(list.Get(i).Message())
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, nil
}

// --- request parsing (server side) ---

func parseDeposit(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: initial_deposit is required", errMalformed)
	}
	return domain.ParseAmount(s)
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: amount is required", errMalformed)
	}
	return domain.ParseAmount(s)
}

// parseRef 空字串代表由伺服器產生
func parseRef(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	refID, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid ref_id %q", errMalformed, s)
	}
	return refID, nil
}
