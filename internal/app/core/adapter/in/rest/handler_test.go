package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-ledger-service/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-ledger-service/internal/app/core/domain"
	"github.com/JoeShih716/go-ledger-service/internal/app/core/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockLedger is a mock implementation of usecase.Ledger for testing
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) CreateCustomer(ctx context.Context, name string) (*domain.Customer, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Customer), args.Error(1)
}

func (m *MockLedger) OpenAccount(ctx context.Context, customerID int64, initialDeposit decimal.Decimal) (*domain.Account, error) {
	args := m.Called(ctx, customerID, initialDeposit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockLedger) TransferFunds(ctx context.Context, fromID, toID int64, amount decimal.Decimal) (*domain.Transfer, error) {
	args := m.Called(ctx, fromID, toID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transfer), args.Error(1)
}

func (m *MockLedger) TransferFundsWithRef(ctx context.Context, refID uuid.UUID, fromID, toID int64, amount decimal.Decimal) (*domain.Transfer, error) {
	args := m.Called(ctx, refID, fromID, toID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transfer), args.Error(1)
}

func (m *MockLedger) GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedger) GetTransferHistory(ctx context.Context, accountID int64) ([]*domain.Transfer, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Transfer), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// doJSON 送出 JSON 請求並檢查狀態碼，out 非 nil 時解析回應
func doJSON(t *testing.T, h http.Handler, method, path string, body any, wantCode int, out any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, wantCode, rec.Code, rec.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
}

func TestHandler_CreateCustomer(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		setup    func(m *MockLedger)
		wantCode int
		wantErr  string
	}{
		{
			name: "success",
			body: map[string]any{"name": "John Doe"},
			setup: func(m *MockLedger) {
				m.On("CreateCustomer", mock.Anything, "John Doe").
					Return(&domain.Customer{Record: domain.Record{ID: 1}, Name: "John Doe"}, nil)
			},
			wantCode: http.StatusCreated,
		},
		{
			name:     "missing name",
			body:     map[string]any{},
			wantCode: http.StatusBadRequest,
			wantErr:  "Malformed request.",
		},
		{
			name: "store failure",
			body: map[string]any{"name": "John Doe"},
			setup: func(m *MockLedger) {
				m.On("CreateCustomer", mock.Anything, "John Doe").
					Return(nil, fmt.Errorf("%w: disk full", domain.ErrCustomerNotCreated))
			},
			wantCode: http.StatusServiceUnavailable,
			wantErr:  "Customer not created.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockLedger)
			if tt.setup != nil {
				tt.setup(m)
			}
			r := NewRouter(m, discardLogger())

			var resp map[string]any
			doJSON(t, r, http.MethodPost, "/customers", tt.body, tt.wantCode, &resp)
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, resp["error"])
			} else {
				assert.Equal(t, float64(1), resp["id"])
				assert.Equal(t, "John Doe", resp["name"])
			}
			m.AssertExpectations(t)
		})
	}
}

func TestHandler_OpenAccount(t *testing.T) {
	m := new(MockLedger)
	m.On("OpenAccount", mock.Anything, int64(1), mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.NewFromInt(100))
	})).Return(&domain.Account{Record: domain.Record{ID: 7}, CustomerID: 1, Balance: decimal.NewFromInt(100)}, nil)
	m.On("OpenAccount", mock.Anything, int64(2), mock.Anything).
		Return(nil, fmt.Errorf("%w: id 2", domain.ErrCustomerNotFound))
	r := NewRouter(m, discardLogger())

	var resp map[string]any
	doJSON(t, r, http.MethodPost, "/accounts", map[string]any{"customer_id": 1, "initial_deposit": 100.0}, http.StatusCreated, &resp)
	assert.Equal(t, float64(7), resp["id"])
	assert.Equal(t, "100", resp["balance"])

	// 金額也可以用字串
	doJSON(t, r, http.MethodPost, "/accounts", `{"customer_id": 2, "initial_deposit": "5.25"}`, http.StatusNotFound, &resp)
	assert.Equal(t, "Customer not found.", resp["error"])

	doJSON(t, r, http.MethodPost, "/accounts", map[string]any{"customer_id": 1}, http.StatusBadRequest, nil)
	doJSON(t, r, http.MethodPost, "/accounts", `{"customer_id": 1, "initial_deposit": "abc"}`, http.StatusBadRequest, nil)
}

func TestHandler_TransferFunds(t *testing.T) {
	ref := uuid.New()
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		body     any
		setup    func(m *MockLedger)
		wantCode int
		wantErr  string
	}{
		{
			name: "success with ref",
			body: map[string]any{"from_account_id": 1, "to_account_id": 2, "amount": 40, "ref_id": ref.String()},
			setup: func(m *MockLedger) {
				m.On("TransferFundsWithRef", mock.Anything, ref, int64(1), int64(2), mock.Anything).
					Return(&domain.Transfer{
						Record: domain.Record{ID: 3, CreatedAt: created},
						RefID:  ref, FromAccountID: 1, ToAccountID: 2, Amount: decimal.NewFromInt(40),
					}, nil)
			},
			wantCode: http.StatusOK,
		},
		{
			name: "account not found",
			body: map[string]any{"from_account_id": 999, "to_account_id": 2, "amount": 10},
			setup: func(m *MockLedger) {
				m.On("TransferFundsWithRef", mock.Anything, uuid.Nil, int64(999), int64(2), mock.Anything).
					Return(nil, fmt.Errorf("%w: id 999", domain.ErrAccountNotFound))
			},
			wantCode: http.StatusNotFound,
			wantErr:  "Account not found.",
		},
		{
			name: "insufficient funds",
			body: map[string]any{"from_account_id": 1, "to_account_id": 2, "amount": 50},
			setup: func(m *MockLedger) {
				m.On("TransferFundsWithRef", mock.Anything, uuid.Nil, int64(1), int64(2), mock.Anything).
					Return(nil, fmt.Errorf("%w: account 1", domain.ErrInsufficientFunds))
			},
			wantCode: http.StatusForbidden,
			wantErr:  "Insufficient funds.",
		},
		{
			name: "transfer failed",
			body: map[string]any{"from_account_id": 1, "to_account_id": 2, "amount": 5},
			setup: func(m *MockLedger) {
				m.On("TransferFundsWithRef", mock.Anything, uuid.Nil, int64(1), int64(2), mock.Anything).
					Return(nil, domain.ErrTransferFailed)
			},
			wantCode: http.StatusServiceUnavailable,
			wantErr:  "Transfer failed.",
		},
		{
			name:     "missing amount",
			body:     map[string]any{"from_account_id": 1, "to_account_id": 2},
			wantCode: http.StatusBadRequest,
			wantErr:  "Malformed request.",
		},
		{
			name:     "bad ref",
			body:     map[string]any{"from_account_id": 1, "to_account_id": 2, "amount": 5, "ref_id": "nope"},
			wantCode: http.StatusBadRequest,
			wantErr:  "Malformed request.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockLedger)
			if tt.setup != nil {
				tt.setup(m)
			}
			r := NewRouter(m, discardLogger())

			var resp map[string]any
			doJSON(t, r, http.MethodPost, "/transfers", tt.body, tt.wantCode, &resp)
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, resp["error"])
			} else {
				assert.Equal(t, float64(3), resp["id"])
				assert.Equal(t, "40", resp["amount"])
				assert.Equal(t, ref.String(), resp["ref_id"])
				assert.Equal(t, "2024-05-01T10:00:00Z", resp["timestamp"])
			}
			m.AssertExpectations(t)
		})
	}
}

func TestHandler_GetBalance(t *testing.T) {
	m := new(MockLedger)
	m.On("GetBalance", mock.Anything, int64(1)).Return(decimal.RequireFromString("100.5"), nil)
	m.On("GetBalance", mock.Anything, int64(2)).Return(decimal.Zero, fmt.Errorf("%w: id 2", domain.ErrAccountNotFound))
	r := NewRouter(m, discardLogger())

	var resp map[string]any
	doJSON(t, r, http.MethodGet, "/accounts/1/balance", nil, http.StatusOK, &resp)
	assert.Equal(t, "100.5", resp["balance"])

	doJSON(t, r, http.MethodGet, "/accounts/2/balance", nil, http.StatusNotFound, &resp)
	assert.Equal(t, "Account not found.", resp["error"])

	doJSON(t, r, http.MethodGet, "/accounts/abc/balance", nil, http.StatusBadRequest, nil)
}

func TestHandler_EndToEnd(t *testing.T) {
	store, err := memory.NewStore(nil)
	require.NoError(t, err)
	r := NewRouter(usecase.NewCoreUseCase(store), discardLogger())

	doJSON(t, r, http.MethodGet, "/health", nil, http.StatusOK, nil)

	var customer customerResponse
	doJSON(t, r, http.MethodPost, "/customers", map[string]any{"name": "John Doe"}, http.StatusCreated, &customer)

	var a, b accountResponse
	doJSON(t, r, http.MethodPost, "/accounts", map[string]any{"customer_id": customer.ID, "initial_deposit": 100}, http.StatusCreated, &a)
	doJSON(t, r, http.MethodPost, "/accounts", map[string]any{"customer_id": customer.ID, "initial_deposit": 0}, http.StatusCreated, &b)

	doJSON(t, r, http.MethodPost, "/transfers", map[string]any{"from_account_id": a.ID, "to_account_id": b.ID, "amount": 40}, http.StatusOK, nil)
	doJSON(t, r, http.MethodPost, "/transfers", map[string]any{"from_account_id": b.ID, "to_account_id": a.ID, "amount": "0.5"}, http.StatusOK, nil)
	doJSON(t, r, http.MethodPost, "/transfers", map[string]any{"from_account_id": a.ID, "to_account_id": b.ID, "amount": 1000}, http.StatusForbidden, nil)
	doJSON(t, r, http.MethodPost, "/transfers", map[string]any{"from_account_id": a.ID, "to_account_id": b.ID, "amount": 0}, http.StatusBadRequest, nil)

	var balance struct {
		Balance decimal.Decimal `json:"balance"`
	}
	doJSON(t, r, http.MethodGet, fmt.Sprintf("/accounts/%d/balance", a.ID), nil, http.StatusOK, &balance)
	assert.True(t, balance.Balance.Equal(decimal.RequireFromString("60.5")), balance.Balance.String())

	var history []transferResponse
	doJSON(t, r, http.MethodGet, fmt.Sprintf("/accounts/%d/transfers", a.ID), nil, http.StatusOK, &history)
	require.Len(t, history, 2)
	assert.Equal(t, a.ID, history[0].FromAccountID)
	assert.Equal(t, a.ID, history[1].ToAccountID)

	doJSON(t, r, http.MethodGet, "/accounts/999/transfers", nil, http.StatusOK, &history)
	assert.Empty(t, history)
}
