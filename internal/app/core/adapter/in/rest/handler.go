package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-ledger-service/internal/app/core/domain"
	"github.com/JoeShih716/go-ledger-service/internal/app/core/usecase"
)

const msgMalformed = "Malformed request."

// Handler 將 HTTP 請求轉給 usecase.Ledger
type Handler struct {
	ledger usecase.Ledger
	log    *slog.Logger
}

type createCustomerRequest struct {
	Name string `json:"name" binding:"required"`
}

type customerResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// 金額可以是 JSON 數字或字串 (decimal.Decimal 兩種都接受)
type openAccountRequest struct {
	CustomerID     *int64           `json:"customer_id" binding:"required"`
	InitialDeposit *decimal.Decimal `json:"initial_deposit" binding:"required"`
}

type accountResponse struct {
	ID         int64           `json:"id"`
	CustomerID int64           `json:"customer_id"`
	Balance    decimal.Decimal `json:"balance"`
}

type transferRequest struct {
	FromAccountID *int64           `json:"from_account_id" binding:"required"`
	ToAccountID   *int64           `json:"to_account_id" binding:"required"`
	Amount        *decimal.Decimal `json:"amount" binding:"required"`
	RefID         string           `json:"ref_id"`
}

type transferResponse struct {
	ID            int64           `json:"id"`
	RefID         string          `json:"ref_id"`
	FromAccountID int64           `json:"from_account_id"`
	ToAccountID   int64           `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Timestamp     time.Time       `json:"timestamp"`
}

func newTransferResponse(t *domain.Transfer) transferResponse {
	return transferResponse{
		ID:            t.ID,
		RefID:         t.RefID.String(),
		FromAccountID: t.FromAccountID,
		ToAccountID:   t.ToAccountID,
		Amount:        t.Amount,
		Timestamp:     t.CreatedAt.UTC(),
	}
}

func (h *Handler) CreateCustomer(c *gin.Context) {
	var req createCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.malformed(c, err)
		return
	}

	customer, err := h.ledger.CreateCustomer(c.Request.Context(), req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.log.InfoContext(c.Request.Context(), "customer created", slog.Int64("customer_id", customer.ID))
	c.JSON(http.StatusCreated, customerResponse{ID: customer.ID, Name: customer.Name})
}

func (h *Handler) OpenAccount(c *gin.Context) {
	var req openAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.malformed(c, err)
		return
	}

	account, err := h.ledger.OpenAccount(c.Request.Context(), *req.CustomerID, *req.InitialDeposit)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.log.InfoContext(c.Request.Context(), "account created",
		slog.Int64("account_id", account.ID),
		slog.Int64("customer_id", account.CustomerID),
	)
	c.JSON(http.StatusCreated, accountResponse{
		ID:         account.ID,
		CustomerID: account.CustomerID,
		Balance:    account.Balance,
	})
}

func (h *Handler) GetBalance(c *gin.Context) {
	accountID, ok := h.accountID(c)
	if !ok {
		return
	}

	balance, err := h.ledger.GetBalance(c.Request.Context(), accountID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

func (h *Handler) TransferFunds(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.malformed(c, err)
		return
	}
	refID := uuid.Nil
	if req.RefID != "" {
		var err error
		if refID, err = uuid.Parse(req.RefID); err != nil {
			h.malformed(c, err)
			return
		}
	}

	transfer, err := h.ledger.TransferFundsWithRef(c.Request.Context(), refID, *req.FromAccountID, *req.ToAccountID, *req.Amount)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.log.InfoContext(c.Request.Context(), "amount transferred",
		slog.Int64("transfer_id", transfer.ID),
		slog.String("ref_id", transfer.RefID.String()),
	)
	c.JSON(http.StatusOK, newTransferResponse(transfer))
}

func (h *Handler) GetTransferHistory(c *gin.Context) {
	accountID, ok := h.accountID(c)
	if !ok {
		return
	}

	transfers, err := h.ledger.GetTransferHistory(c.Request.Context(), accountID)
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := make([]transferResponse, 0, len(transfers))
	for _, t := range transfers {
		resp = append(resp, newTransferResponse(t))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) accountID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.malformed(c, err)
		return 0, false
	}
	return id, true
}

func (h *Handler) malformed(c *gin.Context, err error) {
	h.log.WarnContext(c.Request.Context(), "malformed request", slog.String("path", c.FullPath()), slog.Any("error", err))
	c.JSON(http.StatusBadRequest, gin.H{"error": msgMalformed})
}

func (h *Handler) fail(c *gin.Context, err error) {
	code, msg := statusFor(err)
	level := slog.LevelWarn
	if code >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.log.Log(c.Request.Context(), level, msg, slog.Any("error", err))
	c.JSON(code, gin.H{"error": msg})
}

// statusFor 對應錯誤種類到 HTTP 狀態碼與對外訊息
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrCustomerNotFound):
		return http.StatusNotFound, "Customer not found."
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound, "Account not found."
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusForbidden, "Insufficient funds."
	case errors.Is(err, domain.ErrEmptyName):
		return http.StatusBadRequest, "Customer name must not be empty."
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest, "Invalid amount."
	case errors.Is(err, domain.ErrDuplicateRef):
		return http.StatusConflict, "Transfer reference already used."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "Request cancelled."
	case errors.Is(err, domain.ErrCustomerNotCreated):
		return http.StatusServiceUnavailable, "Customer not created."
	case errors.Is(err, domain.ErrAccountNotCreated):
		return http.StatusServiceUnavailable, "Account not created."
	case errors.Is(err, domain.ErrAccountNotUpdated):
		return http.StatusServiceUnavailable, "Account not updated."
	case errors.Is(err, domain.ErrTransferFailed):
		return http.StatusServiceUnavailable, "Transfer failed."
	default:
		return http.StatusInternalServerError, "Internal error."
	}
}
