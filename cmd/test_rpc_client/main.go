package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	grpc_adapter "github.com/JoeShih716/go-ledger-service/internal/app/core/adapter/in/grpc"
	grpcpool "github.com/JoeShih716/go-ledger-service/pkg/grpc"
)

const (
	DefaultTotalCount  = 10000
	DefaultConcurrency = 200
)

// loadOptions 壓測參數
type loadOptions struct {
	Total       int             // 應該成功的轉帳筆數 N
	Extra       int             // 額外送出、應該因餘額不足而失敗的筆數
	Concurrency int             // 同時進行中的請求數
	Amount      decimal.Decimal // 每筆金額 a，來源帳戶初始餘額為 N*a
}

// loadReport 壓測結果
type loadReport struct {
	Succeeded     int64
	Rejected      int64
	Failed        int64
	SourceBalance decimal.Decimal
	TargetBalance decimal.Decimal
	HistoryLen    int
	Elapsed       time.Duration
}

// Verify 檢查並發轉帳後的帳本狀態: 來源剛好歸零、目的收到 N*a、恰好 N 筆紀錄
func (r loadReport) Verify(opts loadOptions) error {
	want := opts.Amount.Mul(decimal.NewFromInt(int64(opts.Total)))
	switch {
	case r.Failed > 0:
		return fmt.Errorf("%d transfers failed unexpectedly", r.Failed)
	case r.Succeeded != int64(opts.Total):
		return fmt.Errorf("succeeded %d transfers, want %d", r.Succeeded, opts.Total)
	case r.Rejected != int64(opts.Extra):
		return fmt.Errorf("rejected %d transfers, want %d", r.Rejected, opts.Extra)
	case !r.SourceBalance.IsZero():
		return fmt.Errorf("source balance %s, want 0", r.SourceBalance)
	case !r.TargetBalance.Equal(want):
		return fmt.Errorf("target balance %s, want %s", r.TargetBalance, want)
	case r.HistoryLen != opts.Total:
		return fmt.Errorf("history has %d transfers, want %d", r.HistoryLen, opts.Total)
	}
	return nil
}

func main() {
	addr := flag.String("addr", "localhost:50051", "ledger gRPC address")
	total := flag.Int("n", DefaultTotalCount, "number of transfers that must succeed")
	extra := flag.Int("extra", 10, "additional transfers expected to fail with insufficient funds")
	concurrency := flag.Int("c", DefaultConcurrency, "concurrent requests")
	amount := flag.String("amount", "1.25", "amount per transfer")
	timeout := flag.Duration("timeout", 120*time.Second, "overall timeout")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	opts := loadOptions{Total: *total, Extra: *extra, Concurrency: *concurrency}
	var err error
	if opts.Amount, err = decimal.NewFromString(*amount); err != nil {
		log.Error("invalid amount", slog.Any("error", err))
		os.Exit(2)
	}

	pool := grpcpool.NewPool()
	defer pool.Close()
	conn, err := pool.GetConnection(*addr)
	if err != nil {
		log.Error("did not connect", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	report, err := runLoad(ctx, grpc_adapter.NewClient(conn), opts, log)
	if err != nil {
		log.Error("load test aborted", slog.Any("error", err))
		os.Exit(1)
	}

	fmt.Printf("Completed %d requests in %v\n", opts.Total+opts.Extra, report.Elapsed)
	fmt.Printf("TPS: %.2f\n", float64(opts.Total+opts.Extra)/report.Elapsed.Seconds())
	if err := report.Verify(opts); err != nil {
		log.Error("ledger invariant violated", slog.Any("error", err))
		os.Exit(1)
	}
	fmt.Println("Ledger invariants hold")
}

// runLoad 建立一個餘額 N*a 的來源帳戶，並發送出 N+extra 筆轉帳到另一個帳戶
func runLoad(ctx context.Context, c *grpc_adapter.Client, opts loadOptions, log *slog.Logger) (loadReport, error) {
	var report loadReport
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	customer, err := c.CreateCustomer(ctx, "load-test")
	if err != nil {
		return report, fmt.Errorf("create customer: %w", err)
	}
	source, err := c.OpenAccount(ctx, customer.ID, opts.Amount.Mul(decimal.NewFromInt(int64(opts.Total))))
	if err != nil {
		return report, fmt.Errorf("open source account: %w", err)
	}
	target, err := c.OpenAccount(ctx, customer.ID, decimal.Zero)
	if err != nil {
		return report, fmt.Errorf("open target account: %w", err)
	}

	var (
		wg                          sync.WaitGroup
		succeeded, rejected, failed atomic.Int64
	)
	sem := make(chan struct{}, opts.Concurrency)
	startTime := time.Now()

	for i := 0; i < opts.Total+opts.Extra; i++ {
		sem <- struct{}{}
		wg.Add(1)

		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			_, err := c.TransferFunds(ctx, uuid.New(), source.ID, target.ID, opts.Amount)
			switch status.Code(err) {
			case codes.OK:
				succeeded.Add(1)
			case codes.FailedPrecondition:
				rejected.Add(1)
			default:
				if failed.Add(1) == 1 || idx%1000 == 0 {
					log.Warn("transfer failed", slog.Int("idx", idx), slog.Any("error", err))
				}
			}
		}(i)
	}
	wg.Wait()

	report.Elapsed = time.Since(startTime)
	report.Succeeded = succeeded.Load()
	report.Rejected = rejected.Load()
	report.Failed = failed.Load()

	if report.SourceBalance, err = c.GetBalance(ctx, source.ID); err != nil {
		return report, fmt.Errorf("get source balance: %w", err)
	}
	if report.TargetBalance, err = c.GetBalance(ctx, target.ID); err != nil {
		return report, fmt.Errorf("get target balance: %w", err)
	}
	history, err := c.GetTransferHistory(ctx, source.ID)
	if err != nil {
		return report, fmt.Errorf("get history: %w", err)
	}
	report.HistoryLen = len(history)
	return report, nil
}
