package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	grpc_adapter "github.com/JoeShih716/go-ledger-service/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-ledger-service/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-ledger-service/internal/app/core/usecase"
	grpcpool "github.com/JoeShih716/go-ledger-service/pkg/grpc"
)

func TestRunLoad(t *testing.T) {
	store, err := memory.NewStore(nil)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	grpc_adapter.RegisterLedgerServer(s, grpc_adapter.NewGrpcServer(usecase.NewCoreUseCase(store)))
	go func() { _ = s.Serve(lis) }()
	defer s.Stop()

	pool := grpcpool.NewPool(grpcpool.WithDialOptions(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})))
	defer pool.Close()
	conn, err := pool.GetConnection("passthrough:///bufnet")
	require.NoError(t, err)

	opts := loadOptions{Total: 100, Extra: 5, Concurrency: 20, Amount: decimal.RequireFromString("0.75")}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	report, err := runLoad(context.Background(), grpc_adapter.NewClient(conn), opts, log)
	require.NoError(t, err)
	assert.NoError(t, report.Verify(opts))
	assert.True(t, report.TargetBalance.Equal(decimal.RequireFromString("75")))
}

func TestLoadReport_Verify(t *testing.T) {
	opts := loadOptions{Total: 2, Extra: 1, Amount: decimal.NewFromInt(5)}
	ok := loadReport{Succeeded: 2, Rejected: 1, SourceBalance: decimal.Zero, TargetBalance: decimal.NewFromInt(10), HistoryLen: 2}
	assert.NoError(t, ok.Verify(opts))

	negative := ok
	negative.SourceBalance = decimal.NewFromInt(-5)
	assert.Error(t, negative.Verify(opts))

	lost := ok
	lost.TargetBalance = decimal.NewFromInt(5)
	assert.Error(t, lost.Verify(opts))

	extra := ok
	extra.HistoryLen = 3
	assert.Error(t, extra.Verify(opts))
}
