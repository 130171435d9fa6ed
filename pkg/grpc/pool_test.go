package grpc

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func startHealthServer(t *testing.T) *bufconn.Listener {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, health.NewServer())
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)
	return lis
}

func bufDialer(lis *bufconn.Listener) grpc.DialOption {
	return grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
}

func TestPool_ReusesConnection(t *testing.T) {
	lis := startHealthServer(t)
	p := NewPool(WithDialOptions(bufDialer(lis)))
	defer p.Close()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		conns = map[*grpc.ClientConn]struct{}{}
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := p.GetConnection("passthrough:///bufnet")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			conns[conn] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, conns, 1)
}

func TestPool_InterceptorAndCall(t *testing.T) {
	lis := startHealthServer(t)

	var calls int
	var mu sync.Mutex
	counter := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return invoker(ctx, method, req, reply, cc, opts...)
	}
	p := NewPool(WithInterceptor(counter), WithDialOptions(bufDialer(lis)))
	defer p.Close()

	conn, err := p.GetConnection("passthrough:///bufnet")
	require.NoError(t, err)

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
	assert.Equal(t, 1, calls)
}

func TestPool_CloseThenReconnect(t *testing.T) {
	lis := startHealthServer(t)
	p := NewPool(WithDialOptions(bufDialer(lis)))

	first, err := p.GetConnection("passthrough:///bufnet")
	require.NoError(t, err)
	require.NoError(t, p.Close())
	assert.Equal(t, connectivity.Shutdown, first.GetState())

	second, err := p.GetConnection("passthrough:///bufnet")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	require.NoError(t, p.Close())
}
