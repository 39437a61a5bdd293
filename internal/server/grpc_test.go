package server

import (
	"context"
	"math/rand/v2"
	"net"
	"testing"
	"time"

	"github.com/cuttlefree/cuttle-server-go/internal/config"
	"github.com/cuttlefree/cuttle-server-go/internal/game"
	"github.com/cuttlefree/cuttle-server-go/internal/game/match"
	"github.com/cuttlefree/cuttle-server-go/internal/game/rules"
	"github.com/cuttlefree/cuttle-server-go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func newTestEngine(t *testing.T) *game.Engine {
	t.Helper()
	logger := zaptest.NewLogger(t)
	st := store.NewMemoryStore(0, logger)
	t.Cleanup(st.Close)
	return game.NewEngine(st, logger, game.WithRand(rand.New(rand.NewPCG(3, 5))))
}

func startGRPC(t *testing.T, engine *game.Engine) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	cfg := config.Default().Server.GRPC
	srv := NewGRPCServer(cfg, engine, zaptest.NewLogger(t))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Shutdown)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestGRPCJoinAndDraw(t *testing.T) {
	client := NewCuttleClient(startGRPC(t, newTestEngine(t)))
	ctx := context.Background()

	first, err := client.JoinRoom(ctx, &JoinRequest{RoomID: "room-1", Name: "alice"})
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, match.Player1, first.Seat)
	assert.Equal(t, match.StatusWaiting, first.View.Status)

	second, err := client.JoinRoom(ctx, &JoinRequest{RoomID: "room-1", Name: "bob"})
	require.NoError(t, err)
	assert.Equal(t, match.Player2, second.Seat)
	require.NotNil(t, second.View.Opponent)
	assert.Nil(t, second.View.Opponent.Hand)
	assert.Equal(t, 5, second.View.Opponent.HandCount)

	resp, err := client.Submit(ctx, &SubmitRequest{
		RoomID:  "room-1",
		Command: match.Command{Kind: match.MoveDraw, Player: match.Player1},
	})
	require.NoError(t, err)
	assert.Equal(t, 41, resp.View.DeckCount)
	assert.Equal(t, 6, resp.View.You.HandCount)
	assert.Equal(t, match.Player2, resp.View.Turn)

	view, err := client.GetView(ctx, &ViewRequest{RoomID: "room-1", Viewer: match.Player2})
	require.NoError(t, err)
	assert.Equal(t, 6, view.View.Opponent.HandCount)
}

func TestGRPCRejectionCarriesKind(t *testing.T) {
	client := NewCuttleClient(startGRPC(t, newTestEngine(t)))
	ctx := context.Background()

	_, err := client.JoinRoom(ctx, &JoinRequest{RoomID: "room-1", Name: "alice"})
	require.NoError(t, err)
	_, err = client.JoinRoom(ctx, &JoinRequest{RoomID: "room-1", Name: "bob"})
	require.NoError(t, err)

	_, err = client.Submit(ctx, &SubmitRequest{
		RoomID:  "room-1",
		Command: match.Command{Kind: match.MoveDraw, Player: match.Player2},
	})
	require.Error(t, err)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	rej, ok := RejectionFromStatus(err)
	require.True(t, ok)
	assert.Equal(t, rules.KindIllegalMove, rej.Kind)

	_, err = client.GetView(ctx, &ViewRequest{RoomID: "nowhere", Viewer: match.Player1})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.Submit(ctx, &SubmitRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCWatchStreamsCommits(t *testing.T) {
	engine := newTestEngine(t)
	client := NewCuttleClient(startGRPC(t, engine))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.JoinRoom(ctx, &JoinRequest{RoomID: "room-1", Name: "alice"})
	require.NoError(t, err)

	watcher, err := client.Watch(ctx, &WatchRequest{RoomID: "room-1", Viewer: match.Player1})
	require.NoError(t, err)

	initial, err := watcher.Recv()
	require.NoError(t, err)
	assert.Equal(t, match.StatusWaiting, initial.View.Status)

	_, err = engine.JoinRoom(ctx, "room-1", "bob")
	require.NoError(t, err)

	next, err := watcher.Recv()
	require.NoError(t, err)
	assert.Equal(t, match.StatusReady, next.View.Status)
	require.NotNil(t, next.View.Opponent)
	assert.Equal(t, "bob", next.View.Opponent.Name)
}

func TestGRPCHealth(t *testing.T) {
	conn := startGRPC(t, newTestEngine(t))

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestRecoveryInterceptor(t *testing.T) {
	interceptor := RecoveryInterceptor(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: methodSubmit}

	_, err := interceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestChainUnaryInterceptorsOrder(t *testing.T) {
	var order []string
	mark := func(name string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			order = append(order, name)
			return handler(ctx, req)
		}
	}
	chain := ChainUnaryInterceptors(mark("outer"), mark("inner"))

	resp, err := chain(context.Background(), "req", &grpc.UnaryServerInfo{}, func(_ context.Context, req any) (any, error) {
		order = append(order, "handler")
		return req, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "req", resp)
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}
