package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"runtime"
	"time"

	"github.com/cuttlefree/cuttle-server-go/internal/config"
	"github.com/cuttlefree/cuttle-server-go/internal/game"
	"github.com/cuttlefree/cuttle-server-go/internal/game/match"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// cuttleServer implements CuttleServer on top of the engine.
type cuttleServer struct {
	engine *game.Engine
	logger *zap.Logger
}

// NewCuttleServer creates the service implementation.
func NewCuttleServer(engine *game.Engine, logger *zap.Logger) CuttleServer {
	return &cuttleServer{engine: engine, logger: logger}
}

func (s *cuttleServer) JoinRoom(ctx context.Context, req *JoinRequest) (*JoinResponse, error) {
	out, err := s.engine.JoinRoom(ctx, req.RoomID, req.Name)
	if err != nil {
		return nil, StatusFromError(err).Err()
	}
	return &JoinResponse{
		RoomID:   out.Room.ID,
		Seat:     out.Seat,
		Created:  out.Created,
		Rejoined: out.Rejoined,
		View:     game.ViewOf(out.Room, out.Seat),
	}, nil
}

func (s *cuttleServer) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResponse, error) {
	if req.RoomID == "" {
		return nil, status.Error(codes.InvalidArgument, "room_id is required")
	}
	res, err := s.engine.Submit(ctx, req.RoomID, req.Command)
	if err != nil {
		return nil, StatusFromError(err).Err()
	}
	return &SubmitResponse{
		View:   game.ViewOf(res.Room, req.Command.Player),
		Winner: res.Winner,
	}, nil
}

func (s *cuttleServer) Restart(ctx context.Context, req *RestartRequest) (*ViewResponse, error) {
	if req.RoomID == "" {
		return nil, status.Error(codes.InvalidArgument, "room_id is required")
	}
	res, err := s.engine.Restart(ctx, req.RoomID, req.Player)
	if err != nil {
		return nil, StatusFromError(err).Err()
	}
	return &ViewResponse{View: game.ViewOf(res.Room, req.Player)}, nil
}

func (s *cuttleServer) GetView(ctx context.Context, req *ViewRequest) (*ViewResponse, error) {
	if req.RoomID == "" {
		return nil, status.Error(codes.InvalidArgument, "room_id is required")
	}
	view, err := s.engine.View(ctx, req.RoomID, req.Viewer)
	if err != nil {
		return nil, StatusFromError(err).Err()
	}
	return &ViewResponse{View: view}, nil
}

func (s *cuttleServer) Watch(req *WatchRequest, stream ViewStream) error {
	if req.RoomID == "" {
		return status.Error(codes.InvalidArgument, "room_id is required")
	}
	ctx := stream.Context()

	// subscribe before the first read so no commit falls in between
	snapshots, stop, err := s.engine.Subscribe(ctx, req.RoomID)
	if err != nil {
		return StatusFromError(err).Err()
	}
	defer stop()

	room, err := s.engine.Room(ctx, req.RoomID)
	if err != nil {
		return StatusFromError(err).Err()
	}

	var last []byte
	send := func(room *match.Room) error {
		view := game.ViewOf(room, req.Viewer)
		data, err := json.Marshal(view)
		if err != nil {
			return status.Error(codes.Internal, err.Error())
		}
		if bytes.Equal(data, last) {
			return nil
		}
		last = data
		return stream.Send(&ViewResponse{View: view})
	}
	if err := send(room); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case room, ok := <-snapshots:
			if !ok {
				return nil
			}
			if err := send(room); err != nil {
				return err
			}
		}
	}
}

// GRPCServer bundles the gRPC server with its health service.
type GRPCServer struct {
	*grpc.Server
	health *health.Server
}

// NewGRPCServer builds a server exposing the Cuttle service and the standard
// health service.
func NewGRPCServer(cfg config.GRPCConfig, engine *game.Engine, logger *zap.Logger) *GRPCServer {
	opts := []grpc.ServerOption{
		grpc.UnaryInterceptor(ChainUnaryInterceptors(
			RecoveryInterceptor(logger),
			LoggingInterceptor(logger),
		)),
		grpc.StreamInterceptor(StreamRecoveryInterceptor(logger)),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    cfg.KeepaliveTime,
			Timeout: cfg.KeepaliveTimeout,
		}),
	}
	if cfg.MaxConcurrentStreams > 0 {
		opts = append(opts, grpc.MaxConcurrentStreams(uint32(cfg.MaxConcurrentStreams)))
	}

	s := grpc.NewServer(opts...)
	RegisterCuttleServer(s, NewCuttleServer(engine, logger))

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	return &GRPCServer{Server: s, health: hs}
}

// Serve accepts connections on lis until Shutdown.
func (g *GRPCServer) Serve(lis net.Listener) error {
	return g.Server.Serve(lis)
}

// Shutdown marks the server as not serving and drains in-flight calls.
func (g *GRPCServer) Shutdown() {
	g.health.Shutdown()
	g.Server.GracefulStop()
}

// ChainUnaryInterceptors runs interceptors in order, the first one outermost.
func ChainUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		chained := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			next, interceptor := chained, interceptors[i]
			chained = func(ctx context.Context, req any) (any, error) {
				return interceptor(ctx, req, info, next)
			}
		}
		return chained(ctx, req)
	}
}

// RecoveryInterceptor turns handler panics into Internal errors.
func RecoveryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logPanic(logger, info.FullMethod, r)
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// StreamRecoveryInterceptor is RecoveryInterceptor for streaming calls.
func StreamRecoveryInterceptor(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logPanic(logger, info.FullMethod, r)
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(srv, ss)
	}
}

func logPanic(logger *zap.Logger, method string, r any) {
	if logger == nil {
		return
	}
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	logger.Error("panic in gRPC handler",
		zap.String("method", method),
		zap.Any("panic", r),
		zap.ByteString("stack", buf[:n]),
	)
}

// LoggingInterceptor logs every unary call with its outcome.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if logger == nil {
			return resp, err
		}

		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("peer", extractHostFromContext(ctx)),
			zap.String("code", code.String()),
			zap.Duration("duration", time.Since(start)),
		}
		switch code {
		case codes.OK:
			logger.Debug("gRPC call", fields...)
		case codes.Internal, codes.Unknown:
			logger.Error("gRPC call failed", append(fields, zap.Error(err))...)
		default:
			logger.Info("gRPC call rejected", append(fields, zap.Error(err))...)
		}
		return resp, err
	}
}

// Helper function to extract host from context
func extractHostFromContext(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != net.Addr(nil) {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}
