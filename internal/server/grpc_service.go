package server

import (
	"context"

	"github.com/cuttlefree/cuttle-server-go/internal/game/match"
	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "cuttle.v1.Cuttle"

const (
	methodJoinRoom = "/" + ServiceName + "/JoinRoom"
	methodSubmit   = "/" + ServiceName + "/Submit"
	methodRestart  = "/" + ServiceName + "/Restart"
	methodGetView  = "/" + ServiceName + "/GetView"
	methodWatch    = "/" + ServiceName + "/Watch"
)

// JoinRequest seats Name in RoomID. An empty RoomID creates a room.
type JoinRequest struct {
	RoomID string `json:"room_id"`
	Name   string `json:"name"`
}

// JoinResponse reports the seat taken and the joiner's view.
type JoinResponse struct {
	RoomID   string         `json:"room_id"`
	Seat     match.PlayerID `json:"seat"`
	Created  bool           `json:"created"`
	Rejoined bool           `json:"rejoined"`
	View     *match.View    `json:"view"`
}

// SubmitRequest carries one move for RoomID.
type SubmitRequest struct {
	RoomID  string        `json:"room_id"`
	Command match.Command `json:"command"`
}

// SubmitResponse is the mover's view after the commit.
type SubmitResponse struct {
	View   *match.View    `json:"view"`
	Winner match.PlayerID `json:"winner,omitempty"`
}

// RestartRequest deals a new game on behalf of Player.
type RestartRequest struct {
	RoomID string         `json:"room_id"`
	Player match.PlayerID `json:"player"`
}

// ViewRequest asks for Viewer's view of RoomID.
type ViewRequest struct {
	RoomID string         `json:"room_id"`
	Viewer match.PlayerID `json:"viewer"`
}

// WatchRequest streams Viewer's view of RoomID after every commit.
type WatchRequest struct {
	RoomID string         `json:"room_id"`
	Viewer match.PlayerID `json:"viewer"`
}

// ViewResponse wraps a single view.
type ViewResponse struct {
	View *match.View `json:"view"`
}

// CuttleServer is the server API for the Cuttle service.
type CuttleServer interface {
	JoinRoom(context.Context, *JoinRequest) (*JoinResponse, error)
	Submit(context.Context, *SubmitRequest) (*SubmitResponse, error)
	Restart(context.Context, *RestartRequest) (*ViewResponse, error)
	GetView(context.Context, *ViewRequest) (*ViewResponse, error)
	Watch(*WatchRequest, ViewStream) error
}

// ViewStream is the server side of Watch.
type ViewStream interface {
	Send(*ViewResponse) error
	Context() context.Context
}

// RegisterCuttleServer attaches srv to s.
func RegisterCuttleServer(s grpc.ServiceRegistrar, srv CuttleServer) {
	s.RegisterService(&cuttleServiceDesc, srv)
}

var cuttleServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CuttleServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "JoinRoom", Handler: joinRoomHandler},
		{MethodName: "Submit", Handler: submitHandler},
		{MethodName: "Restart", Handler: restartHandler},
		{MethodName: "GetView", Handler: getViewHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "cuttle/v1/cuttle.json",
}

func joinRoomHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(JoinRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CuttleServer).JoinRoom(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodJoinRoom}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(CuttleServer).JoinRoom(ctx, req.(*JoinRequest))
	})
}

func submitHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SubmitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CuttleServer).Submit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodSubmit}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(CuttleServer).Submit(ctx, req.(*SubmitRequest))
	})
}

func restartHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RestartRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CuttleServer).Restart(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodRestart}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(CuttleServer).Restart(ctx, req.(*RestartRequest))
	})
}

func getViewHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ViewRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CuttleServer).GetView(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetView}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(CuttleServer).GetView(ctx, req.(*ViewRequest))
	})
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(CuttleServer).Watch(in, &viewStream{stream})
}

type viewStream struct {
	grpc.ServerStream
}

func (s *viewStream) Send(m *ViewResponse) error {
	return s.ServerStream.SendMsg(m)
}

// CuttleClient calls the Cuttle service over the JSON codec.
type CuttleClient struct {
	cc grpc.ClientConnInterface
}

// NewCuttleClient wraps cc.
func NewCuttleClient(cc grpc.ClientConnInterface) *CuttleClient {
	return &CuttleClient{cc: cc}
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
}

// JoinRoom seats a player.
func (c *CuttleClient) JoinRoom(ctx context.Context, in *JoinRequest, opts ...grpc.CallOption) (*JoinResponse, error) {
	out := new(JoinResponse)
	if err := c.cc.Invoke(ctx, methodJoinRoom, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// Submit sends one move.
func (c *CuttleClient) Submit(ctx context.Context, in *SubmitRequest, opts ...grpc.CallOption) (*SubmitResponse, error) {
	out := new(SubmitResponse)
	if err := c.cc.Invoke(ctx, methodSubmit, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// Restart deals a new game.
func (c *CuttleClient) Restart(ctx context.Context, in *RestartRequest, opts ...grpc.CallOption) (*ViewResponse, error) {
	out := new(ViewResponse)
	if err := c.cc.Invoke(ctx, methodRestart, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetView fetches one view.
func (c *CuttleClient) GetView(ctx context.Context, in *ViewRequest, opts ...grpc.CallOption) (*ViewResponse, error) {
	out := new(ViewResponse)
	if err := c.cc.Invoke(ctx, methodGetView, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// Watch opens a view stream. The first message is the current view.
func (c *CuttleClient) Watch(ctx context.Context, in *WatchRequest, opts ...grpc.CallOption) (*ViewWatcher, error) {
	stream, err := c.cc.NewStream(ctx, &cuttleServiceDesc.Streams[0], methodWatch, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &ViewWatcher{stream: stream}, nil
}

// ViewWatcher is the client side of Watch.
type ViewWatcher struct {
	stream grpc.ClientStream
}

// Recv blocks for the next view.
func (w *ViewWatcher) Recv() (*ViewResponse, error) {
	out := new(ViewResponse)
	if err := w.stream.RecvMsg(out); err != nil {
		return nil, err
	}
	return out, nil
}
