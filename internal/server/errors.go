package server

import (
	"context"
	"errors"

	"github.com/cuttlefree/cuttle-server-go/internal/game/rules"
	"github.com/cuttlefree/cuttle-server-go/internal/store"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// errorDomain tags rejection details attached to gRPC statuses.
const errorDomain = "cuttle"

// Error codes sent to websocket clients.
const (
	CodeBadRequest = "bad_request"
	CodeNotJoined  = "not_joined"
	CodeNotFound   = "not_found"
	CodeInternal   = "internal"
)

// StatusFromError maps engine errors onto gRPC status codes. Rule rejections carry
// an ErrorInfo detail with their kind and details so clients can tell them apart.
func StatusFromError(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}
	if st, ok := status.FromError(err); ok {
		return st
	}
	if rej, ok := rules.AsRejection(err); ok {
		code := codes.Unknown
		switch rej.Kind {
		case rules.KindIllegalMove:
			code = codes.FailedPrecondition
		case rules.KindStaleTarget:
			code = codes.NotFound
		case rules.KindConflict:
			code = codes.Aborted
		case rules.KindInvariant:
			code = codes.Internal
		}
		st := status.New(code, rej.Reason)
		withInfo, detailErr := st.WithDetails(&errdetails.ErrorInfo{
			Reason:   string(rej.Kind),
			Domain:   errorDomain,
			Metadata: rej.Details,
		})
		if detailErr != nil {
			return st
		}
		return withInfo
	}
	switch {
	case errors.Is(err, store.ErrRoomNotFound):
		return status.New(codes.NotFound, err.Error())
	case errors.Is(err, store.ErrConflict):
		return status.New(codes.Aborted, err.Error())
	case errors.Is(err, context.Canceled):
		return status.New(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.New(codes.DeadlineExceeded, err.Error())
	}
	return status.New(codes.Unknown, err.Error())
}

// RejectionFromStatus rebuilds the rule rejection carried by a gRPC error.
func RejectionFromStatus(err error) (*rules.Rejection, bool) {
	st, ok := status.FromError(err)
	if !ok {
		return nil, false
	}
	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != errorDomain {
			continue
		}
		return &rules.Rejection{
			Kind:    rules.RejectionKind(info.GetReason()),
			Reason:  st.Message(),
			Details: info.GetMetadata(),
		}, true
	}
	return nil, false
}

// ErrorCode returns the short code websocket clients receive for err.
func ErrorCode(err error) string {
	if kind := rules.KindOf(err); kind != "" {
		return string(kind)
	}
	if errors.Is(err, store.ErrRoomNotFound) {
		return CodeNotFound
	}
	if errors.Is(err, store.ErrConflict) {
		return string(rules.KindConflict)
	}
	return CodeInternal
}
