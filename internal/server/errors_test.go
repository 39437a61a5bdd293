package server

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cuttlefree/cuttle-server-go/internal/game/rules"
	"github.com/cuttlefree/cuttle-server-go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestStatusFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"illegal", rules.Reject(rules.KindIllegalMove, "not your turn"), codes.FailedPrecondition},
		{"stale", rules.Reject(rules.KindStaleTarget, "target is gone"), codes.NotFound},
		{"conflict", rules.Reject(rules.KindConflict, "try again"), codes.Aborted},
		{"invariant", rules.Reject(rules.KindInvariant, "broken"), codes.Internal},
		{"missing room", fmt.Errorf("%w: r1", store.ErrRoomNotFound), codes.NotFound},
		{"store conflict", fmt.Errorf("%w: r1", store.ErrConflict), codes.Aborted},
		{"canceled", context.Canceled, codes.Canceled},
		{"other", errors.New("boom"), codes.Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, StatusFromError(tt.err).Code())
		})
	}
}

func TestRejectionSurvivesStatus(t *testing.T) {
	rej := rules.Reject(rules.KindIllegalMove, "scuttle needs a bigger card", "card", "k3", "target", "k9")

	err := StatusFromError(fmt.Errorf("submit: %w", rej)).Err()
	back, ok := RejectionFromStatus(err)
	require.True(t, ok)
	assert.Equal(t, rules.KindIllegalMove, back.Kind)
	assert.Equal(t, "scuttle needs a bigger card", back.Reason)
	assert.Equal(t, map[string]string{"card": "k3", "target": "k9"}, back.Details)

	_, ok = RejectionFromStatus(StatusFromError(store.ErrRoomNotFound).Err())
	assert.False(t, ok)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "illegal_move", ErrorCode(rules.Reject(rules.KindIllegalMove, "no")))
	assert.Equal(t, CodeNotFound, ErrorCode(fmt.Errorf("%w: r1", store.ErrRoomNotFound)))
	assert.Equal(t, "conflict", ErrorCode(store.ErrConflict))
	assert.Equal(t, CodeInternal, ErrorCode(errors.New("disk on fire")))
}
