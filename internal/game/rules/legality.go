package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// RejectionKind classifies why a move was refused.
type RejectionKind string

const (
	// KindIllegalMove covers wrong turn, weak scuttles, bad targets, queen protection and full hands.
	KindIllegalMove RejectionKind = "illegal_move"
	// KindStaleTarget means a referenced card is gone; the actor may retry on a fresh snapshot.
	KindStaleTarget RejectionKind = "stale_target"
	// KindConflict means the store refused the commit because the room changed underneath.
	KindConflict RejectionKind = "conflict"
	// KindInvariant means the room is not in a state the move can act on (e.g. nothing pending).
	KindInvariant RejectionKind = "invariant"
)

// LegalityResult represents the result of a legality check.
type LegalityResult struct {
	Legal   bool
	Kind    RejectionKind
	Reason  string
	Details map[string]string
}

// Legal is the passing result.
func Legal() LegalityResult {
	return LegalityResult{Legal: true}
}

// Illegal builds a failing result. details are alternating key/value pairs.
func Illegal(reason string, details ...string) LegalityResult {
	return failing(KindIllegalMove, reason, details)
}

// Stale builds a failing result for a card that no longer exists.
func Stale(reason string, details ...string) LegalityResult {
	return failing(KindStaleTarget, reason, details)
}

// Broken builds a failing result for an invariant violation.
func Broken(reason string, details ...string) LegalityResult {
	return failing(KindInvariant, reason, details)
}

func failing(kind RejectionKind, reason string, details []string) LegalityResult {
	res := LegalityResult{Kind: kind, Reason: reason}
	if len(details) > 0 {
		res.Details = make(map[string]string, len(details)/2)
		for i := 0; i+1 < len(details); i += 2 {
			res.Details[details[i]] = details[i+1]
		}
	}
	return res
}

// Err converts a failing result into a *Rejection; legal results yield nil.
func (r LegalityResult) Err() error {
	if r.Legal {
		return nil
	}
	return &Rejection{Kind: r.Kind, Reason: r.Reason, Details: r.Details}
}

// Rejection is the error returned for a refused move. The room is never mutated
// when one is returned.
type Rejection struct {
	Kind    RejectionKind
	Reason  string
	Details map[string]string
}

func (r *Rejection) Error() string {
	if len(r.Details) == 0 {
		return fmt.Sprintf("%s: %s", r.Kind, r.Reason)
	}
	keys := make([]string, 0, len(r.Details))
	for k := range r.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+r.Details[k])
	}
	return fmt.Sprintf("%s: %s (%s)", r.Kind, r.Reason, strings.Join(parts, " "))
}

// Reject builds a *Rejection directly.
func Reject(kind RejectionKind, reason string, details ...string) *Rejection {
	res := failing(kind, reason, details)
	return &Rejection{Kind: res.Kind, Reason: res.Reason, Details: res.Details}
}

// AsRejection extracts a *Rejection from err's chain.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// KindOf returns the rejection kind of err, or "" when err is not a rejection.
func KindOf(err error) RejectionKind {
	if rej, ok := AsRejection(err); ok {
		return rej.Kind
	}
	return ""
}
