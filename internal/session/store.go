// Package session keeps the one pending clarification each conversation may
// have, and decides how a reply is merged back into the question it answers.
package session

import (
	"context"
	"errors"
)

// ErrStoreUnavailable wraps backend failures of a Store.
var ErrStoreUnavailable = errors.New("session store unavailable")

// Pending is a clarification waiting for the user's reply.
type Pending struct {
	Question string `json:"question"`
	Prompt   string `json:"prompt"`
}

// Store holds at most one Pending per session id.
type Store interface {
	Get(ctx context.Context, sessionID string) (Pending, bool, error)
	Set(ctx context.Context, sessionID string, p Pending) error
	Clear(ctx context.Context, sessionID string) error
	Ping(ctx context.Context) error
	Close() error
}
