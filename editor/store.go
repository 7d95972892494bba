package editor

import (
	"context"

	"github.com/samber/mo"
)

// SessionStore persists sessions between requests.
// Get returns mo.None when the session does not exist or has expired.
type SessionStore interface {
	Get(ctx context.Context, id string) (mo.Option[*Session], error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}
