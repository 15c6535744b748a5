// Package target holds the entity stores a run writes into and the fixed
// per-collection rules applied to every payload.
package target

import (
	"context"
	"errors"
	"fmt"

	"datasync/internal/integration"
)

var errEntityGone = errors.New("entity no longer exists")

// Entity is a target document found by key.
type Entity struct {
	ID     any
	Fields map[string]any
}

// Store is the persistence contract of one target collection. FindByKey
// returns nil, nil when nothing matches.
type Store interface {
	Count(ctx context.Context) (int, error)
	FindByKey(ctx context.Context, field string, value any) (*Entity, error)
	Insert(ctx context.Context, fields map[string]any) (any, error)
	Update(ctx context.Context, id any, set map[string]any) error
}

// OwnerResolver finds the identity assigned to projects synced without an owner.
// It returns "" when no administrator exists.
type OwnerResolver interface {
	FirstActiveAdmin(ctx context.Context) (string, error)
}

// Registry maps each target collection to its store.
type Registry map[integration.TargetCollection]Store

// Store returns the store for c or an error when none is registered.
func (r Registry) Store(c integration.TargetCollection) (Store, error) {
	s, ok := r[c]
	if !ok {
		return nil, fmt.Errorf("no store registered for collection %q", c)
	}
	return s, nil
}
