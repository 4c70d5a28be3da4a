package storage

import (
	"context"

	"github.com/your-org/facetag/internal/clusters"
)

// ClusterStore adapts PostgresStore to the clusters.Store interface. The only
// mismatch is WithTx: the closure there takes the interface, not the concrete
// store, so the transaction-scoped store has to be re-wrapped.
type ClusterStore struct {
	*PostgresStore
}

func NewClusterStore(s *PostgresStore) ClusterStore {
	return ClusterStore{PostgresStore: s}
}

func (c ClusterStore) WithTx(ctx context.Context, fn func(tx clusters.Store) error) error {
	return c.PostgresStore.WithTx(ctx, func(tx *PostgresStore) error {
		return fn(ClusterStore{PostgresStore: tx})
	})
}
