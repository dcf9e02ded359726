package backup

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wpvault/wpvault/internal/model"
)

// maxChainDepth bounds the parent walk. The persistence layer does not
// guarantee acyclicity, so the resolver must never trust it.
const maxChainDepth = 100

// RecordLookup resolves backup records by id. Returns nil with no
// error when the record does not exist.
type RecordLookup interface {
	Lookup(ctx context.Context, id string) (*model.Backup, error)
}

// ChainResolver reconstructs the ordered chain from any backup back to
// its nearest full ancestor.
type ChainResolver struct {
	lookup RecordLookup
	logger zerolog.Logger
}

func NewChainResolver(lookup RecordLookup, logger zerolog.Logger) *ChainResolver {
	return &ChainResolver{
		lookup: lookup,
		logger: logger.With().Str("component", "chain-resolver").Logger(),
	}
}

// Chain returns the reconstruction chain for backupID, oldest first.
// A full or parentless backup yields a single-element chain. A missing
// ancestor truncates the chain at that point rather than failing the
// call; a cycle or over-deep chain does the same, so the walk always
// terminates.
func (r *ChainResolver) Chain(ctx context.Context, backupID string) ([]model.Backup, error) {
	current, err := r.lookup.Lookup(ctx, backupID)
	if err != nil {
		return nil, fmt.Errorf("lookup backup %s: %w", backupID, err)
	}
	if current == nil {
		return nil, fmt.Errorf("backup %s not found", backupID)
	}

	chain := []model.Backup{*current}
	visited := map[string]bool{current.ID: true}

	for current.HasParent() {
		if len(chain) >= maxChainDepth {
			r.logger.Warn().Str("backup_id", backupID).Int("depth", len(chain)).
				Msg("chain exceeds depth bound, truncating")
			break
		}

		parentID := current.ParentBackupID
		if visited[parentID] {
			r.logger.Warn().Str("backup_id", backupID).Str("parent_id", parentID).
				Msg("cycle in backup chain, truncating")
			break
		}

		parent, err := r.lookup.Lookup(ctx, parentID)
		if err != nil {
			return nil, fmt.Errorf("lookup parent %s: %w", parentID, err)
		}
		if parent == nil {
			r.logger.Warn().Str("backup_id", backupID).Str("parent_id", parentID).
				Msg("parent backup missing, truncating chain")
			break
		}

		visited[parent.ID] = true
		chain = append([]model.Backup{*parent}, chain...)
		current = parent
	}

	return chain, nil
}
