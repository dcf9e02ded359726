package backup

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpvault/wpvault/internal/model"
)

func record(id, typ, parent string) *model.Backup {
	return &model.Backup{
		BackupMetadata: model.BackupMetadata{
			ID:             id,
			SiteID:         "site-1",
			Type:           typ,
			ParentBackupID: parent,
		},
	}
}

func TestChain_FullBackupIsSingleElement(t *testing.T) {
	lookup := mapLookup{"full-1": record("full-1", model.BackupTypeFull, "")}
	r := NewChainResolver(lookup, zerolog.Nop())

	chain, err := r.Chain(context.Background(), "full-1")
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, "full-1", chain[0].ID)
}

func TestChain_ParentlessIncrementalIsSingleElement(t *testing.T) {
	lookup := mapLookup{"inc-1": record("inc-1", model.BackupTypeIncremental, "")}
	r := NewChainResolver(lookup, zerolog.Nop())

	chain, err := r.Chain(context.Background(), "inc-1")
	require.NoError(t, err)
	assert.Len(t, chain, 1)
}

func TestChain_DepthN_OrderedOldestFirst(t *testing.T) {
	lookup := mapLookup{"full": record("full", model.BackupTypeFull, "")}
	parent := "full"
	for i := 1; i <= 4; i++ {
		id := fmt.Sprintf("inc-%d", i)
		lookup[id] = record(id, model.BackupTypeIncremental, parent)
		parent = id
	}
	r := NewChainResolver(lookup, zerolog.Nop())

	chain, err := r.Chain(context.Background(), "inc-4")
	require.NoError(t, err)
	require.Len(t, chain, 5)

	assert.Equal(t, "full", chain[0].ID)
	for i := 1; i <= 4; i++ {
		assert.Equal(t, fmt.Sprintf("inc-%d", i), chain[i].ID)
	}
}

func TestChain_MissingParentTruncates(t *testing.T) {
	lookup := mapLookup{
		"inc-2": record("inc-2", model.BackupTypeIncremental, "inc-1"),
		"inc-1": record("inc-1", model.BackupTypeIncremental, "gone"),
	}
	r := NewChainResolver(lookup, zerolog.Nop())

	chain, err := r.Chain(context.Background(), "inc-2")
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "inc-1", chain[0].ID)
	assert.Equal(t, "inc-2", chain[1].ID)
}

func TestChain_CycleTerminates(t *testing.T) {
	lookup := mapLookup{
		"a": record("a", model.BackupTypeIncremental, "b"),
		"b": record("b", model.BackupTypeIncremental, "c"),
		"c": record("c", model.BackupTypeIncremental, "a"),
	}
	r := NewChainResolver(lookup, zerolog.Nop())

	chain, err := r.Chain(context.Background(), "a")
	require.NoError(t, err)
	assert.NotEmpty(t, chain)
	assert.LessOrEqual(t, len(chain), 3)
}

func TestChain_SelfCycleTerminates(t *testing.T) {
	lookup := mapLookup{"a": record("a", model.BackupTypeIncremental, "a")}
	r := NewChainResolver(lookup, zerolog.Nop())

	chain, err := r.Chain(context.Background(), "a")
	require.NoError(t, err)
	assert.Len(t, chain, 1)
}

func TestChain_DepthBound(t *testing.T) {
	lookup := mapLookup{}
	// Chain much deeper than the bound, no full backup at the bottom.
	for i := 0; i < maxChainDepth*2; i++ {
		id := fmt.Sprintf("b-%d", i)
		lookup[id] = record(id, model.BackupTypeIncremental, fmt.Sprintf("b-%d", i+1))
	}
	lookup[fmt.Sprintf("b-%d", maxChainDepth*2)] = record(fmt.Sprintf("b-%d", maxChainDepth*2), model.BackupTypeFull, "")
	r := NewChainResolver(lookup, zerolog.Nop())

	chain, err := r.Chain(context.Background(), "b-0")
	require.NoError(t, err)
	assert.Len(t, chain, maxChainDepth)
}

func TestChain_UnknownBackup(t *testing.T) {
	r := NewChainResolver(mapLookup{}, zerolog.Nop())

	_, err := r.Chain(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
