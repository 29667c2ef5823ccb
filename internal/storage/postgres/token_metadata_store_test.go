package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpswap-indexer/internal/domain"
	"pumpswap-indexer/internal/storage"
)

func TestTokenMetadataStore_UpsertAndGetByMint(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	store := NewTokenMetadataStore(pool)

	metadata := &domain.TokenMetadata{
		Mint:        "MetadataMint1",
		MetadataPDA: "PDA1",
		Name:        ptr("Test Token"),
		Symbol:      ptr("TST"),
		Decimals:    6,
		Supply:      ptr(1000000.0),
		FetchedAt:   1700000000,
	}

	require.NoError(t, store.Upsert(ctx, metadata))

	retrieved, err := store.GetByMint(ctx, "MetadataMint1")
	require.NoError(t, err)

	assert.Equal(t, metadata.Mint, retrieved.Mint)
	assert.Equal(t, "PDA1", retrieved.MetadataPDA)
	require.NotNil(t, retrieved.Name)
	assert.Equal(t, "Test Token", *retrieved.Name)
	require.NotNil(t, retrieved.Symbol)
	assert.Equal(t, "TST", *retrieved.Symbol)
	assert.Equal(t, 6, retrieved.Decimals)
	require.NotNil(t, retrieved.Supply)
	assert.InDelta(t, 1000000.0, *retrieved.Supply, 0.0001)
	assert.Equal(t, int64(1700000000), retrieved.FetchedAt)
}

func TestTokenMetadataStore_UpsertReplaces(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	store := NewTokenMetadataStore(pool)

	require.NoError(t, store.Upsert(ctx, &domain.TokenMetadata{
		Mint: "M", Name: ptr("Old"), Decimals: 9, FetchedAt: 1,
	}))
	require.NoError(t, store.Upsert(ctx, &domain.TokenMetadata{
		Mint: "M", Symbol: ptr("NEW"), Decimals: 6, FetchedAt: 2,
	}))

	got, err := store.GetByMint(ctx, "M")
	require.NoError(t, err)
	assert.Nil(t, got.Name)
	assert.Equal(t, "NEW", *got.Symbol)
	assert.Equal(t, 6, got.Decimals)
	assert.Equal(t, int64(2), got.FetchedAt)
	assert.Empty(t, got.MetadataPDA)
}

func TestTokenMetadataStore_NotFound(t *testing.T) {
	pool := setupTestDB(t)

	store := NewTokenMetadataStore(pool)

	_, err := store.GetByMint(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTokenMetadataStore_InvalidInput(t *testing.T) {
	pool := setupTestDB(t)

	store := NewTokenMetadataStore(pool)

	assert.ErrorIs(t, store.Upsert(context.Background(), &domain.TokenMetadata{}), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Upsert(context.Background(), nil), storage.ErrInvalidInput)
}
