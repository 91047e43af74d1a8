package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/finguard/finguard-server/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestNewHasherDefaults(t *testing.T) {
	hasher, err := auth.NewHasher(auth.HasherConfig{Cost: bcrypt.MinCost})
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, hasher.Cost())
}

func TestNewHasherRejectsCostOutOfRange(t *testing.T) {
	_, err := auth.NewHasher(auth.HasherConfig{Cost: bcrypt.MaxCost + 1})
	assert.Error(t, err)

	_, err = auth.NewHasher(auth.HasherConfig{Cost: 1})
	assert.Error(t, err)
}

func TestHasherHashAndCompare(t *testing.T) {
	ctx := context.Background()
	hasher := newTestHasher(t)

	hash, err := hasher.Hash(ctx, "pa55word")
	require.NoError(t, err)

	assert.NoError(t, hasher.Compare(ctx, "pa55word", hash))
	requireTextCode(t, hasher.Compare(ctx, "wrong", hash), auth.TextCodeInvalidCreds)
}

func TestHasherCompareDummy(t *testing.T) {
	hasher := newTestHasher(t)

	err := hasher.CompareDummy(context.Background(), "anything")
	requireTextCode(t, err, auth.TextCodeInvalidCreds)
}

func TestHasherEmptyPassword(t *testing.T) {
	hasher := newTestHasher(t)

	_, err := hasher.Hash(context.Background(), "")
	requireTextCode(t, err, auth.TextCodeEmptyPassword)
}

func TestHasherCancelledContext(t *testing.T) {
	hasher, err := auth.NewHasher(auth.HasherConfig{Cost: 10, Workers: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = hasher.Hash(ctx, "pa55word")
	require.Error(t, err)
	assert.False(t, auth.HasTextCode(err, auth.TextCodeInvalidCreds))
}

func TestHasherTimeout(t *testing.T) {
	hasher, err := auth.NewHasher(auth.HasherConfig{Cost: 12, Workers: 1, Timeout: 5 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	_, err = hasher.Hash(context.Background(), "pa55word")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestHasherConcurrentCallsSharePool(t *testing.T) {
	hasher, err := auth.NewHasher(auth.HasherConfig{Cost: bcrypt.MinCost, Workers: 2})
	require.NoError(t, err)

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hash, err := hasher.Hash(context.Background(), "pa55word")
			if err == nil {
				err = hasher.Compare(context.Background(), "pa55word", hash)
			}
			errs <- err
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}
