package cachesvc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/user"
)

func TestMemoryOTPStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	core.NowFunc = func() time.Time { return now }
	defer func() { core.NowFunc = func() time.Time { return time.Now().UTC() } }()

	store := NewMemoryOTPStore()
	email := "ama@uni.edu"

	_, err := store.Get(ctx, email)
	assert.Equal(t, user.ErrOTPNotFound, err)

	require.NoError(t, store.Save(ctx, email, []byte("h1"), 10*time.Minute))
	n, err := store.IncrAttempts(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entry, err := store.Get(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, user.OTPEntry{Hash: []byte("h1"), Attempts: 1}, entry)

	// saving again replaces the code and resets attempts
	require.NoError(t, store.Save(ctx, email, []byte("h2"), 10*time.Minute))
	entry, err = store.Get(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, user.OTPEntry{Hash: []byte("h2")}, entry)

	now = now.Add(10 * time.Minute)
	_, err = store.Get(ctx, email)
	assert.Equal(t, user.ErrOTPNotFound, err)
	_, err = store.IncrAttempts(ctx, email)
	assert.Equal(t, user.ErrOTPNotFound, err)

	require.NoError(t, store.Delete(ctx, email))
}
