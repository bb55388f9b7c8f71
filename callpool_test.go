package Gozonal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallPool_AcquireRelease(t *testing.T) {
	p := NewCallPool(2)
	assert.Equal(t, 2, p.Size())

	ctx := context.Background()
	require.NoError(t, p.Acquire(ctx))
	require.NoError(t, p.Acquire(ctx))
	assert.Equal(t, 2, p.InUse())

	timeout, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Acquire(timeout), context.DeadlineExceeded)

	p.Release()
	p.Release()
	assert.Zero(t, p.InUse())
}

func TestCallPool_Do(t *testing.T) {
	p := NewCallPool(1)

	v, err := Do(context.Background(), p, func() (int, error) {
		assert.Equal(t, 1, p.InUse())
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Zero(t, p.InUse())

	require.NoError(t, p.Acquire(context.Background()))
	defer p.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	_, err = Do(ctx, p, func() (int, error) {
		called = true
		return 0, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestCallPool_DefaultSize(t *testing.T) {
	n := DefaultCallPoolSize()
	assert.GreaterOrEqual(t, n, 4)
	assert.LessOrEqual(t, n, 16)
	assert.Equal(t, n, NewCallPool(0).Size())
	assert.Same(t, GetCallPool(), GetCallPool())
}
