package redisad_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisad "gymdir/internal/adapters/redis"
	"gymdir/internal/domain"
)

func newCache(t *testing.T) (*redisad.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redisad.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCache_SetGetDel(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	types := []domain.EquipmentType{{ID: 1, Slug: "smith-machine", Name: "Smith machine", Category: "strength"}}
	require.NoError(t, c.Set(ctx, "equipment:types", types, 60))
	assert.True(t, mr.Exists("gymdir:equipment:types"))

	var got []domain.EquipmentType
	ok, err := c.Get(ctx, "equipment:types", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types, got)

	require.NoError(t, c.Del(ctx, "equipment:types"))
	ok, err = c.Get(ctx, "equipment:types", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_TTLExpires(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "candidate:1", map[string]int{"id": 1}, 30))
	mr.FastForward(31 * time.Second)

	var got map[string]int
	ok, err := c.Get(ctx, "candidate:1", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_UndecodableValueIsMiss(t *testing.T) {
	c, mr := newCache(t)
	require.NoError(t, mr.Set("gymdir:candidate:2", "not json"))

	var got map[string]any
	ok, err := c.Get(context.Background(), "candidate:2", &got)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("gymdir:candidate:2"))
}

func TestCache_UnavailableIsInfrastructure(t *testing.T) {
	c, mr := newCache(t)
	mr.Close()

	var got map[string]any
	_, err := c.Get(context.Background(), "candidate:3", &got)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInfrastructure))
}
