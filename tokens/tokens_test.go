package tokens

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e14n/pump2status/types"
)

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewStore(rdb, time.Minute), mr
}

func TestSaveAndTake(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	rt := types.RequestToken{Kind: types.KindStatusNet, Hostname: "example.org", Token: "rt", Secret: "rs", Owner: "alice"}
	require.NoError(t, s.Save(ctx, rt))
	assert.True(t, mr.Exists("pump2status:rt:example.org:rt"))
	assert.Equal(t, time.Minute, mr.TTL("pump2status:rt:example.org:rt"))

	got, err := s.Take(ctx, "example.org", "rt")
	require.NoError(t, err)
	assert.Equal(t, rt, got)

	_, err = s.Take(ctx, "example.org", "rt")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestTake_WrongHost(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, types.RequestToken{Hostname: "example.org", Token: "rt"}))
	_, err := s.Take(ctx, "other.example", "rt")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestTake_Expired(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, types.RequestToken{Hostname: "example.org", Token: "rt"}))
	mr.FastForward(2 * time.Minute)
	_, err := s.Take(ctx, "example.org", "rt")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestSave_Validation(t *testing.T) {
	s, _ := newStore(t)
	var verr *types.ValidationError
	assert.ErrorAs(t, s.Save(context.Background(), types.RequestToken{Hostname: "example.org"}), &verr)
}
