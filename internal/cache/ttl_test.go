package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTTLStore_SetGetAndExpiry(t *testing.T) {
	s := NewTTLStore(20*time.Millisecond, 0)
	defer s.Close()

	key := Key{Upstream: "gamelog", EntityID: "lebron-james", QueryShape: "last60"}
	_, ok := s.Get(key)
	require.False(t, ok)

	s.Set(key, []float64{28.1, 30.2})
	v, ok := s.Get(key)
	require.True(t, ok)
	require.Equal(t, []float64{28.1, 30.2}, v)

	time.Sleep(30 * time.Millisecond)
	_, ok = s.Get(key)
	require.False(t, ok, "entry should expire after TTL elapses")
}

func TestTTLStore_LaterWriteWins(t *testing.T) {
	s := NewTTLStore(time.Hour, 0)
	defer s.Close()

	key := Key{Upstream: "markets", EntityID: "game-1", QueryShape: "odds"}
	s.Set(key, "first")
	s.Set(key, "second")

	v, ok := s.Get(key)
	require.True(t, ok)
	require.Equal(t, "second", v)
}

func TestIdentityStore_AtMostOneWriterPerKey(t *testing.T) {
	s := NewIdentityStore()
	got := s.StoreIfAbsent("lebron james", "player-2544")
	require.Equal(t, "player-2544", got)

	got = s.StoreIfAbsent("lebron james", "player-9999")
	require.Equal(t, "player-2544", got, "first writer wins; later writes to the same key are no-ops")

	id, ok := s.Lookup("lebron james")
	require.True(t, ok)
	require.Equal(t, "player-2544", id)
}
