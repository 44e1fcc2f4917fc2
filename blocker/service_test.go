package blocker

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/headswim/ipguard/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *clock.MockClock) {
	clk := clock.NewMockClock(epoch)
	return NewServiceWithOptions(Options{Clock: clk, Shards: 4}), clk
}

func TestService_BlockAndIsBlocked(t *testing.T) {
	s, _ := newTestService()

	assert.False(t, s.IsBlocked("1.2.3.4"))

	entry := s.Block("1.2.3.4", "test", time.Hour)
	assert.Equal(t, "1.2.3.4", entry.Identifier)
	assert.Equal(t, "test", entry.Reason)
	assert.Equal(t, epoch, entry.BlockedAt)
	assert.Equal(t, epoch.Add(time.Hour), entry.BlockedUntil)

	assert.True(t, s.IsBlocked("1.2.3.4"))
}

func TestService_DefaultDuration(t *testing.T) {
	s, _ := newTestService()

	entry := s.Block("1.2.3.4", "test", 0)
	assert.Equal(t, epoch.Add(DefaultDuration), entry.BlockedUntil)

	custom := NewServiceWithOptions(Options{Clock: clock.NewMockClock(epoch), DefaultDuration: time.Minute})
	entry = custom.Block("1.2.3.4", "test", -time.Second)
	assert.Equal(t, epoch.Add(time.Minute), entry.BlockedUntil)
}

func TestService_ExpiryBoundaries(t *testing.T) {
	s, clk := newTestService()
	s.Block("9.9.9.9", "test", 100*time.Millisecond)

	clk.Advance(50 * time.Millisecond)
	assert.True(t, s.IsBlocked("9.9.9.9"), "blocked at 50ms")

	clk.Advance(50 * time.Millisecond)
	assert.False(t, s.IsBlocked("9.9.9.9"), "expired exactly at blockedUntil")

	clk.Advance(50 * time.Millisecond)
	assert.False(t, s.IsBlocked("9.9.9.9"), "allowed at 150ms")
}

func TestService_IsBlockedRemovesExpiredEntry(t *testing.T) {
	s, clk := newTestService()
	s.Block("9.9.9.9", "test", time.Second)
	clk.Advance(2 * time.Second)

	_, ok := s.Info("9.9.9.9")
	require.True(t, ok, "Info must not clean up")
	assert.Equal(t, 1, s.Len())

	assert.False(t, s.IsBlocked("9.9.9.9"))
	_, ok = s.Info("9.9.9.9")
	assert.False(t, ok, "IsBlocked removes lapsed entries")
	assert.Equal(t, 0, s.Len())
}

func TestService_InfoKeepsLapsedEntry(t *testing.T) {
	s, clk := newTestService()
	s.Block("5.5.5.5", "scanner", time.Minute)
	clk.Advance(time.Hour)

	entry, ok := s.Info("5.5.5.5")
	require.True(t, ok)
	assert.Equal(t, "scanner", entry.Reason)
	assert.False(t, entry.ActiveAt(clk.Now()))
}

func TestService_BlockIsIdempotentLaterWins(t *testing.T) {
	s, clk := newTestService()
	s.Block("1.1.1.1", "first", time.Hour)
	clk.Advance(time.Minute)
	s.Block("1.1.1.1", "second", 10*time.Minute)

	assert.Equal(t, 1, s.Len())
	entry, ok := s.Info("1.1.1.1")
	require.True(t, ok)
	assert.Equal(t, "second", entry.Reason)
	assert.Equal(t, epoch.Add(11*time.Minute), entry.BlockedUntil)
}

func TestService_Unblock(t *testing.T) {
	s, _ := newTestService()
	s.Block("1.1.1.1", "x", time.Hour)

	assert.True(t, s.Unblock("1.1.1.1"))
	assert.False(t, s.IsBlocked("1.1.1.1"))
	assert.False(t, s.Unblock("1.1.1.1"))
}

func TestService_IsolationAcrossIdentifiers(t *testing.T) {
	s, _ := newTestService()
	s.Block("10.0.0.1", "x", time.Hour)

	for i := 2; i < 50; i++ {
		assert.False(t, s.IsBlocked(fmt.Sprintf("10.0.0.%d", i)))
	}
	assert.True(t, s.IsBlocked("10.0.0.1"))
}

func TestService_Sweep(t *testing.T) {
	s, clk := newTestService()
	s.Block("a", "x", time.Minute)
	s.Block("b", "x", time.Hour)
	s.Block("c", "x", 2*time.Minute)

	clk.Advance(5 * time.Minute)
	removed := s.Sweep(clk.Now())
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, s.Len())
	assert.True(t, s.IsBlocked("b"))
}

func TestService_ListReturnsActiveSorted(t *testing.T) {
	s, clk := newTestService()
	s.Block("late", "x", 3*time.Hour)
	s.Block("early", "x", time.Hour)
	s.Block("gone", "x", time.Second)
	clk.Advance(time.Minute)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "early", list[0].Identifier)
	assert.Equal(t, "late", list[1].Identifier)
}

func TestService_ConcurrentBlockVisibleToReaders(t *testing.T) {
	s := NewService()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("192.168.0.%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Block(id, "x", time.Hour)
			assert.True(t, s.IsBlocked(id))
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, s.Len())
}

func TestService_ActiveReturnsEntry(t *testing.T) {
	s, clk := newTestService()

	_, ok := s.Active("7.7.7.7")
	assert.False(t, ok)

	s.Block("7.7.7.7", "probe", time.Minute)
	entry, ok := s.Active("7.7.7.7")
	require.True(t, ok)
	assert.Equal(t, "probe", entry.Reason)

	clk.Advance(time.Minute)
	_, ok = s.Active("7.7.7.7")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}
