package lifecycle

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestBQFixture_Lifecycle_Stamp(t *testing.T) {
	t.Parallel()

	t.Run("computed lazily and reused within the window", func(t *testing.T) {
		t.Parallel()
		clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
		s := NewStamp(clock, 2*time.Hour)

		first := s.Millis()
		require.Equal(t, clock.Now().UnixMilli(), first)

		clock.Advance(time.Hour)
		require.Equal(t, first, s.Millis())

		clock.Advance(59 * time.Minute)
		require.Equal(t, first, s.Millis())
	})

	t.Run("refreshed once older than the window", func(t *testing.T) {
		t.Parallel()
		clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
		s := NewStamp(clock, 2*time.Hour)

		first := s.Millis()
		clock.Advance(2*time.Hour + time.Minute)

		second := s.Millis()
		require.NotEqual(t, first, second)
		require.Equal(t, clock.Now().UnixMilli(), second)
	})

	t.Run("explicit refresh", func(t *testing.T) {
		t.Parallel()
		clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
		s := NewStamp(clock, 2*time.Hour)

		first := s.Millis()
		clock.Advance(time.Minute)
		require.Equal(t, clock.Now().UnixMilli(), s.Refresh())
		require.NotEqual(t, first, s.Millis())
	})
}
