package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	hour, minute, err := ParseClock(" 9:05 ")
	require.NoError(t, err)
	require.Equal(t, 9, hour)
	require.Equal(t, 5, minute)

	for _, bad := range []string{"", "24:00", "12:60", "noon", "12-30"} {
		_, _, err := ParseClock(bad)
		require.Error(t, err, bad)
	}
}

func TestBuildDailySpec(t *testing.T) {
	spec, err := buildDailySpec("08:30")
	require.NoError(t, err)
	require.Equal(t, "0 30 8 * * *", spec)
}

func TestOnceScheduleNext(t *testing.T) {
	at := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	s := &onceSchedule{at: at}

	require.Equal(t, at, s.Next(at.Add(-time.Second)))
	require.True(t, s.Next(at).IsZero())
	require.True(t, s.Next(at.Add(time.Hour)).IsZero())
}

func TestOnceScheduleOverdueRunsOnce(t *testing.T) {
	at := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	late := at.Add(2 * time.Second)
	s := &onceSchedule{at: at}

	require.Equal(t, late, s.Next(late))
	require.True(t, s.Next(late.Add(time.Second)).IsZero())
}

func TestSchedulerNextAndRemove(t *testing.T) {
	loc := time.FixedZone("UTC+1", 60*60)
	s := NewSchedulerService(loc)
	require.Equal(t, loc, s.Location())

	at := time.Date(2030, 1, 2, 3, 4, 0, 0, time.UTC)
	id := s.ScheduleOnce(at, func() {})
	next, ok := s.Next(id)
	require.True(t, ok)
	require.True(t, next.Equal(at))

	s.Remove(id)
	_, ok = s.Next(id)
	require.False(t, ok)

	_, err := s.ScheduleDaily("7:61", func() {})
	require.Error(t, err)
	_, err = s.ScheduleInterval(0, func() {})
	require.Error(t, err)
}
