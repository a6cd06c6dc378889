package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEveryPredicate(t *testing.T) {
	due := Every(time.Hour)
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

	require.True(t, due(now, time.Time{}), "first tick fires")
	require.False(t, due(now, now.Add(-30*time.Minute)))
	require.True(t, due(now, now.Add(-time.Hour)))
}

func TestDailyAtPredicate(t *testing.T) {
	due := DailyAt(8, 0)
	morning := time.Date(2024, time.March, 15, 8, 1, 0, 0, time.UTC)

	require.False(t, due(morning.Add(-10*time.Minute), time.Time{}), "before 08:00")
	require.True(t, due(morning, time.Time{}))
	require.False(t, due(morning.Add(time.Hour), morning), "already ran today")
	require.True(t, due(morning.AddDate(0, 0, 1), morning), "fires again next day")
}

func TestWeeklyAtPredicate(t *testing.T) {
	due := WeeklyAt(time.Sunday, 3, 0)
	sunday := time.Date(2024, time.March, 17, 3, 5, 0, 0, time.UTC)
	require.Equal(t, time.Sunday, sunday.Weekday())

	require.True(t, due(sunday, time.Time{}))
	require.False(t, due(sunday.Add(time.Hour), sunday))
	// Mid-week, having run on Sunday.
	require.False(t, due(sunday.AddDate(0, 0, 3), sunday))
	// The following Sunday.
	require.True(t, due(sunday.AddDate(0, 0, 7), sunday))
}

func TestRunDueExecutesInTableOrder(t *testing.T) {
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	var order []string
	tasks := []Task{
		{Name: "a", Due: Every(time.Hour), Run: func(context.Context) error {
			order = append(order, "a")
			return nil
		}},
		{Name: "b", Due: Every(time.Hour), Run: func(context.Context) error {
			order = append(order, "b")
			return nil
		}},
	}
	s := New(tasks, nil).WithClock(func() time.Time { return now })

	s.RunDue(context.Background())
	require.Equal(t, []string{"a", "b"}, order)

	// Nothing is due again until an hour passes.
	s.RunDue(context.Background())
	require.Equal(t, []string{"a", "b"}, order)

	now = now.Add(time.Hour)
	s.RunDue(context.Background())
	require.Equal(t, []string{"a", "b", "a", "b"}, order)
}

func TestRunDueSurvivesPanicAndError(t *testing.T) {
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	ran := false
	tasks := []Task{
		{Name: "panics", Due: Every(time.Hour), Run: func(context.Context) error {
			panic("boom")
		}},
		{Name: "fails", Due: Every(time.Hour), Run: func(context.Context) error {
			return errors.New("nope")
		}},
		{Name: "runs", Due: Every(time.Hour), Run: func(context.Context) error {
			ran = true
			return nil
		}},
	}
	s := New(tasks, nil).WithClock(func() time.Time { return now })

	require.NotPanics(t, func() { s.RunDue(context.Background()) })
	require.True(t, ran, "later tasks still run after a panic")
}

func TestStartStopIdempotent(t *testing.T) {
	s := New(nil, nil)
	s.Start()
	s.Start()
	s.Stop(time.Second)
	s.Stop(time.Second)
}
