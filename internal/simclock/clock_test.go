package simclock

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingJob struct {
	name string
	runs *[]string
	err  error
}

func (j *recordingJob) Name() string { return j.name }

func (j *recordingJob) Run(ctx context.Context) error {
	*j.runs = append(*j.runs, j.name)
	return j.err
}

func newTestClock() *Clock {
	return New(time.Hour, slog.Default())
}

func TestTickAdvancesThirtyDayCalendar(t *testing.T) {
	c := newTestClock()
	require.Equal(t, "2050-01-01", c.Date())

	for i := 0; i < 29; i++ {
		c.Tick(context.Background())
	}
	require.Equal(t, "2050-01-30", c.Date())

	c.Tick(context.Background())
	require.Equal(t, "2050-02-01", c.Date())
	require.Equal(t, 30, c.DaysElapsed())
}

func TestYearRollover(t *testing.T) {
	c := newTestClock()
	for i := 0; i < 360; i++ {
		c.Tick(context.Background())
	}
	require.Equal(t, "2051-01-01", c.Date())
	require.Equal(t, 360, c.DaysElapsed())
}

func TestDaysSinceUsesFixedCalendar(t *testing.T) {
	c := newTestClock()
	for i := 0; i < 35; i++ {
		c.Tick(context.Background())
	}
	// 2050-02-06 relative to 2050-01-30 is 6 simulated days even though
	// February never has 30 days in the real calendar.
	days, err := c.DaysSince("2050-01-30")
	require.NoError(t, err)
	require.Equal(t, 6, days)

	_, err = c.DaysSince("2050-13-01")
	require.Error(t, err)
	_, err = c.DaysSince("not-a-date")
	require.Error(t, err)
}

func TestJobsRunInRegistrationOrderAndErrorsDoNotAbort(t *testing.T) {
	c := newTestClock()
	var runs []string
	c.Register(&recordingJob{name: "first", runs: &runs, err: context.DeadlineExceeded})
	c.Register(&recordingJob{name: "second", runs: &runs})

	c.Tick(context.Background())
	require.Equal(t, []string{"first", "second"}, runs)
}

func TestResumeRederivesElapsedDaysAndRunsJobsOnce(t *testing.T) {
	c := newTestClock()
	var runs []string
	c.Register(&recordingJob{name: "job", runs: &runs})

	require.NoError(t, c.Resume(context.Background(), "2050-03-20"))
	defer c.Stop()

	require.Equal(t, "2050-03-20", c.Date())
	require.Equal(t, 2*30+19, c.DaysElapsed())
	require.Len(t, runs, 1)

	require.Error(t, c.Resume(context.Background(), "2050-00-10"))
}

func TestStartIsIdempotentAndResetRewinds(t *testing.T) {
	c := newTestClock()
	ctx := context.Background()

	c.Start(ctx)
	c.Start(ctx) // second start must not spawn another driver
	c.Stop()

	c.Tick(ctx)
	c.Reset()
	require.Equal(t, "2050-01-01", c.Date())
	require.Equal(t, 0, c.DaysElapsed())
}
