// Package simclock maintains the virtual calendar that drives every
// periodic decision in the simulation. Months are always 30 days and years
// always 12 months; only the tick cadence is tied to wall-clock time.
package simclock

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	epochYear  = 2050
	epochMonth = 1
	epochDay   = 1

	daysPerMonth  = 30
	monthsPerYear = 12
)

// Job is a unit of periodic work executed on every simulated day.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Clock counts simulated days and runs registered jobs once per tick.
// Jobs run sequentially in registration order; a failing job is logged and
// never aborts the tick.
type Clock struct {
	mu             sync.Mutex
	daysSinceStart int
	day            int
	month          int
	year           int
	jobs           []Job

	tickEvery time.Duration
	logger    *slog.Logger
	cancel    context.CancelFunc
	running   bool
}

// New returns a Clock positioned at the simulation epoch.
func New(tickEvery time.Duration, logger *slog.Logger) *Clock {
	return &Clock{
		day:       epochDay,
		month:     epochMonth,
		year:      epochYear,
		tickEvery: tickEvery,
		logger:    logger,
	}
}

// Register appends a job to the tick schedule.
func (c *Clock) Register(job Job) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs = append(c.jobs, job)
}

// Date returns the current simulated date as YYYY-MM-DD.
func (c *Clock) Date() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return formatDate(c.year, c.month, c.day)
}

// DaysElapsed returns the number of simulated days since the clock started.
func (c *Clock) DaysElapsed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.daysSinceStart
}

// DaysSince computes elapsed simulated days between date and now using the
// fixed 360-day-year calendar.
func (c *Clock) DaysSince(date string) (int, error) {
	year, month, day, err := ParseDate(date)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return totalDays(c.year, c.month, c.day) - totalDays(year, month, day), nil
}

// Tick advances the calendar by one day and runs every registered job.
func (c *Clock) Tick(ctx context.Context) {
	c.mu.Lock()
	c.daysSinceStart++
	c.day++
	if c.day > daysPerMonth {
		c.day = 1
		c.month++
		if c.month > monthsPerYear {
			c.month = 1
			c.year++
		}
	}
	date := formatDate(c.year, c.month, c.day)
	c.mu.Unlock()

	c.logger.Info("simulated day started", slog.String("date", date))
	c.RunJobs(ctx)
}

// RunJobs executes all registered jobs once, in registration order.
func (c *Clock) RunJobs(ctx context.Context) {
	c.mu.Lock()
	jobs := append([]Job(nil), c.jobs...)
	c.mu.Unlock()

	for _, job := range jobs {
		if err := job.Run(ctx); err != nil {
			c.logger.Error("clock job failed",
				slog.String("job", job.Name()),
				slog.Any("error", err))
		}
	}
}

// Start launches the recurring tick driver. Starting a running clock is a
// no-op.
func (c *Clock) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	tickCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	go c.loop(tickCtx)
}

func (c *Clock) loop(ctx context.Context) {
	ticker := time.NewTicker(c.tickEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

// Stop halts the tick driver without touching the calendar.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		c.cancel()
		c.running = false
	}
}

// Reset stops the driver and rewinds the calendar to the epoch.
func (c *Clock) Reset() {
	c.Stop()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.daysSinceStart = 0
	c.day = epochDay
	c.month = epochMonth
	c.year = epochYear
}

// Resume re-derives clock state from a persisted date, runs every job once
// and restarts the tick driver.
func (c *Clock) Resume(ctx context.Context, date string) error {
	year, month, day, err := ParseDate(date)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.year = year
	c.month = month
	c.day = day
	c.daysSinceStart = totalDays(year, month, day) - totalDays(epochYear, epochMonth, epochDay)
	c.mu.Unlock()

	c.RunJobs(ctx)
	c.Start(ctx)
	return nil
}

// ParseDate splits a YYYY-MM-DD simulated date. time.Parse is deliberately
// not used here: the simulated calendar produces dates like 2050-02-30 that
// the real calendar rejects.
func ParseDate(date string) (year, month, day int, err error) {
	parts := strings.Split(date, "-")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("simclock: malformed date %q", date)
	}
	year, err = strconv.Atoi(parts[0])
	if err == nil {
		month, err = strconv.Atoi(parts[1])
	}
	if err == nil {
		day, err = strconv.Atoi(parts[2])
	}
	if err != nil {
		return 0, 0, 0, fmt.Errorf("simclock: malformed date %q", date)
	}
	if month < 1 || month > monthsPerYear || day < 1 || day > daysPerMonth {
		return 0, 0, 0, fmt.Errorf("simclock: date %q outside simulated calendar", date)
	}
	return year, month, day, nil
}

func totalDays(year, month, day int) int {
	return year*daysPerMonth*monthsPerYear + (month-1)*daysPerMonth + (day - 1)
}

func formatDate(year, month, day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}
