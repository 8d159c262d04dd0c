package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	ErrInvalidSchedule = errors.New("invalid schedule expression")
	ErrNoNextRun       = errors.New("schedule never fires")
)

// Standard five fields plus descriptors (@daily, @every 1h, ...).
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Parse parses expr. Timezone prefixes are rejected: the location is always
// passed explicitly to NextRun.
func Parse(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSchedule)
	}
	if strings.HasPrefix(expr, "TZ=") || strings.HasPrefix(expr, "CRON_TZ=") {
		return nil, fmt.Errorf("%w: timezone prefixes are not supported", ErrInvalidSchedule)
	}
	s, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}
	return s, nil
}

// NextRun returns the first activation of expr strictly after now, evaluated
// in loc (UTC when nil). The result is in UTC.
func NextRun(expr string, now time.Time, loc *time.Location) (time.Time, error) {
	s, err := Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	next := s.Next(now.In(loc))
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("%w: %q", ErrNoNextRun, expr)
	}
	return next.UTC(), nil
}

// Validate reports whether expr parses and fires at least once.
func Validate(expr string) error {
	_, err := NextRun(expr, time.Now(), time.UTC)
	return err
}
