package poll

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultInterval is the pause between the end of one cycle and the start of the next.
const DefaultInterval = 600 * time.Second

// Schedule computes when the next cycle starts, given the time the previous one ended.
//
// Supported forms:
//   - Go duration: "10m", "600s" (fixed pause after each cycle)
//   - HH:MM: "00:10" (10 minutes)
//   - cron expression or descriptor: "*/10 * * * *", "@hourly", "@every 10m"
//
// Optional prefixes "interval:" and "cron:" force the interpretation.
type Schedule struct {
	Every time.Duration // set for interval schedules
	Cron  string        // set for cron schedules

	cron cron.Schedule
}

var (
	reHHMM     = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)
	cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

// Every returns an interval schedule.
func Every(d time.Duration) Schedule { return Schedule{Every: d} }

// ParseSchedule parses raw; an empty string yields DefaultInterval.
func ParseSchedule(raw string, loc *time.Location) (Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Every(DefaultInterval), nil
	}
	if loc == nil {
		loc = time.Local
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "interval:"):
		d, err := parseInterval(s[len("interval:"):])
		if err != nil {
			return Schedule{}, err
		}
		return Every(d), nil
	case strings.HasPrefix(low, "cron:"):
		return parseCron(strings.TrimSpace(s[len("cron:"):]), loc)
	case strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@"):
		return parseCron(s, loc)
	}

	d, err := parseInterval(s)
	if err != nil {
		return Schedule{}, fmt.Errorf("invalid schedule %q (use a duration like '10m', HH:MM like '00:10', or cron like '*/10 * * * *')", raw)
	}
	return Every(d), nil
}

func parseCron(expr string, loc *time.Location) (Schedule, error) {
	if expr == "" {
		return Schedule{}, fmt.Errorf("cron expression required")
	}
	spec := expr
	if !strings.HasPrefix(expr, "@") {
		spec = "CRON_TZ=" + loc.String() + " " + expr
	}
	cs, err := cronParser.Parse(spec)
	if err != nil {
		return Schedule{}, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	return Schedule{Cron: expr, cron: cs}, nil
}

func parseInterval(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, fmt.Errorf("interval required")
	}
	if m := reHHMM.FindStringSubmatch(v); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return 0, fmt.Errorf("invalid minutes in %q", v)
		}
		d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
		if d <= 0 {
			return 0, fmt.Errorf("interval must be > 0")
		}
		return d, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: %w", v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}
	return d, nil
}

// Next returns the start time of the cycle following one that ended at t.
func (s Schedule) Next(t time.Time) time.Time {
	if s.cron != nil {
		return s.cron.Next(t)
	}
	every := s.Every
	if every <= 0 {
		every = DefaultInterval
	}
	return t.Add(every)
}

func (s Schedule) String() string {
	if s.cron != nil {
		return "cron:" + s.Cron
	}
	return "every " + s.Every.String()
}
