package session

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-autotrade/internal/types"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
)

const dateLayout = "2006-01-02"

// CalendarConfig describes the regular session of the market.
type CalendarConfig struct {
	// Timezone is an IANA location name; phases are derived from local wall-clock time there.
	Timezone string `yaml:"timezone" json:"timezone" jsonschema:"title=Timezone,description=Market timezone,default=America/New_York" validate:"required"`
	// Open and Close are HH:MM in the market timezone.
	Open  string `yaml:"open" json:"open" jsonschema:"title=Open,description=Regular session open (HH:MM),default=09:30" validate:"required,datetime=15:04"`
	Close string `yaml:"close" json:"close" jsonschema:"title=Close,description=Regular session close (HH:MM),default=16:00" validate:"required,datetime=15:04"`
	// PreOpenWindow is how long after the open residual holdings may be flattened before trading starts.
	PreOpenWindow time.Duration `yaml:"pre_open_window" json:"pre_open_window" jsonschema:"title=Pre-open Window,description=Flatten window after the open" validate:"gte=0"`
	// CloseOutLead is how long before the close the close-out flatten starts.
	CloseOutLead time.Duration `yaml:"close_out_lead" json:"close_out_lead" jsonschema:"title=Close-out Lead,description=Flatten everything this long before the close" validate:"gtfield=ExitLead"`
	// ExitLead is how long before the close the session ends.
	ExitLead time.Duration `yaml:"exit_lead" json:"exit_lead" jsonschema:"title=Exit Lead,description=End the session this long before the close" validate:"gte=0"`
	// Holidays are full-day market closures (YYYY-MM-DD).
	Holidays []string `yaml:"holidays" json:"holidays" jsonschema:"title=Holidays,description=Market holidays (YYYY-MM-DD)" validate:"dive,datetime=2006-01-02"`
}

// DefaultCalendarConfig returns the NYSE/NASDAQ regular session.
func DefaultCalendarConfig() CalendarConfig {
	return CalendarConfig{
		Timezone:      "America/New_York",
		Open:          "09:30",
		Close:         "16:00",
		PreOpenWindow: 5 * time.Minute,
		CloseOutLead:  15 * time.Minute,
		ExitLead:      10 * time.Minute,
		Holidays:      nil,
	}
}

// Validate validates the CalendarConfig struct.
func (c *CalendarConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeSessionConfigError, "invalid market calendar", err)
	}

	return nil
}

// Calendar derives the daily phase from wall-clock time.
type Calendar struct {
	loc           *time.Location
	openMinute    int
	closeMinute   int
	preOpenWindow time.Duration
	closeOutLead  time.Duration
	exitLead      time.Duration
	holidays      map[string]struct{}
}

// NewCalendar validates cfg and builds a Calendar.
func NewCalendar(cfg CalendarConfig) (*Calendar, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeSessionConfigError, err, "unknown timezone %q", cfg.Timezone)
	}

	openMinute, err := parseClock(cfg.Open)
	if err != nil {
		return nil, err
	}

	closeMinute, err := parseClock(cfg.Close)
	if err != nil {
		return nil, err
	}

	session := time.Duration(closeMinute-openMinute) * time.Minute
	if session <= 0 {
		return nil, errors.Newf(errors.ErrCodeSessionConfigError, "close %s must be after open %s", cfg.Close, cfg.Open)
	}

	if cfg.PreOpenWindow+cfg.CloseOutLead > session {
		return nil, errors.New(errors.ErrCodeSessionConfigError, "pre-open window and close-out lead do not fit in the session")
	}

	holidays := make(map[string]struct{}, len(cfg.Holidays))
	for _, h := range cfg.Holidays {
		holidays[h] = struct{}{}
	}

	return &Calendar{
		loc:           loc,
		openMinute:    openMinute,
		closeMinute:   closeMinute,
		preOpenWindow: cfg.PreOpenWindow,
		closeOutLead:  cfg.CloseOutLead,
		exitLead:      cfg.ExitLead,
		holidays:      holidays,
	}, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeSessionConfigError, err, "invalid time of day %q", s)
	}

	return t.Hour()*60 + t.Minute(), nil
}

// Location returns the market timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// TradingDate returns the market-local date of t (YYYY-MM-DD).
func (c *Calendar) TradingDate(t time.Time) string {
	return t.In(c.loc).Format(dateLayout)
}

// IsTradingDay reports whether the market-local date of t is a weekday and not a holiday.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	local := t.In(c.loc)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}

	_, holiday := c.holidays[local.Format(dateLayout)]

	return !holiday
}

// Boundaries are the phase change instants of one trading day.
type Boundaries struct {
	Open        time.Time
	ActiveStart time.Time
	CloseOut    time.Time
	Exit        time.Time
	Close       time.Time
}

// BoundariesFor returns the phase boundaries of t's market-local date.
func (c *Calendar) BoundariesFor(t time.Time) Boundaries {
	local := t.In(c.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)

	open := midnight.Add(time.Duration(c.openMinute) * time.Minute)
	closeAt := midnight.Add(time.Duration(c.closeMinute) * time.Minute)

	return Boundaries{
		Open:        open,
		ActiveStart: open.Add(c.preOpenWindow),
		CloseOut:    closeAt.Add(-c.closeOutLead),
		Exit:        closeAt.Add(-c.exitLead),
		Close:       closeAt,
	}
}

// Phase returns the session phase at t.
// The regular session is [open, close]; inside it the exit boundary wins over the close.
func (c *Calendar) Phase(t time.Time) types.Phase {
	if !c.IsTradingDay(t) {
		return types.PhaseClosed
	}

	b := c.BoundariesFor(t)

	switch {
	case t.Before(b.Open) || t.After(b.Close):
		return types.PhaseClosed
	case !t.Before(b.Exit):
		return types.PhaseTerminated
	case !t.Before(b.CloseOut):
		return types.PhaseCloseOutFlatten
	case !t.Before(b.ActiveStart):
		return types.PhaseActive
	default:
		return types.PhasePreOpenFlatten
	}
}

// NextOpen returns the first session open strictly after t.
func (c *Calendar) NextOpen(t time.Time) time.Time {
	day := t.In(c.loc)

	// a year of consecutive holidays would be a configuration error
	for i := 0; i < 366; i++ {
		b := c.BoundariesFor(day)
		if c.IsTradingDay(b.Open) && b.Open.After(t) {
			return b.Open
		}

		day = time.Date(day.Year(), day.Month(), day.Day()+1, 12, 0, 0, 0, c.loc)
	}

	return time.Time{}
}

// Describe renders the day's schedule for startup logs.
func (c *Calendar) Describe(t time.Time) string {
	b := c.BoundariesFor(t)

	return fmt.Sprintf("open %s, trading %s-%s, close-out %s, exit %s (%s)",
		b.Open.Format("15:04"), b.ActiveStart.Format("15:04"), b.CloseOut.Format("15:04"),
		b.CloseOut.Format("15:04"), b.Exit.Format("15:04"), c.loc)
}
