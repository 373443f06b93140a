package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-autotrade/internal/logger"
	"github.com/rxtech-lab/argo-autotrade/internal/types"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type CalendarTestSuite struct {
	suite.Suite
	calendar *Calendar
	ny       *time.Location
}

func TestCalendarTestSuite(t *testing.T) {
	suite.Run(t, new(CalendarTestSuite))
}

func (s *CalendarTestSuite) SetupTest() {
	cfg := DefaultCalendarConfig()
	cfg.Holidays = []string{"2025-07-04"}

	calendar, err := NewCalendar(cfg)
	s.Require().NoError(err)
	s.calendar = calendar
	s.ny = calendar.Location()
}

// at returns a New York wall-clock time on Monday 2025-06-02.
func (s *CalendarTestSuite) at(hour, minute, second int) time.Time {
	return time.Date(2025, 6, 2, hour, minute, second, 0, s.ny)
}

func (s *CalendarTestSuite) TestPhases() {
	tests := []struct {
		name     string
		time     time.Time
		expected types.Phase
	}{
		{"before open", s.at(9, 29, 59), types.PhaseClosed},
		{"at open", s.at(9, 30, 0), types.PhasePreOpenFlatten},
		{"pre-open window", s.at(9, 34, 59), types.PhasePreOpenFlatten},
		{"trading starts", s.at(9, 35, 0), types.PhaseActive},
		{"midday", s.at(12, 0, 0), types.PhaseActive},
		{"last active second", s.at(15, 44, 59), types.PhaseActive},
		{"close-out", s.at(15, 45, 0), types.PhaseCloseOutFlatten},
		{"close-out end", s.at(15, 49, 59), types.PhaseCloseOutFlatten},
		{"exit", s.at(15, 50, 0), types.PhaseTerminated},
		{"at close", s.at(16, 0, 0), types.PhaseTerminated},
		{"after close", s.at(16, 0, 1), types.PhaseClosed},
		{"saturday", time.Date(2025, 6, 7, 12, 0, 0, 0, s.ny), types.PhaseClosed},
		{"sunday", time.Date(2025, 6, 8, 12, 0, 0, 0, s.ny), types.PhaseClosed},
		{"holiday", time.Date(2025, 7, 4, 12, 0, 0, 0, s.ny), types.PhaseClosed},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.Equal(tt.expected, s.calendar.Phase(tt.time))
		})
	}
}

func (s *CalendarTestSuite) TestPhaseUsesMarketTimezone() {
	// 13:40 UTC is 09:40 in New York during daylight saving time
	s.Equal(types.PhaseActive, s.calendar.Phase(time.Date(2025, 6, 2, 13, 40, 0, 0, time.UTC)))
	// 14:40 UTC is 09:40 in New York in winter
	s.Equal(types.PhaseActive, s.calendar.Phase(time.Date(2025, 1, 6, 14, 40, 0, 0, time.UTC)))
	s.Equal(types.PhaseClosed, s.calendar.Phase(time.Date(2025, 1, 6, 13, 40, 0, 0, time.UTC)))
}

func (s *CalendarTestSuite) TestTradingDate() {
	// 02:00 UTC on Tuesday is still Monday evening in New York
	s.Equal("2025-06-02", s.calendar.TradingDate(time.Date(2025, 6, 3, 2, 0, 0, 0, time.UTC)))
}

func (s *CalendarTestSuite) TestNextOpen() {
	friday := time.Date(2025, 6, 6, 17, 0, 0, 0, s.ny)
	s.Equal(time.Date(2025, 6, 9, 9, 30, 0, 0, s.ny), s.calendar.NextOpen(friday))

	morning := s.at(8, 0, 0)
	s.Equal(s.at(9, 30, 0), s.calendar.NextOpen(morning))

	beforeHoliday := time.Date(2025, 7, 3, 17, 0, 0, 0, s.ny)
	s.Equal(time.Date(2025, 7, 7, 9, 30, 0, 0, s.ny), s.calendar.NextOpen(beforeHoliday))
}

func (s *CalendarTestSuite) TestInvalidConfig() {
	cfg := DefaultCalendarConfig()
	cfg.Timezone = "Mars/Olympus"
	_, err := NewCalendar(cfg)
	s.True(errors.HasCode(err, errors.ErrCodeSessionConfigError))

	cfg = DefaultCalendarConfig()
	cfg.Open = "9h30"
	_, err = NewCalendar(cfg)
	s.Error(err)

	cfg = DefaultCalendarConfig()
	cfg.Close = "09:00"
	_, err = NewCalendar(cfg)
	s.Error(err)

	cfg = DefaultCalendarConfig()
	cfg.ExitLead = 20 * time.Minute
	_, err = NewCalendar(cfg)
	s.Error(err)

	cfg = DefaultCalendarConfig()
	cfg.Holidays = []string{"July 4th"}
	_, err = NewCalendar(cfg)
	s.Error(err)
}

type SessionManagerTestSuite struct {
	suite.Suite
	tempDir  string
	calendar *Calendar
	now      time.Time
}

func TestSessionManagerTestSuite(t *testing.T) {
	suite.Run(t, new(SessionManagerTestSuite))
}

func (s *SessionManagerTestSuite) SetupTest() {
	tempDir, err := os.MkdirTemp("", "session_manager_test_*")
	s.Require().NoError(err)
	s.tempDir = tempDir

	calendar, err := NewCalendar(DefaultCalendarConfig())
	s.Require().NoError(err)
	s.calendar = calendar
	s.now = time.Date(2025, 6, 2, 9, 31, 0, 0, calendar.Location())
}

func (s *SessionManagerTestSuite) TearDownTest() {
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
}

func (s *SessionManagerTestSuite) TestInitialize_FirstRun() {
	sm := NewSessionManager(s.calendar, logger.NewNopLogger())

	s.Require().NoError(sm.Initialize(s.tempDir, s.now))

	s.Equal("run_1", sm.GetRunID())
	s.Equal(1, sm.GetRunNumber())
	s.Equal(filepath.Join(s.tempDir, "2025-06-02", "run_1"), sm.GetCurrentRunPath())
	s.DirExists(sm.GetCurrentRunPath())
	s.Equal(s.now, sm.GetSessionStart())
}

func (s *SessionManagerTestSuite) TestInitialize_NonSequentialRuns() {
	for _, name := range []string{"run_1", "run_3", "run_7", "notes"} {
		s.Require().NoError(os.MkdirAll(filepath.Join(s.tempDir, "2025-06-02", name), 0755))
	}

	sm := NewSessionManager(s.calendar, logger.NewNopLogger())
	s.Require().NoError(sm.Initialize(s.tempDir, s.now))

	s.Equal("run_8", sm.GetRunID())
}

func (s *SessionManagerTestSuite) TestHandleDateBoundary() {
	sm := NewSessionManager(s.calendar, logger.NewNopLogger())
	s.Require().NoError(sm.Initialize(s.tempDir, s.now))

	crossed, err := sm.HandleDateBoundary(s.now.Add(6 * time.Hour))
	s.Require().NoError(err)
	s.False(crossed)

	crossed, err = sm.HandleDateBoundary(s.now.Add(24 * time.Hour))
	s.Require().NoError(err)
	s.True(crossed)
	s.Equal("2025-06-03", sm.GetCurrentDate())
	s.Equal(filepath.Join(s.tempDir, "2025-06-03", "run_1", "stats.yaml"), sm.GetFilePath("stats.yaml"))
	s.DirExists(sm.GetCurrentRunPath())
}

func (s *SessionManagerTestSuite) TestListSessionsForDate() {
	for _, name := range []string{"run_10", "run_2", "run_1"} {
		s.Require().NoError(os.MkdirAll(filepath.Join(s.tempDir, "2025-06-02", name), 0755))
	}

	sm := NewSessionManager(s.calendar, logger.NewNopLogger())
	s.Require().NoError(sm.Initialize(s.tempDir, s.now))

	runs, err := sm.ListSessionsForDate("2025-06-02")
	s.Require().NoError(err)
	s.Equal([]string{"run_1", "run_2", "run_10", "run_11"}, runs)

	runs, err = sm.ListSessionsForDate("1999-01-01")
	s.Require().NoError(err)
	s.Empty(runs)
}
