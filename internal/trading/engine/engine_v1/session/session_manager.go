package session

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-autotrade/internal/logger"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
	"go.uber.org/zap"
)

var runPattern = regexp.MustCompile(`^run_(\d+)$`)

// SessionManager handles run folder management for the trading session.
// It creates and manages the folder structure:
//
//	{dataOutputPath}/{YYYY-MM-DD}/run_N/
//
// Dates are market-local dates taken from the Calendar.
type SessionManager struct {
	calendar       *Calendar
	dataOutputPath string
	runID          string
	runNumber      int
	sessionStart   time.Time
	currentDate    string
	currentRunPath string
	mu             sync.Mutex
	logger         *logger.Logger
}

// NewSessionManager creates a new SessionManager instance.
func NewSessionManager(calendar *Calendar, log *logger.Logger) *SessionManager {
	return &SessionManager{
		calendar:       calendar,
		dataOutputPath: "",
		runID:          "",
		runNumber:      0,
		sessionStart:   time.Time{},
		currentDate:    "",
		currentRunPath: "",
		mu:             sync.Mutex{},
		logger:         log.Named("session"),
	}
}

// Initialize determines the next run number for now's date and creates its folder.
func (s *SessionManager) Initialize(dataOutputPath string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dataOutputPath = dataOutputPath
	s.sessionStart = now
	s.currentDate = s.calendar.TradingDate(now)

	runNumber, err := s.determineRunNumber(s.currentDate)
	if err != nil {
		return err
	}

	s.runNumber = runNumber
	s.runID = "run_" + strconv.Itoa(runNumber)

	if err := s.createFolderStructure(); err != nil {
		return err
	}

	s.logger.Info("Session initialized",
		zap.String("run_id", s.runID),
		zap.String("date", s.currentDate),
		zap.String("path", s.currentRunPath),
	)

	return nil
}

//nolint:funcorder // helper method used by Initialize
func (s *SessionManager) determineRunNumber(date string) (int, error) {
	datePath := filepath.Join(s.dataOutputPath, date)

	if _, err := os.Stat(datePath); os.IsNotExist(err) {
		return 1, nil
	}

	entries, err := os.ReadDir(datePath)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeSessionInitFailed, "failed to read date directory", err)
	}

	maxRunNumber := 0

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		matches := runPattern.FindStringSubmatch(entry.Name())
		if len(matches) == 2 {
			num, err := strconv.Atoi(matches[1])
			if err != nil {
				continue
			}

			if num > maxRunNumber {
				maxRunNumber = num
			}
		}
	}

	return maxRunNumber + 1, nil
}

//nolint:funcorder // helper method used by Initialize and HandleDateBoundary
func (s *SessionManager) createFolderStructure() error {
	s.currentRunPath = filepath.Join(s.dataOutputPath, s.currentDate, s.runID)

	if err := os.MkdirAll(s.currentRunPath, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeSessionInitFailed, "failed to create run folder", err)
	}

	return nil
}

// HandleDateBoundary moves to a folder for timestamp's date when the trading date changed.
// The run number is kept. Returns true if a new folder was created.
func (s *SessionManager) HandleDateBoundary(timestamp time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	newDate := s.calendar.TradingDate(timestamp)
	if newDate == s.currentDate {
		return false, nil
	}

	oldDate := s.currentDate
	s.currentDate = newDate

	if err := s.createFolderStructure(); err != nil {
		return false, err
	}

	s.logger.Info("Date boundary crossed, created new folder",
		zap.String("old_date", oldDate),
		zap.String("new_date", newDate),
		zap.String("run_id", s.runID),
		zap.String("new_path", s.currentRunPath),
	)

	return true, nil
}

func (s *SessionManager) GetCurrentRunPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.currentRunPath
}

// GetRunID returns the session run ID (e.g., "run_1").
func (s *SessionManager) GetRunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.runID
}

func (s *SessionManager) GetRunNumber() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.runNumber
}

func (s *SessionManager) GetSessionStart() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sessionStart
}

// GetCurrentDate returns the current date in YYYY-MM-DD format.
func (s *SessionManager) GetCurrentDate() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.currentDate
}

// GetFilePath returns the full path for a file in the current run folder.
func (s *SessionManager) GetFilePath(filename string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return filepath.Join(s.currentRunPath, filename)
}

// ListSessionsForDate returns all run IDs for a given date, ordered by run number.
func (s *SessionManager) ListSessionsForDate(date string) ([]string, error) {
	datePath := filepath.Join(s.dataOutputPath, date)

	if _, err := os.Stat(datePath); os.IsNotExist(err) {
		return []string{}, nil
	}

	entries, err := os.ReadDir(datePath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataNotFound, "failed to read date directory", err)
	}

	var runs []string

	for _, entry := range entries {
		if entry.IsDir() && runPattern.MatchString(entry.Name()) {
			runs = append(runs, entry.Name())
		}
	}

	sort.Slice(runs, func(i, j int) bool {
		numI, _ := strconv.Atoi(runs[i][4:])
		numJ, _ := strconv.Atoi(runs[j][4:])

		return numI < numJ
	})

	return runs, nil
}
