package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tidewatch/battlecore/internal/battle"
	"github.com/tidewatch/battlecore/internal/cache"
	"github.com/tidewatch/battlecore/internal/logging"
	"github.com/tidewatch/battlecore/internal/model"
	"github.com/tidewatch/battlecore/internal/storage"
	"github.com/tidewatch/battlecore/pkg/core"
	"gorm.io/gorm"
)

// DefaultInterval is how often the status sample is taken when none is configured.
const DefaultInterval = time.Second

// StatusSource is the part of the battle manager the monitor reads.
type StatusSource interface {
	ActiveSessions() []string
	GetSnapshot(sessionID string) (core.Snapshot, error)
}

// StatusWriter receives each status sample, e.g. the InfluxDB manager.
type StatusWriter interface {
	RecordStatus(ctx context.Context, activeSessions, cachedSnapshots int, lastWrite time.Duration) error
}

// DBWriteDurationProvider is an optional interface that backends can implement
// to expose their last DB write duration for monitoring.
type DBWriteDurationProvider interface {
	GetLastDBWriteDuration() time.Duration
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Battles    StatusSource
	Cache      *cache.SnapshotCache
	LogManager *logging.SlogManager
	Recorder   storage.Backend
	DB         *gorm.DB     // optional, receives service_performance rows
	Influx     StatusWriter // optional
	StatusDir  string       // optional, status.txt is rewritten every sample
	Address    string       // optional, serves the HTTP status surface
	Interval   time.Duration
}

// Status is one sample of the service state.
type Status struct {
	Time                time.Time `json:"time"`
	ActiveSessions      []string  `json:"activeSessions"`
	CachedSnapshots     int       `json:"cachedSnapshots"`
	LastWriteDurationMs float32   `json:"lastWriteDurationMs"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
	server    *http.Server
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewSnapshotCache()
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetLastDBWriteDuration returns the duration of the last DB write cycle.
// Returns 0 if the recorder doesn't support this metric.
func (s *Service) GetLastDBWriteDuration() time.Duration {
	if p, ok := s.deps.Recorder.(DBWriteDurationProvider); ok {
		return p.GetLastDBWriteDuration()
	}
	return 0
}

// GetProgramStatus returns the current program status and, optionally, its
// text rendering for the status file.
func (s *Service) GetProgramStatus(sessions bool, lastWrite bool) (output []string, status Status) {
	status = Status{
		Time:                time.Now(),
		ActiveSessions:      s.deps.Battles.ActiveSessions(),
		CachedSnapshots:     s.deps.Cache.Len(),
		LastWriteDurationMs: float32(s.GetLastDBWriteDuration().Milliseconds()),
	}

	if sessions {
		sessionsStr, err := json.MarshalIndent(status.ActiveSessions, "", "  ")
		if err != nil {
			sessionsStr = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
		}
		output = append(output, string(sessionsStr))
	}
	if lastWrite {
		lastWriteStr, err := json.MarshalIndent(status.LastWriteDurationMs, "", "  ")
		if err != nil {
			lastWriteStr = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
		}
		output = append(output, string(lastWriteStr))
	}

	return output, status
}

// Router returns the read-only HTTP status surface.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		_, status := s.GetProgramStatus(false, false)
		writeJSON(w, http.StatusOK, status)
	})

	r.Get("/sessions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.deps.Cache.All())
	})

	r.Get("/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if snap, ok := s.deps.Cache.Get(id); ok {
			writeJSON(w, http.StatusOK, snap)
			return
		}
		snap, err := s.deps.Battles.GetSnapshot(id)
		if err != nil {
			code := http.StatusInternalServerError
			if errors.Is(err, battle.ErrPrecondition) || errors.Is(err, battle.ErrSessionExpired) {
				code = http.StatusNotFound
			}
			writeJSON(w, code, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode", http.StatusInternalServerError)
	}
}

// Start starts the status monitor goroutine and, when an address is configured,
// the HTTP status server.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	var server *http.Server
	if s.deps.Address != "" {
		server = &http.Server{
			Addr:              s.deps.Address,
			Handler:           s.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	s.server = server
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	logger := s.deps.LogManager.Logger()

	if server != nil {
		go func() {
			logger.Info("Starting status server", "address", s.deps.Address)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Status server stopped", "error", err)
			}
		}()
	}

	go func() {
		defer close(done)

		logger.Debug("Starting status monitor goroutine", "function", "startStatusMonitor")

		var statusFile *os.File
		if s.deps.StatusDir != "" {
			var err error
			statusFile, err = os.Create(filepath.Join(s.deps.StatusDir, "status.txt"))
			if err != nil {
				logger.Error("Error creating status file", "error", err)
			} else {
				defer statusFile.Close()
			}
		}

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.sample(logger, statusFile)
			}
		}
	}()

	return nil
}

// sample takes one status sample and hands it to every configured sink.
func (s *Service) sample(logger *slog.Logger, statusFile *os.File) {
	statusStr, status := s.GetProgramStatus(true, true)

	if statusFile != nil {
		statusFile.Truncate(0)
		statusFile.Seek(0, 0)
		for _, line := range statusStr {
			statusFile.WriteString(line + "\n")
		}
	}

	if s.deps.Influx != nil {
		lastWrite := time.Duration(status.LastWriteDurationMs) * time.Millisecond
		if err := s.deps.Influx.RecordStatus(context.Background(), len(status.ActiveSessions), status.CachedSnapshots, lastWrite); err != nil {
			logger.Error("Error writing status to InfluxDB", "error", err)
		}
	}

	// write model to the database
	if s.deps.DB != nil {
		perf := model.ServicePerformance{
			Time:                status.Time,
			ActiveSessions:      len(status.ActiveSessions),
			CachedSnapshots:     status.CachedSnapshots,
			LastWriteDurationMs: status.LastWriteDurationMs,
		}
		if err := s.deps.DB.Create(&perf).Error; err != nil {
			logger.Error("Error writing perf model to database", "error", err)
		}
	}
}

// Stop stops the status monitor and the HTTP server.
func (s *Service) Stop() {
	s.mu.Lock()
	running := s.isRunning
	if running {
		close(s.stopChan)
		s.isRunning = false
	}
	done := s.done
	server := s.server
	s.server = nil
	s.mu.Unlock()

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
	if running && done != nil {
		<-done
	}
}
