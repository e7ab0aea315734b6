package localdisc

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	// Console mirrors every event to stderr in human readable form.
	Console    bool
	NoColor    bool
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// LocalDiscLogService writes JSON lines to <logDir>/<nodeID>.log, rotated by size.
type LocalDiscLogService struct {
	logDir        string
	nodeID        string
	mu            sync.RWMutex
	rotator       *lumberjack.Logger
	inner         *log_service.ZerologLogService
	minLevel      int
	filterEnabled bool
}

func NewLocalDiscLogService(logDir string, nodeID string, opts Options, minLogLevel ...string) (*LocalDiscLogService, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, fmt.Sprintf("%s.log", nodeID)),
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}

	var out io.Writer = rotator
	if opts.Console {
		console := zerolog.ConsoleWriter{Out: os.Stderr, NoColor: opts.NoColor, TimeFormat: time.RFC3339}
		out = zerolog.MultiLevelWriter(rotator, console)
	}

	logger := zerolog.New(out).With().Timestamp().Str("component", "sdfbs").Logger()

	service := &LocalDiscLogService{
		logDir:        logDir,
		nodeID:        nodeID,
		rotator:       rotator,
		inner:         log_service.NewZerologLogService(logger, nodeID),
		filterEnabled: true,
		minLevel:      log_service.DebugLevelValue,
	}

	if len(minLogLevel) > 0 && minLogLevel[0] != "" {
		service.SetMinLogLevel(minLogLevel[0])
	}

	return service, nil
}

func (ls *LocalDiscLogService) SetMinLogLevel(level string) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	ls.minLevel = log_service.GetLevelValue(level)
	ls.filterEnabled = true
}

func (ls *LocalDiscLogService) DisableFiltering() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.filterEnabled = false
}

func (ls *LocalDiscLogService) Close() error {
	return ls.rotator.Close()
}

func (ls *LocalDiscLogService) shouldLog(level string) bool {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	if !ls.filterEnabled {
		return true
	}
	return log_service.GetLevelValue(level) >= ls.minLevel
}

func (ls *LocalDiscLogService) Debug(event log_service.LogEvent) {
	if ls.shouldLog(log_service.DebugLevel) {
		ls.inner.Debug(event)
	}
}

func (ls *LocalDiscLogService) Info(event log_service.LogEvent) {
	if ls.shouldLog(log_service.InfoLevel) {
		ls.inner.Info(event)
	}
}

func (ls *LocalDiscLogService) Warn(event log_service.LogEvent) {
	if ls.shouldLog(log_service.WarnLevel) {
		ls.inner.Warn(event)
	}
}

func (ls *LocalDiscLogService) Error(event log_service.LogEvent) {
	if ls.shouldLog(log_service.ErrorLevel) {
		ls.inner.Error(event)
	}
}

var _ log_service.LogService = (*LocalDiscLogService)(nil)
