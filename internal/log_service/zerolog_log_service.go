package log_service

import (
	"github.com/rs/zerolog"
)

// ZerologLogService forwards events to a zerolog.Logger.
type ZerologLogService struct {
	logger zerolog.Logger
	nodeID string
}

func NewZerologLogService(logger zerolog.Logger, nodeID string) *ZerologLogService {
	return &ZerologLogService{logger: logger, nodeID: nodeID}
}

func (ls *ZerologLogService) write(level zerolog.Level, event LogEvent) {
	e := ls.logger.WithLevel(level)
	if e == nil {
		return
	}

	nodeID := event.NodeID
	if nodeID == "" {
		nodeID = ls.nodeID
	}
	if nodeID != "" {
		e = e.Str("node", nodeID)
	}
	if !event.Timestamp.IsZero() {
		e = e.Time("event_time", event.Timestamp)
	}
	if len(event.Metadata) > 0 {
		e = e.Fields(event.Metadata)
	}
	e.Msg(event.Message)
}

func (ls *ZerologLogService) Debug(event LogEvent) { ls.write(zerolog.DebugLevel, event) }
func (ls *ZerologLogService) Info(event LogEvent)  { ls.write(zerolog.InfoLevel, event) }
func (ls *ZerologLogService) Warn(event LogEvent)  { ls.write(zerolog.WarnLevel, event) }
func (ls *ZerologLogService) Error(event LogEvent) { ls.write(zerolog.ErrorLevel, event) }

var _ LogService = (*ZerologLogService)(nil)
