package n5v

import (
	"fmt"
	"strings"
	"time"
)

// ModeFlag is a log severity.  Messages below the current mode are dropped.
type ModeFlag uint

const (
	DebugMode ModeFlag = iota
	InfoMode
	WarningMode
	ErrorMode
	CriticalMode
	SilentMode
)

var modeNames = [...]string{"debug", "info", "warning", "error", "critical", "silent"}

func (m ModeFlag) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", m)
}

// ParseLogMode returns the mode named s, e.g. "warning".
func ParseLogMode(s string) (ModeFlag, error) {
	for i, name := range modeNames {
		if strings.EqualFold(s, name) {
			return ModeFlag(i), nil
		}
	}
	return InfoMode, fmt.Errorf("unknown log level %q", s)
}

var (
	// Verbose logs debug messages whatever the mode.
	Verbose bool

	mode = InfoMode
)

// Logger receives leveled messages formatted like fmt.Printf.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Criticalf(format string, args ...interface{})

	// Shutdown makes sure logs are closed.
	Shutdown()
}

// SetLogMode sets the lowest severity that is logged.  SilentMode turns logging off.
func SetLogMode(newMode ModeFlag) {
	mode = newMode
}

// LogMode returns the lowest severity that is logged.
func LogMode() ModeFlag {
	return mode
}

func enabled(m ModeFlag) bool {
	if m == DebugMode && Verbose {
		return true
	}
	return mode <= m && mode != SilentMode
}

func emit(l Logger, m ModeFlag, format string, args []interface{}) {
	if !enabled(m) {
		return
	}
	switch m {
	case DebugMode:
		l.Debugf(format, args...)
	case InfoMode:
		l.Infof(format, args...)
	case WarningMode:
		l.Warningf(format, args...)
	case ErrorMode:
		l.Errorf(format, args...)
	default:
		l.Criticalf(format, args...)
	}
}

func Debugf(format string, args ...interface{})    { emit(logger, DebugMode, format, args) }
func Infof(format string, args ...interface{})     { emit(logger, InfoMode, format, args) }
func Warningf(format string, args ...interface{})  { emit(logger, WarningMode, format, args) }
func Errorf(format string, args ...interface{})    { emit(logger, ErrorMode, format, args) }
func Criticalf(format string, args ...interface{}) { emit(logger, CriticalMode, format, args) }

// Shutdown closes any log file in use.
func Shutdown() {
	logger.Shutdown()
}

// TimeLog appends the time elapsed since NewTimeLog to each message:
//
//	tlog := n5v.NewTimeLog()
//	...
//	tlog.Debugf("read %d blocks", n)
type TimeLog struct {
	logger Logger
	start  time.Time
}

func NewTimeLog() TimeLog {
	return TimeLog{logger, time.Now()}
}

func (t TimeLog) elapsed(m ModeFlag, format string, args []interface{}) {
	emit(t.logger, m, format+": %s\n", append(args, time.Since(t.start)))
}

func (t TimeLog) Debugf(format string, args ...interface{})   { t.elapsed(DebugMode, format, args) }
func (t TimeLog) Infof(format string, args ...interface{})    { t.elapsed(InfoMode, format, args) }
func (t TimeLog) Warningf(format string, args ...interface{}) { t.elapsed(WarningMode, format, args) }
func (t TimeLog) Errorf(format string, args ...interface{})   { t.elapsed(ErrorMode, format, args) }
