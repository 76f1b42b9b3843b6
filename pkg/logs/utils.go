package logs

import (
	"fmt"
	"io"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	levelMu      sync.RWMutex
	defaultLevel = log.InfoLevel
	output       io.Writer
)

// formatter adds default fields to each log entry.
type formatter struct {
	owner string
	lf    log.Formatter
}

// Format satisfies the log.Formatter interface.
func (f *formatter) Format(e *log.Entry) ([]byte, error) {
	e.Message = fmt.Sprintf("[%s] %s", f.owner, e.Message)
	return f.lf.Format(e)
}

// SetLevel parses level and applies it to every logger created afterwards
// and to the logrus standard logger.
func SetLevel(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	levelMu.Lock()
	defaultLevel = lvl
	levelMu.Unlock()
	log.SetLevel(lvl)
	return nil
}

// SetOutput redirects loggers created afterwards, mostly for tests.
func SetOutput(w io.Writer) {
	levelMu.Lock()
	output = w
	levelMu.Unlock()
}

func NewLogger(owner string) *log.Logger {
	levelMu.RLock()
	lvl, out := defaultLevel, output
	levelMu.RUnlock()

	logger := log.New()
	logger.SetLevel(lvl)
	if out != nil {
		logger.SetOutput(out)
	}
	logger.SetFormatter(&formatter{
		owner: owner,
		lf: &log.TextFormatter{
			ForceColors:     true,
			FullTimestamp:   true,
			TimestampFormat: time.StampMilli,
		},
	})
	return logger
}
