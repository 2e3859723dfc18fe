// Package logging provides the shared file logger. Log output goes to a
// rotating file under the tool's dot-directory so terminal output stays
// reserved for events and results.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps the rotating file logger.
type Logger struct {
	logger   *log.Logger
	jsonMode bool
}

var (
	globalLogger *Logger
	once         sync.Once
)

// Get returns the singleton logger, creating it on first use. Rotation
// keeps the log bounded without any external logrotate setup.
func Get() *Logger {
	once.Do(func() {
		logDir := ".planweaver"
		_ = os.MkdirAll(logDir, 0755)
		logFile := &lumberjack.Logger{
			Filename:   filepath.Join(logDir, "planweaver.log"),
			MaxSize:    15, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		globalLogger = &Logger{
			logger:   log.New(logFile, "", log.LstdFlags),
			jsonMode: os.Getenv("PLANWEAVER_JSON_LOGS") == "1",
		}
	})
	return globalLogger
}

// Logf writes a formatted message to the log file.
func (l *Logger) Logf(format string, v ...any) {
	if l.jsonMode {
		_ = json.NewEncoder(l.logger.Writer()).Encode(map[string]any{
			"level": "info",
			"msg":   fmt.Sprintf(format, v...),
		})
		return
	}
	l.logger.Printf(format, v...)
}

// LogError writes an error to the log file.
func (l *Logger) LogError(err error) {
	if l.jsonMode {
		_ = json.NewEncoder(l.logger.Writer()).Encode(map[string]any{
			"level": "error",
			"error": err.Error(),
		})
		return
	}
	l.logger.Printf("Error: %s", err)
}

// Close flushes and closes the underlying log file.
func (l *Logger) Close() error {
	if logFile, ok := l.logger.Writer().(*lumberjack.Logger); ok {
		return logFile.Close()
	}
	return nil
}
