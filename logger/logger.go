package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var (
	log     *logrus.Logger
	logFile *os.File
)

// Init configures the package logger. Unknown levels fall back to info.
func Init(level string) {
	log = logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
}

// SetOutputFile mirrors log output into the given file in addition to stderr.
func SetOutputFile(path string) error {
	if path == "" {
		return nil
	}
	if log == nil {
		Init("info")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	Close()
	logFile = f
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return nil
}

// Close releases the log file, if any, and restores stderr output.
func Close() {
	if logFile == nil {
		return
	}
	if log != nil {
		log.SetOutput(os.Stderr)
	}
	_ = logFile.Close()
	logFile = nil
}

func logger() *logrus.Logger {
	if log == nil {
		Init("info")
	}
	return log
}

func WithField(key string, value interface{}) *logrus.Entry {
	return logger().WithField(key, value)
}

func Debug(args ...interface{}) { logger().Debug(args...) }
func Info(args ...interface{})  { logger().Info(args...) }
func Warn(args ...interface{})  { logger().Warn(args...) }
func Error(args ...interface{}) { logger().Error(args...) }
func Fatal(args ...interface{}) { logger().Fatal(args...) }

func Debugf(format string, args ...interface{}) { logger().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { logger().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { logger().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { logger().Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { logger().Fatalf(format, args...) }
