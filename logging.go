// FILE: logging.go
// Package main – logrus setup (console + optional rotating file).
//
// initLogging configures the global logrus logger:
//   • level from LOG_LEVEL (default info)
//   • TextFormatter with full timestamps
//   • when LOG_FILE is set, output additionally goes to a size-rotated file
//     via lumberjack (100 MB, 10 backups, 30 days, compressed)

package main

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

func initLogging(cfg Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
		logrus.Warnf("invalid LOG_LEVEL %q, using info", cfg.LogLevel)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if cfg.LogFile == "" {
		return
	}
	fileWriter := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    100, // MB
		MaxBackups: 10,
		MaxAge:     30, // days
		Compress:   true,
	}
	logrus.SetOutput(io.MultiWriter(os.Stderr, fileWriter))
}
