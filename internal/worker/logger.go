package worker

import (
	"fmt"
	"log/slog"
	"os"
)

// TaskLogger adapts slog to asynq.Logger.
type TaskLogger struct {
	logger *slog.Logger
}

func NewTaskLogger(logger *slog.Logger) *TaskLogger {
	return &TaskLogger{logger: logger.With("component", "asynq")}
}

func (l *TaskLogger) Debug(args ...interface{}) {
	l.logger.Debug(fmt.Sprint(args...))
}

func (l *TaskLogger) Info(args ...interface{}) {
	l.logger.Info(fmt.Sprint(args...))
}

func (l *TaskLogger) Warn(args ...interface{}) {
	l.logger.Warn(fmt.Sprint(args...))
}

func (l *TaskLogger) Error(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
}

func (l *TaskLogger) Fatal(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
