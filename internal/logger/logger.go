package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New JSON-логгер в stdout; если задан file, записи дублируются в файл.
// Возвращённый close сбрасывает буферы и закрывает файл, вызывать при остановке.
func New(level, file string) (*zap.Logger, func(), error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.Set(level); err != nil {
			return nil, nil, fmt.Errorf("parse log level %q: %w", level, err)
		}
	}
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.Lock(os.Stdout), lvl),
	}
	closeFile := func() {}
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		sink, closeSink, err := zap.Open(file)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		closeFile = closeSink
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(enc), sink, lvl))
	}
	log := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return log, func() {
		// stdout-пайп не поддерживает fsync, ошибку Sync здесь не проверяем
		_ = log.Sync()
		closeFile()
	}, nil
}

// LogAdminAction журнал действий администраторов
func LogAdminAction(log *zap.Logger, adminID int64, action, params string) {
	log.Info("admin_action", zap.Int64("admin_id", adminID), zap.String("action", action), zap.String("params", params))
}
