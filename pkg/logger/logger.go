// Package logger строит zap логгер сервиса.
//
// Компоненты получают *zap.SugaredLogger и пишут пары ключ/значение:
//
//	log.Infow("LLM response received", "model", model, "duration_ms", ms)
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New создаёт логгер с заданным уровнем и форматом ("json" или "console").
// Неизвестный уровень трактуется как info.
func New(levelStr, format string) (*zap.SugaredLogger, error) {
	level := zapcore.InfoLevel
	switch strings.ToLower(levelStr) {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return l.Sugar(), nil
}

// Nop возвращает логгер, который ничего не пишет.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// OrNop подставляет Nop вместо nil. Удобно в конструкторах.
func OrNop(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l == nil {
		return Nop()
	}
	return l
}
