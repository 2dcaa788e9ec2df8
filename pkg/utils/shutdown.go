package utils

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// SetupGracefulShutdown возвращает контекст, который отменяется при
// SIGINT (Ctrl+C) или SIGTERM.
//
// Использование:
//
//	ctx, stop := utils.SetupGracefulShutdown(context.Background(), log)
//	defer stop()
//
// Полученный сигнал логируется один раз. stop освобождает обработчик сигналов.
func SetupGracefulShutdown(parent context.Context, log *zap.SugaredLogger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			if log != nil {
				log.Infow("Received signal, shutting down gracefully", "signal", sig.String())
			}
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
