package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application: stop admitting, let
// in-flight attempts settle, then tear the rest down.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("application-shutting-down")

	a.health.SetReady(false)
	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
	defer shutdownCancel()

	err := a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	// Attempts in flight hold reservations; wait for them to settle or
	// hedge before reporting final balances.
	a.engine.Close()

	err = a.store.Close()
	if err != nil {
		a.logger.Error("storage-close-error", zap.Error(err))
	}

	a.bus.Close()
	a.wg.Wait()

	available, reserved := a.gate.Balances()
	opportunities, executions, successes, hedges, invested, profit := a.stats.snapshot()
	a.logger.Info("session-summary",
		zap.Int("opportunities", opportunities),
		zap.Int("executions", executions),
		zap.Int("successes", successes),
		zap.Int("hedges", hedges),
		zap.Float64("invested", invested),
		zap.Float64("realized-profit", profit),
		zap.Float64("starting-bankroll", a.cfg.Bankroll),
		zap.Float64("final-available", available),
		zap.Float64("final-reserved", reserved),
		zap.Float64("session-pnl", available+reserved-a.cfg.Bankroll))

	a.logger.Info("application-shutdown-complete")
	return nil
}
