package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.Bool("dry-run", a.cfg.DryRun),
		zap.Bool("ws-enabled", a.cfg.WSEnabled),
		zap.Float64("bankroll", a.cfg.Bankroll),
		zap.String("log-level", a.cfg.LogLevel))

	a.startComponents()
	a.health.SetReady(true)

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort))

	return a.waitForShutdown()
}

func (a *App) startComponents() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		err := a.httpServer.Start()
		if err != nil {
			a.logger.Error("http-server-error", zap.Error(err))
		}
	}()

	a.wg.Add(1)
	go a.trackMarkets()

	a.wg.Add(1)
	go a.trackStats()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.sink.Run(a.ctx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.markets.Run(a.ctx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.gate.Run(a.ctx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.discoverer.Run(a.ctx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		err := a.ingestor.Start(a.ctx)
		if err != nil && a.ctx.Err() == nil {
			a.logger.Error("feed-error", zap.Error(err))
		}
	}()

	if a.userFeed != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			err := a.userFeed.Start(a.ctx)
			if err != nil && a.ctx.Err() == nil {
				a.logger.Error("user-feed-error", zap.Error(err))
			}
		}()
	}

	a.engine.Start(a.ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.detector.Run(a.ctx)
	}()
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown(context.Background())
}
