// Package app wires configuration, signaling, recognition, and the control
// socket into the running subtitle daemon.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"undertone/internal/audio"
	"undertone/internal/call"
	"undertone/internal/config"
	"undertone/internal/ipc"
	"undertone/internal/notify"
	"undertone/internal/observe"
	"undertone/internal/recognizer"
	"undertone/internal/subtitle"
	"undertone/internal/version"
)

// ErrAlreadyRunning mirrors the socket-ownership error for callers that
// do not import the ipc package.
var ErrAlreadyRunning = ipc.ErrAlreadyRunning

const (
	acquireProbeTimeout = 180 * time.Millisecond
	acquireRetries      = 8
)

// RunDaemon joins the call session and serves subtitles until the call
// ends or ctx is cancelled. Blocks for the daemon lifetime.
func RunDaemon(ctx context.Context, loaded config.Loaded, sessionID string, logger *slog.Logger) error {
	cfg := loaded.Config
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		return err
	}
	listener, err := ipc.Acquire(ctx, socketPath, acquireProbeTimeout, acquireRetries)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			return fmt.Errorf("%w: another undertone session owns %q", ErrAlreadyRunning, socketPath)
		}
		return err
	}
	defer func() { _ = listener.Close() }()

	var metrics *observe.Metrics
	if cfg.Metrics.Bind != "" {
		shutdown, err := observe.InitProvider("undertone", version.Version)
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()

		metrics, err = observe.NewMetrics(otel.GetMeterProvider())
		if err != nil {
			return fmt.Errorf("create metrics: %w", err)
		}
	}

	controller := subtitle.NewController(subtitle.Options{
		Logger:      logger,
		Mic:         &audio.Prober{Preferred: cfg.Audio.Input},
		Notifier:    notify.NewDesktop(cfg.Notify.Enable, logger),
		Metrics:     metrics,
		Language:    cfg.Subtitle.Language,
		Languages:   cfg.Subtitle.Languages,
		Placeholder: cfg.Subtitle.Placeholder,
		Delays:      delaysFromConfig(cfg.Subtitle.Restart),
	})
	defer controller.Close()

	engine, err := recognizer.NewWS(recognizer.WSConfig{
		URL:         cfg.Recognizer.URL,
		Language:    cfg.Subtitle.Language,
		SampleRate:  cfg.Recognizer.SampleRate,
		ChunkBytes:  cfg.Recognizer.ChunkBytes,
		DialTimeout: time.Duration(cfg.Recognizer.DialTimeoutMS) * time.Millisecond,
		Source:      &audio.CaptureSource{Preferred: cfg.Audio.Input},
		Logger:      logger,
	}, controller.HandleEvent)
	switch {
	case errors.Is(err, recognizer.ErrUnsupported):
		controller.AttachEngine(nil)
	case err != nil:
		return fmt.Errorf("build recognition engine: %w", err)
	default:
		controller.AttachEngine(engine)
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	client := &call.Client{
		URL:         cfg.Call.URL,
		DialTimeout: time.Duration(cfg.Call.DialTimeoutMS) * time.Millisecond,
		Logger:      logger,
	}
	session, err := client.Join(runCtx, sessionID, func(state call.State) {
		if state == call.StateLeft {
			controller.SetCallReady(false)
			cancelRun()
		}
	})
	if err != nil {
		return err
	}
	defer session.Leave()

	controller.BindSession(session)
	controller.SetCallReady(true)

	logger.Info("daemon started",
		"session", sessionID,
		"socket", socketPath,
		"config", loaded.Path,
	)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return ipc.Serve(gctx, listener, ipc.HandlerFunc(controller.Handle))
	})
	g.Go(func() error {
		interval := time.Duration(cfg.Audio.WatchIntervalMS) * time.Millisecond
		audio.WatchInputs(gctx, interval, logger, controller.SetMicDevice)
		return nil
	})
	if cfg.Metrics.Bind != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.Metrics.Bind, logger)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info("daemon stopped", "session", sessionID)
	return err
}

// serveMetrics exposes /metrics until ctx is cancelled.
func serveMetrics(ctx context.Context, bind string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observe.Handler())
	srv := &http.Server{Addr: bind, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.Error("metrics listener failed", "bind", bind, "error", err.Error())
		return err
	}
}

func delaysFromConfig(restart config.RestartDelay) subtitle.Delays {
	delays := subtitle.DefaultDelays()
	if restart.ErrorMS > 0 {
		delays.Error = time.Duration(restart.ErrorMS) * time.Millisecond
	}
	if restart.EndMS > 0 {
		delays.End = time.Duration(restart.EndMS) * time.Millisecond
	}
	if restart.LanguageMS > 0 {
		delays.Language = time.Duration(restart.LanguageMS) * time.Millisecond
	}
	return delays
}
