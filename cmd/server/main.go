// Command server runs the BookEasy API.
//
// Usage:
//
//	server serve --redis-url redis://localhost:6379/0
//	server reset-content --redis-url redis://localhost:6379/0
//	server version
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/lowc1012/bookeasy/internal/config"
	"github.com/lowc1012/bookeasy/internal/log"
	"github.com/lowc1012/bookeasy/internal/ratelimiter"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type CLI struct {
	Config config.Config `embed:""`

	Serve        ServeCmd        `cmd:"" default:"1" help:"Run the HTTP server."`
	ResetContent ResetContentCmd `cmd:"" name:"reset-content" help:"Reset the stored CMS content to the defaults."`
	Version      VersionCmd      `cmd:"" help:"Show version information."`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("bookeasy version %s\n", version)
	return nil
}

type ServeCmd struct{}

func (c *ServeCmd) Run(cfg *config.Config) error {
	if err := setup(cfg); err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	srv, err := app.Server()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Logger().Info("Run a server", zap.String("addr", srv.Addr),
			zap.String("algorithm", app.limiter.Type().String()),
			zap.String("store", cfg.RateLimit.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Logger().Info("Shutting down server", zap.Duration("timeout", cfg.ShutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if fixed, ok := app.limiter.(*ratelimiter.FixedWindowLimiter); ok && cfg.RateLimit.SweepInterval > 0 {
		g.Go(func() error {
			return fixed.RunJanitor(gctx, cfg.RateLimit.SweepInterval)
		})
	}

	if err := g.Wait(); err != nil {
		log.Logger().Error("Server stopped", zap.Error(err))
		return err
	}
	log.Logger().Info("Server stopped")
	return nil
}

type ResetContentCmd struct{}

func (c *ResetContentCmd) Run(cfg *config.Config) error {
	if err := setup(cfg); err != nil {
		return err
	}
	defer log.Sync()

	ctx := context.Background()
	app, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.cms.Reset(ctx); err != nil {
		return fmt.Errorf("reset content: %w", err)
	}
	fmt.Println("Content reset to defaults")
	return nil
}

func setup(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return log.Init(cfg.LogLevel, cfg.LogFormat)
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("bookeasy"),
		kong.Description("Appointment booking API with per-client rate limiting."),
		kong.UsageOnError(),
	)
	kctx.FatalIfErrorf(kctx.Run(&cli.Config))
}
