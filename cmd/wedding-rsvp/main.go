package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"wedding-rsvp/internal/app"
	"wedding-rsvp/internal/cache"
	"wedding-rsvp/internal/config"
	"wedding-rsvp/internal/handler"
	"wedding-rsvp/internal/service"
	"wedding-rsvp/internal/whatsapp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		logLevel    string
		addr        string
		pretty      bool
		interactive bool
	)
	flagSet := pflag.NewFlagSet("wedding-rsvp", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to a YAML config file")
	flagSet.StringVar(&logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	flagSet.StringVar(&addr, "addr", "", "listen address (overrides ADDR)")
	flagSet.BoolVar(&pretty, "pretty", false, "human readable log output")
	flagSet.BoolVar(&interactive, "interactive", false, "start the terminal menu for sending invitations")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	// Load configuration
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if addr != "" {
		cfg.Addr = addr
	}

	log, err := app.NewLogger(cfg.LogLevel, pretty)
	if err != nil {
		return err
	}
	log = log.With().Str("component", "wedding-rsvp").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	store, closer, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("error initializing storage: %w", err)
	}
	defer closer.Close()

	guests := service.NewGuestService(store, cache.New(cfg.CacheTTL, time.Now), service.Config{
		BaseURL:        cfg.BaseURL,
		ResponseWindow: cfg.ResponseWindow,
	}, log)

	var sender handler.InvitationSender
	var rsvpHandler *handler.RSVPHandler
	if cfg.WhatsAppEnabled {
		wa, err := whatsapp.NewService(ctx, &whatsapp.Config{DataDir: cfg.WhatsAppDataDir}, log)
		if err != nil {
			return fmt.Errorf("error initializing WhatsApp service: %w", err)
		}
		rsvpHandler = handler.NewRSVPHandler(wa, guests, &handler.Config{
			WeddingDate:     cfg.WeddingDate,
			WeddingLocation: cfg.WeddingLocation,
			BrideName:       cfg.BrideName,
			GroomName:       cfg.GroomName,
		}, log)
		wa.SetMessageHandler(rsvpHandler.HandleMessage)

		log.Info().Msg("Connecting to WhatsApp...")
		if err := wa.Connect(ctx); err != nil {
			return fmt.Errorf("error connecting to WhatsApp: %w", err)
		}
		defer wa.Disconnect()
		sender = rsvpHandler
		log.Info().Msg("The bot is now listening for RSVP responses")
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.NewHTTPHandler(guests, sender, cfg.AdminToken, log).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.AdminToken == "" {
		log.Warn().Msg("ADMIN_TOKEN is not set, admin routes are locked")
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("Listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if interactive {
		go startCLI(ctx, rsvpHandler, guests)
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	log.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return shutdown(shutdownCtx, srv, log)
}

func shutdown(ctx context.Context, srv *http.Server, log zerolog.Logger) error {
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	log.Info().Msg("Goodbye! 👋")
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadConfig()
	}
	return config.Load(path)
}
