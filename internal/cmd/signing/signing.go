// Package signing boots the signing HTTP service.
package signing

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/sheqdesk/signing/internal/platform/config"
	platformotel "github.com/sheqdesk/signing/internal/platform/otel"
	"github.com/sheqdesk/signing/internal/platform/timeouts"
	notify "github.com/sheqdesk/signing/internal/services/notify/domain"
	notifysqlite "github.com/sheqdesk/signing/internal/services/notify/storage/sqlite"
	"github.com/sheqdesk/signing/internal/services/signing/api/httpapi"
	"github.com/sheqdesk/signing/internal/services/signing/app"
	"github.com/sheqdesk/signing/internal/services/signing/domain/token"
)

// Config holds signing command configuration.
type Config struct {
	Port          int           `env:"SHEQDESK_SIGNING_PORT"           envDefault:"8090"`
	DBPath        string        `env:"SHEQDESK_SIGNING_DB_PATH"        envDefault:"signing.db"`
	NotifyDBPath  string        `env:"SHEQDESK_SIGNING_NOTIFY_DB_PATH" envDefault:"notify.db"`
	RetryInterval time.Duration `env:"SHEQDESK_SIGNING_RETRY_INTERVAL" envDefault:"1m"`
}

// ParseConfig parses environment defaults and flag overrides into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs.IntVar(&cfg.Port, "port", cfg.Port, "The signing HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the signing SQLite database")
	fs.StringVar(&cfg.NotifyDBPath, "notify-db", cfg.NotifyDBPath, "Path to the notify SQLite database")
	fs.DurationVar(&cfg.RetryInterval, "retry-interval", cfg.RetryInterval, "Delivery retry sweep interval")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the signing server and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	shutdownTracing, err := platformotel.Setup(ctx, "signing")
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Printf("shutdown tracing: %v", err)
		}
	}()

	application, err := app.New(cfg.DBPath, token.LoadConfigFromEnv())
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Printf("close signing store: %v", err)
		}
	}()

	notifyStore, err := notifysqlite.Open(cfg.NotifyDBPath)
	if err != nil {
		return fmt.Errorf("open notify store: %w", err)
	}
	defer func() {
		if err := notifyStore.Close(); err != nil {
			log.Printf("close notify store: %v", err)
		}
	}()

	dispatcher := notify.NewDispatcher(notifyStore, notify.LogSender{}, nil, nil)
	go retryLoop(ctx, dispatcher, cfg.RetryInterval)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           httpapi.New(application, dispatcher).Handler(),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// retryLoop sweeps due deliveries until ctx is cancelled.
func retryLoop(ctx context.Context, dispatcher *notify.Dispatcher, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			outcomes, err := dispatcher.ProcessDue(ctx, 50)
			if err != nil {
				log.Printf("delivery retry sweep: %v", err)
				continue
			}
			for _, outcome := range outcomes {
				if outcome.LastError != "" {
					log.Printf("delivery %s attempt %d: %s", outcome.ID, outcome.Attempts, outcome.LastError)
				}
			}
		}
	}
}
