package main

import (
	"fmt"
	"net/http"

	"github.com/go-telegram/bot"
	"github.com/samber/do/v2"
)

// SetupDI initializes the dependency injection container
func SetupDI() (do.Injector, error) {
	injector := do.New()

	// Register Config
	do.Provide(injector, func(i do.Injector) (*Config, error) {
		cfg, err := LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	})

	// Register shared HTTP client for providers and the router
	do.Provide(injector, func(i do.Injector) (*http.Client, error) {
		return newHTTPClient(), nil
	})

	// Register Store
	do.Provide(injector, func(i do.Injector) (Store, error) {
		cfg := do.MustInvoke[*Config](i)
		store, err := NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open store at %s: %w", cfg.DBPath, err)
		}
		return store, nil
	})

	// Register listing sources
	do.Provide(injector, func(i do.Injector) ([]Source, error) {
		cfg := do.MustInvoke[*Config](i)
		client := do.MustInvoke[*http.Client](i)
		criteria := Criteria{Rooms: cfg.Rooms, MaxPrice: cfg.MaxPrice}
		return []Source{
			NewCianSource(client, criteria),
			NewYandexSource(client, criteria),
		}, nil
	})

	// Register travel-time estimator (nil when not configured)
	do.Provide(injector, func(i do.Injector) (TravelTimeEstimator, error) {
		cfg := do.MustInvoke[*Config](i)
		if !cfg.EnrichmentEnabled() {
			return nil, nil
		}
		client := do.MustInvoke[*http.Client](i)
		return NewRouterClient(client, cfg.RouterBaseURL, cfg.RouterAPIKey, cfg.DestinationAddress), nil
	})

	// Register Bot
	do.Provide(injector, func(i do.Injector) (*bot.Bot, error) {
		cfg := do.MustInvoke[*Config](i)
		b, err := bot.New(cfg.TgBotToken, bot.WithServerURL(cfg.TelegramAPIURL))
		if err != nil {
			return nil, fmt.Errorf("failed to create telegram bot: %w", err)
		}
		return b, nil
	})

	// Register Notifier
	do.Provide(injector, func(i do.Injector) (*Notifier, error) {
		cfg := do.MustInvoke[*Config](i)
		b := do.MustInvoke[*bot.Bot](i)
		store := do.MustInvoke[Store](i)
		return NewNotifier(NewTelegramMessenger(b), store, cfg.ChatIDs, cfg.MsgDelayDuration()), nil
	})

	// Register Pipeline
	do.Provide(injector, func(i do.Injector) (*Pipeline, error) {
		cfg := do.MustInvoke[*Config](i)
		sources := do.MustInvoke[[]Source](i)
		store := do.MustInvoke[Store](i)
		notifier := do.MustInvoke[*Notifier](i)
		estimator := do.MustInvoke[TravelTimeEstimator](i)
		return NewPipeline(cfg, sources, store, notifier, estimator), nil
	})

	return injector, nil
}

// ShutdownDI gracefully shuts down all services
func ShutdownDI(injector do.Injector) error {
	if store, err := do.Invoke[Store](injector); err == nil && store != nil {
		if err := store.Close(); err != nil {
			return err
		}
	}
	return nil
}
