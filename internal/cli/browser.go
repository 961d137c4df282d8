package cli

import (
	"context"
	"log/slog"

	"github.com/roach88/shopcheck/internal/config"
	"github.com/roach88/shopcheck/internal/target"
	"github.com/roach88/shopcheck/internal/target/cdp"
	"github.com/roach88/shopcheck/internal/target/playwright"
)

// newBrowserFactory opens the driver named by cfg.Driver.
func newBrowserFactory(ctx context.Context, cfg config.Config, install bool, logger *slog.Logger) (target.Factory, error) {
	switch cfg.Driver {
	case "cdp":
		f, err := cdp.NewFactory(ctx, cdp.Options{
			RemoteURL: cfg.RemoteURL,
			Headless:  cfg.Headless,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		f, err := playwright.NewFactory(playwright.Options{
			Browser:  cfg.Browser,
			Headless: cfg.Headless,
			Install:  install,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		return f, nil
	}
}
