// Command loyaltyd is a reference daemon serving the loyalty API over an
// in-memory store. Production deployments embed the engine through the
// Forge extension and a grove-backed store instead.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/shopspring/decimal"

	loyalty "github.com/xraph/loyalty"
	"github.com/xraph/loyalty/business"
	"github.com/xraph/loyalty/store/memory"
	"github.com/xraph/loyalty/transport/rest"
	"github.com/xraph/loyalty/types"
)

func main() {
	cfg := loadConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	st := memory.New()
	eng := loyalty.New(st, loyalty.WithLogger(logger))

	ctx := context.Background()
	if err := eng.Start(ctx); err != nil {
		slog.Error("Engine start failed", "error", err)
		os.Exit(1)
	}

	if err := seedBusiness(ctx, st, cfg); err != nil {
		slog.Error("Seeding demo business failed", "error", err)
		os.Exit(1)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	rest.New(eng, logger).RegisterRoutes(app)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("Server starting", "env", cfg.Env, "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
		}
	}()

	<-stop
	slog.Info("Shutting down server")

	if err := app.Shutdown(); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}

	if err := eng.Stop(); err != nil {
		slog.Error("Engine stop failed", "error", err)
	}

	slog.Info("Server exited")
}

// seedBusiness stores the demo business so the widget routes work out of
// the box against the in-memory store.
func seedBusiness(ctx context.Context, st *memory.Store, cfg *config) error {
	ppd, err := decimal.NewFromString(cfg.PointsPerDollar)
	if err != nil {
		return err
	}

	return st.PutBusiness(ctx, &business.Business{
		ID:                 cfg.BusinessID,
		Name:               cfg.BusinessName,
		PointsPerDollar:    ppd,
		ReferralsForReward: cfg.ReferralsNeeded,
		ReferralReward:     types.USD(cfg.RewardCents),
	})
}
