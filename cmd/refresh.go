package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shorttrack/shorttrack/internal/analytics"
	"github.com/shorttrack/shorttrack/internal/store"
)

var refreshOnce bool

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Evict expired analytics and rewarm the cache",
	Long:  "Runs on the configured cron schedule; with --once it performs a single refresh and exits.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("refresh"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		svc := initService(st)

		if refreshOnce {
			return refreshCache(ctx, st, svc)
		}

		c := cron.New()
		if _, err := c.AddFunc(cfg.Refresh.Schedule, func() {
			if err := refreshCache(ctx, st, svc); err != nil {
				zap.L().Error("scheduled refresh failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}

		zap.L().Info("refresh daemon started", zap.String("schedule", cfg.Refresh.Schedule))
		c.Start()
		<-ctx.Done()
		<-c.Stop().Done()
		return nil
	},
}

// refreshCache drops expired cache rows, then touches every dashboard
// so expired entries recompute off-peak instead of on a user request.
func refreshCache(ctx context.Context, st store.Store, svc *analytics.Service) error {
	deleted, err := st.DeleteExpiredAnalytics(ctx)
	if err != nil {
		return err
	}
	zap.L().Info("expired cache entries deleted", zap.Int("count", deleted))

	countries, err := st.ListCountries(ctx)
	if err != nil {
		return err
	}
	for _, country := range countries {
		if _, err := svc.CountryAnalytics(ctx, country.ID); err != nil {
			zap.L().Warn("country refresh failed",
				zap.String("country", country.Code),
				zap.Error(err),
			)
		}
	}

	for _, tf := range analytics.Timeframes() {
		if _, err := svc.GlobalRankings(ctx, tf); err != nil {
			zap.L().Warn("global refresh failed", zap.String("timeframe", tf), zap.Error(err))
		}
	}

	zap.L().Info("cache refresh complete", zap.Int("countries", len(countries)))
	return nil
}

func init() {
	refreshCmd.Flags().BoolVar(&refreshOnce, "once", false, "refresh once and exit")
	rootCmd.AddCommand(refreshCmd)
}
