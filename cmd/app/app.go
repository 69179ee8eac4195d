package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/volunteerhub/volunteer-hub-api/internal/api"
	"github.com/volunteerhub/volunteer-hub-api/internal/config"
	"github.com/volunteerhub/volunteer-hub-api/internal/db"
	"github.com/volunteerhub/volunteer-hub-api/internal/logger"
)

const defaultReconcileInterval = 5 * time.Minute

func Start() error {
	conf, err := config.Load("./cmd/app/config.yml")
	if err != nil {
		return fmt.Errorf("failed to initialize config -> %w", err)
	}

	if err = logger.Init(conf.API.Environment); err != nil {
		return fmt.Errorf("failed to initialize logger -> %w", err)
	}

	dbURL := os.Getenv("DATABASE_URL")
	var postgresDB *gorm.DB
	if dbURL != "" {
		postgresDB, err = db.OpenPostgresWithURL(dbURL)
	} else {
		postgresDB, err = db.OpenPostgres(conf.Postgres)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database -> %w", err)
	}

	s := api.NewServer(conf, postgresDB)

	go runReconcileSweep(s, conf.API.ReconcileIntervalMinutes)

	addr := ":" + s.Config.API.Port
	zap.L().Info(fmt.Sprintf("starting server at %v", addr))
	if err = s.Router.Run(addr); err != nil {
		return fmt.Errorf("failed to start the server -> %w", err)
	}

	return nil
}

// runReconcileSweep periodically recounts participant totals so a counter
// that drifted from its registrations heals without operator action.
func runReconcileSweep(s *api.Server, intervalMinutes int) {
	interval := defaultReconcileInterval
	if intervalMinutes > 0 {
		interval = time.Duration(intervalMinutes) * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		if err := s.Registrations.ReconcileCounters(ctx); err != nil {
			zap.L().Warn("counter reconciliation sweep failed", zap.Error(err))
		}
		cancel()
	}
}
