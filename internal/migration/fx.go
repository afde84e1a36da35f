package migration

import (
	"strings"

	"github.com/plansight/plansight/internal/config"
	jobdomain "github.com/plansight/plansight/internal/job/domain"
	ledgerdomain "github.com/plansight/plansight/internal/ledger/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// sqlite (standalone/dev) has no SQL migration set; AutoMigrate
		// keeps it usable without one.
		if strings.EqualFold(cfg.DBType, "sqlite") {
			return conn.AutoMigrate(
				&ledgerdomain.UsageRecord{},
				&jobdomain.AnalysisJob{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
