package migration

import (
	"github.com/smallbiznis/talentbay/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Module migrates on startup when DATABASE_AUTO_MIGRATE is set.
var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if !cfg.DBAutoMigrate {
			return nil
		}
		return Run(conn, cfg)
	}),
)
