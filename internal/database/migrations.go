package database

import (
	"dgisync/internal/models"
)

var MODELS_TO_MIGRATE = []any{
	&models.IngestionRun{},
}

// MigrateModels brings the model tables in line with their gorm definitions.
func (s *DB) MigrateModels() error {
	log := s.log.Function("MigrateModels")

	if s.SQL == nil {
		return log.Error("database is not configured")
	}

	if err := s.SQL.AutoMigrate(MODELS_TO_MIGRATE...); err != nil {
		return log.Err("failed to migrate models", err)
	}

	log.Info("Model migration complete", "models", len(MODELS_TO_MIGRATE))
	return nil
}

// DropModels removes every model table.
func (s *DB) DropModels() error {
	log := s.log.Function("DropModels")

	if s.SQL == nil {
		return log.Error("database is not configured")
	}

	if err := s.SQL.Migrator().DropTable(MODELS_TO_MIGRATE...); err != nil {
		return log.Err("failed to drop model tables", err)
	}

	return nil
}
