package repositories

import (
	"dgisync/internal/database"
)

type Repository struct {
	IngestionRun IngestionRunRepository
}

func New(db database.DB) Repository {
	return Repository{
		IngestionRun: NewIngestionRunRepository(db.Cache.General),
	}
}
