package controllers

import (
	"dgisync/internal/services"

	runsController "dgisync/internal/controllers/runs"
)

type Controllers struct {
	Runs runsController.RunsControllerInterface
}

func New(services services.Service) Controllers {
	return Controllers{
		Runs: runsController.New(services),
	}
}
