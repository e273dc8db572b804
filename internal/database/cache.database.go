package database

import (
	"fmt"

	"dgisync/config"

	"github.com/valkey-io/valkey-go"
)

type CacheClient valkey.Client

type Cache struct {
	General CacheClient
	Events  CacheClient
}

// Valkey database indexes.
const (
	// GENERAL_CACHE_INDEX holds the latest run summary.
	GENERAL_CACHE_INDEX = iota
	// EVENTS_CACHE_INDEX carries progress and run pub/sub traffic.
	EVENTS_CACHE_INDEX
)

func (s *DB) initializeCacheDB(config config.Config) error {
	log := s.log.Function("initializeCacheDB")

	address := config.DatabaseCacheAddress
	port := config.DatabaseCachePort
	if address == "" || port == 0 {
		return log.Error("cache address or port is empty")
	}

	initAddress := []string{fmt.Sprintf("%s:%d", address, port)}

	general, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: initAddress,
		SelectDB:    GENERAL_CACHE_INDEX,
	})
	if err != nil {
		return log.Err("failed to create general valkey client", err)
	}

	events, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: initAddress,
		SelectDB:    EVENTS_CACHE_INDEX,
	})
	if err != nil {
		general.Close()
		return log.Err("failed to create events valkey client", err)
	}

	s.Cache = Cache{General: general, Events: events}
	log.Info("Cache clients ready", "address", initAddress[0])

	return nil
}
