package services

import (
	"errors"

	"dgisync/internal/storage"
)

var (
	ErrAddressNotFound    = errors.New("address not found")
	ErrTransientFetch     = errors.New("transient fetch error")
	ErrConsolidationEmpty = errors.New("consolidation produced no rows")
	ErrSentinelRegression = errors.New("sentinel would move backwards")
	ErrRunInProgress      = errors.New("an ingestion run is already in progress")
)

// Upstream request headers, mirroring what a browser sends for a workbook.
const (
	WorkbookAccept = storage.WorkbookContentType + ", application/octet-stream, */*"
	AcceptLanguage = "en-US,en;q=0.9"
)

const (
	DefaultDownloadConcurrency = 3
	tempFilePattern            = ".partial-*"
)

// Dataset footer metadata keys.
const (
	schemaVersionMetadataKey = "dgisync.schema_version"
	documentsMetadataKey     = "dgisync.documents"
)
