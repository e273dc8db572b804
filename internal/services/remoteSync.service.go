package services

import (
	"context"
	"path/filepath"

	"dgisync/config"
	"dgisync/internal/types"

	logger "github.com/Bparsons0904/goLogger"
)

const (
	SourcesFolder = "sources"
	DatasetFolder = "dataset"
)

// RemoteStore is the object store boundary. Upsert on an existing name keeps
// that object's id.
type RemoteStore interface {
	List(ctx context.Context, folder string) ([]types.RemoteObject, error)
	Upsert(ctx context.Context, localPath, remoteName string) (string, error)
	Delete(ctx context.Context, id string) error
}

type RemoteSyncService struct {
	store  RemoteStore
	naming types.ArtifactNaming
	log    logger.Logger
}

func NewRemoteSyncService(config config.Config, store RemoteStore) *RemoteSyncService {
	return &RemoteSyncService{
		store:  store,
		naming: types.ArtifactNaming{Prefix: config.ArtifactPrefix, Extension: config.ArtifactExt},
		log:    logger.New("remoteSyncService"),
	}
}

// Sync uploads local artifacts missing remotely, upserts the dataset, and
// removes remote artifacts older than windowStart. Remote names that do not
// parse are always kept. Individual failures are counted, never fatal.
func (rs *RemoteSyncService) Sync(
	ctx context.Context,
	idx *LocalIndex,
	consolidation *types.ConsolidationResult,
	windowStart types.PeriodKey,
) types.SyncResult {
	log := rs.log.Function("Sync")
	timer := log.Timer("Remote sync")
	defer timer()

	var result types.SyncResult
	fail := func(msg string, err error, kv ...any) {
		log.Er(msg, err, kv...)
		result.Failed++
		result.Errors = append(result.Errors, err.Error())
	}

	remote, err := rs.store.List(ctx, SourcesFolder)
	if err != nil {
		fail("failed to list remote artifacts", err)
		return result
	}

	present := make(map[string]struct{}, len(remote))
	for _, obj := range remote {
		present[obj.Name] = struct{}{}
	}

	for _, artifact := range idx.Sorted() {
		if artifact.Key.Less(windowStart) {
			continue
		}
		name := filepath.Base(artifact.Path)
		if _, ok := present[name]; ok {
			continue
		}
		if _, err := rs.store.Upsert(ctx, artifact.Path, SourcesFolder+"/"+name); err != nil {
			fail("failed to upload artifact", err, "name", name)
			continue
		}
		result.Uploaded++
	}

	if consolidation != nil && consolidation.OutputPath != "" {
		name := DatasetFolder + "/" + filepath.Base(consolidation.OutputPath)
		if _, err := rs.store.Upsert(ctx, consolidation.OutputPath, name); err != nil {
			fail("failed to upload dataset", err, "name", name)
		} else {
			result.Uploaded++
		}
	}

	for _, obj := range remote {
		key, err := rs.naming.Parse(obj.Name)
		if err != nil || !key.Less(windowStart) {
			result.Kept++
			continue
		}
		if err := rs.store.Delete(ctx, obj.ID); err != nil {
			fail("failed to delete expired remote artifact", err, "name", obj.Name)
			continue
		}
		result.Deleted++
		log.Info("Deleted expired remote artifact", "name", obj.Name)
	}

	log.Info("Remote sync finished",
		"uploaded", result.Uploaded,
		"deleted", result.Deleted,
		"kept", result.Kept,
		"failed", result.Failed)
	return result
}
