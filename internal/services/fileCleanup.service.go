package services

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"dgisync/config"
	"dgisync/internal/types"

	logger "github.com/Bparsons0904/goLogger"
)

type LocalArtifact struct {
	Key        types.PeriodKey `json:"key"`
	Path       string          `json:"path"`
	Size       int64           `json:"size"`
	ModifiedAt time.Time       `json:"modifiedAt"`
}

// LocalIndex is a single scan of the data directory keyed by period.
type LocalIndex struct {
	artifacts map[types.PeriodKey]LocalArtifact
	Skipped   []string
}

func NewLocalIndex() *LocalIndex {
	return &LocalIndex{artifacts: make(map[types.PeriodKey]LocalArtifact)}
}

func (idx *LocalIndex) Add(artifact LocalArtifact) {
	idx.artifacts[artifact.Key] = artifact
}

func (idx *LocalIndex) Has(key types.PeriodKey) bool {
	_, ok := idx.artifacts[key]
	return ok
}

func (idx *LocalIndex) Get(key types.PeriodKey) (LocalArtifact, bool) {
	artifact, ok := idx.artifacts[key]
	return artifact, ok
}

func (idx *LocalIndex) Remove(key types.PeriodKey) {
	delete(idx.artifacts, key)
}

func (idx *LocalIndex) Len() int {
	return len(idx.artifacts)
}

// Sorted returns the artifacts in increasing key order.
func (idx *LocalIndex) Sorted() []LocalArtifact {
	out := make([]LocalArtifact, 0, len(idx.artifacts))
	for _, artifact := range idx.artifacts {
		out = append(out, artifact)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}

type FileCleanupService struct {
	dataDir string
	naming  types.ArtifactNaming
	log     logger.Logger
}

func NewFileCleanupService(config config.Config) *FileCleanupService {
	return &FileCleanupService{
		dataDir: config.DataDir,
		naming:  types.ArtifactNaming{Prefix: config.ArtifactPrefix, Extension: config.ArtifactExt},
		log:     logger.New("fileCleanupService"),
	}
}

// Index scans the data directory once. Names that do not parse to a period
// are recorded in Skipped and otherwise ignored. A missing directory is an
// empty index.
func (fcs *FileCleanupService) Index(ctx context.Context) (*LocalIndex, error) {
	log := fcs.log.Function("Index")
	idx := NewLocalIndex()

	entries, err := os.ReadDir(fcs.dataDir)
	if os.IsNotExist(err) {
		log.Info("Data directory does not exist yet", "directory", fcs.dataDir)
		return idx, nil
	}
	if err != nil {
		return nil, log.Err("failed to read data directory", err, "directory", fcs.dataDir)
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".partial-") {
			continue
		}

		key, err := fcs.naming.Parse(name)
		if err != nil {
			log.Warn("Skipping unparseable artifact name", "name", name)
			idx.Skipped = append(idx.Skipped, name)
			continue
		}

		info, err := entry.Info()
		if err != nil {
			log.Warn("Failed to stat artifact", "name", name, "error", err)
			continue
		}

		// Prefer the canonical spelling if several files parse to the same key.
		if existing, ok := idx.Get(key); ok && filepath.Base(existing.Path) == fcs.naming.Name(key) {
			continue
		}

		idx.Add(LocalArtifact{
			Key:        key,
			Path:       filepath.Join(fcs.dataDir, name),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}

	log.Info("Indexed local artifacts", "count", idx.Len(), "skipped", len(idx.Skipped))
	return idx, nil
}

// Prune deletes artifacts older than start and drops them from idx. Files
// whose names do not parse are never touched.
func (fcs *FileCleanupService) Prune(ctx context.Context, idx *LocalIndex, start types.PeriodKey) (int, error) {
	log := fcs.log.Function("Prune")

	removed := 0
	var firstErr error
	for _, artifact := range idx.Sorted() {
		if !artifact.Key.Less(start) {
			break
		}
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}

		if err := os.Remove(artifact.Path); err != nil && !os.IsNotExist(err) {
			log.Er("failed to remove expired artifact", err, "path", artifact.Path)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		idx.Remove(artifact.Key)
		removed++
		log.Info("Removed expired artifact", "key", artifact.Key.String(), "path", artifact.Path)
	}

	if firstErr != nil {
		return removed, log.Err("failed to prune some artifacts", firstErr, "removed", removed)
	}

	log.Info("Local retention applied", "windowStart", start.String(), "removed", removed)
	return removed, nil
}
