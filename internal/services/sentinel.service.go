package services

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"dgisync/config"
	"dgisync/internal/types"

	logger "github.com/Bparsons0904/goLogger"
)

// SentinelService persists the newest fully ingested period as "YYYY-PP".
type SentinelService struct {
	path string
	log  logger.Logger
}

func NewSentinelService(config config.Config) *SentinelService {
	return &SentinelService{
		path: config.SentinelPath,
		log:  logger.New("sentinelService"),
	}
}

func (s *SentinelService) Path() string {
	return s.path
}

// Read returns the stored key, or "" when no sentinel has been written.
func (s *SentinelService) Read() (string, error) {
	log := s.log.Function("Read")

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", log.Err("failed to read sentinel", err, "path", s.path)
	}

	return strings.TrimSpace(string(data)), nil
}

// IsCurrent reports whether a value returned by Read already records
// expected. Values are compared by canonical encoding.
func (s *SentinelService) IsCurrent(stored string, expected types.PeriodKey) bool {
	return strings.TrimSpace(stored) == expected.String()
}

// Write persists key atomically. It refuses to store a key older than the one
// already present.
func (s *SentinelService) Write(key types.PeriodKey) error {
	log := s.log.Function("Write")

	stored, err := s.Read()
	if err != nil {
		return err
	}
	if stored != "" {
		previous, parseErr := types.ParsePeriodKey(stored)
		if parseErr != nil {
			log.Warn("Overwriting malformed sentinel", "value", stored)
		} else if key.Less(previous) {
			return log.Err("refusing to move sentinel backwards",
				fmt.Errorf("%w: stored %s, new %s", ErrSentinelRegression, stored, key),
				"stored", stored,
				"new", key.String())
		}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return log.Err("failed to create sentinel directory", err, "directory", dir)
	}

	err = writeAtomically(dir, s.path, func(w io.Writer) error {
		_, err := io.WriteString(w, key.String()+"\n")
		return err
	})
	if err != nil {
		return log.Err("failed to write sentinel", err, "path", s.path)
	}

	log.Info("Sentinel updated", "key", key.String(), "previous", stored)
	return nil
}
