package services

import (
	"fmt"
	"strings"

	"dgisync/config"
	"dgisync/internal/types"
)

// SeparatorPair is the text placed between prefix and label, and between
// label and year, in one candidate address.
type SeparatorPair struct {
	First  string
	Second string
}

// DefaultSeparatorPairs is ordered most likely first. The publisher has used
// encoded spaces for most of its history.
var DefaultSeparatorPairs = []SeparatorPair{
	{First: "%20", Second: "%20"},
	{First: "_", Second: "_"},
	{First: "%20", Second: "_"},
	{First: "_", Second: "%20"},
}

type ResolverService struct {
	baseURL string
	prefix  string
	ext     string
	pairs   []SeparatorPair
}

func NewResolverService(config config.Config) *ResolverService {
	return NewResolverServiceWithPairs(config, DefaultSeparatorPairs)
}

func NewResolverServiceWithPairs(config config.Config, pairs []SeparatorPair) *ResolverService {
	return &ResolverService{
		baseURL: strings.TrimSuffix(config.SourceBaseURL, "/"),
		prefix:  config.ArtifactPrefix,
		ext:     config.ArtifactExt,
		pairs:   pairs,
	}
}

// Candidates returns every address a document for label/year may live at.
// Separator pairs vary slowest, then the label casing: UPPER, Title, lower.
func (r *ResolverService) Candidates(label string, year int) []string {
	variants := labelVariants(label)
	candidates := make([]string, 0, len(r.pairs)*len(variants))

	for _, pair := range r.pairs {
		for _, variant := range variants {
			candidates = append(candidates, fmt.Sprintf(
				"%s/%s%s%s%s%d.%s",
				r.baseURL, r.prefix, pair.First, variant, pair.Second, year, r.ext,
			))
		}
	}

	return candidates
}

func (r *ResolverService) CandidatesFor(key types.PeriodKey) []string {
	return r.Candidates(key.Label(), key.Year)
}

func labelVariants(label string) []string {
	upper := strings.ToUpper(label)
	lower := strings.ToLower(label)
	title := lower
	if lower != "" {
		title = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return []string{upper, title, lower}
}
