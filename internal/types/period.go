package types

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

const PeriodsPerYear = 12

var ErrUnparseableArtifactName = errors.New("unparseable artifact name")

// MonthLabels are the upstream month names, indexed by period - 1. The
// publisher writes them without accents.
var MonthLabels = [PeriodsPerYear]string{
	"JANVIER", "FEVRIER", "MARS", "AVRIL", "MAI", "JUIN",
	"JUILLET", "AOUT", "SEPTEMBRE", "OCTOBRE", "NOVEMBRE", "DECEMBRE",
}

// PeriodKey identifies one published document: a year and a 1-based period
// within the year.
type PeriodKey struct {
	Year   int `json:"year"`
	Period int `json:"period"`
}

func NewPeriodKey(year, period int) PeriodKey {
	return PeriodKey{Year: year, Period: period}
}

// String returns the canonical "YYYY-PP" encoding.
func (k PeriodKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, k.Period)
}

func (k PeriodKey) Valid() bool {
	return k.Year > 0 && k.Period >= 1 && k.Period <= PeriodsPerYear
}

func (k PeriodKey) Label() string {
	if !k.Valid() {
		return ""
	}
	return MonthLabels[k.Period-1]
}

func (k PeriodKey) Compare(other PeriodKey) int {
	switch {
	case k.Year != other.Year:
		if k.Year < other.Year {
			return -1
		}
		return 1
	case k.Period < other.Period:
		return -1
	case k.Period > other.Period:
		return 1
	}
	return 0
}

func (k PeriodKey) Less(other PeriodKey) bool {
	return k.Compare(other) < 0
}

func (k PeriodKey) Next() PeriodKey {
	if k.Period >= PeriodsPerYear {
		return PeriodKey{Year: k.Year + 1, Period: 1}
	}
	return PeriodKey{Year: k.Year, Period: k.Period + 1}
}

func (k PeriodKey) Prev() PeriodKey {
	if k.Period <= 1 {
		return PeriodKey{Year: k.Year - 1, Period: PeriodsPerYear}
	}
	return PeriodKey{Year: k.Year, Period: k.Period - 1}
}

// ParsePeriodKey decodes the "YYYY-PP" form produced by String.
func ParsePeriodKey(value string) (PeriodKey, error) {
	value = strings.TrimSpace(value)
	year, period, ok := strings.Cut(value, "-")
	if !ok || len(year) != 4 || len(period) != 2 {
		return PeriodKey{}, fmt.Errorf("invalid period key %q", value)
	}

	y, err := strconv.Atoi(year)
	if err != nil {
		return PeriodKey{}, fmt.Errorf("invalid period key year %q: %w", value, err)
	}
	p, err := strconv.Atoi(period)
	if err != nil {
		return PeriodKey{}, fmt.Errorf("invalid period key period %q: %w", value, err)
	}

	key := PeriodKey{Year: y, Period: p}
	if !key.Valid() {
		return PeriodKey{}, fmt.Errorf("period key out of range %q", value)
	}
	return key, nil
}

func periodForLabel(label string) (int, bool) {
	label = strings.ToUpper(label)
	for i, candidate := range MonthLabels {
		if candidate == label {
			return i + 1, true
		}
	}
	return 0, false
}

// ArtifactNaming is the single mapping between a PeriodKey and its file name,
// used locally and for remote objects alike.
type ArtifactNaming struct {
	Prefix    string
	Extension string
}

// Name returns "<PREFIX>_<LABEL>_<YEAR>.<ext>".
func (n ArtifactNaming) Name(key PeriodKey) string {
	return fmt.Sprintf("%s_%s_%d.%s", n.Prefix, key.Label(), key.Year, n.Extension)
}

// Parse is the inverse of Name. Any directory part is ignored; label matching
// is case-insensitive.
func (n ArtifactNaming) Parse(name string) (PeriodKey, error) {
	base := filepath.Base(name)

	ext := "." + n.Extension
	if !strings.HasSuffix(strings.ToLower(base), strings.ToLower(ext)) {
		return PeriodKey{}, fmt.Errorf("%w: %s", ErrUnparseableArtifactName, name)
	}
	stem := base[:len(base)-len(ext)]

	prefix := n.Prefix + "_"
	if !strings.HasPrefix(strings.ToUpper(stem), strings.ToUpper(prefix)) {
		return PeriodKey{}, fmt.Errorf("%w: %s", ErrUnparseableArtifactName, name)
	}
	rest := stem[len(prefix):]

	label, year, ok := strings.Cut(rest, "_")
	if !ok || len(year) != 4 {
		return PeriodKey{}, fmt.Errorf("%w: %s", ErrUnparseableArtifactName, name)
	}

	period, ok := periodForLabel(label)
	if !ok {
		return PeriodKey{}, fmt.Errorf("%w: %s", ErrUnparseableArtifactName, name)
	}

	y, err := strconv.Atoi(year)
	if err != nil || y <= 0 {
		return PeriodKey{}, fmt.Errorf("%w: %s", ErrUnparseableArtifactName, name)
	}

	return PeriodKey{Year: y, Period: period}, nil
}
