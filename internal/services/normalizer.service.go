package services

import (
	"strings"

	"dgisync/internal/types"
	"dgisync/internal/utils"

	logger "github.com/Bparsons0904/goLogger"
)

// legacyIndexColumns are row-number columns older exports carry.
var legacyIndexColumns = map[string]struct{}{
	"":           {},
	"UNNAMED:_0": {},
	"INDEX":      {},
	"N°":         {},
	"NO":         {},
	"#":          {},
}

var missingMarkers = map[string]struct{}{
	"NAN":  {},
	"NONE": {},
	"NULL": {},
	"N/A":  {},
	"NA":   {},
	"NAT":  {},
	"-":    {},
}

type NormalizerService struct {
	columnIndex map[string]int
	log         logger.Logger
}

func NewNormalizerService() *NormalizerService {
	columnIndex := make(map[string]int, len(types.CanonicalColumns))
	for i, column := range types.CanonicalColumns {
		columnIndex[column] = i
	}

	return &NormalizerService{
		columnIndex: columnIndex,
		log:         logger.New("normalizerService"),
	}
}

// NormalizeLabel trims and upper-cases a header and joins inner whitespace
// runs with a single underscore.
func NormalizeLabel(label string) string {
	return strings.Join(strings.Fields(strings.ToUpper(label)), "_")
}

// CleanValue strips NUL bytes and invalid UTF-8, trims the cell and collapses
// textual missing markers to "".
func CleanValue(value string) string {
	value, _ = utils.CleanUTF8(value)
	value = strings.TrimSpace(value)
	if _, missing := missingMarkers[strings.ToUpper(value)]; missing {
		return ""
	}
	return value
}

// Normalize maps a raw extract onto CanonicalRow. It never fails: short rows,
// duplicate headers and unknown columns all degrade to empty values. The first
// occurrence of a duplicated canonical header wins.
func (n *NormalizerService) Normalize(header []string, rows [][]string, key types.PeriodKey) []types.CanonicalRow {
	log := n.log.Function("Normalize")

	// sourceFor[c] is the input column feeding canonical column c, or -1.
	sourceFor := make([]int, len(types.CanonicalColumns))
	for i := range sourceFor {
		sourceFor[i] = -1
	}

	var dropped []string
	for i, raw := range header {
		label := NormalizeLabel(raw)
		if _, legacy := legacyIndexColumns[label]; legacy {
			continue
		}
		target, known := n.columnIndex[label]
		if !known {
			dropped = append(dropped, label)
			continue
		}
		if sourceFor[target] == -1 {
			sourceFor[target] = i
		}
	}

	var absent []string
	for c, source := range sourceFor {
		if source == -1 {
			absent = append(absent, types.CanonicalColumns[c])
		}
	}
	if len(dropped) > 0 || len(absent) > 0 {
		log.Debug("Schema drift", "key", key.String(), "dropped", dropped, "absent", absent)
	}

	out := make([]types.CanonicalRow, 0, len(rows))
	for _, row := range rows {
		canonical := types.NewCanonicalRow(key)
		columns := canonical.Columns()
		for c, source := range sourceFor {
			if source >= 0 && source < len(row) {
				*columns[c] = CleanValue(row[source])
			}
		}
		out = append(out, canonical)
	}

	return out
}
