package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dgisync/config"
	"dgisync/internal/types"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
	"github.com/xuri/excelize/v2"
)

// Row groups are closed explicitly per document, never by size.
const unboundedRowGroupSize = int64(1) << 40

type ConsolidationService struct {
	outputPath string
	normalizer *NormalizerService
	log        logger.Logger
}

func NewConsolidationService(config config.Config, normalizer *NormalizerService) *ConsolidationService {
	return &ConsolidationService{
		outputPath: config.OutputPath,
		normalizer: normalizer,
		log:        logger.New("consolidationService"),
	}
}

func (cs *ConsolidationService) OutputPath() string {
	return cs.outputPath
}

// Consolidate builds the dataset from every artifact in idx, one row group per
// document in key order. When nothing changed and an output exists it is left
// untouched. Unreadable documents are skipped; if no rows at all are written
// the previous output is kept and ErrConsolidationEmpty is returned.
func (cs *ConsolidationService) Consolidate(
	ctx context.Context,
	idx *LocalIndex,
	changed bool,
) (types.ConsolidationResult, error) {
	log := cs.log.Function("Consolidate")

	if !changed {
		if _, err := os.Stat(cs.outputPath); err == nil {
			footer, err := cs.readFooter()
			if err != nil {
				return types.ConsolidationResult{}, err
			}
			if reason := footer.staleReason(idx); reason != "" {
				log.Info("Existing dataset is stale, rebuilding", "path", cs.outputPath, "reason", reason)
			} else {
				log.Info("No new documents, reusing existing dataset", "path", cs.outputPath)
				footer.result.SkippedNames = len(idx.Skipped)
				return footer.result, nil
			}
		}
	}

	timer := log.Timer("Consolidation")
	defer timer()

	outputDir := filepath.Dir(cs.outputPath)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return types.ConsolidationResult{}, log.Err("failed to create output directory", err, "directory", outputDir)
	}

	tmp, err := os.CreateTemp(outputDir, tempFilePattern)
	if err != nil {
		return types.ConsolidationResult{}, log.Err("failed to create temp output", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	keepTemp := false
	defer func() {
		if !keepTemp {
			_ = os.Remove(tmpPath)
		}
	}()

	result, err := cs.writeDataset(ctx, tmpPath, idx)
	if err != nil {
		return types.ConsolidationResult{}, err
	}
	result.SkippedNames = len(idx.Skipped)

	if result.Rows == 0 {
		log.Warn("No rows written, keeping previous dataset",
			"documents", idx.Len(),
			"documentsFailed", result.DocumentsFailed)
		return result, ErrConsolidationEmpty
	}

	if err := os.Rename(tmpPath, cs.outputPath); err != nil {
		return types.ConsolidationResult{}, log.Err("failed to move dataset into place", err, "path", cs.outputPath)
	}
	keepTemp = true

	info, err := os.Stat(cs.outputPath)
	if err != nil {
		return types.ConsolidationResult{}, log.Err("failed to stat dataset", err, "path", cs.outputPath)
	}

	result.OutputPath = cs.outputPath
	result.OutputBytes = info.Size()
	result.Rebuilt = true

	log.Info("Dataset written",
		"path", cs.outputPath,
		"rows", result.Rows,
		"blocks", result.Blocks,
		"documentsFailed", result.DocumentsFailed,
		"bytes", result.OutputBytes)

	return result, nil
}

func (cs *ConsolidationService) writeDataset(
	ctx context.Context,
	path string,
	idx *LocalIndex,
) (types.ConsolidationResult, error) {
	log := cs.log.Function("writeDataset")
	var result types.ConsolidationResult

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return result, log.Err("failed to open parquet file", err, "path", path)
	}
	defer func() {
		if closeErr := fw.Close(); closeErr != nil {
			log.Debug("failed to close parquet file", "error", closeErr)
		}
	}()

	pw, err := writer.NewParquetWriter(fw, new(types.CanonicalRow), 1)
	if err != nil {
		return result, log.Err("failed to create parquet writer", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	pw.RowGroupSize = unboundedRowGroupSize

	for _, artifact := range idx.Sorted() {
		if err := ctx.Err(); err != nil {
			_ = pw.WriteStop()
			return result, err
		}

		rows, err := cs.loadDocument(artifact)
		if err != nil {
			log.Er("Skipping unreadable document", err, "key", artifact.Key.String(), "path", artifact.Path)
			result.DocumentsFailed++
			continue
		}
		if len(rows) == 0 {
			log.Warn("Document has no data rows", "key", artifact.Key.String())
			continue
		}

		for i := range rows {
			if err := pw.Write(rows[i]); err != nil {
				_ = pw.WriteStop()
				return result, log.Err("failed to append row", err, "key", artifact.Key.String())
			}
		}
		if err := pw.Flush(true); err != nil {
			_ = pw.WriteStop()
			return result, log.Err("failed to close row group", err, "key", artifact.Key.String())
		}

		result.Rows += int64(len(rows))
		result.Blocks++
		result.Documents++
		log.Debug("Appended document", "key", artifact.Key.String(), "rows", len(rows))
	}

	pw.Footer.KeyValueMetadata = datasetMetadata(idx)
	if err := pw.WriteStop(); err != nil {
		return result, log.Err("failed to finalize parquet file", err)
	}

	return result, nil
}

// loadDocument reads the first sheet of one workbook and normalizes it. The
// first non-blank row is the header; blank rows are skipped.
func (cs *ConsolidationService) loadDocument(artifact LocalArtifact) (rows []types.CanonicalRow, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workbook reader panic: %v", r)
		}
	}()

	f, err := excelize.OpenFile(artifact.Path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	iter, err := f.Rows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	defer func() { _ = iter.Close() }()

	var header []string
	var raw [][]string
	for iter.Next() {
		cells, err := iter.Columns()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if isBlankRow(cells) {
			continue
		}
		if header == nil {
			header = cells
			continue
		}
		raw = append(raw, cells)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return cs.normalizer.Normalize(header, raw, artifact.Key), nil
}

func isBlankRow(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Describe reads the footer of the current dataset.
func (cs *ConsolidationService) Describe() (types.ConsolidationResult, error) {
	footer, err := cs.readFooter()
	if err != nil {
		return types.ConsolidationResult{}, err
	}
	return footer.result, nil
}

// datasetFooter is what a built dataset records about its inputs.
type datasetFooter struct {
	result        types.ConsolidationResult
	schemaVersion string
	documents     []string
	builtAt       time.Time
}

// datasetMetadata lists every document the build considered, including ones
// that turned out unreadable, so a later run can tell whether the local index
// still matches the dataset.
func datasetMetadata(idx *LocalIndex) []*parquet.KeyValue {
	keys := make([]string, 0, idx.Len())
	for _, artifact := range idx.Sorted() {
		keys = append(keys, artifact.Key.String())
	}
	version := strconv.Itoa(types.SchemaVersion)
	documents := strings.Join(keys, ",")

	return []*parquet.KeyValue{
		{Key: schemaVersionMetadataKey, Value: &version},
		{Key: documentsMetadataKey, Value: &documents},
	}
}

func (cs *ConsolidationService) readFooter() (datasetFooter, error) {
	log := cs.log.Function("readFooter")

	info, err := os.Stat(cs.outputPath)
	if err != nil {
		return datasetFooter{}, log.Err("failed to stat dataset", err, "path", cs.outputPath)
	}

	fr, err := local.NewLocalFileReader(cs.outputPath)
	if err != nil {
		return datasetFooter{}, log.Err("failed to open dataset", err, "path", cs.outputPath)
	}
	defer func() { _ = fr.Close() }()

	pr, err := reader.NewParquetReader(fr, new(types.CanonicalRow), 1)
	if err != nil {
		return datasetFooter{}, log.Err("failed to read dataset footer", err, "path", cs.outputPath)
	}
	defer pr.ReadStop()

	footer := datasetFooter{
		result: types.ConsolidationResult{
			OutputPath:  cs.outputPath,
			Rows:        pr.GetNumRows(),
			Blocks:      len(pr.Footer.RowGroups),
			Documents:   len(pr.Footer.RowGroups),
			OutputBytes: info.Size(),
		},
		builtAt: info.ModTime(),
	}

	for _, kv := range pr.Footer.GetKeyValueMetadata() {
		if kv == nil || kv.Value == nil {
			continue
		}
		switch kv.Key {
		case schemaVersionMetadataKey:
			footer.schemaVersion = *kv.Value
		case documentsMetadataKey:
			if *kv.Value != "" {
				footer.documents = strings.Split(*kv.Value, ",")
			}
		}
	}

	return footer, nil
}

// staleReason reports why the dataset no longer reflects idx, or "" when it
// can be reused as is.
func (f datasetFooter) staleReason(idx *LocalIndex) string {
	if f.schemaVersion != strconv.Itoa(types.SchemaVersion) {
		return "schema version changed"
	}

	artifacts := idx.Sorted()
	if len(artifacts) != len(f.documents) {
		return "document set changed"
	}
	for i, artifact := range artifacts {
		if artifact.Key.String() != f.documents[i] {
			return "document set changed"
		}
		if artifact.ModifiedAt.After(f.builtAt) {
			return "document replaced after build"
		}
	}

	return ""
}
