package services

import (
	"bytes"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"dgisync/config"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const testBaseURL = "https://source.test/archive"

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()

	return config.Config{
		ServerPort:          8288,
		SourceBaseURL:       testBaseURL,
		ArtifactPrefix:      "FICHIER",
		ArtifactExt:         "xlsx",
		DataDir:             filepath.Join(dir, "downloads"),
		OutputPath:          filepath.Join(dir, "output", "contribuables.parquet"),
		SentinelPath:        filepath.Join(dir, "output", "last_ingested.txt"),
		RetentionYears:      1,
		DownloadConcurrency: 3,
		MaxRetries:          3,
	}
}

type stubResponse struct {
	status int
	body   []byte
	err    error
}

// stubTransport records every request and answers from respond.
type stubTransport struct {
	mu      sync.Mutex
	calls   []string
	respond func(req *http.Request) stubResponse
}

func newStubTransport(respond func(req *http.Request) stubResponse) *stubTransport {
	return &stubTransport{respond: respond}
}

func (s *stubTransport) Do(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req.Method+" "+req.URL.String())
	s.mu.Unlock()

	res := s.respond(req)
	if res.err != nil {
		return nil, res.err
	}

	return &http.Response{
		StatusCode: res.status,
		Header:     http.Header{},
		Body:       io.NopCloser(bytes.NewReader(res.body)),
		Request:    req,
	}, nil
}

func (s *stubTransport) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *stubTransport) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubTransport) CountMatching(substr string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, call := range s.calls {
		if strings.Contains(call, substr) {
			n++
		}
	}
	return n
}

// workbook builds an xlsx document with header as the first row.
func workbook(t *testing.T, header []string, rows ...[]string) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	writeRow := func(index int, values []string) {
		cells := make([]any, len(values))
		for i, v := range values {
			cells[i] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, index)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &cells))
	}

	writeRow(1, header)
	for i, row := range rows {
		writeRow(i+2, row)
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}
