package lendee

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	apperrors "lendee-scoring/internal/common/errors"
)

// DefaultFiles are the export file names the upstream systems produce.
var DefaultFiles = map[string]string{
	SourceInvestments:  "investments_200.csv",
	SourceProfiles:     "profiles_rows.csv",
	SourceLoanRequests: "loan_req_market_200.csv",
	SourceBankMarket:   "bank_market_200.csv",
}

// CSVLoader reads every source from a CSV file with a header row.
type CSVLoader struct {
	Dir   string
	Files map[string]string
}

func NewCSVLoader(dir string, files map[string]string) *CSVLoader {
	merged := make(map[string]string, len(DefaultFiles))
	for name, file := range DefaultFiles {
		merged[name] = file
	}
	for name, file := range files {
		if file != "" {
			merged[name] = file
		}
	}
	return &CSVLoader{Dir: dir, Files: merged}
}

func (l *CSVLoader) Load(ctx context.Context) (*Sources, error) {
	tables := make(map[string]*Table, len(SourceNames))
	var missing []string

	for _, name := range SourceNames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(l.Dir, l.Files[name])
		table, err := readCSVTable(name, path)
		if errors.Is(err, fs.ErrNotExist) {
			missing = append(missing, name)
			continue
		}
		if err != nil {
			return nil, apperrors.NewSourceParseFailedError(name, err)
		}
		tables[name] = table
	}

	if len(missing) > 0 {
		return nil, apperrors.NewSourcesMissingError(missing)
	}
	return &Sources{Tables: tables}, nil
}

func readCSVTable(name, path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return NewTable(name, nil, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		rows = append(rows, record)
	}

	return NewTable(name, header, rows), nil
}
