package decode

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rosterkit/rosterkit/pkg/record"
)

// decodeDelimited interprets data as delimited text with a header row: a
// byte-by-byte textual reinterpretation for producers that cannot emit
// the richer formats. Cells are typed by inference (int64, float64,
// bool, else string); empty cells become absent attributes.
func decodeDelimited(data []byte) ([]record.Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty input")
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header row: %w", err)
	}
	header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	for i, name := range header {
		header[i] = strings.TrimSpace(name)
		if header[i] == "" {
			return nil, fmt.Errorf("header column %d is empty", i)
		}
	}

	var recs []record.Record
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("reading line %d: %w", line, err)
		}
		rec := make(record.Record, len(header))
		for i, cell := range row {
			if v := inferCell(cell); v != nil {
				rec[header[i]] = v
			}
		}
		recs = append(recs, rec)
	}
	if recs == nil {
		recs = []record.Record{}
	}
	return recs, nil
}

// sniffDelimiter picks the cell separator from the header line. Comma
// wins by default; a header with semicolons and no commas is the
// European export convention.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if !bytes.ContainsRune(line, ',') && bytes.ContainsRune(line, ';') {
		return ';'
	}
	return ','
}

// inferCell types a raw cell. Empty cells map to nil (absent attribute);
// anything unparsable stays a string.
func inferCell(cell string) any {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	if n, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return f
	}
	switch strings.ToLower(cell) {
	case "true":
		return true
	case "false":
		return false
	}
	return cell
}
