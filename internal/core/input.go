package core

// input.go reads the signup export.
//
// Form exports regularly arrive with a UTF-8 BOM (Windows tools) or with
// stray Latin-1 bytes. Both are cleaned before CSV parsing so they never
// end up in a stored name.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// RawRow is one CSV record with its 1-based line number in the file.
type RawRow struct {
	Line   int
	Fields []string
}

// ReadRows parses a signup export. The first record is returned as the
// header and is not validated. An empty input yields no header and no rows.
func ReadRows(r io.Reader, maxSize int64) ([]string, []RawRow, error) {
	data, err := readLimited(r, maxSize)
	if err != nil {
		return nil, nil, err
	}
	data = sanitizeUTF8(bytes.TrimPrefix(data, utf8BOM))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var header []string
	var rows []RawRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("parse csv: %w", err)
		}
		if header == nil {
			header = rec
			continue
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, RawRow{Line: line, Fields: rec})
	}

	return header, rows, nil
}

// readLimited reads all of r, failing with ErrFileTooLarge past maxSize bytes.
func readLimited(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, maxSize)
	}
	return data, nil
}

// sanitizeUTF8 replaces invalid UTF-8 sequences with U+FFFD.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}
	return bytes.ToValidUTF8(data, []byte("�"))
}
