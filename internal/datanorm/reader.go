package datanorm

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrEmptyInput is returned when a source stream has no header row.
var ErrEmptyInput = errors.New("empty input: no header row")

// ReadTable parses a CSV stream into a Table. A leading UTF-8 BOM is dropped,
// quotes are parsed leniently and ragged rows are kept as-is; short rows read
// as empty cells during normalization. Blank lines are skipped by encoding/csv.
func ReadTable(src Source, r io.Reader) (Table, error) {
	reader := csv.NewReader(stripBOM(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return Table{}, fmt.Errorf("%s source: %w", src, ErrEmptyInput)
		}
		return Table{}, fmt.Errorf("%s source: read header: %w", src, err)
	}

	t := Table{Source: src, Header: header}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("%s source: read row %d: %w", src, len(t.Rows)+1, err)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// PeekHeader returns the header row of a CSV stream without consuming it.
// The returned reader yields the full stream, header included.
func PeekHeader(r io.Reader) ([]string, io.Reader, error) {
	br := bufio.NewReaderSize(stripBOM(r), 64*1024)
	line, err := peekHeaderLine(br)
	if err != nil {
		if err == io.EOF {
			return nil, br, ErrEmptyInput
		}
		return nil, br, err
	}
	return parseCSVLine(line), br, nil
}

// stripBOM wraps a reader to strip a UTF-8 BOM if present.
func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, err := io.ReadFull(r, buf)
	if err != nil || n < 3 {
		return io.MultiReader(bytes.NewReader(buf[:n]), r)
	}
	if buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
		return r
	}
	return io.MultiReader(bytes.NewReader(buf[:n]), r)
}

func peekHeaderLine(br *bufio.Reader) (string, error) {
	for size := 4096; size <= 64*1024; size *= 2 {
		peeked, err := br.Peek(size)
		if len(peeked) > 0 {
			if idx := bytes.IndexByte(peeked, '\n'); idx >= 0 {
				return strings.TrimRight(string(peeked[:idx]), "\r"), nil
			}
		}
		if err != nil {
			if err == io.EOF && len(peeked) > 0 {
				return strings.TrimRight(string(peeked), "\r\n"), nil
			}
			return "", err
		}
	}
	peeked, _ := br.Peek(64 * 1024)
	return strings.TrimRight(string(peeked), "\r\n"), nil
}

func parseCSVLine(line string) []string {
	r := csv.NewReader(strings.NewReader(line))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	fields, err := r.Read()
	if err != nil {
		return strings.Split(line, ",")
	}
	return fields
}
