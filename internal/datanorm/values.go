package datanorm

import (
	"math"
	"strconv"
	"strings"
)

// missingTokens are cell values that spreadsheet and dataframe exports use
// for "no value". They read the same as an empty cell.
var missingTokens = map[string]bool{
	"":     true,
	"nan":  true,
	"null": true,
	"none": true,
	"n/a":  true,
	"na":   true,
	"#n/a": true,
}

func isMissing(val string) bool {
	return missingTokens[strings.ToLower(strings.TrimSpace(val))]
}

// cell returns the trimmed value at idx, or "" when the row is too short.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// text returns the cell value, or "" when it holds a missing-value token.
func text(row []string, idx int) string {
	v := cell(row, idx)
	if isMissing(v) {
		return ""
	}
	return v
}

// number parses a numeric cell. A missing cell returns (nil, true); a value
// that is not a finite number returns (nil, false).
func number(row []string, idx int) (*float64, bool) {
	v := cell(row, idx)
	if isMissing(v) {
		return nil, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return &f, true
}

// NormalizeEmail lowercases and trims an identity key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
