// Package manifest reads batch manifests from CSV.
package manifest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/bnema/imgbatch/internal/domain"
)

// Column aliases, compared after lowercasing and dropping everything that is
// not a letter or digit.
var columnAliases = map[string]string{
	"entityid":       colEntityID,
	"sno":            colEntityID,
	"serialnumber":   colEntityID,
	"title":          colTitle,
	"productname":    colTitle,
	"inputimageurls": colURLs,
	"inputimageurl":  colURLs,
	"imageurls":      colURLs,
}

const (
	colEntityID = "entity_id"
	colTitle    = "title"
	colURLs     = "urls"
)

// Parse reads a header row followed by one row per entity or entity
// fragment. URL cells are split on commas. Rows sharing an entity id are
// merged in order of appearance.
func Parse(r io.Reader) (*domain.Manifest, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	head, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: manifest is empty", domain.ErrInvalidManifest)
		}
		return nil, fmt.Errorf("%w: read header: %v", domain.ErrInvalidManifest, err)
	}

	cols, err := mapColumns(head)
	if err != nil {
		return nil, err
	}

	m := domain.NewManifest()
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", domain.ErrInvalidManifest, line, err)
		}
		if isBlank(record) {
			continue
		}

		rawID := cell(record, cols[colEntityID])
		entityID, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: entity id %q is not an integer", domain.ErrInvalidManifest, line, rawID)
		}

		m.Add(entityID, cell(record, cols[colTitle]), SplitURLs(cell(record, cols[colURLs])))
	}

	if m.Len() == 0 {
		return nil, fmt.Errorf("%w: manifest has no entities", domain.ErrInvalidManifest)
	}
	return m, nil
}

// SplitURLs splits a comma separated cell, trimming blanks.
func SplitURLs(s string) []string {
	parts := strings.Split(s, ",")
	urls := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			urls = append(urls, p)
		}
	}
	return urls
}

func mapColumns(head []string) (map[string]int, error) {
	cols := make(map[string]int, 3)
	for i, h := range head {
		name, ok := columnAliases[normalize(h)]
		if !ok {
			continue
		}
		if _, seen := cols[name]; !seen {
			cols[name] = i
		}
	}

	var missing []string
	for _, want := range []string{colEntityID, colTitle, colURLs} {
		if _, ok := cols[want]; !ok {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", domain.ErrInvalidManifest, strings.Join(missing, ", "))
	}
	return cols, nil
}

func normalize(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	var sb strings.Builder
	for _, r := range strings.ToLower(h) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func cell(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
