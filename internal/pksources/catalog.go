// Package pksources holds the CSV-backed catalog repositories the fusion
// engine draws from. Each source loads its catalog once at construction and
// serves lookups from memory.
package pksources

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// FuzzyThreshold is the minimum normalized similarity for a fuzzy catalog
// hit. Hits at or above it still go through oracle validation downstream.
const FuzzyThreshold = 0.82

func loadCSV(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}
	var rows []map[string]string
	for {
		rec, err := r.Read()
		if err != nil {
			break
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

var similarity = metrics.NewJaroWinkler()

// bestFuzzy returns the index and similarity of the closest name at or
// above the threshold, or (-1, 0) when nothing qualifies.
func bestFuzzy(query string, names []string) (int, float64) {
	q := strings.ToLower(strings.TrimSpace(query))
	bestIdx, bestScore := -1, 0.0
	for i, name := range names {
		n := strings.ToLower(strings.TrimSpace(name))
		if n == "" {
			continue
		}
		if s := strutil.Similarity(q, n, similarity); s > bestScore {
			bestIdx, bestScore = i, s
		}
	}
	if bestScore < FuzzyThreshold {
		return -1, 0
	}
	return bestIdx, bestScore
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
