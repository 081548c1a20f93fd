package langanalysis

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

//go:embed ratings.csv
var ratingsCSV string

var (
	ratingsOnce sync.Once
	ratingsMap  map[string]float64
	ratingsErr  error
)

// wordRatings returns the embedded word difficulty table, parsed once.
// Ratings run from 1 (everyday vocabulary) to 5 (rare or academic).
func wordRatings() (map[string]float64, error) {
	ratingsOnce.Do(func() {
		reader := csv.NewReader(strings.NewReader(ratingsCSV))
		records, err := reader.ReadAll()
		if err != nil {
			ratingsErr = fmt.Errorf("parse word ratings: %w", err)
			return
		}
		table := make(map[string]float64, len(records))
		for i, record := range records {
			if i == 0 && record[0] == "word" {
				continue
			}
			if len(record) != 2 {
				ratingsErr = fmt.Errorf("word ratings row %d: expected 2 fields", i+1)
				return
			}
			rating, err := strconv.ParseFloat(record[1], 64)
			if err != nil {
				ratingsErr = fmt.Errorf("word ratings row %d: %w", i+1, err)
				return
			}
			table[strings.ToLower(record[0])] = rating
		}
		ratingsMap = table
	})
	return ratingsMap, ratingsErr
}
