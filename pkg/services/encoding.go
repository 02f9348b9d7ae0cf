package services

import (
	"fmt"
	"sort"
	"strings"

	"houseprice-api/pkg/models"
)

// OneHotEncoder turns selected raw columns into the numeric feature layout.
// Numeric columns come first in input order, followed by one indicator column
// per categorical level except the first (sorted) level of each column.
type OneHotEncoder struct {
	numeric     []string
	categorical []string
	levels      map[string][]string // kept levels per categorical column
	schema      models.FeatureSchema
}

// FitOneHotEncoder learns the level vocabulary from t. columns selects the
// inputs; numeric marks which of them are already numeric.
func FitOneHotEncoder(t *models.Table, columns []string, numeric map[string]bool) *OneHotEncoder {
	enc := &OneHotEncoder{levels: make(map[string][]string)}
	for _, name := range columns {
		if numeric[name] {
			enc.numeric = append(enc.numeric, name)
			enc.schema = append(enc.schema, name)
		}
	}
	for _, name := range columns {
		if numeric[name] {
			continue
		}
		enc.categorical = append(enc.categorical, name)
		c := t.ColumnIndex(name)
		seen := make(map[string]struct{})
		var levels []string
		for _, row := range t.Rows {
			if c == -1 || isMissing(row[c]) {
				continue
			}
			v := strings.TrimSpace(row[c])
			if _, ok := seen[v]; !ok {
				seen[v] = struct{}{}
				levels = append(levels, v)
			}
		}
		sort.Strings(levels)
		// drop-first: the first level is implied by all indicators being zero
		if len(levels) > 0 {
			levels = levels[1:]
		}
		enc.levels[name] = levels
		for _, lv := range levels {
			enc.schema = append(enc.schema, IndicatorColumn(name, lv))
		}
	}
	return enc
}

// IndicatorColumn names the one-hot column for a categorical level, e.g. "guestroom_yes".
func IndicatorColumn(column, level string) string {
	return column + "_" + level
}

// Schema returns the encoded column order.
func (e *OneHotEncoder) Schema() models.FeatureSchema {
	return append(models.FeatureSchema(nil), e.schema...)
}

// Transform encodes every row of t with the fitted vocabulary. Levels unseen
// during fitting encode as all-zero indicators.
func (e *OneHotEncoder) Transform(t *models.Table) ([][]float64, error) {
	numIdx := make([]int, len(e.numeric))
	for i, name := range e.numeric {
		numIdx[i] = t.ColumnIndex(name)
		if numIdx[i] == -1 {
			return nil, &SchemaError{Missing: []string{name}}
		}
	}
	catIdx := make([]int, len(e.categorical))
	for i, name := range e.categorical {
		catIdx[i] = t.ColumnIndex(name)
		if catIdx[i] == -1 {
			return nil, &SchemaError{Missing: []string{name}}
		}
	}

	out := make([][]float64, len(t.Rows))
	for r, row := range t.Rows {
		vec := make([]float64, 0, len(e.schema))
		for i, c := range numIdx {
			v, ok := parseNumber(row[c])
			if !ok {
				return nil, fmt.Errorf("%w: column %q row %d: %q is not numeric", ErrSchema, e.numeric[i], r, row[c])
			}
			vec = append(vec, v)
		}
		for i, c := range catIdx {
			v := strings.TrimSpace(row[c])
			for _, lv := range e.levels[e.categorical[i]] {
				if v == lv {
					vec = append(vec, 1)
				} else {
					vec = append(vec, 0)
				}
			}
		}
		out[r] = vec
	}
	return out, nil
}
