package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"houseprice-api/pkg/models"

	"github.com/xuri/excelize/v2"
)

// TargetColumn is the numeric column the price model learns.
const TargetColumn = "price"

// DefaultFeatureColumns are the raw columns selected for modelling.
var DefaultFeatureColumns = []string{"bedrooms", "bathrooms", "stories", "area", "guestroom", "parking"}

// PreparedDataset is the model-ready output of DatasetService.Prepare.
type PreparedDataset struct {
	XTrain      [][]float64
	YTrain      []float64
	XTest       [][]float64
	YTest       []float64
	Schema      models.FeatureSchema
	Encoder     *OneHotEncoder
	SourceRows  int
	DroppedRows int
}

// DatasetService loads housing datasets and turns them into train/test partitions.
type DatasetService struct {
	features []string
	target   string
	testSize float64
	seed     int64
}

// NewDatasetService creates a DatasetService using the default feature subset.
// testSize is the evaluation fraction (0.2 → 80/20), seed fixes the split.
func NewDatasetService(testSize float64, seed int64) *DatasetService {
	if testSize < 0 || testSize >= 1 {
		testSize = 0.2
	}
	return &DatasetService{
		features: append([]string(nil), DefaultFeatureColumns...),
		target:   TargetColumn,
		testSize: testSize,
		seed:     seed,
	}
}

// Features returns the raw feature columns in selection order.
func (s *DatasetService) Features() []string {
	return append([]string(nil), s.features...)
}

// LoadFile reads a .csv or .xlsx dataset from disk.
func (s *DatasetService) LoadFile(path string) (*models.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return s.ParseXLSX(f)
	case ".csv", "":
		return s.ParseCSV(f)
	default:
		return nil, fmt.Errorf("unsupported dataset format %q: use .csv or .xlsx", filepath.Ext(path))
	}
}

// ParseCSV reads a CSV stream whose first record is the header.
func (s *DatasetService) ParseCSV(r io.Reader) (*models.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return tableFromRows(rows)
}

// ParseXLSX reads the first sheet of an Excel workbook whose first row is the header.
func (s *DatasetService) ParseXLSX(r io.Reader) (*models.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read xlsx rows: %w", err)
	}
	return tableFromRows(rows)
}

func tableFromRows(rows [][]string) (*models.Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no header row", ErrEmptyDataset)
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimPrefix(h, "\ufeff")
	}

	table := &models.Table{Columns: header}
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		// Excel drops trailing empty cells; pad to header width.
		cells := make([]string, len(header))
		copy(cells, row)
		table.Rows = append(table.Rows, cells)
	}
	return table, nil
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Prepare imputes, normalises, selects, splits, filters and encodes a raw table.
func (s *DatasetService) Prepare(table *models.Table) (*PreparedDataset, error) {
	if table == nil || len(table.Rows) == 0 {
		return nil, fmt.Errorf("%w: source has no rows", ErrEmptyDataset)
	}

	imputed := ImputeMean(table)
	normalized := NormalizeColumns(imputed)

	selected, err := s.SelectColumns(normalized)
	if err != nil {
		return nil, err
	}

	numeric := numericColumns(selected)
	if !numeric[s.target] {
		return nil, fmt.Errorf("%w: target column %q is not numeric", ErrSchema, s.target)
	}

	trainIdx, testIdx := s.SplitIndices(len(selected.Rows))
	train, droppedTrain := DropIncomplete(subsetRows(selected, trainIdx))
	test, droppedTest := DropIncomplete(subsetRows(selected, testIdx))
	if len(train.Rows) == 0 {
		return nil, fmt.Errorf("%w: no usable training rows after imputation (%d dropped)", ErrEmptyDataset, droppedTrain)
	}

	encoder := FitOneHotEncoder(train, s.features, numeric)
	xTrain, err := encoder.Transform(train)
	if err != nil {
		return nil, err
	}
	xTest, err := encoder.Transform(test)
	if err != nil {
		return nil, err
	}
	yTrain, err := columnValues(train, s.target)
	if err != nil {
		return nil, err
	}
	yTest, err := columnValues(test, s.target)
	if err != nil {
		return nil, err
	}

	if droppedTrain+droppedTest > 0 {
		log.Printf("⚠️ [dataset] dropped %d incomplete rows (train=%d, test=%d)", droppedTrain+droppedTest, droppedTrain, droppedTest)
	}

	return &PreparedDataset{
		XTrain:      xTrain,
		YTrain:      yTrain,
		XTest:       xTest,
		YTest:       yTest,
		Schema:      encoder.Schema(),
		Encoder:     encoder,
		SourceRows:  len(table.Rows),
		DroppedRows: droppedTrain + droppedTest,
	}, nil
}

// SelectColumns keeps the feature columns followed by the target.
// Every absent column is reported in one SchemaError.
func (s *DatasetService) SelectColumns(t *models.Table) (*models.Table, error) {
	wanted := append(s.Features(), s.target)
	idx := make([]int, len(wanted))
	var missing []string
	for i, name := range wanted {
		idx[i] = t.ColumnIndex(name)
		if idx[i] == -1 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	out := &models.Table{Columns: wanted, Rows: make([][]string, len(t.Rows))}
	for r, row := range t.Rows {
		cells := make([]string, len(idx))
		for i, c := range idx {
			cells[i] = row[c]
		}
		out.Rows[r] = cells
	}
	return out, nil
}

// SplitIndices returns a reproducible train/test partition of n row indices.
// The training side is never empty when n > 0.
func (s *DatasetService) SplitIndices(n int) (train, test []int) {
	if n == 0 {
		return nil, nil
	}
	perm := rand.New(rand.NewSource(s.seed)).Perm(n)
	nTest := int(math.Ceil(float64(n) * s.testSize))
	if nTest >= n {
		nTest = n - 1
	}
	test = append([]int(nil), perm[:nTest]...)
	train = append([]int(nil), perm[nTest:]...)
	return train, test
}

// ImputeMean returns a copy of t with missing cells of numeric columns replaced
// by the column mean. Categorical columns and all-missing columns are unchanged.
func ImputeMean(t *models.Table) *models.Table {
	out := cloneTable(t)
	numeric := numericColumns(t)
	for c, name := range t.Columns {
		if !numeric[name] {
			continue
		}
		var vals []float64
		for _, row := range t.Rows {
			if isMissing(row[c]) {
				continue
			}
			v, _ := parseNumber(row[c])
			vals = append(vals, v)
		}
		if len(vals) == 0 {
			continue
		}
		mean := strconv.FormatFloat(calculateMean(vals), 'g', -1, 64)
		for r := range out.Rows {
			if isMissing(out.Rows[r][c]) {
				out.Rows[r][c] = mean
			}
		}
	}
	return out
}

// NormalizeColumns returns a copy of t with trimmed, lower-cased column names.
func NormalizeColumns(t *models.Table) *models.Table {
	out := cloneTable(t)
	for i, c := range out.Columns {
		out.Columns[i] = strings.ToLower(strings.TrimSpace(c))
	}
	return out
}

// DropIncomplete returns the rows of t without missing cells and the number dropped.
func DropIncomplete(t *models.Table) (*models.Table, int) {
	out := &models.Table{Columns: append([]string(nil), t.Columns...)}
	dropped := 0
	for _, row := range t.Rows {
		complete := true
		for _, cell := range row {
			if isMissing(cell) {
				complete = false
				break
			}
		}
		if !complete {
			dropped++
			continue
		}
		out.Rows = append(out.Rows, append([]string(nil), row...))
	}
	return out, dropped
}

// numericColumns reports, per column, whether every non-missing cell parses as a number.
// A column without any value counts as numeric.
func numericColumns(t *models.Table) map[string]bool {
	out := make(map[string]bool, len(t.Columns))
	for c, name := range t.Columns {
		numeric := true
		for _, row := range t.Rows {
			if isMissing(row[c]) {
				continue
			}
			if _, ok := parseNumber(row[c]); !ok {
				numeric = false
				break
			}
		}
		if _, seen := out[name]; !seen {
			out[name] = numeric
		}
	}
	return out
}

func columnValues(t *models.Table, name string) ([]float64, error) {
	c := t.ColumnIndex(name)
	if c == -1 {
		return nil, &SchemaError{Missing: []string{name}}
	}
	out := make([]float64, len(t.Rows))
	for r, row := range t.Rows {
		v, ok := parseNumber(row[c])
		if !ok {
			return nil, fmt.Errorf("%w: column %q row %d: %q is not numeric", ErrSchema, name, r, row[c])
		}
		out[r] = v
	}
	return out, nil
}

func subsetRows(t *models.Table, idx []int) *models.Table {
	out := &models.Table{Columns: append([]string(nil), t.Columns...), Rows: make([][]string, 0, len(idx))}
	for _, i := range idx {
		out.Rows = append(out.Rows, append([]string(nil), t.Rows[i]...))
	}
	return out
}

func cloneTable(t *models.Table) *models.Table {
	out := &models.Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([][]string, len(t.Rows)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}

func isMissing(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "na", "nan", "null", "none":
		return true
	}
	return false
}

// parseNumber parses a cell such as "7420", "1.5" or "13,300,000".
func parseNumber(v string) (float64, bool) {
	v = strings.ReplaceAll(strings.TrimSpace(v), ",", "")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
