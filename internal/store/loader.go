package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"kpi-dashboard/internal/errors"
	"kpi-dashboard/internal/models"
)

const (
	batchSize  = 2000
	maxWorkers = 8
)

// Options configures a dataset load.
type Options struct {
	Path         string
	Sheet        string
	CacheEnabled bool
	CacheDir     string
}

// Required source columns, keyed by their normalized header.
const (
	colOrderDate   = "orderdate"
	colRegion      = "region"
	colState       = "state"
	colCategory    = "category"
	colSubCategory = "subcategory"
	colProductName = "productname"
	colSales       = "sales"
	colQuantity    = "quantity"
	colProfit      = "profit"
)

var requiredColumns = []string{
	colOrderDate, colRegion, colState, colCategory, colSubCategory,
	colProductName, colSales, colQuantity, colProfit,
}

// textColumns must be non-blank in every row; a blank value could never be
// selected in a filter.
var textColumns = []string{
	colRegion, colState, colCategory, colSubCategory, colProductName,
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"01-02-06",
	"2006/01/02",
}

// Load reads the dataset once. Every failure is reported as a LOAD_ERROR.
func Load(ctx context.Context, opts Options, logger *slog.Logger) (*Store, error) {
	info, err := os.Stat(opts.Path)
	if err != nil {
		return nil, errors.LoadWrap(err, "dataset file not accessible")
	}

	if opts.CacheEnabled {
		if cached, err := loadFromCache(opts); err == nil && cached.matches(info) {
			logger.Info("loaded dataset from cache", "records", len(cached.Records), "source", opts.Path)
			return &Store{
				records:   cached.Records,
				source:    opts.Path,
				loadedAt:  cached.LoadedAt,
				fromCache: true,
			}, nil
		}
	}

	start := time.Now()
	logger.Info("loading dataset", "filename", opts.Path, "sheet", opts.Sheet)

	rows, err := readRows(opts)
	if err != nil {
		return nil, err
	}

	records, err := parseRows(ctx, rows)
	if err != nil {
		return nil, err
	}

	s := &Store{
		records:  records,
		source:   opts.Path,
		loadedAt: time.Now(),
	}

	if opts.CacheEnabled {
		if err := saveToCache(opts, info, s); err != nil {
			logger.Warn("failed to save cache", "error", err)
		}
	}

	duration := time.Since(start)
	logger.Info("dataset load complete",
		"records", len(records),
		"duration", duration,
		"rate", fmt.Sprintf("%.0f records/sec", float64(len(records))/duration.Seconds()))

	return s, nil
}

func readRows(opts Options) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(opts.Path)) {
	case ".xlsx", ".xlsm":
		return readWorkbook(opts.Path, opts.Sheet)
	case ".csv":
		return readCSV(opts.Path)
	default:
		return nil, errors.Load(fmt.Sprintf("unsupported dataset format %q", filepath.Ext(opts.Path)))
	}
}

func readWorkbook(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.LoadWrap(err, "open workbook")
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.Load("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.LoadWrap(err, fmt.Sprintf("read sheet %q", sheet))
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.LoadWrap(err, "open csv")
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.LoadWrap(err, "parse csv")
	}
	return rows, nil
}

// layout maps required columns to their index in a row.
type layout map[string]int

func newLayout(header []string) (layout, error) {
	l := make(layout, len(requiredColumns))
	for i, name := range header {
		key := normalizeHeader(name)
		if _, seen := l[key]; !seen {
			l[key] = i
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := l[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, errors.Load(fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")))
	}
	return l, nil
}

// normalizeHeader folds "Sub-Category", "SubCategory" and "sub_category" to the same key.
func normalizeHeader(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func (l layout) cell(row []string, col string) string {
	i := l[col]
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseRows(ctx context.Context, rows [][]string) ([]models.Record, error) {
	if len(rows) == 0 {
		return nil, errors.Load("empty dataset")
	}

	l, err := newLayout(rows[0])
	if err != nil {
		return nil, err
	}

	body := rows[1:]
	for len(body) > 0 && isBlank(body[len(body)-1]) {
		body = body[:len(body)-1]
	}
	if len(body) == 0 {
		return nil, errors.Load("no records found")
	}

	records := make([]models.Record, len(body))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for start := 0; start < len(body); start += batchSize {
		end := min(start+batchSize, len(body))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				rec, err := l.parse(body[i])
				if err != nil {
					// header is row 1
					return errors.LoadWrap(err, fmt.Sprintf("invalid record at row %d", i+2))
				}
				records[i] = rec
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.HasCode(err, errors.CodeLoad) {
			return nil, err
		}
		return nil, errors.LoadWrap(err, "parse dataset")
	}

	return records, nil
}

func (l layout) parse(row []string) (models.Record, error) {
	for _, col := range textColumns {
		if l.cell(row, col) == "" {
			return models.Record{}, fmt.Errorf("%s: missing value", col)
		}
	}

	orderDate, err := parseDate(l.cell(row, colOrderDate))
	if err != nil {
		return models.Record{}, fmt.Errorf("order date: %w", err)
	}

	sales, err := parseAmount(l.cell(row, colSales))
	if err != nil {
		return models.Record{}, fmt.Errorf("sales: %w", err)
	}

	quantity, err := parseQuantity(l.cell(row, colQuantity))
	if err != nil {
		return models.Record{}, fmt.Errorf("quantity: %w", err)
	}

	profit, err := parseAmount(l.cell(row, colProfit))
	if err != nil {
		return models.Record{}, fmt.Errorf("profit: %w", err)
	}

	return models.Record{
		OrderDate:   orderDate,
		Region:      l.cell(row, colRegion),
		State:       l.cell(row, colState),
		Category:    l.cell(row, colCategory),
		SubCategory: l.cell(row, colSubCategory),
		ProductName: l.cell(row, colProductName),
		Sales:       sales,
		Quantity:    quantity,
		Profit:      profit,
	}, nil
}

// parseDate accepts Excel serial dates as well as common textual layouts.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing value")
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, err
		}
		return models.Day(t), nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, fmt.Errorf("missing value")
	}
	s = strings.NewReplacer("$", "", ",", "").Replace(s)
	return decimal.NewFromString(s)
}

func parseQuantity(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("missing value")
	}

	q, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		d, derr := decimal.NewFromString(s)
		if derr != nil || !d.IsInteger() {
			return 0, fmt.Errorf("not an integer: %q", s)
		}
		q = d.IntPart()
	}

	if q < 0 {
		return 0, fmt.Errorf("negative quantity %d", q)
	}
	return q, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
