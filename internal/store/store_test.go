package store

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"kpi-dashboard/internal/errors"
	"kpi-dashboard/internal/models"
)

const superstoreHeader = "Row ID,Order Date,Region,State,Category,Sub-Category,Product Name,Sales,Quantity,Profit"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func createWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	sh := "Orders"
	_, err := f.NewSheet(sh)
	require.NoError(t, err)
	require.NoError(t, f.DeleteSheet("Sheet1"))

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sh, cell, &row))
	}

	path := filepath.Join(t.TempDir(), "superstore.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func TestLoad_CSV(t *testing.T) {
	path := createTempCSV(t, superstoreHeader+`
1,2024-01-01,West,California,Furniture,Chairs,"Chair, Deluxe",100.50,2,20.25
2,1/2/2024,East,New York,Technology,Phones,Phone,50,1,-10
`)

	s, err := Load(context.Background(), Options{Path: path}, discardLogger())
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())

	first := s.Records()[0]
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), first.OrderDate)
	require.Equal(t, "Chair, Deluxe", first.ProductName)
	require.Equal(t, "Chairs", first.SubCategory)
	require.True(t, decimal.RequireFromString("100.50").Equal(first.Sales))
	require.Equal(t, int64(2), first.Quantity)

	second := s.Records()[1]
	require.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), second.OrderDate)
	require.True(t, decimal.NewFromInt(-10).Equal(second.Profit))
}

func TestLoad_Workbook(t *testing.T) {
	path := createWorkbook(t, [][]any{
		{"Order Date", "Region", "State", "Category", "Sub-Category", "Product Name", "Sales", "Quantity", "Profit"},
		{45292, "West", "California", "Furniture", "Chairs", "Chair", 100, 2, 20},
		{"2024-01-02", "East", "New York", "Technology", "Phones", "Phone", 50.5, 1, -10},
	})

	s, err := Load(context.Background(), Options{Path: path}, discardLogger())
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())

	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), s.Records()[0].OrderDate)
	require.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), s.Records()[1].OrderDate)
	require.True(t, decimal.RequireFromString("50.5").Equal(s.Records()[1].Sales))
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"empty file", ""},
		{"header only", superstoreHeader},
		{"missing column", "Order Date,Region,State,Category,Product Name,Sales,Quantity,Profit\n2024-01-01,West,CA,F,Chair,1,1,1"},
		{"invalid date", superstoreHeader + "\n1,someday,West,CA,F,Chairs,Chair,1,1,1"},
		{"invalid sales", superstoreHeader + "\n1,2024-01-01,West,CA,F,Chairs,Chair,abc,1,1"},
		{"fractional quantity", superstoreHeader + "\n1,2024-01-01,West,CA,F,Chairs,Chair,1,1.5,1"},
		{"negative quantity", superstoreHeader + "\n1,2024-01-01,West,CA,F,Chairs,Chair,1,-1,1"},
		{"missing profit", superstoreHeader + "\n1,2024-01-01,West,CA,F,Chairs,Chair,1,1,"},
		{"blank region", superstoreHeader + "\n1,2024-01-01, ,CA,F,Chairs,Chair,1,1,1"},
		{"blank product", superstoreHeader + "\n1,2024-01-01,West,CA,F,Chairs,,1,1,1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := createTempCSV(t, tt.csv)
			_, err := Load(context.Background(), Options{Path: path}, discardLogger())
			require.Error(t, err)
			require.True(t, errors.HasCode(err, errors.CodeLoad), "got %v", err)
		})
	}
}

func TestLoad_BlankCategoryReportsRow(t *testing.T) {
	path := createTempCSV(t, superstoreHeader+`
1,2024-01-01,West,California,Furniture,Chairs,Chair,100,2,20
2,2024-01-02,,New York,Technology,Phones,Phone,50,1,-10
`)

	_, err := Load(context.Background(), Options{Path: path}, discardLogger())
	require.True(t, errors.HasCode(err, errors.CodeLoad))
	require.Contains(t, err.Error(), "row 3")
	require.Contains(t, err.Error(), "region")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(context.Background(), Options{Path: filepath.Join(t.TempDir(), "nope.xlsx")}, discardLogger())
	require.True(t, errors.HasCode(err, errors.CodeLoad))
}

func TestLoad_Cache(t *testing.T) {
	path := createTempCSV(t, superstoreHeader+"\n1,2024-01-01,West,California,Furniture,Chairs,Chair,100,2,20\n")
	opts := Options{Path: path, CacheEnabled: true, CacheDir: filepath.Join(t.TempDir(), "cache")}

	first, err := Load(context.Background(), opts, discardLogger())
	require.NoError(t, err)
	require.False(t, first.fromCache)

	second, err := Load(context.Background(), opts, discardLogger())
	require.NoError(t, err)
	require.True(t, second.fromCache)
	require.Equal(t, first.Len(), second.Len())
	require.True(t, first.Records()[0].Sales.Equal(second.Records()[0].Sales))
	require.Equal(t, first.Records()[0].OrderDate, second.Records()[0].OrderDate)
}

func TestLoad_CacheInvalidatedByOlderReplacement(t *testing.T) {
	path := createTempCSV(t, superstoreHeader+"\n1,2024-01-01,West,California,Furniture,Chairs,Chair,100,2,20\n")
	opts := Options{Path: path, CacheEnabled: true, CacheDir: filepath.Join(t.TempDir(), "cache")}

	_, err := Load(context.Background(), opts, discardLogger())
	require.NoError(t, err)

	// Same path, new content, mtime moved into the past as cp -p would leave it.
	require.NoError(t, os.WriteFile(path, []byte(superstoreHeader+`
1,2024-01-01,West,California,Furniture,Chairs,Chair,100,2,20
2,2024-01-02,East,New York,Technology,Phones,Phone,50,1,-10
`), 0o644))
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(path, past, past))

	reloaded, err := Load(context.Background(), opts, discardLogger())
	require.NoError(t, err)
	require.False(t, reloaded.fromCache)
	require.Equal(t, 2, reloaded.Len())
}

func TestDistinctValues(t *testing.T) {
	s := New([]models.Record{
		{Region: "West", State: "California"},
		{Region: "East", State: "New York"},
		{Region: "West", State: ""},
		{Region: "Central", State: "Texas"},
	})

	require.Equal(t, []string{"Central", "East", "West"}, s.DistinctValues(models.ColumnRegion))
	require.Equal(t, []string{"California", "New York", "Texas"}, s.DistinctValues(models.ColumnState))
	require.Empty(t, DistinctValues(nil, models.ColumnRegion))
}

func TestNew_CopiesInput(t *testing.T) {
	records := []models.Record{{Region: "West"}}
	s := New(records)
	records[0].Region = "East"
	require.Equal(t, "West", s.Records()[0].Region)
}

func TestStats(t *testing.T) {
	s := New([]models.Record{{Region: "West", ProductName: "A"}, {Region: "East", ProductName: "A"}})
	stats := s.Stats()
	require.Equal(t, 2, stats["record_count"])
	require.Equal(t, 2, stats["region_count"])
	require.Equal(t, 1, stats["product_name_count"])
}
