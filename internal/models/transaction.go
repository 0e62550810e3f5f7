package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Record is one sale transaction. Records are never mutated after load.
type Record struct {
	OrderDate   time.Time       `json:"order_date"`
	Region      string          `json:"region"`
	State       string          `json:"state"`
	Category    string          `json:"category"`
	SubCategory string          `json:"sub_category"`
	ProductName string          `json:"product_name"`
	Sales       decimal.Decimal `json:"sales"`
	Quantity    int64           `json:"quantity"`
	Profit      decimal.Decimal `json:"profit"`
}

// Column names a categorical column of a Record.
type Column string

const (
	ColumnRegion      Column = "region"
	ColumnState       Column = "state"
	ColumnCategory    Column = "category"
	ColumnSubCategory Column = "sub_category"
	ColumnProductName Column = "product_name"
)

// CascadeOrder is the order in which categorical filters narrow the dataset.
var CascadeOrder = []Column{ColumnRegion, ColumnState, ColumnCategory, ColumnSubCategory}

// Value returns the record's value for a categorical column.
func (r Record) Value(c Column) string {
	switch c {
	case ColumnRegion:
		return r.Region
	case ColumnState:
		return r.State
	case ColumnCategory:
		return r.Category
	case ColumnSubCategory:
		return r.SubCategory
	case ColumnProductName:
		return r.ProductName
	default:
		return ""
	}
}

func ParseColumn(s string) (Column, error) {
	c := Column(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case ColumnRegion, ColumnState, ColumnCategory, ColumnSubCategory, ColumnProductName:
		return c, nil
	}
	return "", fmt.Errorf("unknown column %q", s)
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
