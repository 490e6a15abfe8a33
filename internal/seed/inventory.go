// Package seed imports inventory from CSV.
package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pharmacore/internal/core"
	"pharmacore/pkg/domain"
)

// Columns expected in each row after the header.
const columnCount = 11

// ItemAdder is the part of the inventory engine the importer needs.
type ItemAdder interface {
	AddItem(ctx context.Context, form domain.InventoryFormData, actor string) (domain.InventoryItem, error)
}

// Result reports how many rows were imported and which were skipped.
type Result struct {
	Added   int
	Skipped []RowError
}

// RowError describes a rejected row. Line numbers are 1-based and count the header.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

// LoadInventory reads rows of
//
//	name,category,manufacturer,batch,current,minimum,maximum,unit,expiry,supplier,unit_cost
//
// skipping the header. Malformed rows are logged and skipped; a failing
// AddItem aborts the import.
func LoadInventory(ctx context.Context, inv ItemAdder, r io.Reader, actor string, logger core.Logger) (Result, error) {
	var res Result
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		return res, fmt.Errorf("read header: %w", err)
	}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			res.skip(logger, line, err)
			continue
		}
		form, err := parseRow(record)
		if err != nil {
			res.skip(logger, line, err)
			continue
		}
		if _, err := inv.AddItem(ctx, form, actor); err != nil {
			return res, fmt.Errorf("line %d: add %s: %w", line, form.Product.Name, err)
		}
		res.Added++
	}
	if logger != nil {
		logger.Info("inventory seed complete", "added", res.Added, "skipped", len(res.Skipped))
	}
	return res, nil
}

func (r *Result) skip(logger core.Logger, line int, err error) {
	r.Skipped = append(r.Skipped, RowError{Line: line, Err: err})
	if logger != nil {
		logger.Warn("skipping inventory row", "line", line, "error", err)
	}
}

func parseRow(record []string) (domain.InventoryFormData, error) {
	if len(record) < columnCount {
		return domain.InventoryFormData{}, fmt.Errorf("expected %d columns, got %d", columnCount, len(record))
	}
	col := func(i int) string { return strings.TrimSpace(record[i]) }
	name := col(0)
	if name == "" {
		return domain.InventoryFormData{}, errors.New("name is required")
	}
	current, err := nonNegative(col(4), "current stock")
	if err != nil {
		return domain.InventoryFormData{}, err
	}
	minimum, err := nonNegative(col(5), "minimum stock")
	if err != nil {
		return domain.InventoryFormData{}, err
	}
	maximum := 0
	if col(6) != "" {
		if maximum, err = nonNegative(col(6), "maximum stock"); err != nil {
			return domain.InventoryFormData{}, err
		}
	}
	expiry, err := time.Parse(time.DateOnly, col(8))
	if err != nil {
		return domain.InventoryFormData{}, fmt.Errorf("expiry: %w", err)
	}
	cost := decimal.Zero
	if col(10) != "" {
		if cost, err = decimal.NewFromString(col(10)); err != nil {
			return domain.InventoryFormData{}, fmt.Errorf("unit cost: %w", err)
		}
	}
	category := domain.ItemCategory(strings.ToLower(col(1)))
	if category == "" {
		category = domain.CategoryOther
	}
	return domain.InventoryFormData{
		Product: domain.ProductInfo{
			Name:         name,
			Category:     category,
			Manufacturer: col(2),
			BatchNumber:  col(3),
		},
		Stock: domain.StockInfo{
			CurrentStock: current,
			MinimumStock: minimum,
			MaximumStock: maximum,
			Unit:         col(7),
		},
		ExpiryDate: expiry,
		Supplier:   domain.SupplierInfo{Name: col(9), UnitCost: cost},
	}, nil
}

func nonNegative(s, field string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s must not be negative", field)
	}
	return n, nil
}
