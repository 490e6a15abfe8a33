package seed

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pharmacore/pkg/domain"
)

type recordingAdder struct {
	forms []domain.InventoryFormData
	err   error
}

func (r *recordingAdder) AddItem(_ context.Context, form domain.InventoryFormData, _ string) (domain.InventoryItem, error) {
	if r.err != nil {
		return domain.InventoryItem{}, r.err
	}
	r.forms = append(r.forms, form)
	return domain.InventoryItem{Product: form.Product}, nil
}

const sample = `name,category,manufacturer,batch,current,minimum,maximum,unit,expiry,supplier,unit_cost
Aspirin 100mg,OTC,Bayer,B-001,120,20,300,tablets,2026-05-01,MedSupply,0.12
Broken,otc,Acme,B-002,lots,10,,tablets,2026-05-01,MedSupply,0.10
Amoxicillin,prescription,Sandoz,B-003,40,10,,capsules,2025-12-31,PharmaDist,
Short,row
Ibuprofen,otc,Acme,B-004,10,5,50,tablets,31/12/2026,MedSupply,0.08
`

func TestLoadInventory(t *testing.T) {
	adder := &recordingAdder{}
	res, err := LoadInventory(context.Background(), adder, strings.NewReader(sample), "seed", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Added != 2 || len(res.Skipped) != 3 {
		t.Fatalf("unexpected result %+v", res)
	}
	lines := []int{res.Skipped[0].Line, res.Skipped[1].Line, res.Skipped[2].Line}
	if lines[0] != 3 || lines[1] != 5 || lines[2] != 6 {
		t.Fatalf("unexpected skipped lines %v", lines)
	}

	first := adder.forms[0]
	if first.Product.Name != "Aspirin 100mg" || first.Product.Category != domain.CategoryOTC || first.Stock.MaximumStock != 300 {
		t.Fatalf("unexpected first form %+v", first)
	}
	if !first.Supplier.UnitCost.Equal(decimal.RequireFromString("0.12")) {
		t.Fatalf("unexpected unit cost %s", first.Supplier.UnitCost)
	}
	if !first.ExpiryDate.Equal(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected expiry %s", first.ExpiryDate)
	}
	second := adder.forms[1]
	if second.Stock.MaximumStock != 0 || !second.Supplier.UnitCost.IsZero() {
		t.Fatalf("optional columns not defaulted: %+v", second)
	}
}

func TestLoadInventoryStopsOnAddFailure(t *testing.T) {
	boom := errors.New("store down")
	_, err := LoadInventory(context.Background(), &recordingAdder{err: boom}, strings.NewReader(sample), "seed", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected add failure, got %v", err)
	}
}

func TestLoadInventoryEmptyInput(t *testing.T) {
	res, err := LoadInventory(context.Background(), &recordingAdder{}, strings.NewReader(""), "seed", nil)
	if err != nil || res.Added != 0 {
		t.Fatalf("expected empty result, got %+v err=%v", res, err)
	}
}
