package bond_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/meenmo/tvm/bond"
	"github.com/meenmo/tvm/calendar"
	"github.com/meenmo/tvm/cashflow"
	"github.com/meenmo/tvm/config"
	"github.com/meenmo/tvm/rate"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func almostEqual(t *testing.T, got, want, tol float64, msg string) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Fatalf("%s: got %v, want %v", msg, got, want)
	}
}

func cdb(face float64) bond.Instrument {
	return bond.Instrument{
		Name:      "CDB 12%",
		Category:  "cdb",
		FaceValue: face,
		Interest:  rate.NewCompound(0.12, calendar.Annual),
		Freq:      calendar.Monthly,
		Issue:     date(2024, time.January, 31),
		Maturity:  date(2026, time.January, 31),
	}
}

func TestSchedule_Layout(t *testing.T) {
	t.Parallel()

	c, err := cdb(10000).Schedule()
	if err != nil {
		t.Fatalf("Schedule error: %v", err)
	}
	if c.Len() != 25 {
		t.Fatalf("expected 25 rows, got %d", c.Len())
	}
	brutto, err := c.Column(cashflow.ColBrutto)
	if err != nil {
		t.Fatalf("Column error: %v", err)
	}
	almostEqual(t, brutto[0], -10000, 1e-9, "placement")
	monthly := math.Pow(1.12, 1.0/12) - 1
	almostEqual(t, brutto[24], 10000+10000*monthly, 1e-6, "redemption")
}

func TestYield_RecoversCoupon(t *testing.T) {
	t.Parallel()

	y, err := cdb(10000).Yield()
	if err != nil {
		t.Fatalf("Yield error: %v", err)
	}
	if y.Freq != calendar.Annual || y.Regime != rate.Compound {
		t.Fatalf("yield not annual compound: %s", y)
	}
	almostEqual(t, y.Value, 0.12, 1e-6, "gross yield")
}

func TestNetSchedule_Taxable(t *testing.T) {
	t.Parallel()

	tables := config.Default()
	c, err := cdb(10000).NetSchedule(tables)
	if err != nil {
		t.Fatalf("NetSchedule error: %v", err)
	}
	netto, err := c.Column(cashflow.ColNetto)
	if err != nil {
		t.Fatalf("Column error: %v", err)
	}
	brutto, err := c.Column(cashflow.ColBrutto)
	if err != nil {
		t.Fatalf("Column error: %v", err)
	}
	for i := 1; i < len(netto); i++ {
		if netto[i] >= brutto[i] {
			t.Fatalf("row %d: netto %v not below brutto %v", i, netto[i], brutto[i])
		}
	}

	netYield, err := cdb(10000).NetYield(tables)
	if err != nil {
		t.Fatalf("NetYield error: %v", err)
	}
	grossYield, err := cdb(10000).Yield()
	if err != nil {
		t.Fatalf("Yield error: %v", err)
	}
	if netYield.Value >= grossYield.Value {
		t.Fatalf("net yield %v not below gross %v", netYield.Value, grossYield.Value)
	}
}

func TestNetSchedule_Exempt(t *testing.T) {
	t.Parallel()

	lci := cdb(10000)
	lci.Name = "LCI 12%"
	lci.Category = "lci"

	c, err := lci.NetSchedule(config.Default())
	if err != nil {
		t.Fatalf("NetSchedule error: %v", err)
	}
	netto, err := c.Column(cashflow.ColNetto)
	if err != nil {
		t.Fatalf("Column error: %v", err)
	}
	brutto, err := c.Column(cashflow.ColBrutto)
	if err != nil {
		t.Fatalf("Column error: %v", err)
	}
	for i := range netto {
		almostEqual(t, netto[i], brutto[i], 1e-12, "exempt netto")
	}
}

func TestNetSchedule_UnknownCategory(t *testing.T) {
	t.Parallel()

	b := cdb(10000)
	b.Category = "mystery"
	if _, err := b.NetSchedule(config.Default()); !errors.Is(err, bond.ErrUnknownCategory) {
		t.Fatalf("unknown category: got %v, want ErrUnknownCategory", err)
	}
	if _, err := b.Insured(config.Default()); !errors.Is(err, bond.ErrUnknownCategory) {
		t.Fatalf("unknown category: got %v, want ErrUnknownCategory", err)
	}
}

func TestPresentValue_AtCouponRate(t *testing.T) {
	t.Parallel()

	monthly, err := rate.NewCompound(0.12, calendar.Annual).Equivalent(calendar.Monthly)
	if err != nil {
		t.Fatalf("Equivalent error: %v", err)
	}
	pv, err := cdb(10000).PresentValue(monthly)
	if err != nil {
		t.Fatalf("PresentValue error: %v", err)
	}
	almostEqual(t, pv.Amount, 0, 1e-6, "NPV at the coupon rate")
	if !pv.Date.Equal(date(2024, time.January, 31)) {
		t.Fatalf("NPV anchored at %s, want issue date", pv.Date.Format("2006-01-02"))
	}
}

func TestInsured(t *testing.T) {
	t.Parallel()

	insured, err := cdb(10000).Insured(config.Default())
	if err != nil {
		t.Fatalf("Insured error: %v", err)
	}
	if !insured {
		t.Fatalf("cdb not insured")
	}
}

func TestPortfolio_SumsSchedules(t *testing.T) {
	t.Parallel()

	a := cdb(10000)
	b := cdb(5000)
	b.Name = "CDB 12% (second)"

	total, err := bond.Portfolio(config.Default(), a, b)
	if err != nil {
		t.Fatalf("Portfolio error: %v", err)
	}
	brutto, err := total.Column(cashflow.ColBrutto)
	if err != nil {
		t.Fatalf("Column error: %v", err)
	}
	almostEqual(t, brutto[0], -15000, 1e-9, "combined placement")
}
