package cashflow_test

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/meenmo/tvm/calendar"
	"github.com/meenmo/tvm/cashflow"
	"github.com/meenmo/tvm/rate"
)

// bracketTax mirrors the regressive day-bracket withholding schedule used
// in the config tables.
type bracketTax struct{}

func (bracketTax) RateForDays(days int) (float64, error) {
	if days < 0 {
		return 0, fmt.Errorf("negative days: %d", days)
	}
	switch {
	case days >= 721:
		return 0.15, nil
	case days >= 361:
		return 0.175, nil
	case days >= 181:
		return 0.20, nil
	default:
		return 0.225, nil
	}
}

func TestNPV_LevelPayments(t *testing.T) {
	t.Parallel()

	c, err := cashflow.FromRegularPayment(cashflow.PaymentSpec{
		Amount: 250,
		Freq:   calendar.Monthly,
		Dates:  cashflow.DateRange{Periods: 100},
	})
	if err != nil {
		t.Fatalf("FromRegularPayment error: %v", err)
	}
	interest := rate.NewCompound(0.03, calendar.Monthly)
	npv, err := c.NPV(cashflow.ColBrutto, &interest)
	if err != nil {
		t.Fatalf("NPV error: %v", err)
	}
	almostEqual(t, npv.Amount, 7899.73, 1e-2, "level-payment NPV")

	fv := interest.FutureValue(npv.Amount, 100)
	almostEqual(t, fv, 151821.93, 1e-2, "NPV carried forward")
}

func TestNPV_AnticipatedLevelPayments(t *testing.T) {
	t.Parallel()

	c, err := cashflow.FromRegularPayment(cashflow.PaymentSpec{
		Amount: 350,
		Freq:   calendar.Monthly,
		Dates:  cashflow.DateRange{Periods: 150},
	})
	if err != nil {
		t.Fatalf("FromRegularPayment error: %v", err)
	}
	interest := rate.NewCompound(0.025, calendar.Monthly)
	npv, err := c.NPV(cashflow.ColBrutto, &interest)
	if err != nil {
		t.Fatalf("NPV error: %v", err)
	}
	anticipated := interest.FutureValue(npv.Amount, 1)
	almostEqual(t, anticipated, 13996.60, 1e-2, "anticipated NPV")
	almostEqual(t, interest.FutureValue(anticipated, 150), 568332.14, 1e-2, "anticipated NPV carried forward")
}

func TestNPV_ArithmeticGradient(t *testing.T) {
	t.Parallel()

	c, err := cashflow.FromRegularPayment(cashflow.PaymentSpec{
		Amount:         150,
		GradientAmount: 150,
		Freq:           calendar.Monthly,
		Dates:          cashflow.DateRange{Periods: 100},
	})
	if err != nil {
		t.Fatalf("FromRegularPayment error: %v", err)
	}
	interest := rate.NewCompound(0.012, calendar.Monthly)
	npv, err := c.NPV(cashflow.ColBrutto, &interest)
	if err != nil {
		t.Fatalf("NPV error: %v", err)
	}
	almostEqual(t, npv.Amount, 355190.06, 1e-2, "gradient NPV")
}

func TestNPV_RisingThenAnticipated(t *testing.T) {
	t.Parallel()

	c, err := cashflow.FromRegularPayment(cashflow.PaymentSpec{
		Amount:         1500,
		GradientAmount: 150,
		Freq:           calendar.Monthly,
		Dates:          cashflow.DateRange{Periods: 35},
	})
	if err != nil {
		t.Fatalf("FromRegularPayment error: %v", err)
	}
	interest := rate.NewCompound(0.015, calendar.Monthly)
	npv, err := c.NPV(cashflow.ColBrutto, &interest)
	if err != nil {
		t.Fatalf("NPV error: %v", err)
	}
	anticipated := interest.FutureValue(npv.Amount, 1)
	almostEqual(t, anticipated, 105068.95, 1e-2, "anticipated gradient NPV")
	almostEqual(t, interest.FutureValue(anticipated, 35), 176923.65, 1e-2, "gradient NPV carried forward")
}

func TestNPV_GeometricGradient(t *testing.T) {
	t.Parallel()

	c, err := cashflow.FromRegularPayment(cashflow.PaymentSpec{
		Amount:        4500,
		GradientYield: 0.025,
		Freq:          calendar.Monthly,
		Dates:         cashflow.DateRange{Periods: 120},
	})
	if err != nil {
		t.Fatalf("FromRegularPayment error: %v", err)
	}
	interest := rate.NewCompound(0.009, calendar.Monthly)
	npv, err := c.NPV(cashflow.ColBrutto, &interest)
	if err != nil {
		t.Fatalf("NPV error: %v", err)
	}
	anticipated := interest.FutureValue(npv.Amount, 1)
	almostEqual(t, anticipated, 1590814.36, 1e-2, "geometric gradient NPV")
	almostEqual(t, interest.FutureValue(anticipated, 120), 4661862.41, 1e-2, "geometric NPV carried forward")
}

func TestNPV_LoadedRows(t *testing.T) {
	t.Parallel()

	dates, err := calendar.GenerateRange(date(2020, time.January, 31), date(2028, time.April, 30), calendar.Monthly)
	if err != nil {
		t.Fatalf("GenerateRange error: %v", err)
	}
	if len(dates) != 100 {
		t.Fatalf("expected 100 dates, got %d", len(dates))
	}
	rows := make([]cashflow.Row, 100)
	for i := range rows {
		var brutto float64
		if i < 50 {
			brutto = 6000 - 100*float64(i)
		} else {
			brutto = 1100 + 100*float64(i-50)
		}
		rows[i] = cashflow.Row{Date: dates[i], Values: map[string]float64{cashflow.ColBrutto: brutto}}
	}
	c, err := cashflow.FromRows(rows)
	if err != nil {
		t.Fatalf("FromRows error: %v", err)
	}
	interest := rate.NewCompound(0.01, calendar.Monthly)
	npv, err := c.NPV(cashflow.ColBrutto, &interest)
	if err != nil {
		t.Fatalf("NPV error: %v", err)
	}
	anticipated := interest.PresentValue(npv.Amount, 1)
	almostEqual(t, anticipated, 226922.99, 1e-2, "loaded-rows NPV")
	almostEqual(t, interest.FutureValue(anticipated, 100), 613784.43, 1e-2, "loaded-rows NPV carried forward")
}

func TestNPV_RequiresColumnOrRate(t *testing.T) {
	t.Parallel()

	c, err := cashflow.FromRegularPayment(cashflow.PaymentSpec{
		Amount: 100,
		Freq:   calendar.Monthly,
		Dates:  cashflow.DateRange{Start: date(2024, time.January, 15), Periods: 3},
	})
	if err != nil {
		t.Fatalf("FromRegularPayment error: %v", err)
	}
	if _, err := c.NPV(cashflow.ColBrutto, nil); !errors.Is(err, cashflow.ErrMissingColumn) {
		t.Fatalf("NPV without rate or column: got %v, want ErrMissingColumn", err)
	}

	// once discounted, the column persists and a nil rate reuses it
	interest := rate.NewCompound(0.01, calendar.Monthly)
	first, err := c.NPV(cashflow.ColBrutto, &interest)
	if err != nil {
		t.Fatalf("NPV error: %v", err)
	}
	second, err := c.NPV(cashflow.ColBrutto, nil)
	if err != nil {
		t.Fatalf("NPV reuse error: %v", err)
	}
	almostEqual(t, second.Amount, first.Amount, 1e-12, "NPV from cached column")
}

func TestDiscountFromCurve(t *testing.T) {
	t.Parallel()

	c, err := cashflow.FromRegularPayment(cashflow.PaymentSpec{
		Amount: 100,
		Freq:   calendar.Monthly,
		Dates:  cashflow.DateRange{Start: date(2024, time.January, 15), Periods: 2},
	})
	if err != nil {
		t.Fatalf("FromRegularPayment error: %v", err)
	}
	curve, err := rate.NewCurve([]float64{0, 0.01, 0.02}, rate.Compound)
	if err != nil {
		t.Fatalf("NewCurve error: %v", err)
	}
	if _, err := c.DiscountFromCurve(curve, cashflow.ColBrutto); err != nil {
		t.Fatalf("DiscountFromCurve error: %v", err)
	}
	factors := column(t, c, "brutto_discount_factor")
	almostEqual(t, factors[0], 1, 1e-12, "factor 0")
	almostEqual(t, factors[1], 1/1.01, 1e-12, "factor 1")
	almostEqual(t, factors[2], 1/(1.01*1.02), 1e-12, "factor 2")

	short, err := rate.NewCurve([]float64{0.01}, rate.Compound)
	if err != nil {
		t.Fatalf("NewCurve error: %v", err)
	}
	if _, err := c.DiscountFromCurve(short, cashflow.ColBrutto); !errors.Is(err, rate.ErrDomain) {
		t.Fatalf("short curve: got %v, want ErrDomain", err)
	}
}

func TestIRR_LoadedRows(t *testing.T) {
	t.Parallel()

	dates, err := calendar.GenerateRange(date(2020, time.January, 31), date(2022, time.January, 31), calendar.Monthly)
	if err != nil {
		t.Fatalf("GenerateRange error: %v", err)
	}
	if len(dates) != 25 {
		t.Fatalf("expected 25 dates, got %d", len(dates))
	}
	rows := make([]cashflow.Row, len(dates))
	for i, d := range dates {
		var brutto float64
		switch {
		case i == 0:
			brutto = -22500
		case i <= 12:
			brutto = 1250
		default:
			brutto = 1650
		}
		rows[i] = cashflow.Row{Date: d, Values: map[string]float64{cashflow.ColBrutto: brutto}}
	}
	c, err := cashflow.FromRows(rows)
	if err != nil {
		t.Fatalf("FromRows error: %v", err)
	}
	annual, err := c.IRR(cashflow.ColBrutto)
	if err != nil {
		t.Fatalf("IRR error: %v", err)
	}
	monthly, err := annual.Equivalent(calendar.Monthly)
	if err != nil {
		t.Fatalf("Equivalent error: %v", err)
	}
	almostEqual(t, monthly.Value, 0.0355, 5e-5, "monthly IRR")
}

func TestIRR_RecoversBuildRate(t *testing.T) {
	t.Parallel()

	c, err := cashflow.FromRegularInterest(cashflow.InterestSpec{
		Interest:       rate.NewCompound(0.12, calendar.Annual),
		Freq:           calendar.Monthly,
		Dates:          cashflow.DateRange{Start: date(2024, time.January, 10), Periods: 24},
		InitialCapital: -10000,
		FinalCapital:   10000,
	})
	if err != nil {
		t.Fatalf("FromRegularInterest error: %v", err)
	}
	r, err := c.IRR(cashflow.ColBrutto)
	if err != nil {
		t.Fatalf("IRR error: %v", err)
	}
	almostEqual(t, r.Value, 0.12, 1e-6, "annualized IRR")
}

func TestIRR_Rejects(t *testing.T) {
	t.Parallel()

	c, err := cashflow.FromRegularInterest(cashflow.InterestSpec{
		Interest:       rate.NewCompound(0.12, calendar.Annual),
		Freq:           calendar.Bullet,
		Dates:          cashflow.DateRange{Start: date(2024, time.January, 10), End: date(2026, time.January, 10)},
		InitialCapital: -1000,
		FinalCapital:   1000,
	})
	if err != nil {
		t.Fatalf("FromRegularInterest error: %v", err)
	}
	if _, err := c.IRR(cashflow.ColBrutto); !errors.Is(err, calendar.ErrInvalidPeriodicity) {
		t.Fatalf("bullet IRR: got %v, want ErrInvalidPeriodicity", err)
	}

	// all-positive cashflows have no root
	p, err := cashflow.FromRegularPayment(cashflow.PaymentSpec{
		Amount: 100,
		Freq:   calendar.Monthly,
		Dates:  cashflow.DateRange{Start: date(2024, time.January, 15), Periods: 6},
	})
	if err != nil {
		t.Fatalf("FromRegularPayment error: %v", err)
	}
	if _, err := p.IRR(cashflow.ColBrutto); !errors.Is(err, rate.ErrDomain) {
		t.Fatalf("one-signed IRR: got %v, want ErrDomain", err)
	}
}

func TestTax_GeneratedSchedule(t *testing.T) {
	t.Parallel()

	c, err := cashflow.FromRegularInterest(cashflow.InterestSpec{
		Interest:       rate.NewCompound(0.12, calendar.Annual),
		Freq:           calendar.Monthly,
		Dates:          cashflow.DateRange{Start: date(2020, time.January, 31), Periods: 24},
		InitialCapital: -10000,
		FinalCapital:   10000,
	})
	if err != nil {
		t.Fatalf("FromRegularInterest error: %v", err)
	}
	if _, err := c.Tax(bracketTax{}); err != nil {
		t.Fatalf("Tax error: %v", err)
	}

	rates := column(t, c, cashflow.ColTaxRate)
	days := column(t, c, cashflow.ColDeltaDays)
	taxes := column(t, c, cashflow.ColTax)
	netto := column(t, c, cashflow.ColNetto)
	brutto := column(t, c, cashflow.ColBrutto)
	interest := column(t, c, cashflow.ColInterestPaid)

	if rates[0] != 0.225 {
		t.Fatalf("day-0 rate = %v, want 0.225", rates[0])
	}
	// 2020-01-31 to 2022-01-31 spans 731 days, into the longest bracket
	if rates[len(rates)-1] != 0.15 {
		t.Fatalf("final rate = %v, want 0.15", rates[len(rates)-1])
	}
	// rates never increase with holding period
	for i := 1; i < len(rates); i++ {
		if rates[i] > rates[i-1] {
			t.Fatalf("rate rose from %v to %v at row %d", rates[i-1], rates[i], i)
		}
		if days[i] <= days[i-1] {
			t.Fatalf("delta days not increasing at row %d", i)
		}
	}
	for i := range taxes {
		almostEqual(t, taxes[i], math.Round(interest[i]*rates[i]*100)/100, 0.011, "tax on interest")
		almostEqual(t, netto[i], brutto[i]-taxes[i], 1e-9, "netto")
	}
}

func TestTax_BullettoAssumptionOnBareBrutto(t *testing.T) {
	t.Parallel()

	dates, err := calendar.GenerateRange(date(2020, time.January, 31), date(2022, time.January, 31), calendar.Monthly)
	if err != nil {
		t.Fatalf("GenerateRange error: %v", err)
	}
	rows := make([]cashflow.Row, len(dates))
	for i, d := range dates {
		var brutto float64
		switch i {
		case 0:
			brutto = -10000
		case len(dates) - 1:
			brutto = 10100
		default:
			brutto = 100
		}
		rows[i] = cashflow.Row{Date: d, Values: map[string]float64{cashflow.ColBrutto: brutto}}
	}
	c, err := cashflow.FromRows(rows)
	if err != nil {
		t.Fatalf("FromRows error: %v", err)
	}
	if _, err := c.Tax(bracketTax{}); err != nil {
		t.Fatalf("Tax error: %v", err)
	}
	principal := column(t, c, cashflow.ColPrincipal)
	interest := column(t, c, cashflow.ColInterestPaid)
	almostEqual(t, principal[0], -10000, 1e-12, "derived placement")
	almostEqual(t, principal[len(principal)-1], 10000, 1e-12, "derived redemption")
	almostEqual(t, interest[len(interest)-1], 100, 1e-12, "derived final interest")
}

func TestTax_RequiresBrutto(t *testing.T) {
	t.Parallel()

	c, err := cashflow.FromEqualInstallments(cashflow.InstallmentSpec{
		Interest:       rate.NewCompound(0.01, calendar.Monthly),
		InitialCapital: -100000,
		Freq:           calendar.Monthly,
		Dates:          cashflow.DateRange{Start: date(2024, time.January, 15), Periods: 12},
	})
	if err != nil {
		t.Fatalf("FromEqualInstallments error: %v", err)
	}
	// installments keep only brutto; the bullet assumption fills the rest
	if _, err := c.Tax(bracketTax{}); err != nil {
		t.Fatalf("Tax error: %v", err)
	}

	bare := cashflow.New()
	if _, err := bare.Tax(bracketTax{}); err == nil {
		t.Fatalf("Tax on empty schedule succeeded")
	}
}

func TestDeflateConstant(t *testing.T) {
	t.Parallel()

	c, err := cashflow.FromRegularPayment(cashflow.PaymentSpec{
		Amount: 100,
		Freq:   calendar.Monthly,
		Dates:  cashflow.DateRange{Start: date(2024, time.January, 15), Periods: 12},
	})
	if err != nil {
		t.Fatalf("FromRegularPayment error: %v", err)
	}
	if _, err := c.DeflateConstant(rate.NewCompound(0.06, calendar.Annual), cashflow.ColBrutto, time.Time{}); err != nil {
		t.Fatalf("DeflateConstant error: %v", err)
	}
	deflator := column(t, c, cashflow.ColDeflator)
	deflated := column(t, c, "brutto_deflated")
	brutto := column(t, c, cashflow.ColBrutto)

	almostEqual(t, deflator[0], 1, 1e-12, "deflator at basis")
	almostEqual(t, deflator[12], 1.06, 1e-9, "deflator one year out")
	for i := range deflated {
		almostEqual(t, deflated[i], brutto[i]/deflator[i], 1e-9, "deflated brutto")
	}
}

func TestDeflateConstant_RejectsForeignBasis(t *testing.T) {
	t.Parallel()

	c, err := cashflow.FromRegularPayment(cashflow.PaymentSpec{
		Amount: 100,
		Freq:   calendar.Monthly,
		Dates:  cashflow.DateRange{Start: date(2024, time.January, 15), Periods: 3},
	})
	if err != nil {
		t.Fatalf("FromRegularPayment error: %v", err)
	}
	_, err = c.DeflateConstant(rate.NewCompound(0.06, calendar.Annual), cashflow.ColBrutto, date(2024, time.January, 16))
	if !errors.Is(err, calendar.ErrInvalidDateRange) {
		t.Fatalf("foreign basis: got %v, want ErrInvalidDateRange", err)
	}
}

func TestDeflateFromCurve(t *testing.T) {
	t.Parallel()

	c, err := cashflow.FromRegularPayment(cashflow.PaymentSpec{
		Amount: 100,
		Freq:   calendar.Monthly,
		Dates:  cashflow.DateRange{Start: date(2024, time.January, 15), Periods: 2},
	})
	if err != nil {
		t.Fatalf("FromRegularPayment error: %v", err)
	}
	if _, err := c.DeflateFromCurve([]float64{1, 1.01, 1.02}, cashflow.ColBrutto); err != nil {
		t.Fatalf("DeflateFromCurve error: %v", err)
	}
	deflated := column(t, c, "brutto_deflated")
	almostEqual(t, deflated[1], 100/1.01, 1e-12, "curve-deflated payment")

	if _, err := c.DeflateFromCurve([]float64{1, 0, 1}, cashflow.ColBrutto); !errors.Is(err, rate.ErrDomain) {
		t.Fatalf("zero deflator: got %v, want ErrDomain", err)
	}
	if _, err := c.DeflateFromCurve([]float64{1, 1.01}, cashflow.ColBrutto); !errors.Is(err, rate.ErrDomain) {
		t.Fatalf("length mismatch: got %v, want ErrDomain", err)
	}
}
