// Command schedule builds and values payment schedules from JSON requests:
// coupon accruals, flat or graded payments and equal installments, with
// optional withholding tax, discounting, deflation and business-day
// adjusted pay dates.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rickar/cal/v2"
	"go.uber.org/zap"

	"github.com/meenmo/tvm/calendar"
	"github.com/meenmo/tvm/cashflow"
	"github.com/meenmo/tvm/config"
	"github.com/meenmo/tvm/rate"
)

type rateJSON struct {
	Value     float64 `json:"value"`
	Frequency string  `json:"frequency"`
	Regime    string  `json:"regime"`
}

type scheduleInput struct {
	TaskID         string    `json:"task_id,omitempty"`
	Kind           string    `json:"kind"` // interest | payment | installment
	InitialCapital float64   `json:"initial_capital"`
	FinalCapital   float64   `json:"final_capital"`
	Amount         float64   `json:"amount"`
	Frequency      string    `json:"frequency"`
	StartDate      string    `json:"start_date,omitempty"`
	EndDate        string    `json:"end_date,omitempty"`
	Periods        int       `json:"periods,omitempty"`
	Interest       *rateJSON `json:"interest,omitempty"`
	Inflation      *rateJSON `json:"inflation,omitempty"`
	GradientYield  float64   `json:"gradient_yield,omitempty"`
	GradientAmount float64   `json:"gradient_amount,omitempty"`
	Tax            bool      `json:"tax,omitempty"`
	ConfigPath     string    `json:"config,omitempty"`
	Discount       *rateJSON `json:"discount,omitempty"`
	Deflate        *rateJSON `json:"deflate,omitempty"`
	BusinessDays   bool      `json:"business_days,omitempty"`
}

type rowJSON struct {
	Date    string             `json:"date"`
	PayDate string             `json:"pay_date,omitempty"`
	Values  map[string]float64 `json:"values"`
}

type scheduleOutput struct {
	TaskID    string    `json:"task_id,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Frequency string    `json:"frequency,omitempty"`
	Rows      []rowJSON `json:"rows,omitempty"`
	NPV       *float64  `json:"npv,omitempty"`
	IRR       *float64  `json:"irr,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func main() {
	inputPath := flag.String("input", "", "JSON input path (reads stdin if omitted)")
	help := flag.Bool("h", false, "Show help")
	flag.BoolVar(help, "help", false, "Show help")
	flag.Parse()

	if *help {
		fmt.Fprintln(os.Stderr, "Usage: schedule -input <path>")
		fmt.Fprintln(os.Stderr, "Build and value a payment schedule from a JSON request.")
		return
	}

	log, _ := zap.NewProduction()
	defer log.Sync()

	path := strings.TrimSpace(*inputPath)
	if path == "" {
		if stat, err := os.Stdin.Stat(); err == nil && (stat.Mode()&os.ModeCharDevice) != 0 {
			fmt.Fprintln(os.Stderr, "Usage: schedule -input <path>")
			os.Exit(2)
		}
	}

	raw, err := readInput(path)
	if err != nil {
		exitError(fmt.Sprintf("read input: %v", err))
	}

	inputs, isArray, err := parseInputs(raw)
	if err != nil {
		exitError(fmt.Sprintf("parse JSON: %v", err))
	}

	hadError := false
	outputs := make([]scheduleOutput, 0, len(inputs))
	for _, in := range inputs {
		out, err := process(in, log)
		if err != nil {
			hadError = true
			log.Warn("request failed", zap.String("task_id", in.TaskID), zap.Error(err))
			outputs = append(outputs, scheduleOutput{TaskID: in.TaskID, Error: err.Error()})
			continue
		}
		outputs = append(outputs, *out)
	}

	if isArray {
		b, _ := json.Marshal(outputs)
		fmt.Println(string(b))
	} else {
		b, _ := json.Marshal(outputs[0])
		fmt.Println(string(b))
	}

	if hadError {
		os.Exit(1)
	}
}

func parseRate(rj *rateJSON) (rate.Rate, error) {
	return rate.New(rj.Value, calendar.Periodicity(rj.Frequency), rate.Regime(rj.Regime))
}

func parseDates(in scheduleInput) (cashflow.DateRange, error) {
	var dr cashflow.DateRange
	if in.StartDate != "" {
		t, err := time.Parse("2006-01-02", in.StartDate)
		if err != nil {
			return dr, fmt.Errorf("invalid start_date: %v", err)
		}
		dr.Start = t
	}
	if in.EndDate != "" {
		t, err := time.Parse("2006-01-02", in.EndDate)
		if err != nil {
			return dr, fmt.Errorf("invalid end_date: %v", err)
		}
		dr.End = t
	}
	dr.Periods = in.Periods
	return dr, nil
}

func buildSchedule(in scheduleInput) (*cashflow.Cashflow, error) {
	freq := calendar.Periodicity(in.Frequency)
	dates, err := parseDates(in)
	if err != nil {
		return nil, err
	}

	switch in.Kind {
	case "interest":
		if in.Interest == nil {
			return nil, fmt.Errorf("kind %q needs an interest rate", in.Kind)
		}
		interest, err := parseRate(in.Interest)
		if err != nil {
			return nil, err
		}
		spec := cashflow.InterestSpec{
			Interest:       interest,
			Freq:           freq,
			Dates:          dates,
			InitialCapital: in.InitialCapital,
			FinalCapital:   in.FinalCapital,
			GradientYield:  in.GradientYield,
		}
		if in.Inflation != nil {
			infl, err := parseRate(in.Inflation)
			if err != nil {
				return nil, err
			}
			spec.Inflation = &infl
		}
		return cashflow.FromRegularInterest(spec)
	case "payment":
		return cashflow.FromRegularPayment(cashflow.PaymentSpec{
			Amount:         in.Amount,
			Freq:           freq,
			Dates:          dates,
			InitialCapital: in.InitialCapital,
			FinalCapital:   in.FinalCapital,
			GradientYield:  in.GradientYield,
			GradientAmount: in.GradientAmount,
		})
	case "installment":
		if in.Interest == nil {
			return nil, fmt.Errorf("kind %q needs an interest rate", in.Kind)
		}
		interest, err := parseRate(in.Interest)
		if err != nil {
			return nil, err
		}
		return cashflow.FromEqualInstallments(cashflow.InstallmentSpec{
			Interest:       interest,
			InitialCapital: in.InitialCapital,
			Freq:           freq,
			Dates:          dates,
		})
	default:
		return nil, fmt.Errorf("unknown kind %q (want interest, payment or installment)", in.Kind)
	}
}

func loadTables(path string) (config.Tables, error) {
	if path == "" {
		return config.Default(), nil
	}
	t, err := config.Load(path)
	if err != nil {
		return config.Tables{}, err
	}
	return *t, nil
}

func process(in scheduleInput, log *zap.Logger) (*scheduleOutput, error) {
	c, err := buildSchedule(in)
	if err != nil {
		return nil, err
	}

	if in.Tax {
		tables, err := loadTables(in.ConfigPath)
		if err != nil {
			return nil, err
		}
		if _, err := c.Tax(tables.Withholding); err != nil {
			return nil, err
		}
	}

	out := &scheduleOutput{
		TaskID:    in.TaskID,
		Kind:      in.Kind,
		Frequency: string(c.Freq()),
	}

	target := cashflow.ColBrutto
	if in.Tax {
		target = cashflow.ColNetto
	}

	if in.Discount != nil {
		discount, err := parseRate(in.Discount)
		if err != nil {
			return nil, err
		}
		npv, err := c.NPV(target, &discount)
		if err != nil {
			return nil, err
		}
		out.NPV = &npv.Amount
	}

	if in.Deflate != nil {
		deflate, err := parseRate(in.Deflate)
		if err != nil {
			return nil, err
		}
		if _, err := c.DeflateConstant(deflate, target, time.Time{}); err != nil {
			return nil, err
		}
	}

	if irr, err := c.IRR(target); err == nil {
		out.IRR = &irr.Value
	}

	var payDates []time.Time
	if in.BusinessDays {
		payDates = calendar.AdjustRange(c.Dates(), cal.NewBusinessCalendar())
	}

	rows := c.Rows()
	out.Rows = make([]rowJSON, len(rows))
	for i, r := range rows {
		rj := rowJSON{Date: r.Date.Format("2006-01-02"), Values: r.Values}
		if payDates != nil {
			rj.PayDate = payDates[i].Format("2006-01-02")
		}
		out.Rows[i] = rj
	}
	log.Info("schedule built",
		zap.String("task_id", in.TaskID),
		zap.String("kind", in.Kind),
		zap.Int("rows", len(rows)))
	return out, nil
}

func readInput(path string) ([]byte, error) {
	if path != "" {
		return os.ReadFile(path)
	}
	return io.ReadAll(os.Stdin)
}

func parseInputs(raw []byte) ([]scheduleInput, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, false, fmt.Errorf("empty input")
	}
	if trimmed[0] == '[' {
		var inputs []scheduleInput
		if err := json.Unmarshal(trimmed, &inputs); err != nil {
			return nil, true, err
		}
		if len(inputs) == 0 {
			return nil, true, fmt.Errorf("empty input array")
		}
		return inputs, true, nil
	}
	var input scheduleInput
	if err := json.Unmarshal(trimmed, &input); err != nil {
		return nil, false, err
	}
	return []scheduleInput{input}, false, nil
}

func exitError(msg string) {
	b, _ := json.Marshal(scheduleOutput{Error: msg})
	fmt.Println(string(b))
	os.Exit(1)
}
