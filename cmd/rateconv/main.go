// Command rateconv converts interest rates between periodicities and
// regimes and evaluates the growth equation: future value, present value,
// elapsed time or the implied rate, whichever the request leaves open.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/meenmo/tvm/calendar"
	"github.com/meenmo/tvm/rate"
)

type convInput struct {
	TaskID string `json:"task_id,omitempty"`

	Value     float64 `json:"value"`
	Frequency string  `json:"frequency"`
	Regime    string  `json:"regime"`

	ToFrequency string `json:"to_frequency,omitempty"`
	ToRegime    string `json:"to_regime,omitempty"`

	PresentValue *float64 `json:"present_value,omitempty"`
	FutureValue  *float64 `json:"future_value,omitempty"`
	DeltaTime    *float64 `json:"delta_time,omitempty"`
}

type convOutput struct {
	TaskID string `json:"task_id,omitempty"`

	Value     float64 `json:"value"`
	Frequency string  `json:"frequency"`
	Regime    string  `json:"regime"`

	PresentValue *float64 `json:"present_value,omitempty"`
	FutureValue  *float64 `json:"future_value,omitempty"`
	DeltaTime    *float64 `json:"delta_time,omitempty"`
	Error        string   `json:"error,omitempty"`
}

func main() {
	inputPath := flag.String("input", "", "JSON input path (reads stdin if omitted)")
	help := flag.Bool("h", false, "Show help")
	flag.BoolVar(help, "help", false, "Show help")
	flag.Parse()

	if *help {
		fmt.Fprintln(os.Stderr, "Usage: rateconv -input <path>")
		fmt.Fprintln(os.Stderr, "Convert a rate across periodicities and regimes, or solve the growth equation.")
		return
	}

	path := strings.TrimSpace(*inputPath)
	if path == "" {
		if stat, err := os.Stdin.Stat(); err == nil && (stat.Mode()&os.ModeCharDevice) != 0 {
			fmt.Fprintln(os.Stderr, "Usage: rateconv -input <path>")
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
	outputs := make([]convOutput, 0, len(inputs))
	for _, in := range inputs {
		out, err := process(in)
		if err != nil {
			hadError = true
			outputs = append(outputs, convOutput{TaskID: in.TaskID, Error: err.Error()})
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

func process(in convInput) (*convOutput, error) {
	r, err := baseRate(in)
	if err != nil {
		return nil, err
	}

	if in.ToFrequency != "" {
		r, err = r.Equivalent(calendar.Periodicity(in.ToFrequency))
		if err != nil {
			return nil, err
		}
	}
	if in.ToRegime != "" {
		switch rate.Regime(in.ToRegime) {
		case rate.Simple:
			r = r.ToSimple()
		case rate.Compound:
			r = r.ToCompound()
		case rate.Continuous:
			r = r.ToContinuous()
		default:
			return nil, fmt.Errorf("unknown to_regime %q", in.ToRegime)
		}
	}

	out := &convOutput{
		TaskID:    in.TaskID,
		Value:     r.Value,
		Frequency: string(r.Freq),
		Regime:    string(r.Regime),
	}

	switch {
	case in.PresentValue != nil && in.DeltaTime != nil && in.FutureValue == nil:
		fv := r.FutureValue(*in.PresentValue, *in.DeltaTime)
		out.PresentValue, out.DeltaTime, out.FutureValue = in.PresentValue, in.DeltaTime, &fv
	case in.FutureValue != nil && in.DeltaTime != nil && in.PresentValue == nil:
		pv := r.PresentValue(*in.FutureValue, *in.DeltaTime)
		out.FutureValue, out.DeltaTime, out.PresentValue = in.FutureValue, in.DeltaTime, &pv
	case in.PresentValue != nil && in.FutureValue != nil && in.DeltaTime == nil:
		dt, err := r.DeltaTime(*in.FutureValue, *in.PresentValue)
		if err != nil {
			return nil, err
		}
		out.PresentValue, out.FutureValue, out.DeltaTime = in.PresentValue, in.FutureValue, &dt
	}
	return out, nil
}

// baseRate builds the request's rate, or infers it from the growth equation
// when all three of present value, future value and delta time are present.
func baseRate(in convInput) (rate.Rate, error) {
	freq := calendar.Periodicity(in.Frequency)
	regime := rate.Regime(in.Regime)
	if in.PresentValue != nil && in.FutureValue != nil && in.DeltaTime != nil {
		return rate.FromEquation(*in.PresentValue, *in.FutureValue, *in.DeltaTime, freq, regime)
	}
	return rate.New(in.Value, freq, regime)
}

func readInput(path string) ([]byte, error) {
	if path != "" {
		return os.ReadFile(path)
	}
	return io.ReadAll(os.Stdin)
}

func parseInputs(raw []byte) ([]convInput, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, false, fmt.Errorf("empty input")
	}
	if trimmed[0] == '[' {
		var inputs []convInput
		if err := json.Unmarshal(trimmed, &inputs); err != nil {
			return nil, true, err
		}
		if len(inputs) == 0 {
			return nil, true, fmt.Errorf("empty input array")
		}
		return inputs, true, nil
	}
	var input convInput
	if err := json.Unmarshal(trimmed, &input); err != nil {
		return nil, false, err
	}
	return []convInput{input}, false, nil
}

func exitError(msg string) {
	b, _ := json.Marshal(convOutput{Error: msg})
	fmt.Println(string(b))
	os.Exit(1)
}
