// Package config holds the constant tables the engine is parameterized by:
// withholding-tax brackets, instrument category flags and the inflation
// forecast. They are injected configuration data, not compiled-in globals,
// so regional or regulatory variants swap in without touching the engine.
package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/viper"
)

var (
	ErrInvalidDays    = errors.New("elapsed days must be non-negative")
	ErrInvalidBracket = errors.New("invalid withholding bracket table")
)

// Bracket maps a minimum holding period in days to a withholding rate.
type Bracket struct {
	MinDays int     `mapstructure:"min_days"`
	Rate    float64 `mapstructure:"rate"`
}

// WithholdingBrackets is a day-bracket withholding schedule, ascending by
// MinDays with non-increasing rates: the longer the holding, the lower (or
// equal) the rate.
type WithholdingBrackets []Bracket

// RateForDays returns the rate of the bracket with the greatest MinDays not
// exceeding days.
func (b WithholdingBrackets) RateForDays(days int) (float64, error) {
	if days < 0 {
		return 0, fmt.Errorf("RateForDays: %w: %d", ErrInvalidDays, days)
	}
	if len(b) == 0 {
		return 0, fmt.Errorf("RateForDays: %w: empty", ErrInvalidBracket)
	}
	rate := b[0].Rate
	for _, bracket := range b {
		if days >= bracket.MinDays {
			rate = bracket.Rate
		}
	}
	return rate, nil
}

func (b WithholdingBrackets) validate() error {
	for i := 1; i < len(b); i++ {
		if b[i].MinDays <= b[i-1].MinDays {
			return fmt.Errorf("%w: min_days not ascending at entry %d", ErrInvalidBracket, i)
		}
		if b[i].Rate > b[i-1].Rate {
			return fmt.Errorf("%w: rates must not increase with holding period (entry %d)", ErrInvalidBracket, i)
		}
	}
	return nil
}

// Category flags an instrument class: deposit-insurance coverage and
// whether its interest is subject to withholding.
type Category struct {
	Insured bool `mapstructure:"insured"`
	Taxable bool `mapstructure:"taxable"`
}

// Tables bundles the injectable constant tables.
type Tables struct {
	Withholding       WithholdingBrackets `mapstructure:"withholding_brackets"`
	InflationForecast map[int]float64     `mapstructure:"inflation_forecast"`
	Categories        map[string]Category `mapstructure:"categories"`
}

// ForecastFor returns the forecast inflation rate for a year.
func (t Tables) ForecastFor(year int) (float64, bool) {
	v, ok := t.InflationForecast[year]
	return v, ok
}

// ForecastYears lists the forecast years in ascending order.
func (t Tables) ForecastYears() []int {
	years := make([]int, 0, len(t.InflationForecast))
	for y := range t.InflationForecast {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Default returns the Brazilian tables: the regressive IOF/IR withholding
// schedule, the Focus IPCA forecast and the usual instrument categories.
func Default() Tables {
	return Tables{
		Withholding: WithholdingBrackets{
			{MinDays: 0, Rate: 0.225},
			{MinDays: 181, Rate: 0.20},
			{MinDays: 361, Rate: 0.175},
			{MinDays: 721, Rate: 0.15},
		},
		InflationForecast: map[int]float64{
			2024: 0.0381,
			2025: 0.0350,
			2026: 0.0350,
			2027: 0.0350,
		},
		Categories: map[string]Category{
			"poupanca": {Insured: true, Taxable: true},
			"cdb":      {Insured: true, Taxable: true},
			"lc":       {Insured: true, Taxable: true},
			"lh":       {Insured: true, Taxable: true},
			"lci":      {Insured: true, Taxable: false},
			"lca":      {Insured: true, Taxable: false},
			"debinc":   {Insured: false, Taxable: false},
			"deb":      {Insured: false, Taxable: true},
			"lf":       {Insured: false, Taxable: true},
			"fundo":    {Insured: false, Taxable: true},
			"cri":      {Insured: false, Taxable: false},
			"cra":      {Insured: false, Taxable: false},
			"lig":      {Insured: false, Taxable: true},
			"vgbl":     {Insured: false, Taxable: true},
			"pgbl":     {Insured: false, Taxable: true},
			"ntnb":     {Insured: false, Taxable: true},
		},
	}
}

// Load reads a YAML table file. Sections absent from the file keep their
// Default values; a present withholding table is validated.
func Load(path string) (*Tables, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config.Load: read %s: %w", path, err)
	}

	tables := Default()
	if err := v.Unmarshal(&tables); err != nil {
		return nil, fmt.Errorf("config.Load: decode %s: %w", path, err)
	}
	if err := tables.Withholding.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &tables, nil
}
