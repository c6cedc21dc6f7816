package batch

import (
	"fmt"

	"Voltaris/internal/calc/power"
	"Voltaris/internal/calc/validate"
	"Voltaris/internal/calc/voltagedrop"
)

const MaxItems = 500

type Input struct {
	Power       []power.Input       `json:"power"`
	VoltageDrop []voltagedrop.Input `json:"voltage_drop"`
}

type Result struct {
	Power       []power.Result       `json:"power"`
	VoltageDrop []voltagedrop.Result `json:"voltage_drop"`
}

type Calculator struct {
	Power       *power.Calculator
	VoltageDrop *voltagedrop.Calculator
}

// Calculate evaluates every item or none: the first invalid item fails the
// whole batch with its index in the error field.
func (c *Calculator) Calculate(in Input) (Result, error) {
	total := len(in.Power) + len(in.VoltageDrop)
	if total == 0 {
		return Result{}, validate.Errorf("items", "must not be empty")
	}
	if total > MaxItems {
		return Result{}, validate.Errorf("items", "must not exceed %d", MaxItems)
	}

	pc, vc := c.Power, c.VoltageDrop
	if pc == nil {
		pc = power.Default()
	}
	if vc == nil {
		vc = voltagedrop.Default()
	}

	out := Result{
		Power:       make([]power.Result, 0, len(in.Power)),
		VoltageDrop: make([]voltagedrop.Result, 0, len(in.VoltageDrop)),
	}
	for i, item := range in.Power {
		res, err := pc.Calculate(item)
		if err != nil {
			return Result{}, validate.Prefix(fmt.Sprintf("power[%d]", i), err)
		}
		out.Power = append(out.Power, res)
	}
	for i, item := range in.VoltageDrop {
		res, err := vc.Calculate(item)
		if err != nil {
			return Result{}, validate.Prefix(fmt.Sprintf("voltage_drop[%d]", i), err)
		}
		out.VoltageDrop = append(out.VoltageDrop, res)
	}
	return out, nil
}

// Rounded applies display rounding to every item.
func (r Result) Rounded() Result {
	for i := range r.Power {
		r.Power[i] = r.Power[i].Rounded()
	}
	for i := range r.VoltageDrop {
		r.VoltageDrop[i] = r.VoltageDrop[i].Rounded()
	}
	return r
}
