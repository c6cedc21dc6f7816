package power

import (
	"fmt"
	"math"

	"Voltaris/internal/calc/validate"
)

const (
	MotorSafetyFactor    = 2.0
	NonMotorSafetyFactor = 1.5
	CapacityStepKVA      = 5.0
)

const (
	RationaleMotor  = "Motor loads draw several times their rated current at start-up. A 2x capacity margin keeps the stabilizer out of overload during inrush."
	RationaleHeater = "Resistive heating loads draw a steady current with small transient peaks. A 1.5x capacity margin covers them with room for expansion."
	RationaleMixed  = "Mixed loads combine steady and switching consumers. A 1.5x capacity margin covers ordinary peaks; review it if large motors start together."
)

// Config is the sizing policy. Heater and Mixed share one factor today.
type Config struct {
	MotorSafetyFactor  float64
	HeaterSafetyFactor float64
	MixedSafetyFactor  float64
	CapacityStepKVA    float64
}

func DefaultConfig() Config {
	return Config{
		MotorSafetyFactor:  MotorSafetyFactor,
		HeaterSafetyFactor: NonMotorSafetyFactor,
		MixedSafetyFactor:  NonMotorSafetyFactor,
		CapacityStepKVA:    CapacityStepKVA,
	}
}

func (c Config) validate() error {
	if !(c.MotorSafetyFactor >= 1 && c.HeaterSafetyFactor >= 1 && c.MixedSafetyFactor >= 1) {
		return fmt.Errorf("safety factors must be >= 1")
	}
	if !(c.CapacityStepKVA > 0) || math.IsInf(c.CapacityStepKVA, 0) {
		return fmt.Errorf("capacity step must be > 0")
	}
	return nil
}

// SafetyFactor returns the margin applied to apparent power for cat.
func (c Config) SafetyFactor(cat LoadCategory) (float64, error) {
	switch cat {
	case LoadMotor:
		return c.MotorSafetyFactor, nil
	case LoadHeater:
		return c.HeaterSafetyFactor, nil
	case LoadMixed:
		return c.MixedSafetyFactor, nil
	default:
		return 0, validate.Errorf("load_category", "must be one of motor, heater, mixed")
	}
}

func rationale(cat LoadCategory) string {
	switch cat {
	case LoadMotor:
		return RationaleMotor
	case LoadHeater:
		return RationaleHeater
	default:
		return RationaleMixed
	}
}

type Input struct {
	LineVoltage  float64      `json:"line_voltage"`
	LineCurrent  float64      `json:"line_current"`
	PowerFactor  float64      `json:"power_factor"`
	LoadCategory LoadCategory `json:"load_category"`
}

// Result holds unrounded values; use Rounded for display.
type Result struct {
	ApparentPowerKVA       float64      `json:"apparent_power_kva"`
	RealPowerKW            float64      `json:"real_power_kw"`
	RecommendedCapacityKVA float64      `json:"recommended_capacity_kva"`
	SafetyFactor           float64      `json:"safety_factor"`
	LoadCategory           LoadCategory `json:"load_category"`
	Rationale              string       `json:"rationale"`
}

// Rounded returns r with apparent and real power at two decimals.
func (r Result) Rounded() Result {
	r.ApparentPowerKVA = validate.Round2(r.ApparentPowerKVA)
	r.RealPowerKW = validate.Round2(r.RealPowerKW)
	return r
}

// Calculator sizes three-phase supply capacity. Safe for concurrent use.
type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) (*Calculator, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("power: %w", err)
	}
	return &Calculator{cfg: cfg}, nil
}

var defaultCalculator = &Calculator{cfg: DefaultConfig()}

// Calculate sizes capacity with the default policy.
func Calculate(in Input) (Result, error) {
	return defaultCalculator.Calculate(in)
}

func Default() *Calculator {
	return defaultCalculator
}

func (c *Calculator) Config() Config {
	return c.cfg
}

func (c *Calculator) Calculate(in Input) (Result, error) {
	if err := validate.First(
		validate.Positive("line_voltage", in.LineVoltage),
		validate.Positive("line_current", in.LineCurrent),
		validate.Fraction("power_factor", in.PowerFactor),
	); err != nil {
		return Result{}, err
	}
	factor, err := c.cfg.SafetyFactor(in.LoadCategory)
	if err != nil {
		return Result{}, err
	}

	// S = sqrt(3) * U * I for a three-phase line, in kVA
	apparent := math.Sqrt(3) * in.LineVoltage * in.LineCurrent / 1000.0
	active := apparent * in.PowerFactor

	required := apparent * factor
	step := c.cfg.CapacityStepKVA
	recommended := math.Ceil(required/step) * step
	// required/step can round down across an integer boundary; at huge
	// magnitudes the step itself is absorbed
	if recommended < required {
		recommended = math.Max(recommended+step, required)
	}
	if err := validate.Finite(dominant(in), apparent, active, recommended); err != nil {
		return Result{}, err
	}

	return Result{
		ApparentPowerKVA:       apparent,
		RealPowerKW:            active,
		RecommendedCapacityKVA: recommended,
		SafetyFactor:           factor,
		LoadCategory:           in.LoadCategory,
		Rationale:              rationale(in.LoadCategory),
	}, nil
}

// dominant names the larger of voltage and current, the input that drives
// an overflowing product.
func dominant(in Input) string {
	if in.LineVoltage >= in.LineCurrent {
		return "line_voltage"
	}
	return "line_current"
}
