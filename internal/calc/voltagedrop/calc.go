package voltagedrop

import (
	"fmt"
	"math"

	"Voltaris/internal/calc/validate"
)

const (
	// CopperResistivity is in Ohm*mm2/m.
	CopperResistivity = 0.0175
	// DropThresholdPercent is the largest drop still classified as safe.
	DropThresholdPercent = 5.0
)

const (
	RecommendationSafe      = "Voltage drop is within the permitted limit. The selected cable is adequate for this run."
	RecommendationDangerous = "Voltage drop exceeds the permitted limit. Increase the cable cross-section or install a voltage stabilizer at the load end."
)

type Config struct {
	Resistivity          float64
	DropThresholdPercent float64
}

func DefaultConfig() Config {
	return Config{
		Resistivity:          CopperResistivity,
		DropThresholdPercent: DropThresholdPercent,
	}
}

func (c Config) validate() error {
	if !(c.Resistivity > 0) || math.IsInf(c.Resistivity, 0) {
		return fmt.Errorf("resistivity must be > 0")
	}
	if !(c.DropThresholdPercent > 0) || math.IsInf(c.DropThresholdPercent, 0) {
		return fmt.Errorf("drop threshold must be > 0")
	}
	return nil
}

// Classify compares an unrounded drop percentage against the threshold.
func (c Config) Classify(dropPercent float64) SafetyStatus {
	if dropPercent > c.DropThresholdPercent {
		return StatusDangerous
	}
	return StatusSafe
}

func recommendation(s SafetyStatus) string {
	switch s {
	case StatusDangerous:
		return RecommendationDangerous
	default:
		return RecommendationSafe
	}
}

type Input struct {
	LineVoltage  float64 `json:"line_voltage"`
	LineCurrent  float64 `json:"line_current"`
	Length       float64 `json:"length"`
	CrossSection float64 `json:"cross_section"`
}

type Result struct {
	DropVolts      float64      `json:"drop_volts"`
	DropPercent    float64      `json:"drop_percent"`
	SafetyStatus   SafetyStatus `json:"safety_status"`
	Recommendation string       `json:"recommendation"`
}

// Rounded returns r with volts and percent at two decimals. The status is
// left as computed from the unrounded percentage.
func (r Result) Rounded() Result {
	r.DropVolts = validate.Round2(r.DropVolts)
	r.DropPercent = validate.Round2(r.DropPercent)
	return r
}

type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) (*Calculator, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("voltagedrop: %w", err)
	}
	return &Calculator{cfg: cfg}, nil
}

var defaultCalculator = &Calculator{cfg: DefaultConfig()}

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
		validate.Positive("length", in.Length),
		validate.Positive("cross_section", in.CrossSection),
	); err != nil {
		return Result{}, err
	}

	// single-conductor estimate: dU = rho * L * I / S
	drop := c.cfg.Resistivity * in.Length * in.LineCurrent / in.CrossSection
	if math.IsInf(c.cfg.Resistivity*in.Length*in.LineCurrent, 0) {
		return Result{}, validate.Errorf("length", "is out of range")
	}
	if err := validate.Finite("cross_section", drop); err != nil {
		return Result{}, err
	}
	// underflow would break drop > 0
	if drop == 0 {
		return Result{}, validate.Errorf("length", "is out of range")
	}
	percent := drop / in.LineVoltage * 100
	if err := validate.Finite("line_voltage", percent); err != nil {
		return Result{}, err
	}
	status := c.cfg.Classify(percent)

	return Result{
		DropVolts:      drop,
		DropPercent:    percent,
		SafetyStatus:   status,
		Recommendation: recommendation(status),
	}, nil
}
