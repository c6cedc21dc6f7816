package power

import (
	"encoding/json"
	"math"
	"sync"
	"testing"

	"Voltaris/internal/calc/validate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate_MotorLoad(t *testing.T) {
	res, err := Calculate(Input{LineVoltage: 380, LineCurrent: 20, PowerFactor: 0.85, LoadCategory: LoadMotor})
	require.NoError(t, err)

	assert.InDelta(t, 13.16, res.ApparentPowerKVA, 0.005)
	assert.InDelta(t, 11.19, res.RealPowerKW, 0.005)
	assert.Equal(t, 30.0, res.RecommendedCapacityKVA)
	assert.Equal(t, MotorSafetyFactor, res.SafetyFactor)
	assert.Equal(t, RationaleMotor, res.Rationale)
}

func TestCalculate_MixedAndHeaterLoad(t *testing.T) {
	for _, cat := range []LoadCategory{LoadMixed, LoadHeater} {
		res, err := Calculate(Input{LineVoltage: 380, LineCurrent: 20, PowerFactor: 0.85, LoadCategory: cat})
		require.NoError(t, err)

		assert.Equal(t, NonMotorSafetyFactor, res.SafetyFactor, cat.String())
		assert.Equal(t, 20.0, res.RecommendedCapacityKVA, cat.String())
	}

	mixed, _ := Calculate(Input{LineVoltage: 380, LineCurrent: 20, PowerFactor: 0.85, LoadCategory: LoadMixed})
	heater, _ := Calculate(Input{LineVoltage: 380, LineCurrent: 20, PowerFactor: 0.85, LoadCategory: LoadHeater})
	assert.Equal(t, RationaleMixed, mixed.Rationale)
	assert.Equal(t, RationaleHeater, heater.Rationale)
}

func TestCalculate_Invariants(t *testing.T) {
	voltages := []float64{110, 220, 380, 400, 690, 10000}
	currents := []float64{0.5, 1, 7.3, 20, 63, 125, 800}
	factors := []float64{0.1, 0.5, 0.8, 0.85, 0.99, 1}
	cats := []LoadCategory{LoadMotor, LoadHeater, LoadMixed}

	for _, v := range voltages {
		for _, i := range currents {
			for _, pf := range factors {
				for _, cat := range cats {
					res, err := Calculate(Input{LineVoltage: v, LineCurrent: i, PowerFactor: pf, LoadCategory: cat})
					require.NoError(t, err)

					required := res.ApparentPowerKVA * res.SafetyFactor
					assert.LessOrEqual(t, res.RealPowerKW, res.ApparentPowerKVA)
					assert.InDelta(t, res.ApparentPowerKVA*pf, res.RealPowerKW, 1e-9)
					assert.Zero(t, math.Mod(res.RecommendedCapacityKVA, CapacityStepKVA))
					assert.GreaterOrEqual(t, res.RecommendedCapacityKVA, required)
					assert.Less(t, res.RecommendedCapacityKVA-CapacityStepKVA, required)
				}
			}
		}
	}
}

func TestCalculate_InvalidInput(t *testing.T) {
	valid := Input{LineVoltage: 380, LineCurrent: 20, PowerFactor: 0.85, LoadCategory: LoadMotor}

	tests := []struct {
		name  string
		edit  func(*Input)
		field string
	}{
		{"zero voltage", func(in *Input) { in.LineVoltage = 0 }, "line_voltage"},
		{"negative voltage", func(in *Input) { in.LineVoltage = -380 }, "line_voltage"},
		{"negative current", func(in *Input) { in.LineCurrent = -1 }, "line_current"},
		{"NaN current", func(in *Input) { in.LineCurrent = math.NaN() }, "line_current"},
		{"zero power factor", func(in *Input) { in.PowerFactor = 0 }, "power_factor"},
		{"power factor above one", func(in *Input) { in.PowerFactor = 1.5 }, "power_factor"},
		{"missing category", func(in *Input) { in.LoadCategory = LoadUnknown }, "load_category"},
		{"out of range category", func(in *Input) { in.LoadCategory = LoadCategory(42) }, "load_category"},
		{"overflowing product", func(in *Input) { in.LineVoltage, in.LineCurrent = 1e300, 1e300 }, "line_voltage"},
		{"overflowing current", func(in *Input) { in.LineVoltage, in.LineCurrent = 1e6, 1e306 }, "line_current"},
		{"overflowing voltage", func(in *Input) { in.LineVoltage, in.LineCurrent = 1e306, 1000 }, "line_voltage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.edit(&in)
			res, err := Calculate(in)

			ve, ok := validate.As(err)
			require.True(t, ok, "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, Result{}, res)
		})
	}
}

func TestCalculate_LargeFiniteInput(t *testing.T) {
	res, err := Calculate(Input{LineVoltage: 1e150, LineCurrent: 1e150, PowerFactor: 0.9, LoadCategory: LoadMotor})
	require.NoError(t, err)
	for _, v := range []float64{res.ApparentPowerKVA, res.RealPowerKW, res.RecommendedCapacityKVA} {
		assert.False(t, math.IsInf(v, 0) || math.IsNaN(v))
	}
	rounded := res.Rounded()
	assert.False(t, math.IsInf(rounded.ApparentPowerKVA, 0))
	assert.GreaterOrEqual(t, rounded.RecommendedCapacityKVA, rounded.ApparentPowerKVA*MotorSafetyFactor)
}

func TestNewCalculator(t *testing.T) {
	_, err := NewCalculator(Config{MotorSafetyFactor: 2, HeaterSafetyFactor: 1.5, MixedSafetyFactor: 1.5})
	assert.Error(t, err)

	_, err = NewCalculator(Config{MotorSafetyFactor: 0.5, HeaterSafetyFactor: 1.5, MixedSafetyFactor: 1.5, CapacityStepKVA: 5})
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.MotorSafetyFactor = 2.5
	calc, err := NewCalculator(cfg)
	require.NoError(t, err)

	res, err := calc.Calculate(Input{LineVoltage: 380, LineCurrent: 20, PowerFactor: 0.85, LoadCategory: LoadMotor})
	require.NoError(t, err)
	// 13.16 * 2.5 = 32.9
	assert.Equal(t, 35.0, res.RecommendedCapacityKVA)
}

func TestResult_Rounded(t *testing.T) {
	res, err := Calculate(Input{LineVoltage: 380, LineCurrent: 20, PowerFactor: 0.85, LoadCategory: LoadMotor})
	require.NoError(t, err)

	r := res.Rounded()
	assert.Equal(t, 13.16, r.ApparentPowerKVA)
	assert.Equal(t, 11.19, r.RealPowerKW)
	assert.Equal(t, res.RecommendedCapacityKVA, r.RecommendedCapacityKVA)
}

func TestLoadCategory_JSON(t *testing.T) {
	var in Input
	require.NoError(t, json.Unmarshal([]byte(`{"load_category":"Motor"}`), &in))
	assert.Equal(t, LoadMotor, in.LoadCategory)

	require.NoError(t, json.Unmarshal([]byte(`{"load_category":"generator"}`), &in))
	assert.Equal(t, LoadUnknown, in.LoadCategory)

	require.NoError(t, json.Unmarshal([]byte(`{"load_category":7}`), &in))
	assert.Equal(t, LoadUnknown, in.LoadCategory)

	b, err := json.Marshal(LoadHeater)
	require.NoError(t, err)
	assert.JSONEq(t, `"heater"`, string(b))
}

func TestCalculate_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(current float64) {
			defer wg.Done()
			res, err := Calculate(Input{LineVoltage: 400, LineCurrent: current, PowerFactor: 0.9, LoadCategory: LoadMixed})
			assert.NoError(t, err)
			assert.GreaterOrEqual(t, res.RecommendedCapacityKVA, res.ApparentPowerKVA*NonMotorSafetyFactor)
		}(float64(i))
	}
	wg.Wait()
}
