package voltagedrop

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"Voltaris/internal/calc/validate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate_SafeRun(t *testing.T) {
	res, err := Calculate(Input{LineVoltage: 380, LineCurrent: 20, Length: 50, CrossSection: 6})
	require.NoError(t, err)

	assert.InDelta(t, 2.92, res.DropVolts, 0.005)
	assert.InDelta(t, 0.77, res.DropPercent, 0.005)
	assert.Equal(t, StatusSafe, res.SafetyStatus)
	assert.Equal(t, RecommendationSafe, res.Recommendation)
}

func TestCalculate_DangerousRun(t *testing.T) {
	res, err := Calculate(Input{LineVoltage: 220, LineCurrent: 20, Length: 500, CrossSection: 2.5})
	require.NoError(t, err)

	assert.InDelta(t, 70.0, res.DropVolts, 1e-9)
	assert.InDelta(t, 31.82, res.DropPercent, 0.005)
	assert.Equal(t, StatusDangerous, res.SafetyStatus)
	assert.Equal(t, RecommendationDangerous, res.Recommendation)
}

func TestClassify_ThresholdIsExclusive(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, StatusSafe, cfg.Classify(DropThresholdPercent))
	assert.Equal(t, StatusSafe, cfg.Classify(4.999))
	assert.Equal(t, StatusDangerous, cfg.Classify(math.Nextafter(DropThresholdPercent, 10)))

	// rho=1: drop = 5*2/1 = 10 V on 200 V is exactly 5 %
	calc, err := NewCalculator(Config{Resistivity: 1, DropThresholdPercent: DropThresholdPercent})
	require.NoError(t, err)
	res, err := calc.Calculate(Input{LineVoltage: 200, LineCurrent: 2, Length: 5, CrossSection: 1})
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.DropPercent)
	assert.Equal(t, StatusSafe, res.SafetyStatus)
}

func TestCalculate_StatusUsesUnroundedPercent(t *testing.T) {
	// 5.004 % rounds to 5.00 for display but is still over the limit
	calc, err := NewCalculator(Config{Resistivity: 1, DropThresholdPercent: DropThresholdPercent})
	require.NoError(t, err)
	res, err := calc.Calculate(Input{LineVoltage: 1000, LineCurrent: 1, Length: 50.04, CrossSection: 1})
	require.NoError(t, err)

	assert.Equal(t, StatusDangerous, res.SafetyStatus)
	assert.Equal(t, 5.0, res.Rounded().DropPercent)
	assert.Equal(t, StatusDangerous, res.Rounded().SafetyStatus)
}

func TestCalculate_Monotonic(t *testing.T) {
	base := Input{LineVoltage: 380, LineCurrent: 20, Length: 50, CrossSection: 6}
	ref, err := Calculate(base)
	require.NoError(t, err)
	assert.Greater(t, ref.DropPercent, 0.0)

	longer := base
	longer.Length = 80
	more := base
	more.LineCurrent = 32
	thicker := base
	thicker.CrossSection = 10

	rl, _ := Calculate(longer)
	rc, _ := Calculate(more)
	rt, _ := Calculate(thicker)

	assert.Greater(t, rl.DropVolts, ref.DropVolts)
	assert.Greater(t, rl.DropPercent, ref.DropPercent)
	assert.Greater(t, rc.DropVolts, ref.DropVolts)
	assert.Greater(t, rc.DropPercent, ref.DropPercent)
	assert.Less(t, rt.DropVolts, ref.DropVolts)
	assert.Less(t, rt.DropPercent, ref.DropPercent)
}

func TestCalculate_InvalidInput(t *testing.T) {
	valid := Input{LineVoltage: 380, LineCurrent: 20, Length: 50, CrossSection: 6}

	tests := []struct {
		name  string
		edit  func(*Input)
		field string
	}{
		{"zero voltage", func(in *Input) { in.LineVoltage = 0 }, "line_voltage"},
		{"negative current", func(in *Input) { in.LineCurrent = -5 }, "line_current"},
		{"zero current", func(in *Input) { in.LineCurrent = 0 }, "line_current"},
		{"zero length", func(in *Input) { in.Length = 0 }, "length"},
		{"zero cross-section", func(in *Input) { in.CrossSection = 0 }, "cross_section"},
		{"infinite cross-section", func(in *Input) { in.CrossSection = math.Inf(1) }, "cross_section"},
		{"subnormal cross-section", func(in *Input) { in.CrossSection = 1e-310 }, "cross_section"},
		{"overflowing length", func(in *Input) { in.Length, in.LineCurrent = 1e308, 1e10 }, "length"},
		{"subnormal voltage", func(in *Input) { in.LineVoltage = 1e-310 }, "line_voltage"},
		{"underflowing drop", func(in *Input) { in.Length, in.LineCurrent, in.CrossSection = 1e-320, 1e-10, 1e10 }, "length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.edit(&in)
			res, err := Calculate(in)

			ve, ok := validate.As(err)
			require.True(t, ok, "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, ve.Field)
			assert.False(t, math.IsNaN(res.DropPercent) || math.IsInf(res.DropPercent, 0))
			assert.False(t, math.IsNaN(res.DropVolts) || math.IsInf(res.DropVolts, 0))
		})
	}
}

func TestNewCalculator_RejectsBadPolicy(t *testing.T) {
	_, err := NewCalculator(Config{Resistivity: 0, DropThresholdPercent: 5})
	assert.Error(t, err)
	_, err = NewCalculator(Config{Resistivity: CopperResistivity, DropThresholdPercent: math.NaN()})
	assert.Error(t, err)
}

func TestSafetyStatus_JSON(t *testing.T) {
	b, err := json.Marshal(StatusDangerous)
	require.NoError(t, err)
	assert.JSONEq(t, `"dangerous"`, string(b))

	var s SafetyStatus
	require.NoError(t, json.Unmarshal([]byte(`"safe"`), &s))
	assert.Equal(t, StatusSafe, s)
	assert.Error(t, json.Unmarshal([]byte(`"meh"`), &s))
}

func TestHandler_Calc(t *testing.T) {
	h := &Handler{}

	t.Run("should return rounded result", func(t *testing.T) {
		body := `{"line_voltage":220,"line_current":20,"length":500,"cross_section":2.5}`
		w := httptest.NewRecorder()
		h.Calc(w, httptest.NewRequest(http.MethodPost, "/api/tools/voltage-drop/calc", strings.NewReader(body)))

		require.Equal(t, http.StatusOK, w.Code)
		var res map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, 70.0, res["drop_volts"])
		assert.Equal(t, 31.82, res["drop_percent"])
		assert.Equal(t, "dangerous", res["safety_status"])
	})

	t.Run("should name the zero field", func(t *testing.T) {
		body := `{"line_voltage":220,"line_current":20,"length":500,"cross_section":0}`
		w := httptest.NewRecorder()
		h.Calc(w, httptest.NewRequest(http.MethodPost, "/api/tools/voltage-drop/calc", strings.NewReader(body)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"field":"cross_section"`)
	})

	t.Run("should reject a cross-section that overflows the drop", func(t *testing.T) {
		body := `{"line_voltage":380,"line_current":20,"length":50,"cross_section":1e-310}`
		w := httptest.NewRecorder()
		h.Calc(w, httptest.NewRequest(http.MethodPost, "/api/tools/voltage-drop/calc", strings.NewReader(body)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"field":"cross_section"`)
	})

	t.Run("should use the configured calculator", func(t *testing.T) {
		calc, err := NewCalculator(Config{Resistivity: 1, DropThresholdPercent: DropThresholdPercent})
		require.NoError(t, err)
		custom := &Handler{Calculator: calc}

		body := `{"line_voltage":200,"line_current":2,"length":5,"cross_section":1}`
		w := httptest.NewRecorder()
		custom.Calc(w, httptest.NewRequest(http.MethodPost, "/api/tools/voltage-drop/calc", strings.NewReader(body)))

		require.Equal(t, http.StatusOK, w.Code)
		var res Result
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, 10.0, res.DropVolts)
		assert.Equal(t, StatusSafe, res.SafetyStatus)
	})
}
