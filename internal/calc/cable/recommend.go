package cable

import (
	"Voltaris/internal/calc/validate"
	"Voltaris/internal/calc/voltagedrop"
)

// StandardSizesMM2 is the copper cross-section series offered by the calculator.
var StandardSizesMM2 = []float64{1.5, 2.5, 4, 6, 10, 16, 25, 35, 50, 70, 95, 120, 150, 185, 240, 300}

type Input struct {
	LineVoltage float64 `json:"line_voltage"`
	LineCurrent float64 `json:"line_current"`
	Length      float64 `json:"length"`
}

type Recommendation struct {
	CrossSectionMM2 float64            `json:"cross_section_mm2"`
	Found           bool               `json:"found"`
	Drop            voltagedrop.Result `json:"drop"`
	Notes           string             `json:"notes"`
}

// Recommend picks the smallest standard size whose drop is not dangerous.
// When none qualifies it reports the largest size with Found=false.
func Recommend(calc *voltagedrop.Calculator, in Input) (Recommendation, error) {
	if calc == nil {
		calc = voltagedrop.Default()
	}
	if err := validate.First(
		validate.Positive("line_voltage", in.LineVoltage),
		validate.Positive("line_current", in.LineCurrent),
		validate.Positive("length", in.Length),
	); err != nil {
		return Recommendation{}, err
	}

	var last voltagedrop.Result
	for _, size := range StandardSizesMM2 {
		res, err := calc.Calculate(voltagedrop.Input{
			LineVoltage:  in.LineVoltage,
			LineCurrent:  in.LineCurrent,
			Length:       in.Length,
			CrossSection: size,
		})
		if err != nil {
			return Recommendation{}, err
		}
		if res.SafetyStatus == voltagedrop.StatusSafe {
			return Recommendation{
				CrossSectionMM2: size,
				Found:           true,
				Drop:            res,
				Notes:           "Smallest standard copper cross-section within the voltage drop limit.",
			}, nil
		}
		last = res
	}
	return Recommendation{
		CrossSectionMM2: StandardSizesMM2[len(StandardSizesMM2)-1],
		Found:           false,
		Drop:            last,
		Notes:           "No standard cross-section keeps the drop within the limit. Split the run or raise the supply voltage.",
	}, nil
}
