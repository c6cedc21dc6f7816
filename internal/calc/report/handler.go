package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"Voltaris/internal/calc/power"
	"Voltaris/internal/calc/validate"
	"Voltaris/internal/calc/voltagedrop"

	"github.com/phpdave11/gofpdf"
	"github.com/sirupsen/logrus"
)

// Disclaimer is shown wherever calculator results are presented.
const Disclaimer = "Results are advisory and for reference only. They do not replace on-site measurement and assessment by a qualified electrical engineer."

type Input struct {
	Project     string             `json:"project"`
	Author      string             `json:"author"`
	Title       string             `json:"title"`
	Notes       string             `json:"notes"`
	Power       *power.Input       `json:"power,omitempty"`
	VoltageDrop *voltagedrop.Input `json:"voltage_drop,omitempty"`
}

type Handler struct {
	Power       *power.Calculator
	VoltageDrop *voltagedrop.Calculator
	Log         *logrus.Logger
	Now         func() time.Time
}

// Sections holds the computed results that go into a report.
type Sections struct {
	Power       *power.Result
	VoltageDrop *voltagedrop.Result
}

// Compute validates and evaluates every section requested by in.
func (h *Handler) Compute(in Input) (Sections, error) {
	var s Sections
	if in.Power == nil && in.VoltageDrop == nil {
		return s, validate.Errorf("power", "or voltage_drop is required")
	}
	if in.Power != nil {
		pc := h.Power
		if pc == nil {
			pc = power.Default()
		}
		res, err := pc.Calculate(*in.Power)
		if err != nil {
			return s, validate.Prefix("power", err)
		}
		s.Power = &res
	}
	if in.VoltageDrop != nil {
		vc := h.VoltageDrop
		if vc == nil {
			vc = voltagedrop.Default()
		}
		res, err := vc.Calculate(*in.VoltageDrop)
		if err != nil {
			return s, validate.Prefix("voltage_drop", err)
		}
		s.VoltageDrop = &res
	}
	return s, nil
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var input Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		validate.WriteBadPayload(w)
		return
	}
	sections, err := h.Compute(input)
	if err != nil {
		validate.WriteError(w, err)
		return
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	var buf bytes.Buffer
	if err := Render(&buf, input, sections, now()); err != nil {
		if h.Log != nil {
			h.Log.Errorf("report render: %v", err)
		}
		http.Error(w, "Report generation error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=\"report.pdf\"")
	w.Write(buf.Bytes())
}

// Render writes an A4 report to out.
func Render(out io.Writer, input Input, s Sections, date time.Time) error {
	if input.Title == "" {
		input.Title = "Electrical Calculation Report"
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(input.Title, true)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, input.Title)
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, fmt.Sprintf("Project: %s", input.Project))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Author: %s", input.Author))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Date: %s", date.Format("2006-01-02")))
	pdf.Ln(10)

	if s.Power != nil && input.Power != nil {
		res := s.Power.Rounded()
		heading(pdf, "Power capacity sizing")
		row(pdf, "Line voltage", fmt.Sprintf("%.1f V", input.Power.LineVoltage))
		row(pdf, "Line current", fmt.Sprintf("%.1f A", input.Power.LineCurrent))
		row(pdf, "Power factor", fmt.Sprintf("%.2f", input.Power.PowerFactor))
		row(pdf, "Load category", res.LoadCategory.String())
		row(pdf, "Apparent power", fmt.Sprintf("%.2f kVA", res.ApparentPowerKVA))
		row(pdf, "Real power", fmt.Sprintf("%.2f kW", res.RealPowerKW))
		row(pdf, "Safety factor", fmt.Sprintf("%.1f", res.SafetyFactor))
		row(pdf, "Recommended capacity", fmt.Sprintf("%.0f kVA", res.RecommendedCapacityKVA))
		pdf.MultiCell(0, 6, res.Rationale, "", "L", false)
		pdf.Ln(4)
	}

	if s.VoltageDrop != nil && input.VoltageDrop != nil {
		res := s.VoltageDrop.Rounded()
		heading(pdf, "Voltage drop")
		row(pdf, "Line voltage", fmt.Sprintf("%.1f V", input.VoltageDrop.LineVoltage))
		row(pdf, "Line current", fmt.Sprintf("%.1f A", input.VoltageDrop.LineCurrent))
		row(pdf, "Cable length", fmt.Sprintf("%.1f m", input.VoltageDrop.Length))
		row(pdf, "Cross-section", fmt.Sprintf("%.1f mm2", input.VoltageDrop.CrossSection))
		row(pdf, "Voltage drop", fmt.Sprintf("%.2f V (%.2f %%)", res.DropVolts, res.DropPercent))
		row(pdf, "Status", res.SafetyStatus.String())
		pdf.MultiCell(0, 6, res.Recommendation, "", "L", false)
		pdf.Ln(4)
	}

	if input.Notes != "" {
		heading(pdf, "Notes")
		pdf.MultiCell(0, 6, input.Notes, "", "L", false)
		pdf.Ln(4)
	}

	pdf.SetFont("Helvetica", "I", 9)
	pdf.MultiCell(0, 5, Disclaimer, "T", "L", false)

	return pdf.Output(out)
}

func heading(pdf *gofpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, text)
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
}

func row(pdf *gofpdf.Fpdf, label, value string) {
	pdf.CellFormat(60, 6, label, "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, value, "", 1, "L", false, 0, "")
}

func DisclaimerHandler(w http.ResponseWriter, r *http.Request) {
	validate.WriteJSON(w, http.StatusOK, map[string]string{"disclaimer": Disclaimer})
}
