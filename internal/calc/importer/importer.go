package importer

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"Voltaris/internal/calc/power"
	"Voltaris/internal/calc/voltagedrop"

	"github.com/xuri/excelize/v2"
)

type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type VoltageDropRow struct {
	Row    int                `json:"row"`
	Input  voltagedrop.Input  `json:"input"`
	Result voltagedrop.Result `json:"result"`
}

type PowerRow struct {
	Row    int          `json:"row"`
	Input  power.Input  `json:"input"`
	Result power.Result `json:"result"`
}

type VoltageDropImport struct {
	Count   int              `json:"count"`
	Rows    []VoltageDropRow `json:"rows"`
	Skipped []RowError       `json:"skipped"`
}

type PowerImport struct {
	Count   int        `json:"count"`
	Rows    []PowerRow `json:"rows"`
	Skipped []RowError `json:"skipped"`
}

var ErrEmptySheet = errors.New("sheet has no data rows")

// readRows returns the rows of the first sheet, header excluded.
func readRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, ErrEmptySheet
	}
	return rows[1:], nil
}

// ImportVoltageDrop expects: voltage, current, length, cross_section.
func ImportVoltageDrop(r io.Reader, calc *voltagedrop.Calculator) (VoltageDropImport, error) {
	if calc == nil {
		calc = voltagedrop.Default()
	}
	rows, err := readRows(r)
	if err != nil {
		return VoltageDropImport{}, err
	}
	out := VoltageDropImport{Rows: []VoltageDropRow{}, Skipped: []RowError{}}
	for i, row := range rows {
		n := i + 2
		if blank(row) {
			continue
		}
		in, err := parseVoltageDropRow(row)
		if err != nil {
			out.Skipped = append(out.Skipped, RowError{Row: n, Error: err.Error()})
			continue
		}
		res, err := calc.Calculate(in)
		if err != nil {
			out.Skipped = append(out.Skipped, RowError{Row: n, Error: err.Error()})
			continue
		}
		out.Rows = append(out.Rows, VoltageDropRow{Row: n, Input: in, Result: res.Rounded()})
	}
	out.Count = len(out.Rows)
	return out, nil
}

// ImportPower expects: voltage, current, power_factor, load_category.
func ImportPower(r io.Reader, calc *power.Calculator) (PowerImport, error) {
	if calc == nil {
		calc = power.Default()
	}
	rows, err := readRows(r)
	if err != nil {
		return PowerImport{}, err
	}
	out := PowerImport{Rows: []PowerRow{}, Skipped: []RowError{}}
	for i, row := range rows {
		n := i + 2
		if blank(row) {
			continue
		}
		in, err := parsePowerRow(row)
		if err != nil {
			out.Skipped = append(out.Skipped, RowError{Row: n, Error: err.Error()})
			continue
		}
		res, err := calc.Calculate(in)
		if err != nil {
			out.Skipped = append(out.Skipped, RowError{Row: n, Error: err.Error()})
			continue
		}
		out.Rows = append(out.Rows, PowerRow{Row: n, Input: in, Result: res.Rounded()})
	}
	out.Count = len(out.Rows)
	return out, nil
}

func parseVoltageDropRow(row []string) (voltagedrop.Input, error) {
	if len(row) < 4 {
		return voltagedrop.Input{}, fmt.Errorf("expected 4 columns, got %d", len(row))
	}
	vals, err := floats(row[:4], "voltage", "current", "length", "cross_section")
	if err != nil {
		return voltagedrop.Input{}, err
	}
	return voltagedrop.Input{
		LineVoltage:  vals[0],
		LineCurrent:  vals[1],
		Length:       vals[2],
		CrossSection: vals[3],
	}, nil
}

func parsePowerRow(row []string) (power.Input, error) {
	if len(row) < 4 {
		return power.Input{}, fmt.Errorf("expected 4 columns, got %d", len(row))
	}
	vals, err := floats(row[:3], "voltage", "current", "power_factor")
	if err != nil {
		return power.Input{}, err
	}
	cat, ok := power.ParseLoadCategory(row[3])
	if !ok {
		return power.Input{}, fmt.Errorf("load_category: unknown value %q", row[3])
	}
	return power.Input{
		LineVoltage:  vals[0],
		LineCurrent:  vals[1],
		PowerFactor:  vals[2],
		LoadCategory: cat,
	}, nil
}

func floats(cells []string, names ...string) ([]float64, error) {
	out := make([]float64, len(cells))
	for i, c := range cells {
		v, err := toFloat(c)
		if err != nil {
			return nil, fmt.Errorf("%s: not a number %q", names[i], c)
		}
		out[i] = v
	}
	return out, nil
}

// toFloat accepts a decimal comma as written by localized spreadsheets.
func toFloat(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	return strconv.ParseFloat(s, 64)
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
