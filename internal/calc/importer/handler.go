package importer

import (
	"errors"
	"mime/multipart"
	"net/http"

	"Voltaris/internal/calc/power"
	"Voltaris/internal/calc/validate"
	"Voltaris/internal/calc/voltagedrop"

	"github.com/sirupsen/logrus"
)

const MaxUploadSize = 10 << 20 // 10MB

type Handler struct {
	Power       *power.Calculator
	VoltageDrop *voltagedrop.Calculator
	Log         *logrus.Logger
}

func (h *Handler) VoltageDropSheet(w http.ResponseWriter, r *http.Request) {
	file, ok := h.upload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	res, err := ImportVoltageDrop(file, h.VoltageDrop)
	if err != nil {
		h.sheetError(w, err)
		return
	}
	validate.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) PowerSheet(w http.ResponseWriter, r *http.Request) {
	file, ok := h.upload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	res, err := ImportPower(file, h.Power)
	if err != nil {
		h.sheetError(w, err)
		return
	}
	validate.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) (multipart.File, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "File required", http.StatusBadRequest)
		return nil, false
	}
	return file, true
}

func (h *Handler) sheetError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrEmptySheet) {
		http.Error(w, "Empty sheet", http.StatusBadRequest)
		return
	}
	if h.Log != nil {
		h.Log.Warnf("xlsx import failed: %v", err)
	}
	http.Error(w, "Invalid file", http.StatusBadRequest)
}
