package power

import (
	"encoding/json"
	"net/http"

	"Voltaris/internal/calc/validate"
)

type Handler struct {
	Calculator *Calculator
}

func (h *Handler) calculator() *Calculator {
	if h.Calculator == nil {
		return defaultCalculator
	}
	return h.Calculator
}

func (h *Handler) Calc(w http.ResponseWriter, r *http.Request) {
	var input Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		validate.WriteBadPayload(w)
		return
	}
	res, err := h.calculator().Calculate(input)
	if err != nil {
		validate.WriteError(w, err)
		return
	}
	validate.WriteJSON(w, http.StatusOK, res.Rounded())
}
