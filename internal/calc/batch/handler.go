package batch

import (
	"encoding/json"
	"net/http"

	"Voltaris/internal/calc/validate"
)

type Handler struct {
	Calculator *Calculator
}

func (h *Handler) Calc(w http.ResponseWriter, r *http.Request) {
	var input Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		validate.WriteBadPayload(w)
		return
	}
	calc := h.Calculator
	if calc == nil {
		calc = &Calculator{}
	}
	res, err := calc.Calculate(input)
	if err != nil {
		validate.WriteError(w, err)
		return
	}
	validate.WriteJSON(w, http.StatusOK, res.Rounded())
}
