package cable

import (
	"encoding/json"
	"net/http"

	"Voltaris/internal/calc/validate"
	"Voltaris/internal/calc/voltagedrop"
)

type Handler struct {
	Calculator *voltagedrop.Calculator
}

func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	var input Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		validate.WriteBadPayload(w)
		return
	}
	res, err := Recommend(h.Calculator, input)
	if err != nil {
		validate.WriteError(w, err)
		return
	}
	res.Drop = res.Drop.Rounded()
	validate.WriteJSON(w, http.StatusOK, res)
}
