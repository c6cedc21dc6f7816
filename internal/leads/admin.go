package leads

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"Voltaris/internal/calc/validate"
	"Voltaris/internal/repo"

	"github.com/gorilla/mux"
	"github.com/xuri/excelize/v2"
)

const exportPage = 500

type statusRequest struct {
	Status repo.LeadStatus `json:"status"`
}

func queryInt(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, validate.Errorf(name, "must be a non-negative integer")
	}
	return n, nil
}

func filterFromQuery(r *http.Request) (repo.LeadFilter, error) {
	var f repo.LeadFilter
	if s := r.URL.Query().Get("status"); s != "" {
		f.Status = repo.LeadStatus(s)
		if !f.Status.Valid() {
			return f, validate.Errorf("status", "must be one of new, contacted, spam")
		}
	}
	var err error
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(r, "offset"); err != nil {
		return f, err
	}
	return f, nil
}

func leadID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil && id > 0
}

// List handles GET /api/admin/leads.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		validate.WriteError(w, err)
		return
	}
	leads, err := h.Repo.ListLeads(r.Context(), f)
	if err != nil {
		h.logger().Errorf("list leads: %v", err)
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}
	validate.WriteJSON(w, http.StatusOK, leads)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := leadID(r)
	if !ok {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return
	}
	lead, err := h.Repo.GetLead(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		http.Error(w, "Lead not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger().Errorf("get lead %d: %v", id, err)
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}
	validate.WriteJSON(w, http.StatusOK, lead)
}

// UpdateStatus handles PATCH /api/admin/leads/{id}.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := leadID(r)
	if !ok {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		validate.WriteBadPayload(w)
		return
	}
	if !req.Status.Valid() {
		validate.WriteError(w, validate.Errorf("status", "must be one of new, contacted, spam"))
		return
	}

	err := h.Repo.UpdateLeadStatus(r.Context(), id, req.Status)
	if errors.Is(err, repo.ErrNotFound) {
		http.Error(w, "Lead not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger().Errorf("update lead %d: %v", id, err)
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}
	h.logger().WithField("lead_id", id).Infof("lead marked %s", req.Status)

	lead, err := h.Repo.GetLead(r.Context(), id)
	if err != nil {
		h.logger().Errorf("get lead %d: %v", id, err)
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}
	validate.WriteJSON(w, http.StatusOK, lead)
}

var exportHeader = []any{"ID", "Created", "Status", "Name", "Company", "Phone", "Email", "Interest", "Message", "Attachment"}

// Export handles GET /api/admin/leads/export and honours the status filter.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		validate.WriteError(w, err)
		return
	}

	var all []repo.Lead
	f.Limit, f.Offset = exportPage, 0
	for {
		page, err := h.Repo.ListLeads(r.Context(), f)
		if err != nil {
			h.logger().Errorf("export leads: %v", err)
			http.Error(w, "DB error", http.StatusInternalServerError)
			return
		}
		all = append(all, page...)
		if len(page) < exportPage {
			break
		}
		f.Offset += exportPage
	}

	book, err := WriteWorkbook(all)
	if err != nil {
		h.logger().Errorf("build leads workbook: %v", err)
		http.Error(w, "Export error", http.StatusInternalServerError)
		return
	}
	defer book.Close()

	name := fmt.Sprintf("leads-%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := book.Write(w); err != nil {
		h.logger().Errorf("write leads workbook: %v", err)
	}
}

// WriteWorkbook lays the leads out one per row below a header on Sheet1.
func WriteWorkbook(leads []repo.Lead) (*excelize.File, error) {
	const sheet = "Sheet1"
	f := excelize.NewFile()
	if err := f.SetSheetRow(sheet, "A1", &exportHeader); err != nil {
		f.Close()
		return nil, err
	}
	for i, l := range leads {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		row := []any{
			l.ID, l.CreatedAt.UTC().Format("2006-01-02 15:04"), string(l.Status),
			l.Name, l.Company, l.Phone, l.Email, l.Interest, l.Message, l.AttachmentPath,
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			f.Close()
			return nil, err
		}
	}
	if err := f.SetColWidth(sheet, "D", "I", 24); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}
