package leads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"Voltaris/internal/calc/validate"
	"Voltaris/internal/notify"
	"Voltaris/internal/repo"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	MaxUploadSize  = 10 << 20 // 10MB
	formOverhead   = 1 << 20
	nameMaxLen     = 100
	contactMaxLen  = 200
	messageMaxLen  = 2000
	notifyTimeout  = 10 * time.Second
	honeypotField  = "website"
	attachmentForm = "attachment"
)

var allowedExt = map[string]bool{
	".pdf": true, ".png": true, ".jpg": true, ".jpeg": true,
	".xlsx": true, ".xls": true, ".docx": true, ".doc": true,
	".dwg": true, ".dxf": true, ".txt": true, ".zip": true,
}

// Handler captures contact-form submissions and serves the admin inbox.
type Handler struct {
	Repo      repo.LeadRepository
	Notifier  notify.Notifier
	UploadDir string
	Log       *logrus.Logger
}

var discard = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

func (h *Handler) logger() *logrus.Logger {
	if h.Log == nil {
		return discard
	}
	return h.Log
}

type submitResponse struct {
	ID int64 `json:"id"`
}

func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize+formOverhead)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		return r.ParseMultipartForm(MaxUploadSize)
	}
	return r.ParseForm()
}

func field(r *http.Request, name string) string {
	return strings.TrimSpace(r.FormValue(name))
}

func tooLong(s string, n int) bool {
	return utf8.RuneCountInString(s) > n
}

// leadFromForm validates the submitted fields.
func leadFromForm(r *http.Request) (*repo.Lead, error) {
	lead := &repo.Lead{
		Name:     field(r, "name"),
		Phone:    field(r, "phone"),
		Email:    field(r, "email"),
		Company:  field(r, "company"),
		Interest: field(r, "interest"),
		Message:  field(r, "message"),
	}
	switch {
	case lead.Name == "":
		return nil, validate.Errorf("name", "is required")
	case tooLong(lead.Name, nameMaxLen):
		return nil, validate.Errorf("name", "must be at most %d characters", nameMaxLen)
	case lead.Phone == "" && lead.Email == "":
		return nil, validate.Errorf("phone", "or email is required")
	case tooLong(lead.Phone, contactMaxLen):
		return nil, validate.Errorf("phone", "must be at most %d characters", contactMaxLen)
	case tooLong(lead.Email, contactMaxLen):
		return nil, validate.Errorf("email", "must be at most %d characters", contactMaxLen)
	case lead.Email != "" && !strings.Contains(lead.Email, "@"):
		return nil, validate.Errorf("email", "must be a valid address")
	case tooLong(lead.Company, contactMaxLen):
		return nil, validate.Errorf("company", "must be at most %d characters", contactMaxLen)
	case tooLong(lead.Interest, contactMaxLen):
		return nil, validate.Errorf("interest", "must be at most %d characters", contactMaxLen)
	case tooLong(lead.Message, messageMaxLen):
		return nil, validate.Errorf("message", "must be at most %d characters", messageMaxLen)
	}
	return lead, nil
}

// saveAttachment stores the optional upload and returns its public path, or
// "" when nothing was attached.
func (h *Handler) saveAttachment(r *http.Request) (string, error) {
	if r.MultipartForm == nil {
		return "", nil
	}
	file, header, err := r.FormFile(attachmentForm)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", validate.Errorf(attachmentForm, "is unreadable")
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExt[ext] {
		return "", validate.Errorf(attachmentForm, "type %q is not accepted", ext)
	}

	if err := os.MkdirAll(h.UploadDir, 0755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	fileName := uuid.NewString() + ext
	f, err := os.OpenFile(filepath.Join(h.UploadDir, fileName), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("create attachment: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, file); err != nil {
		return "", fmt.Errorf("write attachment: %w", err)
	}
	return "/uploads/" + fileName, nil
}

// Submit handles POST /api/leads.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := h.parseForm(w, r); err != nil {
		http.Error(w, "File too big or malformed form", http.StatusBadRequest)
		return
	}

	// bots fill every field; accept and drop
	if field(r, honeypotField) != "" {
		h.logger().WithField("ip", r.RemoteAddr).Info("lead dropped by honeypot")
		validate.WriteJSON(w, http.StatusCreated, submitResponse{})
		return
	}

	lead, err := leadFromForm(r)
	if err != nil {
		validate.WriteError(w, err)
		return
	}

	lead.AttachmentPath, err = h.saveAttachment(r)
	if err != nil {
		if _, ok := validate.As(err); ok {
			validate.WriteError(w, err)
			return
		}
		h.logger().Errorf("lead attachment: %v", err)
		http.Error(w, "Storage error", http.StatusInternalServerError)
		return
	}

	lead.Status = repo.LeadNew
	id, err := h.Repo.CreateLead(r.Context(), lead)
	if err != nil {
		h.logger().Errorf("create lead: %v", err)
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}
	h.logger().WithFields(logrus.Fields{"lead_id": id, "interest": lead.Interest}).Info("lead stored")

	h.notify(r.Context(), *lead)
	validate.WriteJSON(w, http.StatusCreated, submitResponse{ID: id})
}

// notify never fails the submission; the lead is already stored.
func (h *Handler) notify(parent context.Context, lead repo.Lead) {
	if h.Notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), notifyTimeout)
	defer cancel()
	if err := h.Notifier.NotifyLead(ctx, lead); err != nil {
		h.logger().WithField("lead_id", lead.ID).Warnf("lead notification failed: %v", err)
	}
}
