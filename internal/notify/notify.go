package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"Voltaris/internal/repo"
)

// Notifier is told about every stored lead.
type Notifier interface {
	NotifyLead(ctx context.Context, lead repo.Lead) error
}

// Multi fans a lead out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) NotifyLead(ctx context.Context, lead repo.Lead) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.NotifyLead(ctx, lead); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FormatLead renders the plain-text summary sent to the sales chat.
func FormatLead(lead repo.Lead) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New lead #%d\n", lead.ID)
	fmt.Fprintf(&b, "Name: %s\n", lead.Name)
	if lead.Company != "" {
		fmt.Fprintf(&b, "Company: %s\n", lead.Company)
	}
	if lead.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", lead.Phone)
	}
	if lead.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", lead.Email)
	}
	if lead.Interest != "" {
		fmt.Fprintf(&b, "Interest: %s\n", lead.Interest)
	}
	if lead.AttachmentPath != "" {
		fmt.Fprintf(&b, "Attachment: %s\n", lead.AttachmentPath)
	}
	if lead.Message != "" {
		b.WriteString("\n" + lead.Message)
	}
	return strings.TrimRight(b.String(), "\n")
}
