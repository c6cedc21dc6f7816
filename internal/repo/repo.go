package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("not found")

type LeadStatus string

const (
	LeadNew       LeadStatus = "new"
	LeadContacted LeadStatus = "contacted"
	LeadSpam      LeadStatus = "spam"
)

func (s LeadStatus) Valid() bool {
	switch s {
	case LeadNew, LeadContacted, LeadSpam:
		return true
	}
	return false
}

type Lead struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Phone          string     `json:"phone"`
	Email          string     `json:"email"`
	Company        string     `json:"company"`
	Interest       string     `json:"interest"`
	Message        string     `json:"message"`
	AttachmentPath string     `json:"attachment_path,omitempty"`
	Status         LeadStatus `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
}

type LeadFilter struct {
	Status LeadStatus
	Limit  int
	Offset int
}

type ProductCategory string

const (
	CategoryStabilizer  ProductCategory = "stabilizer"
	CategoryTransformer ProductCategory = "transformer"
	CategorySwitchgear  ProductCategory = "switchgear"
)

type Product struct {
	ID          int64           `json:"id"`
	Slug        string          `json:"slug"`
	Name        string          `json:"name"`
	Category    ProductCategory `json:"category"`
	CapacityKVA float64         `json:"capacity_kva"`
	Summary     string          `json:"summary"`
}

type ProductFilter struct {
	Category       ProductCategory
	Query          string
	MinCapacityKVA float64
	Limit          int
	Offset         int
}

type LeadRepository interface {
	CreateLead(ctx context.Context, lead *Lead) (int64, error)
	GetLead(ctx context.Context, id int64) (Lead, error)
	ListLeads(ctx context.Context, f LeadFilter) ([]Lead, error)
	UpdateLeadStatus(ctx context.Context, id int64, status LeadStatus) error
}

type ProductRepository interface {
	ListProducts(ctx context.Context, f ProductFilter) ([]Product, error)
	GetProductBySlug(ctx context.Context, slug string) (Product, error)
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

func clampLimit(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}

type SQLRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db, now: time.Now}
}

func (r *SQLRepository) CreateLead(ctx context.Context, lead *Lead) (int64, error) {
	if lead.Status == "" {
		lead.Status = LeadNew
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = r.now().UTC()
	}
	query := `INSERT INTO leads (name, phone, email, company, interest, message, attachment_path, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		lead.Name, lead.Phone, lead.Email, lead.Company, lead.Interest,
		lead.Message, lead.AttachmentPath, string(lead.Status), lead.CreatedAt,
	).Scan(&lead.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to create lead: %w", err)
	}
	return lead.ID, nil
}

const leadColumns = `id, name, phone, email, company, interest, message, attachment_path, status, created_at`

func scanLead(s interface{ Scan(...any) error }) (Lead, error) {
	var l Lead
	var status string
	err := s.Scan(&l.ID, &l.Name, &l.Phone, &l.Email, &l.Company, &l.Interest,
		&l.Message, &l.AttachmentPath, &status, &l.CreatedAt)
	l.Status = LeadStatus(status)
	return l, err
}

func (r *SQLRepository) GetLead(ctx context.Context, id int64) (Lead, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	l, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, fmt.Errorf("failed to get lead: %w", err)
	}
	return l, nil
}

func (r *SQLRepository) ListLeads(ctx context.Context, f LeadFilter) ([]Lead, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT ` + leadColumns + ` FROM leads`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, clampLimit(f.Limit), max(f.Offset, 0))
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	leads := []Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

func (r *SQLRepository) UpdateLeadStatus(ctx context.Context, id int64, status LeadStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid lead status %q", status)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE leads SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const productColumns = `id, slug, name, category, capacity_kva, summary`

func scanProduct(s interface{ Scan(...any) error }) (Product, error) {
	var p Product
	var cat string
	err := s.Scan(&p.ID, &p.Slug, &p.Name, &cat, &p.CapacityKVA, &p.Summary)
	p.Category = ProductCategory(cat)
	return p, err
}

func (r *SQLRepository) ListProducts(ctx context.Context, f ProductFilter) ([]Product, error) {
	where := []string{"published = $1"}
	args := []any{true}
	if f.Category != "" {
		args = append(args, string(f.Category))
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+strings.ToLower(q)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(summary) LIKE $%d)", n, n))
	}
	if f.MinCapacityKVA > 0 {
		args = append(args, f.MinCapacityKVA)
		where = append(where, fmt.Sprintf("capacity_kva >= $%d", len(args)))
	}
	args = append(args, clampLimit(f.Limit), max(f.Offset, 0))
	query := `SELECT ` + productColumns + ` FROM products WHERE ` + strings.Join(where, " AND ") +
		fmt.Sprintf(" ORDER BY capacity_kva ASC, name ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *SQLRepository) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE slug = $1 AND published = $2`, slug, true)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}
