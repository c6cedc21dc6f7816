package catalog

import (
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"Voltaris/internal/calc/validate"
	"Voltaris/internal/repo"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	Repo repo.ProductRepository
	Log  *logrus.Logger
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

func parseFilter(r *http.Request) (repo.ProductFilter, error) {
	q := r.URL.Query()
	f := repo.ProductFilter{Query: strings.TrimSpace(q.Get("q"))}

	if c := q.Get("category"); c != "" {
		f.Category = repo.ProductCategory(strings.ToLower(c))
		switch f.Category {
		case repo.CategoryStabilizer, repo.CategoryTransformer, repo.CategorySwitchgear:
		default:
			return f, validate.Errorf("category", "must be one of stabilizer, transformer, switchgear")
		}
	}
	if s := q.Get("min_kva"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return f, validate.Errorf("min_kva", "must be a non-negative number")
		}
		f.MinCapacityKVA = v
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		s := q.Get(name)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return f, validate.Errorf(name, "must be a non-negative integer")
		}
		*dst = n
	}
	return f, nil
}

// List handles GET /api/catalog/products.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		validate.WriteError(w, err)
		return
	}
	products, err := h.Repo.ListProducts(r.Context(), f)
	if err != nil {
		h.logger().Errorf("list products: %v", err)
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}
	validate.WriteJSON(w, http.StatusOK, products)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	p, err := h.Repo.GetProductBySlug(r.Context(), slug)
	if errors.Is(err, repo.ErrNotFound) {
		http.Error(w, "Product not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger().Errorf("get product %q: %v", slug, err)
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}
	validate.WriteJSON(w, http.StatusOK, p)
}
