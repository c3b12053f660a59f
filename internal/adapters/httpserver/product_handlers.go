package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chineduo/solarhub/internal/domain"
)

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return v
}

func pathUUID(r *http.Request, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, key))
	if err != nil {
		return uuid.Nil, &domain.ValidationError{Fields: map[string]string{key: "must be a UUID"}}
	}
	return id, nil
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	active := true
	f := domain.ProductFilter{
		Category: r.URL.Query().Get("category"),
		Query:    r.URL.Query().Get("q"),
		Active:   &active,
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "page_size", 20),
	}
	products, total, err := s.Products.List(r.Context(), f)
	if err != nil {
		fail(w, err)
		return
	}
	okPage(w, products, total, f.Page, f.PageSize)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.Products.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, p)
}

func (s *Server) saveProduct(w http.ResponseWriter, r *http.Request) {
	var p domain.Product
	if err := decodeBody(r, &p); err != nil {
		fail(w, err)
		return
	}
	if err := s.Products.Save(r.Context(), &p); err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusCreated, p)
}

func (s *Server) setStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	var body struct {
		Stock int `json:"stock"`
	}
	if err := decodeBody(r, &body); err != nil {
		fail(w, err)
		return
	}
	if err := s.Products.SetStock(r.Context(), id, body.Stock); err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"stock": body.Stock})
}

func (s *Server) adjustStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	var body struct {
		Delta int `json:"delta"`
	}
	if err := decodeBody(r, &body); err != nil {
		fail(w, err)
		return
	}
	if err := s.Products.AdjustStock(r.Context(), id, body.Delta); err != nil {
		fail(w, err)
		return
	}
	p, err := s.Products.Get(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"stock": p.Stock})
}
