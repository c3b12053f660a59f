package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chineduo/solarhub/internal/domain"
	"github.com/chineduo/solarhub/internal/usecase"
)

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	var req usecase.CheckoutRequest
	if err := decodeBody(r, &req); err != nil {
		fail(w, err)
		return
	}
	order, result, err := s.Orders.InitializeCheckout(r.Context(), req)
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusCreated, map[string]any{"order": order, "payment": result})
}

func (s *Server) checkoutSession(w http.ResponseWriter, r *http.Request) {
	var req usecase.CheckoutRequest
	if err := decodeBody(r, &req); err != nil {
		fail(w, err)
		return
	}
	result, err := s.Orders.InitializeCheckoutSession(r.Context(), req)
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"payment": result})
}

func (s *Server) verifyOrderPayment(w http.ResponseWriter, r *http.Request) {
	order, err := s.Orders.VerifyPayment(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"order": order})
}

func (s *Server) verifyOrderSession(w http.ResponseWriter, r *http.Request) {
	order, err := s.Orders.VerifyAndCreateFromSession(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"order": order})
}

func (s *Server) adminListOrders(w http.ResponseWriter, r *http.Request) {
	f := domain.OrderFilter{
		Query:         r.URL.Query().Get("q"),
		Status:        domain.OrderStatus(r.URL.Query().Get("status")),
		PaymentStatus: domain.PaymentStatus(r.URL.Query().Get("payment_status")),
		Page:          queryInt(r, "page", 1),
		PageSize:      queryInt(r, "page_size", 20),
	}
	orders, total, err := s.Orders.List(r.Context(), f)
	if err != nil {
		fail(w, err)
		return
	}
	okPage(w, orders, total, f.Page, f.PageSize)
}

func (s *Server) adminGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	order, err := s.Orders.Get(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, order)
}

func (s *Server) adminUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	var body struct {
		Status domain.OrderStatus `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		fail(w, err)
		return
	}
	order, err := s.Orders.UpdateStatus(r.Context(), id, body.Status)
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, order)
}

func (s *Server) adminCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	order, err := s.Orders.Cancel(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, order)
}
