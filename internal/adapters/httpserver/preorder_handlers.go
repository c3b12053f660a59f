package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chineduo/solarhub/internal/domain"
	"github.com/chineduo/solarhub/internal/usecase"
)

func (s *Server) listPreOrderCatalog(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 20)
	items, total, err := s.PreOrders.ListCatalog(r.Context(), r.URL.Query().Get("q"), page, pageSize)
	if err != nil {
		fail(w, err)
		return
	}
	okPage(w, items, total, page, pageSize)
}

func (s *Server) getPreOrderCatalog(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	item, err := s.PreOrders.GetCatalog(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, item)
}

func (s *Server) saveCatalogItem(w http.ResponseWriter, r *http.Request) {
	var item domain.PreOrder
	if err := decodeBody(r, &item); err != nil {
		fail(w, err)
		return
	}
	if err := s.PreOrders.SaveCatalog(r.Context(), &item); err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusCreated, item)
}

func (s *Server) placePreOrder(w http.ResponseWriter, r *http.Request) {
	var req usecase.PlacePreOrderRequest
	if err := decodeBody(r, &req); err != nil {
		fail(w, err)
		return
	}
	p, err := s.PreOrders.Place(r.Context(), req)
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusCreated, p)
}

type preOrderSessionRequest struct {
	usecase.PlacePreOrderRequest
	PaymentType domain.PaymentType `json:"payment_type"`
}

func (s *Server) preOrderSession(w http.ResponseWriter, r *http.Request) {
	var req preOrderSessionRequest
	if err := decodeBody(r, &req); err != nil {
		fail(w, err)
		return
	}
	result, err := s.PreOrders.InitializeSession(r.Context(), req.PlacePreOrderRequest, req.PaymentType)
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"payment": result})
}

func (s *Server) payPreOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PaymentType domain.PaymentType `json:"payment_type"`
	}
	if err := decodeBody(r, &body); err != nil {
		fail(w, err)
		return
	}
	p, result, err := s.PreOrders.InitializePayment(r.Context(), chi.URLParam(r, "number"), body.PaymentType)
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"pre_order": p, "payment": result})
}

func (s *Server) verifyPreOrderPayment(w http.ResponseWriter, r *http.Request) {
	p, err := s.PreOrders.VerifyPayment(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"pre_order": p})
}

func (s *Server) verifyPreOrderSession(w http.ResponseWriter, r *http.Request) {
	p, err := s.PreOrders.VerifyAndCreateFromSession(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"pre_order": p})
}

// payRemaining exchanges a signed deep-link token and, in the same call,
// starts a hosted checkout for the remaining balance.
func (s *Server) payRemaining(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := decodeBody(r, &body); err != nil {
		fail(w, err)
		return
	}
	p, amount, err := s.PreOrders.ExchangePaymentToken(r.Context(), body.Token)
	if err != nil {
		fail(w, err)
		return
	}
	p, result, err := s.PreOrders.InitializePayment(r.Context(), p.PreOrderNumber, domain.PaymentTypeFull)
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"pre_order": p, "amount_due": amount, "payment": result})
}

func (s *Server) trackPreOrder(w http.ResponseWriter, r *http.Request) {
	p, err := s.PreOrders.Get(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, p)
}

func (s *Server) preOrderAmountDue(w http.ResponseWriter, r *http.Request) {
	p, amount, err := s.PreOrders.AmountDue(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{
		"pre_order_number": p.PreOrderNumber,
		"amount_due":       amount,
		"payment_status":   p.PaymentStatus,
		"status":           p.Status,
	})
}

func (s *Server) listMyPreOrders(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		fail(w, &domain.ValidationError{Fields: map[string]string{"email": "required"}})
		return
	}
	items, err := s.PreOrders.ListByEmail(r.Context(), email)
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, items)
}

func (s *Server) adminUpdatePreOrderStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status domain.PreOrderStatus `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		fail(w, err)
		return
	}
	p, err := s.PreOrders.UpdateStatus(r.Context(), chi.URLParam(r, "number"), body.Status)
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, p)
}

func (s *Server) adminPaymentLink(w http.ResponseWriter, r *http.Request) {
	link, err := s.PreOrders.GeneratePaymentToken(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, link)
}
