package httpserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/chineduo/solarhub/internal/domain"
)

func (s *Server) validatePromotion(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PromoCode   string  `json:"promo_code"`
		OrderAmount float64 `json:"order_amount"`
	}
	if err := decodeBody(r, &body); err != nil {
		fail(w, err)
		return
	}
	quote, err := s.Promotions.Validate(r.Context(), body.PromoCode, body.OrderAmount)
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, quote)
}

func (s *Server) adminListPromotions(w http.ResponseWriter, r *http.Request) {
	promos, err := s.Promotions.List(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, promos)
}

func (s *Server) adminSavePromotion(w http.ResponseWriter, r *http.Request) {
	var p domain.Promotion
	if err := decodeBody(r, &p); err != nil {
		fail(w, err)
		return
	}
	if err := s.Promotions.Save(r.Context(), &p); err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusCreated, p)
}

func (s *Server) adminListNotifications(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 20)
	unreadOnly := r.URL.Query().Get("unread") == "true"
	notes, total, err := s.Notifications.List(r.Context(), unreadOnly, page, pageSize)
	if err != nil {
		fail(w, err)
		return
	}
	okPage(w, notes, total, page, pageSize)
}

func (s *Server) adminUnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.Notifications.UnreadCount(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"unread": count})
}

func (s *Server) adminMarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	if err := s.Notifications.MarkRead(r.Context(), id); err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, nil)
}

func (s *Server) adminMarkAllRead(w http.ResponseWriter, r *http.Request) {
	if err := s.Notifications.MarkAllRead(r.Context()); err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, nil)
}

func (s *Server) reportDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Reports.Dashboard(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, stats)
}

func (s *Server) reportTransactions(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 20)
	rows, total, err := s.Reports.RecentTransactions(r.Context(), r.URL.Query().Get("kind"), page, pageSize)
	if err != nil {
		fail(w, err)
		return
	}
	okPage(w, rows, total, page, pageSize)
}

func queryTime(r *http.Request, key string) time.Time {
	t, err := time.Parse("2006-01-02", r.URL.Query().Get(key))
	if err != nil {
		return time.Time{}
	}
	return t
}

func (s *Server) reportMethods(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Reports.MethodBreakdown(r.Context(), queryTime(r, "from"), queryTime(r, "to"))
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, stats)
}

func (s *Server) reportTrend(w http.ResponseWriter, r *http.Request) {
	points, err := s.Reports.RevenueTrend(r.Context(), queryInt(r, "days", 30))
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, http.StatusOK, points)
}

func (s *Server) reportExport(w http.ResponseWriter, r *http.Request) {
	buf, err := s.Reports.ExportTransactionsXLSX(r.Context(), queryTime(r, "from"), queryTime(r, "to"))
	if err != nil {
		fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=transactions-%s.xlsx", time.Now().Format("2006-01-02")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf)
}
