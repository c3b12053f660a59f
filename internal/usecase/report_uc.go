package usecase

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"

	"github.com/chineduo/solarhub/internal/domain"
)

type ReportUC struct {
	Orders    domain.OrderRepo
	PreOrders domain.PreOrderRepo
	Clock     func() time.Time
}

func (uc *ReportUC) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock()
	}
	return time.Now()
}

// collected is the cash actually received for a reservation so far: the
// deposit after the first milestone, the full total after the second.
func collected(p domain.CustomerPreOrder) float64 {
	switch p.PaymentStatus {
	case domain.PreOrderPaymentFullyPaid:
		return p.TotalAmount
	case domain.PreOrderPaymentDepositPaid:
		return p.DepositAmount
	default:
		return 0
	}
}

type DashboardStats struct {
	Revenue          float64 `json:"revenue"`
	RevenueChange    float64 `json:"revenue_change_pct"`
	OrderCount       int     `json:"order_count"`
	OrderChange      float64 `json:"order_change_pct"`
	PreOrderCount    int     `json:"pre_order_count"`
	PreOrderChange   float64 `json:"pre_order_change_pct"`
	PendingOrders    int     `json:"pending_orders"`
	PendingPreOrders int     `json:"pending_pre_orders"`
}

func pctChange(current, previous float64) float64 {
	if previous == 0 {
		if current == 0 {
			return 0
		}
		return 100
	}
	return (current - previous) / previous * 100
}

// Dashboard compares the current calendar month against the previous one.
func (uc *ReportUC) Dashboard(ctx context.Context) (*DashboardStats, error) {
	now := uc.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	prevStart := monthStart.AddDate(0, -1, 0)

	orders, err := uc.Orders.ListCreatedBetween(ctx, prevStart, now)
	if err != nil {
		return nil, err
	}
	preOrders, err := uc.PreOrders.ListCreatedBetween(ctx, prevStart, now)
	if err != nil {
		return nil, err
	}

	cur := lo.Filter(orders, func(o domain.Order, _ int) bool { return !o.CreatedAt.Before(monthStart) })
	prev := lo.Filter(orders, func(o domain.Order, _ int) bool { return o.CreatedAt.Before(monthStart) })
	curPre := lo.Filter(preOrders, func(p domain.CustomerPreOrder, _ int) bool { return !p.CreatedAt.Before(monthStart) })
	prevPre := lo.Filter(preOrders, func(p domain.CustomerPreOrder, _ int) bool { return p.CreatedAt.Before(monthStart) })

	paidRevenue := func(os []domain.Order) float64 {
		return lo.SumBy(os, func(o domain.Order) float64 {
			if o.IsPaid() {
				return o.TotalAmount
			}
			return 0
		})
	}
	curRevenue := paidRevenue(cur) + lo.SumBy(curPre, collected)
	prevRevenue := paidRevenue(prev) + lo.SumBy(prevPre, collected)

	return &DashboardStats{
		Revenue:        curRevenue,
		RevenueChange:  pctChange(curRevenue, prevRevenue),
		OrderCount:     len(cur),
		OrderChange:    pctChange(float64(len(cur)), float64(len(prev))),
		PreOrderCount:  len(curPre),
		PreOrderChange: pctChange(float64(len(curPre)), float64(len(prevPre))),
		PendingOrders: lo.CountBy(cur, func(o domain.Order) bool {
			return o.Status == domain.OrderStatusPending
		}),
		PendingPreOrders: lo.CountBy(curPre, func(p domain.CustomerPreOrder) bool {
			return p.Status == domain.PreOrderStatusPending
		}),
	}, nil
}

// Transaction is the unified reporting row across both sale kinds.
type Transaction struct {
	Kind          string    `json:"kind"` // order | pre_order
	Number        string    `json:"number"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	PaymentMethod string    `json:"payment_method"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	CreatedAt     time.Time `json:"created_at"`
}

func orderTransaction(o domain.Order) Transaction {
	return Transaction{
		Kind:          "order",
		Number:        o.OrderNumber,
		CustomerName:  o.CustomerName(),
		CustomerEmail: o.CustomerEmail,
		Amount:        o.TotalAmount,
		Currency:      o.Currency,
		PaymentMethod: o.PaymentMethod,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		CreatedAt:     o.CreatedAt,
	}
}

func preOrderTransaction(p domain.CustomerPreOrder) Transaction {
	return Transaction{
		Kind:          "pre_order",
		Number:        p.PreOrderNumber,
		CustomerName:  p.CustomerName(),
		CustomerEmail: p.CustomerEmail,
		Amount:        collected(p),
		Currency:      p.Currency,
		PaymentMethod: p.PaymentMethod,
		Status:        string(p.Status),
		PaymentStatus: string(p.PaymentStatus),
		CreatedAt:     p.CreatedAt,
	}
}

func (uc *ReportUC) transactions(ctx context.Context, from, to time.Time, kind string) ([]Transaction, error) {
	var rows []Transaction
	if kind == "" || kind == "order" {
		orders, err := uc.Orders.ListCreatedBetween(ctx, from, to)
		if err != nil {
			return nil, err
		}
		rows = append(rows, lo.Map(orders, func(o domain.Order, _ int) Transaction { return orderTransaction(o) })...)
	}
	if kind == "" || kind == "pre_order" {
		preOrders, err := uc.PreOrders.ListCreatedBetween(ctx, from, to)
		if err != nil {
			return nil, err
		}
		rows = append(rows, lo.Map(preOrders, func(p domain.CustomerPreOrder, _ int) Transaction { return preOrderTransaction(p) })...)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	return rows, nil
}

// RecentTransactions pages the merged order/pre-order stream, newest first.
func (uc *ReportUC) RecentTransactions(ctx context.Context, kind string, page, pageSize int) ([]Transaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	rows, err := uc.transactions(ctx, time.Time{}, uc.now(), kind)
	if err != nil {
		return nil, 0, err
	}
	total := int64(len(rows))
	start := (page - 1) * pageSize
	if start >= len(rows) {
		return []Transaction{}, total, nil
	}
	end := start + pageSize
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end], total, nil
}

type MethodStat struct {
	Method string  `json:"method"`
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// settledAmount is the money actually received for a row: an order only
// counts once its payment is confirmed, a reservation counts whatever
// Amount already reflects (deposit or total).
func settledAmount(t Transaction) float64 {
	if t.Kind == "order" && t.PaymentStatus != string(domain.PaymentStatusPaid) {
		return 0
	}
	return t.Amount
}

// MethodBreakdown aggregates settled money per payment channel.
func (uc *ReportUC) MethodBreakdown(ctx context.Context, from, to time.Time) ([]MethodStat, error) {
	rows, err := uc.transactions(ctx, from, to, "")
	if err != nil {
		return nil, err
	}
	settled := lo.Filter(rows, func(t Transaction, _ int) bool { return settledAmount(t) > 0 })
	grouped := lo.GroupBy(settled, func(t Transaction) string {
		if t.PaymentMethod == "" {
			return "unknown"
		}
		return t.PaymentMethod
	})
	stats := lo.MapToSlice(grouped, func(method string, ts []Transaction) MethodStat {
		return MethodStat{
			Method: method,
			Count:  len(ts),
			Amount: lo.SumBy(ts, settledAmount),
		}
	})
	sort.Slice(stats, func(i, j int) bool { return stats[i].Amount > stats[j].Amount })
	return stats, nil
}

type TrendPoint struct {
	Day     string  `json:"day"`
	Revenue float64 `json:"revenue"`
	Count   int     `json:"count"`
}

// RevenueTrend buckets settled money per day over the trailing window.
func (uc *ReportUC) RevenueTrend(ctx context.Context, days int) ([]TrendPoint, error) {
	if days < 1 || days > 366 {
		days = 30
	}
	now := uc.now()
	from := now.AddDate(0, 0, -days)
	rows, err := uc.transactions(ctx, from, now, "")
	if err != nil {
		return nil, err
	}
	settled := lo.Filter(rows, func(t Transaction, _ int) bool { return settledAmount(t) > 0 })
	grouped := lo.GroupBy(settled, func(t Transaction) string { return t.CreatedAt.Format("2006-01-02") })

	points := make([]TrendPoint, 0, days)
	for d := 0; d < days; d++ {
		day := from.AddDate(0, 0, d+1).Format("2006-01-02")
		ts := grouped[day]
		points = append(points, TrendPoint{
			Day:     day,
			Revenue: lo.SumBy(ts, settledAmount),
			Count:   len(ts),
		})
	}
	return points, nil
}

// ExportTransactionsXLSX renders the merged transaction stream as a
// spreadsheet for the back office.
func (uc *ReportUC) ExportTransactionsXLSX(ctx context.Context, from, to time.Time) ([]byte, error) {
	if to.IsZero() {
		to = uc.now()
	}
	rows, err := uc.transactions(ctx, from, to, "")
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Transactions"
	f.SetSheetName(f.GetSheetName(0), sheet)

	headers := []string{"Kind", "Number", "Customer", "Email", "Amount", "Currency", "Method", "Status", "Payment Status", "Created"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}
	for r, t := range rows {
		values := []any{t.Kind, t.Number, t.CustomerName, t.CustomerEmail, t.Amount, t.Currency, t.PaymentMethod, t.Status, t.PaymentStatus, t.CreatedAt.Format(time.RFC3339)}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}
	total := lo.SumBy(rows, func(t Transaction) float64 { return t.Amount })
	cell, _ := excelize.CoordinatesToCellName(5, len(rows)+3)
	if err := f.SetCellValue(sheet, cell, fmt.Sprintf("Total: %.2f", total)); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
