package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chineduo/solarhub/internal/domain"
	"github.com/chineduo/solarhub/internal/metrics"
)

func newPreOrderFixture(t *testing.T) (*PreOrderUC, *fakePreOrderRepo, *fakeGateway, *fakeNotificationRepo, *fakeMailer) {
	t.Helper()
	battery := &domain.PreOrder{
		ID:                   uuid.New(),
		ProductName:          "10kWh LiFePO4 Battery",
		Category:             "storage",
		PreOrderPrice:        100000,
		DepositPercentage:    30,
		ExpectedAvailability: "Q4 2025",
	}
	repo := newFakePreOrderRepo(battery)
	gateway := newFakeGateway()
	notes := &fakeNotificationRepo{}
	mailer := &fakeMailer{}
	uc := &PreOrderUC{
		PreOrders:   repo,
		Gateway:     gateway,
		Sessions:    NewSessionCodec("test-secret", 72*time.Hour),
		Notify:      &Notifier{Notifications: notes, Mail: mailer},
		FrontendURL: "https://shop.example.com",
		Clock:       testClock(),
	}
	return uc, repo, gateway, notes, mailer
}

func placeReq(repo *fakePreOrderRepo) PlacePreOrderRequest {
	var id uuid.UUID
	for _, c := range repo.catalog {
		id = c.ID
	}
	return PlacePreOrderRequest{
		PreOrderID:    id,
		CustomerEmail: "chidi@example.com",
		CustomerPhone: "+2348098765432",
		FirstName:     "Chidi",
		LastName:      "Eze",
		Quantity:      2,
		Fulfillment:   domain.PickupAt("Ikeja showroom"),
	}
}

func TestPlaceFreezesAmounts(t *testing.T) {
	uc, repo, _, notes, mailer := newPreOrderFixture(t)

	p, err := uc.Place(context.Background(), placeReq(repo))
	require.NoError(t, err)

	assert.Equal(t, 200000.0, p.TotalAmount)
	assert.Equal(t, 60000.0, p.DepositAmount)
	assert.Equal(t, 140000.0, p.RemainingAmount)
	assert.Equal(t, domain.PreOrderStatusPending, p.Status)
	assert.Equal(t, "PRE-", p.PreOrderNumber[:4])
	assert.Equal(t, 1, notes.countByType("new_pre_order"))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "chidi@example.com", mailer.sent[0].To)

	// catalog edits after placement never change the obligation
	for _, c := range repo.catalog {
		c.PreOrderPrice = 999999
	}
	stored, err := repo.FindByNumber(context.Background(), p.PreOrderNumber)
	require.NoError(t, err)
	assert.Equal(t, 200000.0, stored.TotalAmount)
}

func TestDepositThenRemainingLifecycle(t *testing.T) {
	uc, repo, gateway, notes, _ := newPreOrderFixture(t)

	p, err := uc.Place(context.Background(), placeReq(repo))
	require.NoError(t, err)

	// charge the deposit
	_, result, err := uc.InitializePayment(context.Background(), p.PreOrderNumber, domain.PaymentTypeDeposit)
	require.NoError(t, err)
	assert.Equal(t, 60000.0, result.Amount)

	gateway.scriptSuccess(result.Reference, map[string]any{"payment_type": "deposit"})
	confirmed, err := uc.VerifyPayment(context.Background(), result.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.PreOrderStatusDepositPaid, confirmed.Status)
	assert.Equal(t, domain.PreOrderPaymentDepositPaid, confirmed.PaymentStatus)
	assert.Equal(t, 1, notes.countByType("pre_order_deposit_paid"))

	// replay converges without a second milestone
	again, err := uc.VerifyPayment(context.Background(), result.Reference)
	require.NoError(t, err)
	assert.Equal(t, confirmed.PaymentStatus, again.PaymentStatus)
	assert.Equal(t, 1, notes.countByType("pre_order_deposit_paid"))

	// paying the deposit twice is refused up front
	_, _, err = uc.InitializePayment(context.Background(), p.PreOrderNumber, domain.PaymentTypeDeposit)
	assert.ErrorIs(t, err, domain.ErrAlreadyPaid)

	// admin marks ready; the remaining balance becomes payable
	ready, err := uc.UpdateStatus(context.Background(), p.PreOrderNumber, domain.PreOrderStatusReadyForPickup)
	require.NoError(t, err)
	assert.True(t, ready.CanPayRemaining())

	_, amount, err := uc.AmountDue(context.Background(), p.PreOrderNumber)
	require.NoError(t, err)
	assert.Equal(t, 140000.0, amount)

	_, result, err = uc.InitializePayment(context.Background(), p.PreOrderNumber, domain.PaymentTypeFull)
	require.NoError(t, err)
	assert.Equal(t, 140000.0, result.Amount, "full after deposit charges only the remainder")

	gateway.scriptSuccess(result.Reference, map[string]any{"payment_type": "full"})
	settled, err := uc.VerifyPayment(context.Background(), result.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.PreOrderPaymentFullyPaid, settled.PaymentStatus)
	assert.Equal(t, domain.PreOrderStatusReadyForPickup, settled.Status, "settling never moves fulfillment")
	assert.Equal(t, 1, notes.countByType("pre_order_fully_paid"))

	_, _, err = uc.AmountDue(context.Background(), p.PreOrderNumber)
	assert.ErrorIs(t, err, domain.ErrAlreadyPaid)
}

func TestSessionFirstPreOrder(t *testing.T) {
	uc, repo, gateway, notes, _ := newPreOrderFixture(t)

	result, err := uc.InitializeSession(context.Background(), placeReq(repo), domain.PaymentTypeDeposit)
	require.NoError(t, err)
	assert.Equal(t, 60000.0, result.Amount)

	_, err = repo.FindByReference(context.Background(), result.Reference)
	assert.ErrorIs(t, err, domain.ErrNotFound, "nothing persists before verification")

	gateway.scriptSuccess(result.Reference, gateway.lastInit().Metadata)
	p, err := uc.VerifyAndCreateFromSession(context.Background(), result.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.PreOrderStatusDepositPaid, p.Status)
	assert.Equal(t, 60000.0, p.DepositAmount)
	assert.Equal(t, 140000.0, p.RemainingAmount)

	// replay returns the same reservation
	again, err := uc.VerifyAndCreateFromSession(context.Background(), result.Reference)
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)
	assert.Equal(t, 1, notes.countByType("new_pre_order"))
	assert.Equal(t, 1, notes.countByType("pre_order_deposit_paid"))
}

func TestRetryAfterFailedChargeConfirms(t *testing.T) {
	uc, repo, gateway, notes, _ := newPreOrderFixture(t)

	p, err := uc.Place(context.Background(), placeReq(repo))
	require.NoError(t, err)

	// first deposit attempt is declined
	_, first, err := uc.InitializePayment(context.Background(), p.PreOrderNumber, domain.PaymentTypeDeposit)
	require.NoError(t, err)
	gateway.scriptFailure(first.Reference)
	failedBefore := testutil.ToFloat64(metrics.PaymentsFailed.WithLabelValues("pre_order_deposit"))
	_, err = uc.VerifyPayment(context.Background(), first.Reference)
	assert.ErrorIs(t, err, domain.ErrGatewayFailure)
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(metrics.PaymentsFailed.WithLabelValues("pre_order_deposit")))

	stored, err := repo.FindByNumber(context.Background(), p.PreOrderNumber)
	require.NoError(t, err)
	assert.Equal(t, domain.PreOrderPaymentFailed, stored.PaymentStatus)
	assert.Equal(t, 0, notes.countByType("pre_order_deposit_paid"))

	// customer retries on a fresh reference; the confirmed charge must land
	_, retry, err := uc.InitializePayment(context.Background(), p.PreOrderNumber, domain.PaymentTypeDeposit)
	require.NoError(t, err)
	require.NotEqual(t, first.Reference, retry.Reference)

	gateway.scriptSuccess(retry.Reference, map[string]any{"payment_type": "deposit"})
	confirmed, err := uc.VerifyPayment(context.Background(), retry.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.PreOrderPaymentDepositPaid, confirmed.PaymentStatus)
	assert.Equal(t, domain.PreOrderStatusDepositPaid, confirmed.Status)
	require.NotNil(t, confirmed.DepositPaidAt)
	assert.Equal(t, 1, notes.countByType("pre_order_deposit_paid"))
}

func TestRetryAfterFailureSettlesInFull(t *testing.T) {
	uc, repo, gateway, notes, _ := newPreOrderFixture(t)

	p, err := uc.Place(context.Background(), placeReq(repo))
	require.NoError(t, err)

	_, first, err := uc.InitializePayment(context.Background(), p.PreOrderNumber, domain.PaymentTypeFull)
	require.NoError(t, err)
	gateway.scriptFailure(first.Reference)
	_, err = uc.VerifyPayment(context.Background(), first.Reference)
	assert.ErrorIs(t, err, domain.ErrGatewayFailure)

	_, retry, err := uc.InitializePayment(context.Background(), p.PreOrderNumber, domain.PaymentTypeFull)
	require.NoError(t, err)
	assert.Equal(t, 200000.0, retry.Amount)

	gateway.scriptSuccess(retry.Reference, map[string]any{"payment_type": "full"})
	confirmed, err := uc.VerifyPayment(context.Background(), retry.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.PreOrderPaymentFullyPaid, confirmed.PaymentStatus)
	assert.Equal(t, domain.PreOrderStatusFullyPaid, confirmed.Status)
	require.NotNil(t, confirmed.FullyPaidAt)
	assert.Equal(t, 1, notes.countByType("pre_order_fully_paid"))
}

func TestWebhookFailureLeavesPaidAlone(t *testing.T) {
	uc, repo, gateway, _, _ := newPreOrderFixture(t)

	p, err := uc.Place(context.Background(), placeReq(repo))
	require.NoError(t, err)
	_, result, err := uc.InitializePayment(context.Background(), p.PreOrderNumber, domain.PaymentTypeDeposit)
	require.NoError(t, err)
	gateway.scriptSuccess(result.Reference, map[string]any{"payment_type": "deposit"})
	_, err = uc.VerifyPayment(context.Background(), result.Reference)
	require.NoError(t, err)

	// a late charge.failed for the same reference must not downgrade
	require.NoError(t, uc.HandleGatewayFailure(context.Background(), result.Reference, nil))
	stored, _ := repo.FindByReference(context.Background(), result.Reference)
	assert.Equal(t, domain.PreOrderPaymentDepositPaid, stored.PaymentStatus)

	// unknown references are a silent no-op
	require.NoError(t, uc.HandleGatewayFailure(context.Background(), "pre_0_unknown", nil))
}

func TestPaymentTokenLifecycle(t *testing.T) {
	uc, repo, gateway, _, _ := newPreOrderFixture(t)

	p, err := uc.Place(context.Background(), placeReq(repo))
	require.NoError(t, err)

	// not eligible before the deposit milestone
	_, err = uc.GeneratePaymentToken(context.Background(), p.PreOrderNumber)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, result, err := uc.InitializePayment(context.Background(), p.PreOrderNumber, domain.PaymentTypeDeposit)
	require.NoError(t, err)
	gateway.scriptSuccess(result.Reference, map[string]any{"payment_type": "deposit"})
	_, err = uc.VerifyPayment(context.Background(), result.Reference)
	require.NoError(t, err)
	_, err = uc.UpdateStatus(context.Background(), p.PreOrderNumber, domain.PreOrderStatusReadyForPickup)
	require.NoError(t, err)

	link, err := uc.GeneratePaymentToken(context.Background(), p.PreOrderNumber)
	require.NoError(t, err)
	assert.Equal(t, 140000.0, link.Amount)
	assert.Contains(t, link.URL, "https://shop.example.com/pre-orders/pay-remaining?token=")

	got, amount, err := uc.ExchangePaymentToken(context.Background(), link.Token)
	require.NoError(t, err)
	assert.Equal(t, p.PreOrderNumber, got.PreOrderNumber)
	assert.Equal(t, 140000.0, amount)

	// settle the balance; the token is now worthless even though unexpired
	_, result, err = uc.InitializePayment(context.Background(), p.PreOrderNumber, domain.PaymentTypeFull)
	require.NoError(t, err)
	gateway.scriptSuccess(result.Reference, map[string]any{"payment_type": "full"})
	_, err = uc.VerifyPayment(context.Background(), result.Reference)
	require.NoError(t, err)

	_, _, err = uc.ExchangePaymentToken(context.Background(), link.Token)
	assert.ErrorIs(t, err, domain.ErrAlreadyPaid)
}

func TestCatalogValidation(t *testing.T) {
	uc, _, _, _, _ := newPreOrderFixture(t)

	err := uc.SaveCatalog(context.Background(), &domain.PreOrder{ProductName: "X", PreOrderPrice: 1000, DepositPercentage: 130})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "deposit_percentage")
}
