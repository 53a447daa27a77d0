package order_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ngophong010/bamito-backend-sub000/internal/apperr"
	"github.com/ngophong010/bamito-backend-sub000/internal/cart"
	"github.com/ngophong010/bamito-backend-sub000/internal/catalog"
	"github.com/ngophong010/bamito-backend-sub000/internal/db"
	"github.com/ngophong010/bamito-backend-sub000/internal/inventory"
	"github.com/ngophong010/bamito-backend-sub000/internal/notify"
	"github.com/ngophong010/bamito-backend-sub000/internal/order"
	"github.com/ngophong010/bamito-backend-sub000/internal/voucher"
)

// fakeTxRunner runs the transactional function directly; repository mocks
// ignore the Querier, so the tests observe the same call sequence the real
// transaction would carry.
type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(q db.Querier) error) error {
	return fn(nil)
}

type noopNotifier struct{}

func (noopNotifier) OrderConfirmed(ctx context.Context, ev notify.OrderEvent) {}
func (noopNotifier) OrderCancelled(ctx context.Context, ev notify.OrderEvent) {}

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, q db.Querier, o *order.Order) error {
	args := m.Called(ctx, q, o)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByCode(ctx context.Context, q db.Querier, orderCode string) (*order.Order, error) {
	args := m.Called(ctx, q, orderCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) ListByUser(ctx context.Context, q db.Querier, userID int64) ([]order.Order, error) {
	args := m.Called(ctx, q, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdateStatusFrom(ctx context.Context, q db.Querier, orderID int64, from, to order.Status) error {
	args := m.Called(ctx, q, orderID, from, to)
	return args.Error(0)
}

func (m *MockOrderRepository) MarkFeedbackSubmitted(ctx context.Context, q db.Querier, lineItemID int64) error {
	args := m.Called(ctx, q, lineItemID)
	return args.Error(0)
}

type MockInventoryRepository struct {
	mock.Mock
}

func (m *MockInventoryRepository) Reserve(ctx context.Context, q db.Querier, productID, variantID, quantity int64) error {
	args := m.Called(ctx, q, productID, variantID, quantity)
	return args.Error(0)
}

func (m *MockInventoryRepository) Release(ctx context.Context, q db.Querier, productID, variantID, quantity int64) error {
	args := m.Called(ctx, q, productID, variantID, quantity)
	return args.Error(0)
}

func (m *MockInventoryRepository) Get(ctx context.Context, q db.Querier, productID, variantID int64) (*inventory.Record, error) {
	args := m.Called(ctx, q, productID, variantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.Record), args.Error(1)
}

type MockVoucherRepository struct {
	mock.Mock
}

func (m *MockVoucherRepository) Redeem(ctx context.Context, q db.Querier, voucherCode string) (*voucher.Voucher, error) {
	args := m.Called(ctx, q, voucherCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*voucher.Voucher), args.Error(1)
}

func (m *MockVoucherRepository) Release(ctx context.Context, q db.Querier, voucherID int64) error {
	args := m.Called(ctx, q, voucherID)
	return args.Error(0)
}

func (m *MockVoucherRepository) GetByCode(ctx context.Context, q db.Querier, voucherCode string) (*voucher.Voucher, error) {
	args := m.Called(ctx, q, voucherCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*voucher.Voucher), args.Error(1)
}

type MockCartRepository struct {
	mock.Mock
}

func (m *MockCartRepository) GetOrCreate(ctx context.Context, q db.Querier, userID int64) (*cart.Cart, error) {
	args := m.Called(ctx, q, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Cart), args.Error(1)
}

func (m *MockCartRepository) UpsertItem(ctx context.Context, q db.Querier, cartID int64, item cart.LineItem) error {
	args := m.Called(ctx, q, cartID, item)
	return args.Error(0)
}

func (m *MockCartRepository) RemoveItem(ctx context.Context, q db.Querier, cartID, productID, variantID int64) error {
	args := m.Called(ctx, q, cartID, productID, variantID)
	return args.Error(0)
}

func (m *MockCartRepository) Clear(ctx context.Context, q db.Querier, userID int64) error {
	args := m.Called(ctx, q, userID)
	return args.Error(0)
}

type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) GetPricedVariant(ctx context.Context, q db.Querier, productID, variantID int64) (*catalog.PricedVariant, error) {
	args := m.Called(ctx, q, productID, variantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.PricedVariant), args.Error(1)
}

type serviceMocks struct {
	orders    *MockOrderRepository
	inventory *MockInventoryRepository
	vouchers  *MockVoucherRepository
	carts     *MockCartRepository
	catalog   *MockCatalogRepository
}

func newTestService() (order.Service, *serviceMocks) {
	m := &serviceMocks{
		orders:    new(MockOrderRepository),
		inventory: new(MockInventoryRepository),
		vouchers:  new(MockVoucherRepository),
		carts:     new(MockCartRepository),
		catalog:   new(MockCatalogRepository),
	}
	svc := order.NewService(
		fakeTxRunner{},
		nil,
		m.orders,
		m.inventory,
		m.vouchers,
		m.carts,
		order.NewSnapshotBuilder(m.catalog),
		noopNotifier{},
	)
	return svc, m
}

func racketVariant(productID, variantID, price int64, discountPct int) *catalog.PricedVariant {
	return &catalog.PricedVariant{
		ProductID:   productID,
		VariantID:   variantID,
		ProductName: "Yonex Astrox 99",
		VariantName: "4U G5",
		ImageURL:    "https://cdn.example.com/astrox99.jpg",
		Price:       price,
		DiscountPct: discountPct,
	}
}

func TestOrderService_Create_Success(t *testing.T) {
	svc, m := newTestService()

	m.catalog.On("GetPricedVariant", mock.Anything, mock.Anything, int64(1), int64(10)).
		Return(racketVariant(1, 10, 1000, 10), nil).Once()
	m.catalog.On("GetPricedVariant", mock.Anything, mock.Anything, int64(2), int64(20)).
		Return(racketVariant(2, 20, 500, 0), nil).Once()

	m.orders.On("Create", mock.Anything, mock.Anything, mock.AnythingOfType("*order.Order")).
		Run(func(args mock.Arguments) {
			o := args.Get(2).(*order.Order)
			o.ID = 42
		}).
		Return(nil).Once()

	m.inventory.On("Reserve", mock.Anything, mock.Anything, int64(1), int64(10), int64(2)).Return(nil).Once()
	m.inventory.On("Reserve", mock.Anything, mock.Anything, int64(2), int64(20), int64(3)).Return(nil).Once()
	m.carts.On("Clear", mock.Anything, mock.Anything, int64(7)).Return(nil).Once()

	created, err := svc.Create(context.Background(), order.CreateOrderInput{
		UserID:          7,
		PaymentMethod:   "COD",
		DeliveryAddress: "12 Nguyen Trai, Hanoi",
		Items: []order.ItemRequest{
			{ProductID: 1, VariantID: 10, Quantity: 2},
			{ProductID: 2, VariantID: 20, Quantity: 3},
		},
	})

	require.NoError(t, err)
	require.NotNil(t, created)
	require.Equal(t, order.StatusPending, created.Status)
	require.NotEmpty(t, created.OrderCode)
	require.Len(t, created.LineItems, 2)

	// Conservation: the order total is exactly the sum of frozen line prices.
	var sum int64
	for _, line := range created.LineItems {
		sum += line.UnitPrice * line.Quantity
	}
	require.Equal(t, sum, created.TotalPrice)
	require.Equal(t, int64(900*2+500*3), created.TotalPrice)

	m.orders.AssertExpectations(t)
	m.inventory.AssertExpectations(t)
	m.carts.AssertExpectations(t)
}

func TestOrderService_Create_VoucherDiscountAppliedToTotal(t *testing.T) {
	svc, m := newTestService()

	m.catalog.On("GetPricedVariant", mock.Anything, mock.Anything, int64(1), int64(10)).
		Return(racketVariant(1, 10, 1000, 0), nil).Once()

	m.vouchers.On("Redeem", mock.Anything, mock.Anything, "SUMMER50").
		Return(&voucher.Voucher{ID: 3, VoucherCode: "SUMMER50", DiscountAmount: 300, RemainingQty: 4}, nil).Once()

	m.orders.On("Create", mock.Anything, mock.Anything, mock.AnythingOfType("*order.Order")).Return(nil).Once()
	m.inventory.On("Reserve", mock.Anything, mock.Anything, int64(1), int64(10), int64(1)).Return(nil).Once()
	m.carts.On("Clear", mock.Anything, mock.Anything, int64(7)).Return(nil).Once()

	created, err := svc.Create(context.Background(), order.CreateOrderInput{
		UserID:          7,
		PaymentMethod:   "VNPAY",
		DeliveryAddress: "12 Nguyen Trai, Hanoi",
		VoucherCode:     "SUMMER50",
		Items:           []order.ItemRequest{{ProductID: 1, VariantID: 10, Quantity: 1}},
	})

	require.NoError(t, err)
	// Voucher comes off the order total, not the line item snapshot.
	require.Equal(t, int64(700), created.TotalPrice)
	require.Equal(t, int64(1000), created.LineItems[0].UnitPrice)
	require.NotNil(t, created.VoucherID)
	require.Equal(t, int64(3), *created.VoucherID)

	m.vouchers.AssertExpectations(t)
}

func TestOrderService_Create_InsufficientStock(t *testing.T) {
	svc, m := newTestService()

	m.catalog.On("GetPricedVariant", mock.Anything, mock.Anything, int64(1), int64(10)).
		Return(racketVariant(1, 10, 1000, 0), nil).Once()

	m.orders.On("Create", mock.Anything, mock.Anything, mock.AnythingOfType("*order.Order")).Return(nil).Once()
	m.inventory.On("Reserve", mock.Anything, mock.Anything, int64(1), int64(10), int64(5)).
		Return(inventory.ErrInsufficientStock).Once()

	created, err := svc.Create(context.Background(), order.CreateOrderInput{
		UserID:          7,
		PaymentMethod:   "COD",
		DeliveryAddress: "12 Nguyen Trai, Hanoi",
		Items:           []order.ItemRequest{{ProductID: 1, VariantID: 10, Quantity: 5}},
	})

	require.Error(t, err)
	require.Nil(t, created)
	require.True(t, apperr.IsKind(err, apperr.KindConflict))
	require.Contains(t, err.Error(), "Yonex Astrox 99")

	// The failure aborts the transaction before the cart is touched.
	m.carts.AssertNotCalled(t, "Clear", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_Create_VoucherExhaustedAbortsBeforePersist(t *testing.T) {
	svc, m := newTestService()

	m.catalog.On("GetPricedVariant", mock.Anything, mock.Anything, int64(1), int64(10)).
		Return(racketVariant(1, 10, 1000, 0), nil).Once()
	m.vouchers.On("Redeem", mock.Anything, mock.Anything, "DEAD").
		Return(nil, voucher.ErrVoucherExhausted).Once()

	created, err := svc.Create(context.Background(), order.CreateOrderInput{
		UserID:          7,
		PaymentMethod:   "COD",
		DeliveryAddress: "12 Nguyen Trai, Hanoi",
		VoucherCode:     "DEAD",
		Items:           []order.ItemRequest{{ProductID: 1, VariantID: 10, Quantity: 1}},
	})

	require.Error(t, err)
	require.Nil(t, created)
	require.True(t, apperr.IsKind(err, apperr.KindConflict))

	m.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	m.inventory.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_Create_ReplayReturnsExistingOrder(t *testing.T) {
	svc, m := newTestService()

	existing := &order.Order{
		ID:         42,
		OrderCode:  "txn-abc",
		UserID:     7,
		TotalPrice: 700,
		Status:     order.StatusPending,
	}

	m.orders.On("GetByCode", mock.Anything, mock.Anything, "txn-abc").
		Return(existing, nil).Once()

	created, err := svc.Create(context.Background(), order.CreateOrderInput{
		UserID:          7,
		OrderCode:       "txn-abc",
		PaymentMethod:   "VNPAY",
		DeliveryAddress: "12 Nguyen Trai, Hanoi",
		VoucherCode:     "SUMMER50",
		Items:           []order.ItemRequest{{ProductID: 1, VariantID: 10, Quantity: 1}},
	})

	require.NoError(t, err)
	require.Equal(t, existing, created)

	// A redelivered callback must resolve before the voucher or stock are
	// touched: the first delivery may have consumed the voucher's last use,
	// and re-redeeming would turn an already-satisfied intent into an error.
	m.vouchers.AssertNotCalled(t, "Redeem", mock.Anything, mock.Anything, mock.Anything)
	m.inventory.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.catalog.AssertNotCalled(t, "GetPricedVariant", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.orders.AssertExpectations(t)
}

func TestOrderService_Create_DuplicateCodeRaceReturnsExistingOrder(t *testing.T) {
	svc, m := newTestService()

	existing := &order.Order{
		ID:         42,
		OrderCode:  "txn-abc",
		UserID:     7,
		TotalPrice: 1000,
		Status:     order.StatusPending,
	}

	// First probe misses, then a concurrent delivery wins the insert.
	m.orders.On("GetByCode", mock.Anything, mock.Anything, "txn-abc").
		Return(nil, order.ErrOrderNotFound).Once()
	m.catalog.On("GetPricedVariant", mock.Anything, mock.Anything, int64(1), int64(10)).
		Return(racketVariant(1, 10, 1000, 0), nil).Once()
	m.orders.On("Create", mock.Anything, mock.Anything, mock.AnythingOfType("*order.Order")).
		Return(order.ErrDuplicateOrderCode).Once()
	m.orders.On("GetByCode", mock.Anything, mock.Anything, "txn-abc").
		Return(existing, nil).Once()

	created, err := svc.Create(context.Background(), order.CreateOrderInput{
		UserID:          7,
		OrderCode:       "txn-abc",
		PaymentMethod:   "VNPAY",
		DeliveryAddress: "12 Nguyen Trai, Hanoi",
		Items:           []order.ItemRequest{{ProductID: 1, VariantID: 10, Quantity: 1}},
	})

	require.NoError(t, err)
	require.Equal(t, existing, created)

	// The lost race must not double-reserve.
	m.inventory.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.orders.AssertExpectations(t)
}

func TestOrderService_Create_MissingFields(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Create(context.Background(), order.CreateOrderInput{
		UserID:        7,
		PaymentMethod: "COD",
		Items:         []order.ItemRequest{{ProductID: 1, VariantID: 10, Quantity: 1}},
	})

	require.Error(t, err)
	require.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestOrderService_Cancel_ReleasesInventoryAndVoucher(t *testing.T) {
	svc, m := newTestService()

	voucherID := int64(3)
	pending := &order.Order{
		ID:        42,
		OrderCode: "ord-1",
		UserID:    7,
		VoucherID: &voucherID,
		Status:    order.StatusPending,
		LineItems: []order.LineItem{
			{ProductID: 1, VariantID: 10, Quantity: 2},
			{ProductID: 2, VariantID: 20, Quantity: 1},
		},
	}

	m.orders.On("GetByCode", mock.Anything, mock.Anything, "ord-1").Return(pending, nil).Once()
	m.orders.On("UpdateStatusFrom", mock.Anything, mock.Anything, int64(42), order.StatusPending, order.StatusCancelled).
		Return(nil).Once()
	m.inventory.On("Release", mock.Anything, mock.Anything, int64(1), int64(10), int64(2)).Return(nil).Once()
	m.inventory.On("Release", mock.Anything, mock.Anything, int64(2), int64(20), int64(1)).Return(nil).Once()
	m.vouchers.On("Release", mock.Anything, mock.Anything, int64(3)).Return(nil).Once()

	err := svc.Cancel(context.Background(), "ord-1")

	require.NoError(t, err)
	m.orders.AssertExpectations(t)
	m.inventory.AssertExpectations(t)
	m.vouchers.AssertExpectations(t)
}

func TestOrderService_Cancel_RejectsNonPending(t *testing.T) {
	svc, m := newTestService()

	m.orders.On("GetByCode", mock.Anything, mock.Anything, "ord-1").
		Return(&order.Order{ID: 42, OrderCode: "ord-1", Status: order.StatusDelivering}, nil).Once()

	err := svc.Cancel(context.Background(), "ord-1")

	require.Error(t, err)
	require.True(t, apperr.IsKind(err, apperr.KindConflict))

	m.inventory.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.orders.AssertNotCalled(t, "UpdateStatusFrom", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_Cancel_LostRaceIsConflict(t *testing.T) {
	svc, m := newTestService()

	m.orders.On("GetByCode", mock.Anything, mock.Anything, "ord-1").
		Return(&order.Order{ID: 42, OrderCode: "ord-1", Status: order.StatusPending}, nil).Once()
	m.orders.On("UpdateStatusFrom", mock.Anything, mock.Anything, int64(42), order.StatusPending, order.StatusCancelled).
		Return(order.ErrStatusChanged).Once()

	err := svc.Cancel(context.Background(), "ord-1")

	require.Error(t, err)
	require.True(t, apperr.IsKind(err, apperr.KindConflict))
	m.inventory.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_AdvanceStatus_HappyPath(t *testing.T) {
	svc, m := newTestService()

	m.orders.On("GetByCode", mock.Anything, mock.Anything, "ord-1").
		Return(&order.Order{ID: 42, OrderCode: "ord-1", Status: order.StatusPending}, nil).Once()
	m.orders.On("UpdateStatusFrom", mock.Anything, mock.Anything, int64(42), order.StatusPending, order.StatusDelivering).
		Return(nil).Once()

	err := svc.AdvanceStatus(context.Background(), "ord-1", order.StatusDelivering)

	require.NoError(t, err)
	m.orders.AssertExpectations(t)
	m.inventory.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.inventory.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_AdvanceStatus_RejectsIllegalTransition(t *testing.T) {
	svc, m := newTestService()

	m.orders.On("GetByCode", mock.Anything, mock.Anything, "ord-1").
		Return(&order.Order{ID: 42, OrderCode: "ord-1", Status: order.StatusSucceeded}, nil).Once()

	err := svc.AdvanceStatus(context.Background(), "ord-1", order.StatusDelivering)

	require.Error(t, err)
	require.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestOrderService_AdvanceStatus_RejectsCancelTarget(t *testing.T) {
	svc, _ := newTestService()

	err := svc.AdvanceStatus(context.Background(), "ord-1", order.StatusCancelled)

	require.Error(t, err)
	require.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestOrderService_Delete_SoftDeletesWithoutTouchingInventory(t *testing.T) {
	svc, m := newTestService()

	m.orders.On("GetByCode", mock.Anything, mock.Anything, "ord-1").
		Return(&order.Order{
			ID:        42,
			OrderCode: "ord-1",
			Status:    order.StatusDelivering,
			LineItems: []order.LineItem{{ProductID: 1, VariantID: 10, Quantity: 2}},
		}, nil).Once()
	m.orders.On("UpdateStatusFrom", mock.Anything, mock.Anything, int64(42), order.StatusDelivering, order.StatusDeleted).
		Return(nil).Once()

	err := svc.Delete(context.Background(), "ord-1")

	require.NoError(t, err)
	m.inventory.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_Delete_RejectsTerminal(t *testing.T) {
	svc, m := newTestService()

	m.orders.On("GetByCode", mock.Anything, mock.Anything, "ord-1").
		Return(&order.Order{ID: 42, OrderCode: "ord-1", Status: order.StatusCancelled}, nil).Once()

	err := svc.Delete(context.Background(), "ord-1")

	require.Error(t, err)
	require.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestOrderService_QuoteTotal_AppliesActiveVoucher(t *testing.T) {
	svc, m := newTestService()

	m.catalog.On("GetPricedVariant", mock.Anything, mock.Anything, int64(1), int64(10)).
		Return(racketVariant(1, 10, 1000, 10), nil).Once()
	m.vouchers.On("GetByCode", mock.Anything, mock.Anything, "SUMMER50").
		Return(&voucher.Voucher{
			ID:             3,
			VoucherCode:    "SUMMER50",
			DiscountAmount: 300,
			RemainingQty:   2,
			ValidFrom:      time.Now().Add(-time.Hour),
			ValidTo:        time.Now().Add(time.Hour),
		}, nil).Once()

	total, err := svc.QuoteTotal(context.Background(),
		[]order.ItemRequest{{ProductID: 1, VariantID: 10, Quantity: 2}}, "SUMMER50")

	require.NoError(t, err)
	require.Equal(t, int64(900*2-300), total)
}

func TestOrderService_QuoteTotal_ExpiredVoucherIsConflict(t *testing.T) {
	svc, m := newTestService()

	m.catalog.On("GetPricedVariant", mock.Anything, mock.Anything, int64(1), int64(10)).
		Return(racketVariant(1, 10, 1000, 0), nil).Once()
	m.vouchers.On("GetByCode", mock.Anything, mock.Anything, "OLD").
		Return(&voucher.Voucher{
			ID:             3,
			VoucherCode:    "OLD",
			DiscountAmount: 300,
			RemainingQty:   2,
			ValidFrom:      time.Now().Add(-48 * time.Hour),
			ValidTo:        time.Now().Add(-24 * time.Hour),
		}, nil).Once()

	_, err := svc.QuoteTotal(context.Background(),
		[]order.ItemRequest{{ProductID: 1, VariantID: 10, Quantity: 1}}, "OLD")

	require.Error(t, err)
	require.True(t, apperr.IsKind(err, apperr.KindConflict))
}
