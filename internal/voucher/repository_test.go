package voucher_test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngophong010/bamito-backend-sub000/internal/voucher"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		os.Exit(m.Run())
	}

	var err error
	pool, err = pgxpool.New(context.Background(), dsn)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	exitCode := m.Run()

	pool.Close()
	os.Exit(exitCode)
}

func setup(t *testing.T) voucher.Repository {
	if pool == nil {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()

	_, err := pool.Exec(ctx, `TRUNCATE TABLE orders, vouchers RESTART IDENTITY CASCADE`)
	require.NoError(t, err, "Failed to truncate tables")

	now := time.Now()
	_, err = pool.Exec(ctx, `
		INSERT INTO vouchers (voucher_code, discount_amount, remaining_qty, valid_from, valid_to)
		VALUES
			('SUMMER50', 50000, 2, $1, $2),
			('LASTONE', 10000, 1, $1, $2),
			('EXPIRED', 10000, 5, $3, $4),
			('DRAINED', 10000, 0, $1, $2)
	`, now.Add(-time.Hour), now.Add(time.Hour), now.Add(-48*time.Hour), now.Add(-24*time.Hour))
	require.NoError(t, err, "Failed to insert fixtures")

	return voucher.NewRepository()
}

func TestVoucherRepository_RedeemDecrementsOnce(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	v, err := repo.Redeem(ctx, pool, "SUMMER50")
	require.NoError(t, err)
	assert.Equal(t, int64(50000), v.DiscountAmount)
	assert.Equal(t, int64(1), v.RemainingQty)
}

func TestVoucherRepository_RedeemLastUseThenExhausted(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	v, err := repo.Redeem(ctx, pool, "LASTONE")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v.RemainingQty)

	_, err = repo.Redeem(ctx, pool, "LASTONE")
	require.ErrorIs(t, err, voucher.ErrVoucherExhausted)
}

func TestVoucherRepository_RedeemOutsideWindow(t *testing.T) {
	repo := setup(t)

	_, err := repo.Redeem(context.Background(), pool, "EXPIRED")
	require.ErrorIs(t, err, voucher.ErrVoucherNotActive)
}

func TestVoucherRepository_RedeemDrained(t *testing.T) {
	repo := setup(t)

	_, err := repo.Redeem(context.Background(), pool, "DRAINED")
	require.ErrorIs(t, err, voucher.ErrVoucherExhausted)
}

func TestVoucherRepository_RedeemUnknownCode(t *testing.T) {
	repo := setup(t)

	_, err := repo.Redeem(context.Background(), pool, "NOPE")
	require.ErrorIs(t, err, voucher.ErrVoucherNotFound)
}

func TestVoucherRepository_ReleaseRestoresUse(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	v, err := repo.Redeem(ctx, pool, "SUMMER50")
	require.NoError(t, err)

	require.NoError(t, repo.Release(ctx, pool, v.ID))

	restored, err := repo.GetByCode(ctx, pool, "SUMMER50")
	require.NoError(t, err)
	assert.Equal(t, int64(2), restored.RemainingQty)
}
