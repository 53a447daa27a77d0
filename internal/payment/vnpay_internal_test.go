package payment

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ngophong010/bamito-backend-sub000/internal/config"
)

func TestBuildPaymentURL_CreateDateUsesGatewayZone(t *testing.T) {
	g := NewGateway(config.VNPayConfig{
		TmnCode:    "BAMITO01",
		HashSecret: "test-hash-secret",
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "https://shop.example.com/api/payment/vnpay/return",
		Locale:     "vn",
		CurrCode:   "VND",
	})
	g.now = func() time.Time {
		return time.Date(2026, time.August, 30, 17, 30, 0, 0, time.UTC)
	}

	paymentURL, err := g.BuildPaymentURL(Intent{OrderCode: "ord-1", Total: 500}, "203.0.113.7")
	require.NoError(t, err)

	parsed, err := url.Parse(paymentURL)
	require.NoError(t, err)

	// 17:30 UTC is 00:30 the next day in GMT+7, independent of the host zone.
	require.Equal(t, "20260831003000", parsed.Query().Get(paramCreateDate))
}
