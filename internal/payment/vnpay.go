// Package payment builds signed VNPay redirect URLs and verifies the signed
// callbacks the gateway sends back. The callback is the only untrusted input
// allowed to drive order creation, so everything here errs on the side of
// rejection.
package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ngophong010/bamito-backend-sub000/internal/config"
	"github.com/ngophong010/bamito-backend-sub000/internal/order"
)

const (
	paramVersion      = "vnp_Version"
	paramCommand      = "vnp_Command"
	paramTmnCode      = "vnp_TmnCode"
	paramLocale       = "vnp_Locale"
	paramCurrCode     = "vnp_CurrCode"
	paramTxnRef       = "vnp_TxnRef"
	paramOrderInfo    = "vnp_OrderInfo"
	paramAmount       = "vnp_Amount"
	paramReturnURL    = "vnp_ReturnUrl"
	paramIPAddr       = "vnp_IpAddr"
	paramCreateDate   = "vnp_CreateDate"
	paramResponseCode = "vnp_ResponseCode"
	paramSecureHash   = "vnp_SecureHash"
	paramSecureType   = "vnp_SecureHashType"

	version        = "2.1.0"
	commandPay     = "pay"
	createDateForm = "20060102150405"
	responseOK     = "00"
)

// The gateway reads vnp_CreateDate as GMT+7 no matter where the caller runs.
var gatewayZone = time.FixedZone("ICT", 7*60*60)

var (
	ErrInvalidSignature = errors.New("callback signature mismatch")
	ErrAmountMismatch   = errors.New("callback amount does not match order intent")
	ErrPaymentDeclined  = errors.New("payment declined by gateway")
	ErrMalformedIntent  = errors.New("malformed order intent payload")
)

// Intent is the prospective order carried opaquely through the gateway
// round-trip, so the callback is self-describing and no server-side pending
// state is needed between redirect and callback. OrderCode doubles as the
// gateway transaction ref and keys the eventually-created order.
type Intent struct {
	OrderCode       string              `json:"order_code"`
	UserID          int64               `json:"user_id"`
	PaymentMethod   string              `json:"payment_method"`
	DeliveryAddress string              `json:"delivery_address"`
	VoucherCode     string              `json:"voucher_code,omitempty"`
	Items           []order.ItemRequest `json:"items"`
	Total           int64               `json:"total"`
}

type Gateway struct {
	cfg config.VNPayConfig
	now func() time.Time
}

func NewGateway(cfg config.VNPayConfig) *Gateway {
	return &Gateway{cfg: cfg, now: time.Now}
}

// BuildPaymentURL serializes the intent into the gateway parameter set, signs
// the canonically sorted parameter string with the shared secret, and returns
// the full redirect URL. The signature is computed last, after every other
// field is fixed.
func (g *Gateway) BuildPaymentURL(intent Intent, clientIP string) (string, error) {
	if intent.OrderCode == "" {
		return "", fmt.Errorf("payment: intent is missing an order code")
	}
	if intent.Total < 0 {
		return "", fmt.Errorf("payment: intent total cannot be negative")
	}

	payload, err := json.Marshal(intent)
	if err != nil {
		return "", fmt.Errorf("payment: failed to marshal order intent: %w", err)
	}

	params := map[string]string{
		paramVersion:    version,
		paramCommand:    commandPay,
		paramTmnCode:    g.cfg.TmnCode,
		paramLocale:     g.cfg.Locale,
		paramCurrCode:   g.cfg.CurrCode,
		paramTxnRef:     intent.OrderCode,
		paramOrderInfo:  base64.RawURLEncoding.EncodeToString(payload),
		paramAmount:     strconv.FormatInt(intent.Total*100, 10),
		paramReturnURL:  g.cfg.ReturnURL,
		paramIPAddr:     clientIP,
		paramCreateDate: g.now().In(gatewayZone).Format(createDateForm),
	}

	signed := canonicalQuery(params)
	sig := g.sign(signed)

	return g.cfg.PayURL + "?" + signed + "&" + paramSecureHash + "=" + sig, nil
}

// VerifyCallback authenticates an inbound gateway callback and extracts the
// order intent it carries. Verification order matters: signature first (a
// mismatch is a security event and nothing past it may be trusted), then the
// gateway's own response code, then the amount against the intent's total.
func (g *Gateway) VerifyCallback(values url.Values) (*Intent, error) {
	received := values.Get(paramSecureHash)
	if received == "" {
		return nil, ErrInvalidSignature
	}

	params := make(map[string]string)
	for key := range values {
		if key == paramSecureHash || key == paramSecureType {
			continue
		}
		params[key] = values.Get(key)
	}

	expected := g.sign(canonicalQuery(params))
	if !hmac.Equal([]byte(strings.ToLower(received)), []byte(expected)) {
		return nil, ErrInvalidSignature
	}

	// Only an explicit "00" counts as approved; a missing verdict is a
	// rejection, not a pass.
	if code := values.Get(paramResponseCode); code != responseOK {
		return nil, fmt.Errorf("%w (response code %q)", ErrPaymentDeclined, code)
	}

	payload, err := base64.RawURLEncoding.DecodeString(values.Get(paramOrderInfo))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedIntent, err)
	}

	var intent Intent
	if err := json.Unmarshal(payload, &intent); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedIntent, err)
	}

	if intent.OrderCode == "" || intent.OrderCode != values.Get(paramTxnRef) {
		return nil, fmt.Errorf("%w: transaction ref does not match intent", ErrMalformedIntent)
	}

	// The signature covers the amount, but an explicit equality check against
	// the intent's total catches any configuration where it would not.
	amount, err := strconv.ParseInt(values.Get(paramAmount), 10, 64)
	if err != nil || amount%100 != 0 {
		return nil, ErrAmountMismatch
	}
	if amount/100 != intent.Total {
		return nil, ErrAmountMismatch
	}

	return &intent, nil
}

// canonicalQuery sorts parameters by key and URL-encodes each value, the exact
// string the signature is computed over on both legs.
func canonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key, value := range params {
		if value == "" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, key := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(key)
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(params[key]))
	}
	return sb.String()
}

func (g *Gateway) sign(data string) string {
	mac := hmac.New(sha512.New, []byte(g.cfg.HashSecret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}
