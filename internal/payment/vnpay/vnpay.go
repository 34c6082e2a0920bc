// Package vnpay is the redirect gateway. The pay URL is built and signed
// locally with HMAC-SHA512; the bank calls back with the same scheme.
package vnpay

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/hotel-reservations/internal/config"
	"github.com/robertarktes/hotel-reservations/internal/domain"
	"github.com/robertarktes/hotel-reservations/internal/payment"
	"github.com/shopspring/decimal"
)

const (
	version       = "2.1.0"
	dateLayout    = "20060102150405"
	payWindow     = 15 * time.Minute
	hashParam     = "vnp_SecureHash"
	hashTypeParam = "vnp_SecureHashType"
	// ResponseSuccess is the vnp_ResponseCode of a paid order.
	ResponseSuccess = "00"
)

var (
	hundred = decimal.NewFromInt(100)
	// Provider timestamps are in Indochina time.
	ict = time.FixedZone("GMT+7", 7*60*60)
)

type Client struct {
	cfg config.VNPayConfig
	now func() time.Time
}

func New(cfg config.VNPayConfig) *Client {
	return &Client{cfg: cfg, now: time.Now}
}

func (c *Client) Provider() payment.Provider { return payment.ProviderVNPay }

// PayURL signs the order parameters into the provider's pay URL. No network
// call is made.
func (c *Client) PayURL(ctx context.Context, co payment.Checkout) (string, error) {
	if c.cfg.PayURL == "" {
		return "", errors.New("vnpay pay url is not configured")
	}
	created := c.now().In(ict)
	ip := co.ClientIP
	if ip == "" {
		ip = "127.0.0.1"
	}
	params := map[string]string{
		"vnp_Version":    version,
		"vnp_Command":    "pay",
		"vnp_TmnCode":    c.cfg.TmnCode,
		"vnp_Amount":     co.Amount.Mul(hundred).StringFixed(0),
		"vnp_CurrCode":   "VND",
		"vnp_TxnRef":     co.BookingCode,
		"vnp_OrderInfo":  co.OrderInfo,
		"vnp_OrderType":  "other",
		"vnp_Locale":     "vn",
		"vnp_ReturnUrl":  c.cfg.ReturnURL,
		"vnp_IpAddr":     ip,
		"vnp_CreateDate": created.Format(dateLayout),
		"vnp_ExpireDate": created.Add(payWindow).Format(dateLayout),
	}
	query := payment.Canonical(signable(params), url.QueryEscape)
	return c.cfg.PayURL + "?" + query + "&" + hashParam + "=" + payment.SignSHA512(c.cfg.HashSecret, query), nil
}

// Sign computes vnp_SecureHash over every non empty vnp_ parameter except
// the hash fields.
func (c *Client) Sign(params map[string]string) string {
	return payment.SignSHA512(c.cfg.HashSecret, payment.Canonical(signable(params), url.QueryEscape))
}

func signable(params map[string]string) map[string]string {
	signed := make(map[string]string, len(params))
	for k, v := range params {
		if !strings.HasPrefix(k, "vnp_") || k == hashParam || k == hashTypeParam || v == "" {
			continue
		}
		signed[k] = v
	}
	return signed
}

// ParseCallback verifies an IPN or return URL query. vnp_Amount carries the
// amount in hundredths.
func (c *Client) ParseCallback(params map[string]string) (*payment.Callback, error) {
	if !payment.SignatureMatches(c.Sign(params), params[hashParam]) {
		return nil, payment.ErrBadSignature
	}
	if params["vnp_TmnCode"] != c.cfg.TmnCode {
		return nil, payment.ErrBadSignature
	}

	raw, err := decimal.NewFromString(params["vnp_Amount"])
	if err != nil {
		return nil, domain.NewValidation("invalid payment callback", "vnp_Amount is not a number")
	}
	code := params["vnp_ResponseCode"]
	success := code == ResponseSuccess
	if status, ok := params["vnp_TransactionStatus"]; ok {
		success = success && status == ResponseSuccess
	}
	return &payment.Callback{
		Provider:      payment.ProviderVNPay,
		BookingCode:   params["vnp_TxnRef"],
		Amount:        raw.Div(hundred),
		ResultCode:    code,
		Success:       success,
		TransactionID: params["vnp_TransactionNo"],
	}, nil
}

// Ack is the JSON body the provider expects from the IPN endpoint.
type Ack struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// Acknowledge maps a reconcile result to the provider's IPN answer.
func Acknowledge(res *payment.Result, err error) Ack {
	switch {
	case err == nil && res.Outcome == payment.OutcomeConfirmed, err == nil && res.Outcome == payment.OutcomeExpired:
		return Ack{RspCode: "00", Message: "Confirm Success"}
	case err == nil:
		return Ack{RspCode: "02", Message: "Order already confirmed"}
	case errors.Is(err, payment.ErrBadSignature):
		return Ack{RspCode: "97", Message: "Invalid signature"}
	case errors.Is(err, domain.ErrNotFound):
		return Ack{RspCode: "01", Message: "Order not found"}
	case errors.Is(err, payment.ErrAmountMismatch):
		return Ack{RspCode: "04", Message: "Invalid amount"}
	default:
		return Ack{RspCode: "99", Message: "Unknown error"}
	}
}
