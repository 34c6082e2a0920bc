// Package momo is the QR wallet gateway. Requests and callbacks are signed
// with HMAC-SHA256 over the sorted field list the provider documents.
package momo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/hotel-reservations/internal/config"
	"github.com/robertarktes/hotel-reservations/internal/domain"
	"github.com/robertarktes/hotel-reservations/internal/payment"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	requestType = "captureWallet"
	// ResultSuccess is the resultCode of a paid order.
	ResultSuccess = "0"
)

// callbackFields are the signed fields of an IPN or redirect, besides accessKey.
var callbackFields = []string{
	"amount", "extraData", "message", "orderId", "orderInfo", "orderType",
	"partnerCode", "payType", "requestId", "responseTime", "resultCode", "transId",
}

type Client struct {
	cfg  config.MoMoConfig
	http *http.Client
}

func New(cfg config.MoMoConfig, timeout time.Duration) *Client {
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *Client) Provider() payment.Provider { return payment.ProviderMoMo }

type createRequest struct {
	PartnerCode string `json:"partnerCode"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IpnURL      string `json:"ipnUrl"`
	RequestType string `json:"requestType"`
	ExtraData   string `json:"extraData"`
	Lang        string `json:"lang"`
	Signature   string `json:"signature"`
}

type createResponse struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
	PayURL     string `json:"payUrl"`
}

// PayURL creates a wallet order for the booking and returns its pay URL.
func (c *Client) PayURL(ctx context.Context, co payment.Checkout) (string, error) {
	req := createRequest{
		PartnerCode: c.cfg.PartnerCode,
		RequestID:   uuid.NewString(),
		Amount:      co.Amount.IntPart(),
		OrderID:     co.BookingCode,
		OrderInfo:   co.OrderInfo,
		RedirectURL: c.cfg.RedirectURL,
		IpnURL:      c.cfg.IPNURL,
		RequestType: requestType,
		Lang:        "vi",
	}
	req.Signature = payment.SignSHA256(c.cfg.SecretKey, payment.Canonical(map[string]string{
		"accessKey":   c.cfg.AccessKey,
		"amount":      fmt.Sprint(req.Amount),
		"extraData":   req.ExtraData,
		"ipnUrl":      req.IpnURL,
		"orderId":     req.OrderID,
		"orderInfo":   req.OrderInfo,
		"partnerCode": req.PartnerCode,
		"redirectUrl": req.RedirectURL,
		"requestId":   req.RequestID,
		"requestType": req.RequestType,
	}, nil))

	body, err := json.Marshal(req)
	if err != nil {
		return "", errors.Wrap(err, "encode momo request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build momo request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", errors.Wrap(err, "call momo")
	}
	defer resp.Body.Close()

	var out createResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrapf(err, "decode momo response, status %d", resp.StatusCode)
	}
	if fmt.Sprint(out.ResultCode) != ResultSuccess || out.PayURL == "" {
		return "", domain.NewUnavailable("payment provider rejected the order", errors.Newf("momo result %d: %s", out.ResultCode, out.Message))
	}
	return out.PayURL, nil
}

// ParseCallback verifies an IPN body or redirect query. The access key is
// part of the signed string but never sent by the provider.
func (c *Client) ParseCallback(params map[string]string) (*payment.Callback, error) {
	if !payment.SignatureMatches(c.Sign(params), params["signature"]) {
		return nil, payment.ErrBadSignature
	}
	if params["partnerCode"] != c.cfg.PartnerCode {
		return nil, payment.ErrBadSignature
	}

	amount, err := decimal.NewFromString(params["amount"])
	if err != nil {
		return nil, domain.NewValidation("invalid payment callback", "amount is not a number")
	}
	return &payment.Callback{
		Provider:      payment.ProviderMoMo,
		BookingCode:   params["orderId"],
		Amount:        amount,
		ResultCode:    params["resultCode"],
		Success:       params["resultCode"] == ResultSuccess,
		TransactionID: params["transId"],
	}, nil
}

// ParseIPN flattens the JSON body of an IPN into string params. Numbers keep
// their literal form so the signature can be recomputed.
func ParseIPN(body []byte) (map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, domain.NewValidation("invalid payment callback", "body is not a JSON object")
	}
	params := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			params[k] = ""
			continue
		}
		params[k] = fmt.Sprint(v)
	}
	return params, nil
}

// Sign computes the signature the provider attaches to callback params.
func (c *Client) Sign(params map[string]string) string {
	signed := map[string]string{"accessKey": c.cfg.AccessKey}
	for _, k := range callbackFields {
		signed[k] = params[k]
	}
	return payment.SignSHA256(c.cfg.SecretKey, payment.Canonical(signed, nil))
}
