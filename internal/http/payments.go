package http

import (
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/robertarktes/hotel-reservations/internal/domain"
	"github.com/robertarktes/hotel-reservations/internal/payment"
	"github.com/robertarktes/hotel-reservations/internal/payment/momo"
	"github.com/robertarktes/hotel-reservations/internal/payment/vnpay"
)

const maxCallbackBody = 64 << 10

func (h *Handlers) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BookingCode string `json:"booking_code"`
		Provider    string `json:"provider"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.BookingCode == "" {
		writeError(w, r, h.logger, domain.NewValidation("invalid payment request", "booking_code is required"))
		return
	}
	payURL, err := h.payments.Initiate(r.Context(), req.BookingCode, payment.Provider(req.Provider), clientIP(r), ActorFrom(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, "payment initiated", map[string]string{"pay_url": payURL})
}

// MoMoIPN receives the server to server notification. The provider only
// needs 204 on acceptance.
func (h *Handlers) MoMoIPN(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		writeError(w, r, h.logger, domain.NewValidation("invalid payment callback", "unreadable body"))
		return
	}
	params, err := momo.ParseIPN(body)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if _, err := h.payments.Reconcile(r.Context(), payment.ProviderMoMo, params); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) MoMoReturn(w http.ResponseWriter, r *http.Request) {
	h.paymentReturn(w, r, payment.ProviderMoMo)
}

func (h *Handlers) VNPayIPN(w http.ResponseWriter, r *http.Request) {
	res, err := h.payments.Reconcile(r.Context(), payment.ProviderVNPay, payment.FromQuery(r.URL.Query()))
	writeJSON(w, http.StatusOK, vnpay.Acknowledge(res, err))
}

func (h *Handlers) VNPayReturn(w http.ResponseWriter, r *http.Request) {
	h.paymentReturn(w, r, payment.ProviderVNPay)
}

// paymentReturn verifies the browser redirect the same way as the IPN and
// always lands the payer on the result page, even when processing fails.
func (h *Handlers) paymentReturn(w http.ResponseWriter, r *http.Request, provider payment.Provider) {
	success := false
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.WithField("provider", provider).WithField("panic", rec).Error("payment return panicked")
			success = false
		}
		http.Redirect(w, r, h.resultURL(success), http.StatusFound)
	}()

	res, err := h.payments.Reconcile(r.Context(), provider, payment.FromQuery(r.URL.Query()))
	if err != nil {
		return
	}
	success = res.Outcome == payment.OutcomeConfirmed || res.Outcome == payment.OutcomeAlreadyConfirmed
}

func (h *Handlers) resultURL(success bool) string {
	u, err := url.Parse(h.cfg.PaymentResultURL)
	if err != nil {
		return h.cfg.PaymentResultURL
	}
	q := u.Query()
	q.Set("success", strconv.FormatBool(success))
	u.RawQuery = q.Encode()
	return u.String()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
