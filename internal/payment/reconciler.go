// Package payment turns signed provider callbacks into booking status
// changes and starts payments by sending the payer to a provider.
package payment

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/hotel-reservations/internal/booking"
	"github.com/robertarktes/hotel-reservations/internal/domain"
	"github.com/robertarktes/hotel-reservations/internal/observability"
	"github.com/shopspring/decimal"
)

type Provider string

const (
	ProviderMoMo  Provider = "MOMO"
	ProviderVNPay Provider = "VNPAY"
)

// Outcome of a processed callback, also used as a metric label.
type Outcome string

const (
	OutcomeConfirmed        Outcome = "confirmed"
	OutcomeExpired          Outcome = "expired"
	OutcomeAlreadyConfirmed Outcome = "already_confirmed"
	OutcomeIgnored          Outcome = "ignored"
	OutcomeBadSignature     Outcome = "bad_signature"
	OutcomeAmountMismatch   Outcome = "amount_mismatch"
	OutcomeNotFound         Outcome = "not_found"
	OutcomeError            Outcome = "error"
)

var (
	ErrBadSignature   = &domain.Error{Kind: domain.KindForbidden, Message: "invalid payment signature"}
	ErrAmountMismatch = &domain.Error{Kind: domain.KindForbidden, Message: "paid amount does not match booking total"}
)

// Checkout is what a provider needs to build a payment request.
type Checkout struct {
	BookingCode string
	Amount      decimal.Decimal
	OrderInfo   string
	ClientIP    string
}

// Callback holds the fields of a verified provider notification.
type Callback struct {
	Provider      Provider
	BookingCode   string
	Amount        decimal.Decimal
	ResultCode    string
	Success       bool
	TransactionID string
}

type Gateway interface {
	Provider() Provider
	// PayURL signs an outbound request and returns where to send the payer.
	PayURL(ctx context.Context, co Checkout) (string, error)
	// ParseCallback verifies the signature over params and returns
	// ErrBadSignature when it does not match.
	ParseCallback(params map[string]string) (*Callback, error)
}

type AuditRecord struct {
	Provider    Provider
	BookingCode string
	Params      map[string]string
	Outcome     Outcome
	Error       string
	At          time.Time
}

type AuditLog interface {
	RecordCallback(ctx context.Context, rec AuditRecord) error
}

type Result struct {
	Booking *domain.Booking
	Outcome Outcome
}

type Reconciler struct {
	store    domain.Store
	gateways map[Provider]Gateway
	audit    AuditLog
	logger   observability.Logger
	timeout  time.Duration
	now      func() time.Time
}

type Option func(*Reconciler)

func WithAudit(a AuditLog) Option {
	return func(r *Reconciler) { r.audit = a }
}

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithTimeout bounds every outbound provider call.
func WithTimeout(d time.Duration) Option {
	return func(r *Reconciler) { r.timeout = d }
}

func NewReconciler(store domain.Store, logger observability.Logger, gateways []Gateway, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:    store,
		gateways: make(map[Provider]Gateway, len(gateways)),
		logger:   logger,
		timeout:  10 * time.Second,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, g := range gateways {
		r.gateways[g.Provider()] = g
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ChargeAmount is what a provider is asked to collect for a booking total.
// Both providers settle in whole VND.
func ChargeAmount(total decimal.Decimal) decimal.Decimal {
	return total.Round(0)
}

func (r *Reconciler) gateway(p Provider) (Gateway, error) {
	g, ok := r.gateways[p]
	if !ok {
		return nil, domain.NewValidation("invalid payment provider", "unsupported provider "+string(p))
	}
	return g, nil
}

// Reconcile verifies a provider callback and applies it to the booking it
// names. Verification and the status change run in one transaction that
// locks the booking by code. A CONFIRMED booking makes the callback a no-op.
func (r *Reconciler) Reconcile(ctx context.Context, provider Provider, params map[string]string) (*Result, error) {
	g, err := r.gateway(provider)
	if err != nil {
		return nil, err
	}

	cb, err := g.ParseCallback(params)
	if err != nil {
		r.finish(ctx, provider, "", params, nil, err)
		return nil, err
	}

	res := &Result{}
	err = r.store.WithTx(ctx, func(tx domain.Tx) error {
		b, err := tx.GetBookingByCode(ctx, cb.BookingCode)
		if err != nil {
			return err
		}
		if b.Deleted {
			return domain.NewNotFound("booking %s not found", cb.BookingCode)
		}
		if !cb.Amount.Equal(ChargeAmount(b.TotalPrice)) {
			return ErrAmountMismatch
		}
		res.Booking = b

		if b.Status == domain.StatusConfirmed {
			res.Outcome = OutcomeAlreadyConfirmed
			return nil
		}
		to, outcome := domain.StatusExpired, OutcomeExpired
		if cb.Success {
			to, outcome = domain.StatusConfirmed, OutcomeConfirmed
		}
		if !b.Status.CanTransitionTo(to) {
			res.Outcome = OutcomeIgnored
			return nil
		}
		if err := booking.Transition(ctx, tx, b, to, r.now()); err != nil {
			return err
		}
		res.Outcome = outcome
		return nil
	})
	if err != nil {
		r.finish(ctx, provider, cb.BookingCode, params, nil, err)
		return nil, err
	}
	r.finish(ctx, provider, cb.BookingCode, params, res, nil)
	return res, nil
}

func (r *Reconciler) finish(ctx context.Context, provider Provider, code string, params map[string]string, res *Result, err error) {
	outcome := OutcomeError
	switch {
	case res != nil:
		outcome = res.Outcome
	case errors.Is(err, ErrBadSignature):
		outcome = OutcomeBadSignature
	case errors.Is(err, ErrAmountMismatch):
		outcome = OutcomeAmountMismatch
	case errors.Is(err, domain.ErrNotFound):
		outcome = OutcomeNotFound
	}
	observability.PaymentCallbacks.WithLabelValues(string(provider), string(outcome)).Inc()

	log := r.logger.WithField("provider", provider).WithField("code", code).WithField("outcome", outcome)
	switch outcome {
	case OutcomeConfirmed, OutcomeExpired, OutcomeAlreadyConfirmed:
		log.Info("payment callback processed")
	case OutcomeIgnored:
		log.WithField("status", res.Booking.Status).Warn("payment callback ignored for booking in final state")
	default:
		log.WithError(err).Warn("payment callback rejected")
	}

	if r.audit == nil {
		return
	}
	rec := AuditRecord{Provider: provider, BookingCode: code, Params: params, Outcome: outcome, At: r.now()}
	if err != nil {
		rec.Error = err.Error()
	}
	if aerr := r.audit.RecordCallback(context.WithoutCancel(ctx), rec); aerr != nil {
		r.logger.WithError(aerr).Error("failed to write payment audit record")
	}
}

// Initiate asks the provider for a pay URL for the booking with code and
// moves it from PENDING to PAYING. Provider failures leave the booking as is.
func (r *Reconciler) Initiate(ctx context.Context, code string, provider Provider, clientIP string, actor domain.Actor) (string, error) {
	g, err := r.gateway(provider)
	if err != nil {
		return "", err
	}

	var b *domain.Booking
	err = r.store.WithTx(ctx, func(tx domain.Tx) error {
		found, err := r.payable(ctx, tx, code, actor)
		if err != nil {
			return err
		}
		b = found
		return nil
	})
	if err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	url, err := g.PayURL(callCtx, Checkout{
		BookingCode: b.Code,
		Amount:      ChargeAmount(b.TotalPrice),
		OrderInfo:   "Payment for booking " + b.Code,
		ClientIP:    clientIP,
	})
	if err != nil {
		if domain.KindOf(err) != domain.KindUnexpected {
			return "", err
		}
		return "", domain.NewUnavailable("payment provider is unavailable, try again later", err)
	}

	err = r.store.WithTx(ctx, func(tx domain.Tx) error {
		current, err := r.payable(ctx, tx, code, actor)
		if err != nil {
			return err
		}
		if current.Status == domain.StatusPaying {
			return nil
		}
		return booking.Transition(ctx, tx, current, domain.StatusPaying, r.now())
	})
	if err != nil {
		return "", err
	}
	r.logger.WithField("code", code).WithField("provider", provider).Info("payment initiated")
	return url, nil
}

func (r *Reconciler) payable(ctx context.Context, tx domain.Tx, code string, actor domain.Actor) (*domain.Booking, error) {
	b, err := tx.GetBookingByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if b.Deleted {
		return nil, domain.NewNotFound("booking %s not found", code)
	}
	if !actor.IsStaff() && b.GuestID != actor.ID {
		return nil, domain.NewForbidden("booking %s belongs to another guest", code)
	}
	if b.Status != domain.StatusPending && b.Status != domain.StatusPaying {
		return nil, domain.NewConflict("booking "+code+" is "+string(b.Status)+" and cannot be paid", b.ID.String())
	}
	return b, nil
}
