// Package idempotency replays the first response of a request retried with
// the same Idempotency-Key.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/cockroachdb/errors"
	redisadapter "github.com/robertarktes/hotel-reservations/internal/adapters/redis"
	"github.com/robertarktes/hotel-reservations/internal/domain"
)

const MinKeyLength = 16

// PendingTTL bounds how long an unfinished first request blocks retries.
const PendingTTL = time.Minute

type Backend interface {
	Get(ctx context.Context, key string) (*redisadapter.IdempResponse, error)
	Set(ctx context.Context, key string, resp redisadapter.IdempResponse, ttl time.Duration) error
	Reserve(ctx context.Context, key, fingerprint string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

type Idempotency struct {
	backend Backend
	ttl     time.Duration
}

func NewIdempotency(backend Backend, ttl time.Duration) *Idempotency {
	return &Idempotency{backend: backend, ttl: ttl}
}

type Response struct {
	Status int
	Result []byte
}

// Scope namespaces a client key by caller so two callers never share one.
func Scope(callerID, key string) string {
	return callerID + ":" + key
}

func Fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Begin claims key for this request. It returns nil when the caller should
// serve the request and then call Finish or Abandon, or the stored response
// to replay. A key still held by an unfinished request, or reused with a
// different body, is a conflict.
func (i *Idempotency) Begin(ctx context.Context, key string, body []byte) (*Response, error) {
	fp := Fingerprint(body)
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := i.backend.Reserve(ctx, key, fp, PendingTTL)
		if err != nil {
			return nil, errors.Wrap(err, "reserve idempotency key")
		}
		if ok {
			return nil, nil
		}
		stored, err := i.backend.Get(ctx, key)
		if err != nil {
			return nil, errors.Wrap(err, "load idempotency record")
		}
		if stored == nil {
			// The holder expired or gave up between the two calls.
			continue
		}
		if stored.Fingerprint != fp {
			return nil, domain.NewConflict("Idempotency-Key was already used with a different request")
		}
		if stored.Pending {
			return nil, domain.NewConflict("a request with this Idempotency-Key is still in progress")
		}
		return &Response{Status: stored.Status, Result: stored.Result}, nil
	}
	return nil, domain.NewConflict("a request with this Idempotency-Key is still in progress")
}

// Finish replaces the pending marker with the response to replay.
func (i *Idempotency) Finish(ctx context.Context, key string, body []byte, resp Response) error {
	return i.backend.Set(ctx, key, redisadapter.IdempResponse{
		Status:      resp.Status,
		Result:      resp.Result,
		Fingerprint: Fingerprint(body),
	}, i.ttl)
}

// Abandon releases key so the request can be retried.
func (i *Idempotency) Abandon(ctx context.Context, key string) error {
	return i.backend.Delete(ctx, key)
}
