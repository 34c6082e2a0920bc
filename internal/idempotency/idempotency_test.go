package idempotency_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	redisadapter "github.com/robertarktes/hotel-reservations/internal/adapters/redis"
	"github.com/robertarktes/hotel-reservations/internal/domain"
	"github.com/robertarktes/hotel-reservations/internal/idempotency"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapBackend struct {
	mu   sync.Mutex
	data map[string]redisadapter.IdempResponse
	ttls map[string]time.Duration
}

func newMapBackend() *mapBackend {
	return &mapBackend{data: map[string]redisadapter.IdempResponse{}, ttls: map[string]time.Duration{}}
}

func (m *mapBackend) Get(ctx context.Context, key string) (*redisadapter.IdempResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return &resp, nil
}

func (m *mapBackend) Set(ctx context.Context, key string, resp redisadapter.IdempResponse, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = resp
	m.ttls[key] = ttl
	return nil
}

func (m *mapBackend) Reserve(ctx context.Context, key, fingerprint string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = redisadapter.IdempResponse{Fingerprint: fingerprint, Pending: true}
	m.ttls[key] = ttl
	return true, nil
}

func (m *mapBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func TestIdempotency_ReplaysSameRequest(t *testing.T) {
	backend := newMapBackend()
	idemp := idempotency.NewIdempotency(backend, time.Hour)
	key := idempotency.Scope("guest-1", "create-booking-0001")
	body := []byte(`{"hotel_id":"h"}`)

	resp, err := idemp.Begin(context.Background(), key, body)
	require.NoError(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, idempotency.PendingTTL, backend.ttls[key])

	require.NoError(t, idemp.Finish(context.Background(), key, body, idempotency.Response{Status: 201, Result: []byte(`{"message":"ok"}`)}))
	assert.Equal(t, time.Hour, backend.ttls[key])

	resp, err = idemp.Begin(context.Background(), key, body)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 201, resp.Status)
	assert.JSONEq(t, `{"message":"ok"}`, string(resp.Result))
}

func TestIdempotency_RetryWhileFirstRequestRuns(t *testing.T) {
	idemp := idempotency.NewIdempotency(newMapBackend(), time.Hour)
	key := idempotency.Scope("guest-1", "create-booking-0001")
	body := []byte(`{"a":1}`)

	resp, err := idemp.Begin(context.Background(), key, body)
	require.NoError(t, err)
	require.Nil(t, resp)

	_, err = idemp.Begin(context.Background(), key, body)
	assert.True(t, errors.Is(err, domain.ErrConflict))

	require.NoError(t, idemp.Abandon(context.Background(), key))
	resp, err = idemp.Begin(context.Background(), key, body)
	require.NoError(t, err)
	assert.Nil(t, resp, "an abandoned key can be claimed again")
}

func TestIdempotency_ConcurrentBeginsClaimOnce(t *testing.T) {
	idemp := idempotency.NewIdempotency(newMapBackend(), time.Hour)
	key := idempotency.Scope("guest-1", "create-booking-0001")

	var wg sync.WaitGroup
	var mu sync.Mutex
	claimed := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := idemp.Begin(context.Background(), key, []byte(`{}`))
			if err == nil && resp == nil {
				mu.Lock()
				claimed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, claimed)
}

func TestIdempotency_KeyReusedWithOtherBody(t *testing.T) {
	idemp := idempotency.NewIdempotency(newMapBackend(), time.Hour)
	key := idempotency.Scope("guest-1", "create-booking-0001")
	require.NoError(t, idemp.Finish(context.Background(), key, []byte(`{"a":1}`), idempotency.Response{Status: 201}))

	_, err := idemp.Begin(context.Background(), key, []byte(`{"a":2}`))
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestScope_SeparatesCallers(t *testing.T) {
	assert.NotEqual(t, idempotency.Scope("a", "k"), idempotency.Scope("b", "k"))
}
