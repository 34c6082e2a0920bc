package payment_test

import (
	"net/url"
	"testing"

	"github.com/robertarktes/hotel-reservations/internal/payment"
	"github.com/stretchr/testify/assert"
)

func TestCanonical_SortsByKey(t *testing.T) {
	params := map[string]string{"orderId": "BK-1", "amount": "1000", "extraData": ""}
	assert.Equal(t, "amount=1000&extraData=&orderId=BK-1", payment.Canonical(params, nil))

	escaped := payment.Canonical(map[string]string{"vnp_OrderInfo": "Pay BK-1/2"}, url.QueryEscape)
	assert.Equal(t, "vnp_OrderInfo=Pay+BK-1%2F2", escaped)
}

func TestSign_KnownVectors(t *testing.T) {
	msg := "The quick brown fox jumps over the lazy dog"
	assert.Equal(t, "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8", payment.SignSHA256("key", msg))
	assert.Equal(t,
		"b42af09057bac1e2d41708e48a902e09b5ff7f12ab428a4fe86653c73dd248fb82f948a549f7b791a5b41915ee4d1ec3935357e4e2317250d0372afa2ebeeb3a",
		payment.SignSHA512("key", msg))
}

func TestSignatureMatches(t *testing.T) {
	sig := payment.SignSHA256("secret", "a=1")
	assert.True(t, payment.SignatureMatches(sig, sig))
	assert.False(t, payment.SignatureMatches(sig, payment.SignSHA256("other", "a=1")))
	assert.False(t, payment.SignatureMatches(sig, ""))
}
