package domain

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestStatus_Transitions(t *testing.T) {
	legal := [][2]Status{
		{StatusPending, StatusPaying},
		{StatusPending, StatusConfirmed},
		{StatusPending, StatusCancelled},
		{StatusPending, StatusExpired},
		{StatusPaying, StatusConfirmed},
		{StatusPaying, StatusCancelled},
		{StatusPaying, StatusExpired},
		{StatusConfirmed, StatusCheckIn},
		{StatusCheckIn, StatusCheckOut},
		{StatusCheckOut, StatusCompleted},
	}
	for _, tr := range legal {
		assert.True(t, tr[0].CanTransitionTo(tr[1]), "%s -> %s", tr[0], tr[1])
	}

	illegal := [][2]Status{
		{StatusConfirmed, StatusCancelled},
		{StatusConfirmed, StatusExpired},
		{StatusCheckIn, StatusConfirmed},
		{StatusPending, StatusCompleted},
	}
	for _, tr := range illegal {
		assert.False(t, tr[0].CanTransitionTo(tr[1]), "%s -> %s", tr[0], tr[1])
	}
}

func TestStatus_TerminalHasNoExit(t *testing.T) {
	all := []Status{StatusPending, StatusPaying, StatusConfirmed, StatusCheckIn,
		StatusCheckOut, StatusCompleted, StatusCancelled, StatusExpired}
	for _, from := range []Status{StatusCompleted, StatusCancelled, StatusExpired} {
		assert.True(t, from.IsTerminal())
		assert.False(t, from.IsActive())
		for _, to := range all {
			assert.False(t, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.True(t, StatusCheckIn.IsActive())
}

func TestParseStatus(t *testing.T) {
	s, ok := ParseStatus("CHECKIN")
	assert.True(t, ok)
	assert.Equal(t, StatusCheckIn, s)

	_, ok = ParseStatus("checkin")
	assert.False(t, ok)
}

func TestOverlaps_HalfOpen(t *testing.T) {
	in, out := date("2024-05-10"), date("2024-05-15")

	assert.True(t, Overlaps(in, out, date("2024-05-14"), date("2024-05-16")))
	assert.True(t, Overlaps(in, out, date("2024-05-01"), date("2024-05-30")))
	assert.False(t, Overlaps(in, out, date("2024-05-15"), date("2024-05-18")))
	assert.False(t, Overlaps(in, out, date("2024-05-05"), date("2024-05-10")))
}

func TestNights(t *testing.T) {
	assert.Equal(t, 3, Nights(date("2024-05-10"), date("2024-05-13")))
	assert.Equal(t, 0, Nights(date("2024-05-10"), date("2024-05-10")))
}

func TestError_IsMatchesKind(t *testing.T) {
	err := errors.Wrap(NewConflict("rooms unavailable", "r1"), "create booking")

	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, KindConflict, KindOf(err))
	assert.True(t, errors.Is(ErrSerializationFailure, ErrConflict))
	assert.Equal(t, KindUnexpected, KindOf(errors.New("boom")))
}

func TestError_Message(t *testing.T) {
	err := NewValidation("invalid booking request", "checkOut must be after checkIn", "roomIds is required")
	assert.Equal(t, "invalid booking request: checkOut must be after checkIn; roomIds is required", err.Error())

	err = NewInvalidIDSet("bookings already deleted", "a", "b")
	assert.Equal(t, "bookings already deleted [a, b]", err.Error())
}

func TestActor_Roles(t *testing.T) {
	assert.True(t, Actor{Role: RoleGuest}.IsGuest())
	assert.False(t, Actor{Role: RoleGuest}.IsStaff())
	assert.True(t, Actor{Role: RoleManager}.IsStaff())
	assert.True(t, Actor{Role: RoleAdmin}.IsElevated())
	assert.False(t, Actor{Role: RoleStaff}.IsElevated())
}
