package domain

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrinexus/internal/pkg/apperr"
)

var now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func pending(t *testing.T) *DeliveryRequest {
	t.Helper()
	r, err := NewDeliveryRequest("dr-1", "card-1", "buyer", "seller", 10, 200, "12 Market Rd", "please call", now)
	require.NoError(t, err)
	return r
}

func TestNewDeliveryRequest_Validation(t *testing.T) {
	cases := []struct {
		name    string
		qty     float64
		price   float64
		address string
		buyer   string
		want    error
	}{
		{"zero qty", 0, 1, "addr", "buyer", apperr.ErrValidation},
		{"negative price", 1, -1, "addr", "buyer", apperr.ErrValidation},
		{"blank address", 1, 1, "   ", "buyer", apperr.ErrValidation},
		{"own card", 1, 1, "addr", "seller", ErrOwnCard},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewDeliveryRequest("id", "card", tc.buyer, "seller", tc.qty, tc.price, tc.address, "", now)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}

	r := pending(t)
	assert.Equal(t, StatusPending, r.Status)
	assert.Nil(t, r.RespondedAt)
	assert.Equal(t, "please call", r.BuyerNotes)
}

func TestStateMachine_Table(t *testing.T) {
	all := []Status{StatusPending, StatusAccepted, StatusRejected, StatusCancelled, StatusCompleted}
	allowed := map[[2]Status]bool{
		{StatusPending, StatusAccepted}:   true,
		{StatusPending, StatusRejected}:   true,
		{StatusPending, StatusCancelled}:  true,
		{StatusAccepted, StatusCompleted}: true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]Status{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusAccepted.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.False(t, Status("shipped").IsValid())
}

func TestApply_AcceptThenComplete(t *testing.T) {
	r := pending(t)

	from, err := r.Apply(ActionAccept, "seller", "ready friday", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, from)
	assert.Equal(t, StatusAccepted, r.Status)
	assert.Equal(t, "ready friday", r.SellerNotes)
	require.NotNil(t, r.RespondedAt)
	assert.Equal(t, now.Add(time.Hour), *r.RespondedAt)
	assert.Nil(t, r.CompletedAt)

	_, err = r.Apply(ActionComplete, "seller", "", now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, r.Status)
	require.NotNil(t, r.CompletedAt)
	// 空备注不覆盖
	assert.Equal(t, "ready friday", r.SellerNotes)
}

func TestApply_PendingCannotComplete(t *testing.T) {
	r := pending(t)
	_, err := r.Apply(ActionComplete, "seller", "", now)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusPending, r.Status)
	assert.Nil(t, r.CompletedAt)
}

func TestApply_ExactlyOneOutcomeFromPending(t *testing.T) {
	for _, first := range []struct {
		action Action
		actor  string
	}{{ActionAccept, "seller"}, {ActionReject, "seller"}, {ActionCancel, "buyer"}} {
		r := pending(t)
		_, err := r.Apply(first.action, first.actor, "", now)
		require.NoError(t, err)

		for _, second := range []struct {
			action Action
			actor  string
		}{{ActionAccept, "seller"}, {ActionReject, "seller"}, {ActionCancel, "buyer"}} {
			_, err := r.Apply(second.action, second.actor, "", now)
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s after %s", second.action, first.action)
		}
	}
}

func TestApply_Actors(t *testing.T) {
	r := pending(t)

	_, err := r.Apply(ActionAccept, "buyer", "", now)
	assert.ErrorIs(t, err, ErrWrongActor)
	_, err = r.Apply(ActionCancel, "seller", "", now)
	assert.ErrorIs(t, err, ErrWrongActor)
	_, err = r.Apply(ActionReject, "stranger", "", now)
	assert.ErrorIs(t, err, ErrNotParticipant)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	_, err = r.Apply(ActionCancel, "buyer", "changed my mind", now)
	require.NoError(t, err)
	assert.Equal(t, "changed my mind", r.BuyerNotes)
	assert.Nil(t, r.RespondedAt)
}

func TestApply_BuyerCannotCancelAccepted(t *testing.T) {
	r := pending(t)
	_, err := r.Apply(ActionAccept, "seller", "", now)
	require.NoError(t, err)

	_, err = r.Apply(ActionCancel, "buyer", "", now)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusAccepted, r.Status)
}

func TestShipmentAdvance_Monotonic(t *testing.T) {
	s := &DeliveryShipment{DeliveryRequestID: "dr-1", Status: ShipmentCreated}
	step := func(st ShipmentStatus, loc string) UpdateResult {
		return s.Advance(ShipmentUpdate{DeliveryRequestID: "dr-1", Status: st, Location: loc}, now)
	}

	assert.Equal(t, UpdateApplied, step(ShipmentInTransit, "Pune hub"))
	assert.Equal(t, UpdateIgnored, step(ShipmentPickedUp, "farm gate"))
	assert.Equal(t, ShipmentInTransit, s.Status)
	assert.Equal(t, "Pune hub", s.LastKnownLocation)

	// 同一状态只更新位置
	assert.Equal(t, UpdateApplied, step(ShipmentInTransit, "Mumbai hub"))
	assert.Equal(t, "Mumbai hub", s.LastKnownLocation)
	assert.Equal(t, UpdateIgnored, step(ShipmentInTransit, "Mumbai hub"))

	assert.Equal(t, UpdateApplied, step(ShipmentDelivered, "Dadar"))
	for _, st := range []ShipmentStatus{ShipmentFailed, ShipmentOutForDelivery, ShipmentDelivered} {
		assert.Equal(t, UpdateIgnored, step(st, "elsewhere"))
	}
	assert.Equal(t, ShipmentDelivered, s.Status)
	assert.Equal(t, "Dadar", s.LastKnownLocation)
}

func TestShipmentAdvance_FailedFromAnyNonTerminal(t *testing.T) {
	for _, st := range []ShipmentStatus{ShipmentCreated, ShipmentPickedUp, ShipmentInTransit, ShipmentOutForDelivery} {
		s := &DeliveryShipment{Status: st}
		assert.Equal(t, UpdateApplied, s.Advance(ShipmentUpdate{Status: ShipmentFailed}, now))
		assert.Equal(t, ShipmentFailed, s.Status)
		assert.Equal(t, UpdateIgnored, s.Advance(ShipmentUpdate{Status: ShipmentDelivered}, now))
	}
}

func TestShipmentUpdate_Validate(t *testing.T) {
	assert.Error(t, ShipmentUpdate{Status: ShipmentCreated}.Validate())
	assert.Error(t, ShipmentUpdate{DeliveryRequestID: "dr", Status: "lost"}.Validate())
	assert.NoError(t, ShipmentUpdate{DeliveryRequestID: "dr", Status: ShipmentFailed}.Validate())
	assert.True(t, CanShip(StatusAccepted))
	assert.True(t, CanShip(StatusCompleted))
	assert.False(t, CanShip(StatusPending))
}
