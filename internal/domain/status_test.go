package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	allowed := map[Status][]Status{
		StatusPending:    {StatusConfirmed, StatusProcessing, StatusCancelled},
		StatusConfirmed:  {StatusProcessing, StatusCancelled},
		StatusProcessing: {StatusShipped},
		StatusShipped:    {StatusDelivered},
		StatusDelivered:  {},
		StatusCancelled:  {},
	}

	for _, from := range Statuses {
		for _, to := range Statuses {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusProcessing, StatusShipped} {
		assert.False(t, s.Terminal(), "%s", s)
	}
	assert.False(t, Status("returned").Terminal(), "unknown status is not terminal")
}

func TestValidateTransition_ServiceActor(t *testing.T) {
	svc := Actor{ID: "fulfillment-job"}

	// Non-admin, non-cancel edges are rejected even when the table allows
	// them; only admins drive fulfillment transitions.
	err := ValidateTransition(StatusProcessing, StatusShipped, svc)
	require.Error(t, err)
	assert.True(t, IsInvalidTransition(err))
}

func TestValidateTransition_Customer(t *testing.T) {
	customer := Actor{ID: "user-1"}

	require.NoError(t, ValidateTransition(StatusPending, StatusCancelled, customer))
	require.NoError(t, ValidateTransition(StatusConfirmed, StatusCancelled, customer))

	for _, from := range []Status{StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled} {
		err := ValidateTransition(from, StatusCancelled, customer)
		require.Error(t, err, "cancel from %s", from)
		assert.True(t, IsInvalidTransition(err))
	}

	// Customers cannot drive fulfillment.
	err := ValidateTransition(StatusPending, StatusConfirmed, customer)
	require.Error(t, err)
	assert.True(t, IsInvalidTransition(err))
}

func TestValidateTransition_Admin(t *testing.T) {
	admin := Actor{ID: "admin-1", Admin: true}

	// Admins bypass the table, including edges it forbids.
	require.NoError(t, ValidateTransition(StatusPending, StatusShipped, admin))
	require.NoError(t, ValidateTransition(StatusShipped, StatusConfirmed, admin))
	require.NoError(t, ValidateTransition(StatusProcessing, StatusCancelled, admin))

	// Terminal states stay terminal even for admins.
	for _, from := range []Status{StatusDelivered, StatusCancelled} {
		for _, to := range []Status{StatusPending, StatusConfirmed, StatusProcessing, StatusShipped} {
			err := ValidateTransition(from, to, admin)
			require.Error(t, err, "%s -> %s", from, to)
			assert.True(t, IsInvalidTransition(err))
		}
	}
}

func TestValidateTransition_UnknownStatus(t *testing.T) {
	err := ValidateTransition(Status("archived"), StatusPending, Actor{Admin: true})
	require.Error(t, err)
	assert.True(t, IsInvalidTransition(err))

	err = ValidateTransition(StatusPending, Status("archived"), Actor{Admin: true})
	require.Error(t, err)
}

func TestCancellable(t *testing.T) {
	assert.True(t, StatusPending.Cancellable())
	assert.True(t, StatusConfirmed.Cancellable())
	for _, s := range []Status{StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled} {
		assert.False(t, s.Cancellable(), "%s", s)
	}
}
