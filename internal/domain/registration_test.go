package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextRegistrationStatus(t *testing.T) {
	tests := []struct {
		name    string
		current RegistrationStatus
		action  RegistrationAction
		want    RegistrationStatus
		wantErr bool
	}{
		{"approve pending", RegistrationStatusPending, RegistrationActionApprove, RegistrationStatusApproved, false},
		{"reject pending", RegistrationStatusPending, RegistrationActionReject, RegistrationStatusRejected, false},
		{"cancel pending", RegistrationStatusPending, RegistrationActionCancel, RegistrationStatusCancelled, false},
		{"cancel approved", RegistrationStatusApproved, RegistrationActionCancel, RegistrationStatusCancelled, false},
		{"complete approved", RegistrationStatusApproved, RegistrationActionComplete, RegistrationStatusCompleted, false},
		{"reactivate cancelled", RegistrationStatusCancelled, RegistrationActionReactivate, RegistrationStatusPending, false},
		{"approve approved", RegistrationStatusApproved, RegistrationActionApprove, "", true},
		{"cancel rejected", RegistrationStatusRejected, RegistrationActionCancel, "", true},
		{"cancel completed", RegistrationStatusCompleted, RegistrationActionCancel, "", true},
		{"approve cancelled", RegistrationStatusCancelled, RegistrationActionApprove, "", true},
		{"complete pending", RegistrationStatusPending, RegistrationActionComplete, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextRegistrationStatus(tt.current, tt.action)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidStatus))

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistration_IsCancellable(t *testing.T) {
	assert.True(t, (&Registration{Status: RegistrationStatusPending}).IsCancellable())
	assert.True(t, (&Registration{Status: RegistrationStatusApproved}).IsCancellable())
	assert.False(t, (&Registration{Status: RegistrationStatusCancelled}).IsCancellable())
	assert.False(t, (&Registration{Status: RegistrationStatusRejected}).IsCancellable())
	assert.False(t, (&Registration{Status: RegistrationStatusCompleted}).IsCancellable())
}

func TestErrorKindMatching(t *testing.T) {
	err := E(KindEventFull, "event %v is full", 42)

	assert.True(t, errors.Is(err, ErrEventFull))
	assert.False(t, errors.Is(err, ErrAlreadyRegistered))

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindEventFull, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}
