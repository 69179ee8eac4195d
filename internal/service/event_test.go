package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volunteerhub/volunteer-hub-api/internal/domain"
)

func newEventServiceForTest() (*EventService, *fakeStore) {
	store := newFakeStore()
	svc := NewEventService(&fakeEventRepository{store: store}, noopNotifier{})

	return svc, store
}

func validEvent() domain.Event {
	start := time.Now().Add(7 * 24 * time.Hour)

	return domain.Event{
		Title:           "Food Bank Shift",
		Description:     "Sort and pack donations for the weekend distribution.",
		Location:        "Community Center",
		StartTime:       start,
		EndTime:         start.Add(4 * time.Hour),
		MaxParticipants: 5,
	}
}

func organizer() domain.User {
	return domain.User{ID: 10, Name: "Dana", Email: "dana@example.com", Role: domain.RoleOrganizer}
}

func TestEventService_CreateEvent(t *testing.T) {
	t.Run("submits for review by default", func(t *testing.T) {
		svc, store := newEventServiceForTest()

		created, err := svc.CreateEvent(context.Background(), validEvent(), organizer(), false)
		require.NoError(t, err)

		assert.Equal(t, domain.EventStatusPending, created.Status)
		assert.Equal(t, organizer().ID, created.OrganizerID)
		assert.Equal(t, 1, created.CurrentParticipants)
		assert.Equal(t, 0, created.EditCount)

		// The organizer holds an auto-approved seat.
		store.mu.Lock()
		defer store.mu.Unlock()
		require.Len(t, store.registrations, 1)
		for _, reg := range store.registrations {
			assert.Equal(t, created.ID, reg.EventID)
			assert.Equal(t, organizer().ID, reg.VolunteerID)
			assert.Equal(t, domain.RegistrationStatusApproved, reg.Status)
		}
	})

	t.Run("saves as draft when asked", func(t *testing.T) {
		svc, _ := newEventServiceForTest()

		created, err := svc.CreateEvent(context.Background(), validEvent(), organizer(), true)
		require.NoError(t, err)
		assert.Equal(t, domain.EventStatusDraft, created.Status)
	})

	t.Run("rejects missing required fields", func(t *testing.T) {
		svc, _ := newEventServiceForTest()

		event := validEvent()
		event.Location = ""

		_, err := svc.CreateEvent(context.Background(), event, organizer(), false)
		assert.ErrorIs(t, err, ErrIncompleteEvent)
	})

	t.Run("rejects start after end", func(t *testing.T) {
		svc, _ := newEventServiceForTest()

		event := validEvent()
		event.EndTime = event.StartTime.Add(-time.Hour)

		_, err := svc.CreateEvent(context.Background(), event, organizer(), false)
		assert.ErrorIs(t, err, ErrInvalidTime)
	})

	t.Run("rejects negative capacity", func(t *testing.T) {
		svc, _ := newEventServiceForTest()

		event := validEvent()
		event.MaxParticipants = -1

		_, err := svc.CreateEvent(context.Background(), event, organizer(), false)
		assert.ErrorIs(t, err, ErrInvalidCapacity)
	})
}

func TestEventService_ApproveEvent(t *testing.T) {
	t.Run("opens a pending event", func(t *testing.T) {
		svc, _ := newEventServiceForTest()

		created, err := svc.CreateEvent(context.Background(), validEvent(), organizer(), false)
		require.NoError(t, err)

		approved, err := svc.ApproveEvent(context.Background(), created.ID, 99)
		require.NoError(t, err)

		assert.Equal(t, domain.EventStatusOpened, approved.Status)
		require.NotNil(t, approved.ApprovedBy)
		assert.Equal(t, uint(99), *approved.ApprovedBy)
		assert.NotNil(t, approved.ApprovedAt)
	})

	t.Run("refuses a draft", func(t *testing.T) {
		svc, _ := newEventServiceForTest()

		created, err := svc.CreateEvent(context.Background(), validEvent(), organizer(), true)
		require.NoError(t, err)

		_, err = svc.ApproveEvent(context.Background(), created.ID, 99)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("unknown event", func(t *testing.T) {
		svc, _ := newEventServiceForTest()

		_, err := svc.ApproveEvent(context.Background(), 12345, 99)
		assert.ErrorIs(t, err, ErrEventNotFound)
	})
}

func TestEventService_RejectEvent(t *testing.T) {
	svc, _ := newEventServiceForTest()

	created, err := svc.CreateEvent(context.Background(), validEvent(), organizer(), false)
	require.NoError(t, err)

	rejected, err := svc.RejectEvent(context.Background(), created.ID, 99, "")
	require.NoError(t, err)

	assert.Equal(t, domain.EventStatusRejected, rejected.Status)
	assert.Equal(t, "no reason provided", rejected.RejectionReason)
}

func TestEventService_SubmitEvent(t *testing.T) {
	t.Run("submits a draft", func(t *testing.T) {
		svc, _ := newEventServiceForTest()

		created, err := svc.CreateEvent(context.Background(), validEvent(), organizer(), true)
		require.NoError(t, err)

		submitted, err := svc.SubmitEvent(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.EventStatusPending, submitted.Status)
	})

	t.Run("resubmission clears the rejection reason", func(t *testing.T) {
		svc, _ := newEventServiceForTest()

		created, err := svc.CreateEvent(context.Background(), validEvent(), organizer(), false)
		require.NoError(t, err)

		_, err = svc.RejectEvent(context.Background(), created.ID, 99, "too vague")
		require.NoError(t, err)

		resubmitted, err := svc.SubmitEvent(context.Background(), created.ID)
		require.NoError(t, err)

		assert.Equal(t, domain.EventStatusPending, resubmitted.Status)
		assert.Empty(t, resubmitted.RejectionReason)
	})

	t.Run("resubmission requires the required fields", func(t *testing.T) {
		svc, store := newEventServiceForTest()

		created, err := svc.CreateEvent(context.Background(), validEvent(), organizer(), false)
		require.NoError(t, err)

		_, err = svc.RejectEvent(context.Background(), created.ID, 99, "fix the location")
		require.NoError(t, err)

		store.mu.Lock()
		broken := store.events[created.ID]
		broken.Location = ""
		store.events[created.ID] = broken
		store.mu.Unlock()

		_, err = svc.SubmitEvent(context.Background(), created.ID)
		assert.ErrorIs(t, err, ErrIncompleteEvent)
	})

	t.Run("cannot submit an opened event", func(t *testing.T) {
		svc, _ := newEventServiceForTest()

		created, err := svc.CreateEvent(context.Background(), validEvent(), organizer(), false)
		require.NoError(t, err)
		_, err = svc.ApproveEvent(context.Background(), created.ID, 99)
		require.NoError(t, err)

		_, err = svc.SubmitEvent(context.Background(), created.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestEventService_UpdateEvent(t *testing.T) {
	newTitle := "Updated Title"

	t.Run("content edit on a pending event keeps it pending", func(t *testing.T) {
		svc, _ := newEventServiceForTest()

		created, err := svc.CreateEvent(context.Background(), validEvent(), organizer(), false)
		require.NoError(t, err)

		updated, err := svc.UpdateEvent(context.Background(), created.ID, domain.EventPatch{Title: &newTitle})
		require.NoError(t, err)

		assert.Equal(t, newTitle, updated.Title)
		assert.Equal(t, domain.EventStatusPending, updated.Status)
		assert.Equal(t, 1, updated.EditCount)
	})

	t.Run("approval racing the edit still demotes", func(t *testing.T) {
		store := newFakeStore()
		repo := &fakeEventRepository{store: store}
		svc := NewEventService(repo, noopNotifier{})

		created, err := svc.CreateEvent(context.Background(), validEvent(), organizer(), false)
		require.NoError(t, err)

		// An administrator opens the event between the update's read
		// (which saw PENDING) and its write.
		adminID := uint(99)
		repo.afterFind = func() {
			repo.afterFind = nil

			store.mu.Lock()
			defer store.mu.Unlock()
			event := store.events[created.ID]
			event.Status = domain.EventStatusOpened
			event.ApprovedBy = &adminID
			now := time.Now()
			event.ApprovedAt = &now
			store.events[created.ID] = event
		}

		updated, err := svc.UpdateEvent(context.Background(), created.ID, domain.EventPatch{Title: &newTitle})
		require.NoError(t, err)

		// The stale write lost; the retry saw the opened event and the
		// edit demoted it back into the review queue.
		assert.Equal(t, domain.EventStatusPending, updated.Status)
		assert.Equal(t, newTitle, updated.Title)
		assert.Nil(t, updated.ApprovedBy)
		assert.Nil(t, updated.ApprovedAt)
		assert.Equal(t, 1, updated.EditCount)
	})

	t.Run("content edit on an opened event demotes it", func(t *testing.T) {
		svc, _ := newEventServiceForTest()

		created, err := svc.CreateEvent(context.Background(), validEvent(), organizer(), false)
		require.NoError(t, err)
		_, err = svc.ApproveEvent(context.Background(), created.ID, 99)
		require.NoError(t, err)

		updated, err := svc.UpdateEvent(context.Background(), created.ID, domain.EventPatch{Title: &newTitle})
		require.NoError(t, err)

		assert.Equal(t, domain.EventStatusPending, updated.Status)
		assert.Nil(t, updated.ApprovedBy)
		assert.Nil(t, updated.ApprovedAt)
		assert.Equal(t, 1, updated.EditCount)
	})

	t.Run("second opened edit hits the limit", func(t *testing.T) {
		svc, store := newEventServiceForTest()

		created, err := svc.CreateEvent(context.Background(), validEvent(), organizer(), false)
		require.NoError(t, err)
		_, err = svc.ApproveEvent(context.Background(), created.ID, 99)
		require.NoError(t, err)

		_, err = svc.UpdateEvent(context.Background(), created.ID, domain.EventPatch{Title: &newTitle})
		require.NoError(t, err)

		// Re-approve the demoted event so it is OPENED with one edit spent.
		_, err = svc.ApproveEvent(context.Background(), created.ID, 99)
		require.NoError(t, err)

		other := "Another Title"
		_, err = svc.UpdateEvent(context.Background(), created.ID, domain.EventPatch{Title: &other})
		assert.ErrorIs(t, err, ErrEditLimitExceeded)

		store.mu.Lock()
		assert.Equal(t, newTitle, store.events[created.ID].Title)
		store.mu.Unlock()
	})

	t.Run("status-only close bypasses the edit limit", func(t *testing.T) {
		svc, _ := newEventServiceForTest()

		created, err := svc.CreateEvent(context.Background(), validEvent(), organizer(), false)
		require.NoError(t, err)
		_, err = svc.ApproveEvent(context.Background(), created.ID, 99)
		require.NoError(t, err)

		_, err = svc.UpdateEvent(context.Background(), created.ID, domain.EventPatch{Title: &newTitle})
		require.NoError(t, err)

		// The event is PENDING again after the demote; closing is still legal.
		closed := domain.EventStatusClosed
		updated, err := svc.UpdateEvent(context.Background(), created.ID, domain.EventPatch{Status: &closed})
		require.NoError(t, err)
		assert.Equal(t, domain.EventStatusClosed, updated.Status)
	})

	t.Run("cannot close an event with no approved participants", func(t *testing.T) {
		svc, store := newEventServiceForTest()

		created, err := svc.CreateEvent(context.Background(), validEvent(), organizer(), false)
		require.NoError(t, err)

		store.mu.Lock()
		empty := store.events[created.ID]
		empty.CurrentParticipants = 0
		store.events[created.ID] = empty
		store.mu.Unlock()

		closed := domain.EventStatusClosed
		_, err = svc.UpdateEvent(context.Background(), created.ID, domain.EventPatch{Status: &closed})
		assert.ErrorIs(t, err, ErrCannotCloseEmptyEvent)
	})

	t.Run("cancel via status patch", func(t *testing.T) {
		svc, _ := newEventServiceForTest()

		created, err := svc.CreateEvent(context.Background(), validEvent(), organizer(), true)
		require.NoError(t, err)

		cancelled := domain.EventStatusCancelled
		updated, err := svc.UpdateEvent(context.Background(), created.ID, domain.EventPatch{Status: &cancelled})
		require.NoError(t, err)
		assert.Equal(t, domain.EventStatusCancelled, updated.Status)
	})

	t.Run("opened cannot be requested directly", func(t *testing.T) {
		svc, _ := newEventServiceForTest()

		created, err := svc.CreateEvent(context.Background(), validEvent(), organizer(), false)
		require.NoError(t, err)

		opened := domain.EventStatusOpened
		_, err = svc.UpdateEvent(context.Background(), created.ID, domain.EventPatch{Status: &opened})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("terminal events are not editable", func(t *testing.T) {
		svc, _ := newEventServiceForTest()

		created, err := svc.CreateEvent(context.Background(), validEvent(), organizer(), true)
		require.NoError(t, err)

		cancelled := domain.EventStatusCancelled
		_, err = svc.UpdateEvent(context.Background(), created.ID, domain.EventPatch{Status: &cancelled})
		require.NoError(t, err)

		_, err = svc.UpdateEvent(context.Background(), created.ID, domain.EventPatch{Title: &newTitle})
		assert.ErrorIs(t, err, ErrEventNotEditable)
	})

	t.Run("capacity cannot drop below the approved count", func(t *testing.T) {
		svc, _ := newEventServiceForTest()

		created, err := svc.CreateEvent(context.Background(), validEvent(), organizer(), false)
		require.NoError(t, err)

		tooSmall := 0
		_, err = svc.UpdateEvent(context.Background(), created.ID, domain.EventPatch{MaxParticipants: &tooSmall})
		require.NoError(t, err) // zero means unlimited

		negative := -2
		_, err = svc.UpdateEvent(context.Background(), created.ID, domain.EventPatch{MaxParticipants: &negative})
		assert.ErrorIs(t, err, ErrInvalidCapacity)
	})

	t.Run("shrinking below current participants fails", func(t *testing.T) {
		svc, store := newEventServiceForTest()

		created, err := svc.CreateEvent(context.Background(), validEvent(), organizer(), false)
		require.NoError(t, err)

		store.mu.Lock()
		busy := store.events[created.ID]
		busy.CurrentParticipants = 3
		store.events[created.ID] = busy
		store.mu.Unlock()

		two := 2
		_, err = svc.UpdateEvent(context.Background(), created.ID, domain.EventPatch{MaxParticipants: &two})
		assert.ErrorIs(t, err, ErrInvalidCapacity)
	})

	t.Run("incoherent times fail", func(t *testing.T) {
		svc, _ := newEventServiceForTest()

		created, err := svc.CreateEvent(context.Background(), validEvent(), organizer(), false)
		require.NoError(t, err)

		badEnd := created.StartTime.Add(-time.Hour)
		_, err = svc.UpdateEvent(context.Background(), created.ID, domain.EventPatch{EndTime: &badEnd})
		assert.ErrorIs(t, err, ErrInvalidTime)
	})

	t.Run("empty patch is a no-op", func(t *testing.T) {
		svc, _ := newEventServiceForTest()

		created, err := svc.CreateEvent(context.Background(), validEvent(), organizer(), false)
		require.NoError(t, err)

		updated, err := svc.UpdateEvent(context.Background(), created.ID, domain.EventPatch{})
		require.NoError(t, err)
		assert.Equal(t, created.EditCount, updated.EditCount)
	})
}
