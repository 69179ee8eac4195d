package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/volunteerhub/volunteer-hub-api/internal/domain"
)

// fakeStore is a shared in-memory backend for the event and registration
// repository fakes. A single mutex guards both tables, mirroring the
// serialization the real storage provides through row locks.
type fakeStore struct {
	mu sync.Mutex

	events        map[uint]domain.Event
	registrations map[uint]domain.Registration

	nextEventID        uint
	nextRegistrationID uint
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events:             map[uint]domain.Event{},
		registrations:      map[uint]domain.Registration{},
		nextEventID:        1,
		nextRegistrationID: 1,
	}
}

func (s *fakeStore) putEvent(event domain.Event) domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == 0 {
		event.ID = s.nextEventID
		s.nextEventID++
	} else if event.ID >= s.nextEventID {
		s.nextEventID = event.ID + 1
	}
	event.UpdatedAt = time.Now()
	s.events[event.ID] = event

	return event
}

func (s *fakeStore) putRegistration(reg domain.Registration) domain.Registration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.putRegistrationLocked(reg)
}

func (s *fakeStore) putRegistrationLocked(reg domain.Registration) domain.Registration {
	if reg.ID == 0 {
		reg.ID = s.nextRegistrationID
		s.nextRegistrationID++
	} else if reg.ID >= s.nextRegistrationID {
		s.nextRegistrationID = reg.ID + 1
	}
	reg.UpdatedAt = time.Now()
	s.registrations[reg.ID] = reg

	return reg
}

func (s *fakeStore) approvedCountLocked(eventID uint) int {
	count := 0
	for _, reg := range s.registrations {
		if reg.EventID == eventID && reg.Status == domain.RegistrationStatusApproved {
			count++
		}
	}

	return count
}

func applyEventSet(event *domain.Event, set map[string]any) {
	for column, value := range set {
		switch column {
		case "title":
			event.Title = value.(string)
		case "description":
			event.Description = value.(string)
		case "location":
			event.Location = value.(string)
		case "start_time":
			event.StartTime = value.(time.Time)
		case "end_time":
			event.EndTime = value.(time.Time)
		case "max_participants":
			event.MaxParticipants = value.(int)
		case "status":
			event.Status = domain.EventStatus(value.(string))
		case "approved_by":
			if value == nil {
				event.ApprovedBy = nil
			} else {
				id := value.(uint)
				event.ApprovedBy = &id
			}
		case "approved_at":
			if value == nil {
				event.ApprovedAt = nil
			} else {
				at := value.(time.Time)
				event.ApprovedAt = &at
			}
		case "rejection_reason":
			event.RejectionReason = value.(string)
		}
	}
}

type fakeEventRepository struct {
	store *fakeStore

	// afterFind runs after FindByID returns its snapshot, letting tests
	// interleave a concurrent transition between a read and its write.
	afterFind func()
}

func (r *fakeEventRepository) CreateWithOwner(_ context.Context, event domain.Event, owner domain.Registration) (domain.Event, domain.Registration, error) {
	created := r.store.putEvent(event)
	owner.EventID = created.ID
	createdOwner := r.store.putRegistration(owner)

	return created, createdOwner, nil
}

func (r *fakeEventRepository) FindByID(_ context.Context, id uint) (domain.Event, error) {
	r.store.mu.Lock()
	event, ok := r.store.events[id]
	r.store.mu.Unlock()

	if !ok {
		return domain.Event{}, domain.E(domain.KindEventNotFound, "event %v does not exist", id)
	}

	if r.afterFind != nil {
		r.afterFind()
	}

	return event, nil
}

func (r *fakeEventRepository) List(_ context.Context, status domain.EventStatus, offset, limit int) ([]domain.Event, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var events []domain.Event
	for _, event := range r.store.events {
		if status != "" && event.Status != status {
			continue
		}
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].StartTime.Before(events[j].StartTime) })

	if offset >= len(events) {
		return nil, nil
	}
	events = events[offset:]
	if limit > 0 && limit < len(events) {
		events = events[:limit]
	}

	return events, nil
}

func (r *fakeEventRepository) ListByOrganizer(_ context.Context, organizerID uint) ([]domain.Event, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var events []domain.Event
	for _, event := range r.store.events {
		if event.OrganizerID == organizerID {
			events = append(events, event)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })

	return events, nil
}

func (r *fakeEventRepository) Transition(_ context.Context, id uint, from, to domain.EventStatus, set map[string]any) (domain.Event, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	event, ok := r.store.events[id]
	if !ok {
		return domain.Event{}, domain.E(domain.KindEventNotFound, "event %v does not exist", id)
	}
	if event.Status != from {
		return domain.Event{}, domain.E(domain.KindInvalidTransition, "event %v is no longer %v", id, from)
	}

	applyEventSet(&event, set)
	event.Status = to
	event.UpdatedAt = time.Now()
	r.store.events[id] = event

	return event, nil
}

func (r *fakeEventRepository) ApplyPatch(_ context.Context, id uint, from domain.EventStatus, expectedEditCount int, set map[string]any) (domain.Event, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	event, ok := r.store.events[id]
	if !ok {
		return domain.Event{}, domain.E(domain.KindEventNotFound, "event %v does not exist", id)
	}
	if event.Status != from || event.EditCount != expectedEditCount {
		return domain.Event{}, domain.E(domain.KindConcurrentModification, "event %v was modified concurrently", id)
	}

	applyEventSet(&event, set)
	event.EditCount = expectedEditCount + 1
	event.UpdatedAt = time.Now()
	r.store.events[id] = event

	return event, nil
}

func (r *fakeEventRepository) RecountParticipants(_ context.Context, eventID uint) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.approvedCountLocked(eventID), nil
}

func (r *fakeEventRepository) SyncParticipantCount(_ context.Context, eventID uint) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	event, ok := r.store.events[eventID]
	if !ok {
		return 0, domain.E(domain.KindEventNotFound, "event %v does not exist", eventID)
	}

	count := r.store.approvedCountLocked(eventID)
	event.CurrentParticipants = count
	r.store.events[eventID] = event

	return count, nil
}

type fakeRegistrationRepository struct {
	store *fakeStore

	// afterFind runs after FindByEventAndVolunteer returns its snapshot,
	// letting tests interleave a concurrent transition before the write.
	afterFind func()
}

func (r *fakeRegistrationRepository) Create(_ context.Context, registration domain.Registration) (domain.Registration, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, existing := range r.store.registrations {
		if existing.EventID == registration.EventID && existing.VolunteerID == registration.VolunteerID {
			return domain.Registration{}, domain.E(domain.KindAlreadyRegistered,
				"volunteer %v is already registered for event %v", registration.VolunteerID, registration.EventID)
		}
	}

	return r.store.putRegistrationLocked(registration), nil
}

func (r *fakeRegistrationRepository) FindByID(_ context.Context, id uint) (domain.Registration, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	registration, ok := r.store.registrations[id]
	if !ok {
		return domain.Registration{}, domain.E(domain.KindRegistrationNotFound, "registration %v does not exist", id)
	}

	return registration, nil
}

func (r *fakeRegistrationRepository) FindByEventAndVolunteer(_ context.Context, eventID, volunteerID uint) (domain.Registration, error) {
	r.store.mu.Lock()
	var (
		found domain.Registration
		ok    bool
	)
	for _, registration := range r.store.registrations {
		if registration.EventID == eventID && registration.VolunteerID == volunteerID {
			found = registration
			ok = true
			break
		}
	}
	r.store.mu.Unlock()

	if !ok {
		return domain.Registration{}, domain.E(domain.KindRegistrationNotFound,
			"volunteer %v has no registration for event %v", volunteerID, eventID)
	}

	if r.afterFind != nil {
		r.afterFind()
	}

	return found, nil
}

func (r *fakeRegistrationRepository) ListByEvent(_ context.Context, eventID uint, status domain.RegistrationStatus, offset, limit int, oldestFirst bool) ([]domain.Registration, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var registrations []domain.Registration
	for _, registration := range r.store.registrations {
		if registration.EventID != eventID {
			continue
		}
		if status != "" && registration.Status != status {
			continue
		}
		registrations = append(registrations, registration)
	}
	sort.Slice(registrations, func(i, j int) bool {
		if oldestFirst {
			return registrations[i].RegisteredAt.Before(registrations[j].RegisteredAt)
		}

		return registrations[j].RegisteredAt.Before(registrations[i].RegisteredAt)
	})

	if offset >= len(registrations) {
		return nil, nil
	}
	registrations = registrations[offset:]
	if limit > 0 && limit < len(registrations) {
		registrations = registrations[:limit]
	}

	return registrations, nil
}

func (r *fakeRegistrationRepository) ListByVolunteer(_ context.Context, volunteerID uint) ([]domain.Registration, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var registrations []domain.Registration
	for _, registration := range r.store.registrations {
		if registration.VolunteerID == volunteerID {
			registrations = append(registrations, registration)
		}
	}
	sort.Slice(registrations, func(i, j int) bool {
		return registrations[j].RegisteredAt.Before(registrations[i].RegisteredAt)
	})

	return registrations, nil
}

func (r *fakeRegistrationRepository) CountApproved(_ context.Context, eventID uint) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.approvedCountLocked(eventID), nil
}

func (r *fakeRegistrationRepository) Reactivate(_ context.Context, id uint, registeredAt time.Time) (domain.Registration, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	registration, ok := r.store.registrations[id]
	if !ok {
		return domain.Registration{}, domain.E(domain.KindRegistrationNotFound, "registration %v does not exist", id)
	}
	if registration.Status != domain.RegistrationStatusCancelled {
		return domain.Registration{}, domain.E(domain.KindAlreadyRegistered, "registration %v is no longer cancelled", id)
	}

	registration.Status = domain.RegistrationStatusPending
	registration.RegisteredAt = registeredAt
	registration.ApprovedBy = nil
	registration.RejectionReason = ""
	registration.UpdatedAt = time.Now()
	r.store.registrations[id] = registration

	return registration, nil
}

func (r *fakeRegistrationRepository) Transition(_ context.Context, id uint, from, to domain.RegistrationStatus, set map[string]any) (domain.Registration, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	registration, ok := r.store.registrations[id]
	if !ok {
		return domain.Registration{}, domain.E(domain.KindRegistrationNotFound, "registration %v does not exist", id)
	}
	if registration.Status != from {
		return domain.Registration{}, domain.E(domain.KindInvalidStatus, "registration %v is no longer %v", id, from)
	}

	for column, value := range set {
		switch column {
		case "approved_by":
			if value == nil {
				registration.ApprovedBy = nil
			} else {
				managerID := value.(uint)
				registration.ApprovedBy = &managerID
			}
		case "rejection_reason":
			registration.RejectionReason = value.(string)
		}
	}
	registration.Status = to
	registration.UpdatedAt = time.Now()
	r.store.registrations[id] = registration

	return registration, nil
}

func (r *fakeRegistrationRepository) Approve(_ context.Context, id, eventID, managerID uint) (domain.Registration, int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	event, ok := r.store.events[eventID]
	if !ok {
		return domain.Registration{}, 0, domain.E(domain.KindEventNotFound, "event %v does not exist", eventID)
	}

	if event.MaxParticipants > 0 && r.store.approvedCountLocked(eventID) >= event.MaxParticipants {
		return domain.Registration{}, 0, domain.E(domain.KindEventFull,
			"event %v already has %v approved participants", eventID, event.MaxParticipants)
	}

	registration, ok := r.store.registrations[id]
	if !ok {
		return domain.Registration{}, 0, domain.E(domain.KindRegistrationNotFound, "registration %v does not exist", id)
	}
	if registration.Status != domain.RegistrationStatusPending {
		return domain.Registration{}, 0, domain.E(domain.KindInvalidStatus, "registration %v is not pending", id)
	}

	registration.Status = domain.RegistrationStatusApproved
	registration.ApprovedBy = &managerID
	registration.UpdatedAt = time.Now()
	r.store.registrations[id] = registration

	count := r.store.approvedCountLocked(eventID)
	event.CurrentParticipants = count
	r.store.events[eventID] = event

	return registration, count, nil
}

func (r *fakeRegistrationRepository) Cancel(_ context.Context, id, eventID uint, from domain.RegistrationStatus) (domain.Registration, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	registration, ok := r.store.registrations[id]
	if !ok {
		return domain.Registration{}, domain.E(domain.KindRegistrationNotFound, "registration %v does not exist", id)
	}
	if registration.Status != from {
		return domain.Registration{}, domain.E(domain.KindConcurrentModification,
			"registration %v was modified concurrently", id)
	}

	registration.Status = domain.RegistrationStatusCancelled
	registration.UpdatedAt = time.Now()
	r.store.registrations[id] = registration

	if from == domain.RegistrationStatusApproved {
		event, ok := r.store.events[eventID]
		if ok {
			event.CurrentParticipants = r.store.approvedCountLocked(eventID)
			r.store.events[eventID] = event
		}
	}

	return registration, nil
}

func (r *fakeRegistrationRepository) CompleteByEvent(_ context.Context, eventID uint) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	completed := 0
	for id, registration := range r.store.registrations {
		if registration.EventID == eventID && registration.Status == domain.RegistrationStatusApproved {
			registration.Status = domain.RegistrationStatusCompleted
			registration.UpdatedAt = time.Now()
			r.store.registrations[id] = registration
			completed++
		}
	}

	return completed, nil
}

func (r *fakeRegistrationRepository) EventIDsChangedSince(_ context.Context, since time.Time, limit int) ([]uint, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	seen := map[uint]bool{}
	var eventIDs []uint
	for _, registration := range r.store.registrations {
		if registration.UpdatedAt.Before(since) || seen[registration.EventID] {
			continue
		}
		seen[registration.EventID] = true
		eventIDs = append(eventIDs, registration.EventID)
		if limit > 0 && len(eventIDs) >= limit {
			break
		}
	}

	return eventIDs, nil
}

// noopNotifier drops notifications so tests don't race on the async sends.
type noopNotifier struct{}

func (noopNotifier) EventDecided(domain.Event, uint)               {}
func (noopNotifier) RegistrationDecided(domain.Registration, uint) {}
