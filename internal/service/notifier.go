package service

import (
	"go.uber.org/zap"

	"github.com/volunteerhub/volunteer-hub-api/internal/domain"
)

// Notifier is told about approve/reject decisions after they commit. Calls
// are fire-and-forget; a failed notification never rolls back a transition.
type Notifier interface {
	EventDecided(event domain.Event, decidedBy uint)
	RegistrationDecided(registration domain.Registration, decidedBy uint)
}

// LogNotifier is the default Notifier; it only records the decision.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) EventDecided(event domain.Event, decidedBy uint) {
	zap.L().Info("event decided",
		zap.Uint("event_id", event.ID),
		zap.String("status", string(event.Status)),
		zap.Uint("decided_by", decidedBy),
	)
}

func (n *LogNotifier) RegistrationDecided(registration domain.Registration, decidedBy uint) {
	zap.L().Info("registration decided",
		zap.Uint("registration_id", registration.ID),
		zap.Uint("event_id", registration.EventID),
		zap.String("status", string(registration.Status)),
		zap.Uint("decided_by", decidedBy),
	)
}
