package notify

import (
	"context"
	"sync"

	"github.com/oshokin/safety-tracker/internal/domain/tracking"
	"github.com/oshokin/safety-tracker/internal/logger"
)

// LocalNotifier presents local notifications through the logger and keeps
// the set of outstanding notifications per person so clearing is meaningful.
// The platform notification center is an external collaborator; this adapter
// is what the daemon ships with.
type LocalNotifier struct {
	// mu protects active.
	mu sync.Mutex
	// active holds outstanding notification kinds per person ID.
	active map[string][]tracking.AlertKind
}

// NewLocalNotifier creates an empty notifier.
func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{
		active: make(map[string][]tracking.AlertKind),
	}
}

// Send presents one notification and records it as outstanding.
func (n *LocalNotifier) Send(ctx context.Context, kind tracking.AlertKind, snapshot tracking.PersonSnapshot) {
	n.mu.Lock()
	n.active[snapshot.ID] = append(n.active[snapshot.ID], kind)
	n.mu.Unlock()

	logger.WarnKV(ctx, "Local notification",
		"person_id", snapshot.ID,
		"person_name", snapshot.Name,
		"kind", kind.String(),
		"stationary_for", snapshot.StationaryFor.String())
}

// Clear removes every outstanding notification for the person.
func (n *LocalNotifier) Clear(ctx context.Context, personID string) {
	n.mu.Lock()
	removed := len(n.active[personID])
	delete(n.active, personID)
	n.mu.Unlock()

	if removed == 0 {
		return
	}

	logger.InfoKV(ctx, "Local notifications cleared",
		"person_id", personID, "removed", removed)
}

// Active returns the outstanding notification kinds for the person.
func (n *LocalNotifier) Active(personID string) []tracking.AlertKind {
	n.mu.Lock()
	defer n.mu.Unlock()

	kinds := make([]tracking.AlertKind, len(n.active[personID]))
	copy(kinds, n.active[personID])

	return kinds
}
