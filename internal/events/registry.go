package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// story
	"story.loaded":    {},
	"story.validated": {},
	"story.converted": {},
	"story.migrated":  {},

	// session
	"session.started":   {},
	"session.choice":    {},
	"session.ended":     {},
	"session.restarted": {},
	"session.restored":  {},
	"session.cleared":   {},

	// saves
	"save.created":  {},
	"save.loaded":   {},
	"save.deleted":  {},
	"save.exported": {},
	"save.imported": {},

	// system
	"system.startup":  {},
	"system.shutdown": {},
	"system.error":    {},
}

// ValidateName rejects event names outside the registry, keeping the
// telemetry vocabulary closed.
func ValidateName(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
