package events

import "sync"

// Subscriber receives a live feed of emitted events.
type Subscriber chan Event

var (
	subMu       sync.RWMutex
	subscribers = make(map[Subscriber]struct{})
)

// Subscribe registers a new live subscriber. The returned channel is
// buffered so a slow consumer cannot stall Emit.
func Subscribe() Subscriber {
	ch := make(Subscriber, 64)
	subMu.Lock()
	subscribers[ch] = struct{}{}
	subMu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func Unsubscribe(sub Subscriber) {
	subMu.Lock()
	delete(subscribers, sub)
	subMu.Unlock()
	close(sub)
}

// SubscriberCount returns the current number of live subscribers.
func SubscriberCount() int {
	subMu.RLock()
	defer subMu.RUnlock()
	return len(subscribers)
}

// broadcast fans an event out to every subscriber. Non-blocking: a full
// buffer means the event is dropped for that subscriber only.
func broadcast(e Event) {
	subMu.RLock()
	defer subMu.RUnlock()
	for sub := range subscribers {
		select {
		case sub <- e:
		default:
		}
	}
}

// RecentEvents returns the newest n buffered events, oldest-first. With
// n <= 0 or more than are buffered, everything is returned.
func RecentEvents(n int) []Event {
	all := buffer.Snapshot()
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}
