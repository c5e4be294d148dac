// Package notify holds the notification subscription registry and the
// fan-out delivery path for job change events.
package notify

import "sync"

// Registry maps client IDs to the set of messenger users subscribed to
// that client's job updates. All operations are idempotent and safe
// for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	subs map[string]map[int64]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]map[int64]struct{})}
}

// Subscribe adds the recipient to the client's subscriber set.
func (r *Registry) Subscribe(clientID string, recipientID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.subs[clientID]
	if !ok {
		set = make(map[int64]struct{})
		r.subs[clientID] = set
	}
	set[recipientID] = struct{}{}
}

// Unsubscribe removes the recipient from the client's subscriber set.
// Empty sets are dropped entirely.
func (r *Registry) Unsubscribe(clientID string, recipientID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.subs[clientID]
	if !ok {
		return
	}
	delete(set, recipientID)
	if len(set) == 0 {
		delete(r.subs, clientID)
	}
}

// UnsubscribeAll removes the recipient from every client's subscriber
// set. Used on logout and when the channel reports the recipient gone.
func (r *Registry) UnsubscribeAll(recipientID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for clientID, set := range r.subs {
		delete(set, recipientID)
		if len(set) == 0 {
			delete(r.subs, clientID)
		}
	}
}

// RecipientsFor returns the client's subscribers. Unknown clients
// yield an empty slice.
func (r *Registry) RecipientsFor(clientID string) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.subs[clientID]
	recipients := make([]int64, 0, len(set))
	for id := range set {
		recipients = append(recipients, id)
	}
	return recipients
}

// IsSubscribed reports whether the recipient follows the client.
func (r *Registry) IsSubscribed(recipientID int64, clientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.subs[clientID][recipientID]
	return ok
}

// SubscriptionsOf returns the client IDs the recipient follows.
func (r *Registry) SubscriptionsOf(recipientID int64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var clientIDs []string
	for clientID, set := range r.subs {
		if _, ok := set[recipientID]; ok {
			clientIDs = append(clientIDs, clientID)
		}
	}
	return clientIDs
}
