package notifier

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"notifylog/internal/mail"
)

// Registry holds the registered notification types. It is safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	items map[string]Notification
}

func NewRegistry() *Registry {
	return &Registry{items: map[string]Notification{}}
}

// Register adds n. Names are case-sensitive and must be unique; recipients
// are treated as a set.
func (r *Registry) Register(n Notification) error {
	n.Name = strings.TrimSpace(n.Name)
	if n.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidNotification)
	}
	to, err := mail.NormalizeRecipients(n.Recipients)
	if err != nil {
		return fmt.Errorf("%w: notification %q: %v", ErrInvalidAddress, n.Name, err)
	}
	if len(to) == 0 {
		return fmt.Errorf("%w: notification %q has no recipients", ErrInvalidNotification, n.Name)
	}
	n.Recipients = to

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[n.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateNotification, n.Name)
	}
	r.items[n.Name] = n
	return nil
}

// Resolve returns a copy of the named notification.
func (r *Registry) Resolve(name string) (Notification, bool) {
	r.mu.RLock()
	n, ok := r.items[name]
	r.mu.RUnlock()
	if !ok {
		return Notification{}, false
	}
	return n.clone(), true
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.items))
	for k := range r.items {
		out = append(out, k)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
