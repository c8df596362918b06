package status

import "sync"

// Source returns a point-in-time copy of a workflow's status. It must be
// safe to call concurrently with the workflow's own progress.
type Source func() any

// Register exposes live, read-only status per running workflow instance.
// Coordinators register before their first suspension point; external
// pollers read without blocking the coordinator. Different workflow types
// may register different status shapes side by side.
type Register struct {
	mu      sync.RWMutex
	sources map[string]Source
}

func NewRegister() *Register {
	return &Register{sources: make(map[string]Source)}
}

// Register installs the status source for an instance, replacing any
// previous registration for the same id.
func (r *Register) Register(instanceID string, src Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[instanceID] = src
}

// Unregister removes an instance's source.
func (r *Register) Unregister(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sources, instanceID)
}

// Snapshot returns the current status of an instance, if registered.
func (r *Register) Snapshot(instanceID string) (any, bool) {
	r.mu.RLock()
	src, ok := r.sources[instanceID]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return src(), true
}

// Instances lists currently registered instance ids.
func (r *Register) Instances() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sources))
	for id := range r.sources {
		ids = append(ids, id)
	}
	return ids
}
