package chat

// Registry maps live connections to their joined User. Iteration follows
// join order, which makes presence lists and first-match name lookups
// deterministic.
type Registry struct {
	users map[string]User
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		users: make(map[string]User),
	}
}

// Put stores u under its connection id. A connection that joins again keeps
// its original position in join order. It reports whether an existing entry
// was replaced.
func (r *Registry) Put(u User) bool {
	_, exists := r.users[u.ConnectionID]
	r.users[u.ConnectionID] = u
	if !exists {
		r.order = append(r.order, u.ConnectionID)
	}
	return exists
}

// Get returns the user joined on connID.
func (r *Registry) Get(connID string) (User, bool) {
	u, ok := r.users[connID]
	return u, ok
}

// Remove deletes the user joined on connID and returns it.
func (r *Registry) Remove(connID string) (User, bool) {
	u, ok := r.users[connID]
	if !ok {
		return User{}, false
	}
	delete(r.users, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return u, true
}

// FindByName returns the earliest-joined user with the given display name.
// Names are not unique, so later users sharing the name are unreachable by
// name.
func (r *Registry) FindByName(name string) (User, bool) {
	for _, id := range r.order {
		if u := r.users[id]; u.DisplayName == name {
			return u, true
		}
	}
	return User{}, false
}

// NameTaken reports whether a connection other than except uses name.
func (r *Registry) NameTaken(name, except string) bool {
	for _, id := range r.order {
		if id != except && r.users[id].DisplayName == name {
			return true
		}
	}
	return false
}

// Users returns a snapshot of all users in join order. The result is never
// nil.
func (r *Registry) Users() []User {
	users := make([]User, 0, len(r.order))
	for _, id := range r.order {
		users = append(users, r.users[id])
	}
	return users
}

// ConnectionIDs returns the joined connection ids in join order.
func (r *Registry) ConnectionIDs() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of joined users.
func (r *Registry) Len() int {
	return len(r.order)
}
