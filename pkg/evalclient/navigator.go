package evalclient

import "sync"

// Navigator is the presentation layer seen from the client: it knows the current page
// and can send the user to another one. It is used to redirect to the login page when
// the session expires.
type Navigator interface {
	CurrentPath() string
	Navigate(path string)
}

// PathNavigator is a Navigator that only records the current path. Callers that have no
// pages of their own check Redirected after a failed request.
type PathNavigator struct {
	mu         sync.RWMutex
	current    string
	redirected bool
}

func NewPathNavigator(current string) *PathNavigator {
	return &PathNavigator{current: current}
}

func (n *PathNavigator) CurrentPath() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.current
}

func (n *PathNavigator) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = path
	n.redirected = true
}

// Redirected reports whether Navigate was called since the last call to Redirected.
func (n *PathNavigator) Redirected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	r := n.redirected
	n.redirected = false
	return r
}
