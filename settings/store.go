package settings

import "sync"

// Store holds the live settings. Reads return a copy; writes notify watchers.
type Store struct {
	mu       sync.RWMutex
	current  Settings
	watchers []func(Settings)
}

// NewStore creates a store holding s.
func NewStore(s Settings) *Store {
	return &Store{current: s}
}

// Snapshot returns a copy of the current settings.
func (st *Store) Snapshot() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current
}

// Update applies fn to the settings and notifies watchers with the result.
func (st *Store) Update(fn func(*Settings)) Settings {
	st.mu.Lock()
	fn(&st.current)
	s := st.current
	watchers := append([]func(Settings){}, st.watchers...)
	st.mu.Unlock()

	for _, w := range watchers {
		w(s)
	}
	return s
}

// SetProxyURL points the proxy transport at u.
func (st *Store) SetProxyURL(u string) {
	st.Update(func(s *Settings) { s.ProxyURL = u })
}

// Watch registers fn to be called after every Update.
func (st *Store) Watch(fn func(Settings)) {
	st.mu.Lock()
	st.watchers = append(st.watchers, fn)
	st.mu.Unlock()
}
