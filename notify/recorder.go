package notify

import "sync"

// Recorder collects notifications and presented text. Hosts without a UI and
// tests use it.
type Recorder struct {
	mu        sync.Mutex
	notes     []Notification
	presented []string

	// AutoAct runs a notification's action when it is recorded.
	AutoAct bool
}

// Notify implements Notifier.
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	r.notes = append(r.notes, n)
	act := r.AutoAct
	r.mu.Unlock()

	if act && n.Action != nil {
		n.Action()
	}
}

// Present implements Presenter.
func (r *Recorder) Present(_, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presented = append(r.presented, text)
	return nil
}

// Notifications returns a copy of the recorded notifications.
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notes...)
}

// Presented returns a copy of the presented texts.
func (r *Recorder) Presented() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.presented...)
}

// Reset clears everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = nil
	r.presented = nil
}
