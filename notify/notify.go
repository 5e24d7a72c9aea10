package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/vinayprograms/wakabeat/logging"
)

// Title is used for every wakabeat notification.
const Title = "WakaTime"

// Messages shown by the runtime.
const (
	MsgNoAPIKey        = "No api key for wakatime is setup."
	MsgHeartbeatFailed = "Failed to send heartbeat: request blocked by a content policy or network error. Open the fallback commands to send it by hand."
	MsgRelayFailed     = "Failed to start embedded proxy."
	MsgRelayListening  = "Embedded proxy listening at %s"
	FallbackTitle      = "WakaTime Heartbeat (Fallback)"
)

// Notification is one message for the user.
type Notification struct {
	Title string
	Body  string

	// Error marks failure notifications.
	Error bool

	// Action runs when the user acts on the notification. May be nil.
	Action func()
}

// New creates an informational notification.
func New(body string) Notification {
	return Notification{Title: Title, Body: body}
}

// Newf creates an informational notification with a formatted body.
func Newf(format string, args ...interface{}) Notification {
	return New(fmt.Sprintf(format, args...))
}

// Notifier shows notifications.
type Notifier interface {
	Notify(n Notification)
}

// Presenter shows copyable text, such as the fallback commands.
type Presenter interface {
	Present(title, text string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notification) { f(n) }

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	logger *logging.Logger

	// AutoAct runs a notification's action immediately.
	AutoAct bool
}

// NewLogNotifier creates a notifier logging through logger.
func NewLogNotifier(logger *logging.Logger, autoAct bool) *LogNotifier {
	if logger == nil {
		logger = logging.New()
	}
	return &LogNotifier{logger: logger.WithComponent("notify"), AutoAct: autoAct}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(note Notification) {
	fields := map[string]interface{}{"title": note.Title}
	if note.Error {
		n.logger.Warn(note.Body, fields)
	} else {
		n.logger.Info(note.Body, fields)
	}
	if n.AutoAct && note.Action != nil {
		note.Action()
	}
}

// WriterPresenter writes presented text to w.
type WriterPresenter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterPresenter creates a presenter writing to w.
func NewWriterPresenter(w io.Writer) *WriterPresenter {
	return &WriterPresenter{w: w}
}

// Present implements Presenter.
func (p *WriterPresenter) Present(title, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.w, "%s\n\n%s\n", title, text)
	return err
}
