// Package lsp hosts the heartbeat runtime inside an editor as a language
// server. Opening, editing and saving a document count as interactions.
//
// The Host also serves as the runtime's notifier and presenter:
// notifications become window/showMessage, a notification with an action
// becomes window/showMessageRequest, and fallback commands go to
// window/logMessage.
package lsp

import (
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"github.com/vinayprograms/wakabeat/logging"
	"github.com/vinayprograms/wakabeat/notify"
)

// ActionTitle labels the button of a notification with an action.
const ActionTitle = "Show fallback commands"

const (
	methodDidOpen            = "textDocument/didOpen"
	methodDidChange          = "textDocument/didChange"
	methodDidSave            = "textDocument/didSave"
	methodShowMessage        = "window/showMessage"
	methodShowMessageRequest = "window/showMessageRequest"
	methodLogMessage         = "window/logMessage"
)

// Host is a glsp language server that reports document activity.
type Host struct {
	name    string
	version string
	logger  *logging.Logger

	mu        sync.Mutex
	listeners map[int]func()
	nextID    int
	onStop    []func()

	clientMu sync.Mutex
	notifyFn glsp.NotifyFunc
	callFn   glsp.CallFunc

	handler protocol.Handler
}

// New creates a host announcing itself as name/version.
func New(name, version string, logger *logging.Logger) *Host {
	if logger == nil {
		logger = logging.Discard()
	}
	h := &Host{
		name:      name,
		version:   version,
		logger:    logger.WithComponent("lsp"),
		listeners: make(map[int]func()),
	}
	h.handler = protocol.Handler{
		Initialize:            h.initialize,
		Initialized:           h.initialized,
		Shutdown:              h.shutdown,
		SetTrace:              h.setTrace,
		TextDocumentDidOpen:   h.didOpen,
		TextDocumentDidChange: h.didChange,
		TextDocumentDidSave:   h.didSave,
	}
	return h
}

// Handler returns the protocol handler.
func (h *Host) Handler() *protocol.Handler {
	return &h.handler
}

// RunStdio serves the protocol on stdin/stdout until the client exits.
func (h *Host) RunStdio() error {
	return server.NewServer(&h.handler, h.name, false).RunStdio()
}

// OnShutdown registers fn to run when the client sends shutdown.
func (h *Host) OnShutdown(fn func()) {
	h.mu.Lock()
	h.onStop = append(h.onStop, fn)
	h.mu.Unlock()
}

// RegisterInteractionListener implements plugin.Host.
func (h *Host) RegisterInteractionListener(fn func()) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

func (h *Host) interaction(ctx *glsp.Context, method, uri string) {
	h.remember(ctx)
	h.logger.Debug("interaction", map[string]interface{}{"method": method, "uri": uri})

	h.mu.Lock()
	fns := make([]func(), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// remember keeps the client callbacks for notifications sent outside a request.
func (h *Host) remember(ctx *glsp.Context) {
	if ctx == nil {
		return
	}
	h.clientMu.Lock()
	if ctx.Notify != nil {
		h.notifyFn = ctx.Notify
	}
	if ctx.Call != nil {
		h.callFn = ctx.Call
	}
	h.clientMu.Unlock()
}

func (h *Host) client() (glsp.NotifyFunc, glsp.CallFunc) {
	h.clientMu.Lock()
	defer h.clientMu.Unlock()
	return h.notifyFn, h.callFn
}

func (h *Host) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	h.remember(ctx)
	if params.ClientInfo != nil {
		h.logger.Info("client_connected", map[string]interface{}{"client": params.ClientInfo.Name})
	}

	capabilities := h.handler.CreateServerCapabilities()
	capabilities.TextDocumentSync = protocol.TextDocumentSyncKindIncremental

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    h.name,
			Version: &h.version,
		},
	}, nil
}

func (h *Host) initialized(ctx *glsp.Context, _ *protocol.InitializedParams) error {
	h.remember(ctx)
	return nil
}

func (h *Host) shutdown(_ *glsp.Context) error {
	h.mu.Lock()
	fns := h.onStop
	h.onStop = nil
	h.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return nil
}

func (h *Host) setTrace(_ *glsp.Context, _ *protocol.SetTraceParams) error {
	return nil
}

func (h *Host) didOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	h.interaction(ctx, methodDidOpen, params.TextDocument.URI)
	return nil
}

func (h *Host) didChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	h.interaction(ctx, methodDidChange, params.TextDocument.URI)
	return nil
}

func (h *Host) didSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	h.interaction(ctx, methodDidSave, params.TextDocument.URI)
	return nil
}

// Notify implements notify.Notifier.
func (h *Host) Notify(n notify.Notification) {
	notifyFn, callFn := h.client()

	msgType := protocol.MessageTypeInfo
	if n.Error {
		msgType = protocol.MessageTypeError
	}
	message := n.Title + ": " + n.Body

	switch {
	case n.Action != nil && callFn != nil:
		go func() {
			var choice *protocol.MessageActionItem
			callFn(methodShowMessageRequest, protocol.ShowMessageRequestParams{
				Type:    msgType,
				Message: message,
				Actions: []protocol.MessageActionItem{{Title: ActionTitle}},
			}, &choice)
			if choice != nil && choice.Title == ActionTitle {
				n.Action()
			}
		}()
	case notifyFn != nil:
		notifyFn(methodShowMessage, protocol.ShowMessageParams{Type: msgType, Message: message})
		h.runAction(n)
	default:
		h.logger.Info(n.Body, map[string]interface{}{"title": n.Title})
		h.runAction(n)
	}
}

// runAction runs n's action straight away when the client cannot offer it as
// a choice, so its output still reaches the log channel.
func (h *Host) runAction(n notify.Notification) {
	if n.Action != nil {
		n.Action()
	}
}

// Present implements notify.Presenter.
func (h *Host) Present(title, text string) error {
	notifyFn, _ := h.client()
	if notifyFn == nil {
		h.logger.Warn(title + "\n" + text)
		return nil
	}
	notifyFn(methodLogMessage, protocol.LogMessageParams{
		Type:    protocol.MessageTypeInfo,
		Message: title + "\n\n" + text,
	})
	return nil
}
