// Package notify surfaces user-facing messages and the fallback dialog.
//
// A Notifier shows short messages. A Notification may carry an Action, run
// when the user acts on it; hosts that cannot ask the user run it right away
// (see LogNotifier.AutoAct). A Presenter shows a block of copyable text, the
// fallback commands.
package notify
