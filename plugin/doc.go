// Package plugin is the heartbeat runtime a host embeds.
//
// A Runtime owns the rate gate, the dispatcher with its transports, and the
// relay manager. Start attaches it to a Host's interaction events and starts
// the beacon and, when enabled, the relay. Every interaction that passes the
// gate is dispatched; a dispatch where every transport failed raises one
// notification whose action shows the fallback commands. Stop detaches and
// tears everything down in order.
//
//	rt, err := plugin.New(plugin.Options{Settings: store, Notifier: n, Presenter: p})
//	if err != nil {
//	    return err
//	}
//	if err := rt.Start(ctx, host); err != nil {
//	    return err
//	}
//	defer rt.Stop(context.Background())
package plugin
