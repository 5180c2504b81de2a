package bot

import (
	"context"
	"fmt"
	"io"
	"os"
)

// TenantResolver maps a platform channel to the tenant it belongs to.
// Multi-tenant identity is owned by the surrounding deployment; the daemon
// only needs a lookup. Events from unmapped channels are dropped.
type TenantResolver interface {
	TenantForChannel(channelID string) (uint, bool)
}

// Daemon pumps inbound adapter events through the dispatcher. Events for
// the same chat arrive in order from the adapter, so dispatch is sequential
// per conversation as the flows require.
type Daemon struct {
	adapter    Adapter
	dispatcher *Dispatcher
	tenants    TenantResolver
	out        io.Writer
}

// DaemonOpts holds parameters for creating a Daemon.
type DaemonOpts struct {
	Adapter    Adapter
	Dispatcher *Dispatcher
	Tenants    TenantResolver
	Out        io.Writer // defaults to os.Stdout
}

// NewDaemon creates a Daemon.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.Adapter == nil {
		return nil, fmt.Errorf("bot: daemon: adapter is required")
	}
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("bot: daemon: dispatcher is required")
	}
	if opts.Tenants == nil {
		return nil, fmt.Errorf("bot: daemon: tenant resolver is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Daemon{
		adapter:    opts.Adapter,
		dispatcher: opts.Dispatcher,
		tenants:    opts.Tenants,
		out:        out,
	}, nil
}

// Run connects the adapter and processes events until ctx is cancelled or
// the adapter closes its event channel.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("bot: daemon connect: %w", err)
	}
	defer d.adapter.Close()

	events, err := d.adapter.Listen(ctx)
	if err != nil {
		return fmt.Errorf("bot: daemon listen: %w", err)
	}

	fmt.Fprintf(d.out, "bot: daemon running\n")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			tenantID, found := d.tenants.TenantForChannel(ev.ChatID)
			if !found {
				fmt.Fprintf(d.out, "bot: daemon: drop event from unmapped channel %s\n", ev.ChatID)
				continue
			}
			ev.TenantID = tenantID
			d.dispatcher.Dispatch(ctx, ev)
		}
	}
}

// StaticTenants is a TenantResolver over a fixed channel→tenant map.
type StaticTenants map[string]uint

// TenantForChannel implements TenantResolver.
func (s StaticTenants) TenantForChannel(channelID string) (uint, bool) {
	id, ok := s[channelID]
	return id, ok
}
