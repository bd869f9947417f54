/*
Package warden supervises components that run in their own operating-system
process.

A Driver owns one component. It launches the component as a worker process,
talks to it over two FIFO channels (commands out, responses in), watches that
it stays alive and restarts it according to a keepalive policy. Named events
("signals") published on a bus are routed to the driver whose name matches
the signal's component ID.

# Components

A component is a function registered by name in the worker binary:

	func init() {
		component.Register("physics", func(ctx context.Context, in <-chan domain.Command, out chan<- domain.Response) error {
			for cmd := range in {
				out <- domain.Callback("on_"+strings.ToLower(cmd.Name), cmd.Params)
			}
			return nil
		})
	}

Workers are the host binary itself, re-executed with WARDEN_COMPONENT set.
Call component.Init first thing in main (and in TestMain):

	func main() {
		component.Init()
		...
	}

# Usage

	d, err := warden.New("physics", "physics",
		warden.WithKeepAlive(domain.KeepAlivePolicy{Always: true}),
		warden.WithScriptRunner(scripts),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer d.Close(context.Background())

	bus.Default().Publish(ctx, domain.Signal{ComponentID: "physics", Data: "JUMP|5"})

The worker receives Command{Name: "JUMP", Params: "5"}. A Callback response
runs the named script through the ScriptRunner; an Error response is shown
through the Notifier as "Error in physics component: <message>".

# Restarts

Commands queued while the worker is down stay queued and are delivered to
the next instance. With KeepAlive.Always a dead worker is restarted on the
next poll; with KeepAlive.OnOutgoing only while commands are waiting.
Without either, a crashed driver stays crashed until Kickstart is called.
*/
package warden
