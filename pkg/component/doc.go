/*
Package component is the worker side of a Warden driver.

A component is an Entry registered under a name. The owning process launches
workers by re-executing its own binary with WARDEN_COMPONENT set; Init, called
first thing in main (or TestMain), detects that and turns the process into a
worker that runs the entry against its stdin/stdout:

	func main() {
		if component.Init() {
			return
		}
		// ... normal owner-side program
	}

An Entry receives the two channel ends as its only inputs. It reads commands
from in until it is closed (the owner went away) or ctx is cancelled, and
writes responses to out. Entries must not write to os.Stdout: it carries the
response stream. Diagnostics belong on stderr, which the owner forwards to
its logger.
*/
package component
