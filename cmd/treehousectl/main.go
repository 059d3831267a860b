// Command treehousectl is a local smoke-test harness over engine.Engine's
// submit/subscribe/undo surface, grounded on the teacher's cmd/bd: a Cobra
// command tree wired to internal/config for bootstrap and a human vs. JSON
// output toggle. It is not an RPC transport — every command runs the
// engine in-process and exits.
package main

import "os"

func main() {
	err := Execute()
	releaseStoreLock()
	if err != nil {
		os.Exit(1)
	}
}
