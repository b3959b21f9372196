// Package main hosts the Sightline CLI entrypoint and command graph.
//
// The deface and transcribe commands are the polling consumer of a batch:
// they start the coordinator, drain its event channel on a ticker and render
// per-file progress until the batch finishes or the user interrupts it.
// Interrupting a run stops the batch cooperatively; the running tool gets the
// configured grace period before it is killed.
//
// Keep this package lean: behaviour lives in the internal packages and the
// commands here only wire configuration, logging and output together.
package main
