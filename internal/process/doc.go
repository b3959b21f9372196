// Package process supervises external tool invocations.
//
// A Supervisor spawns one executable per call and hands back an owned Handle
// exposing both output streams, the exit code, cooperative termination with
// a grace period, and exactly-once release. Drain reads both streams
// concurrently so a tool that fills one pipe while the caller waits on the
// other can never deadlock.
//
// On unix the child runs in its own process group and termination signals
// the whole group, so helpers spawned by the tool (ffmpeg, python workers)
// stop with it.
package process
