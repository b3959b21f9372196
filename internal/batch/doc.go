// Package batch sequences external tool runs over a list of files.
//
// A Batch owns an ordered collection of jobs. Start launches a fixed pool of
// workers (one by default) that claim queued jobs strictly in insertion
// order, spawn the configured tool for each through a process.Launcher,
// stream its output into the job's progress parser, and publish every state
// change to an events.Channel. Failures are recorded on the job and never
// abort the batch.
//
// Stop is cooperative: it sets a monotonic flag, terminates in-flight tools
// with a grace period, and fails every job that has not been attempted with
// StopReason. A stopped batch must be Reset before it can run again.
package batch
