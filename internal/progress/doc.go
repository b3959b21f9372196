// Package progress turns tqdm-style progress lines emitted by external tools
// into structured samples.
//
// A Parser is owned by a single job and keeps the last successfully parsed
// numbers so that a display can keep showing them while the tool prints
// unrelated output. The formatting helpers on Sample produce the exact strings
// rendered by front-ends (ETA, elapsed time, rate) and never divide by zero.
package progress
