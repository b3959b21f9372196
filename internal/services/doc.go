// Package services defines shared error markers and context helpers consumed
// by the batch coordinator, the process supervisor and the CLI.
//
// Wrap tags failures with a sentinel so callers can classify them with
// errors.Is, and Hint turns that classification into an operator-facing next
// step for log output. The context helpers stamp run IDs, job paths and worker
// slots so the logging package can attach them to every line.
package services
