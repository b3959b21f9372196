// Package logs reads the Sightline log file for the `sightline logs` command.
//
// Last returns the trailing lines with bounded memory, ReadFrom picks up
// complete lines appended after a byte offset, and Follow polls the file
// until its context ends. A file that shrinks below the remembered offset is
// treated as rotated and read again from the start.
package logs
