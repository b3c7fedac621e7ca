// Package cmd implements the dlock command-line interface.
//
// The package is organized into several subpackages:
//
//   - lock: acquire, renew, release and check locks, and run a command
//     while holding one
//   - record: inspect and force-delete the stored lock records
//   - serve: start the dLock storage server
//   - util: shared flag handling and the backend factory (internal use)
//
// See dlock -help for a list of all commands.
package cmd
