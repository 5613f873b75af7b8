// Package torproc manages short-lived tor subprocesses used to give
// anonymous browser stages a fresh exit circuit per asset.
package torproc
