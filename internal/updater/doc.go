// Package updater checks GitHub for newer releases of the CLI itself.
// Results are cached on disk so routine commands never hit the network
// more than once per day. Extensions update through the fetcher; this
// package only covers the loft binary.
package updater
