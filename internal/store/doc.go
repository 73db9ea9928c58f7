// Package store manages the on-disk area holding installed extension
// source trees. Trees are staged under tmp/ and promoted into ext/ with a
// single rename, so a crash mid-install never leaves a partially written
// extension visible. Per-extension metadata (resolved ref, install time,
// build status) lives under meta/ with the same write discipline.
package store
