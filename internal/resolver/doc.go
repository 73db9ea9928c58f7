// Package resolver computes installation order for a manifest. It is a pure
// function over the manifest: dependencies sort before dependents, ties
// among independent extensions break by declaration order, and cycles or
// references to undeclared names are rejected before any I/O happens.
package resolver
