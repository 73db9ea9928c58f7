// Package activator decides when each registered extension loads and
// guarantees its setup entry point runs at most once. Eager extensions
// load during the initial pass in resolver order; deferred extensions
// load the first time their trigger predicate matches a host event.
// Setup failures are contained: the extension is marked failed and the
// host continues without it.
package activator
