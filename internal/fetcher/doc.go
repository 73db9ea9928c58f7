// Package fetcher retrieves extension source trees into the store. Git
// sources are cloned via the git binary on PATH; dir:// sources copy a
// local tree. Fetches for independent extensions run concurrently on a
// bounded worker pool, each with one automatic retry on transient failure,
// and a failure on one extension never aborts its siblings. Build steps
// run afterwards in resolver order.
package fetcher
