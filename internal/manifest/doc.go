// Package manifest handles parsing and validation of Loft extension
// manifests. A manifest is an ordered YAML list of extension specs (name,
// source, activation trigger, dependencies, build step, config payload).
// Parsing enforces the structural invariants the rest of the system relies
// on: unique names and a single source per name.
package manifest
