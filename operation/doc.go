// Package operation executes AI-backed metadata operations.
//
// A Manager resolves the adapter for a request's provider, dispatches to the
// Generator registered for the request type and records timing and outcome
// in a per-type metrics table that is also exported to Prometheus. Each
// execution gets an OperationStatus; a retry is a new execution linked with
// RetryOf.
//
// Generators build their prompt from a text/template, make one adapter call
// (knowledge bloom makes one per missing link) and parse the answer:
//
//   - front_matter: a YAML mapping
//   - wikilinks: [[Title]] targets, restricted to known notes when the request
//     carries candidates
//   - ontology: JSON concepts and relations
//   - knowledge_bloom: new notes for links that point nowhere
package operation
