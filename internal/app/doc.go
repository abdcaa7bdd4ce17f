// Package app is the application layer: the only component that references
// multiple domain components. It orchestrates ingest lifecycle signals and
// boot-time recovery.
package app
