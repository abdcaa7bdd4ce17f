// Package domain contains the core types, ports, and sentinel errors of the
// livestream coordination core. It has no dependencies on infrastructure
// packages; everything here is consumed through interfaces.
package domain
