// Package feed holds the contract types shared by the polling pipeline:
// the entry record, fetch and poll results, source priority, and the
// Reader/Sink/Store/Rule ports.
//
// It is a leaf package with no dependencies inside the module, so every
// internal package can import it without forming a cycle with the root
// SDK package, which re-exports these types as its public API.
package feed
