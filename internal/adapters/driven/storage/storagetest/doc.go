// Package storagetest provides conformance suites that every
// driven.MetadataStore and driven.VectorIndex adapter must pass.
package storagetest
