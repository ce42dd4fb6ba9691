// Package file provides the TOML-backed ConfigStore.
//
// Keys use dot notation ("storage.vector"). On disk they are written as
// nested tables, so the file reads naturally:
//
//	[storage]
//	vector = "qdrant"
//	qdrant_url = "localhost:6334"
package file
