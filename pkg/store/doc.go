// Package store implements the constant/node store (§4.2): a copy-on-publish
// snapshot for wait-free reads, backed by bbolt for durability across a
// single process restart. Keys are (tag, ref) pairs; ref is a workflow
// reference, tag is one of "deployment", "links" or "topology".
package store
