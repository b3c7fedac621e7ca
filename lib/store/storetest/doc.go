// Package storetest provides the conformance suite shared by all
// store.IStore implementations.
//
// A backend test calls RunStoreTests with a factory that returns a fresh,
// empty store per sub test. Tests for the optional store.ICreator
// capability are skipped for stores that do not offer it.
package storetest
