// Package cache provides digest-addressed caching for archive readers.
//
// This package is an optional enhancement to the core library. A Cache
// stores whole files keyed by their integrity digest and decoded-ready
// archive headers keyed by source identity, so repeated reads of remote
// archives avoid network round trips. A BlockCache instead wraps a range
// source and caches fixed-size blocks of the raw archive bytes.
package cache
