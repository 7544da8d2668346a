// Package asar reads and writes single-file random-access archives.
//
// An archive is a binary header followed by the concatenated content of
// every packed file:
//
//	[header][file 1][file 2]...[file N]
//
// The header wraps a JSON index tree in two little-endian length-prefixed
// records, so a reader learns the header length from its first 8 bytes.
// Each file entry records its offset relative to the end of the header and
// its size; directories map names to entries.
//
// A [Writer] builds the index as members are added and streams the archive
// on Finalize without buffering member content. A [Reader] loads the header
// through any [RangeSource] and then serves individual files either in one
// range request or as a stream. Sources that only return whole buffers are
// streamed by issuing bounded, sequential range requests.
//
// Reader implements fs.FS and related interfaces for stdlib compatibility.
package asar
