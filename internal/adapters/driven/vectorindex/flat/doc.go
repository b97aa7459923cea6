// Package flat provides an exact, in-process vector index.
//
// The index is loaded once from a single binary file and never mutated.
// Every search scores all vectors, which is fast enough for catalogs of a
// few hundred thousand products and gives deterministic, exact results.
//
// # File Format
//
// All integers and floats are little-endian:
//
//	magic      [8]byte  "VTRNIDX1"
//	metric     uint32   0 = inner product, 1 = squared L2
//	dimensions uint32
//	count      uint64
//	vectors    count*dimensions float32, row-major
package flat
