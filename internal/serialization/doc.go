// Package serialization implements the binary graph artifact format
// (model.pgraph) written by the graph backend.
//
// The format keeps the graph definition as a JSON header and the values of
// Const and Variable nodes as raw tensor data, protected by a SHA-256
// checksum:
//
//	Format Structure:
//	  [0x00 4 bytes: Magic "PGRF"]
//	  [0x04 4 bytes: Version (uint32 LE)]
//	  [0x08 4 bytes: Flags (uint32 LE)]
//	  [0x0C 4 bytes: Reserved]
//	  [0x10 8 bytes: Header Size (uint64 LE)]
//	  [0x18 8 bytes: Data Size (uint64 LE)]
//	  [0x20 32 bytes: SHA-256 of the data section]
//	  [Header: JSON nodes + tensor metadata]
//	  [Padding to 64 bytes]
//	  [Tensor data]
//
// Fixed-size tensors are stored little-endian. String tensors store each
// element as a uint32 LE length followed by its bytes.
//
// Example usage:
//
//	data, err := serialization.Marshal(g, map[string]string{"source": "builder"})
//	...
//	g, header, err := serialization.Unmarshal(data, serialization.ReaderOptions{})
package serialization
