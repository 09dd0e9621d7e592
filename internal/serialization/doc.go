// Package serialization reads and writes the .born checkpoint format.
//
//	Format Structure:
//	  [64 bytes: fixed header]
//	    0x00  Magic "BORN"
//	    0x04  Version (uint32 LE)
//	    0x08  Flags (uint32 LE)
//	    0x10  Header size (uint64 LE)
//	    0x18  Data size (uint64 LE)
//	    0x20  SHA-256 of the data section
//	  [Header: JSON metadata]
//	  [Padding to a 64-byte boundary]
//	  [Tensor data: raw little-endian bytes, in header order]
//
// Tensors are written in sorted name order, so the same state always produces
// the same data section and checksum.
//
// Example usage:
//
//	err := serialization.WriteFile("save/mnistNN.born", state, serialization.Header{
//	    ModelType: "digitnet",
//	})
//
//	reader, err := serialization.OpenFile("save/mnistNN.born")
//	state, err := reader.ReadStateDict(tensor.CPU)
package serialization
