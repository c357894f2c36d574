// Package sigstruct reads the fixed-offset fields this tooling needs from the
// signature structure embedded in a TDX module blob.
//
// # Blob Layout
//
// Every module blob carries a signature structure (sigstruct) at byte offset
// 0x1000. Only two regions of it are read here; all other fields, including
// the cryptographic ones, are ignored:
//
//	sigstruct+12    uint32 LE   module type flags (bit 31 = debug build)
//	sigstruct+1024  uint32 LE   number of CPUID table entries N
//	sigstruct+1028  N x uint32 LE  supported CPUID.1.EAX values
//
// Each CPUID table entry is masked to clear its low 4 bits (the CPU stepping)
// before use, yielding the supported CPU family-model set.
//
// # Usage
//
//	hdr, err := sigstruct.Parse(fs, "joined_files/1.5/tdx_module_1.5.12.blob")
//	if err != nil {
//	    // candidate blob is unusable, not fatal to the run
//	}
//	if hdr.Type.Debug() { ... }
//
// # Error Handling
//
// Any short read, truncated table or I/O failure yields an error; callers
// must treat that as insufficient data and reject the blob rather than guess.
// This package performs no validation of the surrounding signature fields.
package sigstruct
