// Package commentbridge rebuilds parsed forum comments inside a host object
// model.
//
// A parsed comment carries its raw text, its rendered text and a list of
// spannables (quotes, links, spoilers, greentext). The bridge walks that tree
// and constructs the equivalent object graph through a small capability
// interface, so the same mapping drives a JVM-style object heap or a
// WebAssembly guest's linear memory.
//
// # Architecture Overview
//
//	commentbridge/       Root package tying a mapper to the built-in hosts
//	├── comment/         Parsed comment model and its JSON form
//	├── descriptor/      Class names and type descriptors
//	├── schema/          Host-side class model of a comment
//	├── host/            Capability interface a host runtime implements
//	├── mapper/          Comment to host object graph conversion
//	├── heap/            In-process object heap host
//	├── linear/          wazero linear memory host with canonical ABI layout
//	├── errors/          Structured error types for debugging
//	└── cmd/commentmap/  CLI and TUI for inspecting mapped comments
//
// # Quick Start
//
//	b, err := commentbridge.New(commentbridge.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	rt, ref, err := b.ToHeap(parsed)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//	fmt.Println(rt.Describe(ref))
//
// # Failure Semantics
//
// Mapping either returns the composite or fails with a structured
// *errors.Error. On failure every object created so far is handed back to
// the host when it implements host.Releaser.
//
// # Thread Safety
//
// Bridge and Mapper are safe for concurrent use, as are the heap and linear
// runtimes. A linear Session belongs to a single goroutine.
//
// # Memory Model
//
// The linear host allocates with a bump pointer. WASM linear memory can only
// grow, never shrink; Runtime.Reset rewinds the allocator and invalidates
// every open session.
package commentbridge
