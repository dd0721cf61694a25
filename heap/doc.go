// Package heap is an in-process reference host runtime.
//
// It models the parts of a managed runtime that native code sees through
// host.Env: a registry of classes and interfaces, and a heap of instances,
// object arrays and strings addressed by host.Ref.
//
// # Classes
//
// Classes are registered from schema definitions:
//
//	rt := heap.New(heap.Config{})
//	if err := rt.DefineAll(schema.Comment(ns)); err != nil {
//	    return err
//	}
//
// Interfaces must be defined before the classes implementing them.
// java/lang/String is always present.
//
// # Type Checks
//
// Every operation is checked the way a managed runtime would check it:
//
//   - constructor arguments must match the method descriptor
//   - fields must exist with an identical descriptor and accept the value
//   - array stores must be in range and the element must implement the
//     array's element class
//
// Failures are *errors.Error values with PhaseHost.
//
// # Lifecycle
//
// Objects stay live until Release or Close. Observers registered with
// Subscribe see every allocation and release. Config limits let tests
// simulate exhausted hosts.
package heap
