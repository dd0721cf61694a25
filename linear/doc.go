// Package linear is a host runtime whose objects live in WebAssembly linear
// memory.
//
// A Runtime instantiates a memory-only core module with wazero and binds the
// comment model classes to Component Model types:
//
//	variant post-comment-spannable-data {
//	  quote(s64), dead-quote(s64), url-link(string), board-link(string),
//	  search-link(tuple<string, string>), thread-link(tuple<string, s64, s64>),
//	  spoiler, green-text,
//	}
//	record post-comment-parsed {
//	  comment-text-raw: string,
//	  comment-text-parsed: string,
//	  spannable-list: list<post-comment-spannable-data>,
//	}
//
// Sessions implement host.Env on top of that binding, writing every object in
// canonical ABI layout so a guest can read the composite directly:
//
//	rt, _ := linear.New(ctx, linear.Config{}, schema.Comment(ns))
//	defer rt.Close(ctx)
//
//	s := rt.NewSession()
//	ref, err := mapper.Map(s, parsed)
//	addr, err := s.Address(ref)  // pass addr to the guest
//	back, err := s.Lift(addr)    // or read it back
//
// # Memory
//
// Allocation is a bump pointer over guest memory that grows the memory as
// needed, up to Config.MemoryLimitPages. Release only forgets refs; memory is
// reclaimed by Runtime.Reset, which invalidates every open session.
//
// Lists store variants inline. Constructing a case object writes a standalone
// variant value; storing it into a list copies those bytes into the slot.
// Slots start with an out-of-range discriminant, and Address refuses a record
// whose lists still have unfilled slots.
package linear
