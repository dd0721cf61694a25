package heap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/comment-bridge/host"
)

// ClassName returns the runtime class of ref. For arrays it is the element
// class; use Kind to tell them apart.
func (r *Runtime) ClassName(ref host.Ref) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.objects.get(ref)
	if !ok {
		return "", false
	}
	return o.class.name, true
}

// Kind returns the kind of object behind ref.
func (r *Runtime) Kind(ref host.Ref) (ObjectKind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.objects.get(ref)
	if !ok {
		return 0, false
	}
	return o.kind, true
}

// Field reads a field of an instance.
func (r *Runtime) Field(ref host.Ref, name string) (host.Value, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.objects.get(ref)
	if !ok || o.kind != KindInstance {
		return host.Value{}, false
	}
	v, ok := o.fields[name]
	return v, ok
}

// StringValue returns the contents of a string object.
func (r *Runtime) StringValue(ref host.Ref) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.objects.get(ref)
	if !ok || o.kind != KindString {
		return "", false
	}
	return o.str, true
}

// ArrayLen returns the length of an array object.
func (r *Runtime) ArrayLen(ref host.Ref) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.objects.get(ref)
	if !ok || o.kind != KindArray {
		return 0, false
	}
	return len(o.elems), true
}

// ArrayElement returns the ref stored at index of an array object.
func (r *Runtime) ArrayElement(ref host.Ref, index int) (host.Ref, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.objects.get(ref)
	if !ok || o.kind != KindArray || index < 0 || index >= len(o.elems) {
		return host.Null, false
	}
	return o.elems[index], true
}

// Objects returns every live ref in allocation slot order.
func (r *Runtime) Objects() []host.Ref {
	r.mu.RLock()
	defer r.mu.RUnlock()

	refs := make([]host.Ref, 0, r.objects.len())
	r.objects.each(func(ref host.Ref, _ *object) bool {
		refs = append(refs, ref)
		return true
	})
	return refs
}

// Describe renders the object graph reachable from ref as an indented tree.
//
//	PostCommentParsed#1
//	  commentTextRaw: "hello"
//	  spannableList: IPostCommentSpannableData[1]#4
//	    [0] IPostCommentSpannableData$Quote#5
//	      postNo: 42
func (r *Runtime) Describe(ref host.Ref) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	r.describe(&b, ref, 0, make(map[host.Ref]bool))
	return b.String()
}

func (r *Runtime) describe(b *strings.Builder, ref host.Ref, depth int, seen map[host.Ref]bool) {
	if ref.IsNull() {
		b.WriteString("null\n")
		return
	}
	o, ok := r.objects.get(ref)
	if !ok {
		fmt.Fprintf(b, "<released #%d>\n", uint32(ref))
		return
	}

	simple := o.class.name[strings.LastIndexByte(o.class.name, '/')+1:]
	switch o.kind {
	case KindString:
		b.WriteString(strconv.Quote(o.str))
		b.WriteByte('\n')
		return
	case KindArray:
		fmt.Fprintf(b, "%s[%d]#%d\n", simple, len(o.elems), uint32(ref))
	default:
		fmt.Fprintf(b, "%s#%d\n", simple, uint32(ref))
	}

	if seen[ref] {
		return
	}
	seen[ref] = true

	indent := strings.Repeat("  ", depth+1)
	if o.kind == KindArray {
		for i, e := range o.elems {
			fmt.Fprintf(b, "%s[%d] ", indent, i)
			r.describe(b, e, depth+1, seen)
		}
		return
	}
	for _, f := range o.class.fields {
		v := o.fields[f.Name]
		fmt.Fprintf(b, "%s%s: ", indent, f.Name)
		if v.Kind == host.KindLong {
			fmt.Fprintf(b, "%d\n", v.Long)
			continue
		}
		r.describe(b, v.Ref, depth+1, seen)
	}
}
