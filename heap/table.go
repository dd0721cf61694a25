package heap

import (
	"github.com/wippyai/comment-bridge/host"
)

// table stores live objects behind refs. Released slots are reused, newest
// first. The caller guards it.
type table struct {
	entries  []entry
	freeList []host.Ref
	live     int
}

type entry struct {
	obj   *object
	valid bool
}

func newTable() *table {
	return &table{
		entries:  make([]entry, 0, 64),
		freeList: make([]host.Ref, 0, 16),
	}
}

// insert stores obj and returns its ref.
func (t *table) insert(obj *object) host.Ref {
	e := entry{obj: obj, valid: true}
	t.live++

	if len(t.freeList) > 0 {
		ref := t.freeList[len(t.freeList)-1]
		t.freeList = t.freeList[:len(t.freeList)-1]
		t.entries[ref-1] = e
		return ref
	}

	t.entries = append(t.entries, e)
	return host.Ref(len(t.entries))
}

func (t *table) get(ref host.Ref) (*object, bool) {
	if ref.IsNull() {
		return nil, false
	}
	idx := int(ref) - 1
	if idx >= len(t.entries) {
		return nil, false
	}
	e := t.entries[idx]
	if !e.valid {
		return nil, false
	}
	return e.obj, true
}

// drop removes ref and returns its object.
func (t *table) drop(ref host.Ref) (*object, bool) {
	obj, ok := t.get(ref)
	if !ok {
		return nil, false
	}
	t.entries[ref-1] = entry{}
	t.freeList = append(t.freeList, ref)
	t.live--
	return obj, true
}

func (t *table) len() int {
	return t.live
}

// each visits live objects in ref order until fn returns false.
func (t *table) each(fn func(host.Ref, *object) bool) {
	for i, e := range t.entries {
		if e.valid && !fn(host.Ref(i+1), e.obj) {
			return
		}
	}
}

func (t *table) clear() {
	t.entries = t.entries[:0]
	t.freeList = t.freeList[:0]
	t.live = 0
}
