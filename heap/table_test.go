package heap

import (
	"testing"

	"github.com/wippyai/comment-bridge/host"
)

func TestTable_Basic(t *testing.T) {
	tbl := newTable()
	obj := &object{kind: KindString, str: "test"}

	ref := tbl.insert(obj)
	if ref.IsNull() {
		t.Fatal("Expected non-null ref")
	}

	got, ok := tbl.get(ref)
	if !ok || got != obj {
		t.Fatal("get failed")
	}

	got, ok = tbl.drop(ref)
	if !ok || got != obj {
		t.Fatal("drop failed")
	}

	if _, ok := tbl.get(ref); ok {
		t.Fatal("Expected get to fail after drop")
	}
	if tbl.len() != 0 {
		t.Fatalf("Expected len 0, got %d", tbl.len())
	}
}

func TestTable_ReusesReleasedSlots(t *testing.T) {
	tbl := newTable()

	a := tbl.insert(&object{})
	b := tbl.insert(&object{})
	tbl.drop(a)

	c := tbl.insert(&object{})
	if c != a {
		t.Fatalf("Expected slot %d to be reused, got %d", a, c)
	}
	if tbl.len() != 2 {
		t.Fatalf("Expected len 2, got %d", tbl.len())
	}
	if _, ok := tbl.get(b); !ok {
		t.Fatal("unrelated ref lost")
	}
}

func TestTable_InvalidRefs(t *testing.T) {
	tbl := newTable()
	tbl.insert(&object{})

	for _, ref := range []host.Ref{host.Null, 99} {
		if _, ok := tbl.get(ref); ok {
			t.Errorf("get(%d) should fail", ref)
		}
		if _, ok := tbl.drop(ref); ok {
			t.Errorf("drop(%d) should fail", ref)
		}
	}

	ref := tbl.insert(&object{})
	tbl.drop(ref)
	if _, ok := tbl.drop(ref); ok {
		t.Error("double drop should fail")
	}
}

func TestTable_Each(t *testing.T) {
	tbl := newTable()
	tbl.insert(&object{str: "a"})
	mid := tbl.insert(&object{str: "b"})
	tbl.insert(&object{str: "c"})
	tbl.drop(mid)

	var seen []string
	tbl.each(func(_ host.Ref, o *object) bool {
		seen = append(seen, o.str)
		return true
	})
	if len(seen) != 2 || seen[0] != "a" || seen[1] != "c" {
		t.Fatalf("unexpected iteration %v", seen)
	}

	count := 0
	tbl.each(func(host.Ref, *object) bool {
		count++
		return false
	})
	if count != 1 {
		t.Fatalf("each should stop early, visited %d", count)
	}
}
