package mapper

import (
	stderrors "errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/wippyai/comment-bridge/comment"
	"github.com/wippyai/comment-bridge/descriptor"
	"github.com/wippyai/comment-bridge/errors"
	"github.com/wippyai/comment-bridge/heap"
	"github.com/wippyai/comment-bridge/host"
	"github.com/wippyai/comment-bridge/schema"
)

func newHeap(t *testing.T, cfg heap.Config, classes []schema.Class) *heap.Runtime {
	t.Helper()
	rt, err := heap.NewWithSchema(cfg, classes)
	if err != nil {
		t.Fatalf("NewWithSchema: %v", err)
	}
	return rt
}

func stringField(t *testing.T, rt *heap.Runtime, obj host.Ref, name string) string {
	t.Helper()
	v, ok := rt.Field(obj, name)
	if !ok {
		t.Fatalf("missing field %s", name)
	}
	s, ok := rt.StringValue(v.Ref)
	if !ok {
		t.Fatalf("field %s is not a string: %v", name, v)
	}
	return s
}

func longField(t *testing.T, rt *heap.Runtime, obj host.Ref, name string) int64 {
	t.Helper()
	v, ok := rt.Field(obj, name)
	if !ok || v.Kind != host.KindLong {
		t.Fatalf("field %s is not a long: %v", name, v)
	}
	return v.Long
}

func spannableArray(t *testing.T, rt *heap.Runtime, obj host.Ref) host.Ref {
	t.Helper()
	v, ok := rt.Field(obj, schema.FieldSpannables)
	if !ok || v.Ref.IsNull() {
		t.Fatal("spannableList not set")
	}
	return v.Ref
}

func subtype(simple string) string {
	return descriptor.ClassName(DefaultNamespace, schema.SpannableInterface, simple)
}

func TestMap_HelloScenario(t *testing.T) {
	rt := newHeap(t, heap.Config{}, schema.Comment(DefaultNamespace))

	c := &comment.ParsedComment{
		OriginalText: "hello",
		ParsedText:   "hello",
		Spannables: []comment.Spannable{
			{Data: comment.Link{PostLink: comment.Quote{PostNo: 42}}},
			{Data: comment.Spoiler{}},
			{Data: comment.Link{PostLink: comment.ThreadLink{BoardCode: "g", ThreadNo: 100, PostNo: 101}}},
		},
	}

	obj, err := Map(rt, c)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}

	if name, _ := rt.ClassName(obj); name != descriptor.ClassName(DefaultNamespace, schema.CommentClass) {
		t.Errorf("composite class = %q", name)
	}
	if got := stringField(t, rt, obj, schema.FieldRawText); got != "hello" {
		t.Errorf("raw = %q", got)
	}
	if got := stringField(t, rt, obj, schema.FieldParsedText); got != "hello" {
		t.Errorf("parsed = %q", got)
	}

	arr := spannableArray(t, rt, obj)
	if n, _ := rt.ArrayLen(arr); n != 3 {
		t.Fatalf("array length = %d", n)
	}

	wantClasses := []string{
		subtype(schema.QuoteClass),
		subtype(schema.SpoilerClass),
		subtype(schema.ThreadLinkClass),
	}
	elems := make([]host.Ref, 3)
	for i, want := range wantClasses {
		elems[i], _ = rt.ArrayElement(arr, i)
		if got, _ := rt.ClassName(elems[i]); got != want {
			t.Errorf("element %d class = %q, want %q", i, got, want)
		}
	}

	if got := longField(t, rt, elems[0], "postNo"); got != 42 {
		t.Errorf("quote postNo = %d", got)
	}
	if got := stringField(t, rt, elems[2], "boardCode"); got != "g" {
		t.Errorf("thread boardCode = %q", got)
	}
	if got := longField(t, rt, elems[2], "threadNo"); got != 100 {
		t.Errorf("thread threadNo = %d", got)
	}
	if got := longField(t, rt, elems[2], "postNo"); got != 101 {
		t.Errorf("thread postNo = %d", got)
	}
}

func TestMap_Variants(t *testing.T) {
	tests := []struct {
		name   string
		data   comment.SpannableData
		class  string
		longs  map[string]int64
		string map[string]string
	}{
		{
			name:  "quote",
			data:  comment.Link{PostLink: comment.Quote{PostNo: 7}},
			class: schema.QuoteClass,
			longs: map[string]int64{"postNo": 7},
		},
		{
			name:  "dead quote",
			data:  comment.Link{PostLink: comment.DeadQuote{PostNo: 8}},
			class: schema.DeadQuoteClass,
			longs: map[string]int64{"postNo": 8},
		},
		{
			name:   "url",
			data:   comment.Link{PostLink: comment.URLLink{Link: "https://example.com/?q=ü"}},
			class:  schema.URLLinkClass,
			string: map[string]string{"urlLink": "https://example.com/?q=ü"},
		},
		{
			name:   "board",
			data:   comment.Link{PostLink: comment.BoardLink{BoardCode: "a"}},
			class:  schema.BoardLinkClass,
			string: map[string]string{"boardCode": "a"},
		},
		{
			name:   "search",
			data:   comment.Link{PostLink: comment.SearchLink{BoardCode: "g", SearchQuery: "thinkpad"}},
			class:  schema.SearchLinkClass,
			string: map[string]string{"boardCode": "g", "searchQuery": "thinkpad"},
		},
		{
			name:   "thread",
			data:   comment.Link{PostLink: comment.ThreadLink{BoardCode: "v", ThreadNo: 1, PostNo: 2}},
			class:  schema.ThreadLinkClass,
			string: map[string]string{"boardCode": "v"},
			longs:  map[string]int64{"threadNo": 1, "postNo": 2},
		},
		{
			name:  "spoiler",
			data:  comment.Spoiler{},
			class: schema.SpoilerClass,
		},
		{
			name:  "green text",
			data:  comment.GreenText{},
			class: schema.GreenTextClass,
		},
		{
			name:  "quote by pointer",
			data:  &comment.Link{PostLink: &comment.Quote{PostNo: 9}},
			class: schema.QuoteClass,
			longs: map[string]int64{"postNo": 9},
		},
		{
			name:  "spoiler by pointer",
			data:  &comment.Spoiler{},
			class: schema.SpoilerClass,
		},
	}

	rt := newHeap(t, heap.Config{}, schema.Comment(DefaultNamespace))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := Map(rt, &comment.ParsedComment{
				Spannables: []comment.Spannable{{Data: tt.data}},
			})
			if err != nil {
				t.Fatalf("Map: %v", err)
			}
			elem, _ := rt.ArrayElement(spannableArray(t, rt, obj), 0)
			if got, _ := rt.ClassName(elem); got != subtype(tt.class) {
				t.Fatalf("class = %q, want %q", got, subtype(tt.class))
			}
			for name, want := range tt.longs {
				if got := longField(t, rt, elem, name); got != want {
					t.Errorf("%s = %d, want %d", name, got, want)
				}
			}
			for name, want := range tt.string {
				if got := stringField(t, rt, elem, name); got != want {
					t.Errorf("%s = %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestMap_LongBitPattern(t *testing.T) {
	rt := newHeap(t, heap.Config{}, schema.Comment(DefaultNamespace))

	values := []uint64{0, 1, math.MaxInt64, 1 << 63, math.MaxUint64}
	for _, v := range values {
		obj, err := Map(rt, &comment.ParsedComment{
			Spannables: []comment.Spannable{
				{Data: comment.Link{PostLink: comment.DeadQuote{PostNo: v}}},
				{Data: comment.Link{PostLink: comment.ThreadLink{BoardCode: "b", ThreadNo: v, PostNo: v}}},
			},
		})
		if err != nil {
			t.Fatalf("Map(%d): %v", v, err)
		}
		arr := spannableArray(t, rt, obj)
		dead, _ := rt.ArrayElement(arr, 0)
		thread, _ := rt.ArrayElement(arr, 1)

		for _, got := range []int64{
			longField(t, rt, dead, "postNo"),
			longField(t, rt, thread, "threadNo"),
			longField(t, rt, thread, "postNo"),
		} {
			if uint64(got) != v {
				t.Errorf("value %d stored as %d", v, got)
			}
		}
	}
}

func TestMap_Empty(t *testing.T) {
	rt := newHeap(t, heap.Config{}, schema.Comment(DefaultNamespace))

	obj, err := Map(rt, &comment.ParsedComment{OriginalText: "raw", ParsedText: ""})
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if n, ok := rt.ArrayLen(spannableArray(t, rt, obj)); !ok || n != 0 {
		t.Errorf("array length = %d", n)
	}
	if got := stringField(t, rt, obj, schema.FieldRawText); got != "raw" {
		t.Errorf("raw = %q", got)
	}
	if got := stringField(t, rt, obj, schema.FieldParsedText); got != "" {
		t.Errorf("parsed = %q", got)
	}
}

func TestMap_Strings(t *testing.T) {
	rt := newHeap(t, heap.Config{}, schema.Comment(DefaultNamespace))

	texts := []string{
		"",
		">>12345\n>implying",
		"日本語のテキスト",
		"emoji 🎉 and \x00 nul",
		strings.Repeat("long ", 2000),
	}
	for _, text := range texts {
		obj, err := Map(rt, &comment.ParsedComment{
			OriginalText: text,
			ParsedText:   text,
			Spannables: []comment.Spannable{
				{Data: comment.Link{PostLink: comment.SearchLink{BoardCode: text, SearchQuery: text}}},
			},
		})
		if err != nil {
			t.Fatalf("Map: %v", err)
		}
		if got := stringField(t, rt, obj, schema.FieldRawText); got != text {
			t.Errorf("raw text changed: %q", got)
		}
		elem, _ := rt.ArrayElement(spannableArray(t, rt, obj), 0)
		if got := stringField(t, rt, elem, "searchQuery"); got != text {
			t.Errorf("search query changed: %q", got)
		}
	}
}

func TestMap_MissingSubtype(t *testing.T) {
	for _, simple := range schema.SpannableClasses {
		t.Run(simple, func(t *testing.T) {
			classes := schema.Without(schema.Comment(DefaultNamespace), subtype(simple))
			rt := newHeap(t, heap.Config{}, classes)

			c := &comment.ParsedComment{
				OriginalText: "x",
				ParsedText:   "x",
				Spannables: []comment.Spannable{
					{Data: comment.Link{PostLink: comment.Quote{PostNo: 1}}},
					{Data: comment.Link{PostLink: comment.DeadQuote{PostNo: 2}}},
					{Data: comment.Link{PostLink: comment.URLLink{Link: "u"}}},
					{Data: comment.Link{PostLink: comment.BoardLink{BoardCode: "b"}}},
					{Data: comment.Link{PostLink: comment.SearchLink{BoardCode: "b", SearchQuery: "q"}}},
					{Data: comment.Link{PostLink: comment.ThreadLink{BoardCode: "b", ThreadNo: 1, PostNo: 2}}},
					{Data: comment.Spoiler{}},
					{Data: comment.GreenText{}},
				},
			}

			obj, err := Map(rt, c)
			if !obj.IsNull() {
				t.Error("expected null result")
			}
			if !errors.IsKind(err, errors.KindTypeResolution) {
				t.Fatalf("expected type_resolution, got %v", err)
			}

			var e *errors.Error
			if !stderrors.As(err, &e) {
				t.Fatal("expected *errors.Error")
			}
			if e.Phase != errors.PhaseSpannable || e.Type != subtype(simple) {
				t.Errorf("error phase %s type %s", e.Phase, e.Type)
			}
			if !errors.IsKind(e.Cause, errors.KindNotFound) {
				t.Errorf("host cause = %v", e.Cause)
			}
			if rt.Len() != 0 {
				t.Errorf("%d objects leaked", rt.Len())
			}
		})
	}
}

func TestMap_MissingComposite(t *testing.T) {
	tests := []struct {
		name  string
		drop  string
		phase errors.Phase
	}{
		{"composite", descriptor.ClassName(DefaultNamespace, schema.CommentClass), errors.PhaseComment},
		{"interface", descriptor.ClassName(DefaultNamespace, schema.SpannableInterface), errors.PhaseSpannables},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var classes []schema.Class
			if tt.phase == errors.PhaseComment {
				classes = schema.Without(schema.Comment(DefaultNamespace), tt.drop)
			} else {
				// subtypes implement the interface, so only the composite survives
				classes = schema.Comment(DefaultNamespace)[:1]
			}
			rt := newHeap(t, heap.Config{}, classes)

			_, err := Map(rt, &comment.ParsedComment{})
			var e *errors.Error
			if !stderrors.As(err, &e) {
				t.Fatalf("expected *errors.Error, got %v", err)
			}
			if e.Kind != errors.KindTypeResolution || e.Phase != tt.phase || e.Type != tt.drop {
				t.Errorf("unexpected error %v", err)
			}
			if rt.Len() != 0 {
				t.Errorf("%d objects leaked", rt.Len())
			}
		})
	}
}

func TestMap_ReleasesOnExhaustion(t *testing.T) {
	c := &comment.ParsedComment{
		OriginalText: "hello",
		ParsedText:   "hello",
		Spannables: []comment.Spannable{
			{Data: comment.Link{PostLink: comment.Quote{PostNo: 42}}},
			{Data: comment.Link{PostLink: comment.SearchLink{BoardCode: "g", SearchQuery: "q"}}},
		},
	}

	tests := []struct {
		name string
		cfg  heap.Config
		kind errors.Kind
	}{
		{"objects", heap.Config{MaxObjects: 5}, errors.KindStringAllocation},
		{"first object", heap.Config{MaxObjects: 1}, errors.KindStringAllocation},
		{"string bytes", heap.Config{MaxStringBytes: 11}, errors.KindStringAllocation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := newHeap(t, tt.cfg, schema.Comment(DefaultNamespace))
			obs := &countingObserver{}
			rt.Subscribe(obs)

			obj, err := Map(rt, c)
			if err == nil || !obj.IsNull() {
				t.Fatal("expected failure")
			}
			if !errors.IsKind(err, tt.kind) {
				t.Errorf("expected %s, got %v", tt.kind, err)
			}
			if !errors.IsKind(err, errors.KindAllocation) {
				t.Errorf("host cause should be an allocation failure: %v", err)
			}
			if rt.Len() != 0 {
				t.Errorf("%d objects leaked", rt.Len())
			}
			if obs.allocated != obs.released {
				t.Errorf("allocated %d, released %d", obs.allocated, obs.released)
			}
		})
	}
}

type countingObserver struct {
	allocated int
	released  int
}

func (o *countingObserver) OnHeapEvent(e heap.Event) {
	if e.Type == heap.EventReleased {
		o.released++
		return
	}
	o.allocated++
}

func TestMap_InvalidInput(t *testing.T) {
	rt := newHeap(t, heap.Config{}, schema.Comment(DefaultNamespace))

	if _, err := Map(nil, &comment.ParsedComment{}); !errors.IsKind(err, errors.KindInvalidInput) {
		t.Errorf("nil env: %v", err)
	}
	if _, err := Map(rt, nil); !errors.IsKind(err, errors.KindInvalidInput) {
		t.Errorf("nil comment: %v", err)
	}

	payloads := []comment.SpannableData{
		nil,
		comment.Link{},
		(*comment.Spoiler)(nil),
		comment.Link{PostLink: (*comment.Quote)(nil)},
	}
	for _, p := range payloads {
		_, err := Map(rt, &comment.ParsedComment{
			Spannables: []comment.Spannable{
				{Data: comment.Spoiler{}},
				{Data: p},
			},
		})
		var e *errors.Error
		if !stderrors.As(err, &e) || e.Kind != errors.KindInvalidInput {
			t.Fatalf("payload %#v: %v", p, err)
		}
		if e.Phase != errors.PhaseSpannable || len(e.Path) != 1 || e.Path[0] != "spannables[1]" {
			t.Errorf("unexpected context %v", err)
		}
	}
	if rt.Len() != 0 {
		t.Errorf("%d objects leaked", rt.Len())
	}
}

// failingEnv forwards to a heap and fails the n-th call of one operation.
type failingEnv struct {
	*heap.Runtime
	op    string
	after int
	calls int
}

var errInjected = stderrors.New("injected failure")

func (f *failingEnv) fail(op string) bool {
	if op != f.op {
		return false
	}
	f.calls++
	return f.calls > f.after
}

func (f *failingEnv) NewString(s string) (host.Ref, error) {
	if f.fail("NewString") {
		return host.Null, errInjected
	}
	return f.Runtime.NewString(s)
}

func (f *failingEnv) NewObject(cls host.Class, sig string, args ...host.Value) (host.Ref, error) {
	if f.fail("NewObject") {
		return host.Null, errInjected
	}
	return f.Runtime.NewObject(cls, sig, args...)
}

func (f *failingEnv) SetField(obj host.Ref, name, desc string, v host.Value) error {
	if f.fail("SetField") {
		return errInjected
	}
	return f.Runtime.SetField(obj, name, desc, v)
}

func (f *failingEnv) NewObjectArray(n int, elem host.Class) (host.Ref, error) {
	if f.fail("NewObjectArray") {
		return host.Null, errInjected
	}
	return f.Runtime.NewObjectArray(n, elem)
}

func (f *failingEnv) SetObjectArrayElement(arr host.Ref, i int, v host.Ref) error {
	if f.fail("SetObjectArrayElement") {
		return errInjected
	}
	return f.Runtime.SetObjectArrayElement(arr, i, v)
}

func TestMap_HostFailures(t *testing.T) {
	c := &comment.ParsedComment{
		OriginalText: "raw",
		ParsedText:   "parsed",
		Spannables: []comment.Spannable{
			{Data: comment.Link{PostLink: comment.BoardLink{BoardCode: "a"}}},
			{Data: comment.Link{PostLink: comment.Quote{PostNo: 3}}},
		},
	}

	tests := []struct {
		name   string
		op     string
		after  int
		kind   errors.Kind
		phase  errors.Phase
		member string
	}{
		{"composite constructor", "NewObject", 0, errors.KindInstantiation, errors.PhaseComment, "()V"},
		{"raw text string", "NewString", 0, errors.KindStringAllocation, errors.PhaseComment, ""},
		{"raw text field", "SetField", 0, errors.KindFieldAssignment, errors.PhaseComment, schema.FieldRawText},
		{"parsed text field", "SetField", 1, errors.KindFieldAssignment, errors.PhaseComment, schema.FieldParsedText},
		{"array", "NewObjectArray", 0, errors.KindArrayAllocation, errors.PhaseSpannables, ""},
		{"payload string", "NewString", 2, errors.KindStringAllocation, errors.PhaseSpannable, ""},
		{"second constructor", "NewObject", 2, errors.KindInstantiation, errors.PhaseSpannable, "(J)V"},
		{"element store", "SetObjectArrayElement", 1, errors.KindElementStore, errors.PhaseSpannable, ""},
		{"list field", "SetField", 2, errors.KindFieldAssignment, errors.PhaseComment, schema.FieldSpannables},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := newHeap(t, heap.Config{}, schema.Comment(DefaultNamespace))
			env := &failingEnv{Runtime: rt, op: tt.op, after: tt.after}

			obj, err := Map(env, c)
			if !obj.IsNull() {
				t.Error("expected null result")
			}
			var e *errors.Error
			if !stderrors.As(err, &e) {
				t.Fatalf("expected *errors.Error, got %v", err)
			}
			if e.Kind != tt.kind || e.Phase != tt.phase {
				t.Errorf("got %s/%s, want %s/%s", e.Phase, e.Kind, tt.phase, tt.kind)
			}
			if tt.member != "" && e.Member != tt.member {
				t.Errorf("member = %q, want %q", e.Member, tt.member)
			}
			if !stderrors.Is(err, errInjected) {
				t.Error("host error should be preserved as cause")
			}
			if rt.Len() != 0 {
				t.Errorf("%d objects leaked", rt.Len())
			}
		})
	}
}

func TestNewWithConfig(t *testing.T) {
	m, err := NewWithConfig(Config{})
	if err != nil {
		t.Fatal(err)
	}
	if m.Namespace() != DefaultNamespace {
		t.Errorf("namespace = %q", m.Namespace())
	}

	for _, ns := range []string{"a//b", "a/b.c", "a/$b", "/"} {
		if _, err := NewWithConfig(Config{Namespace: ns}); !errors.IsKind(err, errors.KindInvalidInput) {
			t.Errorf("namespace %q: expected invalid_input, got %v", ns, err)
		}
	}
}

func TestMapper_CustomNamespace(t *testing.T) {
	const ns = "org/example/model"
	m, err := NewWithConfig(Config{Namespace: ns})
	if err != nil {
		t.Fatal(err)
	}

	other := newHeap(t, heap.Config{}, schema.Comment(DefaultNamespace))
	if _, err := m.Map(other, &comment.ParsedComment{}); !errors.IsKind(err, errors.KindTypeResolution) {
		t.Errorf("expected type_resolution against a foreign namespace, got %v", err)
	}

	rt := newHeap(t, heap.Config{}, schema.Comment(ns))
	obj, err := m.Map(rt, &comment.ParsedComment{
		Spannables: []comment.Spannable{{Data: comment.GreenText{}}},
	})
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	elem, _ := rt.ArrayElement(spannableArray(t, rt, obj), 0)
	if got, _ := rt.ClassName(elem); got != ns+"/IPostCommentSpannableData$GreenText" {
		t.Errorf("class = %q", got)
	}
}

func TestMapper_ClassFor(t *testing.T) {
	m := New()

	tests := []struct {
		tag       comment.Tag
		simple    string
		signature string
	}{
		{comment.TagQuote, schema.QuoteClass, "(J)V"},
		{comment.TagDeadQuote, schema.DeadQuoteClass, "(J)V"},
		{comment.TagURLLink, schema.URLLinkClass, "(Ljava/lang/String;)V"},
		{comment.TagBoardLink, schema.BoardLinkClass, "(Ljava/lang/String;)V"},
		{comment.TagSearchLink, schema.SearchLinkClass, "(Ljava/lang/String;Ljava/lang/String;)V"},
		{comment.TagThreadLink, schema.ThreadLinkClass, "(Ljava/lang/String;JJ)V"},
		{comment.TagSpoiler, schema.SpoilerClass, "()V"},
		{comment.TagGreenText, schema.GreenTextClass, "()V"},
	}

	for _, tt := range tests {
		t.Run(tt.tag.String(), func(t *testing.T) {
			class, sig, ok := m.ClassFor(tt.tag)
			if !ok {
				t.Fatal("tag not mapped")
			}
			if class != subtype(tt.simple) || sig != tt.signature {
				t.Errorf("got %s %s", class, sig)
			}
		})
	}

	if _, _, ok := m.ClassFor(comment.Tag(comment.TagCount)); ok {
		t.Error("out of range tag should not resolve")
	}
}

func TestMap_Concurrent(t *testing.T) {
	rt := newHeap(t, heap.Config{}, schema.Comment(DefaultNamespace))
	c := &comment.ParsedComment{
		OriginalText: "x",
		ParsedText:   "x",
		Spannables: []comment.Spannable{
			{Data: comment.Link{PostLink: comment.Quote{PostNo: 1}}},
			{Data: comment.GreenText{}},
		},
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := Map(rt, c); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	// composite, 2 texts, array, quote, green text
	if rt.Len() != 16*6 {
		t.Errorf("Len = %d, want %d", rt.Len(), 16*6)
	}
}
