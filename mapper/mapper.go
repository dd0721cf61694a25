package mapper

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/comment-bridge/comment"
	"github.com/wippyai/comment-bridge/descriptor"
	"github.com/wippyai/comment-bridge/errors"
	"github.com/wippyai/comment-bridge/host"
	"github.com/wippyai/comment-bridge/schema"
)

// DefaultNamespace is the package that holds the host comment model classes.
const DefaultNamespace = schema.DefaultNamespace

// Config holds mapper options. The zero value selects the defaults.
type Config struct {
	// Logger overrides the package logger for this mapper.
	Logger *zap.Logger

	// Namespace is the slash-separated package of the host classes.
	Namespace string
}

// variantSpec is the resolved host target of one leaf variant.
type variantSpec struct {
	class     string
	signature string
	params    []string
}

// variantTable maps each leaf tag to its host subtype and constructor
// parameter descriptors, in payload order.
var variantTable = [comment.TagCount]struct {
	simple string
	params []string
}{
	comment.TagQuote:      {schema.QuoteClass, []string{descriptor.Long}},
	comment.TagDeadQuote:  {schema.DeadQuoteClass, []string{descriptor.Long}},
	comment.TagURLLink:    {schema.URLLinkClass, []string{descriptor.String}},
	comment.TagBoardLink:  {schema.BoardLinkClass, []string{descriptor.String}},
	comment.TagSearchLink: {schema.SearchLinkClass, []string{descriptor.String, descriptor.String}},
	comment.TagThreadLink: {schema.ThreadLinkClass, []string{descriptor.String, descriptor.Long, descriptor.Long}},
	comment.TagSpoiler:    {schema.SpoilerClass, nil},
	comment.TagGreenText:  {schema.GreenTextClass, nil},
}

var noArgs = descriptor.Method(descriptor.Void)

// Mapper rebuilds parsed comments inside a host runtime. It holds only
// immutable lookup tables and is safe for concurrent use.
type Mapper struct {
	logger    *zap.Logger
	composite string
	iface     string
	listDesc  string
	namespace string
	variants  [comment.TagCount]variantSpec
}

// New returns a mapper for DefaultNamespace.
func New() *Mapper {
	return build(DefaultNamespace, nil)
}

// NewWithConfig returns a mapper for cfg.
func NewWithConfig(cfg Config) (*Mapper, error) {
	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	if err := descriptor.ValidateNamespace(ns); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "namespace")
	}
	return build(ns, cfg.Logger), nil
}

func build(ns string, logger *zap.Logger) *Mapper {
	m := &Mapper{
		logger:    logger,
		namespace: ns,
		composite: descriptor.ClassName(ns, schema.CommentClass),
		iface:     descriptor.ClassName(ns, schema.SpannableInterface),
	}
	m.listDesc = descriptor.Array(descriptor.Object(m.iface))
	for tag, v := range variantTable {
		m.variants[tag] = variantSpec{
			class:     descriptor.ClassName(ns, schema.SpannableInterface, v.simple),
			signature: descriptor.Method(descriptor.Void, v.params...),
			params:    v.params,
		}
	}
	return m
}

// Namespace returns the package of the host classes this mapper targets.
func (m *Mapper) Namespace() string {
	return m.namespace
}

// ClassFor returns the host class name and constructor descriptor used for tag.
func (m *Mapper) ClassFor(tag comment.Tag) (class, signature string, ok bool) {
	if int(tag) >= comment.TagCount {
		return "", "", false
	}
	v := m.variants[tag]
	return v.class, v.signature, true
}

func (m *Mapper) log() *zap.Logger {
	if m.logger != nil {
		return m.logger
	}
	return Logger()
}

// Map builds c inside the host reached through env and returns the composite
// object. Any host failure aborts the whole call: no partial graph is
// returned, and when env implements host.Releaser every reference allocated
// by this call is released before returning.
func (m *Mapper) Map(env host.Env, c *comment.ParsedComment) (host.Ref, error) {
	if env == nil {
		return host.Null, errors.InvalidInput(errors.PhaseComment, "nil host env")
	}
	if c == nil {
		return host.Null, errors.InvalidInput(errors.PhaseComment, "nil comment")
	}

	s := &session{m: m, env: env}
	obj, err := s.mapComment(c)
	if err != nil {
		released := s.abort()
		m.log().Debug("comment mapping failed",
			zap.Int("spannables", len(c.Spannables)),
			zap.Int("released", released),
			zap.Error(err))
		return host.Null, err
	}

	m.log().Debug("comment mapped",
		zap.String("class", m.composite),
		zap.Int("spannables", len(c.Spannables)),
		zap.Int("allocations", len(s.allocated)))
	return obj, nil
}

var defaultMapper = New()

// Map builds c with a mapper for DefaultNamespace.
func Map(env host.Env, c *comment.ParsedComment) (host.Ref, error) {
	return defaultMapper.Map(env, c)
}

// session is the state of one Map call.
type session struct {
	m         *Mapper
	env       host.Env
	allocated []host.Ref
}

func (s *session) track(r host.Ref) {
	if !r.IsNull() {
		s.allocated = append(s.allocated, r)
	}
}

// abort releases everything allocated so far, newest first.
func (s *session) abort() int {
	rel, ok := s.env.(host.Releaser)
	if !ok || len(s.allocated) == 0 {
		return 0
	}
	refs := make([]host.Ref, len(s.allocated))
	for i, r := range s.allocated {
		refs[len(refs)-1-i] = r
	}
	rel.Release(refs...)
	n := len(refs)
	s.allocated = nil
	return n
}

func (s *session) newString(phase errors.Phase, path []string, text string) (host.Ref, error) {
	ref, err := s.env.NewString(text)
	if err != nil {
		return host.Null, errors.StringAllocation(phase, path, len(text), err)
	}
	s.track(ref)
	return ref, nil
}

func (s *session) mapComment(c *comment.ParsedComment) (host.Ref, error) {
	m := s.m

	cls, err := s.env.FindClass(m.composite)
	if err != nil {
		return host.Null, errors.TypeResolution(errors.PhaseComment, nil, m.composite, err)
	}

	obj, err := s.env.NewObject(cls, noArgs)
	if err != nil {
		return host.Null, errors.Instantiation(errors.PhaseComment, nil, m.composite, noArgs, err)
	}
	s.track(obj)

	if err := s.setString(obj, schema.FieldRawText, c.OriginalText); err != nil {
		return host.Null, err
	}
	if err := s.setString(obj, schema.FieldParsedText, c.ParsedText); err != nil {
		return host.Null, err
	}

	arr, err := s.mapSpannables(c.Spannables)
	if err != nil {
		return host.Null, err
	}
	if err := s.env.SetField(obj, schema.FieldSpannables, m.listDesc, host.Object(arr)); err != nil {
		return host.Null, errors.FieldAssignment(errors.PhaseComment, nil, m.composite, schema.FieldSpannables, m.listDesc, err)
	}

	return obj, nil
}

func (s *session) setString(obj host.Ref, field, text string) error {
	path := []string{field}
	str, err := s.newString(errors.PhaseComment, path, text)
	if err != nil {
		return err
	}
	if err := s.env.SetField(obj, field, descriptor.String, host.Object(str)); err != nil {
		return errors.FieldAssignment(errors.PhaseComment, nil, s.m.composite, field, descriptor.String, err)
	}
	return nil
}

// mapSpannables allocates the spannable array and fills every slot in input
// order.
func (s *session) mapSpannables(items []comment.Spannable) (host.Ref, error) {
	m := s.m

	iface, err := s.env.FindClass(m.iface)
	if err != nil {
		return host.Null, errors.TypeResolution(errors.PhaseSpannables, nil, m.iface, err)
	}

	arr, err := s.env.NewObjectArray(len(items), iface)
	if err != nil {
		return host.Null, errors.ArrayAllocation(errors.PhaseSpannables, nil, m.iface, len(items), err)
	}
	s.track(arr)

	for i := range items {
		if err := s.buildSpannable(items[i].Data, i, arr); err != nil {
			return host.Null, err
		}
	}
	return arr, nil
}

// buildSpannable constructs the host subtype for data and stores it at
// arr[index].
func (s *session) buildSpannable(data comment.SpannableData, index int, arr host.Ref) error {
	path := []string{fmt.Sprintf("spannables[%d]", index)}

	tag, args, ok := payload(data)
	if !ok {
		return errors.New(errors.PhaseSpannable, errors.KindInvalidInput).
			Path(path...).
			Value(data).
			Detail("unsupported spannable payload %T", data).
			Build()
	}

	spec := s.m.variants[tag]
	if len(args) != len(spec.params) {
		return errors.New(errors.PhaseSpannable, errors.KindInstantiation).
			Path(path...).
			Type(spec.class).
			Member(spec.signature).
			Detail("%s payload has %d values", tag, len(args)).
			Build()
	}

	cls, err := s.env.FindClass(spec.class)
	if err != nil {
		return errors.TypeResolution(errors.PhaseSpannable, path, spec.class, err)
	}

	values := make([]host.Value, len(args))
	for i, a := range args {
		if spec.params[i] == descriptor.Long {
			values[i] = host.Long(a.long)
			continue
		}
		str, err := s.newString(errors.PhaseSpannable, path, a.str)
		if err != nil {
			return err
		}
		values[i] = host.Object(str)
	}

	obj, err := s.env.NewObject(cls, spec.signature, values...)
	if err != nil {
		return errors.Instantiation(errors.PhaseSpannable, path, spec.class, spec.signature, err)
	}
	s.track(obj)

	if err := s.env.SetObjectArrayElement(arr, index, obj); err != nil {
		return errors.ElementStore(errors.PhaseSpannable, path, index, err)
	}
	return nil
}

// arg is one constructor argument before host conversion.
type arg struct {
	str  string
	long int64
}

// longArg reinterprets an unsigned post or thread number as the host's
// signed 64-bit integer without changing its bits.
func longArg(v uint64) arg {
	return arg{long: int64(v)}
}

func stringArg(v string) arg {
	return arg{str: v}
}

// payload resolves the leaf tag of data and its constructor arguments.
// Pointer variants are accepted.
func payload(data comment.SpannableData) (comment.Tag, []arg, bool) {
	data, ok := comment.Normalize(data)
	if !ok {
		return 0, nil, false
	}
	switch v := data.(type) {
	case comment.Link:
		return linkPayload(v.PostLink)
	case comment.Spoiler:
		return comment.TagSpoiler, nil, true
	case comment.GreenText:
		return comment.TagGreenText, nil, true
	}
	return 0, nil, false
}

func linkPayload(link comment.PostLink) (comment.Tag, []arg, bool) {
	switch v := link.(type) {
	case comment.Quote:
		return comment.TagQuote, []arg{longArg(v.PostNo)}, true
	case comment.DeadQuote:
		return comment.TagDeadQuote, []arg{longArg(v.PostNo)}, true
	case comment.URLLink:
		return comment.TagURLLink, []arg{stringArg(v.Link)}, true
	case comment.BoardLink:
		return comment.TagBoardLink, []arg{stringArg(v.BoardCode)}, true
	case comment.SearchLink:
		return comment.TagSearchLink, []arg{stringArg(v.BoardCode), stringArg(v.SearchQuery)}, true
	case comment.ThreadLink:
		return comment.TagThreadLink, []arg{stringArg(v.BoardCode), longArg(v.ThreadNo), longArg(v.PostNo)}, true
	}
	return 0, nil, false
}
