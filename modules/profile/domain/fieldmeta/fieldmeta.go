package fieldmeta

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jacksonlee411/community-portal/modules/profile/domain/types"
	"github.com/jacksonlee411/community-portal/pkg/dict"
	"gopkg.in/yaml.v3"
)

//go:embed registry.yaml
var defaultRegistryYAML []byte

var fieldKeyRe = regexp.MustCompile(`^[a-z][A-Za-z0-9]{0,62}$`)

type FieldDescriptor struct {
	Key     string
	Section types.Section
	Kind    types.Kind
	Label   string
	// Options is set for enum fields only, in declaration order.
	Options  []dict.Option
	DictCode string
	// FixedLength is the exact item count of a list field; 0 means unbounded.
	FixedLength int
	// MaxLength limits text length in runes (per item for lists); 0 means unlimited.
	MaxLength int
	Default   types.Value
	PolicyKey string
	Rule      string
}

func (d FieldDescriptor) HasOption(code string) bool {
	for _, opt := range d.Options {
		if opt.Code == code {
			return true
		}
	}
	return false
}

func (d FieldDescriptor) OptionLabel(code string) string {
	for _, opt := range d.Options {
		if opt.Code == code {
			return opt.Label
		}
	}
	return code
}

// Validate checks v against the descriptor's kind. Field rules are evaluated
// separately by Registry.CheckRule.
func (d FieldDescriptor) Validate(v types.Value) error {
	if want := d.Kind.Shape(); v.Shape() != want {
		return &types.TypeMismatchError{Key: d.Key, Kind: d.Kind, Want: want, Got: v.Shape()}
	}
	switch d.Kind {
	case types.KindText:
		return d.checkLine(v.Text(), "")
	case types.KindLongText:
		return d.checkLength(v.Text(), "")
	case types.KindEnum:
		if !d.HasOption(v.Text()) {
			return &types.ValidationError{Key: d.Key, Reason: fmt.Sprintf("%q is not an option of %s", v.Text(), d.DictCode)}
		}
	case types.KindListOfText:
		items := v.Items()
		if d.FixedLength > 0 && len(items) != d.FixedLength {
			return &types.ValidationError{Key: d.Key, Reason: fmt.Sprintf("expects exactly %d entries, got %d", d.FixedLength, len(items))}
		}
		for i, item := range items {
			if err := d.checkLine(item, fmt.Sprintf("entry %d ", i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d FieldDescriptor) checkLine(s string, prefix string) error {
	if strings.ContainsAny(s, "\r\n") {
		return &types.ValidationError{Key: d.Key, Reason: prefix + "must be a single line"}
	}
	return d.checkLength(s, prefix)
}

func (d FieldDescriptor) checkLength(s string, prefix string) error {
	if d.MaxLength > 0 && utf8.RuneCountInString(s) > d.MaxLength {
		return &types.ValidationError{Key: d.Key, Reason: fmt.Sprintf("%sexceeds %d characters", prefix, d.MaxLength)}
	}
	return nil
}

type PolicyDescriptor struct {
	Key     string
	Label   string
	Governs []string
}

type SectionDescriptor struct {
	ID    types.Section
	Title string
}

// Registry is the immutable description of every profile field.
type Registry struct {
	sections       []SectionDescriptor
	fields         []FieldDescriptor
	byKey          map[string]int
	bySection      map[types.Section][]int
	policies       []PolicyDescriptor
	policyByKey    map[string]int
	policyForField map[string]string
	rules          map[string]*Rule
	catalog        dict.Catalog
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r, err := Parse(defaultRegistryYAML)
	if err != nil {
		panic("fieldmeta: embedded registry: " + err.Error())
	}
	return r
})

// Default returns the registry compiled into the binary.
func Default() *Registry {
	return defaultRegistry()
}

func (r *Registry) Describe(key string) (FieldDescriptor, error) {
	i, ok := r.byKey[key]
	if !ok {
		return FieldDescriptor{}, &types.UnknownFieldError{Key: key}
	}
	return cloneFieldDescriptor(r.fields[i]), nil
}

// MustDescribe panics on an unknown key; use it only with keys known at
// compile time.
func (r *Registry) MustDescribe(key string) FieldDescriptor {
	d, err := r.Describe(key)
	if err != nil {
		panic(err)
	}
	return d
}

func (r *Registry) FieldsOf(section types.Section) []FieldDescriptor {
	idx := r.bySection[section]
	out := make([]FieldDescriptor, 0, len(idx))
	for _, i := range idx {
		out = append(out, cloneFieldDescriptor(r.fields[i]))
	}
	return out
}

// Fields returns every descriptor in layout order.
func (r *Registry) Fields() []FieldDescriptor {
	out := make([]FieldDescriptor, 0, len(r.fields))
	for _, s := range r.sections {
		out = append(out, r.FieldsOf(s.ID)...)
	}
	return out
}

func (r *Registry) Sections() []SectionDescriptor {
	out := make([]SectionDescriptor, len(r.sections))
	copy(out, r.sections)
	return out
}

func (r *Registry) SectionTitle(section types.Section) string {
	for _, s := range r.sections {
		if s.ID == section {
			return s.Title
		}
	}
	return string(section)
}

func (r *Registry) Policies() []PolicyDescriptor {
	out := make([]PolicyDescriptor, 0, len(r.policies))
	for _, p := range r.policies {
		out = append(out, clonePolicyDescriptor(p))
	}
	return out
}

func (r *Registry) PolicyKeys() []string {
	out := make([]string, 0, len(r.policies))
	for _, p := range r.policies {
		out = append(out, p.Key)
	}
	return out
}

func (r *Registry) LookupPolicy(key string) (PolicyDescriptor, bool) {
	i, ok := r.policyByKey[key]
	if !ok {
		return PolicyDescriptor{}, false
	}
	return clonePolicyDescriptor(r.policies[i]), true
}

// PolicyFor returns the policy key governing fieldKey, if any.
func (r *Registry) PolicyFor(fieldKey string) (string, bool) {
	key, ok := r.policyForField[fieldKey]
	return key, ok
}

// Exposed reports whether fieldKey is shown to other viewers under policy.
// Fields without a governing policy key are always exposed.
func (r *Registry) Exposed(fieldKey string, policy types.Policy) bool {
	key, governed := r.policyForField[fieldKey]
	if !governed {
		return true
	}
	return policy.Enabled(key)
}

// CheckRule evaluates the field's rule, if it has one.
func (r *Registry) CheckRule(key string, v types.Value, now time.Time) error {
	rule, ok := r.rules[key]
	if !ok {
		return nil
	}
	passed, err := rule.Eval(v, now)
	if err != nil {
		return &types.ValidationError{Key: key, Reason: "rule evaluation failed: " + err.Error()}
	}
	if !passed {
		return &types.ValidationError{Key: key, Reason: "value rejected by rule"}
	}
	return nil
}

func (r *Registry) Catalog() dict.Catalog { return r.catalog }

type registryDocument struct {
	Version  int                      `yaml:"version"`
	Sections []sectionDocument        `yaml:"sections"`
	Dicts    map[string][]dict.Option `yaml:"dicts"`
	Policies []policyDocument         `yaml:"policies"`
	Fields   []fieldDocument          `yaml:"fields"`
}

type sectionDocument struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
}

type policyDocument struct {
	Key     string   `yaml:"key"`
	Label   string   `yaml:"label"`
	Governs []string `yaml:"governs"`
}

type fieldDocument struct {
	Key         string `yaml:"key"`
	Section     string `yaml:"section"`
	Kind        string `yaml:"kind"`
	Label       string `yaml:"label"`
	Dict        string `yaml:"dict"`
	FixedLength *int   `yaml:"fixed_length"`
	MaxLength   int    `yaml:"max_length"`
	Default     any    `yaml:"default"`
	Rule        string `yaml:"rule"`
}

// Parse builds a Registry from its YAML form and validates it.
func Parse(b []byte) (*Registry, error) {
	var doc registryDocument
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	if doc.Version != 1 {
		return nil, errors.New("fieldmeta: unsupported registry version")
	}

	catalog, err := dict.NewCatalog(doc.Dicts)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		byKey:          make(map[string]int, len(doc.Fields)),
		bySection:      make(map[types.Section][]int, len(types.Sections)),
		policyByKey:    make(map[string]int, len(doc.Policies)),
		policyForField: make(map[string]string),
		rules:          make(map[string]*Rule),
		catalog:        catalog,
	}

	if err := r.parseSections(doc.Sections); err != nil {
		return nil, err
	}
	for _, fd := range doc.Fields {
		desc, err := buildFieldDescriptor(fd, catalog)
		if err != nil {
			return nil, err
		}
		if _, dup := r.byKey[desc.Key]; dup {
			return nil, fmt.Errorf("fieldmeta: duplicate field %q", desc.Key)
		}
		if fd.Rule != "" {
			rule, err := compileRule(fd.Rule)
			if err != nil {
				return nil, fmt.Errorf("fieldmeta: field %q rule: %w", desc.Key, err)
			}
			r.rules[desc.Key] = rule
		}
		r.byKey[desc.Key] = len(r.fields)
		r.bySection[desc.Section] = append(r.bySection[desc.Section], len(r.fields))
		r.fields = append(r.fields, desc)
	}
	if len(r.fields) == 0 {
		return nil, errors.New("fieldmeta: registry declares no fields")
	}
	if err := r.parsePolicies(doc.Policies); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) parseSections(docs []sectionDocument) error {
	seen := make(map[types.Section]struct{}, len(docs))
	for _, sd := range docs {
		id := types.Section(strings.TrimSpace(sd.ID))
		if !id.Valid() {
			return fmt.Errorf("fieldmeta: unknown section %q", sd.ID)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("fieldmeta: duplicate section %q", id)
		}
		seen[id] = struct{}{}
		title := strings.TrimSpace(sd.Title)
		if title == "" {
			title = string(id)
		}
		r.sections = append(r.sections, SectionDescriptor{ID: id, Title: title})
	}
	if len(seen) != len(types.Sections) {
		return errors.New("fieldmeta: registry must lay out every section exactly once")
	}
	return nil
}

func (r *Registry) parsePolicies(docs []policyDocument) error {
	for _, pd := range docs {
		key := strings.TrimSpace(pd.Key)
		if !fieldKeyRe.MatchString(key) {
			return fmt.Errorf("fieldmeta: invalid policy key %q", pd.Key)
		}
		if _, dup := r.policyByKey[key]; dup {
			return fmt.Errorf("fieldmeta: duplicate policy key %q", key)
		}
		if _, clash := r.byKey[key]; clash {
			return fmt.Errorf("fieldmeta: policy key %q collides with a field key", key)
		}
		governs := make([]string, 0, len(pd.Governs))
		for _, fieldKey := range pd.Governs {
			if _, ok := r.byKey[fieldKey]; !ok {
				return fmt.Errorf("fieldmeta: policy %q governs unknown field %q", key, fieldKey)
			}
			if owner, taken := r.policyForField[fieldKey]; taken {
				return fmt.Errorf("fieldmeta: field %q governed by both %q and %q", fieldKey, owner, key)
			}
			r.policyForField[fieldKey] = key
			r.fields[r.byKey[fieldKey]].PolicyKey = key
			governs = append(governs, fieldKey)
		}
		if len(governs) == 0 && key != ProfileVisibleKey {
			return fmt.Errorf("fieldmeta: policy %q governs no field", key)
		}
		label := strings.TrimSpace(pd.Label)
		if label == "" {
			label = key
		}
		r.policyByKey[key] = len(r.policies)
		r.policies = append(r.policies, PolicyDescriptor{Key: key, Label: label, Governs: governs})
	}
	return nil
}

// ProfileVisibleKey is the only policy key that governs no field; it controls
// whether the profile is listed in member search.
const ProfileVisibleKey = "profileVisible"

func buildFieldDescriptor(fd fieldDocument, catalog dict.Catalog) (FieldDescriptor, error) {
	key := strings.TrimSpace(fd.Key)
	if !fieldKeyRe.MatchString(key) {
		return FieldDescriptor{}, fmt.Errorf("fieldmeta: invalid field key %q", fd.Key)
	}
	section := types.Section(strings.TrimSpace(fd.Section))
	if !section.Valid() {
		return FieldDescriptor{}, fmt.Errorf("fieldmeta: field %q has unknown section %q", key, fd.Section)
	}
	kind := types.Kind(strings.TrimSpace(fd.Kind))
	if !kind.Valid() {
		return FieldDescriptor{}, fmt.Errorf("fieldmeta: field %q has unknown kind %q", key, fd.Kind)
	}
	label := strings.TrimSpace(fd.Label)
	if label == "" {
		return FieldDescriptor{}, fmt.Errorf("fieldmeta: field %q has no label", key)
	}
	if fd.MaxLength < 0 {
		return FieldDescriptor{}, fmt.Errorf("fieldmeta: field %q has negative max_length", key)
	}

	desc := FieldDescriptor{
		Key:       key,
		Section:   section,
		Kind:      kind,
		Label:     label,
		MaxLength: fd.MaxLength,
		Rule:      strings.TrimSpace(fd.Rule),
	}

	if kind == types.KindEnum {
		opts, ok := catalog.Options(fd.Dict)
		if !ok {
			return FieldDescriptor{}, fmt.Errorf("fieldmeta: enum field %q references unknown dict %q", key, fd.Dict)
		}
		desc.DictCode = strings.TrimSpace(fd.Dict)
		desc.Options = opts
	} else if fd.Dict != "" {
		return FieldDescriptor{}, fmt.Errorf("fieldmeta: field %q is not an enum but declares a dict", key)
	}

	if fd.FixedLength != nil {
		if kind != types.KindListOfText {
			return FieldDescriptor{}, fmt.Errorf("fieldmeta: field %q declares fixed_length but is not a list", key)
		}
		if *fd.FixedLength <= 0 {
			return FieldDescriptor{}, fmt.Errorf("fieldmeta: field %q fixed_length must be positive", key)
		}
		desc.FixedLength = *fd.FixedLength
	}

	def, err := defaultValue(desc, fd.Default)
	if err != nil {
		return FieldDescriptor{}, err
	}
	if err := desc.Validate(def); err != nil {
		return FieldDescriptor{}, fmt.Errorf("fieldmeta: default of %q: %w", key, err)
	}
	desc.Default = def
	return desc, nil
}

func defaultValue(desc FieldDescriptor, raw any) (types.Value, error) {
	bad := fmt.Errorf("fieldmeta: field %q has a default of the wrong shape", desc.Key)
	switch desc.Kind.Shape() {
	case types.ShapeDate:
		switch v := raw.(type) {
		case nil:
			return types.NullDate(), nil
		case time.Time:
			return types.Date(v), nil
		case string:
			t, err := time.Parse(types.DateLayout, v)
			if err != nil {
				return types.Value{}, bad
			}
			return types.Date(t), nil
		default:
			return types.Value{}, bad
		}
	case types.ShapeList:
		switch v := raw.(type) {
		case nil:
			return types.List(make([]string, desc.FixedLength)...), nil
		case []any:
			items := make([]string, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return types.Value{}, bad
				}
				items = append(items, s)
			}
			return types.List(items...), nil
		default:
			return types.Value{}, bad
		}
	default:
		switch v := raw.(type) {
		case nil:
			return types.Text(""), nil
		case string:
			return types.Text(v), nil
		default:
			return types.Value{}, bad
		}
	}
}

func cloneFieldDescriptor(d FieldDescriptor) FieldDescriptor {
	if d.Options != nil {
		opts := make([]dict.Option, len(d.Options))
		copy(opts, d.Options)
		d.Options = opts
	}
	return d
}

func clonePolicyDescriptor(p PolicyDescriptor) PolicyDescriptor {
	governs := make([]string, len(p.Governs))
	copy(governs, p.Governs)
	p.Governs = governs
	return p
}
