package fieldmeta

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/jacksonlee411/community-portal/modules/profile/domain/types"
)

func TestRegistry_DescribeAndFieldsOf(t *testing.T) {
	r := Default()

	seen := map[string]types.Section{}
	for _, s := range r.Sections() {
		fields := r.FieldsOf(s.ID)
		if len(fields) == 0 {
			t.Fatalf("section %s has no fields", s.ID)
		}
		for _, f := range fields {
			if prev, dup := seen[f.Key]; dup {
				t.Fatalf("field %q in both %s and %s", f.Key, prev, s.ID)
			}
			if f.Section != s.ID {
				t.Fatalf("field %q section=%s listed under %s", f.Key, f.Section, s.ID)
			}
			seen[f.Key] = s.ID
		}
	}
	if len(seen) != len(r.Fields()) {
		t.Fatalf("seen=%d fields=%d", len(seen), len(r.Fields()))
	}

	d, err := r.Describe("siblings")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if d.Kind != types.KindListOfText || d.FixedLength != 5 {
		t.Fatalf("siblings=%+v", d)
	}
	if got := d.Default.Items(); len(got) != 5 {
		t.Fatalf("siblings default=%v", got)
	}
	if d.PolicyKey != "showSiblings" {
		t.Fatalf("policy=%q", d.PolicyKey)
	}
}

func TestRegistry_DescribeUnknown(t *testing.T) {
	_, err := Default().Describe("nickname")
	var unknown *types.UnknownFieldError
	if !errors.As(err, &unknown) || unknown.Key != "nickname" {
		t.Fatalf("err=%v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected MustDescribe to panic")
		}
	}()
	Default().MustDescribe("nickname")
}

func TestRegistry_DescribeReturnsCopies(t *testing.T) {
	r := Default()
	d := r.MustDescribe("gender")
	if len(d.Options) == 0 {
		t.Fatal("expected options")
	}
	d.Options[0].Code = "mutated"

	again := r.MustDescribe("gender")
	if again.Options[0].Code == "mutated" {
		t.Fatal("descriptor options shared with registry")
	}
}

func TestRegistry_EnumDefaultsAreOptions(t *testing.T) {
	for _, f := range Default().Fields() {
		if f.Kind != types.KindEnum {
			continue
		}
		if !f.HasOption(f.Default.Text()) {
			t.Fatalf("enum %q default %q not in options", f.Key, f.Default.Text())
		}
	}
}

func TestRegistry_Policies(t *testing.T) {
	r := Default()
	if key, ok := r.PolicyFor("emailAddress"); !ok || key != "showEmail" {
		t.Fatalf("emailAddress policy=%q ok=%v", key, ok)
	}
	if key, ok := r.PolicyFor("alternatePhone"); !ok || key != "showPhone" {
		t.Fatalf("alternatePhone policy=%q ok=%v", key, ok)
	}
	if _, ok := r.PolicyFor("city"); ok {
		t.Fatal("city should not be privacy governed")
	}

	p, ok := r.LookupPolicy("showParents")
	if !ok || len(p.Governs) != 2 {
		t.Fatalf("showParents=%+v ok=%v", p, ok)
	}
	p.Governs[0] = "mutated"
	again, _ := r.LookupPolicy("showParents")
	if again.Governs[0] == "mutated" {
		t.Fatal("policy descriptor shared with registry")
	}

	if _, ok := r.LookupPolicy(ProfileVisibleKey); !ok {
		t.Fatal("expected profileVisible policy")
	}
	if len(r.PolicyKeys()) != len(r.Policies()) {
		t.Fatal("policy keys and descriptors disagree")
	}
}

func TestFieldDescriptor_Validate(t *testing.T) {
	r := Default()
	cases := []struct {
		key      string
		value    types.Value
		mismatch bool
		invalid  bool
	}{
		{key: "fullName", value: types.Text("John Doe")},
		{key: "fullName", value: types.List("John"), mismatch: true},
		{key: "fullName", value: types.Text("John\nDoe"), invalid: true},
		{key: "fullName", value: types.Text(strings.Repeat("x", 121)), invalid: true},
		{key: "bio", value: types.Text("line one\nline two")},
		{key: "gender", value: types.Text("female")},
		{key: "gender", value: types.Text("robot"), invalid: true},
		{key: "dateOfBirth", value: types.NullDate()},
		{key: "dateOfBirth", value: types.Text("1990-01-01"), mismatch: true},
		{key: "siblings", value: types.List("a", "b", "", "", "")},
		{key: "siblings", value: types.List("a", "b", "", ""), invalid: true},
		{key: "siblings", value: types.List("a", "b", "", "", "", ""), invalid: true},
		{key: "siblings", value: types.Text("a"), mismatch: true},
		{key: "children", value: types.List()},
	}
	for _, tc := range cases {
		err := r.MustDescribe(tc.key).Validate(tc.value)
		switch {
		case tc.mismatch:
			if !types.IsTypeMismatch(err) {
				t.Fatalf("%s %v: expected mismatch, got %v", tc.key, tc.value.Persisted(), err)
			}
		case tc.invalid:
			if !types.IsValidation(err) {
				t.Fatalf("%s %v: expected validation error, got %v", tc.key, tc.value.Persisted(), err)
			}
		default:
			if err != nil {
				t.Fatalf("%s %v: err=%v", tc.key, tc.value.Persisted(), err)
			}
		}
	}
}

func TestRegistry_CheckRule(t *testing.T) {
	r := Default()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := r.CheckRule("emailAddress", types.Text("john@x.com"), now); err != nil {
		t.Fatalf("err=%v", err)
	}
	if err := r.CheckRule("emailAddress", types.Text(""), now); err != nil {
		t.Fatalf("empty email err=%v", err)
	}
	if err := r.CheckRule("emailAddress", types.Text("not-an-email"), now); !types.IsValidation(err) {
		t.Fatalf("err=%v", err)
	}
	if err := r.CheckRule("dateOfBirth", types.NullDate(), now); err != nil {
		t.Fatalf("null dob err=%v", err)
	}
	if err := r.CheckRule("dateOfBirth", types.Date(now.AddDate(0, 0, 1)), now); !types.IsValidation(err) {
		t.Fatalf("future dob err=%v", err)
	}
	if err := r.CheckRule("dateOfBirth", types.Date(now.AddDate(-30, 0, 0)), now); err != nil {
		t.Fatalf("past dob err=%v", err)
	}
	if err := r.CheckRule("city", types.Text("anything"), now); err != nil {
		t.Fatalf("field without rule err=%v", err)
	}
}

const minimalRegistry = `
version: 1
sections:
  - {id: personal, title: P}
  - {id: family, title: F}
  - {id: contact, title: C}
  - {id: education, title: E}
  - {id: experience, title: X}
  - {id: business, title: B}
  - {id: other, title: O}
dicts:
  yesno:
    - {code: "no"}
    - {code: "yes"}
policies:
  - {key: showName, governs: [name]}
fields:
  - {key: name, section: personal, kind: text, label: Name}
  - {key: flag, section: other, kind: enum, label: Flag, dict: yesno, default: "no"}
`

func TestParse_Minimal(t *testing.T) {
	r, err := Parse([]byte(minimalRegistry))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if got := r.MustDescribe("flag").Default.Text(); got != "no" {
		t.Fatalf("default=%q", got)
	}
	if got := r.SectionTitle(types.SectionFamily); got != "F" {
		t.Fatalf("title=%q", got)
	}
	if len(r.FieldsOf(types.SectionFamily)) != 0 {
		t.Fatal("expected empty family section")
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad yaml":          `{`,
		"version":           strings.Replace(minimalRegistry, "version: 1", "version: 2", 1),
		"missing section":   strings.Replace(minimalRegistry, "  - {id: other, title: O}\n", "", 1),
		"duplicate field":   minimalRegistry + "  - {key: name, section: other, kind: text, label: Again}\n",
		"unknown kind":      minimalRegistry + "  - {key: age, section: other, kind: number, label: Age}\n",
		"unknown section":   minimalRegistry + "  - {key: age, section: misc, kind: text, label: Age}\n",
		"no label":          minimalRegistry + "  - {key: age, section: other, kind: text}\n",
		"unknown dict":      minimalRegistry + "  - {key: tone, section: other, kind: enum, label: T, dict: nope}\n",
		"enum default":      minimalRegistry + "  - {key: tone, section: other, kind: enum, label: T, dict: yesno, default: maybe}\n",
		"fixed on text":     minimalRegistry + "  - {key: age, section: other, kind: text, label: A, fixed_length: 2}\n",
		"fixed zero":        minimalRegistry + "  - {key: kids, section: other, kind: list_of_text, label: K, fixed_length: 0}\n",
		"list default len":  minimalRegistry + "  - {key: kids, section: other, kind: list_of_text, label: K, fixed_length: 2, default: [a]}\n",
		"date default":      minimalRegistry + "  - {key: born, section: other, kind: date, label: B, default: yesterday}\n",
		"bad rule":          minimalRegistry + "  - {key: age, section: other, kind: text, label: A, rule: 'value +'}\n",
		"non bool rule":     minimalRegistry + "  - {key: age, section: other, kind: text, label: A, rule: '1 + 1'}\n",
		"dict on text":      minimalRegistry + "  - {key: age, section: other, kind: text, label: A, dict: yesno}\n",
		"policy unknown":    strings.Replace(minimalRegistry, "governs: [name]", "governs: [nope]", 1),
		"policy empty":      strings.Replace(minimalRegistry, "governs: [name]", "governs: []", 1),
		"policy twice":      strings.Replace(minimalRegistry, "  - {key: showName, governs: [name]}", "  - {key: showName, governs: [name]}\n  - {key: showAgain, governs: [name]}", 1),
		"policy is a field": strings.Replace(minimalRegistry, "key: showName", "key: name", 1),
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestCompileRule_EnvAndProgramErrors(t *testing.T) {
	origEnv := newRuleCELEnv
	origProgram := newRuleCELProgram
	t.Cleanup(func() {
		newRuleCELEnv = origEnv
		newRuleCELProgram = origProgram
	})

	newRuleCELEnv = func() (*cel.Env, error) { return nil, errors.New("env") }
	if _, err := compileRule("true"); err == nil {
		t.Fatal("expected env error")
	}

	newRuleCELEnv = origEnv
	newRuleCELProgram = func(*cel.Env, *cel.Ast) (cel.Program, error) { return nil, errors.New("program") }
	if _, err := compileRule("true"); err == nil {
		t.Fatal("expected program error")
	}
}
