package types

import "sort"

type Section string

const (
	SectionPersonal   Section = "personal"
	SectionFamily     Section = "family"
	SectionContact    Section = "contact"
	SectionEducation  Section = "education"
	SectionExperience Section = "experience"
	SectionBusiness   Section = "business"
	SectionOther      Section = "other"
)

// Sections lists every section in layout order.
var Sections = []Section{
	SectionPersonal,
	SectionFamily,
	SectionContact,
	SectionEducation,
	SectionExperience,
	SectionBusiness,
	SectionOther,
}

func (s Section) Valid() bool {
	for _, known := range Sections {
		if s == known {
			return true
		}
	}
	return false
}

// Document is the persisted form of a Record: field key to string, []string,
// or nil/"2006-01-02" for dates.
type Document map[string]any

// Record holds one value per registry field. Records are immutable; With
// returns a modified copy.
type Record struct {
	values map[string]Value
}

func NewRecord(values map[string]Value) Record {
	copied := make(map[string]Value, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return Record{values: copied}
}

func (r Record) Value(key string) (Value, bool) {
	v, ok := r.values[key]
	return v, ok
}

func (r Record) With(key string, v Value) Record {
	next := make(map[string]Value, len(r.values)+1)
	for k, old := range r.values {
		next[k] = old
	}
	next[key] = v
	return Record{values: next}
}

func (r Record) Len() int { return len(r.values) }

func (r Record) Keys() []string {
	out := make([]string, 0, len(r.values))
	for k := range r.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (r Record) Equal(o Record) bool {
	if len(r.values) != len(o.values) {
		return false
	}
	for k, v := range r.values {
		other, ok := o.values[k]
		if !ok || !v.Equal(other) {
			return false
		}
	}
	return true
}

func (r Record) Document() Document {
	doc := make(Document, len(r.values))
	for k, v := range r.values {
		doc[k] = v.Persisted()
	}
	return doc
}
