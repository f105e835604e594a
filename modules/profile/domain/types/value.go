package types

import (
	"slices"
	"time"
)

// Kind is the value kind declared by a field descriptor.
type Kind string

const (
	KindText       Kind = "text"
	KindLongText   Kind = "long_text"
	KindEnum       Kind = "enum"
	KindDate       Kind = "date"
	KindListOfText Kind = "list_of_text"
)

func (k Kind) Valid() bool {
	switch k {
	case KindText, KindLongText, KindEnum, KindDate, KindListOfText:
		return true
	default:
		return false
	}
}

// Shape is the storage shape of a Value. Several kinds share one shape
// (text, long_text and enum are all strings).
type Shape string

const (
	ShapeString Shape = "string"
	ShapeDate   Shape = "date"
	ShapeList   Shape = "list"
)

func (k Kind) Shape() Shape {
	switch k {
	case KindDate:
		return ShapeDate
	case KindListOfText:
		return ShapeList
	default:
		return ShapeString
	}
}

const DateLayout = "2006-01-02"

// Value is a tagged field value. The zero Value is the empty string.
type Value struct {
	shape   Shape
	text    string
	items   []string
	date    time.Time
	hasDate bool
}

func Text(s string) Value {
	return Value{shape: ShapeString, text: s}
}

// Date truncates t to its calendar day in UTC.
func Date(t time.Time) Value {
	y, m, d := t.Date()
	return Value{shape: ShapeDate, date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), hasDate: true}
}

func NullDate() Value {
	return Value{shape: ShapeDate}
}

func List(items ...string) Value {
	copied := make([]string, len(items))
	copy(copied, items)
	return Value{shape: ShapeList, items: copied}
}

func (v Value) Shape() Shape {
	if v.shape == "" {
		return ShapeString
	}
	return v.shape
}

func (v Value) Text() string { return v.text }

func (v Value) Items() []string {
	out := make([]string, len(v.items))
	copy(out, v.items)
	return out
}

func (v Value) Date() (time.Time, bool) {
	return v.date, v.hasDate
}

// Display returns the value as it would appear on a read-only card. Lists are
// not joined here; callers render them item by item.
func (v Value) Display() string {
	switch v.Shape() {
	case ShapeDate:
		if !v.hasDate {
			return ""
		}
		return v.date.Format(DateLayout)
	case ShapeList:
		return ""
	default:
		return v.text
	}
}

func (v Value) Equal(o Value) bool {
	if v.Shape() != o.Shape() {
		return false
	}
	switch v.Shape() {
	case ShapeDate:
		if v.hasDate != o.hasDate {
			return false
		}
		return !v.hasDate || v.date.Equal(o.date)
	case ShapeList:
		return slices.Equal(v.items, o.items)
	default:
		return v.text == o.text
	}
}

// Persisted converts the value to its storage form: string, []string, or a
// "2006-01-02" string / nil for dates.
func (v Value) Persisted() any {
	switch v.Shape() {
	case ShapeDate:
		if !v.hasDate {
			return nil
		}
		return v.date.Format(DateLayout)
	case ShapeList:
		return v.Items()
	default:
		return v.text
	}
}
