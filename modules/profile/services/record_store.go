package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/jacksonlee411/community-portal/modules/profile/domain/fieldmeta"
	"github.com/jacksonlee411/community-portal/modules/profile/domain/types"
)

// RecordStore is the typed, registry-checked view over profile records. It is
// stateless; every mutation returns a new Record.
type RecordStore struct {
	registry *fieldmeta.Registry
	now      func() time.Time
}

func NewRecordStore(registry *fieldmeta.Registry) RecordStore {
	return RecordStore{registry: registry, now: time.Now}
}

// WithClock returns a copy whose field rules see now() as the current time.
func (s RecordStore) WithClock(now func() time.Time) RecordStore {
	s.now = now
	return s
}

func (s RecordStore) Registry() *fieldmeta.Registry { return s.registry }

// Defaults returns a record holding the registry default for every field.
func (s RecordStore) Defaults() types.Record {
	fields := s.registry.Fields()
	values := make(map[string]types.Value, len(fields))
	for _, f := range fields {
		values[f.Key] = f.Default
	}
	return types.NewRecord(values)
}

// Load decodes a persisted document. Missing keys take their default and keys
// the registry does not know are ignored. A value of the wrong shape is a
// ValidationError; field rules are not re-applied to stored data.
func (s RecordStore) Load(doc types.Document) (types.Record, error) {
	fields := s.registry.Fields()
	values := make(map[string]types.Value, len(fields))
	for _, f := range fields {
		raw, ok := doc[f.Key]
		if !ok {
			values[f.Key] = f.Default
			continue
		}
		v, err := decodeValue(f, raw)
		if err == nil {
			err = f.Validate(v)
		}
		if err != nil {
			if mismatch, ok := asTypeMismatch(err); ok {
				return types.Record{}, &types.ValidationError{
					Key:    f.Key,
					Reason: fmt.Sprintf("stored value is %s, want %s", mismatch.Got, mismatch.Want),
				}
			}
			return types.Record{}, err
		}
		values[f.Key] = v
	}
	return types.NewRecord(values), nil
}

func (s RecordStore) Get(record types.Record, key string) (types.Value, error) {
	d, err := s.registry.Describe(key)
	if err != nil {
		return types.Value{}, err
	}
	if v, ok := record.Value(key); ok {
		return v, nil
	}
	return d.Default, nil
}

// Set returns record with key replaced by v. On error the input record is
// returned unchanged.
func (s RecordStore) Set(record types.Record, key string, v types.Value) (types.Record, error) {
	d, err := s.registry.Describe(key)
	if err != nil {
		return record, err
	}
	if err := d.Validate(v); err != nil {
		return record, err
	}
	if err := s.registry.CheckRule(key, v, s.now()); err != nil {
		return record, err
	}
	return record.With(key, v), nil
}

// ToPersistable encodes every registry field. Fields absent from record are
// written with their default so Load(ToPersistable(r)) is lossless.
func (s RecordStore) ToPersistable(record types.Record) types.Document {
	fields := s.registry.Fields()
	doc := make(types.Document, len(fields))
	for _, f := range fields {
		v, ok := record.Value(f.Key)
		if !ok {
			v = f.Default
		}
		doc[f.Key] = v.Persisted()
	}
	return doc
}

// Decode converts a JSON-decoded value into a Value of the field's kind. It
// checks shape only; call Set to validate.
func (s RecordStore) Decode(key string, raw any) (types.Value, error) {
	d, err := s.registry.Describe(key)
	if err != nil {
		return types.Value{}, err
	}
	return decodeValue(d, raw)
}

func decodeValue(d fieldmeta.FieldDescriptor, raw any) (types.Value, error) {
	mismatch := func() error {
		return &types.TypeMismatchError{Key: d.Key, Kind: d.Kind, Want: d.Kind.Shape(), Got: shapeOf(raw)}
	}
	switch d.Kind.Shape() {
	case types.ShapeDate:
		switch x := raw.(type) {
		case nil:
			return types.NullDate(), nil
		case time.Time:
			return types.Date(x), nil
		case string:
			if x == "" {
				return types.NullDate(), nil
			}
			t, err := time.Parse(types.DateLayout, x)
			if err != nil {
				return types.Value{}, &types.ValidationError{Key: d.Key, Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", x)}
			}
			return types.Date(t), nil
		default:
			return types.Value{}, mismatch()
		}
	case types.ShapeList:
		switch x := raw.(type) {
		case []string:
			return types.List(x...), nil
		case []any:
			items := make([]string, 0, len(x))
			for _, item := range x {
				s, ok := item.(string)
				if !ok {
					return types.Value{}, mismatch()
				}
				items = append(items, s)
			}
			return types.List(items...), nil
		default:
			return types.Value{}, mismatch()
		}
	default:
		s, ok := raw.(string)
		if !ok {
			return types.Value{}, mismatch()
		}
		return types.Text(s), nil
	}
}

func shapeOf(raw any) types.Shape {
	switch raw.(type) {
	case string:
		return types.ShapeString
	case []any, []string:
		return types.ShapeList
	case time.Time:
		return types.ShapeDate
	case nil:
		return "null"
	default:
		return types.Shape(fmt.Sprintf("%T", raw))
	}
}

func asTypeMismatch(err error) (*types.TypeMismatchError, bool) {
	return errors.AsType[*types.TypeMismatchError](err)
}
