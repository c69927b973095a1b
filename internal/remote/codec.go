package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Kind is the storage class of a column.
type Kind int

const (
	KindText Kind = iota
	KindInt
	KindBool
	KindTime
	KindJSON
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindJSON:
		return "json"
	}
	return "unknown"
}

// Column maps a canonical field to a remote column.
type Column struct {
	Field string
	Name  string
	Kind  Kind
}

// Row is a translated record keyed by remote column name. Values are
// driver-friendly: string, int64, bool or nil. Times are RFC 3339 text in
// UTC and nested values are JSON text.
type Row map[string]any

func cols(defs ...string) []Column {
	out := make([]Column, 0, len(defs))
	for _, s := range defs {
		field, kind, _ := strings.Cut(s, ":")
		c := Column{Field: field, Name: snake(field)}
		switch kind {
		case "int":
			c.Kind = KindInt
		case "bool":
			c.Kind = KindBool
		case "time":
			c.Kind = KindTime
		case "json":
			c.Kind = KindJSON
		}
		out = append(out, c)
	}
	return out
}

var columns = map[Collection][]Column{
	Goals: cols("id", "userId", "localId:int", "text", "description", "category",
		"progress:int", "targetDate", "completedAt:time", "subtasks:json",
		"createdAt:time", "updatedAt:time"),
	TinyGoals: cols("id", "userId", "localId:int", "text", "completedAt:time", "createdAt:time"),
	DailyTasks: cols("id", "userId", "date", "text", "completed:bool", "completedAt:time"),
	RecurringTasks: cols("id", "userId", "localId", "text", "recurrence:json",
		"lastCompleted:time", "createdAt:time", "updatedAt:time"),
	Quotes:      cols("id", "userId", "date", "text", "author", "mood"),
	Preferences: cols("id", "userId", "reminderTime", "theme", "notifications:bool", "showQuote:bool"),
}

func snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Columns returns the remote columns of c in storage order. The first column
// is always the id and the second the owner.
func Columns(c Collection) ([]Column, error) {
	cs, ok := columns[c]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, c)
	}
	return cs, nil
}

// ColumnFor returns the column storing a canonical field of c.
func ColumnFor(c Collection, field string) (Column, error) {
	cs, err := Columns(c)
	if err != nil {
		return Column{}, err
	}
	for _, col := range cs {
		if col.Field == field {
			return col, nil
		}
	}
	return Column{}, fmt.Errorf("unknown field %q in %s", field, c)
}

// EncodeRecord translates rec into a remote row.
func EncodeRecord(rec Record) (Row, error) {
	cs, err := Columns(rec.Collection())
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s record: %w", rec.Collection(), err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var canonical map[string]any
	if err := dec.Decode(&canonical); err != nil {
		return nil, fmt.Errorf("failed to decode %s record: %w", rec.Collection(), err)
	}

	row := make(Row, len(cs))
	for _, col := range cs {
		v, err := encodeValue(col, canonical[col.Field])
		if err != nil {
			return nil, err
		}
		row[col.Name] = v
	}
	return row, nil
}

// EncodeFields translates a partial canonical record into remote columns.
// The id and owner columns cannot be patched.
func EncodeFields(c Collection, fields Fields) (Row, error) {
	row := make(Row, len(fields))
	for field, v := range fields {
		col, err := ColumnFor(c, field)
		if err != nil {
			return nil, err
		}
		if col.Field == "id" || col.Field == "userId" {
			return nil, fmt.Errorf("field %q of %s cannot be updated", field, c)
		}
		ev, err := encodeValue(col, v)
		if err != nil {
			return nil, err
		}
		row[col.Name] = ev
	}
	return row, nil
}

// DecodeRow translates a remote row of c back into a typed record.
func DecodeRow(c Collection, row Row) (Record, error) {
	cs, err := Columns(c)
	if err != nil {
		return nil, err
	}
	canonical := make(map[string]any, len(cs))
	for _, col := range cs {
		v, err := decodeValue(col, row[col.Name])
		if err != nil {
			return nil, err
		}
		canonical[col.Field] = v
	}
	data, err := json.Marshal(canonical)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s row: %w", c, err)
	}

	var rec Record
	switch c {
	case Goals:
		rec, err = decodeInto[GoalRecord](data)
	case TinyGoals:
		rec, err = decodeInto[TinyGoalRecord](data)
	case DailyTasks:
		rec, err = decodeInto[DailyTaskRecord](data)
	case RecurringTasks:
		rec, err = decodeInto[RecurringTaskRecord](data)
	case Quotes:
		rec, err = decodeInto[QuoteRecord](data)
	case Preferences:
		rec, err = decodeInto[PreferencesRecord](data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s row: %w", c, err)
	}
	return rec, nil
}

func decodeInto[T Record](data []byte) (Record, error) {
	var r T
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return r, nil
}

func encodeValue(col Column, v any) (any, error) {
	switch col.Kind {
	case KindText:
		if v == nil {
			return "", nil
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.String {
			return rv.String(), nil
		}
		return nil, fmt.Errorf("field %s: expected text, got %T", col.Field, v)

	case KindInt:
		n, err := toInt(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", col.Field, err)
		}
		return n, nil

	case KindBool:
		b, err := toBool(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", col.Field, err)
		}
		return b, nil

	case KindTime:
		t, ok, err := toTime(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", col.Field, err)
		}
		if !ok {
			return nil, nil
		}
		return t.UTC().Format(time.RFC3339Nano), nil

	case KindJSON:
		if v == nil {
			return nil, nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", col.Field, err)
		}
		return string(data), nil
	}
	return nil, fmt.Errorf("field %s: unsupported kind %s", col.Field, col.Kind)
}

func decodeValue(col Column, v any) (any, error) {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch col.Kind {
	case KindText:
		if v == nil {
			return "", nil
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("column %s: expected text, got %T", col.Name, v)
		}
		return s, nil

	case KindInt:
		n, err := toInt(v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		return n, nil

	case KindBool:
		b, err := toBool(v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		return b, nil

	case KindTime:
		t, ok, err := toTime(v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		if !ok {
			return nil, nil
		}
		return t, nil

	case KindJSON:
		s, ok := v.(string)
		if v == nil || (ok && s == "") {
			return nil, nil
		}
		if !ok {
			return v, nil
		}
		if !json.Valid([]byte(s)) {
			return nil, fmt.Errorf("column %s: invalid JSON", col.Name)
		}
		return json.RawMessage(s), nil
	}
	return nil, fmt.Errorf("column %s: unsupported kind %s", col.Name, col.Kind)
}

func toInt(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case json.Number:
		return n.Int64()
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("expected integer, got %v", n)
		}
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int64(rv.Uint()), nil
	}
	return 0, fmt.Errorf("expected integer, got %T", v)
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case nil:
		return false, nil
	case bool:
		return b, nil
	case int64:
		return b != 0, nil
	case string:
		return strconv.ParseBool(b)
	}
	n, err := toInt(v)
	if err != nil {
		return false, fmt.Errorf("expected bool, got %T", v)
	}
	return n != 0, nil
}

func toTime(v any) (time.Time, bool, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		return t, true, nil
	case *time.Time:
		if t == nil {
			return time.Time{}, false, nil
		}
		return *t, true, nil
	case string:
		if t == "" {
			return time.Time{}, false, nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("invalid timestamp %q", t)
		}
		return parsed, true, nil
	}
	return time.Time{}, false, fmt.Errorf("expected timestamp, got %T", v)
}
