package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
)

type SelectionKind uint8

const (
	SelectionNone SelectionKind = iota
	SelectionScalar
	SelectionSet
	// SelectionInvalid 无法匹配任何答案的结构（对象、嵌套数组）
	SelectionInvalid
)

// Selection is the submitted value of an answer or the key of a question.
// Clients send strings, booleans, numbers, arrays or null; grading
// canonicalizes the value per question type.
type Selection struct {
	kind   SelectionKind
	text   string
	values []string
}

func NoSelection() Selection {
	return Selection{kind: SelectionNone}
}

func Scalar(v string) Selection {
	return Selection{kind: SelectionScalar, text: v}
}

func Set(vs ...string) Selection {
	values := make([]string, len(vs))
	copy(values, vs)
	return Selection{kind: SelectionSet, values: values}
}

func InvalidSelection() Selection {
	return Selection{kind: SelectionInvalid}
}

func (s Selection) Kind() SelectionKind {
	return s.kind
}

// Text 标量取值，非标量返回空串
func (s Selection) Text() string {
	return s.text
}

func (s Selection) Values() []string {
	out := make([]string, len(s.values))
	copy(out, s.values)
	return out
}

func (s Selection) Equal(o Selection) bool {
	if s.kind != o.kind || s.text != o.text || len(s.values) != len(o.values) {
		return false
	}
	for i := range s.values {
		if s.values[i] != o.values[i] {
			return false
		}
	}
	return true
}

// Raw 返回 nil / string / []string，供 BSON 等非 JSON 编码使用
func (s Selection) Raw() interface{} {
	switch s.kind {
	case SelectionScalar:
		return s.text
	case SelectionSet:
		return s.Values()
	}
	return nil
}

// SelectionFromRaw builds a Selection from a decoded JSON or BSON value.
func SelectionFromRaw(v interface{}) Selection {
	if v == nil {
		return NoSelection()
	}
	if str, ok := scalarString(v); ok {
		return Scalar(str)
	}

	// []interface{}, []string, bson.A 等
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return InvalidSelection()
	}
	values := make([]string, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		str, ok := scalarString(rv.Index(i).Interface())
		if !ok {
			return InvalidSelection()
		}
		values = append(values, str)
	}
	return Set(values...)
}

func scalarString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case json.Number:
		return t.String(), true
	}
	return "", false
}

func (s Selection) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case SelectionScalar:
		return json.Marshal(s.text)
	case SelectionSet:
		if s.values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(s.values)
	}
	return []byte("null"), nil
}

// UnmarshalJSON never rejects well-formed JSON: unsupported shapes become
// SelectionInvalid and grade as incorrect.
func (s *Selection) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = SelectionFromRaw(raw)
	return nil
}

func (s Selection) Value() (driver.Value, error) {
	b, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *Selection) Scan(src interface{}) error {
	var data []byte
	switch t := src.(type) {
	case nil:
		*s = NoSelection()
		return nil
	case []byte:
		data = t
	case string:
		data = []byte(t)
	default:
		return errors.New("selection: unsupported scan type")
	}
	if len(data) == 0 {
		*s = NoSelection()
		return nil
	}
	return s.UnmarshalJSON(data)
}

func (Selection) GormDataType() string {
	return "json"
}
