package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FieldProblem is one offending field found while checking a record.
type FieldProblem struct {
	Path string
	Msg  string
}

func (p FieldProblem) String() string {
	return fmt.Sprintf("Field '%s': %s", p.Path, p.Msg)
}

// SchemaError lists every problem found in an import, not only the first.
type SchemaError struct {
	Problems []FieldProblem
}

func (e *SchemaError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.String()
	}
	return "format: schema validation failed: " + strings.Join(msgs, "; ")
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchemaValidation }

// Details returns the problems as display strings.
func (e *SchemaError) Details() []string {
	out := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		out[i] = p.String()
	}
	return out
}

const (
	msgRequired = "field required"
	msgString   = "input should be a valid string"
	msgObject   = "input should be a valid object"
	msgList     = "input should be a valid list"
)

// checker accumulates problems while records are decoded.
type checker struct {
	problems []FieldProblem
}

func (c *checker) add(path, msg string) {
	c.problems = append(c.problems, FieldProblem{Path: path, Msg: msg})
}

func (c *checker) err() error {
	if len(c.problems) == 0 {
		return nil
	}
	return &SchemaError{Problems: c.problems}
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func index(path string, i int) string {
	return join(path, strconv.Itoa(i))
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// object decodes raw as a JSON object.
func (c *checker) object(raw json.RawMessage, path string) (map[string]json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if isNull(raw) || json.Unmarshal(raw, &obj) != nil {
		c.add(path, msgObject)
		return nil, false
	}
	return obj, true
}

// list decodes raw as a JSON array.
func (c *checker) list(raw json.RawMessage, path string) ([]json.RawMessage, bool) {
	var arr []json.RawMessage
	if isNull(raw) || json.Unmarshal(raw, &arr) != nil {
		c.add(path, msgList)
		return nil, false
	}
	return arr, true
}

// str reads obj[key] as a string. Missing or null optional fields read as "".
func (c *checker) str(obj map[string]json.RawMessage, key, path string, required bool) (string, bool) {
	p := join(path, key)
	raw, ok := obj[key]
	if !ok || isNull(raw) {
		if required {
			c.add(p, msgRequired)
			return "", false
		}
		return "", true
	}
	return c.value(raw, p)
}

// value decodes raw as a string.
func (c *checker) value(raw json.RawMessage, path string) (string, bool) {
	var s string
	if isNull(raw) || json.Unmarshal(raw, &s) != nil {
		c.add(path, msgString)
		return "", false
	}
	return s, true
}
