// Package jsonpath implements the single JSONPath-like abstraction used for
// both substitution extraction and layering/substitution injection.
// A Path is parsed once and then used to Get or Inject against a document's
// data section.
package jsonpath

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrorKind is one of the three recognized path-evaluation failure kinds.
type ErrorKind string

const (
	ErrParse                ErrorKind = "parse-error"
	ErrGetNotFound          ErrorKind = "get-not-found"
	ErrInjectParentMissing  ErrorKind = "inject-parent-missing"
)

// Error is a typed JSONPath failure carrying the offending path string.
type Error struct {
	Kind ErrorKind
	Path string
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Msg, e.Path)
}

// segment is one step of a parsed path: a map key, optionally followed by an
// array index.
type segment struct {
	key      string
	hasIndex bool
	index    int
}

// Path is a parsed JSONPath expression.
type Path struct {
	raw      string
	root     bool // true if the path designates the entire data section
	segments []segment
}

var indexPattern = regexp.MustCompile(`^([^\[\]]*)(?:\[(\d+)\])?$`)

// Parse parses a dotted path expression. Paths beginning with "." are
// equivalent to paths beginning with "$"; a path of "." or "$" means the
// entire data section.
func Parse(raw string) (*Path, error) {
	s := raw
	switch {
	case s == "" :
		return nil, &Error{Kind: ErrParse, Path: raw, Msg: "empty path"}
	case s == "." || s == "$":
		return &Path{raw: raw, root: true}, nil
	case strings.HasPrefix(s, "$."):
		s = s[2:]
	case strings.HasPrefix(s, "."):
		s = s[1:]
	case strings.HasPrefix(s, "$"):
		s = s[1:]
	}
	if s == "" {
		return &Path{raw: raw, root: true}, nil
	}
	parts := strings.Split(s, ".")
	segs := make([]segment, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			return nil, &Error{Kind: ErrParse, Path: raw, Msg: "empty path segment"}
		}
		m := indexPattern.FindStringSubmatch(p)
		if m == nil || m[1] == "" {
			return nil, &Error{Kind: ErrParse, Path: raw, Msg: fmt.Sprintf("invalid path segment %q", p)}
		}
		sg := segment{key: m[1]}
		if m[2] != "" {
			idx, err := strconv.Atoi(m[2])
			if err != nil {
				return nil, &Error{Kind: ErrParse, Path: raw, Msg: fmt.Sprintf("invalid array index in %q", p)}
			}
			sg.hasIndex = true
			sg.index = idx
		}
		segs = append(segs, sg)
	}
	return &Path{raw: raw, segments: segs}, nil
}

// MustParse parses raw and panics on error; for use with compile-time constants.
func MustParse(raw string) *Path {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Path) String() string { return p.raw }

// Get extracts the value at p from data.
func (p *Path) Get(data interface{}) (interface{}, error) {
	if p.root {
		return data, nil
	}
	cur := data
	for i, sg := range p.segments {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, &Error{Kind: ErrGetNotFound, Path: p.raw, Msg: fmt.Sprintf("segment %q: not an object", sg.key)}
		}
		val, ok := m[sg.key]
		if !ok {
			return nil, &Error{Kind: ErrGetNotFound, Path: p.raw, Msg: fmt.Sprintf("key %q not found", sg.key)}
		}
		if sg.hasIndex {
			list, ok := val.([]interface{})
			if !ok || sg.index < 0 || sg.index >= len(list) {
				return nil, &Error{Kind: ErrGetNotFound, Path: p.raw, Msg: fmt.Sprintf("index [%d] out of range", sg.index)}
			}
			val = list[sg.index]
		}
		if i == len(p.segments)-1 {
			return val, nil
		}
		cur = val
	}
	return cur, nil
}

// Inject returns a copy of data with value written at p, creating any
// missing intermediate object nodes along the way (vivification).
func (p *Path) Inject(data interface{}, value interface{}) (interface{}, error) {
	if p.root {
		return value, nil
	}
	root, ok := data.(map[string]interface{})
	if !ok {
		if data == nil {
			root = map[string]interface{}{}
		} else {
			return nil, &Error{Kind: ErrParse, Path: p.raw, Msg: "inject target is not an object"}
		}
	}
	return injectVivify(root, p.segments, value, p.raw)
}

func injectVivify(m map[string]interface{}, segs []segment, value interface{}, raw string) (map[string]interface{}, error) {
	out := shallowCopy(m)
	sg := segs[0]
	if len(segs) == 1 && !sg.hasIndex {
		out[sg.key] = value
		return out, nil
	}

	var childVal interface{}
	if existing, ok := out[sg.key]; ok {
		childVal = existing
	}

	if sg.hasIndex {
		list, ok := childVal.([]interface{})
		if !ok {
			list = nil
		}
		list = growList(list, sg.index)
		if len(segs) == 1 {
			list[sg.index] = value
		} else {
			elemMap, ok := list[sg.index].(map[string]interface{})
			if !ok {
				elemMap = map[string]interface{}{}
			}
			updated, err := injectVivify(elemMap, segs[1:], value, raw)
			if err != nil {
				return nil, err
			}
			list[sg.index] = updated
		}
		out[sg.key] = list
		return out, nil
	}

	childMap, ok := childVal.(map[string]interface{})
	if !ok {
		childMap = map[string]interface{}{}
	}
	updated, err := injectVivify(childMap, segs[1:], value, raw)
	if err != nil {
		return nil, err
	}
	out[sg.key] = updated
	return out, nil
}

// InjectPattern replaces the first match of pattern within the existing
// string value at p with value. The target
// must already exist and be a string; no vivification occurs.
func (p *Path) InjectPattern(data interface{}, value string, pattern string) (interface{}, error) {
	if p.root {
		s, ok := data.(string)
		if !ok {
			return nil, &Error{Kind: ErrInjectParentMissing, Path: p.raw, Msg: "target is not a string"}
		}
		return replacePattern(s, pattern, value)
	}
	root, ok := data.(map[string]interface{})
	if !ok {
		return nil, &Error{Kind: ErrInjectParentMissing, Path: p.raw, Msg: "inject target is not an object"}
	}
	return injectPatternAt(root, p.segments, value, pattern, p.raw)
}

func injectPatternAt(m map[string]interface{}, segs []segment, value, pattern, raw string) (map[string]interface{}, error) {
	sg := segs[0]
	existing, ok := m[sg.key]
	if !ok {
		return nil, &Error{Kind: ErrInjectParentMissing, Path: raw, Msg: fmt.Sprintf("parent missing at %q", sg.key)}
	}

	if sg.hasIndex {
		list, ok := existing.([]interface{})
		if !ok || sg.index < 0 || sg.index >= len(list) {
			return nil, &Error{Kind: ErrInjectParentMissing, Path: raw, Msg: "array index missing"}
		}
		out := shallowCopy(m)
		newList := append([]interface{}(nil), list...)
		if len(segs) == 1 {
			s, ok := newList[sg.index].(string)
			if !ok {
				return nil, &Error{Kind: ErrInjectParentMissing, Path: raw, Msg: "target is not a string"}
			}
			replaced, err := replacePattern(s, pattern, value)
			if err != nil {
				return nil, err
			}
			newList[sg.index] = replaced
		} else {
			elemMap, ok := newList[sg.index].(map[string]interface{})
			if !ok {
				return nil, &Error{Kind: ErrInjectParentMissing, Path: raw, Msg: "parent missing"}
			}
			updated, err := injectPatternAt(elemMap, segs[1:], value, pattern, raw)
			if err != nil {
				return nil, err
			}
			newList[sg.index] = updated
		}
		out[sg.key] = newList
		return out, nil
	}

	out := shallowCopy(m)
	if len(segs) == 1 {
		s, ok := existing.(string)
		if !ok {
			return nil, &Error{Kind: ErrInjectParentMissing, Path: raw, Msg: "target is not a string"}
		}
		replaced, err := replacePattern(s, pattern, value)
		if err != nil {
			return nil, err
		}
		out[sg.key] = replaced
		return out, nil
	}

	childMap, ok := existing.(map[string]interface{})
	if !ok {
		return nil, &Error{Kind: ErrInjectParentMissing, Path: raw, Msg: fmt.Sprintf("parent missing at %q", sg.key)}
	}
	updated, err := injectPatternAt(childMap, segs[1:], value, pattern, raw)
	if err != nil {
		return nil, err
	}
	out[sg.key] = updated
	return out, nil
}

// Delete returns a copy of data with the key at p removed, and whether the
// key was present to begin with. A root path deletes everything, yielding
// nil.
func (p *Path) Delete(data interface{}) (interface{}, bool, error) {
	if p.root {
		return nil, true, nil
	}
	root, ok := data.(map[string]interface{})
	if !ok {
		return nil, false, &Error{Kind: ErrGetNotFound, Path: p.raw, Msg: "delete target is not an object"}
	}
	return deleteAt(root, p.segments, p.raw)
}

func deleteAt(m map[string]interface{}, segs []segment, raw string) (map[string]interface{}, bool, error) {
	sg := segs[0]
	existing, ok := m[sg.key]
	if !ok {
		return m, false, nil
	}

	if len(segs) == 1 && !sg.hasIndex {
		out := shallowCopy(m)
		delete(out, sg.key)
		return out, true, nil
	}

	if sg.hasIndex {
		list, ok := existing.([]interface{})
		if !ok || sg.index < 0 || sg.index >= len(list) {
			return m, false, nil
		}
		out := shallowCopy(m)
		newList := append([]interface{}(nil), list...)
		if len(segs) == 1 {
			newList = append(newList[:sg.index], newList[sg.index+1:]...)
			out[sg.key] = newList
			return out, true, nil
		}
		elemMap, ok := newList[sg.index].(map[string]interface{})
		if !ok {
			return m, false, nil
		}
		updated, deleted, err := deleteAt(elemMap, segs[1:], raw)
		if err != nil || !deleted {
			return m, deleted, err
		}
		newList[sg.index] = updated
		out[sg.key] = newList
		return out, true, nil
	}

	childMap, ok := existing.(map[string]interface{})
	if !ok {
		return m, false, nil
	}
	updated, deleted, err := deleteAt(childMap, segs[1:], raw)
	if err != nil || !deleted {
		return m, deleted, err
	}
	out := shallowCopy(m)
	out[sg.key] = updated
	return out, true, nil
}

func replacePattern(target, pattern, value string) (string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", &Error{Kind: ErrParse, Msg: fmt.Sprintf("invalid pattern %q: %v", pattern, err)}
	}
	loc := re.FindStringIndex(target)
	if loc == nil {
		return target, nil
	}
	return target[:loc[0]] + value + target[loc[1]:], nil
}

func shallowCopy(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func growList(list []interface{}, n int) []interface{} {
	if n < len(list) {
		out := append([]interface{}(nil), list...)
		return out
	}
	out := make([]interface{}, n+1)
	copy(out, list)
	return out
}
