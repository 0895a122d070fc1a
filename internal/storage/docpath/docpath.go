// Package docpath maps JSON subtrees onto flat leaf paths and back.
//
// The document store is a single JSON tree addressed by slash-separated paths. Backends
// keep only scalar leaves ("groups/g1/members/0" -> "\"a@x.com\""), which makes replacing
// or deleting any subtree a prefix operation. Arrays are stored as objects keyed "0".."n-1"
// and come back as arrays; empty objects, empty arrays and nulls are never stored.
package docpath

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidPath is returned for paths or object keys the store cannot address.
var ErrInvalidPath = errors.New("invalid document path")

// Leaves maps full leaf paths to their JSON-encoded scalar values.
type Leaves map[string]json.RawMessage

// Clean validates p and returns it without leading or trailing slashes.
// The empty string is the root of the tree.
func Clean(p string) (string, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return "", nil
	}
	for _, seg := range strings.Split(p, "/") {
		if err := checkSegment(seg); err != nil {
			return "", fmt.Errorf("%w: %q: %v", ErrInvalidPath, p, err)
		}
	}
	return p, nil
}

func checkSegment(seg string) error {
	switch {
	case seg == "":
		return errors.New("empty segment")
	case strings.ContainsAny(seg, ".$#[]"):
		return fmt.Errorf("segment %q contains a forbidden character", seg)
	}
	return nil
}

// Join appends key to prefix.
func Join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

// Within reports whether p is prefix itself or lies below it.
func Within(p, prefix string) bool {
	if prefix == "" {
		return true
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// Ancestors returns the proper ancestors of p, nearest last, excluding the root.
func Ancestors(p string) []string {
	var out []string
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			out = append(out, p[:i])
		}
	}
	return out
}

// Flatten decodes raw and returns its scalar leaves rooted at prefix.
// A null document yields no leaves.
func Flatten(prefix string, raw []byte) (Leaves, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if dec.More() {
		return nil, errors.New("failed to decode document: trailing data")
	}

	leaves := make(Leaves)
	if err := flatten(prefix, doc, leaves); err != nil {
		return nil, err
	}
	return leaves, nil
}

func flatten(p string, v any, out Leaves) error {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		for k, child := range t {
			if err := checkSegment(k); err != nil {
				return fmt.Errorf("%w: key %q under %q: %v", ErrInvalidPath, k, p, err)
			}
			if err := flatten(Join(p, k), child, out); err != nil {
				return err
			}
		}
		return nil
	case []any:
		for i, child := range t {
			if err := flatten(Join(p, strconv.Itoa(i)), child, out); err != nil {
				return err
			}
		}
		return nil
	default:
		if p == "" {
			return fmt.Errorf("%w: scalar at root", ErrInvalidPath)
		}
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to encode leaf %q: %w", p, err)
		}
		out[p] = b
		return nil
	}
}

// Assemble rebuilds the JSON document rooted at prefix from leaves.
// Leaves outside prefix are ignored. An empty subtree encodes as null.
func Assemble(prefix string, leaves Leaves) ([]byte, error) {
	var root any
	for p, val := range leaves {
		if !Within(p, prefix) {
			continue
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(p, prefix), "/")
		if rel == "" {
			// A scalar stored exactly at prefix.
			return append([]byte(nil), val...), nil
		}
		if root == nil {
			root = map[string]any{}
		}
		insert(root.(map[string]any), strings.Split(rel, "/"), val)
	}
	if root == nil {
		return []byte("null"), nil
	}
	return json.Marshal(arrayify(root))
}

func insert(node map[string]any, segs []string, val json.RawMessage) {
	for _, seg := range segs[:len(segs)-1] {
		child, ok := node[seg].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[seg] = child
		}
		node = child
	}
	node[segs[len(segs)-1]] = val
}

// arrayify turns objects keyed exactly "0".."n-1" back into arrays.
func arrayify(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	for k, child := range m {
		m[k] = arrayify(child)
	}

	idx := make([]int, 0, len(m))
	for k := range m {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 || strconv.Itoa(i) != k {
			return m
		}
		idx = append(idx, i)
	}
	sort.Ints(idx)
	for want, got := range idx {
		if want != got {
			return m
		}
	}

	arr := make([]any, len(idx))
	for _, i := range idx {
		arr[i] = m[strconv.Itoa(i)]
	}
	return arr
}
