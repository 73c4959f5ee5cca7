package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

var ErrUnsupportedPayload = errors.New("payload não é um objeto JSON nem formulário")

// DecodeBody turns a webhook body into a payload tree. Form bodies
// (application/x-www-form-urlencoded) go through DecodeForm; everything else is
// parsed as JSON with numbers kept as json.Number. An empty body is an empty
// payload.
func DecodeBody(contentType string, raw []byte) (map[string]any, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)

	if mediaType == "application/x-www-form-urlencoded" {
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		return DecodeForm(values), nil
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	payload, ok := v.(map[string]any)
	if !ok {
		return nil, ErrUnsupportedPayload
	}
	return payload, nil
}

// DecodeForm builds a tree out of bracket-notation keys, so
// leads[add][0][id]=7 becomes {"leads":{"add":[{"id":"7"}]}}. Objects whose
// keys are exactly 0..n-1 become arrays. A repeated key keeps every value.
func DecodeForm(values url.Values) map[string]any {
	root := map[string]any{}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		vals := values[key]
		if len(vals) == 0 {
			continue
		}
		path := splitKey(key)
		if len(path) > 1 && path[len(path)-1] == "" {
			for _, s := range vals {
				insert(root, path, s)
			}
			continue
		}
		var leaf any = vals[len(vals)-1]
		if len(vals) > 1 {
			list := make([]any, len(vals))
			for i, s := range vals {
				list[i] = s
			}
			leaf = list
		}
		insert(root, path, leaf)
	}

	for k, child := range root {
		root[k] = arrays(child)
	}
	return root
}

// splitKey splits "a[b][0]" into ["a", "b", "0"]. A key with unbalanced
// brackets is taken literally.
func splitKey(key string) []string {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return []string{key}
	}

	parts := []string{key[:open]}
	rest := key[open:]
	for rest != "" {
		if rest[0] != '[' {
			return []string{key}
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return []string{key}
		}
		parts = append(parts, rest[1:end])
		rest = rest[end+1:]
	}
	return parts
}

func insert(node map[string]any, path []string, leaf any) {
	for i, seg := range path {
		last := i == len(path)-1

		// a[]=x appends under the next free index
		if seg == "" {
			seg = strconv.Itoa(len(node))
		}

		if last {
			node[seg] = leaf
			return
		}

		child, ok := node[seg].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[seg] = child
		}
		node = child
	}
}

func arrays(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	for k, child := range m {
		m[k] = arrays(child)
	}

	if len(m) == 0 {
		return m
	}
	list := make([]any, len(m))
	for k, child := range m {
		idx, err := strconv.Atoi(k)
		if err != nil || idx < 0 || idx >= len(m) || strconv.Itoa(idx) != k {
			return m
		}
		list[idx] = child
	}
	return list
}
