package config

import (
	"fmt"
	"os"

	"braces.dev/errtrace"
	"gopkg.in/yaml.v3"
)

const (
	ErrConfigNotMapping Error = "configuration root is not a mapping"
)

// LoadFile reads a YAML configuration file into a snapshot tagged with
// [SourceFile]. The document order of the keys is preserved, which is
// why this walks yaml nodes instead of decoding into a map.
func LoadFile(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errtrace.Wrap(err)
	}
	return errtrace.Wrap2(ParseFile(data))
}

// ParseFile parses YAML configuration bytes into a snapshot tagged
// with [SourceFile].
func ParseFile(data []byte) (Snapshot, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errtrace.Wrap(err)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, nil
	}

	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, errtrace.Wrap(ErrConfigNotMapping)
	}

	snapshot := make(Snapshot, 0, len(doc.Content)/2)
	for i := 0; i+1 < len(doc.Content); i += 2 {
		keyNode, valNode := doc.Content[i], doc.Content[i+1]

		var key string
		if err := keyNode.Decode(&key); err != nil {
			return nil, errtrace.Wrap(fmt.Errorf("configuration key at line %d: %w", keyNode.Line, err))
		}
		value, err := decodeValueNode(valNode)
		if err != nil {
			return nil, errtrace.Wrap(fmt.Errorf("configuration value of %q: %w", key, err))
		}
		snapshot = append(snapshot, SnapshotEntry{
			Key:    Key(key),
			Value:  value,
			Source: SourceFile,
		})
	}
	return snapshot, nil
}

func decodeValueNode(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.SequenceNode:
		list := make([]any, 0, len(n.Content))
		for _, elem := range n.Content {
			v, err := decodeValueNode(elem)
			if err != nil {
				return nil, errtrace.Wrap(err)
			}
			list = append(list, v)
		}
		return list, nil

	case yaml.MappingNode:
		return errtrace.Wrap2(decodePairNode(n))

	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, errtrace.Wrap(err)
		}
		return v, nil
	}
}

// decodePairNode maps the two mapping shapes the file syntax uses for
// pair-typed values onto their Go forms:
//
//	{match: <re>, rewrite: <s>} -> Rewrite
//	{match: <re>, action: <v>}  -> MatchAction
//
// any other mapping stays a plain map and only fits an opaque entry.
func decodePairNode(n *yaml.Node) (any, error) {
	var m map[string]any
	if err := n.Decode(&m); err != nil {
		return nil, errtrace.Wrap(err)
	}
	if len(m) != 2 {
		return m, nil
	}

	match, hasMatch := m["match"].(string)
	if !hasMatch {
		return m, nil
	}
	if rewrite, ok := m["rewrite"].(string); ok {
		return Rewrite{Match: match, Rewrite: rewrite}, nil
	}
	if action, ok := m["action"]; ok {
		return MatchAction{Match: match, Action: action}, nil
	}
	return m, nil
}

// DefaultsSnapshot synthesizes the defaults-backend snapshot of a
// schema: one entry per key, carrying the declared default or [Unset],
// tagged with [SourceDefault]. Merging it under the file snapshot is
// the caller's concern.
func DefaultsSnapshot(schema Schema) Snapshot {
	snapshot := make(Snapshot, 0, len(schema))
	for _, entry := range schema {
		value := entry.Default
		if value == nil {
			value = Unset
		}
		snapshot = append(snapshot, SnapshotEntry{
			Key:    entry.Key,
			Value:  value,
			Source: SourceDefault,
		})
	}
	return snapshot
}

// MergeSnapshots overlays snapshots left to right: a key present in a
// later snapshot hides the same key of an earlier one. The result
// keeps first-appearance order.
func MergeSnapshots(snapshots ...Snapshot) Snapshot {
	var out Snapshot
	pos := make(map[Key]int)
	for _, snapshot := range snapshots {
		for _, e := range snapshot {
			if i, ok := pos[e.Key]; ok {
				out[i] = e
				continue
			}
			pos[e.Key] = len(out)
			out = append(out, e)
		}
	}
	return out
}
