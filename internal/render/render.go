// Package render resolves secret references embedded in YAML documents.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/systmms/secretref/pkg/secrets"
)

// ValueResolver resolves a single configuration value. *resolve.Resolver
// implements it.
type ValueResolver interface {
	ResolveValue(ctx context.Context, value string) (string, error)
}

// Document parses in as a stream of YAML documents, replaces every string
// scalar holding a secret reference with its resolved value and re-encodes
// the stream. Mapping keys, comments and ordering are preserved.
//
// Errors name the line of the failing reference, never its content.
func Document(ctx context.Context, resolver ValueResolver, in []byte) ([]byte, error) {
	dec := yaml.NewDecoder(bytes.NewReader(in))

	var out bytes.Buffer
	enc := yaml.NewEncoder(&out)
	enc.SetIndent(2)

	for {
		var doc yaml.Node
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		if err := resolveNode(ctx, resolver, &doc); err != nil {
			return nil, err
		}
		if err := enc.Encode(&doc); err != nil {
			return nil, fmt.Errorf("failed to encode YAML: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode YAML: %w", err)
	}
	return out.Bytes(), nil
}

func resolveNode(ctx context.Context, resolver ValueResolver, node *yaml.Node) error {
	switch node.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, child := range node.Content {
			if err := resolveNode(ctx, resolver, child); err != nil {
				return err
			}
		}
	case yaml.MappingNode:
		// Content alternates key, value.
		for i := 1; i < len(node.Content); i += 2 {
			if err := resolveNode(ctx, resolver, node.Content[i]); err != nil {
				return err
			}
		}
	case yaml.ScalarNode:
		if node.ShortTag() != "!!str" || !secrets.IsReference(node.Value) {
			return nil
		}
		value, err := resolver.ResolveValue(ctx, node.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		node.Value = value
		node.Tag = "!!str"
		if node.Style == yaml.LiteralStyle || node.Style == yaml.FoldedStyle {
			node.Style = 0
		}
	}
	// Aliases point at nodes resolved where they are anchored.
	return nil
}
