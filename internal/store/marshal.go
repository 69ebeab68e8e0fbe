package store

import (
	"fmt"

	"github.com/RafaelSullivam/editor-sub001/internal/ir"
)

func marshalOperation(op ir.Operation) (string, error) {
	data, err := ir.MarshalOperation(op)
	if err != nil {
		return "", fmt.Errorf("marshal operation: %w", err)
	}
	return string(data), nil
}

// unmarshalOperation parses a stored wire record. An empty column reads as
// the no-op sentinel.
func unmarshalOperation(data string) (ir.Operation, error) {
	if data == "" {
		return ir.Noop(), nil
	}
	op, err := ir.UnmarshalOperation([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal operation: %w", err)
	}
	return op, nil
}

func marshalDocument(doc ir.Document) (string, error) {
	data, err := doc.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	return string(data), nil
}

func unmarshalDocument(data string) (ir.Document, error) {
	var doc ir.Document
	if err := doc.UnmarshalJSON([]byte(data)); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return doc, nil
}
