package bim

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Node is one entry of a model view's object hierarchy.
type Node struct {
	ObjectID int    `json:"objectid"`
	Name     string `json:"name"`
	Children []Node `json:"objects,omitempty"`
}

// ObjectProperties carries the grouped properties of one object.
type ObjectProperties struct {
	ObjectID   int                       `json:"objectid"`
	Name       string                    `json:"name"`
	ExternalID string                    `json:"externalId,omitempty"`
	Properties map[string]map[string]any `json:"properties"`
}

// CountNodes returns the number of nodes in the forest.
func CountNodes(nodes []Node) int {
	n := 0
	for _, node := range nodes {
		n += 1 + CountNodes(node.Children)
	}
	return n
}

// stringify renders a property value; numbers keep their shortest form.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
