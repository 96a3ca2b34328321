package clickup

import (
	"fmt"

	"github.com/google/uuid"
)

// FieldRefKind discriminates the three shapes a dropdown custom field
// value arrives in: a numeric order index, an option UUID, or a literal
// label string.
type FieldRefKind int

const (
	FieldRefIndex FieldRefKind = iota
	FieldRefOptionID
	FieldRefLabel
)

func (k FieldRefKind) String() string {
	switch k {
	case FieldRefIndex:
		return "index"
	case FieldRefOptionID:
		return "option_id"
	case FieldRefLabel:
		return "label"
	}
	return "unknown"
}

// FieldRef is the tagged union of a raw dropdown value. Exactly one of
// Index/Value is meaningful per kind.
type FieldRef struct {
	Kind  FieldRefKind
	Index int    // Valid when Kind == FieldRefIndex
	Value string // Option UUID or label, depending on Kind
}

// ParseFieldRef classifies a raw JSON-decoded dropdown value. Numbers
// are order indexes, UUID-shaped strings are option ids, everything
// else is a label.
func ParseFieldRef(raw interface{}) (FieldRef, error) {
	switch v := raw.(type) {
	case float64:
		return FieldRef{Kind: FieldRefIndex, Index: int(v)}, nil
	case int:
		return FieldRef{Kind: FieldRefIndex, Index: v}, nil
	case string:
		if v == "" {
			return FieldRef{}, fmt.Errorf("empty dropdown value")
		}
		if _, err := uuid.Parse(v); err == nil {
			return FieldRef{Kind: FieldRefOptionID, Value: v}, nil
		}
		return FieldRef{Kind: FieldRefLabel, Value: v}, nil
	default:
		return FieldRef{}, fmt.Errorf("unsupported dropdown value type %T", raw)
	}
}

// DropdownOptions is the resolution table for one dropdown field, built
// from list field metadata.
type DropdownOptions struct {
	nameByID  map[string]string
	idByIndex map[int]string
	idByName  map[string]string
}

// NewDropdownOptions builds the lookup maps (id->name, orderindex->id,
// name->id) from field metadata options.
func NewDropdownOptions(options []DropdownOption) *DropdownOptions {
	o := &DropdownOptions{
		nameByID:  make(map[string]string, len(options)),
		idByIndex: make(map[int]string, len(options)),
		idByName:  make(map[string]string, len(options)),
	}
	for _, opt := range options {
		o.nameByID[opt.ID] = opt.Name
		o.idByIndex[opt.OrderIndex] = opt.ID
		o.idByName[opt.Name] = opt.ID
	}
	return o
}

// Resolve maps a parsed FieldRef to the canonical {key, label} pair.
// The key is the option id when the options table knows the value, the
// label itself otherwise (text fields have no options).
func (o *DropdownOptions) Resolve(ref FieldRef) (key, label string, err error) {
	switch ref.Kind {
	case FieldRefIndex:
		id, ok := o.idByIndex[ref.Index]
		if !ok {
			return "", "", fmt.Errorf("no dropdown option at index %d", ref.Index)
		}
		return id, o.nameByID[id], nil
	case FieldRefOptionID:
		name, ok := o.nameByID[ref.Value]
		if !ok {
			return "", "", fmt.Errorf("unknown dropdown option id %s", ref.Value)
		}
		return ref.Value, name, nil
	case FieldRefLabel:
		if id, ok := o.idByName[ref.Value]; ok {
			return id, ref.Value, nil
		}
		// Plain text field: the label is its own key.
		return ref.Value, ref.Value, nil
	default:
		return "", "", fmt.Errorf("unresolvable field ref kind %v", ref.Kind)
	}
}
