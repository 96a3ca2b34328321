package clickup

import "fmt"

// Task is a task record as returned by the ClickUp API. Only the parts
// this system reads are modeled; everything else stays in the raw JSON.
type Task struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	CustomFields []CustomField `json:"custom_fields,omitempty"`
	TimeSpent    int64         `json:"time_spent,omitempty"` // Milliseconds of tracked time
}

// CustomField is a named, typed, externally-defined attribute attached
// to a task. Value is raw JSON-decoded: numbers arrive as float64,
// dropdowns as either an order index, an option UUID, or a label string
// depending on API mood.
type CustomField struct {
	ID         string      `json:"id"`
	Name       string      `json:"name,omitempty"`
	Type       string      `json:"type,omitempty"`
	Value      interface{} `json:"value,omitempty"`
	TypeConfig *TypeConfig `json:"type_config,omitempty"`
}

// TypeConfig carries dropdown option metadata for drop_down fields.
type TypeConfig struct {
	Options []DropdownOption `json:"options,omitempty"`
}

// DropdownOption is one selectable value of a dropdown custom field.
type DropdownOption struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	OrderIndex int    `json:"orderindex"`
}

// Field is the list-level custom field metadata returned by the field
// listing endpoint.
type Field struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	TypeConfig *TypeConfig `json:"type_config,omitempty"`
}

// FieldValue is a custom field write: {id, value}.
type FieldValue struct {
	ID    string      `json:"id"`
	Value interface{} `json:"value"`
}

// CreateTaskRequest is the body for creating a task in a list.
type CreateTaskRequest struct {
	Name         string       `json:"name"`
	CustomFields []FieldValue `json:"custom_fields,omitempty"`
}

// Attachment is the response of an attachment upload.
type Attachment struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Team, Space, Folder and List are the workspace discovery records used
// by the debug endpoint.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Space struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Folder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type List struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Field returns the raw value of the custom field with the given id,
// and whether the task carries that field with a non-nil value.
func (t *Task) Field(fieldID string) (interface{}, bool) {
	for _, f := range t.CustomFields {
		if f.ID == fieldID {
			return f.Value, f.Value != nil
		}
	}
	return nil, false
}

// FieldString returns the field value coerced to a string, or the
// fallback when absent.
func (t *Task) FieldString(fieldID, fallback string) string {
	v, ok := t.Field(fieldID)
	if !ok {
		return fallback
	}
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

// FieldNumber returns the field value coerced to a float64. ClickUp
// number fields round-trip as JSON numbers or numeric strings.
func (t *Task) FieldNumber(fieldID string) (float64, bool) {
	v, ok := t.Field(fieldID)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		var f float64
		if _, err := fmt.Sscanf(n, "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

// FieldBool returns the field value coerced to a bool. Checkbox fields
// come back as booleans or as the strings "true"/"false".
func (t *Task) FieldBool(fieldID string) bool {
	v, ok := t.Field(fieldID)
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true" || b == "1"
	case float64:
		return b != 0
	}
	return false
}
