package models

import (
	"bytes"
	"encoding/json"
)

type Task struct {
	ID          int64   `json:"id"`
	Text        string  `json:"text"`
	Done        bool    `json:"done"`
	Description *string `json:"description"`
}

// Optional records whether a JSON key was present at all and, if so,
// whether it carried null.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Null returns an Optional that was present but null.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

// TaskPatch is a partial update. Absent fields are left untouched.
type TaskPatch struct {
	Text        Optional[string] `json:"text"`
	Done        Optional[bool]   `json:"done"`
	Description Optional[string] `json:"description"`
}

// Empty reports whether none of the recognized fields were supplied.
func (p TaskPatch) Empty() bool {
	return !p.Text.Set && !p.Done.Set && !p.Description.Set
}

// Apply copies the supplied fields onto t.
func (p TaskPatch) Apply(t *Task) {
	if p.Text.Set && !p.Text.Null {
		t.Text = p.Text.Value
	}
	if p.Done.Set && !p.Done.Null {
		t.Done = p.Done.Value
	}
	if p.Description.Set {
		if p.Description.Null {
			t.Description = nil
		} else {
			d := p.Description.Value
			t.Description = &d
		}
	}
}
