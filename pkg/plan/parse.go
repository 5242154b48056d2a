package plan

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var (
	// ErrMalformedItem reports a payload that is not an array of well-formed items.
	ErrMalformedItem = errors.New("plan: malformed action item")
	// ErrUnknownKind reports an item whose "type" is not a known Kind.
	ErrUnknownKind = errors.New("plan: unknown action item type")
)

// itemFields lists the fields each kind requires besides "type". "line" is
// always numeric, every other field is a string.
var itemFields = map[Kind][]string{
	KindAddComment:     {"line", "content"},
	KindRenameMethod:   {"line", "oldName", "newName"},
	KindRenameVariable: {"line", "oldName", "newName"},
}

// ParseItems decodes a JSON array of tagged action items. Any other layout,
// unknown field or missing field is an error.
func ParseItems(payload string) (Items, error) {
	if !gjson.Valid(payload) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedItem)
	}
	root := gjson.Parse(payload)
	if !root.IsArray() {
		return nil, fmt.Errorf("%w: expected a json array", ErrMalformedItem)
	}

	elements := root.Array()
	items := make(Items, 0, len(elements))
	for i, el := range elements {
		it, err := decodeItem(el)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, it)
	}
	return items, nil
}

func decodeItem(el gjson.Result) (Item, error) {
	if !el.IsObject() {
		return nil, fmt.Errorf("%w: expected an object", ErrMalformedItem)
	}
	kind := Kind(el.Get("type").String())
	fields, ok := itemFields[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err := checkFields(el, fields); err != nil {
		return nil, err
	}

	raw := []byte(el.Raw)
	switch kind {
	case KindAddComment:
		var v AddComment
		if err := decodeFields(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	case KindRenameMethod:
		var v RenameMethod
		if err := decodeFields(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	case KindRenameVariable:
		var v RenameVariable
		if err := decodeFields(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

func checkFields(el gjson.Result, required []string) error {
	allowed := map[string]bool{"type": true}
	for _, name := range required {
		allowed[name] = true
		v := el.Get(name)
		switch {
		case !v.Exists():
			return fmt.Errorf("%w: missing %q", ErrMalformedItem, name)
		case name == "line" && v.Type != gjson.Number:
			return fmt.Errorf("%w: %q must be a number", ErrMalformedItem, name)
		case name != "line" && v.Type != gjson.String:
			return fmt.Errorf("%w: %q must be a string", ErrMalformedItem, name)
		}
	}

	var unknown error
	el.ForEach(func(key, _ gjson.Result) bool {
		if !allowed[key.String()] {
			unknown = fmt.Errorf("%w: unexpected field %q", ErrMalformedItem, key.String())
			return false
		}
		return true
	})
	return unknown
}

func decodeFields(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedItem, err)
	}
	return nil
}
