// Package plan holds the refactoring action plan exchanged between the
// orchestrator and the remote tool that owns the repository.
package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Kind discriminates the action item variants on the wire.
type Kind string

const (
	KindAddComment     Kind = "addComment"
	KindRenameMethod   Kind = "renameMethod"
	KindRenameVariable Kind = "renameVariable"
)

// Item is one refactoring operation. The set of implementations is closed:
// AddComment, RenameMethod and RenameVariable.
type Item interface {
	Kind() Kind
	item()
}

// AddComment appends a comment to the given 1-based line.
type AddComment struct {
	Line    int    `json:"line"`
	Content string `json:"content"`
}

// RenameMethod renames the method declared or referenced on Line.
type RenameMethod struct {
	Line    int    `json:"line"`
	OldName string `json:"oldName"`
	NewName string `json:"newName"`
}

// RenameVariable renames the variable declared or referenced on Line.
type RenameVariable struct {
	Line    int    `json:"line"`
	OldName string `json:"oldName"`
	NewName string `json:"newName"`
}

func (AddComment) Kind() Kind     { return KindAddComment }
func (RenameMethod) Kind() Kind   { return KindRenameMethod }
func (RenameVariable) Kind() Kind { return KindRenameVariable }

func (AddComment) item()     {}
func (RenameMethod) item()   {}
func (RenameVariable) item() {}

// MarshalJSON writes the item with its "type" discriminator.
func (a AddComment) MarshalJSON() ([]byte, error) {
	type fields AddComment
	return json.Marshal(struct {
		Type Kind `json:"type"`
		fields
	}{KindAddComment, fields(a)})
}

// MarshalJSON writes the item with its "type" discriminator.
func (r RenameMethod) MarshalJSON() ([]byte, error) {
	type fields RenameMethod
	return json.Marshal(struct {
		Type Kind `json:"type"`
		fields
	}{KindRenameMethod, fields(r)})
}

// MarshalJSON writes the item with its "type" discriminator.
func (r RenameVariable) MarshalJSON() ([]byte, error) {
	type fields RenameVariable
	return json.Marshal(struct {
		Type Kind `json:"type"`
		fields
	}{KindRenameVariable, fields(r)})
}

// Items is an ordered list of action items. It encodes as a JSON array of
// tagged objects.
type Items []Item

// MarshalJSON encodes a nil list as an empty array so the remote tool always
// receives "actionItems": [].
func (it Items) MarshalJSON() ([]byte, error) {
	if it == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Item(it))
}

// UnmarshalJSON decodes a tagged JSON array, see ParseItems.
func (it *Items) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*it = nil
		return nil
	}
	parsed, err := ParseItems(string(data))
	if err != nil {
		return err
	}
	*it = parsed
	return nil
}

// ActionPlan ties an ordered list of items to the exact file content they
// were computed against.
type ActionPlan struct {
	FileHash string `json:"fileHash"`
	Items    Items  `json:"actionItems"`
}

// Fingerprint returns the lowercase hex SHA-256 of text. Empty text has a
// well-defined fingerprint too.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
