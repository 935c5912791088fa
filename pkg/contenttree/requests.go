package contenttree

import "encoding/json"

// Request/Response DTOs

// CreateContentRequest contains parameters for creating new content.
// ParentID, when set, must reference an existing, non-deleted Content.
type CreateContentRequest struct {
	Name       string
	Properties json.RawMessage
	ParentID   *string
	ChildItems []ChildItem
}

// UpdateRequest contains parameters for UpdateAndPublish.
//
// ApplyChanges overwrites Name, Properties and ChildItems on the stored
// Content. RequestPublish runs the publish sub-flow when the content was never
// published or changed after its last publish.
type UpdateRequest struct {
	ApplyChanges   bool
	RequestPublish bool
	Name           string
	Properties     json.RawMessage
	ChildItems     []ChildItem
}
