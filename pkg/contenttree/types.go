package contenttree

import (
	"encoding/json"
	"time"
)

// RefKind tags which content sub-type a child reference points to.
type RefKind string

// Reference kind constants (typed).
const (
	RefKindPage           RefKind = "page"
	RefKindBlock          RefKind = "block"
	RefKindMedia          RefKind = "media"
	RefKindPublishedPage  RefKind = "publishedPage"
	RefKindPublishedBlock RefKind = "publishedBlock"
	RefKindPublishedMedia RefKind = "publishedMedia"
)

// ChildItem identifies a child node by kind-tagged id.
type ChildItem struct {
	ContentRef string  `json:"contentRef"`
	RefKind    RefKind `json:"refKind"`
}

// Content represents a working (draft) node in the content tree.
//
// ParentPath is the comma-delimited id chain from the root to the immediate
// parent (e.g. ",a,b,"), nil at the root. Ancestors holds the same ids in
// root-first order.
type Content struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Properties          json.RawMessage `json:"properties,omitempty"`
	ParentID            *string         `json:"parentId,omitempty"`
	ParentPath          *string         `json:"parentPath,omitempty"`
	Ancestors           []string        `json:"ancestors"`
	ChildItems          []ChildItem     `json:"childItems"`
	PublishedChildItems []ChildItem     `json:"publishedChildItems"`
	HasChildren         bool            `json:"hasChildren"`
	IsPublished         bool            `json:"isPublished"`
	Created             time.Time       `json:"created"`
	Changed             time.Time       `json:"changed"`
	Published           *time.Time      `json:"published,omitempty"`
	Deleted             *time.Time      `json:"deleted,omitempty"`
	IsDeleted           bool            `json:"isDeleted"`
}

// ContentVersion is an immutable copy of a Content taken at publish time.
// The embedded ID is the version's own identity; ContentID points back at the
// source Content.
type ContentVersion struct {
	Content
	ContentID string `json:"contentId"`
}

// PublishedContent is the current public snapshot of a Content. It shares the
// source Content's ID and references the ContentVersion written by the same
// publish.
type PublishedContent struct {
	Content
	ContentID        string `json:"contentId"`
	ContentVersionID string `json:"contentVersionId"`
}

// Node returns the content fields shared by every record kind.
func (c *Content) Node() *Content { return c }

// SourceContentID returns the id of the working Content a record belongs to.
func (c *Content) SourceContentID() string { return c.ID }

// SourceContentID returns the id of the Content this version was taken from.
func (v *ContentVersion) SourceContentID() string { return v.ContentID }

// SourceContentID returns the id of the Content this snapshot was taken from.
func (p *PublishedContent) SourceContentID() string { return p.ContentID }

// Clone returns a deep copy of the content so callers never share slices.
func (c *Content) Clone() *Content {
	if c == nil {
		return nil
	}
	out := *c
	out.ParentID = cloneString(c.ParentID)
	out.ParentPath = cloneString(c.ParentPath)
	out.Ancestors = append([]string{}, c.Ancestors...)
	out.ChildItems = append([]ChildItem{}, c.ChildItems...)
	out.PublishedChildItems = append([]ChildItem{}, c.PublishedChildItems...)
	if c.Properties != nil {
		out.Properties = append(json.RawMessage{}, c.Properties...)
	}
	out.Published = cloneTime(c.Published)
	out.Deleted = cloneTime(c.Deleted)
	return &out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Filter selects records in a Store. Zero-valued fields are ignored.
// ParentPathPrefix is an anchored prefix match on the record's ParentPath.
type Filter struct {
	ID               string
	ContentID        string
	ParentPathPrefix string
	IsDeleted        *bool
}

// Patch lists the fields a bulk update may set.
type Patch struct {
	IsDeleted *bool
	Deleted   *time.Time
}

// BulkResult summarizes a bulk update.
type BulkResult struct {
	MatchedCount int64 `json:"matchedCount"`
}

// PopulatedChild is a child reference with its target resolved.
type PopulatedChild struct {
	ChildItem
	Content *Content `json:"content"`
}

// PopulatedContent is a Content with its direct children resolved. Children
// whose target is deleted or unresolvable are left out of Children but remain
// in ChildItems.
type PopulatedContent struct {
	*Content
	Children []PopulatedChild `json:"children"`
}

// PopulatedPublishedChild is a published child reference with its target
// resolved.
type PopulatedPublishedChild struct {
	ChildItem
	Content *PublishedContent `json:"content"`
}

// PopulatedPublishedContent is a PublishedContent with its direct published
// children resolved.
type PopulatedPublishedContent struct {
	*PublishedContent
	Children []PopulatedPublishedChild `json:"children"`
}

// UpdateResult reports the outcome of UpdateAndPublish. Published is set only
// when the publish sub-flow ran.
type UpdateResult struct {
	Content    *Content          `json:"content"`
	Published  *PublishedContent `json:"published,omitempty"`
	PublishRan bool              `json:"publishRan"`
}

// DeleteResult reports the outcome of ExecuteDelete.
type DeleteResult struct {
	Content                      *Content `json:"content"`
	DescendantsAffected          int64    `json:"descendantsAffected"`
	PublishedDescendantsAffected int64    `json:"publishedDescendantsAffected"`
}
