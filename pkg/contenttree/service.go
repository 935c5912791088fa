package contenttree

import "context"

// Service defines the content lifecycle operations of the content tree
type Service interface {
	// Reads
	GetByID(ctx context.Context, id string) (*Content, error)
	GetPopulatedByID(ctx context.Context, id string) (*PopulatedContent, error)
	GetPopulatedPublishedByID(ctx context.Context, id string) (*PopulatedPublishedContent, error)

	// Lifecycle
	ExecuteCreate(ctx context.Context, req CreateContentRequest) (*Content, error)
	UpdateAndPublish(ctx context.Context, id string, req UpdateRequest) (*UpdateResult, error)

	// ExecutePublish publishes the stored record with content's id. Fields of
	// content other than ID are ignored.
	ExecutePublish(ctx context.Context, content *Content) (*PublishedContent, error)

	ExecuteDelete(ctx context.Context, id string) (*DeleteResult, error)

	// UpdateHasChildren marks content as having children. It reports whether a
	// write happened; nil content and content already flagged are no-ops.
	UpdateHasChildren(ctx context.Context, content *Content) (bool, error)

	// Reconcile repairs a publish that stopped after marking the content
	// published. It reports whether a new snapshot was written.
	Reconcile(ctx context.Context, id string) (bool, error)
}
