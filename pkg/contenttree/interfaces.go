package contenttree

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is implemented by the pointer types of every record kind kept in a
// Store: *Content, *ContentVersion and *PublishedContent.
type Record interface {
	Node() *Content
	SourceContentID() string
}

// RecordPtr constrains a type parameter to a pointer to T implementing Record.
// Store implementations use it to reach the indexed fields of a record.
type RecordPtr[T any] interface {
	*T
	Record
}

// Store defines the document store contract for one record kind.
//
// FindByID and FindByFilter return ErrRecordNotFound when nothing matches.
// Save inserts or replaces by ID. DeleteByID returns the removed record.
// BulkUpdateByFilter applies the patch to every match as one store operation.
type Store[T any] interface {
	FindByID(ctx context.Context, id string) (*T, error)
	FindByFilter(ctx context.Context, filter Filter) (*T, error)
	Save(ctx context.Context, record *T) (*T, error)
	DeleteByID(ctx context.Context, id string) (*T, error)
	BulkUpdateByFilter(ctx context.Context, filter Filter, patch Patch) (BulkResult, error)
}

// IDLister is implemented by stores that can enumerate the ids of matching
// records. The lifecycle service uses it on the published store to clear
// archived snapshots of a deleted subtree.
type IDLister interface {
	FindIDsByFilter(ctx context.Context, filter Filter) ([]string, error)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces globally unique identifiers.
type IDGenerator interface {
	NewID() string
}

// EventSink defines the interface for lifecycle event handling
type EventSink interface {
	// ContentCreated is fired when content is created
	ContentCreated(ctx context.Context, content *Content) error

	// ContentUpdated is fired when editorial changes are applied
	ContentUpdated(ctx context.Context, content *Content) error

	// ContentPublished is fired after a new published snapshot is written
	ContentPublished(ctx context.Context, published *PublishedContent) error

	// ContentDeleted is fired after a cascading soft delete
	ContentDeleted(ctx context.Context, content *Content, descendants int64) error
}

// PublishGuard serializes publishes of the same content id.
// The returned release function must be called exactly once.
type PublishGuard interface {
	Acquire(ctx context.Context, contentID string) (release func(), err error)
}

// SnapshotArchive keeps a serialized copy of every live published snapshot,
// e.g. for static delivery.
type SnapshotArchive interface {
	PutSnapshot(ctx context.Context, published *PublishedContent) error
	GetSnapshot(ctx context.Context, contentID string) (*PublishedContent, error)
	DeleteSnapshot(ctx context.Context, contentID string) error
}

// SystemClock reports wall-clock time in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// UUIDGenerator produces random UUID strings.
type UUIDGenerator struct{}

// NewID returns a new random UUID.
func (UUIDGenerator) NewID() string { return uuid.NewString() }
