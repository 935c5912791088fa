package contenttree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// maxChildLookups bounds concurrent child resolution in populated reads.
const maxChildLookups = 8

// service implements the Service interface
type service struct {
	contents  Store[Content]
	versions  Store[ContentVersion]
	published Store[PublishedContent]

	childStores          map[RefKind]Store[Content]
	publishedChildStores map[RefKind]Store[PublishedContent]

	clock     Clock
	ids       IDGenerator
	eventSink EventSink
	guard     PublishGuard
	archive   SnapshotArchive
	logger    *slog.Logger
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithContentStore sets the store of working content
func WithContentStore(store Store[Content]) Option {
	return func(s *service) {
		s.contents = store
	}
}

// WithVersionStore sets the append-only version store
func WithVersionStore(store Store[ContentVersion]) Option {
	return func(s *service) {
		s.versions = store
	}
}

// WithPublishedStore sets the store of current published snapshots
func WithPublishedStore(store Store[PublishedContent]) Option {
	return func(s *service) {
		s.published = store
	}
}

// WithChildStore routes resolution of draft children of the given kind to store
func WithChildStore(kind RefKind, store Store[Content]) Option {
	return func(s *service) {
		if s.childStores == nil {
			s.childStores = make(map[RefKind]Store[Content])
		}
		s.childStores[kind] = store
	}
}

// WithPublishedChildStore routes resolution of published children of the given kind to store
func WithPublishedChildStore(kind RefKind, store Store[PublishedContent]) Option {
	return func(s *service) {
		if s.publishedChildStores == nil {
			s.publishedChildStores = make(map[RefKind]Store[PublishedContent])
		}
		s.publishedChildStores[kind] = store
	}
}

// WithClock sets the time source
func WithClock(clock Clock) Option {
	return func(s *service) {
		s.clock = clock
	}
}

// WithIDGenerator sets the identity generator used for new contents and versions
func WithIDGenerator(ids IDGenerator) Option {
	return func(s *service) {
		s.ids = ids
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithPublishGuard serializes publishes per content id.
// Without a guard concurrent publishes of one id race and the last published
// snapshot written wins.
func WithPublishGuard(guard PublishGuard) Option {
	return func(s *service) {
		s.guard = guard
	}
}

// WithSnapshotArchive mirrors every published snapshot into archive
func WithSnapshotArchive(archive SnapshotArchive) Option {
	return func(s *service) {
		s.archive = archive
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		clock: SystemClock{},
		ids:   UUIDGenerator{},
	}

	for _, option := range options {
		option(s)
	}

	if s.contents == nil {
		return nil, fmt.Errorf("content store is required")
	}
	if s.versions == nil {
		return nil, fmt.Errorf("version store is required")
	}
	if s.published == nil {
		return nil, fmt.Errorf("published store is required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}

	defaults := map[RefKind]Store[Content]{
		RefKindPage:  s.contents,
		RefKindBlock: s.contents,
		RefKindMedia: s.contents,
	}
	for kind, store := range s.childStores {
		defaults[kind] = store
	}
	s.childStores = defaults

	publishedDefaults := map[RefKind]Store[PublishedContent]{
		RefKindPublishedPage:  s.published,
		RefKindPublishedBlock: s.published,
		RefKindPublishedMedia: s.published,
	}
	for kind, store := range s.publishedChildStores {
		publishedDefaults[kind] = store
	}
	s.publishedChildStores = publishedDefaults

	return s, nil
}

// Reads

func (s *service) GetByID(ctx context.Context, id string) (*Content, error) {
	return s.loadContent(ctx, id, "get")
}

func (s *service) GetPopulatedByID(ctx context.Context, id string) (*PopulatedContent, error) {
	if id == "" {
		return nil, ErrContentNotFound
	}
	content, err := s.loadContent(ctx, id, "get_populated")
	if err != nil {
		return nil, err
	}

	resolved := make([]*Content, len(content.ChildItems))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxChildLookups)
	for i, item := range content.ChildItems {
		store, ok := s.childStores[item.RefKind]
		if !ok || item.ContentRef == "" {
			continue
		}
		g.Go(func() error {
			child, err := store.FindByID(gctx, item.ContentRef)
			if errors.Is(err, ErrRecordNotFound) {
				return nil
			}
			if err != nil {
				return storeErr(item.ContentRef, "resolve_child", err)
			}
			if !child.IsDeleted {
				resolved[i] = child
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &PopulatedContent{Content: content, Children: []PopulatedChild{}}
	for i, item := range content.ChildItems {
		if resolved[i] != nil {
			out.Children = append(out.Children, PopulatedChild{ChildItem: item, Content: resolved[i]})
		}
	}
	return out, nil
}

func (s *service) GetPopulatedPublishedByID(ctx context.Context, id string) (*PopulatedPublishedContent, error) {
	if id == "" {
		return nil, ErrContentNotFound
	}
	published, err := s.published.FindByID(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, &ContentError{ContentID: id, Op: "get_populated_published", Err: ErrContentNotFound}
	}
	if err != nil {
		return nil, storeErr(id, "get_populated_published", err)
	}

	resolved := make([]*PublishedContent, len(published.PublishedChildItems))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxChildLookups)
	for i, item := range published.PublishedChildItems {
		store, ok := s.publishedChildStores[item.RefKind]
		if !ok || item.ContentRef == "" {
			continue
		}
		g.Go(func() error {
			child, err := store.FindByID(gctx, item.ContentRef)
			if errors.Is(err, ErrRecordNotFound) {
				return nil
			}
			if err != nil {
				return storeErr(item.ContentRef, "resolve_published_child", err)
			}
			if !child.IsDeleted {
				resolved[i] = child
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &PopulatedPublishedContent{PublishedContent: published, Children: []PopulatedPublishedChild{}}
	for i, item := range published.PublishedChildItems {
		if resolved[i] != nil {
			out.Children = append(out.Children, PopulatedPublishedChild{ChildItem: item, Content: resolved[i]})
		}
	}
	return out, nil
}

// Lifecycle

func (s *service) ExecuteCreate(ctx context.Context, req CreateContentRequest) (*Content, error) {
	var parent *Content
	parentID := req.ParentID
	if parentID != nil && *parentID == "" {
		parentID = nil
	}
	if parentID != nil {
		p, err := s.contents.FindByID(ctx, *parentID)
		if errors.Is(err, ErrRecordNotFound) || (err == nil && p.IsDeleted) {
			return nil, &ContentError{ContentID: *parentID, Op: "create", Err: ErrParentNotFound}
		}
		if err != nil {
			return nil, storeErr(*parentID, "create", err)
		}
		parent = p
	}

	parentPath, ancestors, err := DerivePath(parent)
	if err != nil {
		return nil, &ContentError{ContentID: *parentID, Op: "create", Err: err}
	}

	now := s.clock.Now()
	items := req.ChildItems
	if items == nil {
		items = []ChildItem{}
	}
	content := &Content{
		ID:                  s.ids.NewID(),
		Name:                req.Name,
		Properties:          req.Properties,
		ParentID:            cloneString(parentID),
		ParentPath:          parentPath,
		Ancestors:           ancestors,
		ChildItems:          items,
		PublishedChildItems: PublishedChildItems(items),
		Created:             now,
		Changed:             now,
	}

	saved, err := s.contents.Save(ctx, content)
	if err != nil {
		return nil, storeErr(content.ID, "create", err)
	}

	if err := s.eventSink.ContentCreated(ctx, saved); err != nil {
		s.logger.Warn("Event sink failed", "event", "content_created", "content_id", saved.ID, "error", err)
	}

	s.logger.Debug("Content created", "content_id", saved.ID, "parent_id", parentID)
	return saved, nil
}

func (s *service) UpdateAndPublish(ctx context.Context, id string, req UpdateRequest) (*UpdateResult, error) {
	current, err := s.loadContent(ctx, id, "update")
	if err != nil {
		return nil, err
	}
	if current.IsDeleted {
		return nil, &ContentError{ContentID: id, Op: "update", Err: ErrContentNotFound}
	}

	if req.ApplyChanges {
		current.Name = req.Name
		current.Properties = req.Properties
		current.ChildItems = req.ChildItems
		if current.ChildItems == nil {
			current.ChildItems = []ChildItem{}
		}
		// Kept current on every edit; readers may use it before the next publish.
		current.PublishedChildItems = PublishedChildItems(current.ChildItems)
		current.Changed = s.clock.Now()

		current, err = s.contents.Save(ctx, current)
		if err != nil {
			return nil, storeErr(id, "update", err)
		}
		if err := s.eventSink.ContentUpdated(ctx, current); err != nil {
			s.logger.Warn("Event sink failed", "event", "content_updated", "content_id", id, "error", err)
		}
	}

	result := &UpdateResult{Content: current}
	if req.RequestPublish && needsPublish(current) {
		published, err := s.ExecutePublish(ctx, current)
		if err != nil {
			return nil, err
		}
		result.Published = published
		result.PublishRan = true
		result.Content = published.Content.Clone()
	}
	return result, nil
}

func needsPublish(c *Content) bool {
	return c.Published == nil || c.Changed.After(*c.Published)
}

func (s *service) ExecutePublish(ctx context.Context, content *Content) (*PublishedContent, error) {
	if content == nil || content.ID == "" {
		return nil, ErrContentNotFound
	}

	if s.guard != nil {
		release, err := s.guard.Acquire(ctx, content.ID)
		if err != nil {
			return nil, &ContentError{ContentID: content.ID, Op: "publish_lock", Err: err}
		}
		defer release()
	}

	// Only the id is taken from content; everything else is the stored record.
	marked, err := s.loadContent(ctx, content.ID, "publish")
	if err != nil {
		return nil, err
	}
	if marked.IsDeleted {
		return nil, &ContentError{ContentID: content.ID, Op: "publish", Err: ErrContentNotFound}
	}
	now := s.clock.Now()
	marked.IsPublished = true
	marked.Published = &now

	// Durability point: from here on the content counts as published even if
	// the snapshot writes below fail. Reconcile repairs that state.
	marked, err = s.contents.Save(ctx, marked)
	if err != nil {
		return nil, storeErr(content.ID, "publish_mark", err)
	}

	published, err := s.writeSnapshot(ctx, marked)
	if err != nil {
		return nil, err
	}

	if s.archive != nil {
		if err := s.archive.PutSnapshot(ctx, published); err != nil {
			s.logger.Warn("Snapshot archive failed", "content_id", content.ID, "error", err)
		}
	}
	if err := s.eventSink.ContentPublished(ctx, published); err != nil {
		s.logger.Warn("Event sink failed", "event", "content_published", "content_id", content.ID, "error", err)
	}

	s.logger.Debug("Content published", "content_id", content.ID, "version_id", published.ContentVersionID)
	return published, nil
}

// writeSnapshot appends a version of c and replaces its published snapshot.
func (s *service) writeSnapshot(ctx context.Context, c *Content) (*PublishedContent, error) {
	version := &ContentVersion{Content: *c.Clone(), ContentID: c.ID}
	version.ID = s.ids.NewID()
	version, err := s.versions.Save(ctx, version)
	if err != nil {
		return nil, storeErr(c.ID, "publish_version", err)
	}

	if _, err := s.published.DeleteByID(ctx, c.ID); err != nil && !errors.Is(err, ErrRecordNotFound) {
		return nil, storeErr(c.ID, "publish_replace", err)
	}

	published := &PublishedContent{
		Content:          *c.Clone(),
		ContentID:        c.ID,
		ContentVersionID: version.ID,
	}
	published, err = s.published.Save(ctx, published)
	if err != nil {
		return nil, storeErr(c.ID, "publish_snapshot", err)
	}
	return published, nil
}

func (s *service) ExecuteDelete(ctx context.Context, id string) (*DeleteResult, error) {
	current, err := s.loadContent(ctx, id, "delete")
	if err != nil {
		return nil, err
	}
	prefix, err := DescendantPrefix(current)
	if err != nil {
		return nil, &ContentError{ContentID: id, Op: "delete", Err: err}
	}

	now := s.clock.Now()
	deleted := true
	patch := Patch{IsDeleted: &deleted, Deleted: &now}
	descendants := Filter{ParentPathPrefix: prefix}

	var (
		result                               = &DeleteResult{}
		selfErr, pubErr, descErr, pubDescErr error
		g                                    errgroup.Group
	)

	g.Go(func() error {
		c := current.Clone()
		c.IsDeleted = true
		c.Deleted = &now
		saved, err := s.contents.Save(ctx, c)
		if err != nil {
			selfErr = storeErr(id, "delete_self", err)
			return selfErr
		}
		result.Content = saved
		return nil
	})
	g.Go(func() error {
		p, err := s.published.FindByID(ctx, id)
		if errors.Is(err, ErrRecordNotFound) {
			return nil
		}
		if err == nil {
			p.IsDeleted = true
			p.Deleted = &now
			_, err = s.published.Save(ctx, p)
		}
		if err != nil {
			pubErr = storeErr(id, "delete_published", err)
		}
		return pubErr
	})
	g.Go(func() error {
		res, err := s.contents.BulkUpdateByFilter(ctx, descendants, patch)
		if err != nil {
			descErr = storeErr(id, "delete_descendants", err)
			return descErr
		}
		result.DescendantsAffected = res.MatchedCount
		return nil
	})
	g.Go(func() error {
		res, err := s.published.BulkUpdateByFilter(ctx, descendants, patch)
		if err != nil {
			pubDescErr = storeErr(id, "delete_published_descendants", err)
			return pubDescErr
		}
		result.PublishedDescendantsAffected = res.MatchedCount
		return nil
	})
	_ = g.Wait()

	if err := errors.Join(selfErr, pubErr, descErr, pubDescErr); err != nil {
		s.logger.Error("Delete partially failed", "content_id", id, "error", err)
		return nil, err
	}

	if s.archive != nil {
		s.unarchive(ctx, id, prefix)
	}
	if err := s.eventSink.ContentDeleted(ctx, result.Content, result.DescendantsAffected); err != nil {
		s.logger.Warn("Event sink failed", "event", "content_deleted", "content_id", id, "error", err)
	}

	s.logger.Debug("Content deleted", "content_id", id, "descendants", result.DescendantsAffected)
	return result, nil
}

// unarchive removes the archived snapshots of id and of every published
// descendant under prefix.
func (s *service) unarchive(ctx context.Context, id, prefix string) {
	ids := []string{id}
	if lister, ok := s.published.(IDLister); ok {
		descendants, err := lister.FindIDsByFilter(ctx, Filter{ParentPathPrefix: prefix})
		if err != nil {
			s.logger.Warn("Failed to list published descendants", "content_id", id, "error", err)
		}
		ids = append(ids, descendants...)
	} else {
		s.logger.Warn("Published store cannot list ids, descendant snapshots stay archived", "content_id", id)
	}

	for _, contentID := range ids {
		if err := s.archive.DeleteSnapshot(ctx, contentID); err != nil && !errors.Is(err, ErrRecordNotFound) {
			s.logger.Warn("Snapshot archive delete failed", "content_id", contentID, "error", err)
		}
	}
}

func (s *service) UpdateHasChildren(ctx context.Context, content *Content) (bool, error) {
	if content == nil || content.HasChildren {
		return false, nil
	}
	c, err := s.loadContent(ctx, content.ID, "update_has_children")
	if err != nil {
		return false, err
	}
	// Another writer may have flagged the stored record already.
	updated := !c.HasChildren
	if updated {
		c.HasChildren = true
		c.Changed = s.clock.Now()
		if _, err := s.contents.Save(ctx, c); err != nil {
			return false, storeErr(c.ID, "update_has_children", err)
		}
	}
	content.HasChildren = true
	content.Changed = c.Changed
	return updated, nil
}

func (s *service) Reconcile(ctx context.Context, id string) (bool, error) {
	current, err := s.loadContent(ctx, id, "reconcile")
	if err != nil {
		return false, err
	}
	if current.IsDeleted || !current.IsPublished || current.Published == nil {
		return false, nil
	}

	published, err := s.published.FindByID(ctx, id)
	switch {
	case errors.Is(err, ErrRecordNotFound):
	case err != nil:
		return false, storeErr(id, "reconcile", err)
	case published.Published != nil && !published.Published.Before(*current.Published):
		return false, nil
	}

	if s.guard != nil {
		release, err := s.guard.Acquire(ctx, id)
		if err != nil {
			return false, &ContentError{ContentID: id, Op: "publish_lock", Err: err}
		}
		defer release()
	}

	snapshot, err := s.writeSnapshot(ctx, current)
	if err != nil {
		return false, err
	}
	if s.archive != nil {
		if err := s.archive.PutSnapshot(ctx, snapshot); err != nil {
			s.logger.Warn("Snapshot archive failed", "content_id", id, "error", err)
		}
	}
	s.logger.Info("Reconciled published snapshot", "content_id", id, "version_id", snapshot.ContentVersionID)
	return true, nil
}

func (s *service) loadContent(ctx context.Context, id, op string) (*Content, error) {
	if id == "" {
		return nil, &ContentError{ContentID: id, Op: op, Err: ErrContentNotFound}
	}
	content, err := s.contents.FindByID(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, &ContentError{ContentID: id, Op: op, Err: ErrContentNotFound}
	}
	if err != nil {
		return nil, storeErr(id, op, err)
	}
	return content, nil
}
