package contenttree

import (
	"context"
	"errors"
	"log/slog"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

// ContentCreated does nothing and returns nil
func (n *NoopEventSink) ContentCreated(ctx context.Context, content *Content) error {
	return nil
}

// ContentUpdated does nothing and returns nil
func (n *NoopEventSink) ContentUpdated(ctx context.Context, content *Content) error {
	return nil
}

// ContentPublished does nothing and returns nil
func (n *NoopEventSink) ContentPublished(ctx context.Context, published *PublishedContent) error {
	return nil
}

// ContentDeleted does nothing and returns nil
func (n *NoopEventSink) ContentDeleted(ctx context.Context, content *Content, descendants int64) error {
	return nil
}

// LoggingEventSink is an event sink that logs events but takes no other action
// Useful for development and debugging
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

// ContentCreated logs the content creation event
func (l *LoggingEventSink) ContentCreated(ctx context.Context, content *Content) error {
	l.logger.InfoContext(ctx, "Content created", "content_id", content.ID, "name", content.Name, "parent_path", derefPath(content.ParentPath))
	return nil
}

// ContentUpdated logs the content update event
func (l *LoggingEventSink) ContentUpdated(ctx context.Context, content *Content) error {
	l.logger.InfoContext(ctx, "Content updated", "content_id", content.ID, "name", content.Name)
	return nil
}

// ContentPublished logs the publish event
func (l *LoggingEventSink) ContentPublished(ctx context.Context, published *PublishedContent) error {
	l.logger.InfoContext(ctx, "Content published", "content_id", published.ContentID, "version_id", published.ContentVersionID)
	return nil
}

// ContentDeleted logs the deletion event
func (l *LoggingEventSink) ContentDeleted(ctx context.Context, content *Content, descendants int64) error {
	l.logger.InfoContext(ctx, "Content deleted", "content_id", content.ID, "descendants", descendants)
	return nil
}

func derefPath(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// MultiEventSink fans every event out to several sinks and joins their errors.
type MultiEventSink []EventSink

// ContentCreated forwards to every sink
func (m MultiEventSink) ContentCreated(ctx context.Context, content *Content) error {
	var errs []error
	for _, sink := range m {
		errs = append(errs, sink.ContentCreated(ctx, content))
	}
	return errors.Join(errs...)
}

// ContentUpdated forwards to every sink
func (m MultiEventSink) ContentUpdated(ctx context.Context, content *Content) error {
	var errs []error
	for _, sink := range m {
		errs = append(errs, sink.ContentUpdated(ctx, content))
	}
	return errors.Join(errs...)
}

// ContentPublished forwards to every sink
func (m MultiEventSink) ContentPublished(ctx context.Context, published *PublishedContent) error {
	var errs []error
	for _, sink := range m {
		errs = append(errs, sink.ContentPublished(ctx, published))
	}
	return errors.Join(errs...)
}

// ContentDeleted forwards to every sink
func (m MultiEventSink) ContentDeleted(ctx context.Context, content *Content, descendants int64) error {
	var errs []error
	for _, sink := range m {
		errs = append(errs, sink.ContentDeleted(ctx, content, descendants))
	}
	return errors.Join(errs...)
}
