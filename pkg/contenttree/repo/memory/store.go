package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tendant/content-tree/pkg/contenttree"
)

// Store implements contenttree.Store using in-memory storage
type Store[T any, PT contenttree.RecordPtr[T]] struct {
	mu      sync.RWMutex
	records map[string]*T
}

// New creates a new in-memory store for one record kind
func New[T any, PT contenttree.RecordPtr[T]]() *Store[T, PT] {
	return &Store[T, PT]{
		records: make(map[string]*T),
	}
}

// NewContentStore creates an in-memory store of working content
func NewContentStore() *Store[contenttree.Content, *contenttree.Content] {
	return New[contenttree.Content]()
}

// NewVersionStore creates an in-memory store of content versions
func NewVersionStore() *Store[contenttree.ContentVersion, *contenttree.ContentVersion] {
	return New[contenttree.ContentVersion]()
}

// NewPublishedStore creates an in-memory store of published snapshots
func NewPublishedStore() *Store[contenttree.PublishedContent, *contenttree.PublishedContent] {
	return New[contenttree.PublishedContent]()
}

// copyRecord returns a deep copy so callers never share state with the store.
func copyRecord[T any](record *T) (*T, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store[T, PT]) FindByID(ctx context.Context, id string) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.records[id]
	if !exists {
		return nil, contenttree.ErrRecordNotFound
	}
	return copyRecord(record)
}

func (s *Store[T, PT]) FindByFilter(ctx context.Context, filter contenttree.Filter) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := s.match(filter)
	if len(matches) == 0 {
		return nil, contenttree.ErrRecordNotFound
	}
	return copyRecord(matches[0])
}

func (s *Store[T, PT]) Save(ctx context.Context, record *T) (*T, error) {
	id := PT(record).Node().ID
	if id == "" {
		return nil, fmt.Errorf("record id is required")
	}

	recordCopy, err := copyRecord(record)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.records[id] = recordCopy
	s.mu.Unlock()

	return copyRecord(recordCopy)
}

func (s *Store[T, PT]) DeleteByID(ctx context.Context, id string) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[id]
	if !exists {
		return nil, contenttree.ErrRecordNotFound
	}
	delete(s.records, id)
	return record, nil
}

func (s *Store[T, PT]) BulkUpdateByFilter(ctx context.Context, filter contenttree.Filter, patch contenttree.Patch) (contenttree.BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches := s.match(filter)
	for _, record := range matches {
		node := PT(record).Node()
		if patch.IsDeleted != nil {
			node.IsDeleted = *patch.IsDeleted
		}
		if patch.Deleted != nil {
			deleted := *patch.Deleted
			node.Deleted = &deleted
		}
	}
	return contenttree.BulkResult{MatchedCount: int64(len(matches))}, nil
}

// List returns copies of every record matching filter, ordered by id.
func (s *Store[T, PT]) List(ctx context.Context, filter contenttree.Filter) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*T
	for _, record := range s.match(filter) {
		recordCopy, err := copyRecord(record)
		if err != nil {
			return nil, err
		}
		result = append(result, recordCopy)
	}
	return result, nil
}

// FindIDsByFilter returns the ids of every record matching filter, ordered.
func (s *Store[T, PT]) FindIDsByFilter(ctx context.Context, filter contenttree.Filter) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := s.match(filter)
	ids := make([]string, 0, len(matches))
	for _, record := range matches {
		ids = append(ids, PT(record).Node().ID)
	}
	return ids, nil
}

// match must be called with the lock held.
func (s *Store[T, PT]) match(filter contenttree.Filter) []*T {
	var result []*T
	for id, record := range s.records {
		if matches(PT(record), id, filter) {
			result = append(result, record)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return PT(result[i]).Node().ID < PT(result[j]).Node().ID
	})
	return result
}

func matches(record contenttree.Record, id string, filter contenttree.Filter) bool {
	node := record.Node()
	if filter.ID != "" && id != filter.ID {
		return false
	}
	if filter.ContentID != "" && record.SourceContentID() != filter.ContentID {
		return false
	}
	if filter.ParentPathPrefix != "" {
		if node.ParentPath == nil || !strings.HasPrefix(*node.ParentPath, filter.ParentPathPrefix) {
			return false
		}
	}
	if filter.IsDeleted != nil && node.IsDeleted != *filter.IsDeleted {
		return false
	}
	return true
}
