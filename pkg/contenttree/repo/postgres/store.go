package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/content-tree/pkg/contenttree"
)

// Table names for the three collections
const (
	ContentTable          = "content"
	ContentVersionTable   = "content_version"
	PublishedContentTable = "published_content"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store implements contenttree.Store on one PostgreSQL table.
//
// The full record is kept in a JSONB column; id, content_id, parent_path and
// is_deleted are copied into indexed columns for filtering.
type Store[T any, PT contenttree.RecordPtr[T]] struct {
	db    DBTX
	table string
}

// New creates a new PostgreSQL store over table
func New[T any, PT contenttree.RecordPtr[T]](db DBTX, table string) *Store[T, PT] {
	return &Store[T, PT]{db: db, table: table}
}

// Stores bundles the three stores a lifecycle service needs.
type Stores struct {
	Contents  *Store[contenttree.Content, *contenttree.Content]
	Versions  *Store[contenttree.ContentVersion, *contenttree.ContentVersion]
	Published *Store[contenttree.PublishedContent, *contenttree.PublishedContent]
}

// NewWithPool creates the three stores on a connection pool
func NewWithPool(pool *pgxpool.Pool) Stores {
	return Stores{
		Contents:  New[contenttree.Content](pool, ContentTable),
		Versions:  New[contenttree.ContentVersion](pool, ContentVersionTable),
		Published: New[contenttree.PublishedContent](pool, PublishedContentTable),
	}
}

// Error handling helper
func (s *Store[T, PT]) handlePostgresError(operation string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return contenttree.ErrRecordNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s already exists", s.table)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table %s does not exist - database migration required", s.table)
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (s *Store[T, PT]) FindByID(ctx context.Context, id string) (*T, error) {
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE id = $1`, s.table)
	return s.queryOne(ctx, "find by id", query, id)
}

func (s *Store[T, PT]) FindByFilter(ctx context.Context, filter contenttree.Filter) (*T, error) {
	where, args := buildWhere(filter)
	query := fmt.Sprintf(`SELECT doc FROM %s%s ORDER BY id LIMIT 1`, s.table, where)
	return s.queryOne(ctx, "find by filter", query, args...)
}

func (s *Store[T, PT]) queryOne(ctx context.Context, operation, query string, args ...interface{}) (*T, error) {
	var doc []byte
	if err := s.db.QueryRow(ctx, query, args...).Scan(&doc); err != nil {
		return nil, s.handlePostgresError(operation, err)
	}
	var record T
	if err := json.Unmarshal(doc, &record); err != nil {
		return nil, fmt.Errorf("decode %s record: %w", s.table, err)
	}
	return &record, nil
}

func (s *Store[T, PT]) Save(ctx context.Context, record *T) (*T, error) {
	node := PT(record).Node()
	if node.ID == "" {
		return nil, fmt.Errorf("record id is required")
	}
	doc, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode %s record: %w", s.table, err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, content_id, parent_path, is_deleted, doc)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			content_id = EXCLUDED.content_id,
			parent_path = EXCLUDED.parent_path,
			is_deleted = EXCLUDED.is_deleted,
			doc = EXCLUDED.doc
		RETURNING doc`, s.table)

	var saved []byte
	err = s.db.QueryRow(ctx, query,
		node.ID, PT(record).SourceContentID(), node.ParentPath, node.IsDeleted, doc).Scan(&saved)
	if err != nil {
		return nil, s.handlePostgresError("save", err)
	}

	var out T
	if err := json.Unmarshal(saved, &out); err != nil {
		return nil, fmt.Errorf("decode %s record: %w", s.table, err)
	}
	return &out, nil
}

func (s *Store[T, PT]) DeleteByID(ctx context.Context, id string) (*T, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 RETURNING doc`, s.table)
	return s.queryOne(ctx, "delete by id", query, id)
}

// FindIDsByFilter returns the ids of every row matching filter, ordered.
func (s *Store[T, PT]) FindIDsByFilter(ctx context.Context, filter contenttree.Filter) ([]string, error) {
	where, args := buildWhere(filter)
	query := fmt.Sprintf(`SELECT id FROM %s%s ORDER BY id`, s.table, where)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, s.handlePostgresError("find ids by filter", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, s.handlePostgresError("find ids by filter", err)
	}
	return ids, nil
}

func (s *Store[T, PT]) BulkUpdateByFilter(ctx context.Context, filter contenttree.Filter, patch contenttree.Patch) (contenttree.BulkResult, error) {
	where, args := buildWhere(filter)

	var sets []string
	docPatch := map[string]interface{}{}
	if patch.IsDeleted != nil {
		args = append(args, *patch.IsDeleted)
		sets = append(sets, fmt.Sprintf("is_deleted = $%d", len(args)))
		docPatch["isDeleted"] = *patch.IsDeleted
	}
	if patch.Deleted != nil {
		docPatch["deleted"] = patch.Deleted.UTC()
	}
	if len(docPatch) == 0 {
		return contenttree.BulkResult{}, nil
	}
	encoded, err := json.Marshal(docPatch)
	if err != nil {
		return contenttree.BulkResult{}, err
	}
	args = append(args, encoded)
	sets = append(sets, fmt.Sprintf("doc = doc || $%d::jsonb", len(args)))

	query := fmt.Sprintf(`UPDATE %s SET %s%s`, s.table, strings.Join(sets, ", "), where)
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return contenttree.BulkResult{}, s.handlePostgresError("bulk update", err)
	}
	return contenttree.BulkResult{MatchedCount: tag.RowsAffected()}, nil
}

// buildWhere renders filter as a WHERE clause. The parent path prefix is
// escaped before LIKE so ids containing % or _ only match themselves, and
// the left-anchored pattern can use the text_pattern_ops index.
func buildWhere(filter contenttree.Filter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.ID != "" {
		add("id = $%d", filter.ID)
	}
	if filter.ContentID != "" {
		add("content_id = $%d", filter.ContentID)
	}
	if filter.ParentPathPrefix != "" {
		add(`parent_path LIKE $%d ESCAPE '\'`, escapeLike(filter.ParentPathPrefix)+"%")
	}
	if filter.IsDeleted != nil {
		add("is_deleted = $%d", *filter.IsDeleted)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike quotes the LIKE metacharacters of s.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
