// Package contenttree provides a reusable library for hierarchical, versioned
// content nodes (pages, blocks, media) with a draft/publish lifecycle and
// soft deletion.
//
// It exposes a single Service interface that orchestrates three document
// stores: the working Content store, the append-only ContentVersion store and
// the PublishedContent store holding the current public snapshot per node.
// Store implementations (memory, Postgres), snapshot archives (memory,
// filesystem, S3) and publish guards (local, Redis) are provided under
// subpackages.
//
// Hierarchy
//
// Every Content carries a materialized parent path (",root,child,") and the
// ordered list of its ancestor ids. Both are derived from the parent by
// DerivePath and never assembled by hand elsewhere. Descendant queries match
// the parent path by anchored prefix.
//
// Consistency
//
// Publishing is three sequential, non-transactional writes. The first write
// (marking the Content published) is the durability point; a crash before the
// other two leaves a Content with IsPublished set and no matching snapshot,
// which Reconcile repairs. Deleting fans out concurrently to the node, its
// published snapshot and its descendants, without rollback on partial failure.
package contenttree
