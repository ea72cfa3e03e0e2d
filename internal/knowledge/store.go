package knowledge

import (
	"context"
	"errors"
)

// ErrIdentityConflict signals that another writer created the same identity
// concurrently. Store implementations resolve it internally by returning the
// winning row; it is exported so they can name it in logs and tests.
var ErrIdentityConflict = errors.New("knowledge point identity conflict")

// SortField selects the ordering for Query.
type SortField string

const (
	SortByMarkCount SortField = "mark_count"
	SortByCreatedAt SortField = "created_at"
)

// Filter narrows Query results. Empty strings match everything. Item is a
// case-insensitive substring match; the structural fields match exactly.
type Filter struct {
	Subject string
	Chapter string
	Section string
	Item    string
	SortBy  SortField
	Desc    bool
	Offset  int
	Limit   int
}

// Store is the persistent repository of knowledge points.
//
// Lookups that miss return (nil, nil). UpsertByIdentity never changes
// MarkCount; only IncrementMarkCount does.
type Store interface {
	FindByID(ctx context.Context, id int) (*KnowledgePoint, error)
	FindByIDs(ctx context.Context, ids []int) ([]*KnowledgePoint, error)

	// FindByStructure lists the points under subject. Empty chapter or
	// section act as wildcards.
	FindByStructure(ctx context.Context, subject, chapter, section string) ([]*KnowledgePoint, error)

	// UpsertByIdentity returns the existing point with d's identity, or
	// creates one with MarkCount 0. Details of an existing point are kept.
	UpsertByIdentity(ctx context.Context, d Draft) (*KnowledgePoint, error)

	IncrementMarkCount(ctx context.Context, id int) (*KnowledgePoint, error)

	Query(ctx context.Context, f Filter) ([]*KnowledgePoint, error)
	Popular(ctx context.Context, limit int) ([]*KnowledgePoint, error)

	Subjects(ctx context.Context) ([]string, error)
	Chapters(ctx context.Context, subject string) ([]string, error)
	Sections(ctx context.Context, subject, chapter string) ([]string, error)
	Categories(ctx context.Context) ([]Category, error)
}
