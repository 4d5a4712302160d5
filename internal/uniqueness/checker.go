package uniqueness

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/epicollect5/epicollect5-server-sub003/internal/answer"
	"github.com/epicollect5/epicollect5-server-sub003/internal/schema"
)

// Conflict identifies the stored answer that an uploaded answer collides with.
type Conflict struct {
	InputRef string
	EntryID  uuid.UUID
	FormRef  string
}

// Query asks whether an answer already exists within a uniqueness scope.
type Query struct {
	ProjectID      uuid.UUID
	FormRef        string
	InputRef       string
	Scope          schema.Uniqueness
	Value          answer.Value
	ExcludeEntryID uuid.UUID // the entry being uploaded; an edit never conflicts with itself
}

// LookupQuery is the storage-level form of a Query: the scope is already
// resolved to the key stored next to every unique answer.
type LookupQuery struct {
	ProjectID      uuid.UUID
	Scope          schema.Uniqueness
	ScopeRef       string
	InputRef       string
	Value          string
	ExcludeEntryID uuid.UUID
}

// Lookup finds a stored answer matching q, returning nil when there is none.
type Lookup interface {
	FindAnswer(ctx context.Context, q LookupQuery) (*Conflict, error)
}

// ScopeRef returns the key that partitions unique answers for scope:
// the form ref for form scope, and the whole project otherwise.
func ScopeRef(scope schema.Uniqueness, formRef string) string {
	if scope == schema.UniquenessForm {
		return formRef
	}
	return ""
}

// Checker is an optimistic pre-filter over stored answers. The storage-level
// unique index stays the final authority for concurrent uploads.
type Checker struct {
	lookup Lookup
}

// NewChecker creates a Checker reading stored answers through lookup.
func NewChecker(lookup Lookup) *Checker {
	return &Checker{lookup: lookup}
}

// CheckConflict reports the first stored answer colliding with q.Value in q.Scope.
// Empty values and inputs without uniqueness never conflict and are not looked up.
func (c *Checker) CheckConflict(ctx context.Context, q Query) (*Conflict, error) {
	if q.Value.IsEmpty() {
		return nil, nil
	}

	switch q.Scope {
	case "", schema.UniquenessNone:
		return nil, nil
	case schema.UniquenessForm, schema.UniquenessProject:
	default:
		return nil, fmt.Errorf("unknown uniqueness scope %q for input %s", q.Scope, q.InputRef)
	}

	conflict, err := c.lookup.FindAnswer(ctx, LookupQuery{
		ProjectID:      q.ProjectID,
		Scope:          q.Scope,
		ScopeRef:       ScopeRef(q.Scope, q.FormRef),
		InputRef:       q.InputRef,
		Value:          q.Value.Key,
		ExcludeEntryID: q.ExcludeEntryID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up answer for input %s: %w", q.InputRef, err)
	}
	return conflict, nil
}
