package entry

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/epicollect5/epicollect5-server-sub003/internal/schema"
	"github.com/epicollect5/epicollect5-server-sub003/internal/uniqueness"
)

// ConstraintViolation is returned by Save when the unique answer index
// rejected a row, meaning a concurrent upload stored the same value first.
type ConstraintViolation struct {
	InputRef string
	Scope    schema.Uniqueness
	Err      error
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("unique answer constraint violated for input %s: %v", e.InputRef, e.Err)
}

func (e *ConstraintViolation) Unwrap() error {
	return e.Err
}

var (
	// ErrEntryOwnership means the entry uuid is already stored under another
	// project or form.
	ErrEntryOwnership = errors.New("entry belongs to another project or form")
	// ErrBranchEntryTaken means a branch entry uuid is already stored under another entry.
	ErrBranchEntryTaken = errors.New("branch entry belongs to another entry")
)

// IDConflict is returned by Save when a client-chosen uuid clashes with a
// stored row that the submission does not own. Err is ErrEntryOwnership or
// ErrBranchEntryTaken.
type IDConflict struct {
	ID  uuid.UUID
	Err error
}

func (e *IDConflict) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.ID)
}

func (e *IDConflict) Unwrap() error {
	return e.Err
}

// Submission is everything persisted for one accepted upload.
type Submission struct {
	Entry    Entry
	Branches []BranchEntry
	// UniqueAnswers are inserted in order; the first rejected row is the one reported.
	UniqueAnswers []UniqueAnswer
}

// Store persists entries and answers the uniqueness lookups against them.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new Store
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// FindAnswer returns the stored answer matching q, or nil when the value is free.
func (s *Store) FindAnswer(ctx context.Context, q uniqueness.LookupQuery) (*uniqueness.Conflict, error) {
	query := s.db.WithContext(ctx).
		Where("project_id = ? AND scope = ? AND scope_ref = ? AND input_ref = ? AND value_hash = ?",
			q.ProjectID, q.Scope, q.ScopeRef, q.InputRef, HashValue(q.Value))
	if q.ExcludeEntryID != uuid.Nil {
		query = query.Where("entry_id <> ?", q.ExcludeEntryID)
	}

	var row UniqueAnswer
	if err := query.Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query unique answers: %w", err)
	}
	return &uniqueness.Conflict{InputRef: row.InputRef, EntryID: row.EntryID, FormRef: row.FormRef}, nil
}

// Save stores sub in a single transaction. An existing entry with the same ID
// is replaced together with its branch entries and unique answers, but only
// when it belongs to the same project and form; otherwise Save returns an
// *IDConflict and leaves the stored entry untouched.
func (s *Store) Save(ctx context.Context, sub *Submission) error {
	if sub == nil {
		return fmt.Errorf("submission cannot be nil")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry := &sub.Entry

		var existing Entry
		err := tx.Select("id", "project_id", "form_ref").Take(&existing, "id = ?", entry.ID).Error
		switch {
		case err == nil:
			if existing.ProjectID != entry.ProjectID || existing.FormRef != entry.FormRef {
				return &IDConflict{ID: entry.ID, Err: ErrEntryOwnership}
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("failed to load entry %s: %w", entry.ID, err)
		}

		// the WHERE guards against a concurrent insert of the same uuid
		// elsewhere between the lookup and the upsert
		upsert := clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "answers", "updated_at"}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Eq{Column: clause.Column{Table: "entries", Name: "project_id"}, Value: entry.ProjectID},
				clause.Eq{Column: clause.Column{Table: "entries", Name: "form_ref"}, Value: entry.FormRef},
			}},
		}
		result := tx.Clauses(upsert).Create(entry)
		if result.Error != nil {
			return fmt.Errorf("failed to save entry %s: %w", entry.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return &IDConflict{ID: entry.ID, Err: ErrEntryOwnership}
		}

		if err := tx.Where("owner_entry_id = ?", entry.ID).Delete(&BranchEntry{}).Error; err != nil {
			return fmt.Errorf("failed to clear branch entries of %s: %w", entry.ID, err)
		}
		if err := tx.Where("entry_id = ?", entry.ID).Delete(&UniqueAnswer{}).Error; err != nil {
			return fmt.Errorf("failed to clear unique answers of %s: %w", entry.ID, err)
		}

		for i := range sub.Branches {
			branch := &sub.Branches[i]
			branch.OwnerEntryID = entry.ID
			if err := tx.Create(branch).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return &IDConflict{ID: branch.ID, Err: ErrBranchEntryTaken}
				}
				return fmt.Errorf("failed to save branch entry %s: %w", branch.ID, err)
			}
		}

		for i := range sub.UniqueAnswers {
			row := &sub.UniqueAnswers[i]
			row.EntryID = entry.ID
			if err := tx.Create(row).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return &ConstraintViolation{InputRef: row.InputRef, Scope: row.Scope, Err: err}
				}
				return fmt.Errorf("failed to save unique answer for input %s: %w", row.InputRef, err)
			}
		}
		return nil
	})
}

// GetByID retrieves an entry by its ID
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	var e Entry
	if err := s.db.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// ListBranchEntries returns the branch entries owned by an entry.
func (s *Store) ListBranchEntries(ctx context.Context, ownerID uuid.UUID) ([]BranchEntry, error) {
	var branches []BranchEntry
	if err := s.db.WithContext(ctx).Where("owner_entry_id = ?", ownerID).Order("created_at").Find(&branches).Error; err != nil {
		return nil, fmt.Errorf("failed to list branch entries: %w", err)
	}
	return branches, nil
}
