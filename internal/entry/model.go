package entry

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/epicollect5/epicollect5-server-sub003/internal/schema"
)

// BaseModel defines the common fields of entry tables.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;column:id;not null;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updatedAt"`
}

// BeforeCreate is a GORM hook that is triggered before a new record is created.
func (base *BaseModel) BeforeCreate(tx *gorm.DB) (err error) {
	if base.ID == uuid.Nil {
		base.ID, err = uuid.NewRandom()
		if err != nil {
			return
		}
	}
	now := time.Now().UTC()
	base.CreatedAt = now
	base.UpdatedAt = now
	return
}

// BeforeUpdate is a GORM hook that is triggered before an existing record is updated.
func (base *BaseModel) BeforeUpdate(tx *gorm.DB) (err error) {
	base.UpdatedAt = time.Now().UTC()
	return
}

// Entry is one submission for a form of a project. The ID is the entry uuid
// chosen by the collecting device, so a re-upload addresses the same row.
type Entry struct {
	BaseModel
	ProjectID uuid.UUID      `gorm:"type:uuid;column:project_id;not null;index" json:"projectId"`
	FormRef   string         `gorm:"type:varchar(255);column:form_ref;not null;index" json:"formRef"`
	Title     string         `gorm:"type:varchar(255);column:title" json:"title"`
	Answers   datatypes.JSON `gorm:"column:answers;not null" json:"answers"` // payload answers, stored unchanged
}

func (e *Entry) TableName() string {
	return "entries"
}

// BranchEntry is one repeat of a branch question, owned by an Entry.
type BranchEntry struct {
	BaseModel
	ProjectID     uuid.UUID      `gorm:"type:uuid;column:project_id;not null;index" json:"projectId"`
	FormRef       string         `gorm:"type:varchar(255);column:form_ref;not null;index" json:"formRef"` // the branch input ref
	OwnerEntryID  uuid.UUID      `gorm:"type:uuid;column:owner_entry_id;not null;index" json:"ownerEntryId"`
	OwnerInputRef string         `gorm:"type:varchar(255);column:owner_input_ref;not null" json:"ownerInputRef"`
	Answers       datatypes.JSON `gorm:"column:answers;not null" json:"answers"`
}

func (b *BranchEntry) TableName() string {
	return "branch_entries"
}

// UniqueAnswer holds the normalized value of an answer to an input with a
// uniqueness scope. The composite unique index is what makes two racing
// uploads with the same value serialize: the second insert fails. The index
// holds a digest of the value, since a long text answer would not fit in a
// btree entry.
type UniqueAnswer struct {
	ID        uint              `gorm:"primaryKey;autoIncrement" json:"-"`
	ProjectID uuid.UUID         `gorm:"type:uuid;column:project_id;not null;uniqueIndex:idx_unique_answer,priority:1" json:"projectId"`
	Scope     schema.Uniqueness `gorm:"type:varchar(20);column:scope;not null;uniqueIndex:idx_unique_answer,priority:2" json:"scope"`
	ScopeRef  string            `gorm:"type:varchar(255);column:scope_ref;not null;uniqueIndex:idx_unique_answer,priority:3" json:"scopeRef"`
	InputRef  string            `gorm:"type:varchar(255);column:input_ref;not null;uniqueIndex:idx_unique_answer,priority:4" json:"inputRef"`
	ValueHash string            `gorm:"type:char(64);column:value_hash;not null;uniqueIndex:idx_unique_answer,priority:5" json:"-"`
	Value     string            `gorm:"type:text;column:value;not null" json:"value"`
	FormRef   string            `gorm:"type:varchar(255);column:form_ref;not null" json:"formRef"`
	// EntryID is always the top-level entry, also for branch answers, so an
	// edit of the entry replaces every row it owns.
	EntryID   uuid.UUID `gorm:"type:uuid;column:entry_id;not null;index" json:"entryId"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (u *UniqueAnswer) TableName() string {
	return "unique_answers"
}

// BeforeSave is a GORM hook that keeps ValueHash in step with Value.
func (u *UniqueAnswer) BeforeSave(tx *gorm.DB) (err error) {
	u.ValueHash = HashValue(u.Value)
	return
}

// HashValue returns the hex sha256 digest stored in UniqueAnswer.ValueHash.
func HashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// Models lists every table owned by this package, in migration order.
func Models() []any {
	return []any{&Entry{}, &BranchEntry{}, &UniqueAnswer{}}
}
