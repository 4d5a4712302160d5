package project

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/epicollect5/epicollect5-server-sub003/internal/schema"
)

// ErrProjectNotFound is returned when no project has the requested ref.
var ErrProjectNotFound = errors.New("project not found")

// Project is a project with its current definition. The formbuilder owns
// the definition; uploads only read it.
type Project struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Ref        string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"ref"`
	Name       string         `gorm:"type:varchar(255);not null" json:"name"`
	Definition datatypes.JSON `gorm:"not null" json:"definition"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName returns the table name for Project
func (Project) TableName() string {
	return "projects"
}

// Schema decodes the stored definition.
func (p *Project) Schema() (*schema.Definition, error) {
	def, err := schema.ParseDefinition(p.Definition)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", p.Ref, err)
	}
	return def, nil
}

// Store handles database operations for projects
type Store struct {
	db *gorm.DB
}

// NewStore creates a new Store
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new project. The definition must decode.
func (s *Store) Create(ctx context.Context, p *Project) error {
	if _, err := p.Schema(); err != nil {
		return err
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to create project %s: %w", p.Ref, err)
	}
	return nil
}

// GetByRef retrieves a project by its ref
func (s *Store) GetByRef(ctx context.Context, ref string) (*Project, error) {
	var p Project
	if err := s.db.WithContext(ctx).Where("ref = ?", ref).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, ref)
		}
		return nil, fmt.Errorf("failed to get project %s: %w", ref, err)
	}
	return &p, nil
}
