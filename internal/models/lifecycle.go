package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base carries the identity, creation time and revision counter shared by
// every API resource.
type Base struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	Version   int       `gorm:"not null;default:0" json:"version,omitempty"`
}

func (b *Base) GetID() string { return b.ID }

// EnsureID assigns a new UUID when the record has none yet.
func (b *Base) EnsureID() {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
}

func (b *Base) BumpVersion() { b.Version++ }

// ResetIdentity clears the fields only the store assigns.
func (b *Base) ResetIdentity() {
	b.ID = ""
	b.CreatedAt = time.Time{}
	b.Version = 0
}

// The interfaces below are the lifecycle points the repository calls
// explicitly, in this order:
//
//	create: Defaults, Normalize, Validate, CheckConstraints, BeforePersist(isNew=true), write, AfterPersist
//	update: Normalize, Validate(changed fields), CheckConstraints, BeforePersist(isNew=false), write, AfterPersist
//	delete: BeforeRemove, delete, AfterRemove
//
// Retrieval applies Scope and, when asked, Populate.

type Identifiable interface {
	GetID() string
	EnsureID()
}

type Versioned interface {
	BumpVersion()
}

// IdentityResetter drops identity fields decoded from client input.
type IdentityResetter interface {
	ResetIdentity()
}

type Defaulter interface {
	ApplyDefaults()
}

type Normalizer interface {
	Normalize()
}

// ConstraintChecker validates rules spanning several fields.
type ConstraintChecker interface {
	CheckConstraints() error
}

type BeforePersister interface {
	BeforePersist(ctx context.Context, tx *gorm.DB, isNew bool) error
}

type AfterPersister interface {
	AfterPersist(ctx context.Context, tx *gorm.DB) error
}

type BeforeRemover interface {
	BeforeRemove(ctx context.Context, tx *gorm.DB) error
}

type AfterRemover interface {
	AfterRemove(ctx context.Context, tx *gorm.DB) error
}

// Scoper restricts every retrieval query of an entity.
type Scoper interface {
	Scope(db *gorm.DB) *gorm.DB
}

// Populator loads referenced records for responses.
type Populator interface {
	Populate(db *gorm.DB) *gorm.DB
}
