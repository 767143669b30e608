package data

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MasterStatus string

const (
	MasterPending MasterStatus = "pending"
	MasterActive  MasterStatus = "active"
	MasterBlocked MasterStatus = "blocked"
)

func (s MasterStatus) Valid() bool {
	return s == MasterPending || s == MasterActive || s == MasterBlocked
}

// Master ist ein Handwerker aus dem Pool.
type Master struct {
	ID              string       `gorm:"primaryKey;size:36" json:"id"`
	Name            string       `gorm:"size:200;not null" json:"name"`
	Phone           string       `gorm:"size:50;not null" json:"phone"`
	Email           string       `gorm:"size:200" json:"email,omitempty"`
	City            string       `gorm:"size:120" json:"city,omitempty"`
	Specialties     string       `gorm:"size:500" json:"specialties,omitempty"`
	ExperienceYears int          `json:"experience_years"`
	Status          MasterStatus `gorm:"size:20;not null;index" json:"status"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func (Master) TableName() string { return "masters" }

func (m *Master) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

type MasterApplication struct {
	Name            string `json:"name" binding:"required,max=200"`
	Phone           string `json:"phone" binding:"required,max=50"`
	Email           string `json:"email" binding:"omitempty,email,max=200"`
	City            string `json:"city" binding:"max=120"`
	Specialties     string `json:"specialties" binding:"max=500"`
	ExperienceYears int    `json:"experience_years" binding:"min=0,max=80"`
}

type CandidateStatus string

const (
	CandidatePending  CandidateStatus = "pending"
	CandidateSelected CandidateStatus = "selected"
	CandidateRejected CandidateStatus = "rejected"
)

func (s CandidateStatus) Valid() bool {
	return s == CandidatePending || s == CandidateSelected || s == CandidateRejected
}

// Candidate verknüpft einen Meister mit einem Auftrag, für den er sich beworben hat
// oder vorgeschlagen wurde. Pro Auftrag und Meister gibt es höchstens einen Eintrag.
type Candidate struct {
	ID            string          `gorm:"primaryKey;size:36" json:"id"`
	RequestID     string          `gorm:"size:36;not null;uniqueIndex:idx_candidate_request_master" json:"request_id"`
	MasterID      string          `gorm:"size:36;not null;uniqueIndex:idx_candidate_request_master;index" json:"master_id"`
	Status        CandidateStatus `gorm:"size:20;not null;index" json:"status"`
	Note          string          `gorm:"type:text" json:"note,omitempty"`
	ProposedPrice *float64        `json:"proposed_price,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Master *Master `gorm:"foreignKey:MasterID" json:"master,omitempty"`
}

func (Candidate) TableName() string { return "request_candidates" }

func (c *Candidate) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

type CandidateInput struct {
	MasterID      string   `json:"master_id" binding:"required"`
	Note          string   `json:"note" binding:"max=2000"`
	ProposedPrice *float64 `json:"proposed_price" binding:"omitempty,gte=0"`
}

// Assignment hält die aktive Zuweisung eines Auftrags. Der eindeutige Index auf
// request_id sorgt dafür, dass es pro Auftrag nur eine Zeile gibt.
type Assignment struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	RequestID   string    `gorm:"size:36;not null;uniqueIndex" json:"request_id"`
	MasterID    string    `gorm:"size:36;not null;index" json:"master_id"`
	CandidateID string    `gorm:"size:36;not null" json:"candidate_id"`
	AssignedBy  string    `gorm:"size:200" json:"assigned_by,omitempty"`
	AssignedAt  time.Time `json:"assigned_at"`
	Active      bool      `gorm:"not null" json:"active"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Assignment) TableName() string { return "request_assignments" }

func (a *Assignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
