package data

import (
	"time"

	"github.com/duke-git/lancet/v2/slice"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RequestStatus string

const (
	StatusWaitingCandidates    RequestStatus = "waiting_candidates"
	StatusCandidatesCollecting RequestStatus = "candidates_collecting"
	StatusMasterSelection      RequestStatus = "master_selection"
	StatusMasterAssigned       RequestStatus = "master_assigned"
	StatusScheduled            RequestStatus = "scheduled"
	StatusInProgress           RequestStatus = "in_progress"
	StatusCompleted            RequestStatus = "completed"
	StatusCancelled            RequestStatus = "cancelled"
)

var AllRequestStatuses = []RequestStatus{
	StatusWaitingCandidates,
	StatusCandidatesCollecting,
	StatusMasterSelection,
	StatusMasterAssigned,
	StatusScheduled,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
}

var requestTransitions = map[RequestStatus][]RequestStatus{
	StatusWaitingCandidates:    {StatusCandidatesCollecting, StatusCancelled},
	StatusCandidatesCollecting: {StatusMasterSelection, StatusMasterAssigned, StatusCancelled},
	StatusMasterSelection:      {StatusCandidatesCollecting, StatusMasterAssigned, StatusCancelled},
	StatusMasterAssigned:       {StatusScheduled, StatusInProgress, StatusMasterSelection, StatusCancelled},
	StatusScheduled:            {StatusInProgress, StatusMasterSelection, StatusCancelled},
	StatusInProgress:           {StatusCompleted, StatusCancelled},
}

func (s RequestStatus) Valid() bool {
	return slice.Contain(AllRequestStatuses, s)
}

func (s RequestStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// HasMaster meldet, ob der Auftrag in diesem Status einen aktiven Meister hat.
func (s RequestStatus) HasMaster() bool {
	return s == StatusMasterAssigned || s == StatusScheduled || s == StatusInProgress
}

// AcceptsCandidates meldet, ob in diesem Status noch Kandidaten hinzukommen dürfen.
func (s RequestStatus) AcceptsCandidates() bool {
	return s == StatusWaitingCandidates || s == StatusCandidatesCollecting || s == StatusMasterSelection
}

func (s RequestStatus) CanTransition(to RequestStatus) bool {
	return slice.Contain(requestTransitions[s], to)
}

// Request ist ein Auftrag, wie er über das Kontaktformular der Website eingeht.
type Request struct {
	ID            string        `gorm:"primaryKey;size:36" json:"id"`
	ClientName    string        `gorm:"size:200;not null" json:"client_name"`
	Phone         string        `gorm:"size:50;not null" json:"phone"`
	Email         string        `gorm:"size:200" json:"email,omitempty"`
	City          string        `gorm:"size:120" json:"city,omitempty"`
	Address       string        `gorm:"size:300" json:"address,omitempty"`
	ServiceType   string        `gorm:"size:120;index" json:"service_type,omitempty"`
	Description   string        `gorm:"type:text" json:"description,omitempty"`
	PreferredDate *time.Time    `json:"preferred_date,omitempty"`
	Source        string        `gorm:"size:50;not null" json:"source"`
	Status        RequestStatus `gorm:"size:40;not null;index" json:"status"`
	MasterID      *string       `gorm:"size:36;index" json:"master_id,omitempty"`
	ScheduledAt   *time.Time    `json:"scheduled_at,omitempty"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	CreatedAt     time.Time     `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (Request) TableName() string { return "requests" }

func (r *Request) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// RequestDetail bündelt einen Auftrag mit seinen Kandidaten und der aktiven Zuweisung.
type RequestDetail struct {
	Request    Request     `json:"request"`
	Candidates []Candidate `json:"candidates"`
	Assignment *Assignment `json:"assignment,omitempty"`
}

type LeadInput struct {
	Name          string     `json:"name" binding:"required,max=200"`
	Phone         string     `json:"phone" binding:"required,max=50"`
	Email         string     `json:"email" binding:"omitempty,email,max=200"`
	City          string     `json:"city" binding:"max=120"`
	Address       string     `json:"address" binding:"max=300"`
	ServiceType   string     `json:"service_type" binding:"max=120"`
	Description   string     `json:"description" binding:"max=5000"`
	PreferredDate *time.Time `json:"preferred_date"`
	Source        string     `json:"source" binding:"max=50"`
}

type RequestFilter struct {
	Status   RequestStatus `form:"status"`
	Page     int           `form:"page"`
	PageSize int           `form:"page_size"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize setzt Standardwerte für Seite und Seitengröße.
func (f *RequestFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
}

type PageData[T any] struct {
	List     []T   `json:"list"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}
