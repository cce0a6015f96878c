package assignment

import (
	"time"

	"github.com/mkadiri/kazi/core"
)

// Submission statuses. Transitions only move forward:
// submitted|late -> graded. There is no way back.
const (
	StatusSubmitted = "submitted"
	StatusLate      = "late"
	StatusGraded    = "graded"
)

const defaultTotalMarks = 100.0

// UserInfo is an account reference expanded at read time.
type UserInfo struct {
	ID        string `json:"id"`
	Username  string `json:"username,omitempty"`
	FullName  string `json:"fullName,omitempty"`
	StudentID string `json:"studentId,omitempty"`
}

// AssignmentInfo is an assignment reference expanded at read time.
type AssignmentInfo struct {
	ID          string    `json:"id"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	DueDate     time.Time `json:"dueDate,omitempty"`
	TotalMarks  float64   `json:"totalMarks,omitempty"`
	Published   bool      `json:"published,omitempty"`
}

type Assignment struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"dueDate"`
	TotalMarks  float64   `json:"totalMarks"`
	Published   bool      `json:"published"`
	CreatedBy   UserInfo  `json:"createdBy"` // immutable after creation
	CreatedAt   time.Time `json:"createdAt"` // UTC
	UpdatedAt   time.Time `json:"updatedAt"` // UTC
}

type Submission struct {
	ID          string         `json:"id"`
	Assignment  AssignmentInfo `json:"assignment"`
	Student     UserInfo       `json:"student"`
	Content     string         `json:"content"`
	SubmittedAt time.Time      `json:"submittedAt"` // set at creation, immutable
	Marks       float64        `json:"marks"`
	Feedback    string         `json:"feedback,omitempty"`
	Status      string         `json:"status"`
	// Late records the lateness decision made at submit time. Status is
	// overwritten on grading, so the fact is kept here forever.
	Late bool `json:"late"`
}

// NewAssignment contains information needed to create an Assignment.
// TotalMarks defaults to 100 when omitted.
type NewAssignment struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description" validate:"required"`
	DueDate     time.Time `json:"dueDate" validate:"required"`
	Published   bool      `json:"published"`
	TotalMarks  *float64  `json:"totalMarks" validate:"omitempty,gte=0"`
}

func (na *NewAssignment) Validate() error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	if na.TotalMarks == nil {
		marks := defaultTotalMarks
		na.TotalMarks = &marks
	}
	return core.Validate.Struct(na)
}

// UpdateAssignment replaces the mutable fields of an Assignment; same
// shape as NewAssignment (full update, like the original PUT semantics).
type UpdateAssignment struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description" validate:"required"`
	DueDate     time.Time `json:"dueDate" validate:"required"`
	Published   bool      `json:"published"`
	TotalMarks  *float64  `json:"totalMarks" validate:"required,gte=0"`
}

func (ua *UpdateAssignment) Validate() error {
	ua.Title = core.CleanString(ua.Title)
	ua.Description = core.CleanString(ua.Description)
	return core.Validate.Struct(ua)
}

// NewSubmission is a student's attempt at an assignment.
type NewSubmission struct {
	Content string `json:"content" validate:"required"`
}

func (ns *NewSubmission) Validate() error {
	ns.Content = core.CleanString(ns.Content)
	return core.Validate.Struct(ns)
}

type Grade struct {
	Marks    *float64 `json:"marks" validate:"required,gte=0"`
	Feedback string   `json:"feedback"`
}

func (g Grade) Validate() error { return core.Validate.Struct(g) }
