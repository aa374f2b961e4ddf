package model

import (
	"time"

	"github.com/google/uuid"
)

// MemberStatus enumerates course membership states.
type MemberStatus string

const (
	MemberStatusPending  MemberStatus = "PENDING"
	MemberStatusApproved MemberStatus = "APPROVED"
	MemberStatusRejected MemberStatus = "REJECTED"
)

// Course represents a course entity. The quiz core only consumes its
// identity and ownership; course management itself lives elsewhere.
type Course struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	TeacherID int       `json:"teacher_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
