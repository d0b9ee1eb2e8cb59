package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EnrollmentStatus string

const (
	EnrollmentStatusActive  EnrollmentStatus = "active"
	EnrollmentStatusRevoked EnrollmentStatus = "revoked"
)

// CourseEnrollment grants one user access to one course.
type CourseEnrollment struct {
	CourseEnrollmentID              uuid.UUID        `gorm:"column:course_enrollment_id;type:uuid;primaryKey" json:"course_enrollment_id"`
	CourseEnrollmentCourseID        string           `gorm:"column:course_enrollment_course_id;type:varchar(64);not null;uniqueIndex:uq_course_enrollment_course_user,priority:1" json:"course_enrollment_course_id"`
	CourseEnrollmentUserID          string           `gorm:"column:course_enrollment_user_id;type:varchar(64);not null;uniqueIndex:uq_course_enrollment_course_user,priority:2;index" json:"course_enrollment_user_id"`
	CourseEnrollmentProviderOrderID *string          `gorm:"column:course_enrollment_provider_order_id;type:varchar(100)" json:"course_enrollment_provider_order_id"`
	CourseEnrollmentStatus          EnrollmentStatus `gorm:"column:course_enrollment_status;type:varchar(16);not null;default:'active'" json:"course_enrollment_status"`
	CourseEnrollmentEnrolledAt      time.Time        `gorm:"column:course_enrollment_enrolled_at;not null" json:"course_enrollment_enrolled_at"`
}

func (CourseEnrollment) TableName() string {
	return "course_enrollments"
}

func (e *CourseEnrollment) BeforeCreate(tx *gorm.DB) error {
	if e.CourseEnrollmentID == uuid.Nil {
		e.CourseEnrollmentID = uuid.New()
	}
	if e.CourseEnrollmentStatus == "" {
		e.CourseEnrollmentStatus = EnrollmentStatusActive
	}
	if e.CourseEnrollmentEnrolledAt.IsZero() {
		e.CourseEnrollmentEnrolledAt = time.Now()
	}
	return nil
}
