package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"coursepay_backend/internals/features/courses/enrollments/model"
)

var ErrInvalidEnrollment = errors.New("course_id and user_id are required")

type EnrollmentService struct {
	DB *gorm.DB
}

func NewEnrollmentService(db *gorm.DB) *EnrollmentService {
	return &EnrollmentService{DB: db}
}

// Grant enrolls userID in courseID. A repeated grant is a no-op; the result
// is true whenever the user ends up with an active enrollment.
func (s *EnrollmentService) Grant(ctx context.Context, courseID, userID, providerOrderID string) (bool, error) {
	courseID, userID = strings.TrimSpace(courseID), strings.TrimSpace(userID)
	if courseID == "" || userID == "" {
		return false, ErrInvalidEnrollment
	}

	row := model.CourseEnrollment{
		CourseEnrollmentCourseID: courseID,
		CourseEnrollmentUserID:   userID,
		CourseEnrollmentStatus:   model.EnrollmentStatusActive,
	}
	if providerOrderID != "" {
		row.CourseEnrollmentProviderOrderID = &providerOrderID
	}

	// 1) Idempotent insert on (course_id, user_id)
	if err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error; err != nil {
		return false, fmt.Errorf("grant enrollment: %w", err)
	}

	// 2) An existing row may be revoked, reactivate it
	res := s.DB.WithContext(ctx).
		Model(&model.CourseEnrollment{}).
		Where("course_enrollment_course_id = ? AND course_enrollment_user_id = ? AND course_enrollment_status <> ?",
			courseID, userID, model.EnrollmentStatusActive).
		Update("course_enrollment_status", model.EnrollmentStatusActive)
	if res.Error != nil {
		return false, fmt.Errorf("reactivate enrollment: %w", res.Error)
	}

	return s.IsEnrolled(ctx, courseID, userID)
}

func (s *EnrollmentService) IsEnrolled(ctx context.Context, courseID, userID string) (bool, error) {
	var n int64
	err := s.DB.WithContext(ctx).
		Model(&model.CourseEnrollment{}).
		Where("course_enrollment_course_id = ? AND course_enrollment_user_id = ? AND course_enrollment_status = ?",
			courseID, userID, model.EnrollmentStatusActive).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *EnrollmentService) ListByUser(ctx context.Context, userID string) ([]model.CourseEnrollment, error) {
	var rows []model.CourseEnrollment
	err := s.DB.WithContext(ctx).
		Where("course_enrollment_user_id = ?", userID).
		Order("course_enrollment_enrolled_at DESC").
		Find(&rows).Error
	return rows, err
}
