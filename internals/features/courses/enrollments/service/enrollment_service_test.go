package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"coursepay_backend/internals/features/courses/enrollments/model"
)

func newTestService(t *testing.T) *EnrollmentService {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormLogger.Default.LogMode(gormLogger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(&model.CourseEnrollment{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewEnrollmentService(db)
}

func TestGrantIsIdempotent(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := s.Grant(ctx, "course-42", "user-7", "PO1")
		if err != nil || !ok {
			t.Fatalf("grant #%d = %v, %v", i+1, ok, err)
		}
	}

	rows, err := s.ListByUser(ctx, "user-7")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].CourseEnrollmentProviderOrderID == nil || *rows[0].CourseEnrollmentProviderOrderID != "PO1" {
		t.Errorf("provider order id = %v", rows[0].CourseEnrollmentProviderOrderID)
	}
}

func TestGrantConcurrent(t *testing.T) {
	t.Parallel()
	s := newTestService(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Grant(context.Background(), "course-42", "user-7", "PO1"); err != nil {
				t.Errorf("grant: %v", err)
			}
		}()
	}
	wg.Wait()

	var n int64
	s.DB.Model(&model.CourseEnrollment{}).Count(&n)
	if n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
}

func TestGrantReactivatesRevoked(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	ctx := context.Background()

	if _, err := s.Grant(ctx, "c", "u", ""); err != nil {
		t.Fatal(err)
	}
	s.DB.Model(&model.CourseEnrollment{}).Where("1 = 1").Update("course_enrollment_status", model.EnrollmentStatusRevoked)

	if ok, _ := s.IsEnrolled(ctx, "c", "u"); ok {
		t.Fatal("revoked enrollment still active")
	}
	if ok, err := s.Grant(ctx, "c", "u", ""); err != nil || !ok {
		t.Fatalf("regrant = %v, %v", ok, err)
	}
}

func TestGrantValidates(t *testing.T) {
	t.Parallel()
	s := newTestService(t)

	if _, err := s.Grant(context.Background(), " ", "u", ""); err != ErrInvalidEnrollment {
		t.Errorf("err = %v, want ErrInvalidEnrollment", err)
	}
}
