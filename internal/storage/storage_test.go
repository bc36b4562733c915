package storage

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shindakun/diuportal/internal/models"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newStudent(email, studentID string) *models.User {
	return &models.User{
		ID:           uuid.New().String(),
		Name:         "Test Student",
		Email:        email,
		Role:         models.RoleStudent,
		StudentID:    studentID,
		PasswordHash: "hash",
	}
}

func TestCreateAndGetUser(t *testing.T) {
	db := newTestDB(t)

	u := newStudent("Student@DIU.edu.bd", "221-15-4716")
	if err := CreateUser(db, u); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}

	got, err := GetUserByEmail(db, "student@diu.edu.bd")
	if err != nil {
		t.Fatalf("GetUserByEmail() failed: %v", err)
	}
	if got.ID != u.ID || got.Role != models.RoleStudent || got.StudentID != "221-15-4716" {
		t.Errorf("unexpected user: %+v", got)
	}
	if got.EmployeeID != "" {
		t.Errorf("employee id should be empty, got %q", got.EmployeeID)
	}

	if _, err := GetUser(db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateUserDuplicates(t *testing.T) {
	db := newTestDB(t)

	if err := CreateUser(db, newStudent("a@diu.edu.bd", "221-15-0001")); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}

	t.Run("email", func(t *testing.T) {
		err := CreateUser(db, newStudent("a@diu.edu.bd", "221-15-0002"))
		var dup *DuplicateError
		if !errors.As(err, &dup) || dup.Column != "email" {
			t.Fatalf("expected duplicate email, got %v", err)
		}
		if !errors.Is(err, ErrDuplicate) {
			t.Error("DuplicateError should unwrap to ErrDuplicate")
		}
	})

	t.Run("student id", func(t *testing.T) {
		err := CreateUser(db, newStudent("b@diu.edu.bd", "221-15-0001"))
		var dup *DuplicateError
		if !errors.As(err, &dup) || dup.Column != "student_id" {
			t.Fatalf("expected duplicate student_id, got %v", err)
		}
	})

	t.Run("instructors share empty student id", func(t *testing.T) {
		for i, emp := range []string{"EMP001", "EMP002"} {
			u := &models.User{
				ID:           uuid.New().String(),
				Name:         "Instructor",
				Email:        []string{"i1@diu.edu.bd", "i2@diu.edu.bd"}[i],
				Role:         models.RoleInstructor,
				EmployeeID:   emp,
				PasswordHash: "hash",
			}
			if err := CreateUser(db, u); err != nil {
				t.Fatalf("CreateUser(%s) failed: %v", emp, err)
			}
		}
		n, err := CountUsers(db, models.RoleInstructor)
		if err != nil || n != 2 {
			t.Errorf("CountUsers() = %d, %v", n, err)
		}
	})
}

func TestCreateUserRejectsMismatchedIdentifier(t *testing.T) {
	db := newTestDB(t)
	u := newStudent("c@diu.edu.bd", "")
	u.EmployeeID = "EMP009"
	if err := CreateUser(db, u); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestSessions(t *testing.T) {
	db := newTestDB(t)
	u := newStudent("s@diu.edu.bd", "221-15-1000")
	if err := CreateUser(db, u); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}

	now := time.Now().UTC()
	live := &models.Session{ID: "live", UserID: u.ID, Role: models.RoleStudent, ExpiresAt: now.Add(time.Hour)}
	dead := &models.Session{ID: "dead", UserID: u.ID, Role: models.RoleStudent, ExpiresAt: now.Add(-time.Hour)}
	for _, s := range []*models.Session{live, dead} {
		if err := SaveSession(db, s); err != nil {
			t.Fatalf("SaveSession() failed: %v", err)
		}
	}

	got, err := GetSession(db, "live")
	if err != nil {
		t.Fatalf("GetSession() failed: %v", err)
	}
	if got.User == nil || got.User.Email != "s@diu.edu.bd" {
		t.Errorf("session user not loaded: %+v", got.User)
	}
	if !got.IsActive() {
		t.Error("session should be active")
	}

	purged, err := PurgeExpiredSessions(db, now)
	if err != nil || purged != 1 {
		t.Errorf("PurgeExpiredSessions() = %d, %v", purged, err)
	}
	if _, err := GetSession(db, "dead"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired session should be gone, got %v", err)
	}

	if err := DeleteSession(db, "live"); err != nil {
		t.Fatalf("DeleteSession() failed: %v", err)
	}
	if _, err := GetSession(db, "live"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestNotifications(t *testing.T) {
	db := newTestDB(t)
	u := newStudent("n@diu.edu.bd", "221-15-2000")
	if err := CreateUser(db, u); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}

	base := time.Now().UTC().Add(-time.Hour)
	for i, msg := range []string{"first", "second", "third"} {
		n := &models.Notification{
			UserID:    u.ID,
			Kind:      models.NotificationAnnounce,
			Message:   msg,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := CreateNotification(db, n); err != nil {
			t.Fatalf("CreateNotification() failed: %v", err)
		}
	}

	unread, err := ListUnreadNotifications(db, u.ID, 10)
	if err != nil {
		t.Fatalf("ListUnreadNotifications() failed: %v", err)
	}
	if len(unread) != 3 || unread[0].Message != "third" {
		t.Fatalf("unexpected unread list: %+v", unread)
	}

	if err := MarkNotificationRead(db, u.ID, unread[0].ID, time.Now()); err != nil {
		t.Fatalf("MarkNotificationRead() failed: %v", err)
	}
	if err := MarkNotificationRead(db, u.ID, unread[0].ID, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("second mark should be ErrNotFound, got %v", err)
	}
	if err := MarkNotificationRead(db, "someone-else", unread[1].ID, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign user should get ErrNotFound, got %v", err)
	}

	n, err := MarkAllNotificationsRead(db, u.ID, time.Now())
	if err != nil || n != 2 {
		t.Errorf("MarkAllNotificationsRead() = %d, %v", n, err)
	}

	unread, err = ListUnreadNotifications(db, u.ID, 10)
	if err != nil || len(unread) != 0 {
		t.Errorf("expected no unread notifications, got %d, %v", len(unread), err)
	}
}

func TestAsDuplicate(t *testing.T) {
	err := asDuplicate(errors.New("constraint failed: UNIQUE constraint failed: users.employee_id (2067)"))
	var dup *DuplicateError
	if !errors.As(err, &dup) || dup.Column != "employee_id" {
		t.Fatalf("got %v", err)
	}

	plain := errors.New("disk I/O error")
	if asDuplicate(plain) != plain {
		t.Error("non-unique errors should pass through")
	}
}
