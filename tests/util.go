package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/mkadiri/kazi/core/assignment"
	"github.com/mkadiri/kazi/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	fullName, uname, email, pwd, role, studentID string,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		FullName:  fullName,
		Username:  uname,
		Email:     email,
		Role:      role,
		StudentID: studentID,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateAdmin(t *testing.T, repo user.Repository, uname, pwd string) user.User {
	t.Helper()
	return CreateUser(t, repo, uname, uname, uname+"@test.kazi", pwd, user.RoleAdmin, "")
}

func CreateStudent(t *testing.T, repo user.Repository, uname, pwd, studentID string) user.User {
	t.Helper()
	return CreateUser(t, repo, uname, uname, uname+"@test.kazi", pwd, user.RoleStudent, studentID)
}

func CreateAssignment(
	t *testing.T,
	repo assignment.Repository,
	createdBy user.User,
	title string,
	dueDate time.Time,
	totalMarks float64,
	published bool,
) assignment.Assignment {
	t.Helper()

	now := time.Now().UTC()
	asg := assignment.Assignment{
		Title:       title,
		Description: title + " description",
		DueDate:     dueDate.UTC(),
		TotalMarks:  totalMarks,
		Published:   published,
		CreatedBy: assignment.UserInfo{
			ID:       createdBy.ID,
			Username: createdBy.Username,
			FullName: createdBy.FullName,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	asg, err := repo.CreateAssignment(context.Background(), asg)
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return asg
}

func CreateSubmission(
	t *testing.T,
	repo assignment.Repository,
	asg assignment.Assignment,
	student user.User,
	content string,
	late bool,
	submittedAt ...time.Time,
) assignment.Submission {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(submittedAt) > 0 {
		tstamp = submittedAt[0].UTC()
	}
	status := assignment.StatusSubmitted
	if late {
		status = assignment.StatusLate
	}
	sub := assignment.Submission{
		Assignment:  assignment.AssignmentInfo{ID: asg.ID},
		Student:     assignment.UserInfo{ID: student.ID},
		Content:     content,
		SubmittedAt: tstamp,
		Status:      status,
		Late:        late,
	}
	sub, err := repo.CreateSubmission(context.Background(), sub)
	if err != nil {
		t.Fatalf("CreateSubmission() failed: %v", err)
	}
	return sub
}
