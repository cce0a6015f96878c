package assignment

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/mkadiri/kazi/core"
	"github.com/mkadiri/kazi/core/user"
)

var (
	nowFunc = time.Now // mockable

	// errors
	ErrNotFound            = errors.New("assignment not found")
	ErrInvalidID           = errors.New("invalid assignment ID")
	ErrNotPublished        = errors.New("this assignment is not yet published")
	ErrSubmitUnpublished   = errors.New("cannot submit to an unpublished assignment")
	ErrAlreadySubmitted    = errors.New("you have already submitted this assignment")
	ErrSubmissionNotFound  = errors.New("submission not found")
	ErrInvalidSubmissionID = errors.New("invalid submission ID")
)

// MarksExceedTotalError rejects a grade above the assignment's total
// achievable marks; the message names the maximum.
type MarksExceedTotalError struct {
	Total float64
}

func (e *MarksExceedTotalError) Error() string {
	return fmt.Sprintf("marks cannot exceed the total marks (%v)", e.Total)
}

type (
	// SubmissionFilter narrows submission queries. Empty fields are not
	// applied. StudentID filtering is always set server-side from the
	// caller's account, never from client input.
	SubmissionFilter struct {
		AssignmentID string
		StudentID    string
	}

	Repository interface {
		CreateAssignment(ctx context.Context, asg Assignment) (Assignment, error)
		// QueryAssignments returns assignments newest-first, optionally
		// published ones only.
		QueryAssignments(ctx context.Context, publishedOnly bool) ([]Assignment, error)
		GetAssignmentByID(ctx context.Context, id string) (Assignment, error)
		UpdateAssignment(ctx context.Context, asg Assignment) (Assignment, error)
		// DeleteAssignmentByID removes the assignment and all submissions
		// referencing it in the same logical operation.
		DeleteAssignmentByID(ctx context.Context, id string) error

		// CreateSubmission relies on the storage-level unique
		// (assignment, student) constraint as the backstop against
		// concurrent double submits; it returns ErrAlreadySubmitted on a
		// uniqueness violation.
		CreateSubmission(ctx context.Context, sub Submission) (Submission, error)
		GetSubmissionByID(ctx context.Context, id string) (Submission, error)
		// QuerySubmissions returns submissions newest-first.
		QuerySubmissions(ctx context.Context, filter SubmissionFilter) ([]Submission, error)
		UpdateSubmission(ctx context.Context, sub Submission) (Submission, error)
	}

	// UserDirectory is the slice of the user service the assignment
	// service needs for notifications.
	UserDirectory interface {
		GetByID(ctx context.Context, id string) (user.User, error)
		QueryByRole(ctx context.Context, role string) ([]user.User, error)
	}

	Service struct {
		repo    Repository
		users   UserDirectory
		mailSvc core.EmailService
	}
)

func NewService(repo Repository, users UserDirectory, mailSvc core.EmailService) *Service {
	return &Service{repo: repo, users: users, mailSvc: mailSvc}
}

// Create creates an assignment owned by the acting admin. Unpublished by
// default unless the payload says otherwise.
func (svc *Service) Create(ctx context.Context, actor user.User, na NewAssignment) (Assignment, error) {
	now := time.Now().UTC()
	asg := Assignment{
		Title:       na.Title,
		Description: na.Description,
		DueDate:     na.DueDate,
		TotalMarks:  *na.TotalMarks,
		Published:   na.Published,
		CreatedBy:   UserInfo{ID: actor.ID, Username: actor.Username, FullName: actor.FullName},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateAssignment(ctx, asg)
}

// Query lists assignments for the actor: students only see published
// ones, admins see all.
func (svc *Service) Query(ctx context.Context, actor user.User) ([]Assignment, error) {
	return svc.repo.QueryAssignments(ctx, actor.IsStudent())
}

// GetByID returns one assignment; students may not see unpublished ones.
func (svc *Service) GetByID(ctx context.Context, actor user.User, id string) (Assignment, error) {
	asg, err := svc.repo.GetAssignmentByID(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if actor.IsStudent() && !asg.Published {
		return Assignment{}, ErrNotPublished
	}
	return asg, nil
}

// Update replaces the assignment's mutable fields. The creator reference
// is immutable. Published can only move to true here; a published
// assignment never reverts.
func (svc *Service) Update(ctx context.Context, id string, ua UpdateAssignment) (Assignment, error) {
	asg, err := svc.repo.GetAssignmentByID(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	asg.Title = ua.Title
	asg.Description = ua.Description
	asg.DueDate = ua.DueDate
	asg.TotalMarks = *ua.TotalMarks
	if ua.Published {
		asg.Published = true
	}
	asg.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateAssignment(ctx, asg)
}

// Publish flips the assignment to published (one-directional) and
// notifies students. Publishing an already-published assignment is a
// no-op that still succeeds.
func (svc *Service) Publish(ctx context.Context, id string) (Assignment, error) {
	asg, err := svc.repo.GetAssignmentByID(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	wasPublished := asg.Published
	asg.Published = true
	asg.UpdatedAt = time.Now().UTC()
	asg, err = svc.repo.UpdateAssignment(ctx, asg)
	if err != nil {
		return Assignment{}, err
	}
	if !wasPublished {
		svc.notifyPublished(ctx, asg)
	}
	return asg, nil
}

// Delete removes the assignment and cascades to all its submissions.
func (svc *Service) Delete(ctx context.Context, id string) (Assignment, error) {
	asg, err := svc.repo.GetAssignmentByID(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if err := svc.repo.DeleteAssignmentByID(ctx, id); err != nil {
		return Assignment{}, err
	}
	return asg, nil
}

// Submit records the actor's single attempt at an assignment.
// Preconditions, checked in order: the assignment exists; it is
// published; the actor has not submitted before. Lateness is decided
// exactly once, right here, and never revisited.
func (svc *Service) Submit(ctx context.Context, actor user.User, assignmentID string, ns NewSubmission) (Submission, error) {
	asg, err := svc.repo.GetAssignmentByID(ctx, assignmentID)
	if err != nil {
		return Submission{}, err
	}
	if !asg.Published {
		return Submission{}, ErrSubmitUnpublished
	}

	now := nowFunc().UTC()
	late := now.After(asg.DueDate)
	status := StatusSubmitted
	if late {
		status = StatusLate
	}

	sub := Submission{
		Assignment:  AssignmentInfo{ID: asg.ID},
		Student:     UserInfo{ID: actor.ID},
		Content:     ns.Content,
		SubmittedAt: now,
		Status:      status,
		Late:        late,
	}
	// the unique (assignment, student) index catches the duplicate even
	// when two submits race past this point
	return svc.repo.CreateSubmission(ctx, sub)
}

// QuerySubmissions lists submissions for an assignment. Students only
// ever see their own; the filter comes from the verified actor, not from
// client input.
func (svc *Service) QuerySubmissions(ctx context.Context, actor user.User, assignmentID string) ([]Submission, error) {
	if _, err := svc.repo.GetAssignmentByID(ctx, assignmentID); err != nil {
		return nil, err
	}
	filter := SubmissionFilter{AssignmentID: assignmentID}
	if actor.IsStudent() {
		filter.StudentID = actor.ID
	}
	return svc.repo.QuerySubmissions(ctx, filter)
}

// QueryStudentSubmissions lists every submission made by one student.
func (svc *Service) QueryStudentSubmissions(ctx context.Context, studentID string) ([]Submission, error) {
	return svc.repo.QuerySubmissions(ctx, SubmissionFilter{StudentID: studentID})
}

// GetSubmissionByID returns one submission; students may only fetch
// their own.
func (svc *Service) GetSubmissionByID(ctx context.Context, actor user.User, id string) (Submission, error) {
	sub, err := svc.repo.GetSubmissionByID(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	if actor.IsStudent() && sub.Student.ID != actor.ID {
		return Submission{}, ErrSubmissionNotFound
	}
	return sub, nil
}

// Grade sets marks and feedback and moves the submission to graded,
// whatever its prior status. Marks above the assignment's total are
// rejected. Regrading overwrites; no history is kept.
func (svc *Service) Grade(ctx context.Context, submissionID string, g Grade) (Submission, error) {
	sub, err := svc.repo.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}
	asg, err := svc.repo.GetAssignmentByID(ctx, sub.Assignment.ID)
	if err != nil {
		return Submission{}, err
	}
	if *g.Marks > asg.TotalMarks {
		return Submission{}, &MarksExceedTotalError{Total: asg.TotalMarks}
	}

	sub.Marks = *g.Marks
	sub.Feedback = g.Feedback
	sub.Status = StatusGraded
	sub, err = svc.repo.UpdateSubmission(ctx, sub)
	if err != nil {
		return Submission{}, err
	}
	svc.notifyGraded(ctx, sub, asg)
	return sub, nil
}

func (svc *Service) notifyPublished(ctx context.Context, asg Assignment) {
	students, err := svc.users.QueryByRole(ctx, user.RoleStudent)
	if err != nil || len(students) == 0 {
		return
	}
	to := make([]mail.Address, 0, len(students))
	for _, s := range students {
		to = append(to, mail.Address{Name: s.FullName, Address: s.Email})
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      to,
		Subject: "New assignment: " + asg.Title,
		Body: fmt.Sprintf(
			"A new assignment %q has been published. It is due on %s.\n\n%s/assignments/%s",
			asg.Title, asg.DueDate.Format(time.RFC1123), core.Conf.FrontendBaseURL, asg.ID,
		),
	})
}

func (svc *Service) notifyGraded(ctx context.Context, sub Submission, asg Assignment) {
	student, err := svc.users.GetByID(ctx, sub.Student.ID)
	if err != nil {
		// the account may be gone; grading still stands
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: student.FullName, Address: student.Email}},
		Subject: "Your submission has been graded",
		Body: fmt.Sprintf(
			"Your submission for %q was graded: %v/%v.\n\n%s/assignments/%s",
			asg.Title, sub.Marks, asg.TotalMarks, core.Conf.FrontendBaseURL, asg.ID,
		),
	})
}
