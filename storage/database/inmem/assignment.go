package inmemdb

import (
	"context"
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mkadiri/kazi/core/assignment"
)

type assignmentRepository struct {
	db *DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) *assignmentRepository {
	return &assignmentRepository{db: db}
}

func checkID(id string, invalidErr error) error {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return invalidErr
	}
	return nil
}

// expansion at read time, mirroring the mongo repository

func (repo *assignmentRepository) userInfo(id string) assignment.UserInfo {
	if usr, ok := repo.db.users[id]; ok {
		return assignment.UserInfo{
			ID:        usr.ID,
			Username:  usr.Username,
			FullName:  usr.FullName,
			StudentID: usr.StudentID,
		}
	}
	return assignment.UserInfo{ID: id}
}

func (repo *assignmentRepository) assignmentInfo(id string) assignment.AssignmentInfo {
	if asg, ok := repo.db.assignments[id]; ok {
		return assignment.AssignmentInfo{
			ID:          asg.ID,
			Title:       asg.Title,
			Description: asg.Description,
			DueDate:     asg.DueDate,
			TotalMarks:  asg.TotalMarks,
			Published:   asg.Published,
		}
	}
	return assignment.AssignmentInfo{ID: id}
}

func (repo *assignmentRepository) expand(asg assignment.Assignment) assignment.Assignment {
	asg.CreatedBy = repo.userInfo(asg.CreatedBy.ID)
	return asg
}

func (repo *assignmentRepository) expandSub(sub assignment.Submission) assignment.Submission {
	sub.Assignment = repo.assignmentInfo(sub.Assignment.ID)
	sub.Student = repo.userInfo(sub.Student.ID)
	return sub
}

func (repo *assignmentRepository) CreateAssignment(ctx context.Context, asg assignment.Assignment) (assignment.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	asg.ID = primitive.NewObjectID().Hex()
	stored := asg
	stored.CreatedBy = assignment.UserInfo{ID: asg.CreatedBy.ID}
	repo.db.assignments[asg.ID] = &stored
	return repo.expand(stored), nil
}

func (repo *assignmentRepository) QueryAssignments(ctx context.Context, publishedOnly bool) ([]assignment.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	asgs := make([]assignment.Assignment, 0, len(repo.db.assignments))
	for _, asg := range repo.db.assignments {
		if publishedOnly && !asg.Published {
			continue
		}
		asgs = append(asgs, repo.expand(*asg))
	}
	sort.Slice(asgs, func(i, j int) bool { return asgs[i].CreatedAt.After(asgs[j].CreatedAt) })
	return asgs, nil
}

func (repo *assignmentRepository) GetAssignmentByID(ctx context.Context, id string) (assignment.Assignment, error) {
	if err := checkID(id, assignment.ErrInvalidID); err != nil {
		return assignment.Assignment{}, err
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if asg, ok := repo.db.assignments[id]; ok {
		return repo.expand(*asg), nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

func (repo *assignmentRepository) UpdateAssignment(ctx context.Context, asg assignment.Assignment) (assignment.Assignment, error) {
	if err := checkID(asg.ID, assignment.ErrInvalidID); err != nil {
		return assignment.Assignment{}, err
	}
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.assignments[asg.ID]; !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	stored := asg
	stored.CreatedBy = assignment.UserInfo{ID: asg.CreatedBy.ID}
	repo.db.assignments[asg.ID] = &stored
	return repo.expand(stored), nil
}

func (repo *assignmentRepository) DeleteAssignmentByID(ctx context.Context, id string) error {
	if err := checkID(id, assignment.ErrInvalidID); err != nil {
		return err
	}
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.assignments[id]; !ok {
		return assignment.ErrNotFound
	}
	delete(repo.db.assignments, id)
	// cascade
	for subID, sub := range repo.db.submissions {
		if sub.Assignment.ID == id {
			delete(repo.db.submissions, subID)
		}
	}
	return nil
}

func (repo *assignmentRepository) CreateSubmission(ctx context.Context, sub assignment.Submission) (assignment.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// the unique (assignment, student) backstop
	for _, existing := range repo.db.submissions {
		if existing.Assignment.ID == sub.Assignment.ID && existing.Student.ID == sub.Student.ID {
			return assignment.Submission{}, assignment.ErrAlreadySubmitted
		}
	}

	sub.ID = primitive.NewObjectID().Hex()
	stored := sub
	stored.Assignment = assignment.AssignmentInfo{ID: sub.Assignment.ID}
	stored.Student = assignment.UserInfo{ID: sub.Student.ID}
	repo.db.submissions[sub.ID] = &stored
	return repo.expandSub(stored), nil
}

func (repo *assignmentRepository) GetSubmissionByID(ctx context.Context, id string) (assignment.Submission, error) {
	if err := checkID(id, assignment.ErrInvalidSubmissionID); err != nil {
		return assignment.Submission{}, err
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sub, ok := repo.db.submissions[id]; ok {
		return repo.expandSub(*sub), nil
	}
	return assignment.Submission{}, assignment.ErrSubmissionNotFound
}

func (repo *assignmentRepository) QuerySubmissions(ctx context.Context, filter assignment.SubmissionFilter) ([]assignment.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subs := make([]assignment.Submission, 0)
	for _, sub := range repo.db.submissions {
		if filter.AssignmentID != "" && sub.Assignment.ID != filter.AssignmentID {
			continue
		}
		if filter.StudentID != "" && sub.Student.ID != filter.StudentID {
			continue
		}
		subs = append(subs, repo.expandSub(*sub))
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.After(subs[j].SubmittedAt) })
	return subs, nil
}

func (repo *assignmentRepository) UpdateSubmission(ctx context.Context, sub assignment.Submission) (assignment.Submission, error) {
	if err := checkID(sub.ID, assignment.ErrInvalidSubmissionID); err != nil {
		return assignment.Submission{}, err
	}
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.submissions[sub.ID]; !ok {
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	stored := sub
	stored.Assignment = assignment.AssignmentInfo{ID: sub.Assignment.ID}
	stored.Student = assignment.UserInfo{ID: sub.Student.ID}
	repo.db.submissions[sub.ID] = &stored
	return repo.expandSub(stored), nil
}
