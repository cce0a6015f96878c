package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mkadiri/kazi/core/assignment"
)

type assignmentDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	DueDate     time.Time          `bson:"due_date"`
	TotalMarks  float64            `bson:"total_marks"`
	Published   bool               `bson:"published"`
	CreatedBy   primitive.ObjectID `bson:"created_by"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

type submissionDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	AssignmentID primitive.ObjectID `bson:"assignment_id"`
	StudentID    primitive.ObjectID `bson:"student_id"`
	Content      string             `bson:"content"`
	SubmittedAt  time.Time          `bson:"submitted_at"`
	Marks        float64            `bson:"marks"`
	Feedback     string             `bson:"feedback,omitempty"`
	Status       string             `bson:"status"`
	Late         bool               `bson:"late"`
}

type assignmentRepository struct {
	assignments *mongo.Collection
	submissions *mongo.Collection
	users       *mongo.Collection
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *mongo.Database) *assignmentRepository {
	return &assignmentRepository{
		assignments: db.Collection(assignmentsCollection),
		submissions: db.Collection(submissionsCollection),
		users:       db.Collection(usersCollection),
	}
}

// oid maps a malformed hex id to the provided domain sentinel.
func oid(id string, invalidErr error) (primitive.ObjectID, error) {
	o, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, invalidErr
	}
	return o, nil
}

func (repo assignmentRepository) doc(asg assignment.Assignment) (assignmentDoc, error) {
	d := assignmentDoc{
		Title:       asg.Title,
		Description: asg.Description,
		DueDate:     asg.DueDate.UTC(),
		TotalMarks:  asg.TotalMarks,
		Published:   asg.Published,
		CreatedAt:   asg.CreatedAt.UTC(),
		UpdatedAt:   asg.UpdatedAt.UTC(),
	}
	var err error
	if d.CreatedBy, err = oid(asg.CreatedBy.ID, assignment.ErrInvalidID); err != nil {
		return assignmentDoc{}, err
	}
	if asg.ID != "" {
		if d.ID, err = oid(asg.ID, assignment.ErrInvalidID); err != nil {
			return assignmentDoc{}, err
		}
	}
	return d, nil
}

func (repo assignmentRepository) undoc(d assignmentDoc, creators map[primitive.ObjectID]assignment.UserInfo) assignment.Assignment {
	creator, ok := creators[d.CreatedBy]
	if !ok {
		// creator account gone; degrade to the bare reference
		creator = assignment.UserInfo{ID: d.CreatedBy.Hex()}
	}
	return assignment.Assignment{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		DueDate:     d.DueDate,
		TotalMarks:  d.TotalMarks,
		Published:   d.Published,
		CreatedBy:   creator,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func (repo assignmentRepository) subDoc(sub assignment.Submission) (submissionDoc, error) {
	d := submissionDoc{
		Content:     sub.Content,
		SubmittedAt: sub.SubmittedAt.UTC(),
		Marks:       sub.Marks,
		Feedback:    sub.Feedback,
		Status:      sub.Status,
		Late:        sub.Late,
	}
	var err error
	if d.AssignmentID, err = oid(sub.Assignment.ID, assignment.ErrInvalidID); err != nil {
		return submissionDoc{}, err
	}
	if d.StudentID, err = oid(sub.Student.ID, assignment.ErrInvalidSubmissionID); err != nil {
		return submissionDoc{}, err
	}
	if sub.ID != "" {
		if d.ID, err = oid(sub.ID, assignment.ErrInvalidSubmissionID); err != nil {
			return submissionDoc{}, err
		}
	}
	return d, nil
}

func (repo assignmentRepository) subUndoc(
	d submissionDoc,
	asgs map[primitive.ObjectID]assignment.AssignmentInfo,
	students map[primitive.ObjectID]assignment.UserInfo,
) assignment.Submission {
	asg, ok := asgs[d.AssignmentID]
	if !ok {
		asg = assignment.AssignmentInfo{ID: d.AssignmentID.Hex()}
	}
	student, ok := students[d.StudentID]
	if !ok {
		student = assignment.UserInfo{ID: d.StudentID.Hex()}
	}
	return assignment.Submission{
		ID:          d.ID.Hex(),
		Assignment:  asg,
		Student:     student,
		Content:     d.Content,
		SubmittedAt: d.SubmittedAt,
		Marks:       d.Marks,
		Feedback:    d.Feedback,
		Status:      d.Status,
		Late:        d.Late,
	}
}

// fetchUserInfos expands account references at read time. Missing
// accounts are simply absent from the map.
func (repo assignmentRepository) fetchUserInfos(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]assignment.UserInfo, error) {
	infos := make(map[primitive.ObjectID]assignment.UserInfo, len(ids))
	if len(ids) == 0 {
		return infos, nil
	}
	cur, err := repo.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, errors.Wrap(err, "expanding user references")
	}
	var docs []userDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding user references")
	}
	for _, d := range docs {
		infos[d.ID] = assignment.UserInfo{
			ID:        d.ID.Hex(),
			Username:  d.Username,
			FullName:  d.FullName,
			StudentID: d.StudentID,
		}
	}
	return infos, nil
}

func (repo assignmentRepository) fetchAssignmentInfos(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]assignment.AssignmentInfo, error) {
	infos := make(map[primitive.ObjectID]assignment.AssignmentInfo, len(ids))
	if len(ids) == 0 {
		return infos, nil
	}
	cur, err := repo.assignments.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, errors.Wrap(err, "expanding assignment references")
	}
	var docs []assignmentDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding assignment references")
	}
	for _, d := range docs {
		infos[d.ID] = assignment.AssignmentInfo{
			ID:          d.ID.Hex(),
			Title:       d.Title,
			Description: d.Description,
			DueDate:     d.DueDate,
			TotalMarks:  d.TotalMarks,
			Published:   d.Published,
		}
	}
	return infos, nil
}

func (repo assignmentRepository) CreateAssignment(ctx context.Context, asg assignment.Assignment) (assignment.Assignment, error) {
	d, err := repo.doc(asg)
	if err != nil {
		return assignment.Assignment{}, err
	}
	d.ID = primitive.NewObjectID()
	if _, err := repo.assignments.InsertOne(ctx, d); err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	creators, err := repo.fetchUserInfos(ctx, []primitive.ObjectID{d.CreatedBy})
	if err != nil {
		return assignment.Assignment{}, err
	}
	return repo.undoc(d, creators), nil
}

func (repo assignmentRepository) QueryAssignments(ctx context.Context, publishedOnly bool) ([]assignment.Assignment, error) {
	filter := bson.M{}
	if publishedOnly {
		filter["published"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := repo.assignments.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	var docs []assignmentDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding assignments")
	}

	creatorIDs := make([]primitive.ObjectID, 0, len(docs))
	for _, d := range docs {
		creatorIDs = append(creatorIDs, d.CreatedBy)
	}
	creators, err := repo.fetchUserInfos(ctx, creatorIDs)
	if err != nil {
		return nil, err
	}

	asgs := make([]assignment.Assignment, 0, len(docs))
	for _, d := range docs {
		asgs = append(asgs, repo.undoc(d, creators))
	}
	return asgs, nil
}

func (repo assignmentRepository) GetAssignmentByID(ctx context.Context, id string) (assignment.Assignment, error) {
	o, err := oid(id, assignment.ErrInvalidID)
	if err != nil {
		return assignment.Assignment{}, err
	}
	var d assignmentDoc
	if err := repo.assignments.FindOne(ctx, bson.M{"_id": o}).Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return assignment.Assignment{}, assignment.ErrNotFound
		}
		return assignment.Assignment{}, errors.Wrap(err, "finding assignment by ID")
	}
	creators, err := repo.fetchUserInfos(ctx, []primitive.ObjectID{d.CreatedBy})
	if err != nil {
		return assignment.Assignment{}, err
	}
	return repo.undoc(d, creators), nil
}

func (repo assignmentRepository) UpdateAssignment(ctx context.Context, asg assignment.Assignment) (assignment.Assignment, error) {
	d, err := repo.doc(asg)
	if err != nil {
		return assignment.Assignment{}, err
	}
	res, err := repo.assignments.ReplaceOne(ctx, bson.M{"_id": d.ID}, d)
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	if res.MatchedCount == 0 {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	creators, err := repo.fetchUserInfos(ctx, []primitive.ObjectID{d.CreatedBy})
	if err != nil {
		return assignment.Assignment{}, err
	}
	return repo.undoc(d, creators), nil
}

func (repo assignmentRepository) DeleteAssignmentByID(ctx context.Context, id string) error {
	o, err := oid(id, assignment.ErrInvalidID)
	if err != nil {
		return err
	}
	res, err := repo.assignments.DeleteOne(ctx, bson.M{"_id": o})
	if err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	if res.DeletedCount == 0 {
		return assignment.ErrNotFound
	}
	// cascade: a submission never outlives its assignment
	if _, err = repo.submissions.DeleteMany(ctx, bson.M{"assignment_id": o}); err != nil {
		return errors.Wrap(err, "deleting submissions")
	}
	return nil
}

func (repo assignmentRepository) CreateSubmission(ctx context.Context, sub assignment.Submission) (assignment.Submission, error) {
	d, err := repo.subDoc(sub)
	if err != nil {
		return assignment.Submission{}, err
	}
	d.ID = primitive.NewObjectID()
	if _, err := repo.submissions.InsertOne(ctx, d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return assignment.Submission{}, assignment.ErrAlreadySubmitted
		}
		return assignment.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return repo.expandSubmissions(ctx, d)
}

func (repo assignmentRepository) GetSubmissionByID(ctx context.Context, id string) (assignment.Submission, error) {
	o, err := oid(id, assignment.ErrInvalidSubmissionID)
	if err != nil {
		return assignment.Submission{}, err
	}
	var d submissionDoc
	if err := repo.submissions.FindOne(ctx, bson.M{"_id": o}).Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return assignment.Submission{}, assignment.ErrSubmissionNotFound
		}
		return assignment.Submission{}, errors.Wrap(err, "finding submission by ID")
	}
	return repo.expandSubmissions(ctx, d)
}

func (repo assignmentRepository) QuerySubmissions(ctx context.Context, filter assignment.SubmissionFilter) ([]assignment.Submission, error) {
	q := bson.M{}
	if filter.AssignmentID != "" {
		o, err := oid(filter.AssignmentID, assignment.ErrInvalidID)
		if err != nil {
			return nil, err
		}
		q["assignment_id"] = o
	}
	if filter.StudentID != "" {
		o, err := oid(filter.StudentID, assignment.ErrInvalidSubmissionID)
		if err != nil {
			return nil, err
		}
		q["student_id"] = o
	}

	opts := options.Find().SetSort(bson.D{{Key: "submitted_at", Value: -1}})
	cur, err := repo.submissions.Find(ctx, q, opts)
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	var docs []submissionDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding submissions")
	}
	return repo.expandSubmissionSlice(ctx, docs)
}

func (repo assignmentRepository) UpdateSubmission(ctx context.Context, sub assignment.Submission) (assignment.Submission, error) {
	d, err := repo.subDoc(sub)
	if err != nil {
		return assignment.Submission{}, err
	}
	res, err := repo.submissions.ReplaceOne(ctx, bson.M{"_id": d.ID}, d)
	if err != nil {
		return assignment.Submission{}, errors.Wrap(err, "updating submission")
	}
	if res.MatchedCount == 0 {
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	return repo.expandSubmissions(ctx, d)
}

func (repo assignmentRepository) expandSubmissions(ctx context.Context, d submissionDoc) (assignment.Submission, error) {
	subs, err := repo.expandSubmissionSlice(ctx, []submissionDoc{d})
	if err != nil {
		return assignment.Submission{}, err
	}
	return subs[0], nil
}

func (repo assignmentRepository) expandSubmissionSlice(ctx context.Context, docs []submissionDoc) ([]assignment.Submission, error) {
	asgIDs := make([]primitive.ObjectID, 0, len(docs))
	studentIDs := make([]primitive.ObjectID, 0, len(docs))
	for _, d := range docs {
		asgIDs = append(asgIDs, d.AssignmentID)
		studentIDs = append(studentIDs, d.StudentID)
	}
	asgs, err := repo.fetchAssignmentInfos(ctx, asgIDs)
	if err != nil {
		return nil, err
	}
	students, err := repo.fetchUserInfos(ctx, studentIDs)
	if err != nil {
		return nil, err
	}

	subs := make([]assignment.Submission, 0, len(docs))
	for _, d := range docs {
		subs = append(subs, repo.subUndoc(d, asgs, students))
	}
	return subs, nil
}
