package repository

import (
	"context"
	"errors"
	"time"

	"leave_assessment_backend/internal/model"
	"leave_assessment_backend/internal/util"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const LeaveCollectionName = "leave_requests"

type MongoLeaveRepository struct {
	coll *mongo.Collection
}

func NewMongoLeaveRepository(db *mongo.Database) *MongoLeaveRepository {
	return &MongoLeaveRepository{coll: db.Collection(LeaveCollectionName)}
}

// EnsureIndexes 创建列表与时间重叠查询所需索引
func (r *MongoLeaveRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "studentId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "studentId", Value: 1}, {Key: "startDate", Value: 1}, {Key: "endDate", Value: 1}}},
	})
	return err
}

func (r *MongoLeaveRepository) Create(ctx context.Context, leave *model.LeaveRequest) error {
	now := time.Now()
	if leave.ID == "" {
		leave.ID = model.GenerateUUID()
	}
	leave.CreatedAt = now
	leave.UpdatedAt = now
	_, err := r.coll.InsertOne(ctx, leave)
	return err
}

func (r *MongoLeaveRepository) FindByID(ctx context.Context, id string) (*model.LeaveRequest, error) {
	var leave model.LeaveRequest
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&leave)
	switch {
	case err == nil:
		return &leave, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, util.ErrLeaveNotFound
	default:
		return nil, err
	}
}

func (r *MongoLeaveRepository) List(ctx context.Context, filter LeaveFilter) ([]model.LeaveRequest, int64, error) {
	query := bson.M{}
	if filter.StudentID > 0 {
		query["studentId"] = filter.StudentID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSort(bson.M{"createdAt": -1})
	if filter.Limit > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		opts.SetSkip(int64((page - 1) * filter.Limit)).SetLimit(int64(filter.Limit))
	}
	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	var leaves []model.LeaveRequest
	if err := cursor.All(ctx, &leaves); err != nil {
		return nil, 0, err
	}
	return leaves, total, nil
}

func (r *MongoLeaveRepository) FindActiveOverlapping(ctx context.Context, studentID uint, start, end time.Time) ([]model.LeaveRequest, error) {
	cursor, err := r.coll.Find(ctx, bson.M{
		"studentId": studentID,
		"status":    bson.M{"$in": []model.LeaveStatus{model.LeavePending, model.LeaveApproved}},
		"startDate": bson.M{"$lte": end},
		"endDate":   bson.M{"$gte": start},
	})
	if err != nil {
		return nil, err
	}
	var leaves []model.LeaveRequest
	if err := cursor.All(ctx, &leaves); err != nil {
		return nil, err
	}
	return leaves, nil
}

func (r *MongoLeaveRepository) UpdateReview(ctx context.Context, id string, status model.LeaveStatus, reviewer uint, remarks string, at time.Time) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "status": model.LeavePending},
		bson.M{"$set": bson.M{
			"status":         status,
			"reviewedBy":     reviewer,
			"teacherRemarks": remarks,
			"reviewedAt":     at,
			"updatedAt":      time.Now(),
		}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return r.missingOr(ctx, id, util.ErrLeaveAlreadyDecided)
	}
	return nil
}

func (r *MongoLeaveRepository) DeletePending(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "status": model.LeavePending})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return r.missingOr(ctx, id, util.ErrLeaveAlreadyDecided)
	}
	return nil
}

func (r *MongoLeaveRepository) MarkAssessmentRequired(ctx context.Context, id, section string, difficulty model.Difficulty) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "assessment.attempted": false},
		bson.M{"$set": bson.M{
			"assessment.required":   true,
			"assessment.section":    section,
			"assessment.difficulty": difficulty,
			"updatedAt":             time.Now(),
		}})
	return err
}

func (r *MongoLeaveRepository) AttachQuestions(ctx context.Context, id, section string, difficulty model.Difficulty, questions []model.Question) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "assessment.questionCount": 0, "assessment.attempted": false},
		bson.M{"$set": bson.M{
			"assessment.required":      true,
			"assessment.section":       section,
			"assessment.difficulty":    difficulty,
			"assessment.questions":     questions,
			"assessment.questionCount": len(questions),
			"updatedAt":                time.Now(),
		}})
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		return false, r.missingOr(ctx, id, nil)
	}
	return true, nil
}

func (r *MongoLeaveRepository) MarkSubmitted(ctx context.Context, id string, sub model.Submission) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "assessment.attempted": false},
		bson.M{"$set": bson.M{
			"assessment.attempted":        true,
			"assessment.submittedAnswers": sub.Answers,
			"assessment.codingResults":    sub.CodingResults,
			"assessment.score":            sub.Score,
			"assessment.passed":           sub.Passed,
			"assessment.earnedPoints":     sub.EarnedPoints,
			"assessment.totalPoints":      sub.TotalPoints,
			"assessment.passThreshold":    sub.PassThreshold,
			"assessment.startedAt":        sub.StartedAt,
			"assessment.submittedAt":      sub.SubmittedAt,
			"assessment.timeTakenSeconds": sub.TimeTakenSeconds,
			"updatedAt":                   time.Now(),
		}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return r.missingOr(ctx, id, util.ErrAlreadySubmitted)
	}
	return nil
}

func (r *MongoLeaveRepository) missingOr(ctx context.Context, id string, conflict error) error {
	count, err := r.coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if count == 0 {
		return util.ErrLeaveNotFound
	}
	return conflict
}
