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

const (
	QuizCollectionName    = "quizzes"
	AttemptCollectionName = "quiz_attempts"
)

type MongoQuizRepository struct {
	quizzes  *mongo.Collection
	attempts *mongo.Collection
}

func NewMongoQuizRepository(db *mongo.Database) *MongoQuizRepository {
	return &MongoQuizRepository{
		quizzes:  db.Collection(QuizCollectionName),
		attempts: db.Collection(AttemptCollectionName),
	}
}

// EnsureIndexes 唯一索引 {studentId, quizId} 保证每人只作答一次
func (r *MongoQuizRepository) EnsureIndexes(ctx context.Context) error {
	if _, err := r.quizzes.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "createdAt", Value: -1}}},
	}); err != nil {
		return err
	}
	_, err := r.attempts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "studentId", Value: 1}, {Key: "quizId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "studentId", Value: 1}, {Key: "submittedAt", Value: -1}}},
	})
	return err
}

func (r *MongoQuizRepository) CreateQuiz(ctx context.Context, quiz *model.Quiz) error {
	now := time.Now()
	if quiz.ID == "" {
		quiz.ID = model.GenerateUUID()
	}
	quiz.CreatedAt = now
	quiz.UpdatedAt = now
	_, err := r.quizzes.InsertOne(ctx, quiz)
	return err
}

func (r *MongoQuizRepository) FindQuiz(ctx context.Context, id string) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.quizzes.FindOne(ctx, bson.M{"_id": id}).Decode(&quiz)
	switch {
	case err == nil:
		return &quiz, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, util.ErrQuizNotFound
	default:
		return nil, err
	}
}

func (r *MongoQuizRepository) ListQuizzes(ctx context.Context, activeOnly bool) ([]model.Quiz, error) {
	query := bson.M{}
	if activeOnly {
		query["isActive"] = true
	}
	cursor, err := r.quizzes.Find(ctx, query, options.Find().SetSort(bson.M{"createdAt": -1}))
	if err != nil {
		return nil, err
	}
	var quizzes []model.Quiz
	if err := cursor.All(ctx, &quizzes); err != nil {
		return nil, err
	}
	return quizzes, nil
}

func (r *MongoQuizRepository) UpdateQuiz(ctx context.Context, quiz *model.Quiz) error {
	res, err := r.quizzes.UpdateOne(ctx,
		bson.M{"_id": quiz.ID},
		bson.M{"$set": bson.M{
			"title":        quiz.Title,
			"description":  quiz.Description,
			"category":     quiz.Category,
			"class":        quiz.ClassName,
			"subject":      quiz.Subject,
			"difficulty":   quiz.Difficulty,
			"questions":    quiz.Questions,
			"duration":     quiz.DurationMinutes,
			"passingScore": quiz.PassingScore,
			"isActive":     quiz.IsActive,
			"updatedAt":    time.Now(),
		}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return util.ErrQuizNotFound
	}
	return nil
}

func (r *MongoQuizRepository) DeleteQuiz(ctx context.Context, id string) error {
	res, err := r.quizzes.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return util.ErrQuizNotFound
	}
	_, err = r.attempts.DeleteMany(ctx, bson.M{"quizId": id})
	return err
}

func (r *MongoQuizRepository) CreateAttempt(ctx context.Context, attempt *model.QuizAttempt) error {
	now := time.Now()
	if attempt.ID == "" {
		attempt.ID = model.GenerateUUID()
	}
	attempt.CreatedAt = now
	attempt.UpdatedAt = now
	_, err := r.attempts.InsertOne(ctx, attempt)
	if mongo.IsDuplicateKeyError(err) {
		return util.ErrQuizAlreadyAttempted
	}
	return err
}

func (r *MongoQuizRepository) FindAttempt(ctx context.Context, studentID uint, quizID string) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := r.attempts.FindOne(ctx, bson.M{"studentId": studentID, "quizId": quizID}).Decode(&attempt)
	switch {
	case err == nil:
		return &attempt, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, util.ErrQuizNotAttempted
	default:
		return nil, err
	}
}

func (r *MongoQuizRepository) ListAttemptsByStudent(ctx context.Context, studentID uint) ([]model.QuizAttempt, error) {
	cursor, err := r.attempts.Find(ctx, bson.M{"studentId": studentID}, options.Find().SetSort(bson.M{"submittedAt": -1}))
	if err != nil {
		return nil, err
	}
	var attempts []model.QuizAttempt
	if err := cursor.All(ctx, &attempts); err != nil {
		return nil, err
	}
	return attempts, nil
}

func (r *MongoQuizRepository) SummarizeByQuiz(ctx context.Context, quizIDs []string) (map[string]QuizSummary, error) {
	out := make(map[string]QuizSummary, len(quizIDs))
	if len(quizIDs) == 0 {
		return out, nil
	}
	cursor, err := r.attempts.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"quizId": bson.M{"$in": quizIDs}}}},
		{{Key: "$group", Value: bson.M{
			"_id":          "$quizId",
			"attemptCount": bson.M{"$sum": 1},
			"averageScore": bson.M{"$avg": "$percentage"},
		}}},
	})
	if err != nil {
		return nil, err
	}
	var rows []struct {
		QuizID       string  `bson:"_id"`
		AttemptCount int64   `bson:"attemptCount"`
		AverageScore float64 `bson:"averageScore"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.QuizID] = QuizSummary{QuizID: row.QuizID, AttemptCount: row.AttemptCount, AverageScore: row.AverageScore}
	}
	return out, nil
}
