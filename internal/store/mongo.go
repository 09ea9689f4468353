package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"studyai-platform/models"
	"studyai-platform/services"
)

// MongoStore implements services.Store on MongoDB
type MongoStore struct {
	documents *mongo.Collection
	concepts  *mongo.Collection
	quizzes   *mongo.Collection
	plans     *mongo.Collection
	events    *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		documents: db.Collection("documents"),
		concepts:  db.Collection("concepts"),
		quizzes:   db.Collection("quizzes"),
		plans:     db.Collection("revision_plans"),
		events:    db.Collection("learning_events"),
	}
}

// caseInsensitive matches strings ignoring case and diacritics sensitivity
// above the secondary level, used for name-scoped concept identity
var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

// Documents

func (s *MongoStore) CreateDocument(ctx context.Context, doc *models.StudyDocument) error {
	_, err := s.documents.InsertOne(ctx, doc)
	return err
}

func (s *MongoStore) GetDocument(ctx context.Context, userID, id string) (*models.StudyDocument, error) {
	var doc models.StudyDocument
	err := s.documents.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, services.ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *MongoStore) FindDocumentByHash(ctx context.Context, userID, hash string) (*models.StudyDocument, error) {
	var doc models.StudyDocument
	err := s.documents.FindOne(ctx, bson.M{"user_id": userID, "file_hash": hash}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *MongoStore) ListDocuments(ctx context.Context, userID string) ([]models.StudyDocument, error) {
	cursor, err := s.documents.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []models.StudyDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *MongoStore) UpdateDocumentStatus(ctx context.Context, id, status, errorMessage string) error {
	update := bson.M{
		"status":     status,
		"updated_at": time.Now(),
	}
	if errorMessage != "" {
		update["error_message"] = errorMessage
	}

	res, err := s.documents.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": update})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return services.ErrDocumentNotFound
	}
	return nil
}

func (s *MongoStore) SetDocumentResults(ctx context.Context, id, summary string, connections []models.Connection, chunkCount int) error {
	res, err := s.documents.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"summary":     summary,
			"connections": connections,
			"chunk_count": chunkCount,
			"updated_at":  time.Now(),
		},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return services.ErrDocumentNotFound
	}
	return nil
}

func (s *MongoStore) DeleteDocument(ctx context.Context, userID, id string) error {
	res, err := s.documents.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return services.ErrDocumentNotFound
	}
	return nil
}

// Concepts

func (s *MongoStore) InsertConcepts(ctx context.Context, concepts []models.Concept) error {
	if len(concepts) == 0 {
		return nil
	}
	docs := make([]interface{}, len(concepts))
	for i, c := range concepts {
		docs[i] = c
	}
	_, err := s.concepts.InsertMany(ctx, docs)
	return err
}

func (s *MongoStore) GetConcept(ctx context.Context, userID, id string) (*models.Concept, error) {
	var concept models.Concept
	err := s.concepts.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&concept)
	if err == mongo.ErrNoDocuments {
		return nil, services.ErrConceptNotFound
	}
	if err != nil {
		return nil, err
	}
	return &concept, nil
}

func (s *MongoStore) ListConceptsByUser(ctx context.Context, userID string) ([]models.Concept, error) {
	return s.listConcepts(ctx, bson.M{"user_id": userID})
}

func (s *MongoStore) ListConceptsByDocument(ctx context.Context, userID, documentID string) ([]models.Concept, error) {
	return s.listConcepts(ctx, bson.M{"user_id": userID, "document_id": documentID})
}

func (s *MongoStore) listConcepts(ctx context.Context, filter bson.M) ([]models.Concept, error) {
	cursor, err := s.concepts.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var concepts []models.Concept
	if err := cursor.All(ctx, &concepts); err != nil {
		return nil, err
	}
	return concepts, nil
}

func (s *MongoStore) DeleteConceptsByDocument(ctx context.Context, userID, documentID string) (int64, error) {
	res, err := s.concepts.DeleteMany(ctx, bson.M{"user_id": userID, "document_id": documentID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// BroadcastReview updates every concept record for the owner whose name
// matches case-insensitively, in a single UpdateMany so the multi-record
// update is applied as one statement or not at all.
func (s *MongoStore) BroadcastReview(ctx context.Context, userID, name string, update services.ReviewUpdate) (int64, error) {
	res, err := s.concepts.UpdateMany(ctx,
		bson.M{"user_id": userID, "name": name},
		bson.M{
			"$set": bson.M{
				"mastery_score":    update.MasteryScore,
				"easiness_factor":  update.EasinessFactor,
				"repetition_count": update.RepetitionCount,
				"interval_days":    update.IntervalDays,
				"next_review":      update.NextReview,
				"updated_at":       time.Now(),
			},
		},
		options.Update().SetCollation(caseInsensitive),
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Quizzes

func (s *MongoStore) SaveQuiz(ctx context.Context, quiz *models.Quiz) error {
	_, err := s.quizzes.InsertOne(ctx, quiz)
	return err
}

func (s *MongoStore) GetQuiz(ctx context.Context, userID, id string) (*models.Quiz, error) {
	var quiz models.Quiz
	err := s.quizzes.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&quiz)
	if err == mongo.ErrNoDocuments {
		return nil, services.ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (s *MongoStore) ListQuizzes(ctx context.Context, userID string) ([]models.Quiz, error) {
	cursor, err := s.quizzes.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var quizzes []models.Quiz
	if err := cursor.All(ctx, &quizzes); err != nil {
		return nil, err
	}
	return quizzes, nil
}

func (s *MongoStore) RecordQuizSubmission(ctx context.Context, quizID string, score float64, answers []models.QuizAnswer) error {
	now := time.Now()
	_, err := s.quizzes.UpdateOne(ctx, bson.M{"_id": quizID}, bson.M{
		"$set": bson.M{
			"score":    score,
			"answers":  answers,
			"taken_at": now,
		},
	})
	return err
}

// Revision plans

func (s *MongoStore) UpsertRevisionPlan(ctx context.Context, plan *models.RevisionPlan) error {
	// One active plan per user, replaced wholesale on regeneration
	_, err := s.plans.ReplaceOne(ctx,
		bson.M{"user_id": plan.UserID},
		plan,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (s *MongoStore) GetRevisionPlan(ctx context.Context, userID string) (*models.RevisionPlan, error) {
	var plan models.RevisionPlan
	err := s.plans.FindOne(ctx, bson.M{"user_id": userID}).Decode(&plan)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// Learning events

func (s *MongoStore) InsertEvent(ctx context.Context, event *models.LearningEvent) error {
	_, err := s.events.InsertOne(ctx, event)
	return err
}

func (s *MongoStore) ListEvents(ctx context.Context, userID string, limit int) ([]models.LearningEvent, error) {
	cursor, err := s.events.Find(ctx, bson.M{"user_id": userID},
		options.Find().
			SetSort(bson.D{{Key: "timestamp", Value: -1}}).
			SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []models.LearningEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *MongoStore) ListUsersWithDueConcepts(ctx context.Context, before time.Time) ([]string, error) {
	raw, err := s.concepts.Distinct(ctx, "user_id", bson.M{"next_review": bson.M{"$lte": before}})
	if err != nil {
		return nil, err
	}

	users := make([]string, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(string); ok {
			users = append(users, id)
		}
	}
	return users, nil
}

func (s *MongoStore) MarkStaleProcessing(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.documents.UpdateMany(ctx, bson.M{
		"status":     models.StatusProcessing,
		"updated_at": bson.M{"$lt": olderThan},
	}, bson.M{
		"$set": bson.M{
			"status":        models.StatusError,
			"error_message": "processing interrupted",
			"updated_at":    time.Now(),
		},
	})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

var _ services.Store = (*MongoStore)(nil)
