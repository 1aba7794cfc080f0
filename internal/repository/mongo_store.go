package repository

import (
	"context"
	"errors"
	"time"

	"quizhub_backend/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	quizCollection    = "quizzes"
	attemptCollection = "attempts"
)

type questionDoc struct {
	ID            string      `bson:"id"`
	Position      int         `bson:"position"`
	Text          string      `bson:"questionText"`
	Type          string      `bson:"questionType"`
	Marks         int         `bson:"marks"`
	Options       []string    `bson:"options"`
	CorrectAnswer interface{} `bson:"correctAnswer"`
}

type quizDoc struct {
	ID              string        `bson:"_id"`
	OwnerID         string        `bson:"createdBy"`
	SubjectID       string        `bson:"subjectId"`
	Title           string        `bson:"quizName"`
	Description     string        `bson:"description"`
	AttemptType     string        `bson:"attemptType"`
	MaxAttempts     int           `bson:"maxAttempts"`
	StartTime       time.Time     `bson:"startTime"`
	EndTime         time.Time     `bson:"endTime"`
	DurationMinutes int           `bson:"durationMinutes"`
	AssignedTo      []string      `bson:"assignedTo"`
	AttemptCount    int64         `bson:"attemptCount"`
	CompletedCount  int64         `bson:"completedCount"`
	Questions       []questionDoc `bson:"questions"`
	CreatedAt       time.Time     `bson:"createdAt"`
	UpdatedAt       time.Time     `bson:"updatedAt"`
}

type answerDoc struct {
	QuestionID    string      `bson:"questionId"`
	Selected      interface{} `bson:"selected"`
	TimeSpentMs   int64       `bson:"timeSpentMs"`
	IsCorrect     bool        `bson:"isCorrect"`
	MarksObtained int         `bson:"marksObtained"`
}

type attemptDoc struct {
	ID          string      `bson:"_id"`
	QuizID      string      `bson:"quizId"`
	UserID      string      `bson:"userId"`
	AttemptNo   int         `bson:"attemptNo"`
	Status      string      `bson:"status"`
	Score       int         `bson:"score"`
	TimeSpentMs int64       `bson:"timeSpentMs"`
	StartedAt   time.Time   `bson:"startedAt"`
	FinishedAt  *time.Time  `bson:"finishedAt,omitempty"`
	GradedAt    *time.Time  `bson:"gradedAt,omitempty"`
	Answers     []answerDoc `bson:"answers"`
	UserAgent   string      `bson:"userAgent"`
	IP          string      `bson:"ip"`
	AutoGraded  bool        `bson:"autoGraded"`
	GradedBy    *string     `bson:"gradedBy,omitempty"`
	CreatedAt   time.Time   `bson:"createdAt"`
	UpdatedAt   time.Time   `bson:"updatedAt"`
}

func toQuestionDocs(questions []model.Question) []questionDoc {
	docs := make([]questionDoc, 0, len(questions))
	for _, q := range questions {
		docs = append(docs, questionDoc{
			ID:            q.ID,
			Position:      q.Position,
			Text:          q.Text,
			Type:          string(q.Type),
			Marks:         q.Marks,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer.Raw(),
		})
	}
	return docs
}

func toQuizDoc(q *model.Quiz) quizDoc {
	return quizDoc{
		ID:              q.ID,
		OwnerID:         q.OwnerID,
		SubjectID:       q.SubjectID,
		Title:           q.Title,
		Description:     q.Description,
		AttemptType:     string(q.AttemptType),
		MaxAttempts:     q.MaxAttempts,
		StartTime:       q.StartTime,
		EndTime:         q.EndTime,
		DurationMinutes: q.DurationMinutes,
		AssignedTo:      q.AssignedTo,
		AttemptCount:    q.AttemptCount,
		CompletedCount:  q.CompletedCount,
		Questions:       toQuestionDocs(q.Questions),
		CreatedAt:       q.CreatedAt,
		UpdatedAt:       q.UpdatedAt,
	}
}

func (d quizDoc) model() model.Quiz {
	q := model.Quiz{
		OwnerID:         d.OwnerID,
		SubjectID:       d.SubjectID,
		Title:           d.Title,
		Description:     d.Description,
		AttemptType:     model.AttemptType(d.AttemptType),
		MaxAttempts:     d.MaxAttempts,
		StartTime:       d.StartTime,
		EndTime:         d.EndTime,
		DurationMinutes: d.DurationMinutes,
		AssignedTo:      d.AssignedTo,
		AttemptCount:    d.AttemptCount,
		CompletedCount:  d.CompletedCount,
	}
	q.ID = d.ID
	q.CreatedAt = d.CreatedAt
	q.UpdatedAt = d.UpdatedAt
	for _, qd := range d.Questions {
		question := model.Question{
			QuizID:        d.ID,
			Position:      qd.Position,
			Text:          qd.Text,
			Type:          model.QuestionType(qd.Type),
			Marks:         qd.Marks,
			Options:       qd.Options,
			CorrectAnswer: model.SelectionFromRaw(qd.CorrectAnswer),
		}
		question.ID = qd.ID
		q.Questions = append(q.Questions, question)
	}
	return q
}

func toAnswerDocs(answers []model.AnswerRecord) []answerDoc {
	docs := make([]answerDoc, 0, len(answers))
	for _, a := range answers {
		docs = append(docs, answerDoc{
			QuestionID:    a.QuestionID,
			Selected:      a.Selected.Raw(),
			TimeSpentMs:   a.TimeSpentMs,
			IsCorrect:     a.IsCorrect,
			MarksObtained: a.MarksObtained,
		})
	}
	return docs
}

func toAttemptDoc(a *model.Attempt) attemptDoc {
	return attemptDoc{
		ID:          a.ID,
		QuizID:      a.QuizID,
		UserID:      a.UserID,
		AttemptNo:   a.AttemptNo,
		Status:      string(a.Status),
		Score:       a.Score,
		TimeSpentMs: a.TimeSpentMs,
		StartedAt:   a.StartedAt,
		FinishedAt:  a.FinishedAt,
		GradedAt:    a.GradedAt,
		Answers:     toAnswerDocs(a.Answers),
		UserAgent:   a.UserAgent,
		IP:          a.IP,
		AutoGraded:  a.AutoGraded,
		GradedBy:    a.GradedBy,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func (d attemptDoc) model() model.Attempt {
	a := model.Attempt{
		QuizID:      d.QuizID,
		UserID:      d.UserID,
		AttemptNo:   d.AttemptNo,
		Status:      model.AttemptStatus(d.Status),
		Score:       d.Score,
		TimeSpentMs: d.TimeSpentMs,
		StartedAt:   d.StartedAt,
		FinishedAt:  d.FinishedAt,
		GradedAt:    d.GradedAt,
		UserAgent:   d.UserAgent,
		IP:          d.IP,
		AutoGraded:  d.AutoGraded,
		GradedBy:    d.GradedBy,
	}
	a.ID = d.ID
	a.CreatedAt = d.CreatedAt
	a.UpdatedAt = d.UpdatedAt
	for _, ad := range d.Answers {
		a.Answers = append(a.Answers, model.AnswerRecord{
			QuestionID:    ad.QuestionID,
			Selected:      model.SelectionFromRaw(ad.Selected),
			TimeSpentMs:   ad.TimeSpentMs,
			IsCorrect:     ad.IsCorrect,
			MarksObtained: ad.MarksObtained,
		})
	}
	return a
}

// EnsureMongoIndexes 创建尝试槽位唯一索引，InsertIfAbsent 依赖该索引
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(attemptCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "quizId", Value: 1}, {Key: "userId", Value: 1}, {Key: "attemptNo", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_attempt_slot"),
		},
		{Keys: bson.D{{Key: "userId", Value: 1}}},
	})
	if err != nil {
		return err
	}
	_, err = db.Collection(quizCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdBy", Value: 1}}},
		{Keys: bson.D{{Key: "endTime", Value: 1}}},
	})
	return err
}

type MongoQuizStore struct {
	Col *mongo.Collection
}

func NewMongoQuizStore(db *mongo.Database) *MongoQuizStore {
	return &MongoQuizStore{Col: db.Collection(quizCollection)}
}

func (r *MongoQuizStore) Create(ctx context.Context, quiz *model.Quiz) error {
	now := time.Now()
	if quiz.ID == "" {
		quiz.ID = model.GenerateUUID()
	}
	for i := range quiz.Questions {
		if quiz.Questions[i].ID == "" {
			quiz.Questions[i].ID = model.GenerateUUID()
		}
		quiz.Questions[i].QuizID = quiz.ID
	}
	quiz.CreatedAt, quiz.UpdatedAt = now, now
	_, err := r.Col.InsertOne(ctx, toQuizDoc(quiz))
	return err
}

func (r *MongoQuizStore) Update(ctx context.Context, quiz *model.Quiz, replaceQuestions bool) error {
	set := bson.M{
		"subjectId":       quiz.SubjectID,
		"quizName":        quiz.Title,
		"description":     quiz.Description,
		"attemptType":     string(quiz.AttemptType),
		"maxAttempts":     quiz.MaxAttempts,
		"startTime":       quiz.StartTime,
		"endTime":         quiz.EndTime,
		"durationMinutes": quiz.DurationMinutes,
		"assignedTo":      quiz.AssignedTo,
		"updatedAt":       time.Now(),
	}
	if replaceQuestions {
		for i := range quiz.Questions {
			if quiz.Questions[i].ID == "" {
				quiz.Questions[i].ID = model.GenerateUUID()
			}
			quiz.Questions[i].QuizID = quiz.ID
		}
		set["questions"] = toQuestionDocs(quiz.Questions)
	}
	res, err := r.Col.UpdateOne(ctx, bson.M{"_id": quiz.ID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoQuizStore) Delete(ctx context.Context, id string) error {
	res, err := r.Col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoQuizStore) FindByID(ctx context.Context, id string) (*model.Quiz, error) {
	var doc quizDoc
	err := r.Col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	quiz := doc.model()
	return &quiz, nil
}

func (r *MongoQuizStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]model.Quiz, error) {
	cur, err := r.Col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var quizzes []model.Quiz
	for cur.Next(ctx) {
		var doc quizDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		quizzes = append(quizzes, doc.model())
	}
	return quizzes, cur.Err()
}

func (r *MongoQuizStore) ListByOwner(ctx context.Context, ownerID string) ([]model.Quiz, error) {
	return r.find(ctx, bson.M{"createdBy": ownerID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (r *MongoQuizStore) ListAll(ctx context.Context) ([]model.Quiz, error) {
	return r.find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "startTime", Value: -1}}))
}

func (r *MongoQuizStore) ListEndedIDs(ctx context.Context, before time.Time) ([]string, error) {
	quizzes, err := r.find(ctx, bson.M{"endTime": bson.M{"$lt": before}},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(quizzes))
	for _, q := range quizzes {
		ids = append(ids, q.ID)
	}
	return ids, nil
}

func (r *MongoQuizStore) IncrementAttemptCount(ctx context.Context, id string) error {
	_, err := r.Col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"attemptCount": 1}})
	return err
}

func (r *MongoQuizStore) IncrementCompletedCount(ctx context.Context, id string) error {
	_, err := r.Col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"completedCount": 1}})
	return err
}

type MongoAttemptStore struct {
	Col *mongo.Collection
}

func NewMongoAttemptStore(db *mongo.Database) *MongoAttemptStore {
	return &MongoAttemptStore{Col: db.Collection(attemptCollection)}
}

func slotFilter(a *model.Attempt) bson.M {
	return bson.M{"quizId": a.QuizID, "userId": a.UserID, "attemptNo": a.AttemptNo}
}

func (r *MongoAttemptStore) InsertIfAbsent(ctx context.Context, attempt *model.Attempt) (*model.Attempt, bool, error) {
	now := time.Now()
	if attempt.ID == "" {
		attempt.ID = model.GenerateUUID()
	}
	attempt.CreatedAt, attempt.UpdatedAt = now, now

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.Before)
	update := bson.M{"$setOnInsert": toAttemptDoc(attempt)}

	// 并发 upsert 可能在唯一索引上冲突一次，重试即可读到赢家
	for try := 0; try < 2; try++ {
		var existing attemptDoc
		err := r.Col.FindOneAndUpdate(ctx, slotFilter(attempt), update, opts).Decode(&existing)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return attempt, true, nil
		}
		if mongo.IsDuplicateKeyError(err) {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		stored := existing.model()
		return &stored, false, nil
	}

	var existing attemptDoc
	if err := r.Col.FindOne(ctx, slotFilter(attempt)).Decode(&existing); err != nil {
		return nil, false, err
	}
	stored := existing.model()
	return &stored, false, nil
}

func (r *MongoAttemptStore) FindByID(ctx context.Context, id string) (*model.Attempt, error) {
	var doc attemptDoc
	err := r.Col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a := doc.model()
	return &a, nil
}

func (r *MongoAttemptStore) CountByQuizAndUser(ctx context.Context, quizID, userID string) (int64, error) {
	return r.Col.CountDocuments(ctx, bson.M{"quizId": quizID, "userId": userID})
}

func (r *MongoAttemptStore) MaxAttemptNo(ctx context.Context, quizID, userID string) (int, error) {
	var doc attemptDoc
	opts := options.FindOne().SetSort(bson.D{{Key: "attemptNo", Value: -1}})
	err := r.Col.FindOne(ctx, bson.M{"quizId": quizID, "userId": userID}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return doc.AttemptNo, nil
}

func (r *MongoAttemptStore) FindInProgress(ctx context.Context, quizID, userID string) (*model.Attempt, error) {
	var doc attemptDoc
	opts := options.FindOne().SetSort(bson.D{{Key: "attemptNo", Value: 1}})
	filter := bson.M{"quizId": quizID, "userId": userID, "status": string(model.AttemptStatusInProgress)}
	err := r.Col.FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a := doc.model()
	return &a, nil
}

func (r *MongoAttemptStore) CompleteIfInProgress(ctx context.Context, attempt *model.Attempt) (bool, error) {
	res, err := r.Col.UpdateOne(ctx,
		bson.M{"_id": attempt.ID, "status": string(model.AttemptStatusInProgress)},
		bson.M{"$set": bson.M{
			"status":      string(model.AttemptStatusCompleted),
			"score":       attempt.Score,
			"timeSpentMs": attempt.TimeSpentMs,
			"answers":     toAnswerDocs(attempt.Answers),
			"finishedAt":  attempt.FinishedAt,
			"gradedAt":    attempt.GradedAt,
			"autoGraded":  attempt.AutoGraded,
			"gradedBy":    attempt.GradedBy,
			"updatedAt":   time.Now(),
		}})
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (r *MongoAttemptStore) UpdateGrade(ctx context.Context, attempt *model.Attempt) (bool, error) {
	res, err := r.Col.UpdateOne(ctx,
		bson.M{"_id": attempt.ID, "status": string(model.AttemptStatusCompleted)},
		bson.M{"$set": bson.M{
			"score":      attempt.Score,
			"answers":    toAnswerDocs(attempt.Answers),
			"gradedAt":   attempt.GradedAt,
			"autoGraded": attempt.AutoGraded,
			"gradedBy":   attempt.GradedBy,
			"updatedAt":  time.Now(),
		}})
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (r *MongoAttemptStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]model.Attempt, error) {
	cur, err := r.Col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var attempts []model.Attempt
	for cur.Next(ctx) {
		var doc attemptDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		attempts = append(attempts, doc.model())
	}
	return attempts, cur.Err()
}

func (r *MongoAttemptStore) ListByQuizAndUser(ctx context.Context, quizID, userID string) ([]model.Attempt, error) {
	return r.find(ctx, bson.M{"quizId": quizID, "userId": userID},
		options.Find().SetSort(bson.D{{Key: "attemptNo", Value: 1}}))
}

func (r *MongoAttemptStore) ListByQuiz(ctx context.Context, quizID string) ([]model.Attempt, error) {
	return r.find(ctx, bson.M{"quizId": quizID},
		options.Find().SetSort(bson.D{{Key: "startedAt", Value: 1}}))
}

func (r *MongoAttemptStore) SummariesForUser(ctx context.Context, userID string) (map[string]model.AttemptSummary, error) {
	completed := bson.M{"$eq": bson.A{"$status", string(model.AttemptStatusCompleted)}}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"userId": userID}}},
		{{Key: "$group", Value: bson.M{
			"_id":       "$quizId",
			"total":     bson.M{"$sum": 1},
			"completed": bson.M{"$sum": bson.M{"$cond": bson.A{completed, 1, 0}}},
			"bestScore": bson.M{"$max": bson.M{"$cond": bson.A{completed, "$score", nil}}},
		}}},
	}

	cur, err := r.Col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	summaries := make(map[string]model.AttemptSummary)
	for cur.Next(ctx) {
		var row struct {
			QuizID    string `bson:"_id"`
			Total     int    `bson:"total"`
			Completed int    `bson:"completed"`
			BestScore *int   `bson:"bestScore"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		summaries[row.QuizID] = model.AttemptSummary{
			QuizID:    row.QuizID,
			Total:     row.Total,
			Completed: row.Completed,
			BestScore: row.BestScore,
		}
	}
	return summaries, cur.Err()
}

func (r *MongoAttemptStore) CountInProgress(ctx context.Context, quizIDs []string) (int64, error) {
	if len(quizIDs) == 0 {
		return 0, nil
	}
	return r.Col.CountDocuments(ctx, bson.M{
		"quizId": bson.M{"$in": quizIDs},
		"status": string(model.AttemptStatusInProgress),
	})
}

func (r *MongoAttemptStore) DeleteByQuiz(ctx context.Context, quizID string) error {
	_, err := r.Col.DeleteMany(ctx, bson.M{"quizId": quizID})
	return err
}
