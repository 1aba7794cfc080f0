package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"quizhub_backend/internal/model"
	"quizhub_backend/internal/util"
)

type ReportRow struct {
	AttemptID   string              `json:"attemptId"`
	UserID      string              `json:"userId"`
	FullName    string              `json:"fullName"`
	Email       string              `json:"email"`
	AttemptNo   int                 `json:"attemptNo"`
	Status      model.AttemptStatus `json:"status"`
	Score       int                 `json:"score"`
	TimeSpentMs int64               `json:"timeSpentMs"`
	StartedAt   time.Time           `json:"startedAt"`
	FinishedAt  *time.Time          `json:"finishedAt,omitempty"`
	AutoGraded  bool                `json:"autoGraded"`
}

type ReportStats struct {
	Attempts     int     `json:"attempts"`
	Completed    int     `json:"completed"`
	InProgress   int     `json:"inProgress"`
	Participants int     `json:"participants"`
	AverageScore float64 `json:"averageScore"`
	HighestScore int     `json:"highestScore"`
	LowestScore  int     `json:"lowestScore"`
}

type QuizReport struct {
	QuizID     string        `json:"quizId"`
	Title      string        `json:"quizName"`
	TotalMarks int           `json:"totalMarks"`
	Status     RuntimeStatus `json:"status"`
	Stats      ReportStats   `json:"stats"`
	Rows       []ReportRow   `json:"attempts"`
}

// QuizReport 所有者查看测验的全部尝试
func (s *QuizService) QuizReport(ctx context.Context, actor Actor, quizID string) (*QuizReport, error) {
	quiz, err := s.loadManaged(ctx, actor, quizID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.Attempts.ListByQuiz(ctx, quiz.ID)
	if err != nil {
		return nil, util.StorageFailure("list attempts", err)
	}

	userIDs := make([]string, 0, len(attempts))
	seen := map[string]bool{}
	for _, a := range attempts {
		if !seen[a.UserID] {
			seen[a.UserID] = true
			userIDs = append(userIDs, a.UserID)
		}
	}
	users := map[string]model.User{}
	if s.Users != nil {
		users, err = s.Users.FindByIDs(ctx, userIDs)
		if err != nil {
			return nil, util.StorageFailure("load users", err)
		}
	}

	report := &QuizReport{
		QuizID:     quiz.ID,
		Title:      quiz.Title,
		TotalMarks: quiz.TotalMarks(),
		Status:     ResolveRuntimeStatus(quiz, false, s.Clock.Now()),
		Rows:       make([]ReportRow, 0, len(attempts)),
	}
	report.Stats.Participants = len(userIDs)

	total := 0
	for _, a := range attempts {
		u := users[a.UserID]
		report.Rows = append(report.Rows, ReportRow{
			AttemptID:   a.ID,
			UserID:      a.UserID,
			FullName:    u.FullName,
			Email:       u.Email,
			AttemptNo:   a.AttemptNo,
			Status:      a.Status,
			Score:       a.Score,
			TimeSpentMs: a.TimeSpentMs,
			StartedAt:   a.StartedAt,
			FinishedAt:  a.FinishedAt,
			AutoGraded:  a.AutoGraded,
		})

		report.Stats.Attempts++
		if !a.IsCompleted() {
			report.Stats.InProgress++
			continue
		}
		if report.Stats.Completed == 0 || a.Score > report.Stats.HighestScore {
			report.Stats.HighestScore = a.Score
		}
		if report.Stats.Completed == 0 || a.Score < report.Stats.LowestScore {
			report.Stats.LowestScore = a.Score
		}
		report.Stats.Completed++
		total += a.Score
	}
	if report.Stats.Completed > 0 {
		report.Stats.AverageScore = float64(total) / float64(report.Stats.Completed)
	}
	return report, nil
}

func (r *QuizReport) CSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"attempt_id", "user_id", "full_name", "email", "attempt_no", "status",
		"score", "total_marks", "time_spent_ms", "started_at", "finished_at"})
	for _, row := range r.Rows {
		finished := ""
		if row.FinishedAt != nil {
			finished = row.FinishedAt.UTC().Format(time.RFC3339)
		}
		_ = w.Write([]string{
			row.AttemptID,
			row.UserID,
			row.FullName,
			row.Email,
			strconv.Itoa(row.AttemptNo),
			string(row.Status),
			strconv.Itoa(row.Score),
			strconv.Itoa(r.TotalMarks),
			strconv.FormatInt(row.TimeSpentMs, 10),
			row.StartedAt.UTC().Format(time.RFC3339),
			finished,
		})
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportReport renders the report as CSV and stores it, returning a download URL.
func (s *QuizService) ExportReport(ctx context.Context, actor Actor, quizID string) (string, error) {
	report, err := s.QuizReport(ctx, actor, quizID)
	if err != nil {
		return "", err
	}
	if s.Storage == nil {
		return "", util.NewError(util.KindStorageFailure, "report storage is not configured")
	}
	data, err := report.CSV()
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("reports/%s/%s.csv", report.QuizID, s.Clock.Now().UTC().Format("20060102T150405Z"))
	url, err := s.Storage.Put(ctx, key, data, util.MimeCSV)
	if err != nil {
		return "", util.StorageFailure("upload report", err)
	}
	return url, nil
}
