package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/learnhub/learnhub-backend/internal/peer"
	"github.com/learnhub/learnhub-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// fakeTx runs fn directly; the in-memory stores are not transactional.
type fakeTx struct{ calls int }

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

// ─── Attempt stores ────────────────────────────────────────────────────

type memUserQuizzes struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*model.UserQuiz
}

func newMemUserQuizzes() *memUserQuizzes {
	return &memUserQuizzes{rows: make(map[int64]*model.UserQuiz)}
}

func (m *memUserQuizzes) find(userID, quizID int64) *model.UserQuiz {
	for _, uq := range m.rows {
		if uq.UserID == userID && uq.QuizID == quizID {
			return uq
		}
	}
	return nil
}

func (m *memUserQuizzes) Create(_ context.Context, userID, quizID int64) (*model.UserQuiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.find(userID, quizID) != nil {
		return nil, repository.ErrUserQuizExists
	}
	m.nextID++
	now := time.Now()
	uq := &model.UserQuiz{
		ID: m.nextID, UserID: userID, QuizID: quizID, AttemptCount: 1,
		Status: model.UserQuizStatusInProgress, FirstAttemptAt: &now, LastAttemptAt: &now,
	}
	m.rows[uq.ID] = uq
	cp := *uq
	return &cp, nil
}

func (m *memUserQuizzes) GetByUserAndQuiz(_ context.Context, userID, quizID int64) (*model.UserQuiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uq := m.find(userID, quizID)
	if uq == nil {
		return nil, pgx.ErrNoRows
	}
	cp := *uq
	return &cp, nil
}

func (m *memUserQuizzes) LockByID(_ context.Context, id int64) (*model.UserQuiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uq, ok := m.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *uq
	return &cp, nil
}

func (m *memUserQuizzes) update(id int64, fn func(uq *model.UserQuiz)) (*model.UserQuiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uq, ok := m.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	fn(uq)
	cp := *uq
	return &cp, nil
}

func (m *memUserQuizzes) MarkStarted(_ context.Context, id int64) (*model.UserQuiz, error) {
	return m.update(id, func(uq *model.UserQuiz) {
		uq.AttemptCount = max(uq.AttemptCount, 1)
		if uq.Status != model.UserQuizStatusPassed {
			uq.Status = model.UserQuizStatusInProgress
		}
	})
}

func (m *memUserQuizzes) Retake(_ context.Context, id int64) (*model.UserQuiz, error) {
	return m.update(id, func(uq *model.UserQuiz) {
		uq.AttemptCount++
		if uq.Status != model.UserQuizStatusPassed {
			uq.Status = model.UserQuizStatusInProgress
		}
	})
}

func (m *memUserQuizzes) RecordResult(_ context.Context, id int64, score int, passed bool, attemptNumber int) (*model.UserQuiz, error) {
	return m.update(id, func(uq *model.UserQuiz) {
		uq.BestScore = max(uq.BestScore, score)
		uq.AttemptCount = max(uq.AttemptCount, attemptNumber)
		if passed && uq.PassedAt == nil {
			now := time.Now()
			uq.PassedAt = &now
		}
		if uq.Status == model.UserQuizStatusPassed || passed {
			uq.Status = model.UserQuizStatusPassed
		} else {
			uq.Status = model.UserQuizStatusFailed
		}
	})
}

func (m *memUserQuizzes) ListByUser(_ context.Context, userID int64) ([]model.UserQuiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.UserQuiz
	for _, uq := range m.rows {
		if uq.UserID == userID {
			out = append(out, *uq)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memResults struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*model.Result
}

func newMemResults() *memResults {
	return &memResults{rows: make(map[int64]*model.Result)}
}

func (m *memResults) Create(_ context.Context, res *model.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	res.ID = m.nextID
	res.Status = model.ResultStatusInProgress
	res.StartedAt = time.Now()
	cp := *res
	m.rows[res.ID] = &cp
	return nil
}

func (m *memResults) GetByID(_ context.Context, id int64) (*model.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *res
	return &cp, nil
}

func (m *memResults) GetLatestByUserQuiz(_ context.Context, userQuizID int64) (*model.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *model.Result
	for _, res := range m.rows {
		if res.UserQuizID != userQuizID {
			continue
		}
		if latest == nil || res.AttemptNumber > latest.AttemptNumber ||
			(res.AttemptNumber == latest.AttemptNumber && res.ID > latest.ID) {
			latest = res
		}
	}
	if latest == nil {
		return nil, pgx.ErrNoRows
	}
	cp := *latest
	return &cp, nil
}

func (m *memResults) UpdateDuration(_ context.Context, id int64, durationSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.rows[id]
	if !ok || res.Completed() {
		return repository.ErrResultFinalized
	}
	res.DurationSeconds = max(res.DurationSeconds, durationSeconds)
	return nil
}

func (m *memResults) Finalize(_ context.Context, id int64, score int, status model.ResultStatus, durationSeconds int, completedAt time.Time, metadata json.RawMessage) (*model.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.rows[id]
	if !ok || res.Completed() {
		return nil, repository.ErrResultFinalized
	}
	res.Score = score
	res.Status = status
	res.DurationSeconds = durationSeconds
	res.CompletedAt = &completedAt
	res.Metadata = metadata
	cp := *res
	return &cp, nil
}

func (m *memResults) completed(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.rows[id]
	return ok && res.Completed()
}

type memAnswers struct {
	mu       sync.Mutex
	results  *memResults
	byResult map[int64]map[int64]model.AnswerEntry
	upserts  int
}

func newMemAnswers(results *memResults) *memAnswers {
	return &memAnswers{results: results, byResult: make(map[int64]map[int64]model.AnswerEntry)}
}

func (m *memAnswers) put(resultID int64, e model.AnswerEntry) error {
	if m.results.completed(resultID) {
		return repository.ErrResultFinalized
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byResult[resultID] == nil {
		m.byResult[resultID] = make(map[int64]model.AnswerEntry)
	}
	m.byResult[resultID][e.QuestionID] = e
	m.upserts++
	return nil
}

func (m *memAnswers) UpsertSelectedChoice(_ context.Context, resultID, questionID, choiceID int64) error {
	return m.put(resultID, model.AnswerEntry{QuestionID: questionID, SelectedChoiceIDs: []int64{choiceID}})
}

func (m *memAnswers) UpsertInputAnswer(_ context.Context, resultID, questionID int64, text string) error {
	return m.put(resultID, model.AnswerEntry{QuestionID: questionID, InputAnswer: &text})
}

func (m *memAnswers) ListByResult(_ context.Context, resultID int64) ([]model.AnswerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.AnswerEntry, 0, len(m.byResult[resultID]))
	for _, e := range m.byResult[resultID] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

// ─── Quiz and course lookups ───────────────────────────────────────────

type staticViews map[int64]*model.ReviewView

func (s staticViews) ReviewView(_ context.Context, quizID int64) (*model.ReviewView, error) {
	v, ok := s[quizID]
	if !ok {
		return nil, ErrQuizNotFound
	}
	cp := *v
	return &cp, nil
}

type staticQuizNames []model.Quiz

func (s staticQuizNames) ListByIDs(_ context.Context, ids []int64) ([]model.Quiz, error) {
	var out []model.Quiz
	for _, q := range s {
		for _, id := range ids {
			if q.ID == id {
				out = append(out, q)
			}
		}
	}
	return out, nil
}

type fakeCourses struct {
	courses map[int64]*model.Course
	err     error
	calls   int
}

func (f *fakeCourses) Get(_ context.Context, courseID int64) (*model.Course, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.courses[courseID]
	if !ok {
		return nil, peer.ErrNotFound
	}
	return c, nil
}

func (f *fakeCourses) CourseName(_ context.Context, courseID int64) string {
	if c, ok := f.courses[courseID]; ok && f.err == nil {
		return c.Title
	}
	return ""
}

// ─── Fixtures ──────────────────────────────────────────────────────────

const (
	testQuizID   int64 = 10
	testCourseID int64 = 100
	testUserID   int64 = 7
)

// twoChoiceQuiz has two MULTIPLE_CHOICE questions worth one point each.
// Question 1: choice 11 is correct. Question 2: choice 22 is correct.
func twoChoiceQuiz() *model.ReviewView {
	return &model.ReviewView{
		QuizID:         testQuizID,
		CourseID:       testCourseID,
		CourseName:     "Go Fundamentals",
		Name:           "Checkpoint",
		PassPercentage: 50,
		Status:         model.QuizStatusPublished,
		Questions: []model.ReviewQuestion{
			{
				ID: 1, Text: "Q1", Type: model.QuestionTypeMultipleChoice, Points: 1, OrderIndex: 0,
				Choices: []model.ReviewChoice{{ID: 11, Text: "a", IsCorrect: true}, {ID: 12, Text: "b"}},
			},
			{
				ID: 2, Text: "Q2", Type: model.QuestionTypeMultipleChoice, Points: 1, OrderIndex: 1,
				Choices: []model.ReviewChoice{{ID: 21, Text: "c"}, {ID: 22, Text: "d", IsCorrect: true}},
			},
		},
	}
}

type attemptFixture struct {
	svc         *AttemptService
	userQuizzes *memUserQuizzes
	results     *memResults
	answers     *memAnswers
	views       staticViews
	mr          *miniredis.Miniredis
	rdb         *redis.Client
}

func newAttemptFixture(t *testing.T, views ...*model.ReviewView) *attemptFixture {
	t.Helper()
	mr, rdb := newTestRedis(t)

	f := &attemptFixture{
		userQuizzes: newMemUserQuizzes(),
		results:     newMemResults(),
		views:       staticViews{},
		mr:          mr,
		rdb:         rdb,
	}
	f.answers = newMemAnswers(f.results)
	for _, v := range views {
		f.views[v.QuizID] = v
	}

	quizzes := staticQuizNames{{ID: testQuizID, CourseID: testCourseID, Name: "Checkpoint"}}
	courses := &fakeCourses{courses: map[int64]*model.Course{testCourseID: {ID: testCourseID, Title: "Go Fundamentals"}}}

	f.svc = NewAttemptService(f.userQuizzes, f.results, f.answers, f.views, quizzes, courses, &fakeTx{}, rdb, zerolog.Nop())
	return f
}

func choice(questionID, choiceID int64) model.SubmissionAnswer {
	return model.SubmissionAnswer{
		QuestionID:        questionID,
		QuestionType:      model.QuestionTypeMultipleChoice,
		SelectedChoiceIDs: []int64{choiceID},
	}
}

func strPtr(s string) *string { return &s }
