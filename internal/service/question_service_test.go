package service

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memQuestions struct {
	nextID int64
	rows   map[int64]*model.Question
}

func (m *memQuestions) GetByID(_ context.Context, id int64) (*model.Question, error) {
	q, ok := m.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *q
	return &cp, nil
}

func (m *memQuestions) ListByCourse(_ context.Context, courseID int64) ([]model.Question, error) {
	var out []model.Question
	for _, q := range m.rows {
		if q.CourseID == courseID {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (m *memQuestions) Create(_ context.Context, q *model.Question) error {
	m.nextID++
	q.ID = m.nextID
	cp := *q
	m.rows[q.ID] = &cp
	return nil
}

func (m *memQuestions) Update(_ context.Context, q *model.Question) error {
	existing, ok := m.rows[q.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	cp := *q
	cp.CourseID = existing.CourseID
	m.rows[q.ID] = &cp
	return nil
}

func (m *memQuestions) Delete(_ context.Context, id int64) error {
	if _, ok := m.rows[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.rows, id)
	return nil
}

type recordingInvalidator struct{ questions []int64 }

func (r *recordingInvalidator) InvalidateForQuestion(_ context.Context, questionID int64) {
	r.questions = append(r.questions, questionID)
}

func newQuestionFixture() (*QuestionService, *memQuestions, *recordingInvalidator) {
	store := &memQuestions{rows: make(map[int64]*model.Question)}
	views := &recordingInvalidator{}
	courses := &fakeCourses{courses: map[int64]*model.Course{
		testCourseID: {ID: testCourseID, Title: "Go Fundamentals", InstructorID: instructorID},
	}}
	return NewQuestionService(store, courses, views, &fakeTx{}, zerolog.Nop()), store, views
}

func multipleChoice(text string) *model.QuestionRequest {
	return &model.QuestionRequest{
		Text: text,
		Type: model.QuestionTypeMultipleChoice,
		Choices: []model.ChoiceInput{
			{Text: "yes", IsCorrect: true},
			{Text: "no"},
		},
	}
}

func TestValidateQuestion(t *testing.T) {
	cases := []struct {
		name string
		req  model.QuestionRequest
		ok   bool
	}{
		{
			name: "multiple choice",
			req:  *multipleChoice("q"),
			ok:   true,
		},
		{
			name: "multiple choice with one option",
			req:  model.QuestionRequest{Type: model.QuestionTypeMultipleChoice, Choices: []model.ChoiceInput{{Text: "only", IsCorrect: true}}},
		},
		{
			name: "two correct choices",
			req:  model.QuestionRequest{Type: model.QuestionTypeMultipleChoice, Choices: []model.ChoiceInput{{Text: "a", IsCorrect: true}, {Text: "b", IsCorrect: true}}},
		},
		{
			name: "no correct choice",
			req:  model.QuestionRequest{Type: model.QuestionTypeMultipleChoice, Choices: []model.ChoiceInput{{Text: "a"}, {Text: "b"}}},
		},
		{
			name: "true false with three choices",
			req:  model.QuestionRequest{Type: model.QuestionTypeTrueFalse, Choices: []model.ChoiceInput{{Text: "t", IsCorrect: true}, {Text: "f"}, {Text: "?"}}},
		},
		{
			name: "true false",
			req:  model.QuestionRequest{Type: model.QuestionTypeTrueFalse, Choices: []model.ChoiceInput{{Text: "t"}, {Text: "f", IsCorrect: true}}},
			ok:   true,
		},
		{
			name: "choice question with accepted answers",
			req:  model.QuestionRequest{Type: model.QuestionTypeTrueFalse, Choices: []model.ChoiceInput{{Text: "t", IsCorrect: true}, {Text: "f"}}, AcceptedAnswers: []string{"t"}},
		},
		{
			name: "short answer",
			req:  model.QuestionRequest{Type: model.QuestionTypeShortAnswer, AcceptedAnswers: []string{"goroutine"}},
			ok:   true,
		},
		{
			name: "short answer with blank answers only",
			req:  model.QuestionRequest{Type: model.QuestionTypeShortAnswer, AcceptedAnswers: []string{" ", ""}},
		},
		{
			name: "short answer with choices",
			req:  model.QuestionRequest{Type: model.QuestionTypeShortAnswer, AcceptedAnswers: []string{"x"}, Choices: []model.ChoiceInput{{Text: "x", IsCorrect: true}}},
		},
		{
			name: "unknown type",
			req:  model.QuestionRequest{Type: "ESSAY"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateQuestion(&tc.req)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidQuestion)
			}
		})
	}
}

func TestCreateQuestionDefaults(t *testing.T) {
	svc, store, _ := newQuestionFixture()

	req := &model.QuestionRequest{
		Text:            "Keyword that starts a goroutine?",
		Type:            model.QuestionTypeShortAnswer,
		AcceptedAnswers: []string{" go ", ""},
	}
	q, err := svc.Create(context.Background(), owner, testCourseID, req)
	require.NoError(t, err)

	assert.Equal(t, 1, q.Points)
	assert.Equal(t, model.QuestionStatusPublished, q.Status)
	assert.Equal(t, testCourseID, q.CourseID)
	require.Len(t, q.AcceptedAnswers, 1)
	assert.Equal(t, "go", q.AcceptedAnswers[0].Text)
	assert.Contains(t, store.rows, q.ID)
}

func TestCreateQuestionAuthorization(t *testing.T) {
	svc, store, _ := newQuestionFixture()
	ctx := context.Background()

	stranger := Actor{AccountID: instructorID + 1, Role: model.RoleInstructor}
	_, err := svc.Create(ctx, stranger, testCourseID, multipleChoice("q"))
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Create(ctx, owner, 999, multipleChoice("q"))
	assert.ErrorIs(t, err, ErrCourseNotFound)

	admin := Actor{AccountID: 1, Role: model.RoleAdmin}
	_, err = svc.Create(ctx, admin, testCourseID, multipleChoice("q"))
	assert.NoError(t, err)
	assert.Len(t, store.rows, 1)
}

func TestUpdateQuestionInvalidatesViews(t *testing.T) {
	svc, store, views := newQuestionFixture()
	ctx := context.Background()

	q, err := svc.Create(ctx, owner, testCourseID, multipleChoice("before"))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, owner, q.ID, multipleChoice("after"))
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Text)
	assert.Equal(t, "after", store.rows[q.ID].Text)
	assert.Equal(t, []int64{q.ID}, views.questions)

	_, err = svc.Update(ctx, owner, 404, multipleChoice("missing"))
	assert.ErrorIs(t, err, ErrQuestionNotFound)

	bad := &model.QuestionRequest{Text: "x", Type: model.QuestionTypeShortAnswer}
	_, err = svc.Update(ctx, owner, q.ID, bad)
	assert.ErrorIs(t, err, ErrInvalidQuestion)
	assert.Len(t, views.questions, 1)
}

func TestDeleteQuestion(t *testing.T) {
	svc, store, views := newQuestionFixture()
	ctx := context.Background()

	q, err := svc.Create(ctx, owner, testCourseID, multipleChoice("doomed"))
	require.NoError(t, err)

	stranger := Actor{AccountID: instructorID + 1, Role: model.RoleInstructor}
	assert.ErrorIs(t, svc.Delete(ctx, stranger, q.ID), ErrForbidden)
	assert.Contains(t, store.rows, q.ID)

	require.NoError(t, svc.Delete(ctx, owner, q.ID))
	assert.NotContains(t, store.rows, q.ID)
	assert.Equal(t, []int64{q.ID}, views.questions)

	assert.ErrorIs(t, svc.Delete(ctx, owner, q.ID), ErrQuestionNotFound)
}

func TestListQuestionsNeverNil(t *testing.T) {
	svc, _, _ := newQuestionFixture()

	list, err := svc.ListByCourse(context.Background(), owner, testCourseID)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}
