package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/learnhub/learnhub-backend/internal/config"
	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartTwiceResumesSameAttempt(t *testing.T) {
	f := newAttemptFixture(t, twoChoiceQuiz())
	ctx := context.Background()

	first, err := f.svc.Start(ctx, testUserID, testQuizID)
	require.NoError(t, err)
	assert.False(t, first.Resumed)
	assert.Equal(t, 1, first.Result.AttemptNumber)
	assert.Equal(t, testCourseID, first.Result.CourseID)
	assert.Equal(t, model.UserQuizStatusInProgress, first.UserQuiz.Status)

	second, err := f.svc.Start(ctx, testUserID, testQuizID)
	require.NoError(t, err)
	assert.True(t, second.Resumed)
	assert.Equal(t, first.Result.ID, second.Result.ID)
	assert.Equal(t, first.UserQuiz.ID, second.UserQuiz.ID)
}

func TestStartRejectsUnpublishedQuiz(t *testing.T) {
	view := twoChoiceQuiz()
	view.Status = model.QuizStatusHidden
	f := newAttemptFixture(t, view)

	_, err := f.svc.Start(context.Background(), testUserID, testQuizID)
	assert.ErrorIs(t, err, ErrQuizNotAvailable)
}

func TestStartAfterCompletionAsksForRetake(t *testing.T) {
	f := newAttemptFixture(t, twoChoiceQuiz())
	ctx := context.Background()

	started, err := f.svc.Start(ctx, testUserID, testQuizID)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, testUserID, &model.Submission{
		ResultID: started.Result.ID, UserQuizID: started.UserQuiz.ID, IsFinalSubmission: true,
	})
	require.NoError(t, err)

	_, err = f.svc.Start(ctx, testUserID, testQuizID)
	assert.ErrorIs(t, err, ErrAttemptCompleted)
}

func TestFinalSubmissionScoresOneOfTwo(t *testing.T) {
	f := newAttemptFixture(t, twoChoiceQuiz())
	ctx := context.Background()

	started, err := f.svc.Start(ctx, testUserID, testQuizID)
	require.NoError(t, err)

	out, err := f.svc.Submit(ctx, testUserID, &model.Submission{
		ResultID:          started.Result.ID,
		UserQuizID:        started.UserQuiz.ID,
		DurationSeconds:   90,
		IsFinalSubmission: true,
		Answers:           []model.SubmissionAnswer{choice(1, 11), choice(2, 21)},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, out.Result.Score)
	assert.Equal(t, 2, out.TotalMarks)
	assert.True(t, out.Passed)
	assert.Equal(t, model.ResultStatusPassed, out.Result.Status)
	assert.Equal(t, 90, out.Result.DurationSeconds)
	require.NotNil(t, out.Result.CompletedAt)
	assert.Equal(t, model.UserQuizStatusPassed, out.UserQuiz.Status)
	assert.Equal(t, 1, out.UserQuiz.BestScore)

	var meta map[string]int
	require.NoError(t, json.Unmarshal(out.Result.Metadata, &meta))
	assert.Equal(t, 1, meta["correct"])
	assert.Equal(t, 2, meta["answered"])
	assert.Equal(t, 2, meta["questionCount"])
}

func TestFinalSubmissionAllWrongFails(t *testing.T) {
	f := newAttemptFixture(t, twoChoiceQuiz())
	ctx := context.Background()

	started, err := f.svc.Start(ctx, testUserID, testQuizID)
	require.NoError(t, err)

	out, err := f.svc.Submit(ctx, testUserID, &model.Submission{
		ResultID: started.Result.ID, UserQuizID: started.UserQuiz.ID, IsFinalSubmission: true,
		Answers: []model.SubmissionAnswer{choice(1, 12), choice(2, 21)},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Result.Score)
	assert.False(t, out.Passed)
	assert.Equal(t, model.ResultStatusFailed, out.Result.Status)
	assert.Equal(t, model.UserQuizStatusFailed, out.UserQuiz.Status)
}

func TestNonFinalSubmissionOnlySavesAnswers(t *testing.T) {
	f := newAttemptFixture(t, twoChoiceQuiz())
	ctx := context.Background()

	started, err := f.svc.Start(ctx, testUserID, testQuizID)
	require.NoError(t, err)

	out, err := f.svc.Submit(ctx, testUserID, &model.Submission{
		ResultID: started.Result.ID, UserQuizID: started.UserQuiz.ID, DurationSeconds: 30,
		Answers: []model.SubmissionAnswer{choice(1, 11)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Saved)
	assert.Nil(t, out.Result.CompletedAt)

	state, err := f.svc.State(ctx, testUserID, started.Result.ID)
	require.NoError(t, err)
	assert.False(t, state.Completed)
	require.Len(t, state.Answers, 1)
	assert.Equal(t, []int64{11}, state.Answers[0].SelectedChoiceIDs)

	// The stored duration wins over a smaller value on final submit.
	final, err := f.svc.Submit(ctx, testUserID, &model.Submission{
		ResultID: started.Result.ID, UserQuizID: started.UserQuiz.ID, IsFinalSubmission: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 30, final.Result.DurationSeconds)
	assert.Equal(t, 1, final.Result.Score)
}

func TestFinalizedResultRejectsWrites(t *testing.T) {
	f := newAttemptFixture(t, twoChoiceQuiz())
	ctx := context.Background()

	started, err := f.svc.Start(ctx, testUserID, testQuizID)
	require.NoError(t, err)
	sub := &model.Submission{
		ResultID: started.Result.ID, UserQuizID: started.UserQuiz.ID, IsFinalSubmission: true,
		Answers: []model.SubmissionAnswer{choice(1, 11)},
	}
	_, err = f.svc.Submit(ctx, testUserID, sub)
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, testUserID, sub)
	assert.ErrorIs(t, err, ErrResultFinalized)

	err = f.svc.PersistAnswer(ctx, model.AnswerJob{
		ResultID: started.Result.ID,
		Answer:   model.AnswerEntry{QuestionID: 2, SelectedChoiceIDs: []int64{22}},
	})
	assert.ErrorIs(t, err, ErrResultFinalized)

	_, err = f.svc.VerifyOpen(ctx, testUserID, started.Result.ID)
	assert.ErrorIs(t, err, ErrResultFinalized)
}

func TestBestScoreKeptAndPassIsSticky(t *testing.T) {
	f := newAttemptFixture(t, twoChoiceQuiz())
	ctx := context.Background()

	first, err := f.svc.Start(ctx, testUserID, testQuizID)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, testUserID, &model.Submission{
		ResultID: first.Result.ID, UserQuizID: first.UserQuiz.ID, IsFinalSubmission: true,
		Answers: []model.SubmissionAnswer{choice(1, 11), choice(2, 22)},
	})
	require.NoError(t, err)

	second, err := f.svc.Retake(ctx, testUserID, testQuizID)
	require.NoError(t, err)
	assert.False(t, second.Resumed)
	assert.Equal(t, 2, second.Result.AttemptNumber)
	assert.Equal(t, model.UserQuizStatusPassed, second.UserQuiz.Status)

	out, err := f.svc.Submit(ctx, testUserID, &model.Submission{
		ResultID: second.Result.ID, UserQuizID: second.UserQuiz.ID, IsFinalSubmission: true,
		Answers: []model.SubmissionAnswer{choice(1, 12)},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Result.Score)
	assert.Equal(t, model.ResultStatusFailed, out.Result.Status)
	assert.Equal(t, 2, out.UserQuiz.BestScore)
	assert.Equal(t, 2, out.UserQuiz.AttemptCount)
	assert.Equal(t, model.UserQuizStatusPassed, out.UserQuiz.Status)

	latest, err := f.svc.Latest(ctx, testUserID, testQuizID)
	require.NoError(t, err)
	assert.Equal(t, second.Result.ID, latest.ID)
}

func TestRetakeWhileOpenReturnsOpenAttempt(t *testing.T) {
	f := newAttemptFixture(t, twoChoiceQuiz())
	ctx := context.Background()

	started, err := f.svc.Start(ctx, testUserID, testQuizID)
	require.NoError(t, err)

	again, err := f.svc.Retake(ctx, testUserID, testQuizID)
	require.NoError(t, err)
	assert.True(t, again.Resumed)
	assert.Equal(t, started.Result.ID, again.Result.ID)
}

func TestRetakeWithoutAttemptStarts(t *testing.T) {
	f := newAttemptFixture(t, twoChoiceQuiz())

	out, err := f.svc.Retake(context.Background(), testUserID, testQuizID)
	require.NoError(t, err)
	assert.False(t, out.Resumed)
	assert.Equal(t, 1, out.Result.AttemptNumber)
}

func TestResultsOfOtherUsersAreHidden(t *testing.T) {
	f := newAttemptFixture(t, twoChoiceQuiz())
	ctx := context.Background()

	started, err := f.svc.Start(ctx, testUserID, testQuizID)
	require.NoError(t, err)

	_, err = f.svc.State(ctx, testUserID+1, started.Result.ID)
	assert.ErrorIs(t, err, ErrResultNotFound)

	_, err = f.svc.Submit(ctx, testUserID+1, &model.Submission{ResultID: started.Result.ID, UserQuizID: started.UserQuiz.ID})
	assert.ErrorIs(t, err, ErrResultNotFound)

	_, err = f.svc.Latest(ctx, testUserID+1, testQuizID)
	assert.ErrorIs(t, err, ErrResultNotFound)
}

func TestSubmitRejectsForeignUserQuiz(t *testing.T) {
	f := newAttemptFixture(t, twoChoiceQuiz())
	ctx := context.Background()

	started, err := f.svc.Start(ctx, testUserID, testQuizID)
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, testUserID, &model.Submission{ResultID: started.Result.ID, UserQuizID: started.UserQuiz.ID + 99})
	assert.ErrorIs(t, err, ErrResultMismatch)
}

func TestReviewRequiresCompletion(t *testing.T) {
	f := newAttemptFixture(t, twoChoiceQuiz())
	ctx := context.Background()

	started, err := f.svc.Start(ctx, testUserID, testQuizID)
	require.NoError(t, err)

	_, err = f.svc.Review(ctx, testUserID, started.Result.ID)
	assert.ErrorIs(t, err, ErrResultNotCompleted)

	_, err = f.svc.Submit(ctx, testUserID, &model.Submission{
		ResultID: started.Result.ID, UserQuizID: started.UserQuiz.ID, IsFinalSubmission: true,
		Answers: []model.SubmissionAnswer{choice(1, 11), choice(2, 21)},
	})
	require.NoError(t, err)

	review, err := f.svc.Review(ctx, testUserID, started.Result.ID)
	require.NoError(t, err)
	assert.Equal(t, "Checkpoint", review.QuizName)
	assert.Equal(t, 2, review.TotalMarks)
	require.Len(t, review.Questions, 2)
	assert.True(t, review.Questions[0].Correct)
	assert.False(t, review.Questions[1].Correct)
	assert.Equal(t, []int64{21}, review.Questions[1].UserAnswer.SelectedChoiceIDs)
	assert.True(t, review.Questions[1].Choices[1].IsCorrect)
}

func TestAutosaveBuffersAndQueuesAnswers(t *testing.T) {
	f := newAttemptFixture(t, twoChoiceQuiz())
	ctx := context.Background()

	started, err := f.svc.Start(ctx, testUserID, testQuizID)
	require.NoError(t, err)
	res := started.Result

	// A persisted answer that the buffer later overrides.
	require.NoError(t, f.answers.UpsertSelectedChoice(ctx, res.ID, 1, 12))

	saved, err := f.svc.Autosave(ctx, res, []model.SubmissionAnswer{choice(1, 11)})
	require.NoError(t, err)
	assert.Equal(t, 1, saved)

	key := config.CacheKey.ResultAnswersKey(res.ID)
	assert.True(t, f.mr.Exists(key))
	assert.True(t, f.mr.TTL(key) > 0)

	queued, err := f.mr.List(config.WorkerKey.PersistAnswersQueue)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	var job model.AnswerJob
	require.NoError(t, json.Unmarshal([]byte(queued[0]), &job))
	assert.Equal(t, res.ID, job.ResultID)
	assert.Equal(t, int64(1), job.Answer.QuestionID)

	state, err := f.svc.State(ctx, testUserID, res.ID)
	require.NoError(t, err)
	require.Len(t, state.Answers, 1)
	assert.Equal(t, []int64{11}, state.Answers[0].SelectedChoiceIDs)
}

func TestAutosaveRejectsForeignChoice(t *testing.T) {
	f := newAttemptFixture(t, twoChoiceQuiz())
	ctx := context.Background()

	started, err := f.svc.Start(ctx, testUserID, testQuizID)
	require.NoError(t, err)

	_, err = f.svc.Autosave(ctx, started.Result, []model.SubmissionAnswer{choice(1, 22)})
	assert.ErrorIs(t, err, ErrInvalidAnswer)
	assert.False(t, f.mr.Exists(config.CacheKey.ResultAnswersKey(started.Result.ID)))
}

func TestSubmitBufferedScoresStreamedAnswers(t *testing.T) {
	f := newAttemptFixture(t, twoChoiceQuiz())
	ctx := context.Background()

	started, err := f.svc.Start(ctx, testUserID, testQuizID)
	require.NoError(t, err)

	_, err = f.svc.Autosave(ctx, started.Result, []model.SubmissionAnswer{choice(1, 11), choice(2, 22)})
	require.NoError(t, err)

	out, err := f.svc.SubmitBuffered(ctx, started.Result, 45)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Result.Score)
	assert.True(t, out.Passed)
	assert.Equal(t, 45, out.Result.DurationSeconds)
	assert.False(t, f.mr.Exists(config.CacheKey.ResultAnswersKey(started.Result.ID)))
}

func TestAutosaveAfterSubmitIsRejected(t *testing.T) {
	f := newAttemptFixture(t, twoChoiceQuiz())
	ctx := context.Background()

	started, err := f.svc.Start(ctx, testUserID, testQuizID)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, testUserID, &model.Submission{
		ResultID: started.Result.ID, UserQuizID: started.UserQuiz.ID, IsFinalSubmission: true,
	})
	require.NoError(t, err)

	// started.Result is the copy a stream loaded before the submit.
	_, err = f.svc.Autosave(ctx, started.Result, []model.SubmissionAnswer{choice(1, 11)})
	assert.ErrorIs(t, err, ErrResultFinalized)
	assert.False(t, f.mr.Exists(config.WorkerKey.PersistAnswersQueue))
}

func TestFinalSubmitCountsBufferedAnswers(t *testing.T) {
	f := newAttemptFixture(t, twoChoiceQuiz())
	ctx := context.Background()

	started, err := f.svc.Start(ctx, testUserID, testQuizID)
	require.NoError(t, err)

	// Streamed but not yet persisted by the worker.
	_, err = f.svc.Autosave(ctx, started.Result, []model.SubmissionAnswer{choice(1, 11), choice(2, 21)})
	require.NoError(t, err)

	out, err := f.svc.Submit(ctx, testUserID, &model.Submission{
		ResultID: started.Result.ID, UserQuizID: started.UserQuiz.ID, IsFinalSubmission: true,
		Answers: []model.SubmissionAnswer{choice(2, 22)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Result.Score, "buffered Q1 counts and the payload's Q2 wins")
	assert.False(t, f.mr.Exists(config.CacheKey.ResultAnswersKey(started.Result.ID)))
}

func TestRESTSaveRefreshesStreamBuffer(t *testing.T) {
	f := newAttemptFixture(t, twoChoiceQuiz())
	ctx := context.Background()

	started, err := f.svc.Start(ctx, testUserID, testQuizID)
	require.NoError(t, err)

	_, err = f.svc.Autosave(ctx, started.Result, []model.SubmissionAnswer{choice(1, 12)})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, testUserID, &model.Submission{
		ResultID: started.Result.ID, UserQuizID: started.UserQuiz.ID,
		Answers: []model.SubmissionAnswer{choice(1, 11)},
	})
	require.NoError(t, err)

	out, err := f.svc.SubmitBuffered(ctx, started.Result, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Result.Score)
}

func TestProgressEnrichesNames(t *testing.T) {
	f := newAttemptFixture(t, twoChoiceQuiz())
	ctx := context.Background()

	_, err := f.svc.Start(ctx, testUserID, testQuizID)
	require.NoError(t, err)

	entries, err := f.svc.Progress(ctx, testUserID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Checkpoint", entries[0].QuizName)
	assert.Equal(t, "Go Fundamentals", entries[0].CourseName)
	assert.Equal(t, testCourseID, entries[0].CourseID)

	empty, err := f.svc.Progress(ctx, testUserID+1)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestValidateAnswers(t *testing.T) {
	view := twoChoiceQuiz()
	view.Questions = append(view.Questions, model.ReviewQuestion{
		ID: 3, Type: model.QuestionTypeShortAnswer, Points: 1,
		Answers: []model.ReviewAnswer{{ID: 1, Text: "append"}},
	})

	t.Run("unknown question", func(t *testing.T) {
		_, err := ValidateAnswers(view, []model.SubmissionAnswer{choice(99, 11)})
		assert.ErrorIs(t, err, ErrInvalidAnswer)
	})

	t.Run("type mismatch", func(t *testing.T) {
		_, err := ValidateAnswers(view, []model.SubmissionAnswer{{QuestionID: 3, QuestionType: model.QuestionTypeTrueFalse}})
		assert.ErrorIs(t, err, ErrInvalidAnswer)
	})

	t.Run("two choices", func(t *testing.T) {
		_, err := ValidateAnswers(view, []model.SubmissionAnswer{{QuestionID: 1, SelectedChoiceIDs: []int64{11, 12}}})
		assert.ErrorIs(t, err, ErrInvalidAnswer)
	})

	t.Run("empty answers dropped and text trimmed", func(t *testing.T) {
		out, err := ValidateAnswers(view, []model.SubmissionAnswer{
			{QuestionID: 1},
			{QuestionID: 3, InputAnswer: strPtr("  append ")},
		})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "append", *out[0].InputAnswer)
		assert.Equal(t, model.QuestionTypeShortAnswer, out[0].QuestionType)
	})
}
