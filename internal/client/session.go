package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/rs/zerolog"
)

var (
	// ErrAttemptClosed is returned when loading a result that was already submitted.
	ErrAttemptClosed = errors.New("client: attempt already submitted")
	// ErrUnknownQuestion is returned when answering a question not in the quiz.
	ErrUnknownQuestion = errors.New("client: question is not part of this quiz")
)

// AttemptAPI is the part of API a Session uses.
type AttemptAPI interface {
	AttemptView(ctx context.Context, quizID int64) (*model.AttemptView, error)
	State(ctx context.Context, resultID int64) (*model.ResumeState, error)
	Submit(ctx context.Context, sub *model.Submission) (*model.SubmissionResult, error)
}

// Drafts is the local draft cache a Session writes through.
type Drafts interface {
	Put(ctx context.Context, resultID int64, entry model.AnswerEntry) error
	Get(ctx context.Context, resultID int64) (map[int64]model.AnswerEntry, error)
	Clear(ctx context.Context, resultID int64) error
}

// Session is one learner's open attempt on the client.
type Session struct {
	api    AttemptAPI
	drafts Drafts

	View       *model.AttemptView
	ResultID   int64
	UserQuizID int64
	StartedAt  time.Time

	mu      sync.Mutex
	answers map[int64]model.AnswerEntry
	now     func() time.Time
}

// Load fetches the quiz and the server's state for resultID and merges the
// local draft over it.
func Load(ctx context.Context, api AttemptAPI, drafts Drafts, quizID, resultID int64) (*Session, error) {
	view, err := api.AttemptView(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("load quiz: %w", err)
	}
	state, err := api.State(ctx, resultID)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if state.Completed {
		return nil, ErrAttemptClosed
	}
	draft, err := drafts.Get(ctx, resultID)
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}

	s := &Session{
		api:        api,
		drafts:     drafts,
		View:       view,
		ResultID:   resultID,
		UserQuizID: state.UserQuizID,
		StartedAt:  state.StartedAt,
		answers:    make(map[int64]model.AnswerEntry),
		now:        time.Now,
	}
	for _, a := range Merge(view, state.Answers, draft) {
		s.answers[a.QuestionID] = a
	}
	return s, nil
}

// Answers returns the current answers in quiz order.
func (s *Session) Answers() []model.AnswerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.AnswerEntry, 0, len(s.answers))
	for _, q := range s.View.Questions {
		if a, ok := s.answers[q.ID]; ok {
			out = append(out, a)
		}
	}
	return out
}

// SetAnswer records an edit and writes it to the local draft.
func (s *Session) SetAnswer(ctx context.Context, entry model.AnswerEntry) error {
	q, ok := s.question(entry.QuestionID)
	if !ok {
		return ErrUnknownQuestion
	}
	entry.QuestionType = q.Type

	s.mu.Lock()
	if entry.Empty() {
		delete(s.answers, entry.QuestionID)
	} else {
		s.answers[entry.QuestionID] = entry
	}
	s.mu.Unlock()

	return s.drafts.Put(ctx, s.ResultID, entry)
}

// Flush sends the non-empty answers as a non-final submission.
func (s *Session) Flush(ctx context.Context) error {
	_, err := s.api.Submit(ctx, s.submission(false))
	return err
}

// Submit sends the final submission and clears the local draft.
func (s *Session) Submit(ctx context.Context) (*model.SubmissionResult, error) {
	out, err := s.api.Submit(ctx, s.submission(true))
	if err != nil {
		return nil, err
	}
	if err := s.drafts.Clear(ctx, s.ResultID); err != nil {
		return out, fmt.Errorf("clear draft: %w", err)
	}
	return out, nil
}

// Autosaver returns an Autosaver flushing this session.
func (s *Session) Autosaver(interval time.Duration, log zerolog.Logger) *Autosaver {
	return NewAutosaver(s.Flush, interval, log)
}

func (s *Session) submission(final bool) *model.Submission {
	answers := s.Answers()
	sub := &model.Submission{
		ResultID:          s.ResultID,
		UserQuizID:        s.UserQuizID,
		IsFinalSubmission: final,
		Answers:           make([]model.SubmissionAnswer, 0, len(answers)),
	}
	if !s.StartedAt.IsZero() {
		sub.DurationSeconds = max(0, int(s.now().Sub(s.StartedAt).Seconds()))
	}
	for _, a := range answers {
		sub.Answers = append(sub.Answers, model.SubmissionAnswer{
			QuestionID:        a.QuestionID,
			QuestionType:      a.QuestionType,
			SelectedChoiceIDs: a.SelectedChoiceIDs,
			InputAnswer:       a.InputAnswer,
		})
	}
	return sub
}

func (s *Session) question(id int64) (model.AttemptQuestion, bool) {
	for _, q := range s.View.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return model.AttemptQuestion{}, false
}
