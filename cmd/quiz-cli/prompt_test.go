package main

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var choiceQuestion = model.AttemptQuestion{
	ID:   1,
	Text: "Which keyword starts a goroutine?",
	Type: model.QuestionTypeMultipleChoice,
	Choices: []model.AttemptChoice{
		{ID: 11, Text: "go"},
		{ID: 12, Text: "async"},
	},
}

func TestAskReturnsOnInterruptWhileWaitingForInput(t *testing.T) {
	stdin, w := io.Pipe()
	t.Cleanup(func() { _ = w.Close() })
	lines := newLineReader(stdin)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := ask(ctx, lines, 1, choiceQuestion, model.AnswerEntry{})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("ask kept waiting for Enter after interrupt")
	}
}

func TestAskParsesAnswers(t *testing.T) {
	ctx := context.Background()
	lines := newLineReader(strings.NewReader("2\n\n9\n  chan  \n"))
	prev := model.AnswerEntry{QuestionID: 1, SelectedChoiceIDs: []int64{11}}

	entry, changed, err := ask(ctx, lines, 1, choiceQuestion, prev)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []int64{12}, entry.SelectedChoiceIDs)

	entry, changed, err = ask(ctx, lines, 1, choiceQuestion, prev)
	require.NoError(t, err)
	assert.False(t, changed, "empty line keeps the previous answer")
	assert.Equal(t, prev, entry)

	_, changed, err = ask(ctx, lines, 1, choiceQuestion, prev)
	require.NoError(t, err)
	assert.False(t, changed, "out of range choice is ignored")

	short := model.AttemptQuestion{ID: 2, Text: "Name the channel type", Type: model.QuestionTypeShortAnswer}
	entry, changed, err = ask(ctx, lines, 2, short, model.AnswerEntry{})
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, entry.InputAnswer)
	assert.Equal(t, "chan", *entry.InputAnswer)

	_, _, err = ask(ctx, lines, 3, short, model.AnswerEntry{})
	assert.ErrorIs(t, err, io.EOF)
}
