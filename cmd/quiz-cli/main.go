package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/learnhub/learnhub-backend/internal/client"
	"github.com/learnhub/learnhub-backend/internal/logger"
	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/learnhub/learnhub-backend/internal/response"
	"golang.org/x/term"
)

func main() {
	baseURL := flag.String("api", "http://localhost:8080", "LearnHub API base URL")
	email := flag.String("email", "", "Learner email")
	quizID := flag.Int64("quiz", 0, "Quiz ID to attempt")
	retake := flag.Bool("retake", false, "Start a new attempt after a completed one")
	draftPath := flag.String("drafts", "learnhub-drafts.db", "Local draft database")
	interval := flag.Duration("autosave", client.DefaultAutosaveInterval, "Autosave interval")
	logLevel := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	log := logger.Setup(*logLevel, "pretty", logger.FileOptions{})

	if *email == "" || *quizID <= 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Login ─────────────────────────────────────────────────────────
	fmt.Print("Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Println("Error reading password")
		os.Exit(1)
	}

	api := client.NewAPI(client.Options{BaseURL: *baseURL, Timeout: 30 * time.Second}, log)
	if err := api.Login(ctx, *email, string(bytePassword)); err != nil {
		fmt.Printf("Login failed: %v\n", err)
		os.Exit(1)
	}

	drafts, err := client.OpenDraftStore(*draftPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open draft store")
	}
	defer drafts.Close()

	// ─── Start or resume ───────────────────────────────────────────────
	start := api.Start
	if *retake {
		start = api.Retake
	}
	attempt, err := start(ctx, *quizID)
	if client.IsCode(err, response.ErrAttemptCompleted) {
		fmt.Println("This quiz is already completed. Run again with -retake to try once more.")
		os.Exit(1)
	}
	if err != nil {
		fmt.Printf("Could not start quiz: %v\n", err)
		os.Exit(1)
	}

	session, err := client.Load(ctx, api, drafts, *quizID, attempt.Result.ID)
	if err != nil {
		fmt.Printf("Could not load attempt: %v\n", err)
		os.Exit(1)
	}
	if attempt.Resumed {
		fmt.Printf("Resuming attempt #%d with %d saved answers.\n", attempt.Result.AttemptNumber, len(session.Answers()))
	}

	saveCtx, stopSaving := context.WithCancel(ctx)
	autosaver := session.Autosaver(*interval, log)
	go autosaver.Run(saveCtx)

	// ─── Questions ─────────────────────────────────────────────────────
	fmt.Printf("\n%s (%s), %d questions, %d marks\n", session.View.Name, session.View.CourseName,
		len(session.View.Questions), session.View.TotalMarks)
	if session.View.DurationMinutes > 0 {
		fmt.Printf("Time limit: %d minutes\n", session.View.DurationMinutes)
	}

	current := make(map[int64]model.AnswerEntry)
	for _, a := range session.Answers() {
		current[a.QuestionID] = a
	}

	lines := newLineReader(os.Stdin)
	for i, q := range session.View.Questions {
		entry, changed, err := ask(ctx, lines, i+1, q, current[q.ID])
		if err != nil {
			break
		}
		if !changed {
			continue
		}
		if err := session.SetAnswer(ctx, entry); err != nil {
			log.Warn().Err(err).Int64("question_id", q.ID).Msg("Failed to store draft")
		}
	}

	// ─── Submit ────────────────────────────────────────────────────────
	var confirm string
	if ctx.Err() == nil {
		fmt.Print("\nSubmit now? [y/N]: ")
		confirm, _ = lines.next(ctx)
	}
	stopSaving()

	if ctx.Err() != nil || !strings.EqualFold(strings.TrimSpace(confirm), "y") {
		// The draft stays for next time either way.
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := autosaver.Flush(flushCtx); err != nil {
			fmt.Printf("\nAnswers kept locally, server save failed: %v\n", err)
			return
		}
		fmt.Println("\nAnswers saved. Run again to resume.")
		return
	}

	out, err := session.Submit(context.Background())
	if err != nil && out == nil {
		fmt.Printf("Submit failed: %v\n", err)
		os.Exit(1)
	}

	verdict := "FAILED"
	if out.Passed {
		verdict = "PASSED"
	}
	fmt.Printf("\nScore: %d/%d (%s)\n", out.Result.Score, out.TotalMarks, verdict)
}

// ask prompts for one question and reports whether the answer changed. An
// empty line keeps the previous answer. It returns ctx.Err() on interrupt.
func ask(ctx context.Context, lines *lineReader, n int, q model.AttemptQuestion, prev model.AnswerEntry) (model.AnswerEntry, bool, error) {
	entry := model.AnswerEntry{QuestionID: q.ID, QuestionType: q.Type}

	fmt.Printf("\n%d. %s (%d pts)\n", n, q.Text, q.Points)
	for i, c := range q.Choices {
		mark := " "
		if len(prev.SelectedChoiceIDs) > 0 && prev.SelectedChoiceIDs[0] == c.ID {
			mark = "*"
		}
		fmt.Printf("  %s%d) %s\n", mark, i+1, c.Text)
	}
	if q.Type == model.QuestionTypeShortAnswer {
		if prev.InputAnswer != nil {
			fmt.Printf("  [current: %s]\n", *prev.InputAnswer)
		}
		fmt.Print("Answer: ")
	} else {
		fmt.Print("Choice: ")
	}

	line, err := lines.next(ctx)
	if err != nil {
		return entry, false, err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return prev, false, nil
	}

	if q.Type == model.QuestionTypeShortAnswer {
		entry.InputAnswer = &line
		return entry, true, nil
	}

	idx, err := strconv.Atoi(line)
	if err != nil || idx < 1 || idx > len(q.Choices) {
		fmt.Println("  Invalid choice, answer left unchanged.")
		return prev, false, nil
	}
	entry.SelectedChoiceIDs = []int64{q.Choices[idx-1].ID}
	return entry, true, nil
}
