package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// RefreshTokenKey returns the key holding the account id a refresh token belongs to.
func (r *CacheKeyStruct) RefreshTokenKey(token string) string {
	return fmt.Sprintf("refresh:%s", token)
}

// QuizAttemptViewKey returns the cache key for a quiz's attempt view.
func (r *CacheKeyStruct) QuizAttemptViewKey(quizID int64) string {
	return fmt.Sprintf("quiz:%d:attempt_view", quizID)
}

// QuizReviewViewKey returns the cache key for a quiz's review view.
func (r *CacheKeyStruct) QuizReviewViewKey(quizID int64) string {
	return fmt.Sprintf("quiz:%d:review_view", quizID)
}

// ResultAnswersKey returns the hash of answers buffered over the attempt stream.
func (r *CacheKeyStruct) ResultAnswersKey(resultID int64) string {
	return fmt.Sprintf("result:%d:answers", resultID)
}

var CacheKey = NewCacheKeyStruct()
