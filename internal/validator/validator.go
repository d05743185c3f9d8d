// Package validator wires go-playground/validator into gin binding with
// English messages keyed by JSON field name.
package validator

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/learnhub/learnhub-backend/internal/model"
)

// answerShapeTag is reported when an answer's payload does not fit its question type.
const answerShapeTag = "answer_shape"

var (
	setupOnce sync.Once
	trans     ut.Translator
)

// Setup installs JSON field names, English translations and the quiz
// answer rules on gin's validator. Safe to call more than once.
func Setup() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*govalidator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(jsonFieldName)

		locale := en.New()
		trans, _ = ut.New(locale, locale).GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		v.RegisterStructValidation(answerShape, model.SubmissionAnswer{})
		_ = v.RegisterTranslation(answerShapeTag, trans,
			func(t ut.Translator) error {
				return t.Add(answerShapeTag, "{0} does not match the question type", true)
			},
			func(t ut.Translator, fe govalidator.FieldError) string {
				msg, _ := t.T(answerShapeTag, fe.Field())
				return msg
			})
	})
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// answerShape rejects a choice question carrying free text and a short
// answer carrying selected choices.
func answerShape(sl govalidator.StructLevel) {
	a := sl.Current().Interface().(model.SubmissionAnswer)
	switch {
	case a.QuestionType.UsesChoices() && a.InputAnswer != nil:
		sl.ReportError(a.InputAnswer, "inputAnswer", "InputAnswer", answerShapeTag, "")
	case a.QuestionType == model.QuestionTypeShortAnswer && len(a.SelectedChoiceIDs) > 0:
		sl.ReportError(a.SelectedChoiceIDs, "selectedChoiceIds", "SelectedChoiceIDs", answerShapeTag, "")
	}
}

// TranslateErrors maps a binding error to field messages. Errors that are
// not validation errors, such as malformed JSON, come back under "detail".
func TranslateErrors(err error) map[string]string {
	var ve govalidator.ValidationErrors
	if !errors.As(err, &ve) {
		return map[string]string{"detail": err.Error()}
	}

	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		if trans == nil {
			fields[fe.Field()] = fe.Error()
			continue
		}
		fields[fe.Field()] = fe.Translate(trans)
	}
	return fields
}

// BindQuery binds query parameters into dst and returns field errors, or nil.
func BindQuery(c *gin.Context, dst any) map[string]string {
	return check(c.ShouldBindQuery(dst))
}

// Bind binds the JSON body into dst and returns field errors, or nil.
func Bind(c *gin.Context, dst any) map[string]string {
	return check(c.ShouldBindJSON(dst))
}

func check(err error) map[string]string {
	if err == nil {
		return nil
	}
	return TranslateErrors(err)
}
