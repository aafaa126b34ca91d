// Package symptoms scores the movement-disorder questionnaire.
package symptoms

import (
	"fmt"
	"log"
	"strings"

	"github.com/Krimson/neuro-risk/assessment-service/pkg/models"
)

// Questions - закрытая анкета в порядке отображения
var Questions = []string{
	"tremor",
	"stiffness",
	"slowness",
	"balance",
	"handwriting",
	"speech",
	"fatigue",
}

const (
	AnswerYes = "yes"
	AnswerNo  = "no"

	// PositiveThreshold - число ответов "yes", при котором анкета Positive
	PositiveThreshold = 3
)

// Answers сопоставляет вопросу "yes" или "no"
type Answers map[string]string

// NormalizeAnswers возвращает ответы на все Questions. Отсутствующие, пустые
// и неизвестные значения становятся "no", лишние ключи отбрасываются
func NormalizeAnswers(raw map[string]string) Answers {
	out := make(Answers, len(Questions))
	for _, q := range Questions {
		v := strings.ToLower(strings.TrimSpace(raw[q]))
		if v == AnswerYes {
			out[q] = AnswerYes
		} else {
			out[q] = AnswerNo
		}
	}
	return out
}

// Scorer применяет правило подсчета к анкете
type Scorer struct {
	debug bool
}

// NewScorer создает оценщик анкеты
func NewScorer(debug bool) *Scorer {
	return &Scorer{debug: debug}
}

// Score не возвращает ошибок: любой сбой дает ("Error in analysis", 0.5, false)
func (s *Scorer) Score(answers Answers) (outcome models.SymptomOutcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] [SYMPTOMS] Analysis failed: %v", r)
			outcome = analysisError()
		}
	}()

	outcome, err := s.score(answers)
	if err != nil {
		log.Printf("[ERROR] [SYMPTOMS] %v", err)
		return analysisError()
	}
	return outcome
}

func (s *Scorer) score(answers Answers) (models.SymptomOutcome, error) {
	total := len(answers)
	if total == 0 {
		return models.SymptomOutcome{}, fmt.Errorf("%w: no answers", models.ErrAnalysis)
	}

	yes := 0
	for _, v := range answers {
		if strings.EqualFold(strings.TrimSpace(v), AnswerYes) {
			yes++
		}
	}

	ratio := float64(yes) / float64(total)
	outcome := models.SymptomOutcome{
		Urgent: yes >= total-1,
	}
	if yes >= PositiveThreshold {
		outcome.Label = models.LabelPositive
		outcome.Confidence = min(1.0, ratio)
	} else {
		outcome.Label = models.LabelNegative
		outcome.Confidence = max(0.0, 1.0-ratio)
	}

	if s.debug {
		log.Printf("[DEBUG] [SYMPTOMS] %d/%d yes: %s, confidence: %.2f, urgent: %v",
			yes, total, outcome.Label, outcome.Confidence, outcome.Urgent)
	}
	return outcome, nil
}

func analysisError() models.SymptomOutcome {
	return models.SymptomOutcome{Label: models.LabelAnalysisError, Confidence: 0.5, Urgent: false}
}
