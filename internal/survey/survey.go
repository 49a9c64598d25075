package survey

import (
	"fmt"
	"strings"
)

// NumQuestions is the number of numeric questions in the evaluation
// instrument. Q18 (manipulation check) and Q19 (thought process) are
// free-form and handled separately.
const NumQuestions = 17

// Answers for the manipulation check question.
const (
	ManipulationYes     = "YES"
	ManipulationNo      = "NO"
	ManipulationUnknown = "UNKNOWN"
)

// Range holds the inclusive bounds of a valid score for a single question.
type Range struct {
	Min int
	Max int
}

// questionRanges is indexed by question number minus one.
var questionRanges = []Range{
	{1, 7},           // Q1
	{1, 5}, {1, 5},   // Q2-Q3
	{1, 5}, {1, 5},   // Q4-Q5
	{1, 5},           // Q6
	{1, 6}, {1, 6},   // Q7-Q8
	{1, 6}, {1, 6},   // Q9-Q10
	{1, 6}, {1, 6},   // Q11-Q12
	{1, 6}, {1, 6},   // Q13-Q14
	{1, 6}, {1, 6},   // Q15-Q16
	{1, 2},           // Q17
}

// QuestionRange returns the valid score range for the given question number (1-based).
func QuestionRange(question int) (Range, error) {
	if question < 1 || question > NumQuestions {
		return Range{}, fmt.Errorf("question %d out of range 1-%d", question, NumQuestions)
	}
	return questionRanges[question-1], nil
}

// Evaluation is one fully parsed model response to the survey instrument.
type Evaluation struct {
	Scores            []int
	ManipulationCheck string
	ThoughtProcess    string
}

// ValidateScores checks that the score list has exactly NumQuestions entries
// and every entry falls within its question's valid range.
func ValidateScores(scores []int) error {
	if len(scores) != NumQuestions {
		return fmt.Errorf("expected %d scores, got %d", NumQuestions, len(scores))
	}

	for i, score := range scores {
		r := questionRanges[i]
		if score < r.Min || score > r.Max {
			return fmt.Errorf("q%d score %d out of valid range %d-%d", i+1, score, r.Min, r.Max)
		}
	}

	return nil
}

// Validate checks the whole evaluation: scores plus the manipulation check value.
func (e *Evaluation) Validate() error {
	if e == nil {
		return fmt.Errorf("evaluation is nil")
	}

	if err := ValidateScores(e.Scores); err != nil {
		return err
	}

	switch strings.ToUpper(strings.TrimSpace(e.ManipulationCheck)) {
	case ManipulationYes, ManipulationNo, ManipulationUnknown:
		return nil
	default:
		return fmt.Errorf("manipulation check %q is not YES, NO or UNKNOWN", e.ManipulationCheck)
	}
}
