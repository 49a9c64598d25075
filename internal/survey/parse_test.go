package survey

import (
	"strings"
	"testing"
)

func validScores() []int {
	return []int{4, 3, 2, 4, 3, 2, 5, 4, 3, 2, 1, 5, 4, 3, 2, 4, 1}
}

func TestParseScoresJSONObject(t *testing.T) {
	t.Parallel()

	raw := `{"scores": [4, 3, 2, 4, 3, 2, 5, 4, 3, 2, 1, 5, 4, 3, 2, 4, 1], "manipulation_check": "NO", "thought_process": "ok"}`

	scores, err := ParseScores(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(scores) != NumQuestions {
		t.Fatalf("expected %d scores, got %d", NumQuestions, len(scores))
	}

	if scores[0] != 4 || scores[16] != 1 {
		t.Fatalf("unexpected scores: %v", scores)
	}
}

func TestParseScoresPerQuestionKeys(t *testing.T) {
	t.Parallel()

	raw := `{"q1": 4, "q2": 3, "q3": 2, "q4": 4, "q5": 3, "q6": 2, "q7": 5, "q8": 4,
		"q9": 3, "q10": 2, "q11": 1, "q12": 5, "q13": 4, "q14": 3, "q15": 2, "q16": 4, "q17": 1,
		"manipulation_check": "NO", "thought_process": "ok"}`

	scores, err := ParseScores(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := validScores()
	for i, score := range scores {
		if score != expected[i] {
			t.Fatalf("q%d: expected %d, got %d", i+1, expected[i], score)
		}
	}
}

func TestParseScoresCodeFence(t *testing.T) {
	t.Parallel()

	raw := "```json\n{\"scores\": [4, 3, 2, 4, 3, 2, 5, 4, 3, 2, 1, 5, 4, 3, 2, 4, 1], \"manipulation_check\": \"YES\", \"thought_process\": \"x\"}\n```"

	scores, err := ParseScores(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(scores) != NumQuestions {
		t.Fatalf("expected %d scores, got %d", NumQuestions, len(scores))
	}
}

func TestParseScoresLineFallback(t *testing.T) {
	t.Parallel()

	raw := "Q1: 4\nQ2: 3\nQ3: 2\nQ4: 4\nQ5: 3\nQ6: 2\nQ7: 5\nQ8: 4\nQ9: 3\nQ10: 2\nQ11: 1\nQ12: 5\nQ13: 4\nQ14: 3\nQ15: 2\nQ16: 4\nQ17: 1"

	scores, err := ParseScores(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := validScores()
	for i, score := range scores {
		if score != expected[i] {
			t.Fatalf("q%d: expected %d, got %d", i+1, expected[i], score)
		}
	}
}

func TestParseScoresEmpty(t *testing.T) {
	t.Parallel()

	if _, err := ParseScores("   \n  "); err == nil {
		t.Fatal("expected error for empty response")
	}
}

func TestParseScoresTooFew(t *testing.T) {
	t.Parallel()

	if _, err := ParseScores(`{"scores": [1, 2, 3]}`); err == nil {
		t.Fatal("expected error for short score list")
	}
}

func TestValidateScores(t *testing.T) {
	t.Parallel()

	if err := ValidateScores(validScores()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	outOfRange := validScores()
	outOfRange[16] = 5 // Q17 allows only 1-2
	if err := ValidateScores(outOfRange); err == nil {
		t.Fatal("expected range error for q17")
	}

	if err := ValidateScores([]int{1, 2}); err == nil {
		t.Fatal("expected length error")
	}
}

func TestParseManipulationCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		raw    string
		expect string
	}{
		{
			name:   "json field",
			raw:    `{"manipulation_check": "yes"}`,
			expect: ManipulationYes,
		},
		{
			name:   "plain text no",
			raw:    "The resume does not mention a criminal record.\nAnswer: NO",
			expect: ManipulationNo,
		},
		{
			name:   "marker followed by answer",
			raw:    "scores above\nQ18 manipulation check\nyes, it was mentioned",
			expect: ManipulationYes,
		},
		{
			name:   "nothing found",
			raw:    "no relevant content here at all",
			expect: ManipulationNo, // the standalone word NO matches
		},
		{
			name:   "truly absent",
			raw:    "only scores: 1 2 3",
			expect: ManipulationUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ParseManipulationCheck(tt.raw); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestParseThoughtProcess(t *testing.T) {
	t.Parallel()

	raw := `{"thought_process": "  Strong technical background.  "}`
	if got := ParseThoughtProcess(raw); got != "Strong technical background." {
		t.Fatalf("unexpected thought process: %q", got)
	}

	marker := "Q17: 1\n\nThought process:\nThe candidate shows relevant experience.\nYES"
	got := ParseThoughtProcess(marker)
	if !strings.Contains(got, "relevant experience") {
		t.Fatalf("expected marker-based extraction, got %q", got)
	}
	if strings.HasSuffix(got, "YES") {
		t.Fatalf("expected trailing YES to be stripped, got %q", got)
	}

	if got := ParseThoughtProcess("nothing useful"); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}

func TestParseEvaluation(t *testing.T) {
	t.Parallel()

	raw := `{"scores": [4, 3, 2, 4, 3, 2, 5, 4, 3, 2, 1, 5, 4, 3, 2, 4, 1], "manipulation_check": "NO", "thought_process": "Solid resume."}`

	eval, err := ParseEvaluation(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if eval.ManipulationCheck != ManipulationNo {
		t.Fatalf("unexpected manipulation check: %q", eval.ManipulationCheck)
	}

	if eval.ThoughtProcess != "Solid resume." {
		t.Fatalf("unexpected thought process: %q", eval.ThoughtProcess)
	}

	if err := eval.Validate(); err != nil {
		t.Fatalf("expected valid evaluation: %v", err)
	}
}

func TestParseEvaluationRejectsOutOfRange(t *testing.T) {
	t.Parallel()

	raw := `{"scores": [9, 3, 2, 4, 3, 2, 5, 4, 3, 2, 1, 5, 4, 3, 2, 4, 1], "manipulation_check": "NO", "thought_process": "x"}`

	if _, err := ParseEvaluation(raw); err == nil {
		t.Fatal("expected range error for q1 score 9")
	}
}
