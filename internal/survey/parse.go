package survey

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	questionPrefixRe = regexp.MustCompile(`^[Qq]\d+[:\-.]?\s*`)
	listPrefixRe     = regexp.MustCompile(`^\d+[.)]\s*`)
	singleScoreRe    = regexp.MustCompile(`\b([1-7])\b`)
	yesRe            = regexp.MustCompile(`\bYES\b`)
	noRe             = regexp.MustCompile(`\bNO\b`)
	trailingYesNoRe  = regexp.MustCompile(`(?i)\s+(YES|NO)\s*$`)
)

// ParseEvaluation extracts the full evaluation from a raw model response.
// Scores must parse, otherwise an error is returned; the manipulation check
// and thought process degrade to UNKNOWN / empty instead of failing.
func ParseEvaluation(raw string) (*Evaluation, error) {
	scores, err := ParseScores(raw)
	if err != nil {
		return nil, err
	}

	eval := &Evaluation{
		Scores:            scores,
		ManipulationCheck: ParseManipulationCheck(raw),
		ThoughtProcess:    ParseThoughtProcess(raw),
	}

	if err := ValidateScores(eval.Scores); err != nil {
		return nil, err
	}

	return eval, nil
}

// ParseScores extracts exactly NumQuestions integer scores from a raw model
// response. JSON forms are tried first: a "scores" array, per-question
// "q1".."q17" keys, a bare array, or any all-integer array value. When the
// response is not parseable JSON the scores are recovered line by line,
// stripping question and list prefixes.
func ParseScores(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	cleaned := ExtractJSON(raw)

	if scores, ok := scoresFromJSON(cleaned); ok {
		return scores, nil
	}

	numbers := make([]int, 0, NumQuestions)
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		line = questionPrefixRe.ReplaceAllString(line, "")
		line = listPrefixRe.ReplaceAllString(line, "")

		if match := singleScoreRe.FindStringSubmatch(line); match != nil {
			num, _ := strconv.Atoi(match[1])
			numbers = append(numbers, num)
		}
	}

	if len(numbers) == NumQuestions {
		return numbers, nil
	}

	if len(numbers) > NumQuestions {
		return numbers[:NumQuestions], nil
	}

	// Last resort: scan the whole response for candidate digits.
	all := singleScoreRe.FindAllStringSubmatch(raw, -1)
	if len(all) >= NumQuestions {
		scores := make([]int, 0, NumQuestions)
		for _, match := range all[:NumQuestions] {
			num, _ := strconv.Atoi(match[1])
			scores = append(scores, num)
		}
		return scores, nil
	}

	return nil, fmt.Errorf("could not extract %d valid scores, found %d: %v", NumQuestions, len(numbers), numbers)
}

func scoresFromJSON(raw string) ([]int, bool) {
	var data any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, false
	}

	switch v := data.(type) {
	case map[string]any:
		if scores, ok := scoresFromQuestionKeys(v); ok {
			return scores, true
		}
		if scores, ok := intSlice(v["scores"]); ok && len(scores) == NumQuestions {
			return scores, true
		}
		// Fall back to any value that happens to be an array of NumQuestions integers.
		for _, value := range v {
			if scores, ok := intSlice(value); ok && len(scores) == NumQuestions {
				return scores, true
			}
		}
	case []any:
		if scores, ok := intSlice(v); ok && len(scores) == NumQuestions {
			return scores, true
		}
	}

	return nil, false
}

// scoresFromQuestionKeys handles the per-question object shape produced by the
// Mistral response schema: {"q1": 4, ..., "q17": 1}.
func scoresFromQuestionKeys(data map[string]any) ([]int, bool) {
	if _, ok := data["q1"]; !ok {
		return nil, false
	}
	if _, ok := data[fmt.Sprintf("q%d", NumQuestions)]; !ok {
		return nil, false
	}

	scores := make([]int, 0, NumQuestions)
	for i := 1; i <= NumQuestions; i++ {
		value, ok := data[fmt.Sprintf("q%d", i)]
		if !ok {
			return nil, false
		}
		num, ok := coerceInt(value)
		if !ok {
			return nil, false
		}
		scores = append(scores, num)
	}

	return scores, true
}

// ParseManipulationCheck extracts the YES/NO manipulation check answer.
// Returns ManipulationUnknown when no answer can be located.
func ParseManipulationCheck(raw string) string {
	var data map[string]any
	if err := json.Unmarshal([]byte(ExtractJSON(raw)), &data); err == nil {
		if value, ok := data["manipulation_check"]; ok {
			answer := strings.ToUpper(strings.TrimSpace(fmt.Sprintf("%v", value)))
			if answer == ManipulationYes || answer == ManipulationNo {
				return answer
			}
		}
	}

	upper := strings.ToUpper(raw)
	if yesRe.MatchString(upper) {
		return ManipulationYes
	}
	if noRe.MatchString(upper) {
		return ManipulationNo
	}

	// Look for an answer in the lines following a manipulation check marker.
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		upperLine := strings.ToUpper(line)
		if !strings.Contains(upperLine, "MANIPULATION") && !strings.Contains(upperLine, "Q18") && !strings.Contains(line, "18.") {
			continue
		}
		for j := i; j < len(lines) && j < i+5; j++ {
			candidate := strings.ToUpper(lines[j])
			if yesRe.MatchString(candidate) {
				return ManipulationYes
			}
			if noRe.MatchString(candidate) {
				return ManipulationNo
			}
		}
	}

	return ManipulationUnknown
}

// ParseThoughtProcess extracts the free-text reasoning answer. Returns an
// empty string when nothing usable is found.
func ParseThoughtProcess(raw string) string {
	var data map[string]any
	if err := json.Unmarshal([]byte(ExtractJSON(raw)), &data); err == nil {
		if value, ok := data["thought_process"]; ok {
			if text, ok := value.(string); ok {
				return strings.TrimSpace(text)
			}
		}
	}

	markers := []string{"19.", "q19", "thought process", "explain your thought", "step-by-step", "reasoning"}

	lines := strings.Split(raw, "\n")
	start := -1
	for i, line := range lines {
		lower := strings.ToLower(line)
		for _, marker := range markers {
			if strings.Contains(lower, marker) {
				start = i + 1
				break
			}
		}
		if start > 0 {
			break
		}
	}

	if start > 0 && start < len(lines) {
		text := strings.TrimSpace(strings.Join(lines[start:], "\n"))
		text = trailingYesNoRe.ReplaceAllString(text, "")
		if text != "" {
			return text
		}
	}

	// A long trailing section separated by a divider is likely the explanation.
	sections := regexp.MustCompile(`\n\s*---\s*\n|\n\s*\n\s*\n`).Split(raw, -1)
	if len(sections) > 1 {
		for i := len(sections) - 1; i >= 0; i-- {
			section := strings.TrimSpace(sections[i])
			if len(section) > 100 {
				return trailingYesNoRe.ReplaceAllString(section, "")
			}
		}
	}

	return ""
}

// ExtractJSON strips surrounding markdown code fences from a model response.
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	return strings.TrimSpace(strings.Trim(raw, "`"))
}

func intSlice(v any) ([]int, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}

	scores := make([]int, 0, len(items))
	for _, item := range items {
		num, ok := coerceInt(item)
		if !ok {
			return nil, false
		}
		scores = append(scores, num)
	}

	return scores, true
}

func coerceInt(v any) (int, bool) {
	switch value := v.(type) {
	case float64:
		return int(value), true
	case int:
		return value, true
	case string:
		num, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, false
		}
		return num, true
	default:
		return 0, false
	}
}
