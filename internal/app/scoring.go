package app

import "celo-quiz-settlement/internal/domain"

// Score awards domain.PointsPerCorrect for each answer matching the key.
// Missing answers count as incorrect, so a timed-out session scores its answered prefix.
func Score(questions []domain.Question, answers []int) int {
	return correctCount(questions, answers) * domain.PointsPerCorrect
}

func correctCount(questions []domain.Question, answers []int) int {
	correct := 0
	for i, selected := range answers {
		if i >= len(questions) {
			break
		}
		if questions[i].CorrectIndex == selected {
			correct++
		}
	}
	return correct
}
