package cli

import "testing"

func TestBundledQuizzesAreValid(t *testing.T) {
	for id, quiz := range bundledQuizzes() {
		if quiz.ID != id {
			t.Fatalf("quiz %s has id %s", id, quiz.ID)
		}
		if err := quiz.Validate(); err != nil {
			t.Fatalf("quiz %s: %v", id, err)
		}
	}
}
