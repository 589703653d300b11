package quiz

func validQuiz() *Quiz {
	return &Quiz{
		Title:       "Capitals",
		Description: "World capitals",
		Timing:      GameTiming{Countdown: 3000, AnswerWindow: 10000, Reveal: 5000},
		Scoring:     Scoring{Correct: 500, SpeedBonus: 500},
		Questions: []Question{
			{
				Text:    "Capital of France?",
				Kind:    Single,
				Answers: []string{"Paris", "Lyon", "Nice"},
				Correct: []int{0},
			},
			{
				Text:    "Which are in Europe?",
				Kind:    Multiple,
				Answers: []string{"Oslo", "Lima", "Rome", "Quito"},
				Correct: []int{0, 2},
			},
		},
	}
}
