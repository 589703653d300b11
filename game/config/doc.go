// Package config provides quiz bank management for Quizler.
//
// The config package handles:
//   - Loading quiz banks from YAML or JSON files
//   - Applying default timing and scoring, then validating
//   - Default quiz selection
//   - Quiz bank discovery, listing and saving
//
// Quiz Bank Format:
//
// Each file in the quiz directory is one quiz bank; its file name without
// the extension is the quiz id used to create games.
//
//	title: Capitals
//	timing:
//	  countdown: 3000
//	  answer_window: 10000
//	  reveal: 5000
//	questions:
//	  - text: Capital of France?
//	    answers: [Paris, Lyon, Nice]
//	    correct: [0]
//	  - text: Which are in Europe?
//	    kind: Multiple
//	    answers: [Oslo, Lima, Rome, Quito]
//	    correct: [0, 2]
//
// Durations are milliseconds. Missing timing and scoring use the package
// quiz defaults, and a question without a kind is Single.
//
// Usage:
//
//	manager, err := config.NewManager("quizzes", logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	q, err := manager.LoadQuiz("capitals")
//	id, def := manager.GetDefault()
//	infos, err := manager.ListQuizzes()
package config
