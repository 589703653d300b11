// Command validate checks quiz bank files before they are deployed to the
// quiz directory. It has two subcommands:
//   - check: parse and validate files (YAML or JSON), flagging content that
//     is legal but probably a mistake such as duplicate answers
//   - stats: summarize every bank in a directory: question mix, worst-case
//     play time and the highest possible score
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/quizler/game/config"
	"github.com/wricardo/quizler/game/quiz"
	"github.com/wricardo/quizler/game/service"
)

// ValidationResult captures the outcome of validating a single file.
// Errors make the file invalid; Warnings and Info never do.
type ValidationResult struct {
	File     string
	Valid    bool
	Errors   []string
	Warnings []string
	Info     []string
}

// validateQuizFile loads a quiz bank exactly the way the server does and then
// lints its content.
func validateQuizFile(path string) ValidationResult {
	result := ValidationResult{
		File:  filepath.Base(path),
		Valid: true,
	}

	q, err := config.ReadQuizFile(path)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	result.Warnings = lintQuiz(q)

	single, multiple := countKinds(q)
	result.Info = append(result.Info,
		fmt.Sprintf("✓ Title: %s", q.Title),
		fmt.Sprintf("✓ Questions: %d (%d single, %d multiple)", len(q.Questions), single, multiple),
		fmt.Sprintf("✓ Timing: countdown %s, answer %s, reveal %s",
			q.Timing.CountdownDuration(), q.Timing.AnswerDuration(), q.Timing.RevealDuration()),
		fmt.Sprintf("✓ Play time: up to %s", playTime(q)),
		fmt.Sprintf("✓ Max score: %d", maxScore(q)),
	)
	if q.MaxPlayers > 0 {
		result.Info = append(result.Info, fmt.Sprintf("✓ Max players: %d", q.MaxPlayers))
	}
	return result
}

// lintQuiz reports content that validates but is likely unintended.
func lintQuiz(q *quiz.Quiz) []string {
	var warnings []string

	seen := make(map[string]int)
	for i, question := range q.Questions {
		n := i + 1
		text := strings.ToLower(strings.TrimSpace(question.Text))
		if first, ok := seen[text]; ok {
			warnings = append(warnings, fmt.Sprintf("Question %d repeats question %d", n, first))
		} else {
			seen[text] = n
		}

		answers := make(map[string]bool)
		for _, a := range question.Answers {
			key := strings.ToLower(strings.TrimSpace(a))
			if answers[key] {
				warnings = append(warnings, fmt.Sprintf("Question %d has duplicate answer %q", n, a))
			}
			answers[key] = true
		}

		if question.Kind == quiz.Multiple && len(question.Correct) == 1 {
			warnings = append(warnings, fmt.Sprintf("Question %d is Multiple but has a single correct answer", n))
		}
		if question.Kind == quiz.Multiple && len(question.Correct) == len(question.Answers) {
			warnings = append(warnings, fmt.Sprintf("Question %d marks every answer correct", n))
		}
	}
	return warnings
}

func countKinds(q *quiz.Quiz) (single, multiple int) {
	for _, question := range q.Questions {
		if question.Kind == quiz.Multiple {
			multiple++
		} else {
			single++
		}
	}
	return single, multiple
}

func playTime(q *quiz.Quiz) time.Duration {
	return time.Duration(service.PlayTime(q)) * time.Millisecond
}

func maxScore(q *quiz.Quiz) uint64 {
	per := uint64(q.Scoring.Correct) + uint64(q.Scoring.SpeedBonus)
	return per * uint64(len(q.Questions))
}

// quizFiles lists quiz bank files in dir, sorted by name.
func quizFiles(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml", "*.json"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// printResult writes a concise report for one file.
func printResult(w io.Writer, result ValidationResult, verbose bool) {
	fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), result.File)

	if !result.Valid {
		fmt.Fprintln(w, "❌ INVALID")
		for _, err := range result.Errors {
			fmt.Fprintln(w, "  ❌ "+err)
		}
		return
	}

	fmt.Fprintln(w, "✅ VALID")
	for _, warning := range result.Warnings {
		fmt.Fprintln(w, "  ⚠ "+warning)
	}
	if verbose {
		for _, info := range result.Info {
			fmt.Fprintln(w, "  "+info)
		}
	}
}

func runCheck(ctx context.Context, cmd *cli.Command) error {
	files := cmd.Args().Slice()
	if len(files) == 0 {
		var err error
		files, err = quizFiles(cmd.String("dir"))
		if err != nil {
			return fmt.Errorf("finding quiz files: %w", err)
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("no quiz files found in %s", cmd.String("dir"))
	}

	w := cmd.Root().Writer
	allValid := true
	warned := false
	for _, file := range files {
		result := validateQuizFile(file)
		printResult(w, result, cmd.Bool("verbose"))
		allValid = allValid && result.Valid
		warned = warned || len(result.Warnings) > 0
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	switch {
	case !allValid:
		return errors.New("❌ Some quiz files have errors")
	case warned && cmd.Bool("strict"):
		return errors.New("⚠ Some quiz files have warnings")
	default:
		fmt.Fprintln(w, "✅ All quiz files are valid!")
		return nil
	}
}

func runStats(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.String("dir")
	files, err := quizFiles(dir)
	if err != nil {
		return fmt.Errorf("finding quiz files: %w", err)
	}

	tw := tabwriter.NewWriter(cmd.Root().Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "QUIZ\tTITLE\tQUESTIONS\tSINGLE\tMULTIPLE\tPLAY TIME\tMAX SCORE")

	var invalid []string
	for _, file := range files {
		q, err := config.ReadQuizFile(file)
		if err != nil {
			invalid = append(invalid, filepath.Base(file))
			continue
		}
		id := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		single, multiple := countKinds(q)
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%d\n",
			id, q.Title, len(q.Questions), single, multiple, playTime(q), maxScore(q))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(invalid) > 0 {
		fmt.Fprintf(cmd.Root().Writer, "\nSkipped invalid files: %s (run check for details)\n", strings.Join(invalid, ", "))
	}
	return nil
}

func dirFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "dir",
		Aliases: []string{"d"},
		Value:   "quizzes",
		Usage:   "directory holding quiz bank files",
		Sources: cli.EnvVars("QUIZLER_GAMES_QUIZ_DIR"),
	}
}

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "validate",
		Usage:  "check quiz bank files",
		Writer: out,
		Commands: []*cli.Command{
			{
				Name:      "check",
				Usage:     "validate quiz files (all files in --dir when none are given)",
				ArgsUsage: "[files...]",
				Flags: []cli.Flag{
					dirFlag(),
					&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "print details for valid files"},
					&cli.BoolFlag{Name: "strict", Usage: "treat warnings as errors"},
				},
				Action: runCheck,
			},
			{
				Name:   "stats",
				Usage:  "summarize every quiz bank in --dir",
				Flags:  []cli.Flag{dirFlag()},
				Action: runStats,
			},
		},
	}
}

func main() {
	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
