// Command quizbots fills a game with simulated players for load and
// end-to-end testing.
//
// Usage:
//
//	quizbots --bots 8 --quiz general
//	quizbots --token ABCDE --bots 3 --accuracy 0.7 --think 2s
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/wricardo/quizler/game/quiz"
	"github.com/wricardo/quizler/game/service"
	"github.com/wricardo/quizler/observability"
	"github.com/wricardo/quizler/settings"
)

// Options controls one simulation run.
type Options struct {
	ServerURL string
	Token     string
	QuizID    string
	Bots      int
	Prefix    string
	Accuracy  float64
	MaxThink  time.Duration
	Seed      uint64
	Timing    *quiz.GameTiming
	Logger    *zap.Logger
}

// Run joins opts.Bots players to a game, starts it and plays it to the end.
// A game is created first when no token is given.
func Run(ctx context.Context, opts Options) (string, []Result, error) {
	if opts.Bots < 1 {
		return "", nil, errors.New("at least one bot is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	client := NewClient(opts.ServerURL)
	wsURL, err := client.WebSocketURL()
	if err != nil {
		return "", nil, err
	}

	token, quizID := opts.Token, opts.QuizID
	if token == "" {
		game, err := client.CreateGame(service.CreateGameRequest{
			QuizID:     opts.QuizID,
			Timing:     opts.Timing,
			MaxPlayers: opts.Bots,
		})
		if err != nil {
			return "", nil, err
		}
		token, quizID = game.Token, game.QuizID
		logger.Info("created game", zap.String("token", token), zap.String("quiz", game.Title))
	} else if opts.Accuracy > 0 && quizID == "" {
		game, err := client.GetGame(token)
		if err != nil {
			return token, nil, err
		}
		quizID = game.QuizID
	}

	var key *quiz.Quiz
	if opts.Accuracy > 0 {
		if key, err = client.GetQuiz(quizID); err != nil {
			return token, nil, err
		}
	}

	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	bots := make([]*Bot, 0, opts.Bots)
	defer func() {
		for _, b := range bots {
			b.Close()
		}
	}()
	for i := 0; i < opts.Bots; i++ {
		rng := rand.New(rand.NewPCG(seed, uint64(i)))
		var strategy Strategy = NewRandomStrategy(rng)
		if key != nil {
			strategy = NewOracleStrategy(key, opts.Accuracy, rng)
		}

		name := fmt.Sprintf("%s-%d", opts.Prefix, i+1)
		b, err := Dial(ctx, wsURL, name, strategy, opts.MaxThink, rng, logger)
		if err != nil {
			return token, nil, err
		}
		bots = append(bots, b)
		if err := b.Join(token); err != nil {
			return token, nil, fmt.Errorf("%s: join %s: %w", name, token, err)
		}
	}
	logger.Info("all bots joined", zap.Int("bots", len(bots)))

	start := make(chan struct{})
	results := make([]Result, len(bots))
	errs := make([]error, len(bots))
	var wg sync.WaitGroup
	for i, b := range bots {
		wg.Add(1)
		go func(i int, b *Bot) {
			defer wg.Done()
			results[i], errs[i] = b.Play(ctx, start)
		}(i, b)
	}
	close(start)
	wg.Wait()

	return token, results, errors.Join(errs...)
}

// Leaderboard orders results by score, then name.
func Leaderboard(results []Result) []Result {
	sorted := append([]Result(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Name < sorted[j].Name
	})
	return sorted
}

func printResults(w io.Writer, token string, results []Result) {
	fmt.Fprintf(w, "Game %s\n", token)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tBOT\tSCORE\tCORRECT\tANSWERED")
	for i, r := range Leaderboard(results) {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\n", i+1, r.Name, r.Score, r.Correct, r.Answered)
	}
	tw.Flush()
}

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "quizbots",
		Usage:  "play a game with simulated players",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "server base URL", Sources: cli.EnvVars("QUIZLER_URL")},
			&cli.StringFlag{Name: "token", Usage: "join an existing game instead of creating one"},
			&cli.StringFlag{Name: "quiz", Usage: "quiz bank for a new game (empty for the built-in quiz)"},
			&cli.IntFlag{Name: "bots", Aliases: []string{"n"}, Value: 4, Usage: "number of players"},
			&cli.StringFlag{Name: "prefix", Value: "bot", Usage: "player name prefix"},
			&cli.FloatFlag{Name: "accuracy", Usage: "chance of answering correctly using the quiz answer key (0 guesses)"},
			&cli.DurationFlag{Name: "think", Value: time.Second, Usage: "maximum delay before answering"},
			&cli.Uint64Flag{Name: "seed", Usage: "random seed (0 for time based)"},
			&cli.DurationFlag{Name: "answer-window", Usage: "answer window override for a new game"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "debug logging"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			level := "info"
			if cmd.Bool("verbose") {
				level = "debug"
			}
			logger, err := observability.NewLogger(settings.LoggingConfig{Level: level, Format: "console"})
			if err != nil {
				return err
			}
			defer logger.Sync()

			opts := Options{
				ServerURL: cmd.String("url"),
				Token:     cmd.String("token"),
				QuizID:    cmd.String("quiz"),
				Bots:      cmd.Int("bots"),
				Prefix:    cmd.String("prefix"),
				Accuracy:  cmd.Float("accuracy"),
				MaxThink:  cmd.Duration("think"),
				Seed:      cmd.Uint64("seed"),
				Logger:    logger,
			}
			if w := cmd.Duration("answer-window"); w > 0 {
				opts.Timing = &quiz.GameTiming{AnswerWindow: uint64(w.Milliseconds())}
			}

			token, results, err := Run(ctx, opts)
			if len(results) > 0 {
				printResults(cmd.Root().Writer, token, results)
			}
			return err
		},
	}
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
