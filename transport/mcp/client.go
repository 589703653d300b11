package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/quizler/game/quiz"
	"github.com/wricardo/quizler/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Quizler",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Quizler - MCP Interface

This is a thin client that proxies all requests to the REST API server.

Quizler hosts real-time multiplayer quiz games. A game is created from a quiz
bank and identified by a short join token. Players join over the websocket
endpoint /ws with that token; the first player to join is the host and starts
the game.

AVAILABLE TOOLS:
- list_quizzes: List quiz banks that games can be created from
- get_quiz: Show a quiz bank including its answer keys
- create_game: Create a game and get its join token
- list_games: List live games
- get_game: Show the players, scores and phase of one game
- end_game: End a game early
- how_to_play: Explain the game flow and the websocket protocol`),
	)

	// Register all tools
	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Quiz banks
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_quizzes",
		Description: "List quiz banks available for new games",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListQuizzes)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_quiz",
		Description: "Show every question of a quiz bank, including the correct answers",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"quiz_id": map[string]interface{}{
					"type":        "string",
					"description": "Quiz bank id, as returned by list_quizzes",
				},
			},
			Required: []string{"quiz_id"},
		},
	}, c.handleGetQuiz)

	// Games
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_game",
		Description: "Create a new game and return its join token",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"quiz_id": map[string]interface{}{
					"type":        "string",
					"description": "Quiz bank to play (optional, defaults to the server default)",
				},
				"countdown_ms": map[string]interface{}{
					"type":        "integer",
					"description": "Countdown before the first question in milliseconds (optional)",
				},
				"answer_window_ms": map[string]interface{}{
					"type":        "integer",
					"description": "Time to answer each question in milliseconds (optional)",
				},
				"reveal_ms": map[string]interface{}{
					"type":        "integer",
					"description": "Time results are shown after each question in milliseconds (optional)",
				},
				"max_players": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of players, 0 for the quiz default (optional)",
				},
			},
		},
	}, c.handleCreateGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_games",
		Description: "List live games",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"state": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"Lobby", "Starting", "Question", "Reveal", "Finished"},
					"description": "Only list games in this phase (optional)",
				},
			},
		},
	}, c.handleListGames)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_game",
		Description: "Get the phase, players and scores of a game",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"token": map[string]interface{}{
					"type":        "string",
					"description": "Join token of the game",
				},
			},
			Required: []string{"token"},
		},
	}, c.handleGetGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "end_game",
		Description: "End a game immediately; players receive the final scores",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"token": map[string]interface{}{
					"type":        "string",
					"description": "Join token of the game",
				},
			},
			Required: []string{"token"},
		},
	}, c.handleEndGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "how_to_play",
		Description: "Explain the game flow and the websocket message protocol",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleHowToPlay)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		args = map[string]interface{}{}
	}
	return args
}

// intArg reads a JSON number argument; absent or non-positive values are 0.
func intArg(args map[string]interface{}, key string) uint64 {
	v, ok := args[key].(float64)
	if !ok || v <= 0 {
		return 0
	}
	return uint64(v)
}

// Tool handlers

func (c *Client) handleListQuizzes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var quizzes []service.QuizInfo
	if err := c.apiCall(ctx, "GET", "/api/quizzes", nil, &quizzes); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Quiz banks (%d):\n\n", len(quizzes))
	for _, q := range quizzes {
		result += formatQuizInfo(&q)
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetQuiz(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	quizID, _ := arguments(request)["quiz_id"].(string)
	if quizID == "" {
		return mcp.NewToolResultError("quiz_id is required"), nil
	}

	var q quiz.Quiz
	if err := c.apiCall(ctx, "GET", "/api/quizzes/"+url.PathEscape(quizID), nil, &q); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatQuiz(quizID, &q)), nil
}

func (c *Client) handleCreateGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	quizID, _ := args["quiz_id"].(string)

	req := service.CreateGameRequest{
		QuizID:     quizID,
		MaxPlayers: int(intArg(args, "max_players")),
	}
	timing := quiz.GameTiming{
		Countdown:    intArg(args, "countdown_ms"),
		AnswerWindow: intArg(args, "answer_window_ms"),
		Reveal:       intArg(args, "reveal_ms"),
	}
	if timing != (quiz.GameTiming{}) {
		req.Timing = &timing
	}

	var game service.GameInfo
	if err := c.apiCall(ctx, "POST", "/api/games", req, &game); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created game: %s\nQuiz: %s (%s)\n", game.Token, game.Title, game.QuizID)
	result += fmt.Sprintf("Questions: %d\n", game.QuestionCount)
	result += formatTiming(game.Timing)
	result += fmt.Sprintf("\nPlayers join by sending {\"ty\":\"TryConnect\",\"token\":%q,\"username\":\"...\"} on /ws\n", game.Token)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListGames(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := "/api/games"
	if state, _ := arguments(request)["state"].(string); state != "" {
		path += "?state=" + url.QueryEscape(state)
	}

	var response struct {
		Count int                `json:"count"`
		Games []service.GameInfo `json:"games"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Live games (%d):\n\n", response.Count)
	for _, g := range response.Games {
		result += fmt.Sprintf("- %s %q [%s] players=%d created=%s\n",
			g.Token, g.Title, formatState(g.State), len(g.Players), g.CreatedAt.Format("15:04:05"))
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	token, _ := arguments(request)["token"].(string)
	if token == "" {
		return mcp.NewToolResultError("token is required"), nil
	}

	var game service.GameInfo
	if err := c.apiCall(ctx, "GET", "/api/games/"+url.PathEscape(token), nil, &game); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGameInfo(&game)), nil
}

func (c *Client) handleEndGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	token, _ := arguments(request)["token"].(string)
	if token == "" {
		return mcp.NewToolResultError("token is required"), nil
	}

	var response map[string]string
	if err := c.apiCall(ctx, "DELETE", "/api/games/"+url.PathEscape(token), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(response["message"]), nil
}

func (c *Client) handleHowToPlay(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(howToPlay), nil
}

const howToPlay = `QUIZLER - HOW TO PLAY

1. Create a game with create_game and share its token.
2. Each player opens a websocket to /ws and sends
   {"ty":"TryConnect","token":"<TOKEN>","username":"<NAME>"}
   The reply is Connected with the player's id, followed by the roster
   (OtherPlayer), the host (HostChanged) and the current GameState.
3. The host sends {"ty":"Start"} to begin the countdown, or
   {"ty":"Cancel"} during the countdown to go back to the lobby.
4. For every question the server sends GameState, BeginQuestion and
   Question. Players answer with
   {"ty":"Answer","index":<question index>,"choices":[<answer index>]}
   Only the first answer per question counts.
5. When time is up, or everyone has answered, each player receives an
   AnswerResult and everyone receives a ScoreUpdate.
6. After the last question the game is Finished and final scores are sent.

SCORING:
A correct answer earns the base points plus a speed bonus that shrinks the
longer you take. Wrong or missing answers earn nothing.

ERRORS:
Problems are reported as {"ty":"Error","error":"<Code>","message":"..."}
with codes such as UnknownToken, UsernameTaken, NotHost and NotJoined.`

// Formatting helpers

func formatState(s quiz.GameState) string {
	switch s.Phase {
	case quiz.PhaseQuestion, quiz.PhaseReveal:
		return fmt.Sprintf("%s %d", s.Phase, s.Index+1)
	default:
		return string(s.Phase)
	}
}

func formatTiming(t quiz.GameTiming) string {
	return fmt.Sprintf("Timing: countdown %s, answer %s, reveal %s\n",
		t.CountdownDuration(), t.AnswerDuration(), t.RevealDuration())
}

func formatQuizInfo(q *service.QuizInfo) string {
	result := fmt.Sprintf("- %s: %s (%d questions", q.QuizID, q.Title, q.QuestionCount)
	if q.MaxPlayers > 0 {
		result += fmt.Sprintf(", max %d players", q.MaxPlayers)
	}
	result += fmt.Sprintf(", up to %s)\n", time.Duration(q.PlayTime)*time.Millisecond)
	if q.Description != "" {
		result += fmt.Sprintf("  %s\n", q.Description)
	}
	return result
}

func formatQuiz(id string, q *quiz.Quiz) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Quiz %s: %s\n", id, q.Title)
	if q.Description != "" {
		fmt.Fprintf(&b, "%s\n", q.Description)
	}
	b.WriteString(formatTiming(q.Timing))
	fmt.Fprintf(&b, "Scoring: %d points plus up to %d speed bonus\n\n", q.Scoring.Correct, q.Scoring.SpeedBonus)

	for i, question := range q.Questions {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, question.Kind, question.Text)
		for j, answer := range question.Answers {
			mark := " "
			for _, c := range question.Correct {
				if c == j {
					mark = "*"
				}
			}
			fmt.Fprintf(&b, "   %s %d) %s\n", mark, j, answer)
		}
	}
	return b.String()
}

func formatGameInfo(g *service.GameInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Game %s: %s (%s)\n", g.Token, g.Title, g.QuizID)
	fmt.Fprintf(&b, "Phase: %s\n", formatState(g.State))
	fmt.Fprintf(&b, "Questions: %d\n", g.QuestionCount)
	if g.MaxPlayers > 0 {
		fmt.Fprintf(&b, "Players: %d/%d\n", len(g.Players), g.MaxPlayers)
	} else {
		fmt.Fprintf(&b, "Players: %d\n", len(g.Players))
	}
	b.WriteString(formatTiming(g.Timing))

	for _, p := range g.Players {
		var tags []string
		if p.Host {
			tags = append(tags, "host")
		}
		if p.Ready {
			tags = append(tags, "ready")
		}
		line := fmt.Sprintf("  #%d %s: %d", p.ID, p.Name, p.Score)
		if len(tags) > 0 {
			line += " (" + strings.Join(tags, ", ") + ")"
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
