package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wricardo/quizler/game/quiz"
	"github.com/wricardo/quizler/game/service"
)

// Client talks to the server's REST API.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WebSocketURL derives the gateway URL from the API base URL.
func (c *Client) WebSocketURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}

func (c *Client) CreateGame(req service.CreateGameRequest) (*service.GameInfo, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := c.client.Post(c.baseURL+"/api/games", "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	defer resp.Body.Close()

	var game service.GameInfo
	if err := decode(resp, http.StatusCreated, &game); err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	return &game, nil
}

func (c *Client) GetGame(token string) (*service.GameInfo, error) {
	resp, err := c.client.Get(fmt.Sprintf("%s/api/games/%s", c.baseURL, url.PathEscape(token)))
	if err != nil {
		return nil, fmt.Errorf("get game: %w", err)
	}
	defer resp.Body.Close()

	var game service.GameInfo
	if err := decode(resp, http.StatusOK, &game); err != nil {
		return nil, fmt.Errorf("get game %s: %w", token, err)
	}
	return &game, nil
}

// GetQuiz fetches a quiz bank including its answer key.
func (c *Client) GetQuiz(quizID string) (*quiz.Quiz, error) {
	resp, err := c.client.Get(fmt.Sprintf("%s/api/quizzes/%s", c.baseURL, url.PathEscape(quizID)))
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	defer resp.Body.Close()

	var q quiz.Quiz
	if err := decode(resp, http.StatusOK, &q); err != nil {
		return nil, fmt.Errorf("get quiz %s: %w", quizID, err)
	}
	return &q, nil
}

func decode(resp *http.Response, want int, v any) error {
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != want {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
