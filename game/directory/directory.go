package directory

import (
	"crypto/rand"
	"errors"
	"strings"
	"sync"

	"github.com/wricardo/quizler/game/engine"
)

var (
	ErrNotFound   = errors.New("game not found")
	ErrTokenTaken = errors.New("token already registered")
	ErrEmptyToken = errors.New("token is required")
)

// TokenLength is the number of characters in a generated join token.
const TokenLength = 5

// tokenAlphabet leaves out characters that are easy to misread (0/O, 1/I/L).
const tokenAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// Directory maps join tokens to live games
type Directory struct {
	games map[string]*engine.Game
	mu    sync.RWMutex
}

// New creates an empty directory
func New() *Directory {
	return &Directory{
		games: make(map[string]*engine.Game),
	}
}

// GenerateToken returns a random token that is not currently registered.
// It does not reserve the token; Register may still report ErrTokenTaken.
func (d *Directory) GenerateToken() string {
	for {
		token := randomToken()
		d.mu.RLock()
		_, exists := d.games[normalize(token)]
		d.mu.RUnlock()
		if !exists {
			return token
		}
	}
}

// Register adds a game under token (case-insensitive)
func (d *Directory) Register(token string, g *engine.Game) error {
	if strings.TrimSpace(token) == "" {
		return ErrEmptyToken
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	key := normalize(token)
	if existing, ok := d.games[key]; ok && !closed(existing) {
		return ErrTokenTaken
	}
	d.games[key] = g
	return nil
}

// Resolve looks up a live game. A game that has already torn down is
// reported as ErrNotFound even if it has not been unregistered yet.
func (d *Directory) Resolve(token string) (*engine.Game, error) {
	d.mu.RLock()
	g, ok := d.games[normalize(token)]
	d.mu.RUnlock()

	if !ok || closed(g) {
		return nil, ErrNotFound
	}
	return g, nil
}

// Unregister removes token only if it still maps to g, so a late call from a
// torn down game never removes a newer registration.
func (d *Directory) Unregister(token string, g *engine.Game) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := normalize(token)
	if current, ok := d.games[key]; ok && current == g {
		delete(d.games, key)
		return true
	}
	return false
}

// List returns all live games
func (d *Directory) List() []*engine.Game {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]*engine.Game, 0, len(d.games))
	for _, g := range d.games {
		if !closed(g) {
			result = append(result, g)
		}
	}
	return result
}

// Count returns the number of registered games
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.games)
}

func normalize(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}

func closed(g *engine.Game) bool {
	select {
	case <-g.Done():
		return true
	default:
		return false
	}
}

func randomToken() string {
	buf := make([]byte, TokenLength)
	if _, err := rand.Read(buf); err != nil {
		panic("directory: crypto/rand failed: " + err.Error())
	}
	for i, b := range buf {
		buf[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(buf)
}
