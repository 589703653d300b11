package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/wricardo/quizler/game/quiz"
	"github.com/wricardo/quizler/game/service"
)

var (
	ErrQuizNotFound = service.ErrQuizNotFound
	ErrInvalidQuiz  = service.ErrInvalidQuiz
)

// DefaultQuizID is used as the default quiz when a bank with that name exists.
const DefaultQuizID = "general"

// extensions are tried in order when resolving a quiz id to a file.
var extensions = []string{".yaml", ".yml", ".json"}

// Manager handles quiz bank loading and caching
type Manager struct {
	quizDir     string
	defaultID   string
	defaultQuiz *quiz.Quiz
	quizzes     map[string]*quiz.Quiz
	logger      *zap.Logger
	mu          sync.RWMutex
}

// NewManager creates a new quiz bank manager for quizDir
func NewManager(quizDir string, logger *zap.Logger) (*Manager, error) {
	if _, err := os.Stat(quizDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("quiz directory does not exist: %s", quizDir)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		quizDir: quizDir,
		quizzes: make(map[string]*quiz.Quiz),
		logger:  logger,
	}
	m.loadDefaultQuiz()
	return m, nil
}

// LoadQuiz loads a quiz bank by id. The returned quiz is shared with the
// cache and must not be modified.
func (m *Manager) LoadQuiz(id string) (*quiz.Quiz, error) {
	id = quizID(id)
	if !validID(id) {
		return nil, fmt.Errorf("%w: %s", ErrQuizNotFound, id)
	}

	m.mu.RLock()
	if q, exists := m.quizzes[id]; exists {
		m.mu.RUnlock()
		return q, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if q, exists := m.quizzes[id]; exists {
		return q, nil
	}

	path, err := m.findFile(id)
	if err != nil {
		return nil, err
	}
	q, err := ReadQuizFile(path)
	if err != nil {
		return nil, err
	}

	m.quizzes[id] = q
	return q, nil
}

// ListQuizzes returns information about all valid quiz banks, sorted by id
func (m *Manager) ListQuizzes() ([]*service.QuizInfo, error) {
	entries, err := os.ReadDir(m.quizDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read quiz directory: %w", err)
	}

	seen := make(map[string]bool)
	var infos []*service.QuizInfo
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") || !isQuizFile(entry.Name()) {
			continue
		}
		id := quizID(entry.Name())
		if seen[id] {
			continue
		}

		q, err := m.LoadQuiz(id)
		if err != nil {
			m.logger.Warn("skipping quiz bank", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		seen[id] = true

		infos = append(infos, &service.QuizInfo{
			Filename:      entry.Name(),
			QuizID:        id,
			Title:         q.Title,
			Description:   q.Description,
			QuestionCount: len(q.Questions),
			MaxPlayers:    q.MaxPlayers,
			PlayTime:      service.PlayTime(q),
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].QuizID < infos[j].QuizID })
	return infos, nil
}

// GetDefault returns the default quiz and its id
func (m *Manager) GetDefault() (string, *quiz.Quiz) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultID, m.defaultQuiz
}

// SetDefault sets the default quiz by id
func (m *Manager) SetDefault(id string) error {
	q, err := m.LoadQuiz(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultID, m.defaultQuiz = quizID(id), q
	return nil
}

// RefreshCache drops all cached quizzes so they are re-read from disk
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	m.quizzes = make(map[string]*quiz.Quiz)
	m.mu.Unlock()

	m.loadDefaultQuiz()
}

// SaveQuiz validates q and writes it to disk. An existing file keeps its
// format; new quiz banks are written as YAML.
func (m *Manager) SaveQuiz(id string, q *quiz.Quiz) error {
	id = quizID(id)
	if !validID(id) {
		return fmt.Errorf("%w: bad quiz id %q", ErrInvalidQuiz, id)
	}

	q = q.Clone()
	q.ApplyDefaults()
	if err := quiz.ValidateQuiz(q); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuiz, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	path, err := m.findFile(id)
	if err != nil {
		path = filepath.Join(m.quizDir, id+".yaml")
	}

	var data []byte
	if filepath.Ext(path) == ".json" {
		data, err = json.MarshalIndent(q, "", "  ")
	} else {
		data, err = yaml.Marshal(q)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal quiz: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write quiz file: %w", err)
	}

	m.quizzes[id] = q
	if m.defaultID == id {
		m.defaultQuiz = q
	}
	return nil
}

// ReadQuizFile parses, defaults and validates one quiz bank file
func ReadQuizFile(path string) (*quiz.Quiz, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrQuizNotFound, path)
		}
		return nil, fmt.Errorf("failed to read quiz file: %w", err)
	}

	var q quiz.Quiz
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &q)
	default:
		err = yaml.Unmarshal(data, &q)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidQuiz, filepath.Base(path), err)
	}

	q.ApplyDefaults()
	if err := quiz.ValidateQuiz(&q); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuiz, err)
	}
	return &q, nil
}

// findFile resolves an id to an existing file. Callers hold m.mu.
func (m *Manager) findFile(id string) (string, error) {
	if !validID(id) {
		return "", fmt.Errorf("%w: %s", ErrQuizNotFound, id)
	}
	for _, ext := range extensions {
		path := filepath.Join(m.quizDir, id+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrQuizNotFound, id)
}

// loadDefaultQuiz picks general, then the first valid bank, then a built-in quiz
func (m *Manager) loadDefaultQuiz() {
	id, q := DefaultQuizID, (*quiz.Quiz)(nil)
	if loaded, err := m.LoadQuiz(DefaultQuizID); err == nil {
		q = loaded
	} else if infos, err := m.ListQuizzes(); err == nil && len(infos) > 0 {
		id = infos[0].QuizID
		q, _ = m.LoadQuiz(id)
	}
	if q == nil {
		id, q = "default", createMinimalQuiz()
	}

	m.mu.Lock()
	m.defaultID, m.defaultQuiz = id, q
	m.mu.Unlock()
}

func quizID(name string) string {
	name = strings.TrimSpace(name)
	for _, ext := range extensions {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}

// validID reports whether id names a file directly inside the quiz directory.
func validID(id string) bool {
	return id != "" && id == filepath.Base(id) && !strings.HasPrefix(id, ".") && !strings.ContainsRune(id, '\\')
}

func isQuizFile(name string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// createMinimalQuiz creates a minimal valid quiz
func createMinimalQuiz() *quiz.Quiz {
	q := &quiz.Quiz{
		Title:       "Warm-up",
		Description: "Built-in quiz used when no quiz banks are available",
		Questions: []quiz.Question{
			{
				Text:    "How many days are in a leap year?",
				Kind:    quiz.Single,
				Answers: []string{"364", "365", "366", "367"},
				Correct: []int{2},
			},
			{
				Text:    "Which of these are primary colours of light?",
				Kind:    quiz.Multiple,
				Answers: []string{"Red", "Yellow", "Green", "Blue"},
				Correct: []int{0, 2, 3},
			},
			{
				Text:    "What is the chemical symbol for gold?",
				Kind:    quiz.Single,
				Answers: []string{"Ag", "Au", "Gd", "Go"},
				Correct: []int{1},
			},
		},
	}
	q.ApplyDefaults()
	return q
}
