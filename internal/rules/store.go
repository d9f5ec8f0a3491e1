package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrRuleNotFound is returned when no rule matches the given identifier.
var ErrRuleNotFound = errors.New("rule not found")

// ErrDuplicateRuleName is returned when adding a rule whose name is already
// taken.
var ErrDuplicateRuleName = errors.New("rule name already exists")

// ErrStorage marks failures of the underlying rules file, as opposed to
// lookup misses or invalid rule definitions.
var ErrStorage = errors.New("rule storage error")

func storageErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStorage, fmt.Sprintf(format, args...))
}

// Store persists rules in a single JSON file. All methods are safe for
// concurrent use; writes go through a temp file and rename so a crash cannot
// leave a half-written rules file behind.
type Store struct {
	mu   sync.RWMutex
	path string

	now   func() time.Time
	newID func() string
}

// NewStore creates a store backed by the given file path. The file is
// created on first write; a missing file reads as an empty rule set.
func NewStore(path string) *Store {
	return &Store{
		path:  path,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

// List returns all stored rules in file order.
func (s *Store) List() ([]Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load()
}

// Get returns the rule with the given id or name.
func (s *Store) Get(identifier string) (Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.load()
	if err != nil {
		return Rule{}, err
	}
	if i := indexOf(all, identifier); i >= 0 {
		return all[i], nil
	}
	return Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, identifier)
}

// indexOf resolves an identifier against ids first, then names, so a rule
// whose name collides with another rule's id cannot shadow it.
func indexOf(all []Rule, identifier string) int {
	for i, r := range all {
		if r.ID == identifier {
			return i
		}
	}
	for i, r := range all {
		if r.Name == identifier {
			return i
		}
	}
	return -1
}

// Add validates and stores a new rule, assigning its id and timestamps.
func (s *Store) Add(r Rule) (Rule, error) {
	if r.ConditionConjunction == "" {
		r.ConditionConjunction = ConjunctionAnd
	}
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return Rule{}, err
	}
	for _, existing := range all {
		if existing.Name == r.Name {
			return Rule{}, fmt.Errorf("%w: %s", ErrDuplicateRuleName, r.Name)
		}
	}

	now := s.now().UTC()
	r.ID = s.newID()
	r.CreatedAt = now
	r.UpdatedAt = now

	all = append(all, r)
	if err := s.save(all); err != nil {
		return Rule{}, err
	}
	return r, nil
}

// Delete removes the rule with the given id or name and returns it.
func (s *Store) Delete(identifier string) (Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return Rule{}, err
	}
	i := indexOf(all, identifier)
	if i < 0 {
		return Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, identifier)
	}
	deleted := all[i]
	remaining := append(all[:i:i], all[i+1:]...)
	if err := s.save(remaining); err != nil {
		return Rule{}, err
	}
	return deleted, nil
}

func (s *Store) load() ([]Rule, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, storageErr("failed to read rules file: %v", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var all []Rule
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, storageErr("failed to parse rules file %s: %v", s.path, err)
	}
	return all, nil
}

func (s *Store) save(all []Rule) error {
	if all == nil {
		all = []Rule{}
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return storageErr("failed to encode rules: %v", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return storageErr("failed to create rules directory: %v", err)
	}

	tmp, err := os.CreateTemp(dir, ".rules-*.json")
	if err != nil {
		return storageErr("failed to create temp rules file: %v", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return storageErr("failed to write rules file: %v", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return storageErr("failed to close rules file: %v", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return storageErr("failed to replace rules file: %v", err)
	}
	return nil
}
