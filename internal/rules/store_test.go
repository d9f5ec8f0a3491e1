package rules

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "rules.json"))
	s.now = func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func testRule(name string) Rule {
	return Rule{
		Name:       name,
		IsEnabled:  true,
		Conditions: []Condition{{Field: FieldFrom, Operator: OpContains, Value: "news@"}},
		Actions:    []Action{{Type: ActionTrash}},
	}
}

func TestStoreAddAssignsIDAndTimestamps(t *testing.T) {
	s := newTestStore(t)

	created, err := s.Add(testRule("newsletters"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, s.now(), created.CreatedAt)
	assert.Equal(t, s.now(), created.UpdatedAt)
	assert.Equal(t, ConjunctionAnd, created.ConditionConjunction)
}

func TestStoreMissingFileReadsEmpty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "does-not-exist.json"))
	all, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStoreRejectsDuplicateNames(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Add(testRule("newsletters"))
	require.NoError(t, err)

	_, err = s.Add(testRule("newsletters"))
	assert.ErrorIs(t, err, ErrDuplicateRuleName)
}

func TestStoreRejectsInvalidRule(t *testing.T) {
	s := newTestStore(t)

	r := testRule("broken")
	r.Actions = nil
	_, err := s.Add(r)
	assert.ErrorContains(t, err, "no actions")

	all, lerr := s.List()
	require.NoError(t, lerr)
	assert.Empty(t, all)
}

func TestStoreGetByIDOrName(t *testing.T) {
	s := newTestStore(t)

	created, err := s.Add(testRule("newsletters"))
	require.NoError(t, err)

	byID, err := s.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, byID.Name)

	byName, err := s.Get("newsletters")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	_, err = s.Get("unknown")
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestStoreDelete(t *testing.T) {
	s := newTestStore(t)

	created, err := s.Add(testRule("newsletters"))
	require.NoError(t, err)
	_, err = s.Add(testRule("receipts"))
	require.NoError(t, err)

	deleted, err := s.Delete(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "newsletters", deleted.Name)

	all, err := s.List()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "receipts", all[0].Name)

	_, err = s.Delete(created.ID)
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestStoreResolvesIDBeforeName(t *testing.T) {
	s := newTestStore(t)
	ids := []string{"rule-1", "rule-2"}
	s.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	// The first rule's name collides with the second rule's id and sits
	// earlier in the file.
	_, err := s.Add(testRule("rule-2"))
	require.NoError(t, err)
	second, err := s.Add(testRule("newsletters"))
	require.NoError(t, err)
	require.Equal(t, "rule-2", second.ID)

	got, err := s.Get("rule-2")
	require.NoError(t, err)
	assert.Equal(t, "newsletters", got.Name)

	deleted, err := s.Delete("rule-2")
	require.NoError(t, err)
	assert.Equal(t, "newsletters", deleted.Name)

	all, err := s.List()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "rule-2", all[0].Name)
}

func TestStorePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")

	first := NewStore(path)
	created, err := first.Add(testRule("newsletters"))
	require.NoError(t, err)

	second := NewStore(path)
	got, err := second.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "newsletters", got.Name)
}

func TestStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := NewStore(path)
	_, err := s.List()
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorContains(t, err, "failed to parse rules file")
}
