package stats_test

import (
	"encoding/json"
	"testing"

	"github.com/gi8lino/jirabridge/internal/normalize"
	"github.com/gi8lino/jirabridge/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate(t *testing.T) {
	t.Parallel()

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()

		s := stats.Aggregate(nil)
		assert.Equal(t, 0, s.Total)
		assert.NotNil(t, s.ByStatus)
		assert.Empty(t, s.ByStatus)
		assert.Empty(t, s.ByPriority)
		assert.Empty(t, s.ByIssueType)

		b, err := json.Marshal(s)
		require.NoError(t, err)
		assert.JSONEq(t, `{"total":0,"byStatus":{},"byPriority":{},"byIssueType":{}}`, string(b))
	})

	t.Run("counts every issue once per dimension", func(t *testing.T) {
		t.Parallel()

		issues := []normalize.Issue{
			{Key: "A-1", Status: "Done", Priority: "High", IssueType: "Bug"},
			{Key: "A-2", Status: "Done", Priority: "Low", IssueType: "Story"},
			{Key: "A-3", Status: "To Do", Priority: "High", IssueType: "Bug"},
		}

		s := stats.Aggregate(issues)
		assert.Equal(t, 3, s.Total)
		assert.Equal(t, map[string]int{"Done": 2, "To Do": 1}, s.ByStatus)
		assert.Equal(t, map[string]int{"High": 2, "Low": 1}, s.ByPriority)
		assert.Equal(t, map[string]int{"Bug": 2, "Story": 1}, s.ByIssueType)

		sum := 0
		for _, n := range s.ByStatus {
			sum += n
		}
		assert.Equal(t, len(issues), sum)
	})

	t.Run("empty values use default buckets", func(t *testing.T) {
		t.Parallel()

		s := stats.Aggregate([]normalize.Issue{{Key: "A-1"}})
		assert.Equal(t, map[string]int{"Unknown": 1}, s.ByStatus)
		assert.Equal(t, map[string]int{"Medium": 1}, s.ByPriority)
		assert.Equal(t, map[string]int{"Unknown": 1}, s.ByIssueType)
	})

	t.Run("is deterministic", func(t *testing.T) {
		t.Parallel()

		issues := []normalize.Issue{
			{Status: "Done", Priority: "High", IssueType: "Bug"},
			{Status: "Open", Priority: "Low", IssueType: "Task"},
		}
		assert.Equal(t, stats.Aggregate(issues), stats.Aggregate(issues))
	})
}
