package goal_tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/goaltiers/internal/server"
	"github.com/teemow/goaltiers/internal/tasks"
	"github.com/teemow/goaltiers/internal/tools/batch"
)

type toolEnv struct {
	mcp   *mcpserver.MCPServer
	store *tasks.Store
}

func newToolEnv(t *testing.T, readOnly bool) *toolEnv {
	t.Helper()

	store := tasks.NewStore()
	sc, err := server.NewServerContext(context.Background(), store)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	s := mcpserver.NewMCPServer("goaltiers-test", "1.0.0", mcpserver.WithToolCapabilities(true))
	require.NoError(t, RegisterGoalTools(s, sc, readOnly))

	return &toolEnv{mcp: s, store: store}
}

func (e *toolEnv) call(t *testing.T, name string, args map[string]any) (*mcp.CallToolResult, string) {
	t.Helper()

	tool, ok := e.mcp.ListTools()[name]
	require.True(t, ok, "tool %s is not registered", name)

	result, err := tool.Handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return result, text.Text
}

// jsonBody strips the human readable prefix line from a tool response.
func jsonBody(text string) string {
	if i := strings.Index(text, "\n"); i >= 0 && !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, "[") {
		return text[i+1:]
	}
	return text
}

func TestRegisterGoalTools(t *testing.T) {
	t.Run("all tools", func(t *testing.T) {
		env := newToolEnv(t, false)
		tools := env.mcp.ListTools()
		for _, name := range []string{"goals_list", "goals_get", "goals_create", "goals_update", "goals_delete"} {
			assert.Contains(t, tools, name)
		}
	})

	t.Run("read-only", func(t *testing.T) {
		env := newToolEnv(t, true)
		tools := env.mcp.ListTools()
		assert.Contains(t, tools, "goals_list")
		assert.Contains(t, tools, "goals_get")
		assert.NotContains(t, tools, "goals_create")
		assert.NotContains(t, tools, "goals_update")
		assert.NotContains(t, tools, "goals_delete")
	})

	t.Run("nil server context", func(t *testing.T) {
		s := mcpserver.NewMCPServer("goaltiers-test", "1.0.0")
		assert.Error(t, RegisterGoalTools(s, nil, false))
	})
}

func TestGoalTools_CreateAndList(t *testing.T) {
	env := newToolEnv(t, false)

	result, text := env.call(t, "goals_create", map[string]any{"title": "A", "level": "yearly"})
	require.False(t, result.IsError, text)

	var yearly tasks.Task
	require.NoError(t, json.Unmarshal([]byte(jsonBody(text)), &yearly))
	assert.Equal(t, tasks.LevelYearly, yearly.Level)

	result, text = env.call(t, "goals_create", map[string]any{
		"title":    "B",
		"level":    "quarterly",
		"parentId": yearly.ID,
	})
	require.False(t, result.IsError, text)

	_, text = env.call(t, "goals_list", map[string]any{})
	var all map[string][]tasks.Task
	require.NoError(t, json.Unmarshal([]byte(text), &all))
	require.Len(t, all["yearly"], 1)
	require.Len(t, all["quarterly"], 1)
	require.NotNil(t, all["quarterly"][0].ParentID)
	assert.Equal(t, yearly.ID, *all["quarterly"][0].ParentID)

	_, text = env.call(t, "goals_list", map[string]any{"level": "quarterly"})
	var quarterly []tasks.Task
	require.NoError(t, json.Unmarshal([]byte(text), &quarterly))
	require.Len(t, quarterly, 1)
	assert.Equal(t, "B", quarterly[0].Title)
}

func TestGoalTools_CreateErrors(t *testing.T) {
	env := newToolEnv(t, false)

	tests := []struct {
		name string
		args map[string]any
	}{
		{name: "unknown level", args: map[string]any{"title": "A", "level": "decade"}},
		{name: "missing title", args: map[string]any{"level": "daily"}},
		{name: "yearly with parent", args: map[string]any{"title": "A", "level": "yearly", "parentId": "task_x"}},
		{name: "due date on monthly", args: map[string]any{"title": "A", "level": "monthly", "dueDate": "2025-09-30"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, _ := env.call(t, "goals_create", tt.args)
			assert.True(t, result.IsError)
		})
	}

	assert.Zero(t, env.store.ListAll().Count())
}

func TestGoalTools_ListUnknownLevel(t *testing.T) {
	env := newToolEnv(t, true)

	result, text := env.call(t, "goals_list", map[string]any{"level": "decade"})
	assert.True(t, result.IsError)
	assert.Contains(t, text, "yearly")
}

func TestGoalTools_Get(t *testing.T) {
	env := newToolEnv(t, true)
	created, err := env.store.Create(context.Background(), tasks.CreateInput{Title: "Read", Level: tasks.LevelMonthly})
	require.NoError(t, err)

	_, text := env.call(t, "goals_get", map[string]any{"ids": []any{created.ID, "task_missing"}})

	var summary batch.Summary[tasks.Task]
	require.NoError(t, json.Unmarshal([]byte(text), &summary))
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Successful)
	assert.Equal(t, 1, summary.Failed)
	require.NotNil(t, summary.Results[0].Value)
	assert.Equal(t, "Read", summary.Results[0].Value.Title)
	assert.Contains(t, summary.Results[1].Error, "not found")
}

func TestGoalTools_Update(t *testing.T) {
	env := newToolEnv(t, false)
	created, err := env.store.Create(context.Background(), tasks.CreateInput{Title: "Run", Description: "5k", Level: tasks.LevelWeekly})
	require.NoError(t, err)

	result, text := env.call(t, "goals_update", map[string]any{"id": created.ID, "progress": 60.0})
	require.False(t, result.IsError, text)

	got, err := env.store.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, got.Progress)
	assert.Equal(t, "Run", got.Title)
	assert.Equal(t, "5k", got.Description)
}

func TestGoalTools_UpdateErrors(t *testing.T) {
	env := newToolEnv(t, false)
	created, err := env.store.Create(context.Background(), tasks.CreateInput{Title: "Run", Level: tasks.LevelDaily})
	require.NoError(t, err)

	tests := []struct {
		name string
		args map[string]any
	}{
		{name: "missing id", args: map[string]any{"progress": 10.0}},
		{name: "nothing to update", args: map[string]any{"id": created.ID}},
		{name: "unknown id", args: map[string]any{"id": "task_missing", "progress": 10.0}},
		{name: "progress out of range", args: map[string]any{"id": created.ID, "progress": 150.0}},
		{name: "fractional progress", args: map[string]any{"id": created.ID, "progress": 12.5}},
		{name: "empty title", args: map[string]any{"id": created.ID, "title": "  "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, _ := env.call(t, "goals_update", tt.args)
			assert.True(t, result.IsError)
		})
	}

	got, err := env.store.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Progress)
	assert.Equal(t, "Run", got.Title)
}

func TestGoalTools_Delete(t *testing.T) {
	env := newToolEnv(t, false)
	ctx := context.Background()

	weekly, err := env.store.Create(ctx, tasks.CreateInput{Title: "Week", Level: tasks.LevelWeekly})
	require.NoError(t, err)
	daily, err := env.store.Create(ctx, tasks.CreateInput{Title: "Day", Level: tasks.LevelDaily, ParentID: weekly.ID})
	require.NoError(t, err)

	result, text := env.call(t, "goals_delete", map[string]any{"ids": weekly.ID})
	require.False(t, result.IsError, text)

	_, err = env.store.Get(weekly.ID)
	assert.ErrorIs(t, err, tasks.ErrNotFound)

	child, err := env.store.Get(daily.ID)
	require.NoError(t, err)
	assert.Nil(t, child.ParentID)

	result, _ = env.call(t, "goals_delete", map[string]any{"ids": weekly.ID})
	assert.True(t, result.IsError, "deleting only missing goals fails")

	result, _ = env.call(t, "goals_delete", map[string]any{})
	assert.True(t, result.IsError)
}
