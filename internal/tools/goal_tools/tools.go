package goal_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/trace"

	"github.com/teemow/goaltiers/internal/instrumentation"
	"github.com/teemow/goaltiers/internal/server"
	"github.com/teemow/goaltiers/internal/tasks"
	"github.com/teemow/goaltiers/internal/tools/batch"
	"github.com/teemow/goaltiers/internal/tools/common"
)

// levelNames lists the tiers for tool schemas and error messages.
func levelNames() []string {
	names := make([]string, len(tasks.Levels))
	for i, l := range tasks.Levels {
		names[i] = string(l)
	}
	return names
}

// RegisterGoalTools registers all goal tools with the MCP server
func RegisterGoalTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if sc == nil {
		return fmt.Errorf("server context is required")
	}

	registerReadTools(s, sc)

	if !readOnly {
		registerWriteTools(s, sc)
	}

	return nil
}

func registerReadTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	listTool := mcp.NewTool("goals_list",
		mcp.WithDescription("List goals grouped by tier (yearly, quarterly, monthly, weekly, daily)"),
		mcp.WithString("level",
			mcp.Description("Only list goals of this tier"),
			mcp.Enum(levelNames()...),
		),
	)

	s.AddTool(listTool, common.InstrumentedToolHandler("goals_list", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		if err := sc.Store().Refresh(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read goals: %v", err)), nil
		}
		all := sc.Store().ListAll()

		levelArg, _ := args["level"].(string)
		if levelArg == "" {
			sc.Metrics().RecordTaskOperation(ctx, instrumentation.OperationList, "", instrumentation.StatusSuccess)
			return jsonResult(all), nil
		}

		level, err := tasks.ParseLevel(levelArg)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("level must be one of: %s", strings.Join(levelNames(), ", "))), nil
		}
		sc.Metrics().RecordTaskOperation(ctx, instrumentation.OperationList, string(level), instrumentation.StatusSuccess)
		return jsonResult(all[level]), nil
	}))

	getTool := mcp.NewTool("goals_get",
		mcp.WithDescription("Get details of one or more goals"),
		mcp.WithString("ids",
			mcp.Required(),
			mcp.Description("Goal ID (string) or array of goal IDs to retrieve"),
		),
	)

	s.AddTool(getTool, common.InstrumentedToolHandler("goals_get", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids, err := batch.ParseIDs(request.GetArguments()["ids"], "ids")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := sc.Store().Refresh(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read goals: %v", err)), nil
		}

		summary := batch.Process(ids, func(id string) (tasks.Task, error) {
			return sc.Store().Get(id)
		})
		sc.Metrics().RecordTaskOperation(ctx, instrumentation.OperationGet, "", summaryStatus(summary.Failed))

		return mcp.NewToolResultText(summary.JSON()), nil
	}))
}

func registerWriteTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	createTool := mcp.NewTool("goals_create",
		mcp.WithDescription("Create a goal. A parent must be a goal in the tier directly above"),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Goal title"),
		),
		mcp.WithString("level",
			mcp.Required(),
			mcp.Description("Tier of the goal"),
			mcp.Enum(levelNames()...),
		),
		mcp.WithString("description",
			mcp.Description("Optional longer description"),
		),
		mcp.WithString("parentId",
			mcp.Description("ID of the parent goal one tier up (not allowed for yearly goals)"),
		),
		mcp.WithString("dueDate",
			mcp.Description("Due date as YYYY-MM-DD or RFC3339 (weekly and daily goals only)"),
		),
	)

	s.AddTool(createTool, common.InstrumentedToolHandler("goals_create", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		title, _ := args["title"].(string)
		levelArg, _ := args["level"].(string)
		description, _ := args["description"].(string)
		parentID, _ := args["parentId"].(string)
		dueDate, _ := args["dueDate"].(string)

		tm := instrumentation.NewTaskMutation(instrumentation.OperationCreate, instrumentation.SurfaceMCP)

		level, err := tasks.ParseLevel(levelArg)
		if err != nil {
			finishMutation(ctx, sc, tm, tasks.Task{}, err)
			return mcp.NewToolResultError(fmt.Sprintf("level must be one of: %s", strings.Join(levelNames(), ", "))), nil
		}

		task, err := sc.Store().Create(ctx, tasks.CreateInput{
			Title:       title,
			Description: description,
			Level:       level,
			ParentID:    parentID,
			DueDate:     dueDate,
		})
		finishMutation(ctx, sc, tm, task, err)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to create goal: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Goal created successfully:\n%s", marshalIndent(task))), nil
	}))

	updateTool := mcp.NewTool("goals_update",
		mcp.WithDescription("Update a goal's progress, title or description. Tier and parent cannot change"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("ID of the goal to update"),
		),
		mcp.WithNumber("progress",
			mcp.Description("Progress in percent, 0 to 100"),
		),
		mcp.WithString("title",
			mcp.Description("New title"),
		),
		mcp.WithString("description",
			mcp.Description("New description"),
		),
	)

	s.AddTool(updateTool, common.InstrumentedToolHandler("goals_update", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		id, _ := args["id"].(string)
		if id == "" {
			return mcp.NewToolResultError("id is required"), nil
		}

		var in tasks.UpdateInput
		var err error
		if in.Progress, err = common.OptionalInt(args, "progress"); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if in.Title, err = common.OptionalString(args, "title"); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if in.Description, err = common.OptionalString(args, "description"); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if in.Empty() {
			return mcp.NewToolResultError("at least one of progress, title or description is required"), nil
		}

		tm := instrumentation.NewTaskMutation(instrumentation.OperationUpdate, instrumentation.SurfaceMCP)
		task, err := sc.Store().Update(ctx, id, in)
		if err != nil {
			task.ID = id
		}
		finishMutation(ctx, sc, tm, task, err)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to update goal: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Goal updated successfully:\n%s", marshalIndent(task))), nil
	}))

	deleteTool := mcp.NewTool("goals_delete",
		mcp.WithDescription("Delete one or more goals. Goals below a deleted goal are kept and lose their parent"),
		mcp.WithString("ids",
			mcp.Required(),
			mcp.Description("Goal ID (string) or array of goal IDs to delete"),
		),
	)

	s.AddTool(deleteTool, common.InstrumentedToolHandler("goals_delete", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids, err := batch.ParseIDs(request.GetArguments()["ids"], "ids")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := sc.Store().Refresh(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read goals: %v", err)), nil
		}

		summary := batch.Process(ids, func(id string) (tasks.Task, error) {
			tm := instrumentation.NewTaskMutation(instrumentation.OperationDelete, instrumentation.SurfaceMCP)
			task, err := sc.Store().Delete(ctx, id)
			if err != nil {
				task.ID = id
			}
			finishMutation(ctx, sc, tm, task, err)
			return task, err
		})

		result := mcp.NewToolResultText(summary.JSON())
		if summary.Successful == 0 {
			result.IsError = true
		}
		return result, nil
	}))
}

// finishMutation records a task mutation on the tool span, in metrics and
// in the audit log.
func finishMutation(ctx context.Context, sc *server.ServerContext, tm *instrumentation.TaskMutation, task tasks.Task, err error) {
	tier := string(task.Level)

	trace.SpanFromContext(ctx).SetAttributes(
		instrumentation.NewSpanAttributeBuilder().
			WithTaskID(task.ID).
			WithTier(tier).
			WithReadOnly(false).
			Build()...,
	)

	tm.WithTask(task.ID, tier).WithSpanContext(ctx).Complete(err)
	sc.Metrics().RecordTaskOperation(ctx, tm.Action, tier, tm.Status())
	sc.AuditLogger().LogTaskMutation(ctx, tm)
}

func summaryStatus(failed int) string {
	if failed > 0 {
		return instrumentation.StatusError
	}
	return instrumentation.StatusSuccess
}

func marshalIndent(v any) string {
	out, _ := json.MarshalIndent(v, "", "  ")
	return string(out)
}

func jsonResult(v any) *mcp.CallToolResult {
	return mcp.NewToolResultText(marshalIndent(v))
}
