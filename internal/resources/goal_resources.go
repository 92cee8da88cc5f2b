package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/goaltiers/internal/server"
	"github.com/teemow/goaltiers/internal/tasks"
)

const (
	// TiersURI is the full goal hierarchy grouped by tier.
	TiersURI = "goals://tiers"

	// SummaryURI is the per-tier progress overview.
	SummaryURI = "goals://summary"
)

// TierSummary describes the goals of one tier.
type TierSummary struct {
	Level           tasks.Level `json:"level"`
	Total           int         `json:"total"`
	Completed       int         `json:"completed"`
	AverageProgress float64     `json:"averageProgress"`
}

// RegisterGoalResources registers read-only views of the goal store
func RegisterGoalResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if sc == nil {
		return fmt.Errorf("server context is required")
	}

	tiersResource := mcp.NewResource(
		TiersURI,
		"Goal Tiers",
		mcp.WithResourceDescription("All goals grouped into yearly, quarterly, monthly, weekly and daily tiers"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(tiersResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleTiers(ctx, request, sc)
	})

	summaryResource := mcp.NewResource(
		SummaryURI,
		"Goal Progress Summary",
		mcp.WithResourceDescription("Number of goals and average progress per tier"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(summaryResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleSummary(ctx, request, sc)
	})

	return nil
}

func handleTiers(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	if err := sc.Store().Refresh(ctx); err != nil {
		return nil, err
	}
	return jsonContents(request.Params.URI, sc.Store().ListAll())
}

func handleSummary(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	if err := sc.Store().Refresh(ctx); err != nil {
		return nil, err
	}
	return jsonContents(request.Params.URI, Summarize(sc.Store().ListAll()))
}

// Summarize computes one TierSummary per tier, coarsest first. A goal
// counts as completed at 100% progress.
func Summarize(tiers tasks.Tiers) []TierSummary {
	out := make([]TierSummary, 0, len(tasks.Levels))
	for _, level := range tasks.Levels {
		list := tiers[level]
		summary := TierSummary{Level: level, Total: len(list)}

		sum := 0
		for _, task := range list {
			sum += task.Progress
			if task.Progress == 100 {
				summary.Completed++
			}
		}
		if len(list) > 0 {
			summary.AverageProgress = float64(sum) / float64(len(list))
		}
		out = append(out, summary)
	}
	return out
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
