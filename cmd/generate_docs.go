package cmd

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/teemow/goaltiers/internal/server"
	"github.com/teemow/goaltiers/internal/tasks"
)

const docsPreamble = "# MCP Tools Reference\n\n" +
	"Every tool registered by `goaltiers mcp`, generated from the tool definitions.\n\n"

const docsReadOnly = "## Read-Only Mode\n\n" +
	"With `--read-only` only `goals_list` and `goals_get` are registered.\n\n"

func newGenerateDocsCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate MCP tool documentation",
		Long: `Write a markdown reference of the MCP tools, built from the
registered tool definitions so it cannot drift from the code.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return runGenerateDocs(cmd.OutOrStdout())
			}
			return writeDocsFile(output, cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func writeDocsFile(path string, status io.Writer) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("failed to write output file: %w", closeErr)
		}
	}()

	if err = runGenerateDocs(f); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(status, "Documentation written to: %s\n", path)
	return nil
}

// runGenerateDocs registers every tool against an empty in-memory store
// and writes their reference to w.
func runGenerateDocs(w io.Writer) error {
	sc, err := server.NewServerContext(context.Background(), tasks.NewStore())
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() { _ = sc.Shutdown() }()

	mcpSrv := newMCPServer()
	if err := registerAllTools(mcpSrv, sc, false); err != nil {
		return err
	}

	byCategory := make(map[string][]mcp.Tool)
	for _, st := range mcpSrv.ListTools() {
		category := toolCategory(st.Tool.Name)
		byCategory[category] = append(byCategory[category], st.Tool)
	}

	_, err = io.WriteString(w, toolsReference(byCategory))
	return err
}

func toolsReference(byCategory map[string][]mcp.Tool) string {
	categories := slices.Sorted(maps.Keys(byCategory))

	var b strings.Builder
	b.WriteString(docsPreamble)

	b.WriteString("## Table of Contents\n\n")
	for _, c := range categories {
		fmt.Fprintf(&b, "- [%s](#%s)\n", c, strings.ToLower(strings.ReplaceAll(c, " ", "-")))
	}
	b.WriteString("\n")
	b.WriteString(docsReadOnly)

	for _, c := range categories {
		list := slices.SortedFunc(slices.Values(byCategory[c]), func(x, y mcp.Tool) int {
			return strings.Compare(x.Name, y.Name)
		})
		fmt.Fprintf(&b, "## %s\n\n", c)
		for _, tool := range list {
			b.WriteString(toolMarkdown(tool))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// toolCategory groups tools by the prefix before the first underscore.
func toolCategory(name string) string {
	if prefix, _, _ := strings.Cut(name, "_"); prefix == "goals" {
		return "Goal Tools"
	}
	return "Other"
}

func toolMarkdown(tool mcp.Tool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s\n\n", tool.Name)
	if tool.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", tool.Description)
	}

	props := tool.InputSchema.Properties
	if len(props) == 0 {
		return b.String()
	}

	b.WriteString("**Arguments:**\n")
	for _, name := range slices.Sorted(maps.Keys(props)) {
		prop, ok := props[name].(map[string]any)
		if !ok {
			continue
		}

		presence := "optional"
		if slices.Contains(tool.InputSchema.Required, name) {
			presence = "required"
		}
		fmt.Fprintf(&b, "- `%s` (%s): %s", name, presence, propertySummary(prop))
		if values := enumValues(prop); len(values) > 0 {
			fmt.Fprintf(&b, " One of: `%s`.", strings.Join(values, "`, `"))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

// propertySummary is the property's description, or its JSON type when
// it has none.
func propertySummary(prop map[string]any) string {
	if desc, ok := prop["description"].(string); ok {
		return desc
	}
	if t, ok := prop["type"].(string); ok {
		return t + " parameter"
	}
	return "any parameter"
}

func enumValues(prop map[string]any) []string {
	switch values := prop["enum"].(type) {
	case []string:
		return values
	case []any:
		out := make([]string, 0, len(values))
		for _, v := range values {
			out = append(out, fmt.Sprint(v))
		}
		return out
	}
	return nil
}
