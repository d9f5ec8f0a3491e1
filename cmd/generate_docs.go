package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/spf13/cobra"

	"github.com/damienmail/damien-mcp-server/internal/registry"
)

func newGenerateDocsCmd() *cobra.Command {
	var (
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate tool documentation",
		Long: `Generate markdown documentation for all available tools.
This command introspects the tool registry and outputs their documentation
in markdown format, ensuring the documentation is always accurate and in sync
with the actual tool definitions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerateDocs(outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runGenerateDocs(outputFile string) error {
	reg, err := registry.Default()
	if err != nil {
		return fmt.Errorf("failed to build tool registry: %w", err)
	}

	markdown := generateToolsMarkdown(reg.List())

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(markdown), 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Documentation written to: %s\n", outputFile)
	} else {
		fmt.Print(markdown)
	}

	return nil
}

func generateToolsMarkdown(tools []registry.ToolDefinition) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Tool Reference\n\n")
	sb.WriteString("This document provides a complete reference of all tools exposed by the Damien server.\n\n")
	sb.WriteString("**Note:** This documentation is automatically generated from the tool definitions.\n\n")

	// Table of contents
	sb.WriteString("## Table of Contents\n\n")
	for _, tool := range tools {
		sb.WriteString(fmt.Sprintf("- [%s](#%s)\n", tool.Name, tool.Name))
	}
	sb.WriteString("\n")

	for _, tool := range tools {
		sb.WriteString(generateToolMarkdown(tool))
		sb.WriteString("\n")
	}

	return sb.String()
}

func generateToolMarkdown(tool registry.ToolDefinition) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("### %s\n\n", tool.Name))

	if tool.Description != "" {
		sb.WriteString(fmt.Sprintf("%s\n\n", tool.Description))
	}

	if tool.InputSchema != nil && len(tool.InputSchema.Properties) > 0 {
		sb.WriteString("**Arguments:**\n")

		// Sort properties for consistent output
		propNames := make([]string, 0, len(tool.InputSchema.Properties))
		for name := range tool.InputSchema.Properties {
			propNames = append(propNames, name)
		}
		sort.Strings(propNames)

		for _, name := range propNames {
			prop := tool.InputSchema.Properties[name]

			requiredStr := "optional"
			if contains(tool.InputSchema.Required, name) {
				requiredStr = "required"
			}

			sb.WriteString(fmt.Sprintf("- `%s` (%s, %s): %s", name, propertyType(prop), requiredStr, prop.Description))
			if len(prop.Default) > 0 {
				sb.WriteString(fmt.Sprintf(" Default: `%s`.", string(prop.Default)))
			}
			if len(prop.Enum) > 0 {
				sb.WriteString(fmt.Sprintf(" One of: %s.", formatEnum(prop.Enum)))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func propertyType(prop *jsonschema.Schema) string {
	if prop == nil || prop.Type == "" {
		return "any"
	}
	if prop.Type == "array" && prop.Items != nil && prop.Items.Type != "" {
		return fmt.Sprintf("array of %s", prop.Items.Type)
	}
	return prop.Type
}

func formatEnum(values []any) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		encoded, err := json.Marshal(v)
		if err != nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("`%s`", string(encoded)))
	}
	return strings.Join(parts, ", ")
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
