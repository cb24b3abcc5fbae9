package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"
)

const recentCasesLimit = 20

func (s *Server) registerResources() {
	// edai://cases/recent: most recently filed cases.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"edai://cases/recent",
			"Recent Cases",
			mcplib.WithResourceDescription("The most recently filed dispute cases"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleRecentCases,
	)

	// edai://case/{id}: one case with its current status and analysis.
	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			"edai://case/{id}",
			"Case",
			mcplib.WithTemplateDescription("A dispute case with its status, evidence metadata, and latest analysis"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		s.handleCase,
	)
}

func jsonResource(uri string, v any) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal %s: %w", uri, err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleRecentCases(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	list, err := s.cases.List(ctx, recentCasesLimit)
	if err != nil {
		return nil, fmt.Errorf("mcp: list cases: %w", err)
	}
	return jsonResource(request.Params.URI, list)
}

func (s *Server) handleCase(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	uri := request.Params.URI
	raw := strings.TrimPrefix(uri, "edai://case/")
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("mcp: invalid case id %q: %w", raw, err)
	}
	c, err := s.cases.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("mcp: get case %s: %w", id, err)
	}
	return jsonResource(uri, c)
}
