package tool

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"merobot/internal/domain"
)

const maxSubAgentIterations = 5

const subAgentSystemPrompt = `You are a sub-agent spawned to handle a specific task.
Complete the task using the tools available to you.
Be thorough but concise in your response.
Return only the final result, without commentary about being a sub-agent.`

// SubAgentTool delegates a task to a separate model call with its own
// message thread. The sub-agent can use every registered tool except
// this one, which keeps it from spawning further sub-agents.
type SubAgentTool struct {
	provider    domain.Provider
	executor    domain.ToolExecutor
	model       string
	maxTokens   int
	temperature float64
	logger      *slog.Logger
}

func NewSubAgentTool(provider domain.Provider, executor domain.ToolExecutor, model string, maxTokens int, temperature float64, logger *slog.Logger) *SubAgentTool {
	return &SubAgentTool{
		provider:    provider,
		executor:    executor,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}
}

func (t *SubAgentTool) Name() string { return "sub_agent" }
func (t *SubAgentTool) Description() string {
	return "Spawn a sub-agent to handle a delegated task. Useful for breaking complex tasks into smaller parts " +
		"or running a separate line of investigation. The sub-agent has access to the same tools " +
		"(except spawning more sub-agents) and returns its final text response."
}
func (t *SubAgentTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task": map[string]any{
				"type":        "string",
				"description": "Clear description of the task for the sub-agent",
				"minLength":   1,
			},
			"context": map[string]any{
				"type":        "string",
				"description": "Optional background information to help the sub-agent",
			},
		},
		"required": []string{"task"},
	}
}

func (t *SubAgentTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	task := strings.TrimSpace(ArgsString(args, "task"))
	if task == "" {
		return "", fmt.Errorf("missing argument: task")
	}
	background := strings.TrimSpace(ArgsString(args, "context"))

	t.logger.Info("sub-agent spawned", "task", truncate(task, 100))

	messages := []domain.Message{
		{Role: domain.RoleSystem, Content: subAgentSystemPrompt},
	}
	if background != "" {
		messages = append(messages, domain.Message{Role: domain.RoleUser, Content: "Context: " + background})
	}
	messages = append(messages, domain.Message{Role: domain.RoleUser, Content: task})

	// Exclude this tool so the sub-agent cannot recurse.
	var defs []domain.ToolDefinition
	for _, d := range t.executor.Definitions() {
		if d.Name != t.Name() {
			defs = append(defs, d)
		}
	}

	var last *domain.ChatResponse
	for i := 0; i < maxSubAgentIterations; i++ {
		resp, err := t.provider.Chat(ctx, domain.ChatRequest{
			Model:       t.model,
			Messages:    messages,
			Tools:       defs,
			MaxTokens:   t.maxTokens,
			Temperature: t.temperature,
		})
		if err != nil {
			return "", fmt.Errorf("sub-agent model call: %w", err)
		}
		last = resp

		if !resp.HasToolCalls() {
			if resp.Content == "" {
				return "Sub-agent completed but produced no output.", nil
			}
			t.logger.Info("sub-agent completed", "iterations", i+1)
			return resp.Content, nil
		}

		messages = append(messages, domain.Message{
			Role:      domain.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, tc := range resp.ToolCalls {
			t.logger.Info("sub-agent executing tool", "tool", tc.Name)
			result := t.executor.Execute(ctx, tc.Name, tc.Arguments)
			messages = append(messages, domain.Message{
				Role:       domain.RoleTool,
				ToolCallID: tc.ID,
				ToolName:   tc.Name,
				Content:    result,
			})
		}
	}

	t.logger.Warn("sub-agent iteration limit reached", "limit", maxSubAgentIterations)
	if last != nil && last.Content != "" {
		return last.Content, nil
	}
	return "Sub-agent reached its iteration limit without a final answer.", nil
}
