package tool

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	codeExecDefaultTimeout = 30 * time.Second
	codeExecMaxTimeout     = 120
	codeExecMaxOutput      = 10000
)

// CodeExecutorTool runs Python code in a subprocess. The code is written
// to a temp file inside the workspace and executed with the workspace as
// working directory, under a timeout and an output cap.
type CodeExecutorTool struct {
	workspace   string
	interpreter string
	logger      *slog.Logger
}

func NewCodeExecutorTool(workspace string, logger *slog.Logger) *CodeExecutorTool {
	return &CodeExecutorTool{
		workspace:   workspace,
		interpreter: "python3",
		logger:      logger,
	}
}

func (t *CodeExecutorTool) Name() string { return "code_executor" }

func (t *CodeExecutorTool) Description() string {
	return fmt.Sprintf(
		"Execute Python code and return the output (stdout + stderr). "+
			"Code runs in a subprocess with a %ds timeout. "+
			"Use this for calculations, data processing, generating text, "+
			"or any task that benefits from running code.",
		int(codeExecDefaultTimeout.Seconds()))
}

func (t *CodeExecutorTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code": map[string]any{
				"type":        "string",
				"description": "Python code to execute.",
				"minLength":   1,
			},
			"timeout": map[string]any{
				"type":        "integer",
				"description": fmt.Sprintf("Execution timeout in seconds. Default: %d.", int(codeExecDefaultTimeout.Seconds())),
				"minimum":     1,
				"maximum":     codeExecMaxTimeout,
			},
		},
		"required": []string{"code"},
	}
}

func (t *CodeExecutorTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	code := strings.TrimSpace(ArgsString(args, "code"))
	if code == "" {
		return "", fmt.Errorf("missing argument: code")
	}

	timeout := codeExecDefaultTimeout
	if v, ok := args["timeout"].(float64); ok && v >= 1 {
		secs := int(v)
		if secs > codeExecMaxTimeout {
			secs = codeExecMaxTimeout
		}
		timeout = time.Duration(secs) * time.Second
	}

	if err := os.MkdirAll(t.workspace, 0o755); err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	f, err := os.CreateTemp(t.workspace, "exec_*.py")
	if err != nil {
		return "", fmt.Errorf("write code file: %w", err)
	}
	scriptPath := f.Name()
	defer os.Remove(scriptPath)
	if _, err := f.WriteString(code); err != nil {
		f.Close()
		return "", fmt.Errorf("write code file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("write code file: %w", err)
	}

	t.logger.Info("executing code", "script", scriptPath, "timeout", timeout)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, t.interpreter, scriptPath)
	cmd.Dir = t.workspace
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return fmt.Sprintf("Execution timed out after %ds. Consider optimizing the code or increasing the timeout.",
			int(timeout.Seconds())), nil
	}
	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return "", fmt.Errorf("run %s: %w", t.interpreter, runErr)
		}
	}

	var parts []string
	if out := stdout.String(); out != "" {
		parts = append(parts, fmt.Sprintf("**stdout**:\n```\n%s\n```", truncate(out, codeExecMaxOutput)))
		if len(out) > codeExecMaxOutput {
			parts = append(parts, fmt.Sprintf("*[stdout truncated: %d chars, showing first %d]*", len(out), codeExecMaxOutput))
		}
	}
	if errOut := stderr.String(); errOut != "" {
		parts = append(parts, fmt.Sprintf("**stderr**:\n```\n%s\n```", truncate(errOut, codeExecMaxOutput)))
	}
	if len(parts) == 0 {
		parts = append(parts, "Code executed successfully with no output.")
	}
	parts = append(parts, fmt.Sprintf("**Return code**: %d", exitCode))

	return strings.Join(parts, "\n\n"), nil
}
