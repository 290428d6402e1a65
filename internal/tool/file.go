package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const fileReadMaxBytes = 256 * 1024

// resolvePath resolves a path relative to the workspace and rejects
// anything that escapes it.
func resolvePath(workspace, path string) (string, error) {
	path = strings.TrimSpace(path)
	if !filepath.IsAbs(path) && workspace != "" {
		path = filepath.Join(workspace, path)
	}
	resolved, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if workspace != "" {
		wsAbs, err := filepath.Abs(workspace)
		if err != nil {
			return "", fmt.Errorf("resolve workspace: %w", err)
		}
		if resolved != wsAbs && !strings.HasPrefix(resolved, wsAbs+string(filepath.Separator)) {
			return "", fmt.Errorf("path %q is outside workspace", path)
		}
	}
	return resolved, nil
}

// FileReadTool reads a file inside the workspace.
type FileReadTool struct {
	workspace string
}

func NewFileReadTool(workspace string) *FileReadTool {
	return &FileReadTool{workspace: workspace}
}

func (t *FileReadTool) Name() string { return "file_read" }
func (t *FileReadTool) Description() string {
	return "Read the contents of a file in the workspace. Provide a path relative to the workspace."
}
func (t *FileReadTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"path": {Type: "string", Description: "File path relative to the workspace"},
		},
		[]string{"path"},
	)
}

func (t *FileReadTool) Execute(_ context.Context, args map[string]any) (string, error) {
	path := ArgsString(args, "path")
	if path == "" {
		return "", fmt.Errorf("missing argument: path")
	}
	resolved, err := resolvePath(t.workspace, path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("stat file: %w", err)
	}
	if info.Size() > fileReadMaxBytes {
		return "", fmt.Errorf("file too large (%d bytes, limit %d)", info.Size(), fileReadMaxBytes)
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return string(data), nil
}

// FileWriteTool writes a file inside the workspace, creating parent
// directories as needed.
type FileWriteTool struct {
	workspace string
}

func NewFileWriteTool(workspace string) *FileWriteTool {
	return &FileWriteTool{workspace: workspace}
}

func (t *FileWriteTool) Name() string { return "file_write" }
func (t *FileWriteTool) Description() string {
	return "Write content to a file in the workspace. Creates the file if missing, overwrites it otherwise."
}
func (t *FileWriteTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"path":    {Type: "string", Description: "File path relative to the workspace"},
			"content": {Type: "string", Description: "Content to write"},
		},
		[]string{"path", "content"},
	)
}

func (t *FileWriteTool) Execute(_ context.Context, args map[string]any) (string, error) {
	path := ArgsString(args, "path")
	if path == "" {
		return "", fmt.Errorf("missing argument: path")
	}
	content := ArgsString(args, "content")
	resolved, err := resolvePath(t.workspace, path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return fmt.Sprintf("Wrote %d bytes to %s", len(content), path), nil
}

// ListDirTool lists workspace directory entries.
type ListDirTool struct {
	workspace string
}

func NewListDirTool(workspace string) *ListDirTool {
	return &ListDirTool{workspace: workspace}
}

func (t *ListDirTool) Name() string { return "list_dir" }
func (t *ListDirTool) Description() string {
	return "List files and directories at the given workspace path. Omit the path for the workspace root."
}
func (t *ListDirTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"path": {Type: "string", Description: "Directory path relative to the workspace"},
		},
		nil,
	)
}

func (t *ListDirTool) Execute(_ context.Context, args map[string]any) (string, error) {
	path := ArgsString(args, "path")
	if path == "" {
		path = "."
	}
	resolved, err := resolvePath(t.workspace, path)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return "", fmt.Errorf("read directory: %w", err)
	}
	if len(entries) == 0 {
		return "(empty directory)", nil
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		lines = append(lines, name)
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n"), nil
}
