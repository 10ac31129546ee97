package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReadFileTool reads the contents of a file inside the workspace.
type ReadFileTool struct {
	root func() string
}

func (t *ReadFileTool) Name() string { return "read_file" }

func (t *ReadFileTool) Description() string {
	return "Read the contents of a file at the specified path inside the workspace."
}

func (t *ReadFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "The path to the file to read, relative to the workspace",
			},
		},
		"required": []string{"path"},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	path, errMsg := resolveWorkspacePath(t.root(), GetString(params, "path", ""))
	if errMsg != "" {
		return errMsg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: file not found: %s", path), nil
		}
		if os.IsPermission(err) {
			return fmt.Sprintf("Error: permission denied: %s", path), nil
		}
		return fmt.Sprintf("Error reading file: %v", err), nil
	}

	return string(content), nil
}

// WriteFileTool writes content to a file inside the workspace.
type WriteFileTool struct {
	root func() string
}

func (t *WriteFileTool) Name() string { return "write_to_file" }

func (t *WriteFileTool) Description() string {
	return "Write content to a file at the specified path. Creates parent directories if needed. Writes are restricted to the workspace."
}

func (t *WriteFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "The path to the file to write",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "The content to write to the file",
			},
		},
		"required": []string{"path", "content"},
	}
}

func (t *WriteFileTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	content := GetString(params, "content", "")
	path, errMsg := resolveWorkspacePath(t.root(), GetString(params, "path", ""))
	if errMsg != "" {
		return errMsg, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Sprintf("Error creating directory: %v", err), nil
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		if os.IsPermission(err) {
			return fmt.Sprintf("Error: permission denied: %s", path), nil
		}
		return fmt.Sprintf("Error writing file: %v", err), nil
	}

	return fmt.Sprintf("Successfully wrote %d bytes to %s", len(content), path), nil
}

// ReplaceInFileTool replaces text in a workspace file.
type ReplaceInFileTool struct {
	root func() string
}

func (t *ReplaceInFileTool) Name() string { return "replace_in_file" }

func (t *ReplaceInFileTool) Description() string {
	return "Edit a file by replacing text. Useful for making targeted changes. Edits are restricted to the workspace."
}

func (t *ReplaceInFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "The path to the file to edit",
			},
			"old_text": map[string]any{
				"type":        "string",
				"description": "The text to find and replace",
			},
			"new_text": map[string]any{
				"type":        "string",
				"description": "The replacement text",
			},
		},
		"required": []string{"path", "old_text", "new_text"},
	}
}

func (t *ReplaceInFileTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	oldText := GetString(params, "old_text", "")
	newText := GetString(params, "new_text", "")
	if oldText == "" {
		return "Error: old_text is required", nil
	}

	path, errMsg := resolveWorkspacePath(t.root(), GetString(params, "path", ""))
	if errMsg != "" {
		return errMsg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: file not found: %s", path), nil
		}
		return fmt.Sprintf("Error reading file: %v", err), nil
	}

	contentStr := string(content)
	if !strings.Contains(contentStr, oldText) {
		return fmt.Sprintf("Error: text not found in file: %s", path), nil
	}

	newContent := strings.Replace(contentStr, oldText, newText, 1)
	if err := os.WriteFile(path, []byte(newContent), 0644); err != nil {
		return fmt.Sprintf("Error writing file: %v", err), nil
	}

	return fmt.Sprintf("Successfully edited %s", path), nil
}

// ListFilesTool lists workspace directory contents.
type ListFilesTool struct {
	root func() string
}

func (t *ListFilesTool) Name() string { return "list_files" }

func (t *ListFilesTool) Description() string {
	return "List the contents of a directory inside the workspace."
}

func (t *ListFilesTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "The directory path to list (default: workspace root)",
			},
		},
	}
}

func (t *ListFilesTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	path, errMsg := resolveWorkspacePath(t.root(), GetString(params, "path", "."))
	if errMsg != "" {
		return errMsg, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: directory not found: %s", path), nil
		}
		if os.IsPermission(err) {
			return fmt.Sprintf("Error: permission denied: %s", path), nil
		}
		return fmt.Sprintf("Error reading directory: %v", err), nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Contents of %s:\n", path))

	for _, entry := range entries {
		info, _ := entry.Info()
		if entry.IsDir() {
			result.WriteString(fmt.Sprintf("  [DIR]  %s/\n", entry.Name()))
		} else if info != nil {
			result.WriteString(fmt.Sprintf("  [FILE] %s (%d bytes)\n", entry.Name(), info.Size()))
		} else {
			result.WriteString(fmt.Sprintf("  [FILE] %s\n", entry.Name()))
		}
	}

	return result.String(), nil
}

// CreatePathTool creates a file or folder inside the workspace.
type CreatePathTool struct {
	root func() string
}

func (t *CreatePathTool) Name() string { return "create_file_or_folder" }

func (t *CreatePathTool) Description() string {
	return "Create an empty file or a folder at the specified workspace path."
}

func (t *CreatePathTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "The path to create",
			},
			"type": map[string]any{
				"type":        "string",
				"description": "Either \"file\" or \"folder\" (default: file)",
			},
		},
		"required": []string{"path"},
	}
}

func (t *CreatePathTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	kind := GetString(params, "type", "file")
	path, errMsg := resolveWorkspacePath(t.root(), GetString(params, "path", ""))
	if errMsg != "" {
		return errMsg, nil
	}

	if kind == "folder" {
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Sprintf("Error creating folder: %v", err), nil
		}
		return fmt.Sprintf("Successfully created folder %s", path), nil
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Sprintf("Error: %s already exists", path), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Sprintf("Error creating directory: %v", err), nil
	}
	if err := os.WriteFile(path, nil, 0644); err != nil {
		return fmt.Sprintf("Error creating file: %v", err), nil
	}
	return fmt.Sprintf("Successfully created file %s", path), nil
}

// DeletePathTool deletes a file or folder inside the workspace.
type DeletePathTool struct {
	root func() string
}

func (t *DeletePathTool) Name() string { return "delete_file_or_folder" }

func (t *DeletePathTool) Description() string {
	return "Delete a file or folder at the specified workspace path. Folders must be empty unless force is set."
}

func (t *DeletePathTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "The path to delete",
			},
			"force": map[string]any{
				"type":        "boolean",
				"description": "Delete non-empty folders recursively",
			},
		},
		"required": []string{"path"},
	}
}

func (t *DeletePathTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	force := GetBool(params, "force", false)
	path, errMsg := resolveWorkspacePath(t.root(), GetString(params, "path", ""))
	if errMsg != "" {
		return errMsg, nil
	}
	if filepath.Clean(path) == filepath.Clean(t.root()) {
		return "Error: refusing to delete the workspace root", nil
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: not found: %s", path), nil
		}
		return fmt.Sprintf("Error: %v", err), nil
	}

	if info.IsDir() && force {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil {
		return fmt.Sprintf("Error deleting: %v", err), nil
	}
	return fmt.Sprintf("Successfully deleted %s", path), nil
}

// SearchFilesTool searches workspace files for a substring.
type SearchFilesTool struct {
	root func() string
}

func (t *SearchFilesTool) Name() string { return "search_files" }

func (t *SearchFilesTool) Description() string {
	return "Search workspace files for lines containing the given text. Returns file, line number and matching line."
}

func (t *SearchFilesTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The text to search for",
			},
			"path": map[string]any{
				"type":        "string",
				"description": "Directory to search in (default: workspace root)",
			},
			"max_results": map[string]any{
				"type":        "integer",
				"description": "Maximum number of matches to return (default: 50)",
			},
		},
		"required": []string{"query"},
	}
}

func (t *SearchFilesTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	query := GetString(params, "query", "")
	if query == "" {
		return "Error: query is required", nil
	}
	maxResults := GetInt(params, "max_results", 50)

	dir, errMsg := resolveWorkspacePath(t.root(), GetString(params, "path", "."))
	if errMsg != "" {
		return errMsg, nil
	}

	var result strings.Builder
	matches := 0
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || matches >= maxResults {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil // unreadable files are skipped, not fatal
		}
		for i, line := range strings.Split(string(content), "\n") {
			if strings.Contains(line, query) {
				result.WriteString(fmt.Sprintf("%s:%d: %s\n", path, i+1, strings.TrimSpace(line)))
				matches++
				if matches >= maxResults {
					break
				}
			}
		}
		return nil
	})
	if err != nil && matches == 0 {
		return fmt.Sprintf("Error searching: %v", err), nil
	}
	if matches == 0 {
		return fmt.Sprintf("No matches for %q", query), nil
	}
	return result.String(), nil
}

// NewReadFileTool creates a new ReadFileTool.
func NewReadFileTool(root func() string) *ReadFileTool {
	return &ReadFileTool{root: normalizedRoot(root)}
}

// NewWriteFileTool creates a new WriteFileTool.
func NewWriteFileTool(root func() string) *WriteFileTool {
	return &WriteFileTool{root: normalizedRoot(root)}
}

// NewReplaceInFileTool creates a new ReplaceInFileTool.
func NewReplaceInFileTool(root func() string) *ReplaceInFileTool {
	return &ReplaceInFileTool{root: normalizedRoot(root)}
}

// NewListFilesTool creates a new ListFilesTool.
func NewListFilesTool(root func() string) *ListFilesTool {
	return &ListFilesTool{root: normalizedRoot(root)}
}

// NewCreatePathTool creates a new CreatePathTool.
func NewCreatePathTool(root func() string) *CreatePathTool {
	return &CreatePathTool{root: normalizedRoot(root)}
}

// NewDeletePathTool creates a new DeletePathTool.
func NewDeletePathTool(root func() string) *DeletePathTool {
	return &DeletePathTool{root: normalizedRoot(root)}
}

// NewSearchFilesTool creates a new SearchFilesTool.
func NewSearchFilesTool(root func() string) *SearchFilesTool {
	return &SearchFilesTool{root: normalizedRoot(root)}
}

func normalizedRoot(root func() string) func() string {
	if root == nil {
		return func() string { return "" }
	}
	return func() string { return expandPath(root()) }
}

// resolveWorkspacePath joins a tool-supplied path onto the workspace root
// and rejects anything that escapes it. Returns the absolute path, or a
// model-visible error message.
func resolveWorkspacePath(root, path string) (string, string) {
	if path == "" {
		return "", "Error: path is required"
	}
	if root == "" {
		return "", "Error: workspace not configured"
	}
	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(root, resolved)
	}
	resolved = expandPath(resolved)
	if !isWithin(root, resolved) {
		return "", "Error: path outside workspace."
	}
	return resolved, ""
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[1:])
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path
}

func isWithin(root, path string) bool {
	if root == "" {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != ".."
}
