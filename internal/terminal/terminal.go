// Package terminal emulates a small shell over a project's file table. It
// keeps no state: the client passes the current directory on every call and
// gets the next one back.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tjfontaine/robin-backend/internal/domain"
	"github.com/tjfontaine/robin-backend/internal/storage"
)

const helpText = "Available commands:\nls, cat <path>, echo <text>, head <path>, tail <path>, cd <path>, pwd, mkdir <path>, touch <path>, rm <path>, whoami"

// tailLines is how many lines head and tail print.
const tailLines = 10

// Result is the outcome of one command.
type Result struct {
	Output   string `json:"output"`
	ExitCode int    `json:"exitCode"`
	Cwd      string `json:"cwd"`
}

// Shell runs commands against one store.
type Shell struct {
	files storage.FileStore
}

func New(files storage.FileStore) *Shell {
	return &Shell{files: files}
}

// Run executes command in cwd for projectID. Lookup failures are reported in
// Output with exit code 1; only store failures are returned as errors.
func (s *Shell) Run(ctx context.Context, projectID, cwd, command string) (*Result, error) {
	cwd = Clean(cwd)
	fields := strings.Fields(command)
	var name string
	var args []string
	if len(fields) > 0 {
		name, args = fields[0], fields[1:]
	}
	arg := ""
	if len(args) > 0 {
		arg = args[0]
	}

	res := &Result{Cwd: cwd}
	var err error
	switch name {
	case "ls":
		target := cwd
		if arg != "" {
			target = Resolve(cwd, arg)
		}
		res.Output, err = s.list(ctx, projectID, target)
	case "cat":
		res.Output, res.ExitCode, err = s.read(ctx, projectID, Resolve(cwd, arg), "cat")
	case "head", "tail":
		var content string
		content, res.ExitCode, err = s.read(ctx, projectID, Resolve(cwd, arg), name)
		if res.ExitCode != 0 {
			res.Output = content
			break
		}
		lines := strings.Split(content, "\n")
		if name == "head" {
			lines = lines[:min(tailLines, len(lines))]
		} else {
			lines = lines[max(0, len(lines)-tailLines):]
		}
		res.Output = strings.Join(lines, "\n")
	case "echo":
		res.Output = strings.Join(args, " ")
	case "whoami":
		res.Output = "robin"
	case "pwd":
		res.Output = cwd
	case "cd":
		res.Cwd = Resolve(cwd, arg)
		if arg == "" {
			res.Cwd = "/"
		}
	case "mkdir":
		// Directories are implicit path prefixes; only the argument is checked.
		if Resolve(cwd, arg) == "/" {
			res.Output, res.ExitCode = "mkdir: invalid path", 1
		}
	case "touch":
		res.ExitCode, res.Output, err = s.touch(ctx, projectID, Resolve(cwd, arg))
	case "rm":
		full := Resolve(cwd, arg)
		if derr := s.files.DeleteFile(ctx, projectID, storedPath(full)); derr != nil {
			if !errors.Is(derr, domain.ErrNotFound) {
				return nil, fmt.Errorf("rm %s: %w", full, derr)
			}
			res.Output, res.ExitCode = fmt.Sprintf("rm: cannot remove %s: No such file", full), 1
		}
	default:
		res.Output = helpText
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// list prints the immediate children of dir, one per line, sorted.
func (s *Shell) list(ctx context.Context, projectID, dir string) (string, error) {
	prefix := storedPath(dir)
	if prefix != "" {
		prefix += "/"
	}
	files, err := s.files.ListFilesByPrefix(ctx, projectID, prefix)
	if err != nil {
		return "", fmt.Errorf("ls %s: %w", dir, err)
	}
	seen := make(map[string]bool)
	var names []string
	for _, f := range files {
		rest := strings.TrimPrefix(strings.TrimPrefix(f.Path, "/"), prefix)
		first, _, _ := strings.Cut(rest, "/")
		if first != "" && !seen[first] {
			seen[first] = true
			names = append(names, first)
		}
	}
	sort.Strings(names)
	return strings.Join(names, "\n"), nil
}

func (s *Shell) read(ctx context.Context, projectID, full, cmd string) (string, int, error) {
	f, err := s.files.GetFile(ctx, projectID, storedPath(full))
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Sprintf("%s: %s: No such file", cmd, full), 1, nil
	}
	if err != nil {
		return "", 0, fmt.Errorf("%s %s: %w", cmd, full, err)
	}
	return f.Content, 0, nil
}

func (s *Shell) touch(ctx context.Context, projectID, full string) (int, string, error) {
	path := storedPath(full)
	if path == "" {
		return 1, "touch: invalid path", nil
	}
	err := s.files.TouchFile(ctx, projectID, path)
	if errors.Is(err, domain.ErrNotFound) {
		err = s.files.CreateFile(ctx, &domain.ProjectFile{ProjectID: projectID, Path: path})
	}
	if err != nil {
		return 0, "", fmt.Errorf("touch %s: %w", full, err)
	}
	return 0, "", nil
}

// Clean normalizes p to an absolute path, resolving "." and "..". Leaving the
// root with ".." stays at the root.
func Clean(p string) string {
	var stack []string
	for _, part := range strings.Split(p, "/") {
		switch part {
		case "", ".":
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, part)
		}
	}
	return "/" + strings.Join(stack, "/")
}

// Resolve joins p onto cwd unless p is absolute. An empty p or "." is cwd.
func Resolve(cwd, p string) string {
	if p == "" || p == "." {
		return Clean(cwd)
	}
	if strings.HasPrefix(p, "/") {
		return Clean(p)
	}
	return Clean(cwd + "/" + p)
}

// storedPath maps a virtual absolute path to the file table's relative key.
func storedPath(full string) string {
	return strings.TrimPrefix(full, "/")
}
