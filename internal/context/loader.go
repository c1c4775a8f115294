// Package context turns local files into the context block sent with a chat.
package context

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// Size limits for attachments
const (
	MaxFileSize  = 1024 * 1024
	MaxImageSize = 5 * 1024 * 1024
	maxTreeDepth = 3
)

// ErrBinary is returned for files that are neither text nor a supported image
var ErrBinary = errors.New("file is not text or a supported image")

// Kind tells how an attachment is sent to the models
type Kind int

const (
	KindFile Kind = iota
	KindDir
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindDir:
		return "dir"
	case KindImage:
		return "image"
	default:
		return "file"
	}
}

// Attachment is one loaded path
type Attachment struct {
	Path     string
	Kind     Kind
	Text     string // formatted block for files and directories
	MimeType string // images only
	Data     string // base64 payload, images only
	Size     int64
}

// Load reads path as a text file, an image or a directory tree.
func Load(path string) (Attachment, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("failed to resolve path: %w", err)
	}
	if err := ValidatePath(path); err != nil {
		return Attachment{}, err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return Attachment{}, fmt.Errorf("failed to stat path: %w", err)
	}

	if info.IsDir() {
		tree, err := SummarizeDir(absPath)
		if err != nil {
			return Attachment{}, err
		}
		return Attachment{Path: absPath, Kind: KindDir, Text: tree}, nil
	}

	if mime := imageMimeType(absPath); mime != "" {
		data, err := loadImage(absPath, info.Size())
		if err != nil {
			return Attachment{}, err
		}
		return Attachment{Path: absPath, Kind: KindImage, MimeType: mime, Data: data, Size: info.Size()}, nil
	}

	content, err := LoadFile(absPath)
	if err != nil {
		return Attachment{}, err
	}
	return Attachment{
		Path: absPath,
		Kind: KindFile,
		Text: FormatForContext(absPath, content),
		Size: info.Size(),
	}, nil
}

// LoadFile reads a text file with size limits
func LoadFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("path is a directory, use SummarizeDir instead")
	}
	if info.Size() > MaxFileSize {
		return "", fmt.Errorf("file too large (%d bytes, max %d)", info.Size(), MaxFileSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if !utf8.Valid(content) || strings.ContainsRune(string(content), 0) {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrBinary)
	}
	return string(content), nil
}

// FormatForContext wraps file content in path markers. Code files get
// line numbers.
func FormatForContext(path, content string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== File: %s ===\n", path)

	if isCodeFile(path) {
		lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
		for i, line := range lines {
			fmt.Fprintf(&sb, "%4d | %s\n", i+1, line)
		}
	} else {
		sb.WriteString(content)
		if !strings.HasSuffix(content, "\n") {
			sb.WriteString("\n")
		}
	}

	fmt.Fprintf(&sb, "=== End: %s ===\n", filepath.Base(path))
	return sb.String()
}

// SummarizeDir returns a tree of the directory, hidden and build entries skipped
func SummarizeDir(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "=== Directory: %s ===\n", path)
	if err := walkDir(path, "", &sb, 0); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func walkDir(path, prefix string, sb *strings.Builder, depth int) error {
	if depth > maxTreeDepth {
		sb.WriteString(prefix + "  ...\n")
		return nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return err
	}

	visible := entries[:0]
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || excludedDirs[e.Name()] {
			continue
		}
		visible = append(visible, e)
	}
	// Directories first
	sort.Slice(visible, func(i, j int) bool {
		if visible[i].IsDir() != visible[j].IsDir() {
			return visible[i].IsDir()
		}
		return visible[i].Name() < visible[j].Name()
	})

	for i, entry := range visible {
		last := i == len(visible)-1
		connector, childPrefix := "|-", prefix+"| "
		if last {
			connector, childPrefix = "`-", prefix+"  "
		}

		name := entry.Name()
		if !entry.IsDir() {
			fmt.Fprintf(sb, "%s%s %s\n", prefix, connector, name)
			continue
		}
		fmt.Fprintf(sb, "%s%s %s/\n", prefix, connector, name)
		if err := walkDir(filepath.Join(path, name), childPrefix, sb, depth+1); err != nil {
			sb.WriteString(childPrefix + "  (error reading)\n")
		}
	}
	return nil
}

// ValidatePath rejects traversal, missing paths and credential files.
func ValidatePath(path string) error {
	if strings.Contains(filepath.ToSlash(path), "../") || strings.HasSuffix(path, "..") {
		return fmt.Errorf("path traversal not allowed")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	if isSensitivePath(absPath) {
		return fmt.Errorf("access to sensitive path denied")
	}

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return fmt.Errorf("path does not exist: %s", absPath)
	} else if err != nil {
		return fmt.Errorf("cannot access path: %w", err)
	}
	return nil
}

var codeExts = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true,
	".rs": true, ".c": true, ".h": true, ".cpp": true, ".hpp": true, ".java": true,
	".rb": true, ".php": true, ".sh": true, ".bash": true, ".zsh": true,
	".yaml": true, ".yml": true, ".json": true, ".toml": true, ".sql": true,
	".lua": true, ".zig": true, ".swift": true, ".kt": true, ".scala": true,
	".hs": true, ".css": true, ".html": true,
}

var excludedDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	"target":       true,
	"build":        true,
	"dist":         true,
	"bin":          true,
	"obj":          true,
	"venv":         true,
	"env":          true,
}

var sensitivePatterns = []string{
	"/.ssh/",
	"/.gnupg/",
	"/.aws/",
	"/.config/gcloud",
	"/etc/shadow",
	"/etc/passwd",
	"/.netrc",
	"/.npmrc",
	"/.pypirc",
	"/credentials",
	"/secrets",
	"/.env",
	".pem",
	".key",
	"id_rsa",
	"id_ed25519",
	"id_ecdsa",
}

func isCodeFile(path string) bool {
	return codeExts[strings.ToLower(filepath.Ext(path))]
}

func isSensitivePath(path string) bool {
	lower := strings.ToLower(filepath.ToSlash(path))
	for _, s := range sensitivePatterns {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
