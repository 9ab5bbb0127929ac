// Package ingest discovers and admission-checks input documents: directory
// walking, extension filtering, content hashing for dedupe, size limits, and
// a directory watcher for continuous intake.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quotestack/quote-extractor/constants"
	"github.com/quotestack/quote-extractor/internal/common"
)

// Input is one admitted document path.
type Input struct {
	Path     string
	FileName string
	SizeMB   float64
}

// Gather resolves files and directories into the ordered list of documents to
// process. Directories are walked recursively; only allowed extensions are
// kept; duplicate paths collapse; the result is sorted so batches are
// deterministic regardless of argument order.
func Gather(paths []string) ([]Input, error) {
	if len(paths) == 0 {
		return nil, common.WrapError(common.ErrInvalidInput, "no input paths provided")
	}

	seen := map[string]struct{}{}
	var inputs []Input
	add := func(path string) error {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", path, err)
		}
		if _, dup := seen[abs]; dup {
			return nil
		}
		seen[abs] = struct{}{}
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("stat %s: %w", abs, err)
		}
		inputs = append(inputs, Input{
			Path:     abs,
			FileName: filepath.Base(abs),
			SizeMB:   float64(info.Size()) / (1024 * 1024),
		})
		return nil
	}

	for _, candidate := range paths {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		info, err := os.Stat(candidate)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", candidate, err)
		}
		if !info.IsDir() {
			if !allowedPath(candidate) {
				return nil, common.WrapError(common.ErrInvalidInput,
					fmt.Sprintf("unsupported extension: %s", candidate))
			}
			if err := add(candidate); err != nil {
				return nil, err
			}
			continue
		}
		walkErr := filepath.WalkDir(candidate, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !allowedPath(path) {
				return nil
			}
			return add(path)
		})
		if walkErr != nil {
			return nil, fmt.Errorf("walk %s: %w", candidate, walkErr)
		}
	}

	if len(inputs) == 0 {
		return nil, common.WrapError(common.ErrInvalidInput,
			fmt.Sprintf("no documents found under: %s", strings.Join(paths, ", ")))
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Path < inputs[j].Path })
	return inputs, nil
}

// CheckSize rejects oversized input before any processing begins. A zero or
// negative limit disables the check.
func CheckSize(in Input, maxMB int) error {
	if maxMB <= 0 {
		return nil
	}
	if in.SizeMB > float64(maxMB) {
		return common.NewAppError(common.CodeOversized,
			fmt.Sprintf("%s is %.1f MB, limit is %d MB", in.FileName, in.SizeMB, maxMB),
			common.ErrOversizedInput)
	}
	return nil
}

// HashFile returns the hex sha256 of a file's content, used for dedupe.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func allowedPath(path string) bool {
	ext := constants.NormalizeExt(filepath.Ext(path))
	_, ok := constants.AllowedExtensions[ext]
	return ok
}
