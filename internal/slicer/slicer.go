// Package slicer runs the external `atom` slicer and reads the slice files it
// writes.
//
// The slicer is invoked as:
//
//	atom <usages|data-flow> -l <language> -o <tmp>/app.atom \
//	     --slice-outfile <tmp>/<type>.slices.json [--slice-depth N] <path>
//
// Each invocation gets a fresh temporary directory. The slicer never removes
// that directory on success: the caller reads the slices file first and then
// calls Result.Cleanup.
package slicer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/package-url/packageurl-go"

	"github.com/StinkyLord/sbom-evinser/internal/logging"
)

const (
	// DefaultBinary is the default slicer binary name.
	DefaultBinary = "atom"

	// DefaultTimeout bounds a single slicer invocation.
	DefaultTimeout = 20 * time.Minute

	// DefaultSliceDepth is passed to data-flow slicing.
	DefaultSliceDepth = 3
)

// Slice types understood by the slicer.
const (
	SliceTypeUsages   = "usages"
	SliceTypeDataFlow = "data-flow"
)

var (
	// ErrUnsupportedLanguage is returned when a purl maps to no slicer language.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrNoSlice is returned when the slicer produced no usable output.
	ErrNoSlice = errors.New("no slice produced")
)

// Slicer invokes the external slicer binary.
type Slicer struct {
	Binary     string        // Path to the slicer binary (default: "atom")
	Timeout    time.Duration // Per-invocation timeout (default: 20 minutes)
	SliceDepth int           // --slice-depth for data-flow slices (default: 3)
	Log        *logging.Logger
}

// Result locates the files of one slicer invocation.
type Result struct {
	TempDir    string
	SlicesFile string
	AtomFile   string
}

// Cleanup removes the temporary directory when it lives under the system
// temp root. Paths elsewhere are left alone.
func (r *Result) Cleanup() error {
	if r == nil || r.TempDir == "" {
		return nil
	}
	if !IsUnderTempDir(r.TempDir) {
		return nil
	}
	return os.RemoveAll(r.TempDir)
}

// IsUnderTempDir reports whether path resides under os.TempDir().
func IsUnderTempDir(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	root, err := filepath.Abs(os.TempDir())
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// LanguageFromPurl maps a purl to the slicer language: maven → java (or jar
// when filePath is a .jar), npm → javascript, pypi → python.
func LanguageFromPurl(purl, filePath string) (string, bool) {
	p, err := packageurl.FromString(purl)
	if err != nil {
		return "", false
	}
	switch p.Type {
	case packageurl.TypeMaven:
		if strings.HasSuffix(filePath, ".jar") {
			return "jar", true
		}
		return "java", true
	case packageurl.TypeNPM:
		return "javascript", true
	case packageurl.TypePyPi:
		return "python", true
	}
	return "", false
}

// ResolveLanguage accepts either a language tag or a purl.
func ResolveLanguage(languageOrPurl, filePath string) (string, bool) {
	if strings.HasPrefix(languageOrPurl, "pkg:") {
		return LanguageFromPurl(languageOrPurl, filePath)
	}
	if languageOrPurl == "" {
		return "", false
	}
	return languageOrPurl, true
}

// CreateSlice runs the slicer for sliceType over filePath. On any failure the
// temporary directory is removed and an error wrapping ErrNoSlice or
// ErrUnsupportedLanguage is returned.
func (s *Slicer) CreateSlice(ctx context.Context, languageOrPurl, filePath, sliceType string) (*Result, error) {
	language, ok := ResolveLanguage(languageOrPurl, filePath)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, languageOrPurl)
	}
	if sliceType != SliceTypeUsages && sliceType != SliceTypeDataFlow {
		return nil, fmt.Errorf("%w: unknown slice type %q", ErrNoSlice, sliceType)
	}

	binary := s.Binary
	if binary == "" {
		binary = DefaultBinary
	}
	if _, err := exec.LookPath(binary); err != nil {
		return nil, fmt.Errorf("%w: %s not found on PATH: %v", ErrNoSlice, binary, err)
	}

	target, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %q: %w", filePath, err)
	}

	tempDir, err := os.MkdirTemp("", "atom-"+sliceType+"-")
	if err != nil {
		return nil, fmt.Errorf("cannot create temp dir: %w", err)
	}
	res := &Result{
		TempDir:    tempDir,
		AtomFile:   filepath.Join(tempDir, "app.atom"),
		SlicesFile: filepath.Join(tempDir, sliceType+".slices.json"),
	}

	args := s.buildArgs(sliceType, language, res.AtomFile, res.SlicesFile, target)
	if err := s.run(ctx, binary, args, target); err != nil {
		_ = os.RemoveAll(tempDir)
		return nil, err
	}
	if _, err := os.Stat(res.SlicesFile); err != nil {
		_ = os.RemoveAll(tempDir)
		return nil, fmt.Errorf("%w: slices file missing: %v", ErrNoSlice, err)
	}
	return res, nil
}

func (s *Slicer) buildArgs(sliceType, language, atomFile, slicesFile, target string) []string {
	args := []string{
		sliceType,
		"-l", language,
		"-o", atomFile,
		"--slice-outfile", slicesFile,
	}
	if sliceType == SliceTypeDataFlow {
		depth := s.SliceDepth
		if depth <= 0 {
			depth = DefaultSliceDepth
		}
		args = append(args, "--slice-depth", strconv.Itoa(depth))
	}
	return append(args, target)
}

func (s *Slicer) run(ctx context.Context, binary string, args []string, target string) error {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log := s.Log
	if log == nil {
		log = logging.Nop()
	}
	log.Debugw("running slicer", "command", binary+" "+strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, binary, args...)
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		cmd.Dir = target
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w: %s timed out after %s", ErrNoSlice, binary, timeout)
	}
	if err != nil {
		return fmt.Errorf("%w: %s %s failed: %v: %s", ErrNoSlice, binary, args[0], err, strings.TrimSpace(stderr.String()))
	}
	log.Debugw("slicer finished", "type", args[0], "duration", time.Since(start).Round(time.Millisecond))
	return nil
}
