package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const StrategyCurl = "curl"

// serverlessEnv marks hosts where only the system temp dir is writable.
var serverlessEnv = []string{"VERCEL", "AWS_LAMBDA_FUNCTION_NAME", "K_SERVICE", "FUNCTIONS_WORKER_RUNTIME"}

type curlStrategy struct {
	binary     string
	userAgent  string
	scratchDir string
	lookupEnv  func(string) (string, bool)
}

// NewCurlStrategy shells out to curl, which succeeds on some hosts that
// reject Go's TLS fingerprint. Output goes to a temp file that is always
// removed before Attempt returns.
func NewCurlStrategy(binary, userAgent, scratchDir string) Strategy {
	if strings.TrimSpace(binary) == "" {
		binary = "curl"
	}
	return &curlStrategy{
		binary:     binary,
		userAgent:  userAgent,
		scratchDir: scratchDir,
		lookupEnv:  os.LookupEnv,
	}
}

func (s *curlStrategy) Name() string { return StrategyCurl }

func (s *curlStrategy) Applies(url string) bool {
	u := strings.ToLower(url)
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

// tempDir picks /tmp-style storage on serverless hosts and the configured
// scratch dir elsewhere.
func (s *curlStrategy) tempDir() string {
	for _, name := range serverlessEnv {
		if v, ok := s.lookupEnv(name); ok && v != "" {
			return os.TempDir()
		}
	}
	if s.scratchDir == "" {
		return os.TempDir()
	}
	return s.scratchDir
}

func (s *curlStrategy) Attempt(ctx context.Context, url string) (Page, error) {
	bin, err := exec.LookPath(s.binary)
	if err != nil {
		return Page{}, fmt.Errorf("downloader unavailable: %w", err)
	}

	dir := s.tempDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Page{}, fmt.Errorf("create scratch dir: %w", err)
	}

	f, err := os.CreateTemp(dir, fmt.Sprintf("content_%d_*.html", time.Now().UnixNano()))
	if err != nil {
		return Page{}, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	_ = f.Close()
	defer os.Remove(path)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "-s", "-A", s.userAgent, "-L", url, "-o", path)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return Page{}, fmt.Errorf("run %s: %w: %s", filepath.Base(bin), err, msg)
		}
		return Page{}, fmt.Errorf("run %s: %w", filepath.Base(bin), err)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return Page{}, fmt.Errorf("read downloaded file: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return Page{}, errors.New("downloader produced no content")
	}
	return Page{URL: url, HTML: body}, nil
}
