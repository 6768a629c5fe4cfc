package agent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/taylored/runnerd/pkg/log"
	"github.com/taylored/runnerd/pkg/metrics"
	"github.com/taylored/runnerd/pkg/types"
)

// Git identity used for the throwaway working tree. The processing tool
// requires committed input; nothing about the identity is meaningful.
const (
	gitUserName  = "Taylored Runner"
	gitUserEmail = "runner@taylored.local"
)

// chunkSize bounds a single output/error event payload.
const chunkSize = 4096

// Executor materializes snippet requests in throwaway git working trees and
// streams the processing tool's output back as events.
type Executor struct {
	tayloredBin string
	logger      zerolog.Logger
}

// NewExecutor creates an executor spawning the given taylored binary.
func NewExecutor(tayloredBin string) *Executor {
	return &Executor{
		tayloredBin: tayloredBin,
		logger:      log.WithComponent("executor"),
	}
}

// Run executes one snippet request. Each run owns a private temporary
// directory that is removed on every exit path.
func (e *Executor) Run(ctx context.Context, emit Emitter, body string) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SnippetRunDuration)

	if body == "" {
		e.runError(emit, 0, "Invalid XML data provided for tayloredRun.")
		metrics.SnippetRunsTotal.WithLabelValues("invalid").Inc()
		return
	}

	id, err := firstSnippetID(body)
	if err != nil {
		e.runError(emit, 0, "Could not extract snippet ID (number) from XML data.")
		metrics.SnippetRunsTotal.WithLabelValues("invalid").Inc()
		return
	}
	logger := e.logger.With().Int("snippet_id", id).Logger()

	workDir, err := os.MkdirTemp("", "taylored-run-")
	if err != nil {
		e.runError(emit, id, fmt.Sprintf("Execution failed: %v", err))
		metrics.SnippetRunsTotal.WithLabelValues("error").Inc()
		return
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Warn().Err(err).Str("dir", workDir).Msg("workspace cleanup failed")
		}
	}()

	if err := e.prepareWorkTree(ctx, workDir, body); err != nil {
		logger.Error().Err(err).Msg("workspace preparation failed")
		e.runError(emit, id, fmt.Sprintf("Execution failed: %v", err))
		metrics.SnippetRunsTotal.WithLabelValues("error").Inc()
		return
	}

	if err := e.streamTaylored(ctx, emit, id, workDir, logger); err != nil {
		e.runError(emit, id, fmt.Sprintf("Execution failed: %v", err))
		metrics.SnippetRunsTotal.WithLabelValues("error").Inc()
		return
	}
	metrics.SnippetRunsTotal.WithLabelValues("completed").Inc()
}

// prepareWorkTree initializes a git repository with the request body
// committed as runner.xml on branch main.
func (e *Executor) prepareWorkTree(ctx context.Context, dir, body string) error {
	steps := [][]string{
		{"git", "init", "--initial-branch", "main"},
		{"git", "config", "user.name", gitUserName},
		{"git", "config", "user.email", gitUserEmail},
	}
	for _, step := range steps {
		if err := runIn(ctx, dir, step[0], step[1:]...); err != nil {
			return err
		}
	}

	if err := os.WriteFile(filepath.Join(dir, "runner.xml"), []byte(body), 0o644); err != nil {
		return fmt.Errorf("failed to write runner.xml: %w", err)
	}

	if err := runIn(ctx, dir, "git", "add", "runner.xml"); err != nil {
		return err
	}
	return runIn(ctx, dir, "git", "commit", "-m", "Add runner.xml")
}

// streamTaylored spawns the processing tool and forwards its stdout and
// stderr chunk by chunk. The two streams are independent; only per-stream
// ordering is preserved.
func (e *Executor) streamTaylored(ctx context.Context, emit Emitter, id int, dir string, logger zerolog.Logger) error {
	cmd := exec.CommandContext(ctx, e.tayloredBin, "--automatic", "xml", "main")
	cmd.Dir = dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		forwardChunks(stdout, func(chunk string) {
			_ = emit.Emit(types.EventTayloredOutput, types.RunOutput{ID: id, Output: chunk})
		})
	}()
	go func() {
		defer wg.Done()
		forwardChunks(stderr, func(chunk string) {
			_ = emit.Emit(types.EventTayloredError, types.RunErrorOutput{ID: id, Error: chunk})
		})
	}()
	wg.Wait()

	// The exit code is observed but not reported as an event; the streams
	// already carried whatever the tool had to say.
	if err := cmd.Wait(); err != nil {
		logger.Info().Err(err).Msg("taylored exited non-zero")
	}
	return nil
}

func (e *Executor) runError(emit Emitter, id int, msg string) {
	if err := emit.Emit(types.EventTayloredRunError, types.RunError{ID: id, Error: msg}); err != nil {
		e.logger.Debug().Err(err).Msg("failed to emit run error")
	}
}

// forwardChunks reads r until EOF, invoking fn for every chunk.
func forwardChunks(r io.Reader, fn func(string)) {
	br := bufio.NewReader(r)
	buf := make([]byte, chunkSize)
	for {
		n, err := br.Read(buf)
		if n > 0 {
			fn(string(buf[:n]))
		}
		if err != nil {
			return
		}
	}
}

func runIn(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s %v: %w: %s", name, args, err, out)
	}
	return nil
}
