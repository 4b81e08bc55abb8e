package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

// ArtifactProvider produces the artifact for a plan entry and returns an
// opaque reference to it.
type ArtifactProvider interface {
	Produce(ctx context.Context, entry models.PlanEntry) (string, error)
}

// placeholderProvider returns deterministic references without doing any
// work. It is used when no coder command is configured.
type placeholderProvider struct{}

// NewPlaceholderProvider creates an ArtifactProvider that returns
// placeholder://<repository>/<opportunity> references.
func NewPlaceholderProvider() ArtifactProvider {
	return placeholderProvider{}
}

func (placeholderProvider) Produce(ctx context.Context, entry models.PlanEntry) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	opp := entry.Scored.Opportunity
	return fmt.Sprintf("placeholder://%s/%s", opp.Repository.ID, opp.ID), nil
}

// CommandResult captures the outcome of a coder command invocation.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// commandProvider runs an external coder command once per plan entry.
// The entry is written to the command's stdin as JSON and its details are
// exported as CPLAN_* environment variables. The last non-empty stdout line
// is the artifact reference.
type commandProvider struct {
	command string
	args    []string
	stderr  io.Writer
}

// NewCommandProvider creates an ArtifactProvider backed by cfg.Command.
// Command stderr is copied to stderr when it is non-nil.
func NewCommandProvider(cfg models.CoderConfig, stderr io.Writer) ArtifactProvider {
	return &commandProvider{command: cfg.Command, args: cfg.Args, stderr: stderr}
}

// NewArtifactProvider selects the command provider when a coder command is
// configured and the placeholder provider otherwise.
func NewArtifactProvider(cfg models.CoderConfig, stderr io.Writer) ArtifactProvider {
	if strings.TrimSpace(cfg.Command) == "" {
		return NewPlaceholderProvider()
	}
	return NewCommandProvider(cfg, stderr)
}

// BuildEnv appends CPLAN_* variables describing entry to base.
func BuildEnv(base []string, entry models.PlanEntry) []string {
	opp := entry.Scored.Opportunity
	env := make([]string, len(base), len(base)+7)
	copy(env, base)
	env = append(env,
		"CPLAN_OPPORTUNITY_ID="+opp.ID,
		"CPLAN_OPPORTUNITY_TITLE="+opp.Title,
		"CPLAN_CATEGORY="+string(opp.Category),
		"CPLAN_REPOSITORY="+opp.Repository.ID,
		"CPLAN_LANGUAGE="+opp.Repository.Language,
		"CPLAN_POSITION="+strconv.Itoa(entry.Position),
		"CPLAN_RISK="+string(entry.Scored.Risk),
	)
	return env
}

func (p *commandProvider) Produce(ctx context.Context, entry models.PlanEntry) (string, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("encoding plan entry: %w", err)
	}

	result, err := p.run(ctx, entry, payload)
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("coder %s exited with code %d for %s: %s",
			p.command, result.ExitCode, entry.Scored.Opportunity.ID, strings.TrimSpace(result.Stderr))
	}

	ref := lastLine(result.Stdout)
	if ref == "" {
		return "", fmt.Errorf("coder %s produced no artifact reference for %s", p.command, entry.Scored.Opportunity.ID)
	}
	return ref, nil
}

func (p *commandProvider) run(ctx context.Context, entry models.PlanEntry, stdin []byte) (*CommandResult, error) {
	cmd := exec.CommandContext(ctx, p.command, p.args...)
	cmd.Env = BuildEnv(os.Environ(), entry)
	cmd.Stdin = bytes.NewReader(stdin)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	if p.stderr != nil {
		cmd.Stderr = io.MultiWriter(&stderrBuf, p.stderr)
	} else {
		cmd.Stderr = &stderrBuf
	}

	err := cmd.Run()
	result := &CommandResult{
		Stdout: stdoutBuf.String(),
		Stderr: stderrBuf.String(),
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, fmt.Errorf("running coder %s: %w", p.command, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		// Command could not be started (e.g., not found).
		return result, fmt.Errorf("running coder %s: %w", p.command, err)
	}
	return result, nil
}

func lastLine(s string) string {
	var last string
	scanner := bufio.NewScanner(strings.NewReader(s))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			last = line
		}
	}
	return last
}
