package integration

import (
	"context"
	"runtime"
	"strings"
	"testing"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

func sampleEntry() models.PlanEntry {
	return models.PlanEntry{
		Position: 2,
		Scored: models.ScoredOpportunity{
			Opportunity: models.Opportunity{
				ID:         "opp-42",
				Title:      "Add tests for parser",
				Category:   models.CategoryMissingTest,
				Repository: models.RepositoryProfile{ID: "acme/parser", Language: "Go"},
			},
			Risk: models.RiskLow,
		},
	}
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestPlaceholderProvider(t *testing.T) {
	ref, err := NewPlaceholderProvider().Produce(context.Background(), sampleEntry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref != "placeholder://acme/parser/opp-42" {
		t.Errorf("ref = %q", ref)
	}
}

func TestPlaceholderProvider_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewPlaceholderProvider().Produce(ctx, sampleEntry()); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestNewArtifactProvider_SelectsImplementation(t *testing.T) {
	if _, ok := NewArtifactProvider(models.CoderConfig{}, nil).(placeholderProvider); !ok {
		t.Error("expected placeholder provider for empty command")
	}
	if _, ok := NewArtifactProvider(models.CoderConfig{Command: "coder"}, nil).(*commandProvider); !ok {
		t.Error("expected command provider when a command is configured")
	}
}

func TestBuildEnv(t *testing.T) {
	base := []string{"PATH=/usr/bin"}
	env := BuildEnv(base, sampleEntry())

	if len(base) != 1 {
		t.Fatal("BuildEnv modified the base slice")
	}
	want := []string{
		"PATH=/usr/bin",
		"CPLAN_OPPORTUNITY_ID=opp-42",
		"CPLAN_CATEGORY=missing-test",
		"CPLAN_REPOSITORY=acme/parser",
		"CPLAN_POSITION=2",
		"CPLAN_RISK=low",
	}
	joined := strings.Join(env, "\n")
	for _, w := range want {
		if !strings.Contains(joined, w) {
			t.Errorf("env missing %q", w)
		}
	}
}

func TestCommandProvider_UsesLastStdoutLine(t *testing.T) {
	skipOnWindows(t)
	cfg := models.CoderConfig{
		Command: "sh",
		Args:    []string{"-c", `echo "working on $CPLAN_OPPORTUNITY_ID"; echo; echo "pr://$CPLAN_REPOSITORY/1"`},
	}
	ref, err := NewCommandProvider(cfg, nil).Produce(context.Background(), sampleEntry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref != "pr://acme/parser/1" {
		t.Errorf("ref = %q", ref)
	}
}

func TestCommandProvider_ReceivesEntryOnStdin(t *testing.T) {
	skipOnWindows(t)
	cfg := models.CoderConfig{Command: "sh", Args: []string{"-c", "cat"}}
	ref, err := NewCommandProvider(cfg, nil).Produce(context.Background(), sampleEntry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(ref, `"id":"opp-42"`) {
		t.Errorf("expected JSON entry echoed back, got %q", ref)
	}
}

func TestCommandProvider_Errors(t *testing.T) {
	skipOnWindows(t)
	tests := []struct {
		name    string
		cfg     models.CoderConfig
		wantSub string
	}{
		{"non-zero exit", models.CoderConfig{Command: "sh", Args: []string{"-c", "echo boom >&2; exit 3"}}, "exited with code 3"},
		{"empty output", models.CoderConfig{Command: "sh", Args: []string{"-c", "true"}}, "no artifact reference"},
		{"missing binary", models.CoderConfig{Command: "cplan-coder-does-not-exist"}, "running coder"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCommandProvider(tt.cfg, nil).Produce(context.Background(), sampleEntry())
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not contain %q", err, tt.wantSub)
			}
		})
	}
}
