// Package mcp provides an MCP (Model Context Protocol) server that exposes
// cplan scoring, planning, and simulation as MCP tools for AI coding
// assistants.
package mcp

import (
	"context"
	"fmt"
	"sort"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/valter-silva-au/contrib-planner/internal/core"
	"github.com/valter-silva-au/contrib-planner/internal/observability"
	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

// Deps are the services the MCP server exposes. MetricsCalc and AlertEngine
// may be nil if observability is disabled.
type Deps struct {
	Pipeline    core.Pipeline
	Simulator   core.Simulator
	Aggregator  core.OutcomeAggregator
	MetricsCalc observability.MetricsCalculator
	AlertEngine observability.AlertEngine
	// Constraints fill in any constraint a build_plan call leaves out.
	Constraints models.Constraints
	// Seed is the base seed for simulate_contribution when none is given.
	Seed uint64
}

// Server wraps cplan services and exposes them as MCP tools.
type Server struct {
	server *gomcp.Server
	deps   Deps
}

// NewServer creates a new MCP server with the given service dependencies.
func NewServer(deps Deps, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{deps: deps}
	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "cplan", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client disconnects
// or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type scoreCandidatesInput struct {
	Risk  string `json:"risk,omitempty" jsonschema:"only return candidates in this risk category (low, medium, high)"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of candidates to return, highest score first"`
}

type scoredOutput struct {
	ID                 string  `json:"id"`
	Title              string  `json:"title,omitempty"`
	Repository         string  `json:"repository"`
	Category           string  `json:"category"`
	Score              float64 `json:"score"`
	Risk               string  `json:"risk"`
	SuccessProbability float64 `json:"success_probability"`
	ExpectedValue      float64 `json:"expected_value"`
}

type scoreCandidatesOutput struct {
	Candidates []scoredOutput      `json:"candidates"`
	Count      int                 `json:"count"`
	Dropped    map[string]string   `json:"dropped,omitempty"`
	Clamped    map[string][]string `json:"clamped,omitempty"`
}

type buildPlanInput struct {
	MaxConcurrent         *int     `json:"max_concurrent,omitempty" jsonschema:"maximum number of concurrent contributions"`
	EffortBudget          *float64 `json:"effort_budget,omitempty" jsonschema:"total effort the plan may consume"`
	MinSuccessProbability *float64 `json:"min_success_probability,omitempty" jsonschema:"minimum success probability for a candidate to be considered"`
}

type planEntryOutput struct {
	Position      int          `json:"position"`
	Candidate     scoredOutput `json:"candidate"`
	ExpectedValue float64      `json:"expected_value"`
	Effort        float64      `json:"effort"`
	Timeline      string       `json:"timeline,omitempty"`
}

type buildPlanOutput struct {
	Entries            []planEntryOutput  `json:"entries"`
	Constraints        models.Constraints `json:"constraints"`
	TotalExpectedValue float64            `json:"total_expected_value"`
	TotalEffort        float64            `json:"total_effort"`
	Considered         int                `json:"considered"`
	Excluded           int                `json:"excluded"`
}

type simulateInput struct {
	OpportunityID string  `json:"opportunity_id" jsonschema:"required,the candidate to simulate"`
	Seed          *uint64 `json:"seed,omitempty" jsonschema:"base seed; the same seed always replays the same lifecycle"`
}

type eventOutput struct {
	Round int    `json:"round"`
	Kind  string `json:"kind"`
	From  string `json:"from"`
	To    string `json:"to"`
	Note  string `json:"note,omitempty"`
}

type simulateOutput struct {
	OpportunityID string        `json:"opportunity_id"`
	Risk          string        `json:"risk"`
	Seed          uint64        `json:"seed"`
	FinalState    string        `json:"final_state"`
	Rounds        int           `json:"rounds"`
	MaxRounds     int           `json:"max_rounds"`
	Events        []eventOutput `json:"events"`
}

type getCalibrationInput struct{}

type categoryOutput struct {
	Risk         string  `json:"risk"`
	ApprovalRate float64 `json:"approval_rate"`
	SampleCount  int     `json:"sample_count"`
}

type getCalibrationOutput struct {
	Categories   []categoryOutput `json:"categories"`
	TotalSamples int              `json:"total_samples"`
	UpdatedAt    string           `json:"updated_at,omitempty"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
	PlansCreated        int            `json:"plans_created"`
	SimulationsFinished int            `json:"simulations_finished"`
	OutcomesByState     map[string]int `json:"outcomes_by_state"`
	OutcomesByRisk      map[string]int `json:"outcomes_by_risk"`
	ApprovalRate        float64        `json:"approval_rate"`
	ExhaustedLoops      int            `json:"exhausted_review_loops"`
	AverageRounds       float64        `json:"average_rounds"`
	Warnings            int            `json:"warnings"`
	EventCount          int            `json:"event_count"`
	OldestEvent         string         `json:"oldest_event,omitempty"`
	NewestEvent         string         `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "score_candidates",
		Description: "Score every stored candidate under the current calibration. Returns score, risk category, success probability, and expected value, highest score first.",
	}, s.handleScoreCandidates)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "build_plan",
		Description: "Select an ordered strategy plan that maximises expected value within the concurrency and effort constraints. Does not save the plan.",
	}, s.handleBuildPlan)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "simulate_contribution",
		Description: "Replay the review lifecycle of one candidate with a deterministic seed. The outcome is not recorded into calibration.",
	}, s.handleSimulate)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_calibration",
		Description: "Get the current approval rate and sample count for each risk category.",
	}, s.handleGetCalibration)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get outcome metrics from the event log, including approval rate, outcomes by state and risk, and exhausted review loops.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate and return active alerts (low approval rate, exhausted review loops, high withdrawal share).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleScoreCandidates(ctx context.Context, _ *gomcp.CallToolRequest, input scoreCandidatesInput) (*gomcp.CallToolResult, scoreCandidatesOutput, error) {
	empty := scoreCandidatesOutput{Candidates: []scoredOutput{}}

	var risk models.RiskCategory
	if input.Risk != "" {
		r, err := models.ParseRiskCategory(input.Risk)
		if err != nil {
			return errorResult(err.Error()), empty, nil
		}
		risk = r
	}
	if input.Limit < 0 {
		return errorResult("limit must not be negative"), empty, nil
	}

	eval, err := s.deps.Pipeline.Evaluate(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("scoring candidates: %s", err)), empty, nil
	}

	scored := make([]models.ScoredOpportunity, 0, len(eval.Scored))
	for _, so := range eval.Scored {
		if risk == "" || so.Risk == risk {
			scored = append(scored, so)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Opportunity.ID < scored[j].Opportunity.ID
	})
	if input.Limit > 0 && len(scored) > input.Limit {
		scored = scored[:input.Limit]
	}

	out := scoreCandidatesOutput{
		Candidates: make([]scoredOutput, len(scored)),
		Count:      len(scored),
		Clamped:    eval.Clamped,
	}
	for i, so := range scored {
		out.Candidates[i] = scoredToOutput(so)
	}
	if len(eval.Dropped) > 0 {
		out.Dropped = make(map[string]string, len(eval.Dropped))
		for id, reason := range eval.Dropped {
			out.Dropped[id] = string(reason)
		}
	}
	return nil, out, nil
}

func (s *Server) handleBuildPlan(ctx context.Context, _ *gomcp.CallToolRequest, input buildPlanInput) (*gomcp.CallToolResult, buildPlanOutput, error) {
	constraints := s.deps.Constraints
	if input.MaxConcurrent != nil {
		constraints.MaxConcurrent = *input.MaxConcurrent
	}
	if input.EffortBudget != nil {
		constraints.EffortBudget = *input.EffortBudget
	}
	if input.MinSuccessProbability != nil {
		constraints.MinSuccessProbability = *input.MinSuccessProbability
	}

	plan, _, err := s.deps.Pipeline.BuildPlan(ctx, constraints)
	if err != nil {
		return errorResult(fmt.Sprintf("building plan: %s", err)), buildPlanOutput{Entries: []planEntryOutput{}}, nil
	}

	out := buildPlanOutput{
		Entries:            make([]planEntryOutput, len(plan.Entries)),
		Constraints:        plan.Constraints,
		TotalExpectedValue: plan.TotalExpectedValue,
		TotalEffort:        plan.TotalEffort,
		Considered:         plan.Considered,
		Excluded:           plan.Excluded,
	}
	for i, e := range plan.Entries {
		out.Entries[i] = planEntryOutput{
			Position:      e.Position,
			Candidate:     scoredToOutput(e.Scored),
			ExpectedValue: e.ExpectedValue,
			Effort:        e.Effort,
			Timeline:      e.Timeline,
		}
	}
	return nil, out, nil
}

func (s *Server) handleSimulate(ctx context.Context, _ *gomcp.CallToolRequest, input simulateInput) (*gomcp.CallToolResult, simulateOutput, error) {
	empty := simulateOutput{Events: []eventOutput{}}
	if input.OpportunityID == "" {
		return errorResult("opportunity_id is required"), empty, nil
	}

	eval, err := s.deps.Pipeline.Evaluate(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("scoring candidates: %s", err)), empty, nil
	}
	var target *models.ScoredOpportunity
	for i := range eval.Scored {
		if eval.Scored[i].Opportunity.ID == input.OpportunityID {
			target = &eval.Scored[i]
			break
		}
	}
	if target == nil {
		return errorResult(fmt.Sprintf("candidate %s not found or filtered out", input.OpportunityID)), empty, nil
	}

	base := s.deps.Seed
	if input.Seed != nil {
		base = *input.Seed
	}
	contribution := models.Contribution{
		ID:          "preview-" + target.Opportunity.ID,
		ArtifactRef: "preview://" + target.Opportunity.ID,
		Scored:      *target,
	}
	sim := s.deps.Simulator.Start(contribution, core.DeriveSeed(base, target.Opportunity.ID))
	rec := s.deps.Simulator.Preview(ctx, sim)

	out := simulateOutput{
		OpportunityID: rec.OpportunityID,
		Risk:          string(rec.Risk),
		Seed:          rec.Seed,
		FinalState:    string(rec.FinalState),
		Rounds:        rec.Rounds,
		MaxRounds:     rec.MaxRounds,
		Events:        make([]eventOutput, len(rec.Events)),
	}
	for i, ev := range rec.Events {
		out.Events[i] = eventOutput{
			Round: ev.Round,
			Kind:  string(ev.Kind),
			From:  string(ev.From),
			To:    string(ev.To),
			Note:  ev.Note,
		}
	}
	return nil, out, nil
}

func (s *Server) handleGetCalibration(_ context.Context, _ *gomcp.CallToolRequest, _ getCalibrationInput) (*gomcp.CallToolResult, getCalibrationOutput, error) {
	state := s.deps.Aggregator.Snapshot()
	out := getCalibrationOutput{
		Categories:   make([]categoryOutput, 0, len(models.RiskCategories)),
		TotalSamples: state.TotalSamples(),
	}
	for _, rc := range models.RiskCategories {
		c := state.Get(rc)
		out.Categories = append(out.Categories, categoryOutput{
			Risk:         string(rc),
			ApprovalRate: c.ApprovalRate,
			SampleCount:  c.SampleCount,
		})
	}
	if !state.UpdatedAt.IsZero() {
		out.UpdatedAt = state.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return nil, out, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.deps.MetricsCalc == nil {
		return errorResult("metrics calculator not available (observability may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}

	sinceTime, err := parseSince(sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.deps.MetricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		PlansCreated:        metrics.PlansCreated,
		SimulationsFinished: metrics.SimulationsFinished,
		OutcomesByState:     metrics.OutcomesByState,
		OutcomesByRisk:      metrics.OutcomesByRisk,
		ApprovalRate:        metrics.ApprovalRate(),
		ExhaustedLoops:      metrics.ExhaustedLoops,
		AverageRounds:       metrics.AverageRounds(),
		Warnings:            metrics.Warnings,
		EventCount:          metrics.EventCount,
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}

	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.deps.AlertEngine == nil {
		return errorResult("alert engine not available (observability may be disabled)"), getAlertsOutput{Alerts: []alertOutput{}}, nil
	}

	alerts, err := s.deps.AlertEngine.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{Alerts: []alertOutput{}}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}

	return nil, out, nil
}

// --- Helpers ---

func scoredToOutput(so models.ScoredOpportunity) scoredOutput {
	return scoredOutput{
		ID:                 so.Opportunity.ID,
		Title:              so.Opportunity.Title,
		Repository:         so.Opportunity.Repository.ID,
		Category:           string(so.Opportunity.Category),
		Score:              so.Score,
		Risk:               string(so.Risk),
		SuccessProbability: so.SuccessProbability,
		ExpectedValue:      so.ExpectedValue(),
	}
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{
		OutcomesByState: make(map[string]int),
		OutcomesByRisk:  make(map[string]int),
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// parseSince parses a human-friendly duration string like "7d", "30d", or "24h"
// into the corresponding time in the past.
func parseSince(s string) (time.Time, error) {
	now := time.Now().UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
