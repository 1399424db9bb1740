package provider

import (
	"context"
	"strings"
	"time"
	"unicode"

	"coach-service/internal/models"
)

// HeuristicProvider is the deterministic terminal fallback. It scores ideas
// from the text alone, depends on nothing, and never fails, so the chain can
// always return some result.
type HeuristicProvider struct{}

func NewHeuristicProvider() *HeuristicProvider {
	return &HeuristicProvider{}
}

func (p *HeuristicProvider) Name() string { return "heuristic" }

// Local scoring needs no deadline.
func (p *HeuristicProvider) Timeout() time.Duration { return 0 }

var specificityTerms = []string{
	"customer", "niche", "problem", "pain", "market", "revenue",
	"pricing", "competitor", "segment", "churn", "retention",
}

var vagueTerms = []string{
	"everyone", "everything", "revolutionary", "disrupt", "uber for",
	"next big", "world-changing",
}

func (p *HeuristicProvider) Attempt(_ context.Context, in Input) (*Result, error) {
	text := strings.ToLower(in.Title + " " + in.Description)

	score := 40
	var strengths, risks []string

	words := countWords(in.Description)
	switch {
	case words >= 60:
		score += 15
		strengths = append(strengths, "The idea is described in concrete detail.")
	case words >= 20:
		score += 8
	default:
		risks = append(risks, "The description is too brief to assess properly.")
	}

	specific := 0
	for _, term := range specificityTerms {
		if strings.Contains(text, term) {
			specific++
		}
	}
	score += min(specific*4, 20)
	if specific >= 3 {
		strengths = append(strengths, "The framing touches real business fundamentals.")
	}

	for _, term := range vagueTerms {
		if strings.Contains(text, term) {
			score -= 8
			risks = append(risks, "Broad claims like \""+term+"\" usually hide an unvalidated audience.")
			break
		}
	}

	if in.TargetMarket != "" {
		score += 10
		strengths = append(strengths, "A target market is identified.")
	} else {
		risks = append(risks, "No target market is named.")
	}

	if hasDigits(in.Description) {
		score += 5
	}

	if score > 100 {
		score = 100
	}
	if score < 5 {
		score = 5
	}

	verdict := "Needs significant validation before investing time."
	switch {
	case score >= 70:
		verdict = "Promising; worth a structured validation sprint."
	case score >= 50:
		verdict = "Has potential but key assumptions are untested."
	}

	analysis := models.ValidationAnalysis{
		Score:     score,
		Verdict:   verdict,
		Strengths: strengths,
		Risks:     risks,
		NextSteps: []string{
			"Interview 5 people in the target audience this week.",
			"Write down the single riskiest assumption and design a cheap test.",
			"Search for existing competitors and note their pricing.",
		},
		Provider:   p.Name(),
		Confidence: "low",
	}

	return &Result{Analysis: analysis, Provider: p.Name()}, nil
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

func hasDigits(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
