// Package planner drafts trip itineraries with an LLM.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/heritagelanka/ceylon360-backend/internal/config"
	"github.com/heritagelanka/ceylon360-backend/internal/models"
)

// Request holds the traveler's preferences for a generated plan
type Request struct {
	StartLocation string   `json:"start_location" binding:"required"`
	Days          int      `json:"days" binding:"required,gt=0,lte=30"`
	Interests     []string `json:"interests"`
	Travelers     int      `json:"travelers" binding:"omitempty,gt=0"`
	Budget        string   `json:"budget"`
	Pace          string   `json:"pace"`
}

// DayPlan is one day of a draft itinerary
type DayPlan struct {
	Day       int                        `json:"day"`
	Theme     string                     `json:"theme"`
	Locations []models.LocationCandidate `json:"locations"`
}

// Draft is the LLM's proposal before validation
type Draft struct {
	SelectedAttractions []models.LocationCandidate `json:"selectedAttractions"`
	DailyItinerary      []DayPlan                  `json:"dailyItinerary"`
	Summary             string                     `json:"summary"`
	Recommendations     []string                   `json:"recommendations"`
	FeasibilityScore    float64                    `json:"feasibilityScore"`
}

// rawLocation keeps coordinates raw so non-numeric values become nil
// instead of failing the whole response.
type rawLocation struct {
	Title           string          `json:"title"`
	Address         *string         `json:"address"`
	Category        *string         `json:"category"`
	Latitude        json.RawMessage `json:"latitude"`
	Longitude       json.RawMessage `json:"longitude"`
	VisitOrder      int             `json:"visit_order"`
	DurationMinutes *int            `json:"duration_minutes"`
}

type rawDay struct {
	Day       int           `json:"day"`
	Theme     string        `json:"theme"`
	Locations []rawLocation `json:"locations"`
}

type rawDraft struct {
	SelectedAttractions []rawLocation `json:"selectedAttractions"`
	DailyItinerary      []rawDay      `json:"dailyItinerary"`
	Summary             string        `json:"summary"`
	Recommendations     []string      `json:"recommendations"`
	FeasibilityScore    float64       `json:"feasibilityScore"`
}

const systemPrompt = `You are a Sri Lanka travel planner. Reply with a single JSON object:
{"selectedAttractions":[{"title":"","address":"","category":"","latitude":0,"longitude":0}],
"dailyItinerary":[{"day":1,"theme":"","locations":[{"title":"","latitude":0,"longitude":0,"visit_order":1,"duration_minutes":60}]}],
"summary":"","recommendations":[""],"feasibilityScore":0.0}
Coordinates are decimal degrees. feasibilityScore is between 0 and 1.`

// OpenAIPlanner generates drafts through the chat completions API
type OpenAIPlanner struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *logrus.Logger
}

// NewOpenAIPlanner creates a planner from config
func NewOpenAIPlanner(cfg config.PlannerConfig, logger *logrus.Logger) *OpenAIPlanner {
	clientCfg := openai.DefaultConfig(cfg.OpenAIKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAIBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIPlanner{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: timeout,
		logger:  logger,
	}
}

// GeneratePlan asks the model for an itinerary and decodes it
func (p *OpenAIPlanner) GeneratePlan(ctx context.Context, req Request) (*Draft, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(req)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.4,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	p.logger.WithFields(logrus.Fields{
		"model":       p.model,
		"days":        req.Days,
		"tokens":      resp.Usage.TotalTokens,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Generated AI itinerary draft")

	return ParseDraft(resp.Choices[0].Message.Content)
}

// ParseDraft decodes a model response, tolerating code fences around the JSON
func ParseDraft(content string) (*Draft, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var raw rawDraft
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode itinerary JSON: %w", err)
	}

	draft := &Draft{
		Summary:          raw.Summary,
		Recommendations:  raw.Recommendations,
		FeasibilityScore: raw.FeasibilityScore,
	}
	for _, loc := range raw.SelectedAttractions {
		draft.SelectedAttractions = append(draft.SelectedAttractions, loc.candidate(0))
	}
	for _, day := range raw.DailyItinerary {
		plan := DayPlan{Day: day.Day, Theme: day.Theme}
		for _, loc := range day.Locations {
			plan.Locations = append(plan.Locations, loc.candidate(day.Day))
		}
		draft.DailyItinerary = append(draft.DailyItinerary, plan)
	}
	return draft, nil
}

func (r rawLocation) candidate(day int) models.LocationCandidate {
	return models.LocationCandidate{
		Title:           strings.TrimSpace(r.Title),
		Address:         r.Address,
		Category:        r.Category,
		Latitude:        number(r.Latitude),
		Longitude:       number(r.Longitude),
		DayNumber:       day,
		VisitOrder:      r.VisitOrder,
		DurationMinutes: r.DurationMinutes,
	}
}

// number returns the value of a JSON number, or nil for anything else
func number(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}

func userPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan a %d-day trip in Sri Lanka starting from %s.", req.Days, req.StartLocation)
	if len(req.Interests) > 0 {
		fmt.Fprintf(&b, " Interests: %s.", strings.Join(req.Interests, ", "))
	}
	if req.Travelers > 0 {
		fmt.Fprintf(&b, " Travelers: %d.", req.Travelers)
	}
	if req.Budget != "" {
		fmt.Fprintf(&b, " Budget: %s.", req.Budget)
	}
	if req.Pace != "" {
		fmt.Fprintf(&b, " Pace: %s.", req.Pace)
	}
	return b.String()
}
