package agent

import (
	"context"
	"fmt"
	"io"

	"github.com/backlogsmith/backlogsmith/internal/config"
	"github.com/backlogsmith/backlogsmith/internal/extract"
	"github.com/backlogsmith/backlogsmith/internal/llm"
	"github.com/backlogsmith/backlogsmith/internal/prompts"
	"github.com/backlogsmith/backlogsmith/internal/workitem"
)

// EpicAgent decomposes a product vision into epics. Epics have no quality
// gate; normalization alone decides what survives. When JSON extraction
// fails entirely the agent falls back to scraping list items out of the
// prose, letting normalization filter what is too thin to keep.
type EpicAgent struct {
	*Agent
}

// NewEpicAgent builds the epic stage.
func NewEpicAgent(cfg *config.Config, provider llm.Provider, registry *prompts.Registry, progress Progress, logger io.Writer) *EpicAgent {
	return &EpicAgent{newAgent("epic", cfg, provider, registry, progress, logger)}
}

// Generate produces up to max epics from the product vision.
func (a *EpicAgent) Generate(ctx context.Context, vision string, max int) ([]workitem.Epic, error) {
	system, err := a.systemPrompt("epic", nil)
	if err != nil {
		return nil, err
	}

	user := fmt.Sprintf("Product vision:\n%s\n\nGenerate at most %d epics covering the whole vision.", vision, max)
	raw, err := a.complete(ctx, system, user)
	if err != nil {
		return nil, err
	}

	items, ok := decodeList[workitem.Epic](raw)
	if !ok {
		a.logf("epic: response is not JSON, scraping list items")
		for _, line := range extract.FallbackItems(raw) {
			items = append(items, workitem.Epic{Title: line, Description: line})
		}
	}

	epics := make([]workitem.Epic, 0, max)
	for _, e := range items {
		if len(epics) == max {
			break
		}
		norm, err := workitem.NormalizeEpic(e)
		if err != nil {
			a.logf("epic: dropped candidate: %v", err)
			continue
		}
		epics = append(epics, norm)
	}
	return epics, nil
}
