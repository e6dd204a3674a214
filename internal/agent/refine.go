package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/backlogsmith/backlogsmith/internal/quality"
)

func (a *Agent) logf(format string, args ...any) {
	if a.logger == nil {
		return
	}
	fmt.Fprintf(a.logger, format+"\n", args...)
}

// improver produces an improved replacement for a rejected candidate.
// ok=false means the improvement call failed or its response did not decode;
// the caller gives up on the candidate.
type improver[T any] func(ctx context.Context, item T, asm quality.Assessment) (T, bool)

// refineOne runs one candidate through the quality gate. Approved candidates
// pass through unchanged; rejected ones get up to maxRetries-1 improvement
// rounds, each re-assessed. A candidate still failing after the last round is
// dropped, never padded into shape.
func refineOne[T any](ctx context.Context, a *Agent, item T,
	assess func(T) quality.Assessment, improve improver[T]) (T, quality.Assessment, bool) {

	var asm quality.Assessment
	for attempt := 0; attempt < a.maxRetries; attempt++ {
		asm = assess(item)
		if asm.Approved() {
			return item, asm, true
		}
		if attempt == a.maxRetries-1 {
			break
		}
		a.showRetry(attempt+1, a.maxRetries-1, asm.Score)
		a.logf("%s: candidate scored %d (%s), improving (attempt %d/%d)",
			a.name, asm.Score, asm.Rating, attempt+1, a.maxRetries-1)
		next, ok := improve(ctx, item, asm)
		if !ok {
			break
		}
		item = next
	}

	var zero T
	a.showSkip(fmt.Sprintf("scored %d (%s)", asm.Score, asm.Rating))
	a.logf("%s: candidate rejected at %d (%s) after %d attempts",
		a.name, asm.Score, asm.Rating, a.maxRetries)
	return zero, asm, false
}

// refineBatch gates every candidate, then backfills the shortfall with one
// replacement generation round. Replacements get a single quality check each;
// those that fail it are discarded. The result can come up short of target:
// an underfilled stage beats a padded one. Approved items are reported with
// their gate score; title names the item in that report.
func refineBatch[T any](ctx context.Context, a *Agent, items []T, target int,
	title func(T) string,
	assess func(T) quality.Assessment,
	improve improver[T],
	generate func(ctx context.Context, n int) []T) []T {

	kept := make([]T, 0, target)
	for _, item := range items {
		if len(kept) == target {
			break
		}
		refined, asm, ok := refineOne(ctx, a, item, assess, improve)
		if ok {
			kept = append(kept, refined)
			a.showItem(title(refined), asm.Score)
		}
	}

	if len(kept) < target && generate != nil {
		shortfall := target - len(kept)
		a.logf("%s: %d of %d candidates survived, backfilling %d",
			a.name, len(kept), target, shortfall)
		for _, item := range generate(ctx, shortfall) {
			if len(kept) == target {
				break
			}
			if asm := assess(item); asm.Approved() {
				kept = append(kept, item)
				a.showItem(title(item), asm.Score)
			}
		}
	}

	return kept
}

// improvementPrompt builds the user message for an improvement round: the
// rejected candidate as JSON, the assessor's findings, and the parent
// context to stay aligned with.
func improvementPrompt(kind string, item any, asm quality.Assessment, parentContext string) string {
	data, _ := json.MarshalIndent(item, "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, "The following %s was rejected by a quality review (score %d, %s).\n\n",
		kind, asm.Score, asm.Rating)
	fmt.Fprintf(&b, "```json\n%s\n```\n\n", data)
	if len(asm.SpecificIssues) > 0 {
		b.WriteString("Issues found:\n")
		for _, issue := range asm.SpecificIssues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
		b.WriteString("\n")
	}
	if len(asm.ImprovementSuggestions) > 0 {
		b.WriteString("How to fix them:\n")
		for _, s := range asm.ImprovementSuggestions {
			fmt.Fprintf(&b, "- %s\n", s)
		}
		b.WriteString("\n")
	}
	if parentContext != "" {
		fmt.Fprintf(&b, "It must stay aligned with:\n%s\n\n", parentContext)
	}
	fmt.Fprintf(&b, "Rewrite the %s to address every issue. Return ONLY the corrected JSON object in the same format.", kind)
	return b.String()
}

// backfillPrompt asks for n fresh candidates distinct from what already
// survived the gate.
func backfillPrompt(kind string, n int, existingTitles []string, parentContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate exactly %d additional %ss", n, kind)
	if parentContext != "" {
		fmt.Fprintf(&b, " for:\n%s\n", parentContext)
	} else {
		b.WriteString(".\n")
	}
	if len(existingTitles) > 0 {
		b.WriteString("\nThey must not duplicate these existing titles:\n")
		for _, t := range existingTitles {
			fmt.Fprintf(&b, "- %s\n", t)
		}
	}
	b.WriteString("\nReturn ONLY a JSON array in the same format as before.")
	return b.String()
}
