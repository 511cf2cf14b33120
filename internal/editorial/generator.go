package editorial

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sciencesimplified/content-service/internal/domain"
	"github.com/sciencesimplified/content-service/internal/llm"
	"github.com/sciencesimplified/content-service/internal/observability"
	"github.com/sciencesimplified/content-service/internal/repository"
)

// Generation defaults.
const (
	// DefaultMaxPapersPerPost caps how many papers feed one article.
	DefaultMaxPapersPerPost = 5

	// DefaultGenerationBudget bounds a generate-all run. Groups left when the
	// budget runs out are reported as remaining, not failed.
	DefaultGenerationBudget = 100 * time.Second

	// wordsPerMinute is the reading speed used for the read time fallback.
	wordsPerMinute = 200

	// Generation failure stages.
	stageRequest = "request"
	stageParse   = "parse"
	stagePersist = "persist"
)

// GroupError records one failed generation group.
type GroupError struct {
	Title string `json:"title"`
	Error string `json:"error"`
}

// GenerationReport summarizes a generate-all run.
type GenerationReport struct {
	Generated int          `json:"generated"`
	Remaining int          `json:"remaining"`
	Errors    []GroupError `json:"errors,omitempty"`
}

// GeneratorConfig holds generation limits.
type GeneratorConfig struct {
	// MaxPapersPerPost caps the papers fed into one article.
	MaxPapersPerPost int
	// Budget is the wall-clock ceiling for a generate-all run.
	Budget time.Duration
}

// Generator turns ungrouped selected papers into draft blog posts.
type Generator struct {
	papers  repository.PaperRepository
	posts   repository.PostRepository
	llm     llm.Client
	logger  zerolog.Logger
	metrics *observability.Metrics
	cfg     GeneratorConfig
	now     func() time.Time
}

// NewGenerator creates a Generator.
func NewGenerator(
	papers repository.PaperRepository,
	posts repository.PostRepository,
	llmClient llm.Client,
	cfg GeneratorConfig,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Generator {
	if cfg.MaxPapersPerPost <= 0 {
		cfg.MaxPapersPerPost = DefaultMaxPapersPerPost
	}
	if cfg.Budget <= 0 {
		cfg.Budget = DefaultGenerationBudget
	}
	return &Generator{
		papers:  papers,
		posts:   posts,
		llm:     llmClient,
		logger:  observability.WithComponent(logger, "generator"),
		metrics: metrics,
		cfg:     cfg,
		now:     time.Now,
	}
}

// GenerateAll groups every not-yet-covered paper and generates one draft post
// per group until the time budget is spent. A failing group is reported and
// the run moves on; groups the budget cut off count as remaining.
func (g *Generator) GenerateAll(ctx context.Context) (*GenerationReport, error) {
	papers, _, err := g.papers.List(ctx, repository.PaperFilter{Limit: 1000})
	if err != nil {
		return nil, err
	}

	used, err := g.posts.UsedPaperIDs(ctx)
	if err != nil {
		return nil, err
	}

	groups, excluded := GroupPapers(papers, used)
	if g.metrics != nil && excluded > 0 {
		g.metrics.RecordPapersDeduplicated(excluded)
	}

	report := &GenerationReport{}
	deadline := g.now().Add(g.cfg.Budget)

	for i, group := range groups {
		if err := ctx.Err(); err != nil {
			report.Remaining = len(groups) - i
			return report, err
		}
		if !g.now().Before(deadline) {
			report.Remaining = len(groups) - i
			g.logger.Warn().
				Int("generated", report.Generated).
				Int("remaining", report.Remaining).
				Msg("generation budget exhausted")
			break
		}

		if _, err := g.generateGroup(ctx, group); err != nil {
			report.Errors = append(report.Errors, GroupError{
				Title: group[0].ArticleTitle,
				Error: err.Error(),
			})
			continue
		}
		report.Generated++
	}

	return report, nil
}

// GenerateFromPapers generates a single draft post from an explicit paper set.
// Papers already covered by a post are rejected rather than silently dropped.
func (g *Generator) GenerateFromPapers(ctx context.Context, ids []uuid.UUID) (*domain.BlogPost, error) {
	if len(ids) == 0 {
		return nil, domain.NewValidationError("paper_ids", "at least one paper id is required")
	}

	papers, err := g.papers.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(papers) != len(ids) {
		return nil, domain.NewNotFoundError("paper", "one or more requested papers do not exist")
	}

	used, err := g.posts.UsedPaperIDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range papers {
		if _, ok := used[p.ID]; ok {
			return nil, domain.NewValidationError("paper_ids",
				"paper "+p.ID.String()+" is already cited by a post")
		}
	}

	return g.generateGroup(ctx, papers)
}

// generateGroup runs one generation prompt and persists the resulting draft.
func (g *Generator) generateGroup(ctx context.Context, group []*domain.SelectedPaper) (*domain.BlogPost, error) {
	start := g.now()

	if len(group) > g.cfg.MaxPapersPerPost {
		group = group[:g.cfg.MaxPapersPerPost]
	}

	result, err := g.llm.Complete(ctx, llm.Request{
		Operation: "generate_post",
		System:    generationSystem,
		User:      buildGenerationPrompt(group),
		Tool:      generationTool,
	})
	if err != nil {
		if g.metrics != nil {
			g.metrics.RecordGenerationFailed(stageRequest)
		}
		return nil, domain.NewGenerationError(stageRequest, "completion failed", err)
	}

	parsed, err := parseGeneratedPost(result.Content)
	if err != nil {
		if g.metrics != nil {
			g.metrics.RecordGenerationFailed(stageParse)
		}
		return nil, domain.NewGenerationError(stageParse, err.Error(), err)
	}

	post := g.buildPost(group, parsed)
	citations := make([]*domain.PaperCitation, len(group))
	for i, p := range group {
		citations[i] = &domain.PaperCitation{
			SelectedPaperID: p.ID,
			CitationOrder:   i + 1,
		}
	}

	if err := g.posts.Create(ctx, post, citations); err != nil {
		if g.metrics != nil {
			g.metrics.RecordGenerationFailed(stagePersist)
		}
		return nil, domain.NewGenerationError(stagePersist, "failed to persist post", err)
	}

	if g.metrics != nil {
		g.metrics.RecordPostGenerated(g.now().Sub(start).Seconds())
	}

	g.logger.Info().
		Str("post_id", post.ID.String()).
		Str("title", post.Title).
		Int("papers", len(group)).
		Int("read_time", post.ReadTime).
		Msg("post generated")

	return post, nil
}

// buildPost assembles the draft from the model output and the source papers.
func (g *Generator) buildPost(group []*domain.SelectedPaper, parsed *generatedPost) *domain.BlogPost {
	paperIDs := make([]uuid.UUID, len(group))
	var subjectIDs []uuid.UUID
	seenSubjects := make(map[uuid.UUID]struct{})
	for i, p := range group {
		paperIDs[i] = p.ID
		if _, ok := seenSubjects[p.SubjectID]; !ok {
			seenSubjects[p.SubjectID] = struct{}{}
			subjectIDs = append(subjectIDs, p.SubjectID)
		}
	}

	readTime := parsed.ReadTimeMinutes
	if readTime <= 0 {
		words := parsed.WordCount
		if words <= 0 {
			words = countWords(parsed.Content)
		}
		readTime = (words + wordsPerMinute - 1) / wordsPerMinute
		if readTime < 1 {
			readTime = 1
		}
	}

	return &domain.BlogPost{
		SubjectID:  group[0].SubjectID,
		SubjectIDs: subjectIDs,
		Title:      parsed.Title,
		Subtitle:   parsed.Subtitle,
		Excerpt:    parsed.Excerpt,
		Content:    parsed.Content,
		ReadTime:   readTime,
		PaperIDs:   paperIDs,
		Status:     domain.PostStatusDraft,
	}
}

// countWords approximates the word count of the HTML body.
func countWords(content string) int {
	return len(strings.Fields(content))
}
