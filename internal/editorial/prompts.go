package editorial

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sciencesimplified/content-service/internal/domain"
	"github.com/sciencesimplified/content-service/internal/llm"
	"github.com/sciencesimplified/content-service/internal/pubmed"
)

const selectionSystem = `You are the editor of a science communication site for curious lay readers. ` +
	`You pick recently published research papers that can be turned into engaging, accessible articles. ` +
	`Prefer papers with clear real-world relevance and an abstract a non-specialist summary can be built from. ` +
	`Always answer with JSON only.`

const batchSelectionSystem = `You are the editor of a science communication site for curious lay readers. ` +
	`From the candidate papers you pick the single most promising one for a lay-audience article. ` +
	`Always answer with JSON only.`

const generationSystem = `You are a science writer for a popular science site. You turn research papers ` +
	`into engaging articles for curious readers with no scientific background. You never invent findings: ` +
	`every factual claim must come from the abstracts you are given. Always answer with JSON only.`

// buildSelectionPrompt asks for one to five paper picks from the candidates.
func buildSelectionPrompt(subjectName string, candidates []pubmed.PaperRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Below are %d candidate papers in the subject %q published last week.\n", len(candidates), subjectName)
	b.WriteString("Pick between 1 and 5 papers that would make the best articles for a general audience.\n\n")
	writeCandidateList(&b, candidates)
	b.WriteString("\nRespond with a JSON object of the form {\"pmids\": [\"...\"]} listing the PubMed IDs of your picks, best first.")
	return b.String()
}

// buildBatchSelectionPrompt asks for exactly one pick from the candidates.
func buildBatchSelectionPrompt(subjectName string, candidates []pubmed.PaperRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Below are %d candidate papers in the subject %q.\n", len(candidates), subjectName)
	b.WriteString("Pick the single paper that would make the best article for a general audience.\n\n")
	writeCandidateList(&b, candidates)
	b.WriteString("\nRespond with a JSON object of the form {\"pmid\": \"...\"} naming the PubMed ID of your pick.")
	return b.String()
}

func writeCandidateList(b *strings.Builder, candidates []pubmed.PaperRecord) {
	for i, c := range candidates {
		fmt.Fprintf(b, "%d. PMID %s: %s\n", i+1, c.PMID, c.Title)
		if c.Journal != "" {
			fmt.Fprintf(b, "   Journal: %s\n", c.Journal)
		}
		if c.Abstract != "" {
			fmt.Fprintf(b, "   Abstract: %s\n", c.Abstract)
		}
	}
}

// buildGenerationPrompt asks for a full article derived from the papers.
func buildGenerationPrompt(papers []*domain.SelectedPaper) string {
	var b strings.Builder
	if len(papers) == 1 {
		b.WriteString("Write an article based on this research paper:\n\n")
	} else {
		fmt.Fprintf(&b, "Write a single article based on these %d closely related research papers:\n\n", len(papers))
	}

	for i, p := range papers {
		fmt.Fprintf(&b, "%d. %s\n", i+1, p.ArticleTitle)
		if p.Authors != "" {
			fmt.Fprintf(&b, "   Authors: %s\n", p.Authors)
		}
		if p.JournalName != "" {
			fmt.Fprintf(&b, "   Journal: %s\n", p.JournalName)
		}
		if p.DOI != "" {
			fmt.Fprintf(&b, "   DOI: %s\n", p.DOI)
		}
		if p.Abstract != "" {
			fmt.Fprintf(&b, "   Abstract: %s\n", p.Abstract)
		}
	}

	b.WriteString(`
Audience and style:
- Write for a curious high-school reader. Explain every technical term in plain words the first time it appears, working in an analogy where one helps.
- Short paragraphs of 2 to 4 sentences. 600 to 1000 words in total.
- Use only facts present in the abstracts above. Do not add numbers, names, or findings that are not there.
- No inline citations in the body text. All sourcing belongs in the References section at the end.

Format:
- The article body must be semantic HTML only (h2, h3, p, ul, li, blockquote, strong, em). No markdown, no html/head/body wrapper.
- Insert <br><br> between every two or three paragraphs and a single <br> after each h3 header so the page has room to breathe.
- Lift 1 or 2 memorable sentences from your own article text into <blockquote> pull-quotes. Never quote the abstracts directly.

Structure, in this order:
1. A title that hooks without overselling.
2. A subtitle that connects the research to the reader's life.
3. An introduction of 100 to 150 words in three short paragraphs.
4. Two or three body sections with h3 headers that tell the discovery as a story: the setup, the complication, the resolution. Never use those words as headers.
5. A short conclusion on why it matters and what could come next.
6. An <h3>Key Terms</h3> section defining 3 to 6 technical terms from the article, one sentence each.
7. An <h3>References</h3> section listing each paper with authors, year, title, journal, and DOI.

Respond with a JSON object with exactly these keys:
{"title": "...", "subtitle": "...", "excerpt": "...", "content": "...", "readTimeMinutes": 0, "wordCount": 0}`)

	return b.String()
}

// Tool schemas for the tool-call output strategy. The parameter shapes
// mirror the JSON objects the prompts ask for, so response parsing is
// shared between both strategies.
var (
	selectionTool = &llm.ToolSchema{
		Name:        "select_papers",
		Description: "Record the PubMed IDs of the selected papers, best first.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"pmids": {"type": "array", "items": {"type": "string"}, "minItems": 1, "maxItems": 5}
			},
			"required": ["pmids"],
			"additionalProperties": false
		}`),
	}

	batchSelectionTool = &llm.ToolSchema{
		Name:        "select_paper",
		Description: "Record the PubMed ID of the single best paper.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"pmid": {"type": "string"}
			},
			"required": ["pmid"],
			"additionalProperties": false
		}`),
	}

	generationTool = &llm.ToolSchema{
		Name:        "create_blog_post",
		Description: "Record the generated article.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"title": {"type": "string"},
				"subtitle": {"type": "string"},
				"excerpt": {"type": "string"},
				"content": {"type": "string"},
				"readTimeMinutes": {"type": "integer"},
				"wordCount": {"type": "integer"}
			},
			"required": ["title", "subtitle", "excerpt", "content", "readTimeMinutes", "wordCount"],
			"additionalProperties": false
		}`),
	}
)

// generatedPost is the shape the generation prompt asks the model for.
type generatedPost struct {
	Title           string `json:"title"`
	Subtitle        string `json:"subtitle"`
	Excerpt         string `json:"excerpt"`
	Content         string `json:"content"`
	ReadTimeMinutes int    `json:"readTimeMinutes"`
	WordCount       int    `json:"wordCount"`
}

// stripCodeFences removes a surrounding markdown code fence, with or without
// a language tag. Models add these even when told to answer with JSON only.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		firstLine := strings.TrimSpace(s[:idx])
		// Drop a language tag such as "json" on the fence line.
		if firstLine == "" || !strings.ContainsAny(firstLine, "{}[]") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// parsePMIDList parses the multi-pick selection response. It accepts both
// the requested {"pmids": [...]} object and a bare JSON array.
func parsePMIDList(content string) ([]string, error) {
	content = stripCodeFences(content)

	var wrapped struct {
		PMIDs []string `json:"pmids"`
	}
	if err := json.Unmarshal([]byte(content), &wrapped); err == nil && wrapped.PMIDs != nil {
		return wrapped.PMIDs, nil
	}

	var bare []string
	if err := json.Unmarshal([]byte(content), &bare); err == nil {
		return bare, nil
	}

	return nil, fmt.Errorf("selection response is not a pmid list: %q", content)
}

// parsePMIDObject parses the single-pick selection response.
func parsePMIDObject(content string) (string, error) {
	content = stripCodeFences(content)

	var wrapped struct {
		PMID string `json:"pmid"`
	}
	if err := json.Unmarshal([]byte(content), &wrapped); err != nil {
		return "", fmt.Errorf("selection response is not a pmid object: %q", content)
	}
	if strings.TrimSpace(wrapped.PMID) == "" {
		return "", fmt.Errorf("selection response has no pmid: %q", content)
	}

	return wrapped.PMID, nil
}

// parseGeneratedPost parses the generation response.
func parseGeneratedPost(content string) (*generatedPost, error) {
	content = stripCodeFences(content)

	var post generatedPost
	if err := json.Unmarshal([]byte(content), &post); err != nil {
		return nil, fmt.Errorf("generation response is not valid JSON: %w", err)
	}
	if strings.TrimSpace(post.Title) == "" {
		return nil, fmt.Errorf("generation response has no title")
	}
	if strings.TrimSpace(post.Content) == "" {
		return nil, fmt.Errorf("generation response has no content")
	}

	return &post, nil
}
