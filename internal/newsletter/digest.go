package newsletter

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/sciencesimplified/content-service/internal/domain"
)

// digestTemplate renders the weekly digest email body. Inline styles only;
// email clients ignore stylesheets.
var digestTemplate = template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Georgia, serif; max-width: 600px; margin: 0 auto; color: #1a1a1a;">
  <h1 style="font-size: 24px;">This Week in Science</h1>
  <p style="color: #555;">{{ .Intro }}</p>
  {{ range .Posts }}
  <div style="margin: 24px 0; padding-bottom: 16px; border-bottom: 1px solid #e0e0e0;">
    <h2 style="font-size: 19px; margin-bottom: 4px;">{{ .Title }}</h2>
    {{ if .Subtitle }}<p style="color: #777; font-style: italic; margin-top: 0;">{{ .Subtitle }}</p>{{ end }}
    {{ if .Excerpt }}<p>{{ .Excerpt }}</p>{{ end }}
    <p style="color: #999; font-size: 13px;">{{ .ReadTime }} min read</p>
  </div>
  {{ end }}
  <p style="color: #999; font-size: 12px;">You are receiving this because you subscribed to the weekly digest.</p>
</body>
</html>`))

type digestData struct {
	Intro string
	Posts []*domain.BlogPost
}

// RenderDigest produces the subject line and HTML body for a digest covering
// the given posts.
func RenderDigest(posts []*domain.BlogPost, now time.Time) (subject, html string, err error) {
	if len(posts) == 0 {
		return "", "", fmt.Errorf("digest needs at least one post")
	}

	subject = fmt.Sprintf("This Week in Science: %s", posts[0].Title)

	intro := fmt.Sprintf("The %d stories we published for the week of %s.",
		len(posts), now.UTC().Format("January 2, 2006"))
	if len(posts) == 1 {
		intro = fmt.Sprintf("Our story for the week of %s.", now.UTC().Format("January 2, 2006"))
	}

	var b strings.Builder
	if err := digestTemplate.Execute(&b, digestData{Intro: intro, Posts: posts}); err != nil {
		return "", "", fmt.Errorf("failed to render digest: %w", err)
	}

	return subject, b.String(), nil
}
