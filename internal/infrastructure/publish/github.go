// Package publish posts review results to pull requests.
package publish

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/google/go-github/v69/github"
	"golang.org/x/oauth2"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

// Target identifies a pull request.
type Target struct {
	Owner  string
	Repo   string
	Number int
}

// ParseTarget accepts "owner/name" plus a PR number.
func ParseTarget(repo string, number int) (Target, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Target{}, fmt.Errorf("repository must be owner/name, got %q", repo)
	}
	if number <= 0 {
		return Target{}, fmt.Errorf("pull request number must be positive, got %d", number)
	}
	return Target{Owner: owner, Repo: name, Number: number}, nil
}

func (t Target) String() string {
	return fmt.Sprintf("github:%s/%s#%d", t.Owner, t.Repo, t.Number)
}

// GitHubPublisher writes one comment per document on a pull request and
// edits it on later runs.
type GitHubPublisher struct {
	client *github.Client
}

// NewGitHubPublisher authenticates with a static token. A non-empty
// baseURL points the client at GitHub Enterprise.
func NewGitHubPublisher(ctx context.Context, token, baseURL string) (*GitHubPublisher, error) {
	var httpClient *http.Client
	if token != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	client := github.NewClient(httpClient)
	if baseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("github base url: %w", err)
		}
	}
	return &GitHubPublisher{client: client}, nil
}

// NewGitHubPublisherWithClient uses a preconfigured client.
func NewGitHubPublisherWithClient(client *github.Client) *GitHubPublisher {
	return &GitHubPublisher{client: client}
}

// Publish creates or updates the review comment and returns its URL.
func (p *GitHubPublisher) Publish(ctx context.Context, t Target, res *review.ReviewResult) (string, error) {
	body := FormatComment(res)
	marker := commentMarker(res.DocumentID)

	existing, err := p.findComment(ctx, t, marker)
	if err != nil {
		return "", err
	}
	comment := &github.IssueComment{Body: github.Ptr(body)}
	if existing != nil {
		updated, _, err := p.client.Issues.EditComment(ctx, t.Owner, t.Repo, existing.GetID(), comment)
		if err != nil {
			return "", fmt.Errorf("update comment on %s: %w", t, err)
		}
		return updated.GetHTMLURL(), nil
	}
	created, _, err := p.client.Issues.CreateComment(ctx, t.Owner, t.Repo, t.Number, comment)
	if err != nil {
		return "", fmt.Errorf("comment on %s: %w", t, err)
	}
	return created.GetHTMLURL(), nil
}

func (p *GitHubPublisher) findComment(ctx context.Context, t Target, marker string) (*github.IssueComment, error) {
	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		comments, resp, err := p.client.Issues.ListComments(ctx, t.Owner, t.Repo, t.Number, opts)
		if err != nil {
			return nil, fmt.Errorf("list comments on %s: %w", t, err)
		}
		for _, c := range comments {
			if strings.Contains(c.GetBody(), marker) {
				return c, nil
			}
		}
		if resp == nil || resp.NextPage == 0 {
			return nil, nil
		}
		opts.Page = resp.NextPage
	}
}

func commentMarker(documentID string) string {
	return fmt.Sprintf("<!-- smartreviewer:%s -->", documentID)
}

var statusIcon = map[review.Status]string{
	review.StatusPass:    "✅",
	review.StatusWarning: "⚠️",
	review.StatusFail:    "❌",
}

var severityRank = map[review.Severity]int{
	review.SeverityCritical: 0,
	review.SeverityMajor:    1,
	review.SeverityMinor:    2,
	review.SeverityInfo:     3,
}

// FormatComment renders a result as GitHub flavoured markdown.
func FormatComment(res *review.ReviewResult) string {
	var b strings.Builder
	b.WriteString(commentMarker(res.DocumentID))
	b.WriteString("\n")
	fmt.Fprintf(&b, "## %s Review of `%s`: %s\n\n", statusIcon[res.Status], res.DocumentID, res.Status)
	m := res.Metadata
	fmt.Fprintf(&b, "%d checks run: %d passed, %d warnings, %d failed, %d errored, %d skipped.\n",
		m.ChecksExecuted, m.ChecksPassed, m.ChecksWarning, m.ChecksFailed, m.ChecksErrored, m.ChecksSkipped)
	if res.RunState == review.RunPartiallyFailed {
		b.WriteString("\n> Some check items could not be evaluated. The verdict covers the rest.\n")
	}

	if len(res.Findings) > 0 {
		findings := append([]review.Finding(nil), res.Findings...)
		sort.SliceStable(findings, func(i, j int) bool {
			return severityRank[findings[i].Severity] < severityRank[findings[j].Severity]
		})
		b.WriteString("\n| Severity | Check | Finding | Location |\n|---|---|---|---|\n")
		for _, f := range findings {
			text := f.Message
			if f.Title != "" {
				text = "**" + f.Title + "** " + text
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", f.Severity, f.CheckItemID, escapeCell(text), escapeCell(f.Location))
		}
	}

	if len(res.Suggestions) > 0 {
		b.WriteString("\n<details><summary>Suggestions</summary>\n\n")
		for _, s := range res.Suggestions {
			title := s.Title
			if title == "" {
				title = s.FindingID
			}
			fmt.Fprintf(&b, "- **%s** (P%d): %s\n", title, s.Priority, s.Content)
		}
		b.WriteString("\n</details>\n")
	}

	fmt.Fprintf(&b, "\n<sub>review %s</sub>\n", res.ID)
	return b.String()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
