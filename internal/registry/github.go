package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/t3up/analyzer/internal/messages"
)

// DefaultGitHubBaseURL is the public GitHub API root.
const DefaultGitHubBaseURL = "https://api.github.com"

const (
	githubBackoffBase    = 500 * time.Millisecond
	githubBackoffCeiling = 8 * time.Second
	githubBackoffRetries = 3
)

// TagRef is one tag with the commit date it points at.
type TagRef struct {
	Name        string    `json:"name"`
	CommittedAt time.Time `json:"committed_at"`
}

// RepoHealth summarizes one repository lookup. Available is false when the
// repository does not exist or the API quota stayed exhausted through the
// backoff budget; neither case is an error.
type RepoHealth struct {
	Available   bool      `json:"available"`
	URL         string    `json:"url,omitempty"`
	Archived    bool      `json:"archived"`
	Fork        bool      `json:"fork"`
	Stars       int       `json:"stars"`
	PushedAt    time.Time `json:"pushed_at,omitzero"`
	Tags        []TagRef  `json:"tags,omitempty"`
	HealthScore float64   `json:"health_score"`
}

// GitHubClient queries the source-hosting GraphQL API for repository
// health signals.
type GitHubClient struct {
	client
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGitHubClient builds a client against baseURL (DefaultGitHubBaseURL
// when empty). An empty token sends unauthenticated requests.
func NewGitHubClient(baseURL, token string, limiter *RateLimiter) *GitHubClient {
	if baseURL == "" {
		baseURL = DefaultGitHubBaseURL
	}
	return &GitHubClient{
		client: client{name: "github", baseURL: baseURL, token: token, limiter: limiter},
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// WithTimeout gives the client its own HTTP timeout instead of the shared
// default.
func (c *GitHubClient) WithTimeout(d time.Duration) *GitHubClient {
	c.http = &http.Client{Timeout: d}
	return c
}

const repoHealthQuery = `query($owner: String!, $name: String!) {
  repository(owner: $owner, name: $name) {
    isArchived
    isFork
    stargazerCount
    pushedAt
    url
    refs(refPrefix: "refs/tags/", last: 50) {
      nodes {
        name
        target {
          ... on Commit { committedDate }
          ... on Tag { target { ... on Commit { committedDate } } }
        }
      }
    }
  }
}`

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLTagTarget struct {
	CommittedDate time.Time         `json:"committedDate"`
	Target        *graphQLTagTarget `json:"target,omitempty"`
}

type graphQLResponse struct {
	Data struct {
		Repository *struct {
			IsArchived     bool      `json:"isArchived"`
			IsFork         bool      `json:"isFork"`
			StargazerCount int       `json:"stargazerCount"`
			PushedAt       time.Time `json:"pushedAt"`
			URL            string    `json:"url"`
			Refs           struct {
				Nodes []struct {
					Name   string           `json:"name"`
					Target graphQLTagTarget `json:"target"`
				} `json:"nodes"`
			} `json:"refs"`
		} `json:"repository"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// RepoHealth looks up (owner, name). Quota exhaustion is retried with
// exponential backoff up to a ceiling; if the quota never recovers the
// result is Available=false with a nil error.
func (c *GitHubClient) RepoHealth(ctx context.Context, owner, name string) (RepoHealth, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return RepoHealth{}, err
		}
	}

	body, err := json.Marshal(graphQLRequest{
		Query:     repoHealthQuery,
		Variables: map[string]any{"owner": owner, "name": name},
	})
	if err != nil {
		return RepoHealth{}, fmt.Errorf(messages.RegistryCreateRequestErrFmt, err)
	}

	backoff := githubBackoffBase
	for attempt := 0; ; attempt++ {
		payload, rateLimited, err := c.post(ctx, body)
		if err != nil {
			return RepoHealth{}, err
		}
		if rateLimited {
			if attempt >= githubBackoffRetries {
				return RepoHealth{}, nil
			}
			if err := c.sleep(ctx, backoff); err != nil {
				return RepoHealth{}, err
			}
			backoff *= 2
			if backoff > githubBackoffCeiling {
				backoff = githubBackoffCeiling
			}
			continue
		}
		return c.health(payload), nil
	}
}

// post issues one GraphQL request. rateLimited is set on quota exhaustion;
// a missing repository yields an empty response with no error.
func (c *GitHubClient) post(ctx context.Context, body []byte) (graphQLResponse, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/graphql", bytes.NewReader(body))
	if err != nil {
		return graphQLResponse{}, false, fmt.Errorf(messages.RegistryCreateRequestErrFmt, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "t3up")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpDo(req)
	if err != nil {
		return graphQLResponse{}, false, fmt.Errorf(messages.RegistryRequestErrFmt, c.name, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if rateLimitedResponse(resp) {
		return graphQLResponse{}, true, nil
	}
	if resp.StatusCode != http.StatusOK {
		return graphQLResponse{}, false, fmt.Errorf(messages.RegistryStatusErrFmt, c.name, resp.Status)
	}

	var payload graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return graphQLResponse{}, false, fmt.Errorf(messages.RegistryDecodeErrFmt, c.name, err)
	}
	for _, gqlErr := range payload.Errors {
		// NOT_FOUND arrives as a GraphQL error with a null repository.
		if strings.Contains(strings.ToLower(gqlErr.Message), "could not resolve") {
			return graphQLResponse{}, false, nil
		}
	}
	if len(payload.Errors) > 0 {
		return graphQLResponse{}, false, fmt.Errorf(messages.RegistryGraphQLErrFmt, payload.Errors[0].Message)
	}
	return payload, false, nil
}

// rateLimitedResponse reports whether resp signals quota exhaustion:
// 429 always, 403 only when the remaining-quota header confirms it.
func rateLimitedResponse(resp *http.Response) bool {
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if resp.StatusCode != http.StatusForbidden {
		return false
	}
	remaining := strings.TrimSpace(resp.Header.Get("X-RateLimit-Remaining"))
	if remaining == "" {
		return false
	}
	n, err := strconv.Atoi(remaining)
	return err == nil && n == 0
}

// health converts a GraphQL payload into a RepoHealth with its score.
//
// The score starts at 1.0 and degrades on negative signals:
// archived caps it at 0.2, a fork costs 0.1, staleness costs up to 0.6
// (0.15 after 90 days, 0.35 after one year, 0.6 after two), and low
// visibility costs up to 0.1 (0.05 below 500 stars, 0.1 below 50).
func (c *GitHubClient) health(payload graphQLResponse) RepoHealth {
	repo := payload.Data.Repository
	if repo == nil {
		return RepoHealth{}
	}

	out := RepoHealth{
		Available: true,
		URL:       repo.URL,
		Archived:  repo.IsArchived,
		Fork:      repo.IsFork,
		Stars:     repo.StargazerCount,
		PushedAt:  repo.PushedAt,
	}
	for _, node := range repo.Refs.Nodes {
		out.Tags = append(out.Tags, TagRef{Name: node.Name, CommittedAt: commitDate(node.Target)})
	}

	score := 1.0
	if !out.PushedAt.IsZero() {
		switch age := c.now().Sub(out.PushedAt); {
		case age > 2*365*24*time.Hour:
			score -= 0.6
		case age > 365*24*time.Hour:
			score -= 0.35
		case age > 90*24*time.Hour:
			score -= 0.15
		}
	}
	switch {
	case out.Stars < 50:
		score -= 0.1
	case out.Stars < 500:
		score -= 0.05
	}
	if out.Fork {
		score -= 0.1
	}
	if out.Archived && score > 0.2 {
		score = 0.2
	}
	if score < 0 {
		score = 0
	}
	out.HealthScore = score
	return out
}

func commitDate(target graphQLTagTarget) time.Time {
	if !target.CommittedDate.IsZero() {
		return target.CommittedDate
	}
	if target.Target != nil {
		return target.Target.CommittedDate
	}
	return time.Time{}
}
