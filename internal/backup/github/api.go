package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// User is the authenticated account.
type User struct {
	Login string `json:"login"`
}

// Repo is the subset of repository fields the provider needs.
type Repo struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
	Private       bool   `json:"private"`
}

// Ref is a git reference with the SHA it points at.
type Ref struct {
	Ref    string `json:"ref"`
	Object struct {
		SHA string `json:"sha"`
	} `json:"object"`
}

func (c *Client) GetUser(ctx context.Context) (*User, error) {
	var u User
	if err := c.doJSON(ctx, http.MethodGet, "/user", nil, &u); err != nil {
		return nil, fmt.Errorf("get authenticated user: %w", err)
	}
	return &u, nil
}

func (c *Client) GetRepo(ctx context.Context, owner, repo string) (*Repo, error) {
	var r Repo
	path := fmt.Sprintf("/repos/%s/%s", owner, repo)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRepo creates a private repository under the authenticated
// user, initialized so the default branch exists.
func (c *Client) CreateRepo(ctx context.Context, name string) (*Repo, error) {
	body := map[string]any{
		"name":        name,
		"private":     true,
		"auto_init":   true,
		"description": "WordPress site backups",
	}
	var r Repo
	if err := c.doJSON(ctx, http.MethodPost, "/user/repos", body, &r); err != nil {
		return nil, fmt.Errorf("create repository %s: %w", name, err)
	}
	return &r, nil
}

func (c *Client) GetBranchRef(ctx context.Context, owner, repo, branch string) (*Ref, error) {
	var r Ref
	path := fmt.Sprintf("/repos/%s/%s/git/ref/heads/%s", owner, repo, url.PathEscape(branch))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) CreateBranch(ctx context.Context, owner, repo, branch, fromSHA string) error {
	body := map[string]string{
		"ref": "refs/heads/" + branch,
		"sha": fromSHA,
	}
	path := fmt.Sprintf("/repos/%s/%s/git/refs", owner, repo)
	if err := c.doJSON(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("create branch %s: %w", branch, err)
	}
	return nil
}

func (c *Client) DeleteBranch(ctx context.Context, owner, repo, branch string) error {
	path := fmt.Sprintf("/repos/%s/%s/git/refs/heads/%s", owner, repo, url.PathEscape(branch))
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return err
	}
	return nil
}

// ListBranchRefs returns all refs under heads/ matching the given
// prefix, e.g. "backup/".
func (c *Client) ListBranchRefs(ctx context.Context, owner, repo, prefix string) ([]Ref, error) {
	var refs []Ref
	path := fmt.Sprintf("/repos/%s/%s/git/matching-refs/heads/%s", owner, repo, prefix)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &refs); err != nil {
		return nil, fmt.Errorf("list branch refs %s: %w", prefix, err)
	}
	return refs, nil
}

// PutFile commits content at path on branch via the contents API. Each
// call is one commit; commits to the same branch are ordered, so
// callers upload chunks sequentially.
func (c *Client) PutFile(ctx context.Context, owner, repo, branch, path, message string, content []byte) error {
	body := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(content),
		"branch":  branch,
	}
	apiPath := fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, escapePath(path))
	if err := c.doJSON(ctx, http.MethodPut, apiPath, body, nil); err != nil {
		return fmt.Errorf("put %s: %w", path, err)
	}
	return nil
}

// GetFile downloads the raw content of path at branch. Returns
// ErrNotFound (wrapped) when the file does not exist.
func (c *Client) GetFile(ctx context.Context, owner, repo, branch, path string) ([]byte, error) {
	apiPath := fmt.Sprintf("/repos/%s/%s/contents/%s?ref=%s",
		owner, repo, escapePath(path), url.QueryEscape(branch))

	resp, err := c.do(ctx, http.MethodGet, apiPath, "application/vnd.github.raw+json", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// escapePath escapes each path segment but keeps the separators.
func escapePath(p string) string {
	out := ""
	for i, seg := range splitPath(p) {
		if i > 0 {
			out += "/"
		}
		out += url.PathEscape(seg)
	}
	return out
}

func splitPath(p string) []string {
	var segs []string
	start := 0
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			segs = append(segs, p[start:i])
			start = i + 1
		}
	}
	return append(segs, p[start:])
}
