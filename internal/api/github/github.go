// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package github provides a thin client for the parts of the GitHub
// REST API the dashboard needs: workflow dispatch, workflow runs, repo
// contents and the OAuth web flow.
package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/MylesMCook/bloomberg-daily/internal/request"
)

const (
	defaultAPIBase  = "https://api.github.com"
	defaultAuthBase = "https://github.com"
)

// Client is a GitHub REST API client.
type Client struct {
	// Token is the access token used for authentication. It can be a
	// server-side token or a user token obtained via [Client.ExchangeCode].
	Token string
	// HTTPClient is an optional custom HTTP client object to use for
	// requests. If not provided, request.DefaultClient will be used.
	HTTPClient *http.Client
	// Scrubber is an optional strings.Replacer that removes tokens from
	// error messages.
	Scrubber *strings.Replacer
	// BaseURL overrides the API endpoint, used in tests.
	BaseURL string
	// AuthBaseURL overrides the OAuth endpoint (github.com), used in
	// tests.
	AuthBaseURL string
}

func (c *Client) apiBase() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return defaultAPIBase
}

func (c *Client) authBase() string {
	if c.AuthBaseURL != "" {
		return c.AuthBaseURL
	}
	return defaultAuthBase
}

// WithToken returns a copy of the client authenticating with the given
// token.
func (c *Client) WithToken(token string) *Client {
	nc := *c
	nc.Token = token
	return &nc
}

func makeRequest[Response any](ctx context.Context, c *Client, method, path string, body any) (Response, error) {
	rp := request.Params{
		Method: method,
		URL:    c.apiBase() + path,
		Headers: map[string]string{
			"Accept":               "application/vnd.github+json",
			"X-GitHub-Api-Version": "2022-11-28",
		},
		Body:       body,
		HTTPClient: c.HTTPClient,
		Scrubber:   c.Scrubber,
	}
	if c.Token != "" {
		rp.Headers["Authorization"] = "Bearer " + c.Token
	}
	return request.MakeJSON[Response](ctx, rp)
}

// DispatchWorkflow triggers a workflow_dispatch event for the workflow
// file in repo ("owner/name") on the given ref. Inputs may be nil.
func (c *Client) DispatchWorkflow(ctx context.Context, repo, workflowFile, ref string, inputs map[string]string) error {
	body := map[string]any{"ref": ref}
	if len(inputs) > 0 {
		body["inputs"] = inputs
	}
	_, err := makeRequest[struct{}](ctx, c, http.MethodPost,
		fmt.Sprintf("/repos/%s/actions/workflows/%s/dispatches", repo, workflowFile), body)
	return err
}

// WorkflowRun is a single run of a workflow.
type WorkflowRun struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	Event      string `json:"event"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
	HTMLURL    string `json:"html_url"`
	RunNumber  int    `json:"run_number"`
}

// WorkflowRuns is a page of workflow runs.
type WorkflowRuns struct {
	TotalCount int           `json:"total_count"`
	Runs       []WorkflowRun `json:"workflow_runs"`
}

// ListWorkflowRuns returns the most recent runs of the workflow file in
// repo, newest first.
func (c *Client) ListWorkflowRuns(ctx context.Context, repo, workflowFile string, perPage int) (*WorkflowRuns, error) {
	if perPage <= 0 {
		perPage = 10
	}
	return makeRequest[*WorkflowRuns](ctx, c, http.MethodGet,
		fmt.Sprintf("/repos/%s/actions/workflows/%s/runs?per_page=%d", repo, workflowFile, perPage), nil)
}

// File is a file fetched through the contents API.
type File struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	SHA     string `json:"sha"`
	Content string `json:"content"`
	// Encoding is how Content is encoded, normally "base64".
	Encoding string `json:"encoding"`
}

// Decode returns the decoded file content.
func (f *File) Decode() ([]byte, error) {
	switch f.Encoding {
	case "base64":
		return base64.StdEncoding.DecodeString(strings.ReplaceAll(f.Content, "\n", ""))
	case "", "none":
		return []byte(f.Content), nil
	default:
		return nil, fmt.Errorf("github: unsupported content encoding %q", f.Encoding)
	}
}

// GetContents fetches a file from repo at path on the given ref (empty
// for the default branch).
func (c *Client) GetContents(ctx context.Context, repo, path, ref string) (*File, error) {
	u := fmt.Sprintf("/repos/%s/contents/%s", repo, path)
	if ref != "" {
		u += "?ref=" + url.QueryEscape(ref)
	}
	return makeRequest[*File](ctx, c, http.MethodGet, u, nil)
}

// PutContents creates or updates a file through the contents API. sha
// is the blob SHA of the existing file and must be empty when creating
// a new one.
func (c *Client) PutContents(ctx context.Context, repo, path, branch, message string, content []byte, sha string) error {
	body := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(content),
	}
	if branch != "" {
		body["branch"] = branch
	}
	if sha != "" {
		body["sha"] = sha
	}
	_, err := makeRequest[struct{}](ctx, c, http.MethodPut,
		fmt.Sprintf("/repos/%s/contents/%s", repo, path), body)
	return err
}

// User is the authenticated GitHub user.
type User struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// Me returns the user the client's token belongs to.
func (c *Client) Me(ctx context.Context) (*User, error) {
	return makeRequest[*User](ctx, c, http.MethodGet, "/user", nil)
}

// ExchangeCode performs the OAuth web flow code exchange and returns
// the resulting access token.
func (c *Client) ExchangeCode(ctx context.Context, clientID, clientSecret, code string) (string, error) {
	type tokenResponse struct {
		AccessToken      string `json:"access_token"`
		TokenType        string `json:"token_type"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	resp, err := request.MakeJSON[tokenResponse](ctx, request.Params{
		Method: http.MethodPost,
		URL:    c.authBase() + "/login/oauth/access_token",
		Headers: map[string]string{
			"Accept": "application/json",
		},
		Body: map[string]string{
			"client_id":     clientID,
			"client_secret": clientSecret,
			"code":          code,
		},
		HTTPClient: c.HTTPClient,
		Scrubber:   c.Scrubber,
	})
	if err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("github: code exchange failed: %s (%s)", resp.Error, resp.ErrorDescription)
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("github: code exchange returned no token")
	}
	return resp.AccessToken, nil
}

// AuthorizeURL returns the GitHub authorize URL that starts the OAuth
// web flow.
func (c *Client) AuthorizeURL(clientID, redirectURI, state string) string {
	q := url.Values{
		"client_id":    {clientID},
		"redirect_uri": {redirectURI},
		"state":        {state},
		"scope":        {"read:user"},
	}
	return c.authBase() + "/login/oauth/authorize?" + q.Encode()
}
