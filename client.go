package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/emrgen/knowledge/internal/auth"
	"github.com/emrgen/knowledge/internal/service"
)

// APIError is an error response of the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsConflict reports whether err is a version mismatch.
func IsConflict(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

// IsForbidden reports whether err is an ownership failure.
func IsForbidden(err error) bool {
	return hasStatus(err, http.StatusForbidden)
}

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// Client talks to the knowledge HTTP API as one user.
type Client struct {
	baseURL string
	userID  string
	roles   []string
	http    *http.Client
}

func NewClient(baseURL, userID string, roles []string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		userID:  userID,
		roles:   roles,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) CreateOrganization(ctx context.Context, name string) (*Organization, error) {
	var org Organization
	err := c.do(ctx, http.MethodPost, "/v1/organizations", service.CreateOrganizationRequest{Name: name}, &org)
	return &org, err
}

func (c *Client) ListOrganizations(ctx context.Context) ([]*Organization, error) {
	var orgs []*Organization
	err := c.do(ctx, http.MethodGet, "/v1/organizations", nil, &orgs)
	return orgs, err
}

func (c *Client) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	var org Organization
	err := c.do(ctx, http.MethodGet, "/v1/organizations/"+url.PathEscape(id), nil, &org)
	return &org, err
}

func (c *Client) CreateGroup(ctx context.Context, organizationID, name string) (*Group, error) {
	var group Group
	err := c.do(ctx, http.MethodPost, "/v1/organizations/"+url.PathEscape(organizationID)+"/groups", service.CreateGroupRequest{Name: name}, &group)
	return &group, err
}

func (c *Client) ListGroups(ctx context.Context, organizationID string) ([]*Group, error) {
	var groups []*Group
	err := c.do(ctx, http.MethodGet, "/v1/organizations/"+url.PathEscape(organizationID)+"/groups", nil, &groups)
	return groups, err
}

func (c *Client) ListCandidates(ctx context.Context, organizationID, exclude string) ([]*Candidate, error) {
	path := "/v1/organizations/" + url.PathEscape(organizationID) + "/candidates"
	if exclude != "" {
		path += "?exclude=" + url.QueryEscape(exclude)
	}

	var candidates []*Candidate
	err := c.do(ctx, http.MethodGet, path, nil, &candidates)
	return candidates, err
}

func (c *Client) GetGraph(ctx context.Context, organizationID string) ([]LinkedEntry, error) {
	var entries []LinkedEntry
	err := c.do(ctx, http.MethodGet, "/v1/organizations/"+url.PathEscape(organizationID)+"/graph", nil, &entries)
	return entries, err
}

func (c *Client) ProjectGraph(ctx context.Context, organizationID string) (*Graph, error) {
	var graph Graph
	err := c.do(ctx, http.MethodGet, "/v1/organizations/"+url.PathEscape(organizationID)+"/graph/projection", nil, &graph)
	return &graph, err
}

func (c *Client) CreateEntry(ctx context.Context, groupID, name, content string) (*Entry, error) {
	var entry Entry
	req := service.CreateEntryRequest{Name: name, Content: content}
	err := c.do(ctx, http.MethodPost, "/v1/groups/"+url.PathEscape(groupID)+"/entries", req, &entry)
	return &entry, err
}

func (c *Client) ListEntries(ctx context.Context, groupID string) ([]*Entry, error) {
	var entries []*Entry
	err := c.do(ctx, http.MethodGet, "/v1/groups/"+url.PathEscape(groupID)+"/entries", nil, &entries)
	return entries, err
}

func (c *Client) GetEntry(ctx context.Context, id string) (*Entry, error) {
	var entry Entry
	err := c.do(ctx, http.MethodGet, entryPath(id), nil, &entry)
	return &entry, err
}

func (c *Client) UpdateEntry(ctx context.Context, id string, req UpdateEntryRequest) (*Entry, error) {
	var entry Entry
	err := c.do(ctx, http.MethodPut, entryPath(id), req, &entry)
	return &entry, err
}

func (c *Client) DeleteEntry(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, entryPath(id), nil, nil)
}

func (c *Client) ListBacklinks(ctx context.Context, id string) ([]Backlink, error) {
	var backlinks []Backlink
	err := c.do(ctx, http.MethodGet, entryPath(id)+"/backlinks", nil, &backlinks)
	return backlinks, err
}

func (c *Client) ListEntryBackups(ctx context.Context, id string) ([]*EntryBackup, error) {
	var backups []*EntryBackup
	err := c.do(ctx, http.MethodGet, entryPath(id)+"/backups", nil, &backups)
	return backups, err
}

func (c *Client) GetEntryBackup(ctx context.Context, id string, version int64) (*EntryBackup, error) {
	var backup EntryBackup
	err := c.do(ctx, http.MethodGet, entryPath(id)+"/backups/"+strconv.FormatInt(version, 10), nil, &backup)
	return &backup, err
}

func (c *Client) RestoreEntryBackup(ctx context.Context, id string, version int64) (*Entry, error) {
	var entry Entry
	err := c.do(ctx, http.MethodPost, entryPath(id)+"/backups/"+strconv.FormatInt(version, 10)+"/restore", nil, &entry)
	return &entry, err
}

// AttachFile uploads r as the file of an entry.
func (c *Client) AttachFile(ctx context.Context, id, fileName string, r io.Reader) (*Entry, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", fileName)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, err
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPut, entryPath(id)+"/file", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var entry Entry
	err = c.send(req, &entry)
	return &entry, err
}

// DownloadFile returns the attached file of an entry and its name. The caller closes the reader.
func (c *Client) DownloadFile(ctx context.Context, id string) (io.ReadCloser, string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, entryPath(id)+"/file", nil)
	if err != nil {
		return nil, "", err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	if res.StatusCode >= http.StatusBadRequest {
		defer res.Body.Close()
		return nil, "", readError(res)
	}

	name := ""
	if _, params, err := mime.ParseMediaType(res.Header.Get("Content-Disposition")); err == nil {
		name = params["filename"]
	}

	return res.Body, name, nil
}

func (c *Client) DeleteFile(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, entryPath(id)+"/file", nil, nil)
}

func entryPath(id string) string {
	return "/v1/entries/" + url.PathEscape(id)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set(auth.HeaderUserID, c.userID)
	if len(c.roles) > 0 {
		req.Header.Set(auth.HeaderUserRoles, strings.Join(c.roles, ","))
	}

	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		return readError(res)
	}

	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}

	return json.NewDecoder(res.Body).Decode(out)
}

func readError(res *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(res.Body, 1<<16))
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(data))
	}

	return &APIError{StatusCode: res.StatusCode, Message: body.Error}
}
