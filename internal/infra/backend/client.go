package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	domain "github.com/bryanwahyu/estate-chat/internal/domain/chat"
)

// Paths on the analysis service, relative to its /api base.
const (
	PathUpload           = "data-upload/upload/"
	PathUploadsBySession = "data-upload/get_by_session/"
	PathChat             = "chatbot/chat/"
	PathAnalyze          = "chatbot/analyze_with_data/"
	PathHistory          = "chatbot/history/"
	PathSearch           = "analysis/search/"
	PathTrending         = "analysis/trending/"
	PathCompare          = "analysis/compare/"
	PathApplyFilter      = "filter-data/apply_filter/"
	PathChartGenerate    = "chart/generate/"
)

// PreviewPath is the preview endpoint for one upload.
func PreviewPath(uploadID string) string {
	return "data-upload/" + url.PathEscape(uploadID) + "/preview/"
}

// FilteredCSVPath and FilteredExcelPath download a saved filter result.
func FilteredCSVPath(resultID string) string {
	return "filter-data/" + url.PathEscape(resultID) + "/download_csv/"
}

func FilteredExcelPath(resultID string) string {
	return "filter-data/" + url.PathEscape(resultID) + "/download_excel/"
}

// maxErrorBody caps how much of a failed answer is kept in UpstreamError.
const maxErrorBody = 4 << 10

// Client talks to the analysis backend over HTTP.
type Client struct {
	base string
	http *http.Client
}

// NewClient. httpClient may be nil; http.DefaultClient has no timeout, which
// matches how the chat page waits on the backend.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend url scheme: %q (allowed: http, https)", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("backend url has no host: %q", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: strings.TrimRight(u.String(), "/"), http: httpClient}, nil
}

// BaseURL returns the normalised base URL.
func (c *Client) BaseURL() string { return c.base }

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.base + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Upload sends the spreadsheet as multipart form fields "file" and
// "session_id".
func (c *Client) Upload(ctx context.Context, sessionID string, f *domain.UploadedFile) (domain.UploadReceipt, error) {
	body, contentType, err := uploadForm(sessionID, f)
	if err != nil {
		return domain.UploadReceipt{}, err
	}

	var receipt domain.UploadReceipt
	if err := c.doJSON(ctx, "upload", http.MethodPost, PathUpload, body, contentType, &receipt); err != nil {
		return domain.UploadReceipt{}, err
	}
	return receipt, nil
}

// Chat posts the question and decodes {response, chart?, table?}.
func (c *Client) Chat(ctx context.Context, req domain.ChatRequest) (domain.ChatReply, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return domain.ChatReply{}, err
	}
	var reply domain.ChatReply
	if err := c.doJSON(ctx, "chat", http.MethodPost, PathChat, bytes.NewReader(payload), "application/json", &reply); err != nil {
		return domain.ChatReply{}, err
	}
	return reply, nil
}

// Ping checks that the backend answers at all. Any status below 500 counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(PathTrending, nil), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode >= 500 {
		return &domain.UpstreamError{Op: "ping", Status: resp.StatusCode}
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, nil), body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &domain.UpstreamError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("backend %s: malformed json: %w", op, err)
	}
	return nil
}

func uploadForm(sessionID string, f *domain.UploadedFile) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(f.Name)))
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(f.Data); err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("session_id", sessionID); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")
