// Package drive is a small Google Drive v3 client for the course materials
// folder. It authenticates with a long-lived refresh token
package drive

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
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	defaultAPIBase    = "https://www.googleapis.com/drive/v3"
	defaultUploadBase = "https://www.googleapis.com/upload/drive/v3"

	fileFields = "id,name,mimeType,size,modifiedTime,webViewLink"
)

// File is a Drive file in the materials folder
type File struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size,string,omitempty"` // Absent for Google Docs
	ModifiedTime time.Time `json:"modifiedTime"`
	WebViewLink  string    `json:"webViewLink"`
}

// APIError is a non-2xx response from Drive
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("drive api error %d: %s", e.StatusCode, e.Message)
}

// Options configures a Client
type Options struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	FolderID     string

	// Endpoint overrides; empty means Google's
	TokenURL   string
	APIBase    string
	UploadBase string

	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	Logger *zap.Logger
}

// Client talks to the Drive REST API
type Client struct {
	http       *http.Client
	apiBase    string
	uploadBase string
	folderID   string
	logger     *zap.Logger
}

// New creates a Drive client. Token refreshes and API calls share one
// retrying transport
func New(ctx context.Context, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rc := retryablehttp.NewClient()
	rc.Logger = retryLogger{logger.Named("drive").Sugar()}
	if opts.RetryMax > 0 {
		rc.RetryMax = opts.RetryMax
	}
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}

	endpoint := google.Endpoint
	if opts.TokenURL != "" {
		endpoint = oauth2.Endpoint{TokenURL: opts.TokenURL, AuthStyle: oauth2.AuthStyleInParams}
	}
	conf := &oauth2.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       []string{"https://www.googleapis.com/auth/drive.file"},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, rc.StandardClient())
	ts := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: opts.RefreshToken})

	c := &Client{
		http:       oauth2.NewClient(ctx, ts),
		apiBase:    defaultAPIBase,
		uploadBase: defaultUploadBase,
		folderID:   opts.FolderID,
		logger:     logger,
	}
	if opts.APIBase != "" {
		c.apiBase = opts.APIBase
	}
	if opts.UploadBase != "" {
		c.uploadBase = opts.UploadBase
	}
	return c
}

// FolderID returns the folder files are listed from and uploaded to
func (c *Client) FolderID() string {
	return c.folderID
}

// ListFiles returns the non-trashed files of the materials folder, newest
// first. Without a folder id the whole drive visible to the app is listed
func (c *Client) ListFiles(ctx context.Context) ([]File, error) {
	q := "trashed = false"
	if c.folderID != "" {
		q = fmt.Sprintf("'%s' in parents and %s", c.folderID, q)
	}

	params := url.Values{}
	params.Set("q", q)
	params.Set("orderBy", "modifiedTime desc")
	params.Set("pageSize", "100")
	params.Set("fields", "files("+fileFields+")")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/files?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create list request: %w", err)
	}

	var out struct {
		Files []File `json:"files"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return out.Files, nil
}

// Upload stores content as a new file in the materials folder
func (c *Client) Upload(ctx context.Context, name, mimeType string, content io.Reader) (*File, error) {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	meta := map[string]any{"name": name, "mimeType": mimeType}
	if c.folderID != "" {
		meta["parents"] = []string{c.folderID}
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	metaPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata part: %w", err)
	}
	if err := json.NewEncoder(metaPart).Encode(meta); err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}

	mediaPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {mimeType}})
	if err != nil {
		return nil, fmt.Errorf("failed to create media part: %w", err)
	}
	if _, err := io.Copy(mediaPart, content); err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	params := url.Values{}
	params.Set("uploadType", "multipart")
	params.Set("fields", fileFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadBase+"/files?"+params.Encode(), &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+mw.Boundary())

	var file File
	if err := c.do(req, &file); err != nil {
		return nil, fmt.Errorf("failed to upload %q: %w", name, err)
	}

	c.logger.Info("uploaded file to drive",
		zap.String("file_id", file.ID),
		zap.String("name", file.Name))
	return &file, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var body struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body) == nil && body.Error.Message != "" {
			apiErr.Message = body.Error.Message
		}
		return apiErr
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// retryLogger adapts zap to retryablehttp.LeveledLogger
type retryLogger struct {
	l *zap.SugaredLogger
}

func (r retryLogger) Error(msg string, kv ...interface{}) { r.l.Errorw(msg, kv...) }
func (r retryLogger) Info(msg string, kv ...interface{})  { r.l.Debugw(msg, kv...) }
func (r retryLogger) Debug(msg string, kv ...interface{}) { r.l.Debugw(msg, kv...) }
func (r retryLogger) Warn(msg string, kv ...interface{})  { r.l.Warnw(msg, kv...) }
