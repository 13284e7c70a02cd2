package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/contacts/internal/avatar"
	"github.com/starford/contacts/internal/models"
)

type avatarResult struct {
	URL     string         `json:"url"`
	Contact models.Contact `json:"contact"`
}

func (s *Server) setAvatar(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, ok := s.store.Get(ctx, id); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}

	var data []byte
	var ext string
	if strings.HasPrefix(rawURL, "data:") {
		data, ext, err = decodeDataURI(rawURL)
	} else {
		data, ext, err = fetchImage(ctx, rawURL)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(data) > avatar.MaxSize {
		return mcp.NewToolResultError(fmt.Sprintf("image too large: %d bytes (max %d)", len(data), avatar.MaxSize)), nil
	}
	if err := avatar.Validate(data, ext); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	name := uuid.NewString() + ext
	if err := os.MkdirAll(s.avatarDir, 0o755); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("create avatars dir: %v", err)), nil
	}
	abs := filepath.Join(s.avatarDir, name)
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("save avatar: %v", err)), nil
	}

	avatarURL := "/avatars/" + name
	c, err := s.store.Update(ctx, id, models.ContactPatch{Avatar: models.String(avatarURL)})
	if err != nil {
		_ = os.Remove(abs)
		return storeError(id, err), nil
	}

	out, _ := json.Marshal(avatarResult{URL: avatarURL, Contact: c})
	return mcp.NewToolResultText(string(out)), nil
}

// decodeDataURI parses a data:<mediatype>;base64,<data> URI.
func decodeDataURI(uri string) ([]byte, string, error) {
	meta, encoded, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, "", fmt.Errorf("invalid data URI: missing comma separator")
	}
	if !strings.Contains(meta, ";base64") {
		return nil, "", fmt.Errorf("only base64 data URIs are supported")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("invalid base64 data: %w", err)
		}
	}

	mediaType := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	ext := avatar.ExtForMIME(mediaType)
	if ext == "" {
		return nil, "", fmt.Errorf("unsupported image type in data URI: %s", mediaType)
	}
	return data, ext, nil
}

// fetchImage downloads an image from an http(s) URL, refusing loopback and
// cloud metadata hosts.
func fetchImage(ctx context.Context, rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme: %s (only http/https)", parsed.Scheme)
	}
	if err := checkBlockedHost(parsed.Hostname()); err != nil {
		return nil, "", err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return checkBlockedHost(req.URL.Hostname())
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, avatar.MaxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > avatar.MaxSize {
		return nil, "", fmt.Errorf("image too large: exceeds %d bytes", avatar.MaxSize)
	}

	ext := avatar.ExtForMIME(resp.Header.Get("Content-Type"))
	if ext == "" {
		ext = avatar.ExtForMIME(http.DetectContentType(data))
	}
	if ext == "" {
		return nil, "", fmt.Errorf("downloaded file is not a supported image")
	}
	return data, ext, nil
}

// checkBlockedHost rejects loopback and cloud metadata addresses.
func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client handle DNS failures
		}
		ip = ips[0]
	}

	if ip.IsLoopback() {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("blocked host: cloud metadata address %s", host)
	}
	return nil
}
