package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	unsignedPayload  = "UNSIGNED-PAYLOAD"
	emptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

// S3Options configures the S3-compatible backend.
type S3Options struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
}

// S3 talks to an S3-compatible object store over its REST API with SigV4
// request signing. Uploads stream with an unsigned payload hash, so bodies
// are never buffered in memory.
type S3 struct {
	opts       S3Options
	endpoint   *url.URL
	httpClient *http.Client
	now        func() time.Time
}

// NewS3 validates opts and returns an S3 backend.
func NewS3(opts S3Options) (*S3, error) {
	opts.Endpoint = strings.TrimSpace(opts.Endpoint)
	opts.Bucket = strings.TrimSpace(opts.Bucket)
	opts.Region = strings.TrimSpace(opts.Region)
	if opts.Endpoint == "" {
		return nil, errors.New("storage: s3 endpoint not set")
	}
	if opts.Bucket == "" {
		return nil, errors.New("storage: s3 bucket not set")
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}

	raw := opts.Endpoint
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("storage: invalid s3 endpoint %q", opts.Endpoint)
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/")

	return &S3{
		opts:       opts,
		endpoint:   parsed,
		httpClient: &http.Client{},
		now:        time.Now,
	}, nil
}

// objectURL builds the request URL for key, honoring path-style addressing.
func (s *S3) objectURL(key string) *url.URL {
	u := *s.endpoint
	if s.opts.ForcePathStyle {
		u.Path = s.endpoint.Path + "/" + s.opts.Bucket
		if key != "" {
			u.Path += "/" + key
		}
		u.RawPath = ""
		return &u
	}
	u.Host = s.opts.Bucket + "." + s.endpoint.Host
	u.Path = s.endpoint.Path + "/" + key
	u.RawPath = ""
	return &u
}

// Put implements Backend.
func (s *S3) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if size < 0 {
		return fmt.Errorf("storage: s3 put %s requires a known size", key)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.objectURL(key).String(), body)
	if err != nil {
		return fmt.Errorf("create put request: %w", err)
	}
	req.ContentLength = size
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	s.signRequest(req, unsignedPayload)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	defer drainAndClose(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("put object %s: unexpected status %d", key, resp.StatusCode)
	}
	return nil
}

// Get implements Backend.
func (s *S3) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.objectURL(key).String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create get request: %w", err)
	}
	s.signRequest(req, emptyPayloadHash)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		drainAndClose(resp.Body)
		return nil, fmt.Errorf("%w: %s", ErrNotExist, key)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		drainAndClose(resp.Body)
		return nil, fmt.Errorf("get object %s: unexpected status %d", key, resp.StatusCode)
	}
	return resp.Body, nil
}

// Stat implements Backend.
func (s *S3) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	if err := ValidateKey(key); err != nil {
		return ObjectInfo{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.objectURL(key).String(), nil)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("create head request: %w", err)
	}
	s.signRequest(req, emptyPayloadHash)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("head object %s: %w", key, err)
	}
	defer drainAndClose(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return ObjectInfo{}, fmt.Errorf("%w: %s", ErrNotExist, key)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ObjectInfo{}, fmt.Errorf("head object %s: unexpected status %d", key, resp.StatusCode)
	}
	info := ObjectInfo{Key: key, Size: resp.ContentLength}
	if modified := resp.Header.Get("Last-Modified"); modified != "" {
		if parsed, err := http.ParseTime(modified); err == nil {
			info.ModTime = parsed.UTC()
		}
	}
	return info, nil
}

// Exists implements Backend.
func (s *S3) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Stat(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

type listBucketResult struct {
	IsTruncated           bool   `xml:"IsTruncated"`
	NextContinuationToken string `xml:"NextContinuationToken"`
	Contents              []struct {
		Key          string `xml:"Key"`
		LastModified string `xml:"LastModified"`
		Size         int64  `xml:"Size"`
	} `xml:"Contents"`
}

// List implements Backend using ListObjectsV2 pagination.
func (s *S3) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := validatePrefix(prefix); err != nil {
		return nil, err
	}
	var objects []ObjectInfo
	continuation := ""
	for {
		u := s.objectURL("")
		query := url.Values{}
		query.Set("list-type", "2")
		if prefix != "" {
			query.Set("prefix", prefix)
		}
		if continuation != "" {
			query.Set("continuation-token", continuation)
		}
		u.RawQuery = query.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("create list request: %w", err)
		}
		s.signRequest(req, emptyPayloadHash)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("list objects under %q: %w", prefix, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			drainAndClose(resp.Body)
			return nil, fmt.Errorf("list objects under %q: unexpected status %d", prefix, resp.StatusCode)
		}
		var page listBucketResult
		err = xml.NewDecoder(resp.Body).Decode(&page)
		drainAndClose(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("decode list response: %w", err)
		}
		for _, item := range page.Contents {
			info := ObjectInfo{Key: item.Key, Size: item.Size}
			if parsed, err := time.Parse(time.RFC3339, item.LastModified); err == nil {
				info.ModTime = parsed.UTC()
			}
			objects = append(objects, info)
		}
		if !page.IsTruncated || page.NextContinuationToken == "" {
			break
		}
		continuation = page.NextContinuationToken
	}
	return objects, nil
}

// Delete implements Backend. Deleting a missing object succeeds.
func (s *S3) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.objectURL(key).String(), nil)
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}
	s.signRequest(req, emptyPayloadHash)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	defer drainAndClose(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("delete object %s: unexpected status %d", key, resp.StatusCode)
	}
	return nil
}

// DeletePrefix implements Backend.
func (s *S3) DeletePrefix(ctx context.Context, prefix string) error {
	objects, err := s.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		if err := s.Delete(ctx, obj.Key); err != nil {
			return err
		}
	}
	return nil
}

// SignedDownloadURL implements Backend with a presigned GET.
func (s *S3) SignedDownloadURL(key string, ttl time.Duration) (string, error) {
	return s.presign(http.MethodGet, key, ttl)
}

// SignedUploadURL implements Backend with a presigned PUT.
func (s *S3) SignedUploadURL(key string, ttl time.Duration) (string, error) {
	return s.presign(http.MethodPut, key, ttl)
}

func (s *S3) presign(method, key string, ttl time.Duration) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	if ttl <= 0 {
		return "", errors.New("storage: presign ttl must be positive")
	}
	now := s.now().UTC()
	amzDate := now.Format("20060102T150405Z")
	dateStamp := now.Format("20060102")
	scope := strings.Join([]string{dateStamp, s.opts.Region, "s3", "aws4_request"}, "/")

	target := s.objectURL(key)
	query := url.Values{}
	query.Set("X-Amz-Algorithm", "AWS4-HMAC-SHA256")
	query.Set("X-Amz-Credential", s.opts.AccessKeyID+"/"+scope)
	query.Set("X-Amz-Date", amzDate)
	query.Set("X-Amz-Expires", strconv.FormatInt(int64(ttl.Seconds()), 10))
	query.Set("X-Amz-SignedHeaders", "host")

	canonicalQuery := canonicalQueryString(query)
	canonicalRequest := strings.Join([]string{
		method,
		canonicalURI(target),
		canonicalQuery,
		"host:" + target.Host + "\n",
		"host",
		unsignedPayload,
	}, "\n")
	hash := sha256.Sum256([]byte(canonicalRequest))
	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		amzDate,
		scope,
		hex.EncodeToString(hash[:]),
	}, "\n")
	signingKey := deriveSigningKey(s.opts.SecretAccessKey, dateStamp, s.opts.Region)
	signature := hmacSHA256Hex(signingKey, stringToSign)

	target.RawQuery = canonicalQuery + "&X-Amz-Signature=" + signature
	return target.String(), nil
}

// signRequest applies SigV4 header signing to req.
func (s *S3) signRequest(req *http.Request, payloadHash string) {
	req.Host = req.URL.Host
	req.Header.Set("Host", req.URL.Host)
	req.Header.Set("x-amz-content-sha256", payloadHash)
	if s.opts.AccessKeyID == "" || s.opts.SecretAccessKey == "" {
		return
	}
	now := s.now().UTC()
	amzDate := now.Format("20060102T150405Z")
	dateStamp := now.Format("20060102")
	req.Header.Set("x-amz-date", amzDate)

	canonicalHeaders, signedHeaders := canonicalizeHeaders(req)
	canonicalRequest := strings.Join([]string{
		req.Method,
		canonicalURI(req.URL),
		canonicalQueryFromURL(req.URL),
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")
	hash := sha256.Sum256([]byte(canonicalRequest))
	scope := strings.Join([]string{dateStamp, s.opts.Region, "s3", "aws4_request"}, "/")
	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		amzDate,
		scope,
		hex.EncodeToString(hash[:]),
	}, "\n")
	signingKey := deriveSigningKey(s.opts.SecretAccessKey, dateStamp, s.opts.Region)
	signature := hmacSHA256Hex(signingKey, stringToSign)
	req.Header.Set("Authorization", fmt.Sprintf(
		"AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		s.opts.AccessKeyID,
		scope,
		signedHeaders,
		signature,
	))
}

func canonicalizeHeaders(req *http.Request) (string, string) {
	headers := make(map[string][]string)
	for key, values := range req.Header {
		lower := strings.ToLower(key)
		if lower == "authorization" {
			continue
		}
		cleaned := make([]string, 0, len(values))
		for _, v := range values {
			cleaned = append(cleaned, strings.TrimSpace(v))
		}
		headers[lower] = cleaned
	}
	if _, ok := headers["host"]; !ok && req.Host != "" {
		headers["host"] = []string{req.Host}
	}
	keys := make([]string, 0, len(headers))
	for key := range headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var builder strings.Builder
	signed := make([]string, 0, len(keys))
	for _, key := range keys {
		builder.WriteString(key)
		builder.WriteByte(':')
		builder.WriteString(strings.Join(headers[key], ","))
		builder.WriteByte('\n')
		signed = append(signed, key)
	}
	return builder.String(), strings.Join(signed, ";")
}

func canonicalURI(u *url.URL) string {
	if u == nil {
		return "/"
	}
	path := u.EscapedPath()
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}

func canonicalQueryFromURL(u *url.URL) string {
	if u == nil || u.RawQuery == "" {
		return ""
	}
	values, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return ""
	}
	return canonicalQueryString(values)
}

func canonicalQueryString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var builder strings.Builder
	first := true
	for _, key := range keys {
		sorted := append([]string(nil), values[key]...)
		sort.Strings(sorted)
		for _, value := range sorted {
			if !first {
				builder.WriteByte('&')
			}
			first = false
			builder.WriteString(uriEncode(key))
			builder.WriteByte('=')
			builder.WriteString(uriEncode(value))
		}
	}
	return builder.String()
}

// uriEncode percent-encodes per RFC 3986 the way SigV4 expects, with spaces
// as %20 rather than +.
func uriEncode(s string) string {
	var builder strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
			c == '-' || c == '_' || c == '.' || c == '~' {
			builder.WriteByte(c)
			continue
		}
		fmt.Fprintf(&builder, "%%%02X", c)
	}
	return builder.String()
}

func deriveSigningKey(secret, dateStamp, region string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secret), []byte(dateStamp))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte("s3"))
	return hmacSHA256(kService, []byte("aws4_request"))
}

func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func hmacSHA256Hex(key []byte, data string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
