package s3

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewMockForTests returns a Store wired to a scripted in-memory transport.
// Only the S3 operations the blob contract needs are implemented, which keeps
// driver tests hermetic without a MinIO fixture.
func NewMockForTests() *Store {
	transport := &scriptedTransport{objects: make(map[string]scriptedObject)}
	cfg, _ := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: transport}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String("https://mock.s3.local")
	})
	return &Store{client: client, bucket: "mock-bucket", presign: s3.NewPresignClient(client)}
}

type scriptedObject struct {
	payload     []byte
	contentType string
	metadata    map[string]string
	etag        string
}

// scriptedTransport emulates the path-style wire responses for Head, Get,
// Put, Delete and ListObjectsV2.
type scriptedTransport struct {
	objects map[string]scriptedObject
}

func (t *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	key := objectKey(req)
	switch {
	case req.Method == http.MethodGet && strings.Contains(req.URL.RawQuery, "list-type=2"):
		return t.list(req), nil
	case req.Method == http.MethodHead:
		return t.head(key), nil
	case req.Method == http.MethodPut:
		return t.put(req, key), nil
	case req.Method == http.MethodGet:
		return t.get(key), nil
	case req.Method == http.MethodDelete:
		delete(t.objects, key)
		return emptyResponse(http.StatusNoContent), nil
	}
	return emptyResponse(http.StatusNotImplemented), nil
}

// objectKey strips the path-style bucket segment.
func objectKey(req *http.Request) string {
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	if len(parts) == 2 {
		return parts[1]
	}
	return ""
}

func (t *scriptedTransport) list(req *http.Request) *http.Response {
	prefix := req.URL.Query().Get("prefix")
	keys := make([]string, 0, len(t.objects))
	for k := range t.objects {
		if prefix == "" || strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
	for _, k := range keys {
		obj := t.objects[k]
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2024-01-01T00:00:00Z</LastModified></Contents>", k, len(obj.payload))
	}
	b.WriteString("</ListBucketResult>")
	return xmlResponse(http.StatusOK, b.String())
}

func (t *scriptedTransport) head(key string) *http.Response {
	obj, ok := t.objects[key]
	if !ok {
		return emptyResponse(http.StatusNotFound)
	}
	resp := emptyResponse(http.StatusOK)
	writeObjectHeaders(resp.Header, obj)
	return resp
}

func (t *scriptedTransport) get(key string) *http.Response {
	obj, ok := t.objects[key]
	if !ok {
		return xmlResponse(http.StatusNotFound,
			`<?xml version="1.0"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
	}
	resp := &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(obj.payload)),
		Header:     http.Header{},
	}
	writeObjectHeaders(resp.Header, obj)
	return resp
}

func (t *scriptedTransport) put(req *http.Request, key string) *http.Response {
	payload, _ := io.ReadAll(req.Body)
	if decoded, ok := decodeAWSChunked(payload); ok {
		payload = decoded
	}
	metadata := map[string]string{}
	for name, values := range req.Header {
		if strings.HasPrefix(name, "X-Amz-Meta-") && len(values) > 0 {
			metadata[strings.ToLower(strings.TrimPrefix(name, "X-Amz-Meta-"))] = values[0]
		}
	}
	sum := sha256.Sum256(payload)
	obj := scriptedObject{
		payload:     payload,
		contentType: req.Header.Get("Content-Type"),
		metadata:    metadata,
		etag:        hex.EncodeToString(sum[:]),
	}
	if _, exists := t.objects[key]; !exists {
		t.objects[key] = obj
	}
	resp := emptyResponse(http.StatusOK)
	resp.Header.Set("ETag", `"`+obj.etag+`"`)
	return resp
}

func writeObjectHeaders(h http.Header, obj scriptedObject) {
	h.Set("Content-Length", strconv.Itoa(len(obj.payload)))
	if obj.contentType != "" {
		h.Set("Content-Type", obj.contentType)
	}
	h.Set("ETag", `"`+obj.etag+`"`)
	h.Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	for k, v := range obj.metadata {
		h.Set("X-Amz-Meta-"+k, v)
	}
}

func emptyResponse(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(nil)),
		Header:     http.Header{},
	}
}

func xmlResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": {"application/xml"}},
	}
}

// decodeAWSChunked unwraps a single-chunk aws-chunked body, tolerating
// chunk-signature suffixes on the size and terminator lines.
func decodeAWSChunked(body []byte) ([]byte, bool) {
	i := bytes.Index(body, []byte("\r\n"))
	if i <= 0 {
		return nil, false
	}
	head := string(body[:i])
	if j := strings.IndexByte(head, ';'); j >= 0 {
		head = head[:j]
	}
	size, err := strconv.ParseInt(head, 16, 64)
	if err != nil || size < 0 {
		return nil, false
	}
	rest := body[i+2:]
	if int64(len(rest)) < size {
		return nil, false
	}
	trailer := rest[size:]
	if !bytes.HasPrefix(trailer, []byte("\r\n0")) {
		return nil, false
	}
	return rest[:size], true
}
