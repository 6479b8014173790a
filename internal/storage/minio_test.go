package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andresuchdata/banking-pipeline/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBucket = "banking-data"

// fakeS3 answers path-style ListObjectsV2, HEAD and GET requests for one bucket.
// Listings are served two keys per page to exercise continuation tokens.
type fakeS3 struct {
	keys      []string
	objects   map[string]string
	listCalls atomic.Int32
	denyList  bool
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	if path == testBucket || path == testBucket+"/" {
		f.list(w, r)
		return
	}

	key := strings.TrimPrefix(path, testBucket+"/")
	body, ok := f.objects[key]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		if r.Method != http.MethodHead {
			writeS3Error(w, "NoSuchKey", "The specified key does not exist.")
		}
		return
	}
	w.Header().Set("ETag", `"`+etag(key)+`"`)
	w.Header().Set("Last-Modified", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC).Format(http.TimeFormat))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write([]byte(body))
	}
}

func (f *fakeS3) list(w http.ResponseWriter, r *http.Request) {
	f.listCalls.Add(1)
	if f.denyList {
		w.WriteHeader(http.StatusForbidden)
		writeS3Error(w, "AccessDenied", "Access Denied")
		return
	}

	start := 0
	if token := r.URL.Query().Get("continuation-token"); token != "" {
		start, _ = strconv.Atoi(token)
	}
	end := start + 2
	if end > len(f.keys) {
		end = len(f.keys)
	}
	truncated := end < len(f.keys)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
	fmt.Fprintf(&b, "<Name>%s</Name><Prefix></Prefix><KeyCount>%d</KeyCount><MaxKeys>2</MaxKeys>", testBucket, end-start)
	fmt.Fprintf(&b, "<IsTruncated>%t</IsTruncated>", truncated)
	if truncated {
		fmt.Fprintf(&b, "<NextContinuationToken>%d</NextContinuationToken>", end)
	}
	for _, key := range f.keys[start:end] {
		fmt.Fprintf(&b, `<Contents><Key>%s</Key><LastModified>2025-01-02T03:04:05.000Z</LastModified><ETag>"%s"</ETag><Size>%d</Size><StorageClass>STANDARD</StorageClass></Contents>`,
			key, etag(key), len(f.objects[key]))
	}
	b.WriteString(`</ListBucketResult>`)

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(b.String()))
}

// etag stays free of path separators; minio-go names its partial download after it.
func etag(key string) string {
	return "etag-" + strings.NewReplacer("/", "-", ".", "-").Replace(key)
}

func writeS3Error(w http.ResponseWriter, code, message string) {
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message><BucketName>%s</BucketName><RequestId>1</RequestId></Error>`,
		code, message, testBucket)
}

func newFakeS3(t *testing.T) (*fakeS3, *httptest.Server) {
	t.Helper()
	fake := &fakeS3{
		keys: []string{"2025/01/a.json", "2025/01/b.json", "c.csv"},
		objects: map[string]string{
			"2025/01/a.json": `{"amount":50}`,
			"2025/01/b.json": `{"amount":75}`,
			"c.csv":          "id,amount\n1,10\n",
		},
	}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return fake, srv
}

func newTestMinio(t *testing.T, endpoint string, maxKeys int) *MinioClient {
	t.Helper()
	client, err := NewMinioClient(config.StorageConfig{
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    testBucket,
		Region:    "us-east-1",
		MaxKeys:   maxKeys,
	})
	require.NoError(t, err)
	return client
}

func TestMinioListFollowsContinuationTokens(t *testing.T) {
	fake, srv := newFakeS3(t)
	client := newTestMinio(t, srv.URL, 0)

	objects, err := client.ListObjects(context.Background(), "")
	require.NoError(t, err)

	keys := make([]string, 0, len(objects))
	for _, o := range objects {
		keys = append(keys, o.Key)
	}
	assert.Equal(t, fake.keys, keys)
	assert.Equal(t, int64(len(`{"amount":50}`)), objects[0].Size)
	assert.Equal(t, int32(2), fake.listCalls.Load())
}

func TestMinioListHonoursMaxKeys(t *testing.T) {
	_, srv := newFakeS3(t)
	client := newTestMinio(t, srv.URL, 2)

	objects, err := client.ListObjects(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "2025/01/a.json", objects[0].Key)
	assert.Equal(t, "2025/01/b.json", objects[1].Key)
}

func TestMinioListReportsErrors(t *testing.T) {
	fake, srv := newFakeS3(t)
	fake.denyList = true
	client := newTestMinio(t, srv.URL, 0)

	objects, err := client.ListObjects(context.Background(), "")
	require.Error(t, err)
	assert.Nil(t, objects)
	assert.Contains(t, err.Error(), "minio list banking-data failed")
}

func TestMinioDownloadIsByteIdentical(t *testing.T) {
	fake, srv := newFakeS3(t)
	client := newTestMinio(t, srv.URL, 0)

	for _, key := range fake.keys {
		dest := filepath.Join(t.TempDir(), "nested", filepath.Base(key))
		require.NoError(t, client.DownloadObject(context.Background(), key, dest))

		got, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Equal(t, fake.objects[key], string(got), key)
	}
}

func TestMinioDownloadMissingObject(t *testing.T) {
	_, srv := newFakeS3(t)
	client := newTestMinio(t, srv.URL, 0)

	dest := filepath.Join(t.TempDir(), "missing.json")
	err := client.DownloadObject(context.Background(), "missing.json", dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "minio get banking-data/missing.json failed")
	assert.NoFileExists(t, dest)
}
