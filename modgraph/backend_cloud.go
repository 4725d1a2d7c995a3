package modgraph

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/Azure/azure-pipeline-go/pipeline"
	"github.com/Azure/azure-storage-blob-go/azblob"
	"github.com/OneOfOne/xxhash"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/colinmarc/hdfs/v2"

	"github.com/coreruntime/kernel/kerrors"
)

// Alternate fetch backends for gs://, s3://, az:// and hdfs:// module
// sources, each a thin read-only adapter in front of its SDK's
// object-read call.

type gcsLoader struct{ client *storage.Client }

func NewGCSLoader(ctx context.Context) (Loader, error) {
	c, err := storage.NewClient(ctx)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.KindNetwork, err, "create GCS client")
	}
	return &gcsLoader{client: c}, nil
}

func (g *gcsLoader) Scheme() string { return "gs" }

func (g *gcsLoader) Load(specifier string, opts LoadOptions) (LoadResult, error) {
	u, err := url.Parse(specifier)
	if err != nil {
		return LoadResult{}, kerrors.Wrap(kerrors.KindResolution, err, "parse %q", specifier)
	}
	ctx := context.Background()
	rc, err := g.client.Bucket(u.Host).Object(strings.TrimPrefix(u.Path, "/")).NewReader(ctx)
	if err == storage.ErrObjectNotExist {
		return LoadResult{NotFound: true}, nil
	}
	if err != nil {
		return LoadResult{}, kerrors.Wrap(kerrors.KindNetwork, err, "open gs object %q", specifier)
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil {
		return LoadResult{}, kerrors.Wrap(kerrors.KindIo, err, "read gs object %q", specifier)
	}
	return moduleResult(specifier, u.Path, body), nil
}

type azLoader struct{ pipeline pipeline.Pipeline }

func (azLoader) Scheme() string { return "az" }

func (a azLoader) Load(specifier string, opts LoadOptions) (LoadResult, error) {
	u, err := url.Parse(specifier)
	if err != nil {
		return LoadResult{}, kerrors.Wrap(kerrors.KindResolution, err, "parse %q", specifier)
	}
	blobURL := fmt.Sprintf("https://%s.blob.core.windows.net%s", u.Host, u.Path)
	parsed, err := url.Parse(blobURL)
	if err != nil {
		return LoadResult{}, kerrors.Wrap(kerrors.KindResolution, err, "build blob url for %q", specifier)
	}
	blob := azblob.NewBlobURL(*parsed, a.pipeline)
	resp, err := blob.Download(context.Background(), 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return LoadResult{}, kerrors.Wrap(kerrors.KindNetwork, err, "download blob %q", specifier)
	}
	body := resp.Body(azblob.RetryReaderOptions{})
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return LoadResult{}, kerrors.Wrap(kerrors.KindIo, err, "read blob %q", specifier)
	}
	return moduleResult(specifier, u.Path, data), nil
}

func NewAzureLoader(credential azblob.Credential) Loader {
	return azLoader{pipeline: azblob.NewPipeline(credential, azblob.PipelineOptions{})}
}

type s3Loader struct{ svc *s3.S3 }

func NewS3Loader() (Loader, error) {
	sess, err := session.NewSession()
	if err != nil {
		return nil, kerrors.Wrap(kerrors.KindNetwork, err, "create AWS session")
	}
	return &s3Loader{svc: s3.New(sess)}, nil
}

func (s *s3Loader) Scheme() string { return "s3" }

func (s *s3Loader) Load(specifier string, opts LoadOptions) (LoadResult, error) {
	u, err := url.Parse(specifier)
	if err != nil {
		return LoadResult{}, kerrors.Wrap(kerrors.KindResolution, err, "parse %q", specifier)
	}
	out, err := s.svc.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(strings.TrimPrefix(u.Path, "/")),
	})
	if err != nil {
		return LoadResult{}, kerrors.Wrap(kerrors.KindNetwork, err, "get s3 object %q", specifier)
	}
	defer out.Body.Close()
	body, err := io.ReadAll(out.Body)
	if err != nil {
		return LoadResult{}, kerrors.Wrap(kerrors.KindIo, err, "read s3 object %q", specifier)
	}
	return moduleResult(specifier, u.Path, body), nil
}

type hdfsLoader struct{ client *hdfs.Client }

func NewHDFSLoader(addr string) (Loader, error) {
	c, err := hdfs.New(addr)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.KindNetwork, err, "connect to hdfs %q", addr)
	}
	return &hdfsLoader{client: c}, nil
}

func (h *hdfsLoader) Scheme() string { return "hdfs" }

func (h *hdfsLoader) Load(specifier string, opts LoadOptions) (LoadResult, error) {
	u, err := url.Parse(specifier)
	if err != nil {
		return LoadResult{}, kerrors.Wrap(kerrors.KindResolution, err, "parse %q", specifier)
	}
	f, err := h.client.Open(u.Path)
	if err != nil {
		return LoadResult{NotFound: true}, nil
	}
	defer f.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, f); err != nil {
		return LoadResult{}, kerrors.Wrap(kerrors.KindIo, err, "read hdfs path %q", u.Path)
	}
	return moduleResult(specifier, u.Path, buf.Bytes()), nil
}

func moduleResult(specifier, path string, body []byte) LoadResult {
	return LoadResult{Module: &LoadedModule{
		Specifier:  specifier,
		MediaType:  MediaTypeFromExt(extFromPath(path)),
		Bytes:      body,
		SourceHash: xxhash.Checksum64(body),
	}}
}
