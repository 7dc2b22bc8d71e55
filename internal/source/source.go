// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source resolves a document reference to a local PDF. References
// may be filesystem paths, file:// URLs, http(s):// URLs or s3://bucket/key
// objects; remote documents are downloaded to a temporary file.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"github.com/pdiddy/pdfsplit/internal/httputil"
	"github.com/pdiddy/pdfsplit/internal/secrets"
)

// PDFMime is the media type every resolved document must have.
const PDFMime = "application/pdf"

// Downloader fetches an S3 object into w. *manager.Downloader satisfies it.
type Downloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, options ...func(*manager.Downloader)) (int64, error)
}

// Options configures a Resolver.
type Options struct {
	// AWS supplies static S3 credentials and region. Empty fields fall back
	// to the default AWS configuration chain.
	AWS secrets.AWS

	// HTTPClient is used for http(s) references. Nil means http.DefaultClient.
	HTTPClient *http.Client

	// S3 overrides the S3 downloader, mainly for tests.
	S3 Downloader

	// TempDir is where downloads are stored. Empty means os.TempDir().
	TempDir string
}

// Resolver turns references into local PDF paths.
type Resolver struct {
	opts Options
}

// New returns a Resolver.
func New(opts Options) *Resolver {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return &Resolver{opts: opts}
}

// Local is a resolved document. Close removes a downloaded copy and is a
// no-op for local files.
type Local struct {
	Path   string
	Remote bool
}

func (l Local) Close() error {
	if !l.Remote {
		return nil
	}
	return os.Remove(l.Path)
}

// IsRemote reports whether ref needs downloading.
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, "s3://") || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// Resolve returns a local path for ref. Downloaded files are checked to be
// PDFs and removed again when they are not.
func (r *Resolver) Resolve(ctx context.Context, ref string) (Local, error) {
	switch {
	case strings.HasPrefix(ref, "s3://"):
		bucket, key, err := ParseS3(ref)
		if err != nil {
			return Local{}, err
		}
		return r.fetch(ctx, ref, func(f *os.File) error { return r.downloadS3(ctx, bucket, key, f) })
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return r.fetch(ctx, ref, func(f *os.File) error {
			_, err := httputil.Download(ctx, r.opts.HTTPClient, ref, f)
			return err
		})
	case strings.HasPrefix(ref, "file://"):
		return Local{Path: strings.TrimPrefix(ref, "file://")}, nil
	}
	return Local{Path: ref}, nil
}

func (r *Resolver) fetch(ctx context.Context, ref string, download func(*os.File) error) (Local, error) {
	f, err := os.CreateTemp(r.opts.TempDir, "pdfsplit-src-*.pdf")
	if err != nil {
		return Local{}, fmt.Errorf("creating download file: %w", err)
	}
	local := Local{Path: f.Name(), Remote: true}

	err = download(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = checkPDF(local.Path)
	}
	if err != nil {
		local.Close()
		return Local{}, fmt.Errorf("downloading %s: %w", ref, err)
	}
	log.Info().Str("ref", ref).Str("file", local.Path).Msg("downloaded source document")
	return local, nil
}

func checkPDF(path string) error {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("detecting file type: %w", err)
	}
	if !mt.Is(PDFMime) {
		return fmt.Errorf("not a PDF (detected %s)", mt.String())
	}
	return nil
}

func (r *Resolver) downloadS3(ctx context.Context, bucket, key string, w io.WriterAt) error {
	d := r.opts.S3
	if d == nil {
		client, err := r.s3Client(ctx)
		if err != nil {
			return err
		}
		d = manager.NewDownloader(client)
	}
	_, err := d.Download(ctx, w, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 get %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (r *Resolver) s3Client(ctx context.Context) (*s3.Client, error) {
	var loadOpts []func(*awscfg.LoadOptions) error
	if r.opts.AWS.Region != "" {
		loadOpts = append(loadOpts, awscfg.WithRegion(r.opts.AWS.Region))
	}
	if r.opts.AWS.HasKeys() {
		loadOpts = append(loadOpts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(r.opts.AWS.AccessKeyID, r.opts.AWS.SecretAccessKey, r.opts.AWS.SessionToken),
		))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// ParseS3 splits s3://bucket/key.
func ParseS3(ref string) (bucket, key string, err error) {
	path := strings.TrimPrefix(ref, "s3://")
	slash := strings.Index(path, "/")
	if slash <= 0 || slash == len(path)-1 {
		return "", "", fmt.Errorf("invalid s3 url: %s", ref)
	}
	return path[:slash], path[slash+1:], nil
}
