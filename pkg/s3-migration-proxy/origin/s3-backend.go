package origin

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"emperror.dev/errors"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/config"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/log"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/metrics"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/tracing"
)

// Code returned by S3 on HEAD requests for missing keys.
const s3NotFoundCode = "NotFound"

type s3Backend struct {
	svcClient s3iface.S3API
	cfg       *config.OriginConfig
	metricsCl metrics.Client
	target    Target
}

type objectHeaders struct {
	LastModified       *time.Time
	ContentLength      *int64
	Metadata           map[string]*string
	CacheControl       *string
	ContentDisposition *string
	ContentEncoding    *string
	ContentLanguage    *string
	ContentRange       *string
	ContentType        *string
	ETag               *string
	Expires            *string
	AcceptRanges       *string
}

func newS3Backend(target Target, ocfg *config.OriginConfig, metricsCl metrics.Client) (*s3Backend, error) {
	sessionConfig := &aws.Config{
		Region: aws.String(ocfg.S3.Region),
	}
	// Load credentials if they exists
	if ocfg.S3.Credentials != nil && ocfg.S3.Credentials.AccessKey != nil && ocfg.S3.Credentials.SecretKey != nil {
		sessionConfig.Credentials = credentials.NewStaticCredentials(ocfg.S3.Credentials.AccessKey.Value, ocfg.S3.Credentials.SecretKey.Value, "")
	}
	// Load custom endpoint if it exists
	if ocfg.S3.S3Endpoint != "" {
		sessionConfig.Endpoint = aws.String(ocfg.S3.S3Endpoint)
		sessionConfig.S3ForcePathStyle = aws.Bool(true)
	}
	// Check if ssl needs to be disabled
	if ocfg.S3.DisableSSL {
		sessionConfig.DisableSSL = aws.Bool(true)
	}
	// Manage timeout
	if ocfg.TimeoutDuration != 0 {
		sessionConfig.HTTPClient = &http.Client{Timeout: ocfg.TimeoutDuration}
	}
	// Create session
	sess, err := session.NewSession(sessionConfig)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &s3Backend{
		svcClient: s3.New(sess),
		cfg:       ocfg,
		metricsCl: metricsCl,
		target:    target,
	}, nil
}

func (b *s3Backend) Name() string { return b.cfg.Name }

func (b *s3Backend) Fetch(ctx context.Context, input *FetchInput) (*Response, error) {
	// Get logger
	logger := log.GetLoggerFromContext(ctx)

	// S3 keys are raw
	objKey, err := url.PathUnescape(input.Key)
	// Check error
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// Build key
	key := b.cfg.S3.GetRootPrefix() + objKey
	// Url is only used for logs
	u := "s3://" + b.cfg.S3.Name + "/" + key

	// The bucket root isn't an object
	if objKey == "" {
		logger.Debugf("Empty key on %s, answering not found", b.cfg.Name)

		return &Response{
			Header:     http.Header{},
			Body:       http.NoBody,
			Target:     b.target,
			Backend:    b.cfg.Name,
			URL:        u,
			StatusCode: http.StatusNotFound,
		}, nil
	}

	// Create child trace
	childTrace := tracing.StartChildTrace(ctx, "origin.s3-request")
	childTrace.SetTag("origin.target", b.target.String())
	childTrace.SetTag("origin.backend", b.cfg.Name)
	childTrace.SetTag("s3-bucket.bucket-name", b.cfg.S3.Name)
	childTrace.SetTag("s3-bucket.bucket-region", b.cfg.S3.Region)
	childTrace.SetTag("s3-bucket.bucket-prefix", b.cfg.S3.Prefix)
	childTrace.SetTag("s3-bucket.bucket-s3-endpoint", b.cfg.S3.S3Endpoint)

	defer childTrace.Finish()

	logger.Infof("Attempting to %s %s from %s", input.Method, u, b.cfg.Name)

	var (
		hdrs *objectHeaders
		body io.ReadCloser
	)

	if input.Method == http.MethodHead {
		hdrs, err = b.headObject(ctx, key)
		body = http.NoBody
	} else {
		hdrs, body, err = b.getObject(ctx, key)
	}

	// Check error
	if err != nil {
		status, ok := s3ErrorStatus(err)
		// Not an answer from S3
		if !ok {
			b.metricsCl.IncOriginRequests(b.target.String(), b.cfg.Name, input.Method, TransportErrorStatus)

			return nil, errors.WithStack(err)
		}

		b.metricsCl.IncOriginRequests(b.target.String(), b.cfg.Name, input.Method, strconv.Itoa(status))
		childTrace.SetTag("origin.status-code", status)

		return &Response{
			Header:     http.Header{},
			Body:       http.NoBody,
			Target:     b.target,
			Backend:    b.cfg.Name,
			URL:        u,
			StatusCode: status,
		}, nil
	}

	b.metricsCl.IncOriginRequests(b.target.String(), b.cfg.Name, input.Method, strconv.Itoa(http.StatusOK))
	childTrace.SetTag("origin.status-code", http.StatusOK)

	return &Response{
		Header:     hdrs.toHTTPHeader(),
		Body:       body,
		Target:     b.target,
		Backend:    b.cfg.Name,
		URL:        u,
		StatusCode: http.StatusOK,
	}, nil
}

func (b *s3Backend) getObject(ctx context.Context, key string) (*objectHeaders, io.ReadCloser, error) {
	obj, err := b.svcClient.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.cfg.S3.Name),
		Key:    aws.String(key),
	})
	// Check error
	if err != nil {
		return nil, nil, err
	}

	return &objectHeaders{
		LastModified:       obj.LastModified,
		ContentLength:      obj.ContentLength,
		Metadata:           obj.Metadata,
		CacheControl:       obj.CacheControl,
		ContentDisposition: obj.ContentDisposition,
		ContentEncoding:    obj.ContentEncoding,
		ContentLanguage:    obj.ContentLanguage,
		ContentRange:       obj.ContentRange,
		ContentType:        obj.ContentType,
		ETag:               obj.ETag,
		Expires:            obj.Expires,
		AcceptRanges:       obj.AcceptRanges,
	}, obj.Body, nil
}

func (b *s3Backend) headObject(ctx context.Context, key string) (*objectHeaders, error) {
	obj, err := b.svcClient.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.cfg.S3.Name),
		Key:    aws.String(key),
	})
	// Check error
	if err != nil {
		return nil, err
	}

	return &objectHeaders{
		LastModified:       obj.LastModified,
		ContentLength:      obj.ContentLength,
		Metadata:           obj.Metadata,
		CacheControl:       obj.CacheControl,
		ContentDisposition: obj.ContentDisposition,
		ContentEncoding:    obj.ContentEncoding,
		ContentLanguage:    obj.ContentLanguage,
		ContentType:        obj.ContentType,
		ETag:               obj.ETag,
		Expires:            obj.Expires,
		AcceptRanges:       obj.AcceptRanges,
	}, nil
}

// s3ErrorStatus returns the http status S3 answered with, if any.
func s3ErrorStatus(err error) (int, bool) {
	// Try to cast error into an AWS Error if possible
	var aerr awserr.Error
	if errors.As(err, &aerr) && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == s3NotFoundCode) {
		return http.StatusNotFound, true
	}

	var rerr awserr.RequestFailure
	if errors.As(err, &rerr) && rerr.StatusCode() != 0 {
		return rerr.StatusCode(), true
	}

	return 0, false
}

func (o *objectHeaders) toHTTPHeader() http.Header {
	h := http.Header{}

	setHeader := func(name string, v *string) {
		if v != nil && *v != "" {
			h.Set(name, *v)
		}
	}

	setHeader("Cache-Control", o.CacheControl)
	setHeader("Content-Disposition", o.ContentDisposition)
	setHeader("Content-Encoding", o.ContentEncoding)
	setHeader("Content-Language", o.ContentLanguage)
	setHeader("Content-Range", o.ContentRange)
	setHeader("Content-Type", o.ContentType)
	setHeader("ETag", o.ETag)
	setHeader("Expires", o.Expires)
	setHeader("Accept-Ranges", o.AcceptRanges)

	if o.ContentLength != nil {
		h.Set("Content-Length", strconv.FormatInt(*o.ContentLength, 10))
	}

	if o.LastModified != nil {
		h.Set("Last-Modified", o.LastModified.UTC().Format(http.TimeFormat))
	}

	for k, v := range o.Metadata {
		if v != nil {
			h.Set("X-Amz-Meta-"+k, *v)
		}
	}

	return h
}
