package docstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// ObjectAPI is the slice of the S3 client the R2 backend needs.
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// R2Backend stores the document as a single object. The version token is the
// object's ETag and writes are conditional on it.
type R2Backend struct {
	Client ObjectAPI
	Bucket string
	Key    string
}

func NewR2Backend(client ObjectAPI, bucket, key string) *R2Backend {
	return &R2Backend{Client: client, Bucket: bucket, Key: key}
}

func (b *R2Backend) Load(ctx context.Context) (Document, string, error) {
	out, err := b.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.Bucket),
		Key:    aws.String(b.Key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return Document{}, "", nil
		}
		return nil, "", fmt.Errorf("get object %s: %w", b.Key, err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read object %s: %w", b.Key, err)
	}
	doc, err := Decode(raw)
	if err != nil {
		return nil, "", err
	}
	return doc, aws.ToString(out.ETag), nil
}

func (b *R2Backend) Save(ctx context.Context, doc Document, expectedVersion string) (string, error) {
	data, err := Encode(doc)
	if err != nil {
		return "", err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(b.Bucket),
		Key:         aws.String(b.Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}
	if expectedVersion == "" {
		input.IfNoneMatch = aws.String("*")
	} else {
		input.IfMatch = aws.String(expectedVersion)
	}

	out, err := b.Client.PutObject(ctx, input)
	if err != nil {
		if isPreconditionFailure(err) {
			return "", ErrVersionConflict
		}
		return "", fmt.Errorf("put object %s: %w", b.Key, err)
	}
	return aws.ToString(out.ETag), nil
}

func isPreconditionFailure(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	}
	return false
}
