// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const gcsPrefix = "gs://"

// ParseGCSURL splits a gs://bucket/object destination. It reports false for
// any other destination
func ParseGCSURL(dest string) (string, string, bool, error) {
	rest, ok := strings.CutPrefix(dest, gcsPrefix)
	if !ok {
		return "", "", false, nil
	}
	bucket, object, _ := strings.Cut(rest, "/")
	if bucket == "" || object == "" {
		return "", "", true, fmt.Errorf(
			"invalid destination %q (expected '%s<bucket>/<object>')",
			dest,
			gcsPrefix,
		)
	}
	return bucket, object, true, nil
}

type sinkConfig struct {
	credentialsFile string
}

type SinkOptionFunc func(*sinkConfig)

// WithCredentialsFile specifies the GCP credentials file for GCS destinations
func WithCredentialsFile(path string) SinkOptionFunc {
	return func(c *sinkConfig) {
		c.credentialsFile = path
	}
}

// OpenSink opens dest for writing. A gs://bucket/object destination writes a
// GCS object, anything else is a local file path. The object or file is
// complete once the returned writer is closed
func OpenSink(ctx context.Context, dest string, opts ...SinkOptionFunc) (io.WriteCloser, error) {
	if dest == "" {
		return nil, errors.New("no destination given")
	}
	cfg := &sinkConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	bucket, object, isGCS, err := ParseGCSURL(dest)
	if err != nil {
		return nil, err
	}
	if !isGCS {
		f, err := os.Create(dest)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", dest, err)
		}
		return f, nil
	}
	clientOpts := []option.ClientOption{storage.WithDisabledClientMetrics()}
	if cfg.credentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.credentialsFile))
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("gcs: failed in creating storage client: %w", err)
	}
	return &gcsSink{
		client: client,
		writer: client.Bucket(bucket).Object(object).NewWriter(ctx),
	}, nil
}

type gcsSink struct {
	client *storage.Client
	writer *storage.Writer
}

func (s *gcsSink) Write(p []byte) (int, error) {
	return s.writer.Write(p)
}

func (s *gcsSink) Close() error {
	return errors.Join(s.writer.Close(), s.client.Close())
}
