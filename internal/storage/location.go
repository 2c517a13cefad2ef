package storage

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

type Scheme string

const (
	SchemeFile Scheme = "file"
	SchemeS3   Scheme = "s3"
)

type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

var bucketPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

// Location identifies where a table source lives and how it is encoded.
type Location struct {
	Raw    string
	Scheme Scheme
	Bucket string
	Key    string
	Path   string
	Format Format
}

func (l Location) String() string {
	return l.Raw
}

// ParseLocation accepts a local file path or an s3://bucket/key URL.
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, fmt.Errorf("source location is required")
	}
	if strings.HasPrefix(strings.ToLower(raw), "s3://") {
		parsed, err := url.Parse(raw)
		if err != nil {
			return Location{}, fmt.Errorf("parse source url: %w", err)
		}
		bucket := parsed.Host
		if !bucketPattern.MatchString(bucket) {
			return Location{}, fmt.Errorf("invalid bucket: %q", bucket)
		}
		key := strings.TrimPrefix(parsed.Path, "/")
		if key == "" || strings.HasSuffix(key, "/") {
			return Location{}, fmt.Errorf("source url %q has no object key", raw)
		}
		return Location{
			Raw:    raw,
			Scheme: SchemeS3,
			Bucket: bucket,
			Key:    key,
			Format: formatFromName(path.Base(key)),
		}, nil
	}
	return Location{
		Raw:    raw,
		Scheme: SchemeFile,
		Path:   filepath.Clean(raw),
		Format: formatFromName(filepath.Base(raw)),
	}, nil
}

func formatFromName(name string) Format {
	name = strings.ToLower(name)
	if strings.HasSuffix(name, ".parquet") || strings.HasSuffix(name, ".pq") {
		return FormatParquet
	}
	return FormatCSV
}
