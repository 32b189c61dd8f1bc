// Package archive stores snapshots together with checksum metadata, either in
// a local directory or in an object storage bucket.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kadirbelkuyu/schemasync/internal/errs"
	"github.com/kadirbelkuyu/schemasync/internal/objectstore"
	"github.com/kadirbelkuyu/schemasync/internal/schema"
)

const metadataSuffix = ".meta.json"

var labelSanitizer = regexp.MustCompile(`[^a-zA-Z0-9-_.]`)

type Metadata struct {
	ID          string         `json:"id"`
	Label       string         `json:"label"`
	Source      string         `json:"source"`
	Format      schema.Format  `json:"format"`
	Size        int64          `json:"size"`
	Checksum    string         `json:"sha256"`
	Location    string         `json:"location"`
	Summary     schema.Summary `json:"summary"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
}

// Destination receives archived files.
type Destination interface {
	Write(ctx context.Context, name string, data []byte, contentType string) (location string, err error)
}

// LocalDir writes archives under a directory.
type LocalDir struct {
	Dir string
}

func (d LocalDir) Write(_ context.Context, name string, data []byte, _ string) (string, error) {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	target := filepath.Join(d.Dir, name)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write archive: %w", err)
	}
	return target, nil
}

// Remote writes archives as objects under Prefix.
type Remote struct {
	Bucket     objectstore.Bucket
	BucketName string
	Prefix     string
}

func (r Remote) Write(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	key := path.Join(strings.Trim(r.Prefix, "/"), name)
	if err := r.Bucket.Put(ctx, key, data, contentType); err != nil {
		return "", err
	}
	return fmt.Sprintf("s3://%s/%s", r.BucketName, key), nil
}

// ParseTarget maps "s3://bucket/prefix" to a Remote built from s3 and
// anything else to a LocalDir.
func ParseTarget(target string, s3 objectstore.Config) (Destination, error) {
	rest, ok := strings.CutPrefix(target, "s3://")
	if !ok {
		return LocalDir{Dir: target}, nil
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	s3.Bucket = bucket
	client, err := objectstore.New(s3)
	if err != nil {
		return nil, err
	}
	return Remote{Bucket: client, BucketName: bucket, Prefix: prefix}, nil
}

type Archiver struct {
	dest   Destination
	format schema.Format
	now    func() time.Time
}

func NewArchiver(dest Destination, format schema.Format) *Archiver {
	if format == "" {
		format = schema.FormatJSON
	}
	return &Archiver{dest: dest, format: format, now: time.Now}
}

// Archive writes snap as "<label>-<timestamp>.<ext>" next to its metadata
// file and returns the metadata.
func (a *Archiver) Archive(ctx context.Context, label, source string, snap *schema.Snapshot) (*Metadata, error) {
	started := a.now()
	data, err := schema.Marshal(snap, a.format)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	label = sanitizeLabel(label)
	name := fmt.Sprintf("%s-%s.%s", label, started.UTC().Format("20060102T150405Z"), a.format)
	location, err := a.dest.Write(ctx, name, data, contentType(a.format))
	if err != nil {
		return nil, err
	}

	meta := &Metadata{
		ID:          uuid.NewString(),
		Label:       label,
		Source:      source,
		Format:      a.format,
		Size:        int64(len(data)),
		Checksum:    Checksum(data),
		Location:    location,
		Summary:     snap.Summary(),
		StartedAt:   started,
		CompletedAt: a.now(),
	}
	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode archive metadata: %w", err)
	}
	if _, err := a.dest.Write(ctx, name+metadataSuffix, metaData, "application/json"); err != nil {
		return nil, err
	}
	return meta, nil
}

// Verify checks a local archive against its metadata file.
func Verify(metadataPath string) (*Metadata, error) {
	raw, err := os.ReadFile(metadataPath)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindNotFound, "failed to read archive metadata", err)
	}
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "malformed archive metadata", err)
	}

	snapshotPath := strings.TrimSuffix(metadataPath, metadataSuffix)
	sum, err := FileChecksum(snapshotPath)
	if err != nil {
		return nil, err
	}
	if sum != meta.Checksum {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "checksum mismatch for %s: have %s, want %s", snapshotPath, sum, meta.Checksum)
	}
	return &meta, nil
}

func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func FileChecksum(p string) (string, error) {
	file, err := os.Open(p)
	if err != nil {
		return "", errs.Wrap(errs.ErrKindNotFound, "failed to open archive file", err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to calculate checksum: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func sanitizeLabel(label string) string {
	cleaned := strings.Trim(labelSanitizer.ReplaceAllString(label, "_"), "_")
	if cleaned == "" {
		return "snapshot"
	}
	return cleaned
}

func contentType(f schema.Format) string {
	if f == schema.FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}
