package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/louiezhelee-uway/kyc-system/models"
)

var (
	ErrNotFound  = errors.New("artifact not found")
	ErrForbidden = errors.New("artifact access denied")
)

const filenamePrefix = "kyc_report_"

// ArtifactKey is the structured identity of one report file. The filename is
// only a wire encoding of this record; business logic never passes raw
// filenames around.
type ArtifactKey struct {
	VerificationID string
	ApplicantID    string
	Lang           string
	Format         models.ReportFormat
}

// Filename encodes the key as kyc_report_{verificationID}_{applicantID}_{lang}.{format}.
// The owning verification id is part of the name so ownership can be
// re-derived from the name alone.
func (k ArtifactKey) Filename() string {
	return fmt.Sprintf("%s%s_%s_%s.%s", filenamePrefix, k.VerificationID, k.ApplicantID, k.Lang, k.Format)
}

// ParseFilename is the storage-boundary deserialization of an artifact name.
// Anything that does not round-trip through the encoding is rejected.
func ParseFilename(name string) (ArtifactKey, error) {
	if name != filepath.Base(name) || strings.Contains(name, "..") {
		return ArtifactKey{}, ErrForbidden
	}
	if !strings.HasPrefix(name, filenamePrefix) {
		return ArtifactKey{}, ErrNotFound
	}

	stem, ext, found := strings.Cut(strings.TrimPrefix(name, filenamePrefix), ".")
	if !found {
		return ArtifactKey{}, ErrNotFound
	}

	format := models.ReportFormat(ext)
	if format != models.ReportFormatPDF && format != models.ReportFormatJSON {
		return ArtifactKey{}, ErrNotFound
	}

	// The verification id is a locally issued uuid and the lang is a language
	// code, neither contains "_". Only the provider-assigned applicant id in
	// the middle may, so the stem is anchored from both ends.
	verificationID, rest, found := strings.Cut(stem, "_")
	if !found {
		return ArtifactKey{}, ErrNotFound
	}
	langIdx := strings.LastIndex(rest, "_")
	if langIdx < 0 {
		return ArtifactKey{}, ErrNotFound
	}
	applicantID, lang := rest[:langIdx], rest[langIdx+1:]
	if verificationID == "" || applicantID == "" || lang == "" {
		return ArtifactKey{}, ErrNotFound
	}

	return ArtifactKey{
		VerificationID: verificationID,
		ApplicantID:    applicantID,
		Lang:           lang,
		Format:         format,
	}, nil
}

// Registry persists downloaded report files under a single storage root and
// gates retrieval on the ownership encoded in each name.
type Registry struct {
	Root string
}

func (r *Registry) Store(key ArtifactKey, content []byte) (*models.ReportArtifact, error) {
	if err := os.MkdirAll(r.Root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report storage dir: %w", err)
	}

	name := key.Filename()
	if err := os.WriteFile(filepath.Join(r.Root, name), content, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write report file: %w", err)
	}

	return &models.ReportArtifact{
		Filename:       name,
		VerificationID: key.VerificationID,
		ApplicantID:    key.ApplicantID,
		Lang:           key.Lang,
		Format:         key.Format,
		Size:           int64(len(content)),
	}, nil
}

// List enumerates stored files whose encoded verification id matches.
func (r *Registry) List(verificationID string) ([]models.ReportArtifact, error) {
	entries, err := os.ReadDir(r.Root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read report storage dir: %w", err)
	}

	var artifacts []models.ReportArtifact
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		key, err := ParseFilename(entry.Name())
		if err != nil || key.VerificationID != verificationID {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, models.ReportArtifact{
			Filename:       entry.Name(),
			VerificationID: key.VerificationID,
			ApplicantID:    key.ApplicantID,
			Lang:           key.Lang,
			Format:         key.Format,
			Size:           info.Size(),
			CreatedAt:      info.ModTime(),
		})
	}

	return artifacts, nil
}

// Retrieve releases file bytes only when the requested name survives the
// traversal check and its encoded verification id matches the caller's. The
// terminal-state gate on the caller's token is enforced upstream by the
// session layer. Failures never leak filesystem detail.
func (r *Registry) Retrieve(verificationID string, filename string) ([]byte, models.ReportFormat, error) {
	key, err := ParseFilename(filename)
	if err != nil {
		return nil, "", err
	}
	if key.VerificationID != verificationID {
		return nil, "", ErrForbidden
	}

	content, err := os.ReadFile(filepath.Join(r.Root, key.Filename()))
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read report file: %w", err)
	}

	return content, key.Format, nil
}
