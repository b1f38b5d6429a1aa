package report

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/louiezhelee-uway/kyc-system/models"
)

func TestArtifactKeyFilenameRoundTrip(t *testing.T) {
	key := ArtifactKey{
		VerificationID: "7f1c2a9e-1111-2222-3333-444455556666",
		ApplicantID:    "abc123def456",
		Lang:           "en",
		Format:         models.ReportFormatPDF,
	}

	name := key.Filename()
	assert.Equal(t, "kyc_report_7f1c2a9e-1111-2222-3333-444455556666_abc123def456_en.pdf", name)

	parsed, err := ParseFilename(name)
	assert.NoError(t, err)
	assert.Equal(t, key, parsed)
}

func TestArtifactKeyApplicantIDWithUnderscore(t *testing.T) {
	key := ArtifactKey{
		VerificationID: "7f1c2a9e-1111-2222-3333-444455556666",
		ApplicantID:    "app_01_beta",
		Lang:           "zh",
		Format:         models.ReportFormatJSON,
	}

	parsed, err := ParseFilename(key.Filename())
	assert.NoError(t, err)
	assert.Equal(t, key, parsed)
}

func TestParseFilenameRejectsGarbage(t *testing.T) {
	cases := map[string]error{
		"../../../etc/passwd":        ErrForbidden,
		"kyc_report_a_b_en.pdf/../x": ErrForbidden,
		"notes.txt":                  ErrNotFound,
		"kyc_report_onlyonepart.pdf": ErrNotFound,
		"kyc_report_a_b_en.exe":      ErrNotFound,
		"kyc_report_a_b_en":          ErrNotFound,
		"kyc_report__b_en.pdf":       ErrNotFound,
	}

	for name, want := range cases {
		_, err := ParseFilename(name)
		assert.ErrorIs(t, err, want, "filename %q", name)
	}
}

func TestRegistryStoreListRetrieve(t *testing.T) {
	registry := &Registry{Root: t.TempDir()}

	key := ArtifactKey{
		VerificationID: "ver-1",
		ApplicantID:    "app-1",
		Lang:           "en",
		Format:         models.ReportFormatPDF,
	}
	content := []byte("%PDF-1.4 fake report")

	artifact, err := registry.Store(key, content)
	if err != nil {
		t.Fatalf("failed to store artifact: %v", err)
	}
	assert.Equal(t, int64(len(content)), artifact.Size)

	listed, err := registry.List("ver-1")
	assert.NoError(t, err)
	assert.Len(t, listed, 1)
	assert.Equal(t, artifact.Filename, listed[0].Filename)
	assert.Equal(t, "en", listed[0].Lang)

	other, err := registry.List("ver-2")
	assert.NoError(t, err)
	assert.Empty(t, other)

	got, format, err := registry.Retrieve("ver-1", artifact.Filename)
	assert.NoError(t, err)
	assert.Equal(t, models.ReportFormatPDF, format)
	assert.Equal(t, content, got)
}

func TestRetrieveGates(t *testing.T) {
	registry := &Registry{Root: t.TempDir()}

	key := ArtifactKey{VerificationID: "ver-1", ApplicantID: "app-1", Lang: "en", Format: models.ReportFormatPDF}
	if _, err := registry.Store(key, []byte("data")); err != nil {
		t.Fatalf("failed to store artifact: %v", err)
	}

	t.Run("PathTraversal", func(t *testing.T) {
		_, _, err := registry.Retrieve("ver-1", "../secrets.pdf")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("OwnershipMismatch", func(t *testing.T) {
		_, _, err := registry.Retrieve("ver-2", key.Filename())
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("MissingFile", func(t *testing.T) {
		missing := ArtifactKey{VerificationID: "ver-1", ApplicantID: "app-1", Lang: "zh", Format: models.ReportFormatPDF}
		_, _, err := registry.Retrieve("ver-1", missing.Filename())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
