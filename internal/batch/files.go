package batch

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	pkgerrors "document-reconciliation-service/pkg/errors"
)

// maxEntryBytes caps how much is read from a single archive entry or
// document, bounding working storage against zip bombs.
const maxEntryBytes = 64 << 20

// sanitizeFilename makes an upload name safe as a working-file name:
// every non-alphanumeric rune outside ".-_" becomes '_', and
// over-length names are truncated with a content-hash suffix so two
// distinct long names cannot collide after truncation.
func sanitizeFilename(name string, content []byte, maxLen int) string {
	base := filepath.Base(name)
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	clean := b.String()
	if clean == "" || clean == "." {
		clean = "document.pdf"
	}
	if len(clean) <= maxLen {
		return clean
	}

	sum := sha256.Sum256(content)
	suffix := "-" + hex.EncodeToString(sum[:6])
	ext := filepath.Ext(clean)
	keep := maxLen - len(suffix) - len(ext)
	if keep < 1 {
		keep = 1
	}
	return clean[:keep] + suffix + ext
}

// stagedDocument is one working file awaiting the pipeline
type stagedDocument struct {
	// Name is the sanitized original name, used as the instrument
	// source reference.
	Name string
	// Path is the working-file location, removed once parsed.
	Path string
}

// stageFile copies one document into the batch working directory
func stageFile(dir, originalName string, content []byte, maxLen int) (stagedDocument, error) {
	name := sanitizeFilename(originalName, content, maxLen)
	path := filepath.Join(dir, name)

	// A sibling with the same sanitized name gets a hash-disambiguated
	// variant instead of overwriting it.
	if _, err := os.Stat(path); err == nil {
		sum := sha256.Sum256(content)
		ext := filepath.Ext(name)
		path = filepath.Join(dir, strings.TrimSuffix(name, ext)+"-"+hex.EncodeToString(sum[:4])+ext)
		name = filepath.Base(path)
	}

	if err := os.WriteFile(path, content, 0o600); err != nil {
		return stagedDocument{}, pkgerrors.DocumentError(pkgerrors.CodeFileNotFound, originalName, err)
	}
	return stagedDocument{Name: name, Path: path}, nil
}

// expandZip extracts every PDF entry of an archive into the working
// directory. A corrupt entry is skipped and recorded; sibling entries
// keep extracting. A zip that cannot be opened at all is a
// malformed-archive error.
func expandZip(archivePath, dir string, maxLen int, sample *pkgerrors.Sample) ([]stagedDocument, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, pkgerrors.ArchiveError(pkgerrors.CodeMalformedArchive, archivePath, "", err)
	}
	defer reader.Close()

	var docs []stagedDocument
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(entry.Name), ".pdf") {
			continue
		}

		content, err := readEntry(entry)
		if err != nil {
			sample.Add(pkgerrors.ArchiveError(pkgerrors.CodeMalformedArchiveEntry, archivePath, entry.Name, err))
			continue
		}
		doc, err := stageFile(dir, entry.Name, content, maxLen)
		if err != nil {
			sample.Add(err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func readEntry(entry *zip.File) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, maxEntryBytes))
}
