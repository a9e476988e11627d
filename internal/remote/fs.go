package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"archivist/internal/fileutil"
)

const manifestsDir = "_MANIFESTS"

// FS implements Source against a mounted directory tree. Every worker
// sharing the same root sees the same queue; rename within the root is the
// claim primitive.
type FS struct {
	root string
}

// NewFS opens a filesystem-backed remote rooted at root and creates the
// folder layout if it does not exist yet.
func NewFS(root string) (*FS, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("remote: empty root")
	}
	source := &FS{root: root}
	if err := source.ensureLayout(); err != nil {
		return nil, err
	}
	return source, nil
}

// Root returns the directory this remote is mounted on.
func (f *FS) Root() string {
	return f.root
}

func (f *FS) ensureLayout() error {
	dirs := []string{
		filepath.Join("INBOX", manifestsDir),
		"PROCESSING",
		filepath.Join("HOLDING", string(HoldingNeedsReview)),
		filepath.Join("HOLDING", string(HoldingPossibleDuplicates)),
		filepath.Join("HOLDING", string(HoldingLowConfidence)),
		"ARCHIVE",
		filepath.Join("METADATA", string(MetadataSidecars)),
		filepath.Join("METADATA", string(MetadataThumbnails)),
		filepath.Join("METADATA", string(MetadataPosters)),
		filepath.Join("METADATA", string(MetadataTranscripts)),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(filepath.Join(f.root, dir), 0o755); err != nil {
			return fmt.Errorf("remote layout: %w", err)
		}
	}
	return nil
}

func (f *FS) ListInbox(ctx context.Context) ([]File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inbox := filepath.Join(f.root, "INBOX")
	contributors, err := os.ReadDir(inbox)
	if err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}

	var files []File
	for _, entry := range contributors {
		if !entry.IsDir() || entry.Name() == manifestsDir {
			continue
		}
		contributor := entry.Name()
		entries, err := os.ReadDir(filepath.Join(inbox, contributor))
		if err != nil {
			return nil, fmt.Errorf("list inbox %s: %w", contributor, err)
		}
		for _, item := range entries {
			if item.IsDir() || strings.HasPrefix(item.Name(), ".") {
				continue
			}
			info, err := item.Info()
			if err != nil {
				continue
			}
			rel := filepath.Join("INBOX", contributor, item.Name())
			files = append(files, File{
				ID:          filepath.ToSlash(rel),
				Name:        norm.NFC.String(item.Name()),
				Contributor: contributor,
				Path:        rel,
				SizeBytes:   info.Size(),
				ModTime:     info.ModTime(),
			})
		}
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].Path < files[j].Path
		}
		return files[i].ModTime.Before(files[j].ModTime)
	})
	return files, nil
}

func (f *FS) ListManifests(ctx context.Context) ([]Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := filepath.Join(f.root, "INBOX", manifestsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list manifests: %w", err)
	}

	var manifests []Manifest
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var manifest Manifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			continue
		}
		if manifest.BatchID == "" {
			continue
		}
		manifests = append(manifests, manifest)
	}
	return manifests, nil
}

func (f *FS) Claim(ctx context.Context, file File, claimedName string) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, err
	}
	if strings.TrimSpace(claimedName) == "" {
		return File{}, errors.New("claim: empty claimed name")
	}

	src := filepath.Join(f.root, file.Path)
	dstRel := filepath.Join("PROCESSING", claimedName)
	dst := filepath.Join(f.root, dstRel)

	if err := os.Rename(src, dst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return File{}, fmt.Errorf("claim %s: already taken: %w", file.Path, fs.ErrNotExist)
		}
		return File{}, fmt.Errorf("claim %s: %w", file.Path, err)
	}

	claimed := file
	claimed.Path = dstRel
	return claimed, nil
}

func (f *FS) Download(ctx context.Context, file File, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("download %s: %w", file.Name, err)
	}
	if err := fileutil.CopyFileVerified(filepath.Join(f.root, file.Path), localPath); err != nil {
		return fmt.Errorf("download %s: %w", file.Name, err)
	}
	return nil
}

func (f *FS) Release(ctx context.Context, claimed, original File) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Rename(filepath.Join(f.root, claimed.Path), filepath.Join(f.root, original.Path)); err != nil {
		return fmt.Errorf("release %s: %w", claimed.Name, err)
	}
	return nil
}

func (f *FS) Route(ctx context.Context, file File, folder HoldingFolder) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, err
	}

	base := filepath.Base(file.Path)
	dstRel := filepath.Join("HOLDING", string(folder), base)
	dst := filepath.Join(f.root, dstRel)

	// A re-run of an already routed asset must not clobber the earlier copy.
	for i := 1; pathExists(dst); i++ {
		ext := filepath.Ext(base)
		stem := strings.TrimSuffix(base, ext)
		dstRel = filepath.Join("HOLDING", string(folder), fmt.Sprintf("%s_%d%s", stem, i, ext))
		dst = filepath.Join(f.root, dstRel)
	}

	if err := os.Rename(filepath.Join(f.root, file.Path), dst); err != nil {
		return File{}, fmt.Errorf("route %s to %s: %w", file.Name, folder, err)
	}

	routed := file
	routed.Path = dstRel
	return routed, nil
}

func (f *FS) PutMetadata(ctx context.Context, kind MetadataKind, name, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("put metadata %s: %w", name, err)
	}
	dst := filepath.Join(f.root, "METADATA", string(kind), name)
	if err := fileutil.WriteFileAtomic(dst, data, 0o644); err != nil {
		return fmt.Errorf("put metadata %s: %w", name, err)
	}
	return nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
