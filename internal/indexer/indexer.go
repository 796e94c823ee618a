// Package indexer implements the reindex pipeline: scan a set of locations,
// detect which files changed via the mtime/size fast path before falling
// back to a content hash, rebuild changed files' chunks and embeddings
// inside the store's per-file transaction, and prune files that disappeared
// from disk.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/riffluxdb/rifflux/internal/chunk"
	"github.com/riffluxdb/rifflux/internal/embed"
	"github.com/riffluxdb/rifflux/internal/errs"
	"github.com/riffluxdb/rifflux/internal/scanner"
	"github.com/riffluxdb/rifflux/internal/store"
)

// Options controls one reindex call.
type Options struct {
	Force        bool
	PruneMissing bool
	IncludeGlobs []string
	ExcludeGlobs []string
	ChunkOptions chunk.Options

	// OnProgress, if set, is called as the reindex pipeline moves through
	// each file: StageScanning for every file, then StageChunking,
	// StageEmbedding, and StagePersisting, in that order, for a file that is
	// rebuilt (an unchanged file reports only StageScanning). For
	// StageScanning current is the number of files seen so far; for the
	// other stages it is the current file's count of chunk records,
	// embedding vectors, or stored chunks respectively.
	OnProgress func(stage Stage, current int, file string)
}

// Stage names one step of the reindex pipeline, reported through
// Options.OnProgress. It intentionally mirrors internal/ui's Stage enum in
// spirit but stays decoupled from it so the indexer never imports a
// presentation package.
type Stage int

const (
	StageScanning Stage = iota
	StageChunking
	StageEmbedding
	StagePersisting
)

// Result reports the outcome of a reindex call.
type Result struct {
	IndexedFiles   int
	SkippedFiles   int
	DeletedFiles   int
	IndexedPaths   []string
	GitFingerprint string
}

// Indexer wires the scanner, chunker, embedder, and store together into the
// reindex pipeline.
type Indexer struct {
	Store    *store.Store
	Embedder embed.Embedder
	Scanner  *scanner.Scanner
}

// New constructs an Indexer with a fresh scanner instance.
func New(st *store.Store, embedder embed.Embedder) (*Indexer, error) {
	sc, err := scanner.New()
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to create scanner", err)
	}
	return &Indexer{Store: st, Embedder: embedder, Scanner: sc}, nil
}

// Reindex scans every location, rebuilds changed files, and optionally
// prunes files observed missing from the locations scanned. File identity is
// deduped by canonical absolute path so overlapping locations never
// double-index the same file.
func (ix *Indexer) Reindex(ctx context.Context, locations []string, opts Options) (Result, error) {
	if len(locations) == 0 {
		locations = []string{"."}
	}

	seen := make(map[string]bool)
	observed := make(map[string]bool)
	var result Result

	for _, loc := range locations {
		absLoc, err := filepath.Abs(loc)
		if err != nil {
			return result, errs.Wrap(errs.Internal, "failed to resolve location: "+loc, err)
		}

		results, err := ix.Scanner.Scan(ctx, &scanner.ScanOptions{
			RootDir:          absLoc,
			IncludePatterns:  opts.IncludeGlobs,
			ExcludePatterns:  opts.ExcludeGlobs,
			RespectGitignore: true,
		})
		if err != nil {
			return result, errs.Wrap(errs.Internal, "scan failed for "+loc, err)
		}

		for sr := range results {
			if sr.Error != nil {
				continue
			}
			f := sr.File
			canonical := f.AbsPath
			if seen[canonical] {
				continue
			}
			seen[canonical] = true

			relPath := chunk.NormalizePath(f.Path)
			observed[relPath] = true

			if opts.OnProgress != nil {
				opts.OnProgress(StageScanning, len(seen), relPath)
			}

			changed, skip, err := ix.processFile(ctx, f.AbsPath, relPath, opts)
			if err != nil {
				return result, err
			}
			if skip {
				result.SkippedFiles++
				continue
			}
			if changed {
				result.IndexedFiles++
				result.IndexedPaths = append(result.IndexedPaths, relPath)
			}
		}

		if fp, err := gitFingerprint(absLoc); err == nil && fp != "" {
			result.GitFingerprint = fp
		}
	}

	if opts.PruneMissing {
		deleted, err := ix.prune(ctx, observed)
		if err != nil {
			return result, err
		}
		result.DeletedFiles = deleted
	}

	model := ""
	if ix.Embedder != nil {
		model = ix.Embedder.ModelLabel()
	}
	_ = ix.Store.SetMetadata(ctx, "embedding_model", model)
	if ix.Embedder != nil {
		_ = ix.Store.SetMetadata(ctx, "embedding_dim", itoa(ix.Embedder.Dim()))
	}
	if result.GitFingerprint != "" {
		_ = ix.Store.SetMetadata(ctx, "git_fingerprint", result.GitFingerprint)
	}

	return result, nil
}

// processFile runs the per-file change-detection fast path and, if the file
// changed (or force is set), rebuilds its chunks and embeddings. It returns
// changed=true when a rebuild happened, skip=true when the file was
// unchanged, whether found so by the mtime/size fast path without hashing
// or by an equal content hash.
func (ix *Indexer) processFile(ctx context.Context, absPath, relPath string, opts Options) (changed bool, skip bool, err error) {
	info, statErr := os.Stat(absPath)
	if statErr != nil {
		return false, false, errs.Wrap(errs.Internal, "failed to stat "+relPath, statErr)
	}
	mtimeNs := info.ModTime().UnixNano()
	sizeBytes := info.Size()

	existing, getErr := ix.Store.GetFile(ctx, relPath)
	if getErr != nil && errs.KindOf(getErr) != errs.NotFound {
		return false, false, getErr
	}

	if !opts.Force && existing != nil && existing.MtimeNs == mtimeNs && existing.SizeBytes == sizeBytes {
		return false, true, nil
	}

	content, err := readFile(absPath)
	if err != nil {
		return false, false, errs.Wrap(errs.Internal, "failed to read "+relPath, err)
	}
	sum := sha256.Sum256(content)
	newHash := hex.EncodeToString(sum[:])

	if !opts.Force && existing != nil && existing.SHA256 == newHash {
		if err := ix.Store.TouchFile(ctx, relPath, mtimeNs, sizeBytes); err != nil {
			return false, false, err
		}
		return false, true, nil
	}

	return true, false, ix.rebuild(ctx, relPath, string(content), mtimeNs, sizeBytes, newHash, opts)
}

func (ix *Indexer) rebuild(ctx context.Context, relPath, content string, mtimeNs, sizeBytes int64, sha string, opts Options) error {
	records := chunk.Chunk(relPath, content, opts.ChunkOptions)
	if opts.OnProgress != nil {
		opts.OnProgress(StageChunking, len(records), relPath)
	}

	chunks := make([]store.Chunk, len(records))
	texts := make([]string, len(records))
	for i, r := range records {
		chunks[i] = store.Chunk{
			ChunkID:     r.ChunkID,
			ChunkIndex:  r.ChunkIndex,
			HeadingPath: r.HeadingPath,
			Content:     r.Content,
			TokenCount:  r.TokenCount,
		}
		texts[i] = r.Content
	}

	var vectors [][]float32
	model := ""
	if ix.Embedder != nil && len(texts) > 0 {
		vecs, err := ix.Embedder.EmbedDocuments(ctx, texts)
		if err != nil && errs.KindOf(err) != errs.EmbedderUnavailable {
			return err
		}
		if err == nil {
			vectors = vecs
			model = ix.Embedder.ModelLabel()
		}
	}
	if opts.OnProgress != nil {
		opts.OnProgress(StageEmbedding, len(vectors), relPath)
	}

	_, err := ix.Store.ReplaceFileChunks(ctx, store.File{
		Path: relPath, MtimeNs: mtimeNs, SizeBytes: sizeBytes, SHA256: sha,
	}, chunks, vectors, model)
	if opts.OnProgress != nil {
		opts.OnProgress(StagePersisting, len(chunks), relPath)
	}
	return err
}

// prune deletes every stored file whose path was not observed during this
// reindex's scans.
func (ix *Indexer) prune(ctx context.Context, observed map[string]bool) (int, error) {
	paths, err := ix.Store.AllPaths(ctx)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, p := range paths {
		if observed[p] {
			continue
		}
		if err := ix.Store.DeleteFile(ctx, p); err != nil && errs.KindOf(err) != errs.NotFound {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// gitFingerprint returns the HEAD commit hash of the git repository
// containing dir, or "" if dir is not inside a worktree. It reads
// .git/HEAD and resolves a symbolic ref one level, which covers the common
// branch-checkout case without shelling out to git.
func gitFingerprint(dir string) (string, error) {
	root, err := findGitDir(dir)
	if err != nil {
		return "", err
	}
	headBytes, err := os.ReadFile(filepath.Join(root, "HEAD"))
	if err != nil {
		return "", err
	}
	head := trimNewline(string(headBytes))
	const prefix = "ref: "
	if len(head) > len(prefix) && head[:len(prefix)] == prefix {
		refPath := filepath.Join(root, head[len(prefix):])
		refBytes, err := os.ReadFile(refPath)
		if err != nil {
			return head + "-dirty", nil
		}
		return trimNewline(string(refBytes)), nil
	}
	return head, nil
}

func findGitDir(dir string) (string, error) {
	for {
		candidate := filepath.Join(dir, ".git")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
