package dedup

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/corona10/goimagehash"

	"typeporter/pkg/config"
	"typeporter/pkg/logger"
	"typeporter/pkg/storage"
)

// Consolidator walks the archive tree and collapses duplicate media
// into one canonical file per logical picture. Images merge on
// perceptual distance, everything else only on identical bytes. The
// walk order is lexical, so re-runs over the same archive produce the
// same canonical names and the same rename map.
type Consolidator struct {
	root      string
	mediaDir  string
	threshold int
	mapPath   string
	logger    logger.Logger
}

// New creates a Consolidator over an archive root
func New(cfg *config.Config, archiveRoot string, log logger.Logger) *Consolidator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Consolidator{
		root:      archiveRoot,
		mediaDir:  filepath.Join(cfg.Dedup.OutputDir, cfg.Dedup.MediaSubdir),
		threshold: cfg.Dedup.DistanceThreshold,
		mapPath:   cfg.Dedup.MapFile,
		logger:    log,
	}
}

// Result summarizes one consolidation run
type Result struct {
	// Scanned counts media files examined
	Scanned int
	// Canonical counts distinct files copied into the media folder
	Canonical int
	// Merged counts files mapped onto an earlier canonical copy
	Merged int
	// Fallbacks counts images that failed to decode and were hashed
	// exactly instead
	Fallbacks int
	RenameMap RenameMap
}

type imageEntry struct {
	hash      *goimagehash.ImageHash
	canonical string
}

type runState struct {
	images []imageEntry
	exact  map[string]string
	taken  map[string]struct{}
	result *Result
}

// Run consolidates every media file under the archive root and writes
// the rename map. Documents, popup links and state folders are
// skipped.
func (c *Consolidator) Run(ctx context.Context) (*Result, error) {
	if err := os.MkdirAll(c.mediaDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	state := &runState{
		exact:  make(map[string]string),
		taken:  make(map[string]struct{}),
		result: &Result{RenameMap: make(RenameMap)},
	}

	c.logger.InfoWithFields("Starting media consolidation", map[string]interface{}{
		"archive":   c.root,
		"media_dir": c.mediaDir,
		"threshold": c.threshold,
	})

	err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != c.root {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		if strings.HasSuffix(name, ".html") || strings.HasSuffix(name, "-popup") {
			return nil
		}

		rel, err := filepath.Rel(c.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		// Media always lives inside a post folder or the shared
		// assets folder; root-level strays are not media
		if !strings.Contains(rel, "/") {
			return nil
		}

		state.result.Scanned++
		return c.consolidateFile(path, rel, state)
	})
	if err != nil {
		return nil, err
	}

	if err := state.result.RenameMap.Save(c.mapPath); err != nil {
		return nil, err
	}

	c.logger.InfoWithFields("Media consolidation finished", map[string]interface{}{
		"scanned":   state.result.Scanned,
		"canonical": state.result.Canonical,
		"merged":    state.result.Merged,
		"fallbacks": state.result.Fallbacks,
	})
	return state.result, nil
}

func (c *Consolidator) consolidateFile(path, rel string, state *runState) error {
	isImage, err := IsImageFile(path)
	if err != nil {
		return err
	}

	if isImage {
		hash, err := ImageFingerprint(path)
		if err != nil {
			c.logger.WarnWithFields("Image not decodable, falling back to exact hashing", map[string]interface{}{
				"file":  rel,
				"error": err.Error(),
			})
			state.result.Fallbacks++
		} else {
			if canonical, ok := c.nearestMatch(hash, state); ok {
				state.result.Merged++
				state.result.RenameMap[rel] = canonical
				c.logger.DebugWithFields("Merged duplicate image", map[string]interface{}{
					"file":      rel,
					"canonical": canonical,
				})
				return nil
			}
			canonical, err := c.admitCanonical(path, rel, state)
			if err != nil {
				return err
			}
			state.images = append(state.images, imageEntry{hash: hash, canonical: canonical})
			return nil
		}
	}

	// Non-images, and images that did not decode, merge only on
	// identical bytes
	digest, err := ExactDigest(path)
	if err != nil {
		return err
	}
	if canonical, ok := state.exact[digest]; ok {
		state.result.Merged++
		state.result.RenameMap[rel] = canonical
		return nil
	}

	canonical, err := c.admitCanonical(path, rel, state)
	if err != nil {
		return err
	}
	state.exact[digest] = canonical
	return nil
}

// nearestMatch finds the closest admitted image within the distance
// threshold. A strict less-than comparison keeps the earliest entry
// on ties, so the first copy in walk order always wins.
func (c *Consolidator) nearestMatch(hash *goimagehash.ImageHash, state *runState) (string, bool) {
	best := -1
	canonical := ""
	for _, entry := range state.images {
		distance, err := hash.Distance(entry.hash)
		if err != nil {
			continue
		}
		if best < 0 || distance < best {
			best = distance
			canonical = entry.canonical
		}
	}
	if best < 0 || best > c.threshold {
		return "", false
	}
	return canonical, true
}

// admitCanonical copies a new canonical media file into the media
// folder as {owning-folder}_{filename}. Collisions get a numeric
// suffix chosen deterministically so re-runs name files identically.
func (c *Consolidator) admitCanonical(path, rel string, state *runState) (string, error) {
	slug := filepath.Base(filepath.Dir(path))
	name := storage.SanitizeName(slug + "_" + filepath.Base(path))

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	canonical := name
	for next := 2; ; next++ {
		if _, dup := state.taken[canonical]; !dup {
			break
		}
		canonical = fmt.Sprintf("%s_%d%s", stem, next, ext)
	}
	state.taken[canonical] = struct{}{}

	if err := storage.CopyFileAtomic(filepath.Join(c.mediaDir, canonical), path); err != nil {
		return "", err
	}

	state.result.Canonical++
	state.result.RenameMap[rel] = canonical
	return canonical, nil
}
