package service

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"
	"io/fs"
	"media-library/config"
	"media-library/constant"
	"media-library/dto"
	"media-library/entities"
	"media-library/pkg/fingerprint"
	"media-library/repository"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ReconcileService audits the catalog against the managed storage
// directories. Analyze is a dry run; Fix syncs catalog metadata to on-disk
// reality; Cleanup deletes filesystem duplicates and orphans.
type ReconcileService interface {
	Analyze(ctx context.Context) (*dto.ReconcileReport, error)
	Fix(ctx context.Context) (*dto.ReconcileReport, error)
	Cleanup(ctx context.Context, confirm bool) (*dto.CleanupReport, error)
}

type reconcileService struct {
	catalog repository.Catalog
	cfg     *config.Config
	prober  Prober
}

func NewReconcileService(catalog repository.Catalog, cfg *config.Config, prober Prober) ReconcileService {
	return &reconcileService{
		catalog: catalog,
		cfg:     cfg,
		prober:  prober,
	}
}

type scannedFile struct {
	path       string
	size       int64
	modTime    time.Time
	normName   string
	hash       string
	resolution constant.Quality
}

func (f *scannedFile) groupKey() string {
	return f.normName + "|" + f.resolution.String()
}

// fixup carries the on-disk reality a mismatched record should be synced to.
type fixup struct {
	mediaID    uuid.UUID
	path       string
	size       int64
	hash       string
	resolution constant.Quality
}

type pass struct {
	records  []*entities.MediaRecord
	variants []*entities.TranscodedVariant
	files    []*scannedFile

	findings []dto.Finding
	errors   []dto.FileError
	fixups   []fixup

	// protected maps file path -> true for every file the catalog accounts
	// for; cleanup must never touch these.
	protected map[string]bool
	// matchedNames holds the normalized titles that have a protected file.
	matchedNames map[string]bool
	summary      dto.ReconcileSummary
}

func (r *reconcileService) roots() []string {
	var roots []string
	for _, dir := range []string{r.cfg.Storage.MediaDir, r.cfg.Storage.TranscodedDir} {
		if dir != "" {
			roots = append(roots, dir)
		}
	}
	return roots
}

var skippedSuffixes = []string{".tmp", ".part", ".lock", ".assembling", ".json"}

func transientFile(name string) bool {
	for _, suffix := range skippedSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// run executes one full pass: load, fingerprint, match, classify.
// Per-file errors are recorded, never fatal; the pass always completes.
func (r *reconcileService) run(ctx context.Context) (*pass, error) {
	records, err := r.catalog.ListMedia(ctx)
	if err != nil {
		return nil, err
	}
	variants, err := r.catalog.ListVariants(ctx)
	if err != nil {
		return nil, err
	}

	p := &pass{
		records:   records,
		variants:  variants,
		protected: make(map[string]bool),
	}
	p.summary.RecordsScanned = len(records)

	r.scan(ctx, p)
	r.match(ctx, p)
	r.classify(p)
	r.summarize(p)
	return p, nil
}

func (r *reconcileService) scan(ctx context.Context, p *pass) {
	for _, root := range r.roots() {
		err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				p.errors = append(p.errors, dto.FileError{Path: path, Error: walkErr.Error()})
				return nil
			}
			if entry.IsDir() || transientFile(entry.Name()) {
				return nil
			}
			info, err := entry.Info()
			if err != nil {
				p.errors = append(p.errors, dto.FileError{Path: path, Error: err.Error()})
				return nil
			}

			hash := fingerprint.Hash(path)
			if hash == "" {
				p.errors = append(p.errors, dto.FileError{Path: path, Error: "unhashable"})
			}
			resolution := constant.QualityUnknown
			if quality, _, probeErr := r.prober.Probe(ctx, path); probeErr == nil {
				resolution = quality
			}

			p.files = append(p.files, &scannedFile{
				path:       path,
				size:       info.Size(),
				modTime:    info.ModTime(),
				normName:   fingerprint.NormalizeTranscoded(entry.Name()),
				hash:       hash,
				resolution: resolution,
			})
			return nil
		})
		if err != nil {
			p.errors = append(p.errors, dto.FileError{Path: root, Error: err.Error()})
		}
	}
	p.summary.FilesScanned = len(p.files)
}

// match pairs each catalog record with a filesystem file by the
// (normalizedName, resolution, hash) triple; the hash is the strong part
// of the identity, so a record follows its content across renames.
func (r *reconcileService) match(ctx context.Context, p *pass) {
	byPath := make(map[string]*scannedFile, len(p.files))
	for _, f := range p.files {
		byPath[f.path] = f
	}

	matchedNames := make(map[string]bool)
	for _, record := range p.records {
		recordNorm := fingerprint.NormalizeTranscoded(record.OriginalFileName)

		tripleMatch := func(f *scannedFile) bool {
			return f.hash != "" && f.hash == record.ContentHash && f.normName == recordNorm
		}

		// Prefer the file at the recorded path; content copies elsewhere
		// must not steal the match from it.
		var matched *scannedFile
		if f, ok := byPath[record.StoragePath]; ok && tripleMatch(f) {
			matched = f
		} else {
			for _, f := range p.files {
				if tripleMatch(f) {
					matched = f
					break
				}
			}
		}

		if matched != nil {
			p.protected[matched.path] = true
			matchedNames[matched.normName] = true
			p.findings = append(p.findings, dto.Finding{
				Kind:           constant.FindingProtected,
				Path:           matched.path,
				MediaID:        &record.ID,
				NormalizedName: matched.normName,
				Resolution:     matched.resolution,
				SizeBytes:      matched.size,
			})
			if record.StoragePath != matched.path || record.SizeBytes != matched.size || record.Resolution != matched.resolution {
				p.findings = append(p.findings, dto.Finding{
					Kind:    constant.FindingMismatch,
					Path:    matched.path,
					MediaID: &record.ID,
					Detail:  fmt.Sprintf("catalog points at %s, content lives at %s", record.StoragePath, matched.path),
				})
				p.fixups = append(p.fixups, fixup{
					mediaID:    record.ID,
					path:       matched.path,
					size:       matched.size,
					hash:       matched.hash,
					resolution: matched.resolution,
				})
			}
			continue
		}

		// No content match; if something still sits at the recorded path
		// the record's metadata disagrees with reality.
		if f, ok := byPath[record.StoragePath]; ok {
			p.protected[f.path] = true
			matchedNames[f.normName] = true
			p.findings = append(p.findings, dto.Finding{
				Kind:    constant.FindingMismatch,
				Path:    f.path,
				MediaID: &record.ID,
				Detail:  "file at recorded path no longer matches recorded hash/size",
			})
			p.fixups = append(p.fixups, fixup{
				mediaID:    record.ID,
				path:       f.path,
				size:       f.size,
				hash:       f.hash,
				resolution: f.resolution,
			})
			continue
		}

		p.findings = append(p.findings, dto.Finding{
			Kind:    constant.FindingMissing,
			Path:    record.StoragePath,
			MediaID: &record.ID,
			Detail:  "no filesystem file matches this record",
		})
	}

	// Catalog rows sharing a normalized title are database duplicates.
	byTitle := make(map[string][]*entities.MediaRecord)
	for _, record := range p.records {
		key := fingerprint.Normalize(record.Title)
		byTitle[key] = append(byTitle[key], record)
	}
	for title, group := range byTitle {
		if len(group) < 2 {
			continue
		}
		for _, record := range group {
			p.findings = append(p.findings, dto.Finding{
				Kind:           constant.FindingDatabaseDuplicate,
				MediaID:        &record.ID,
				NormalizedName: title,
				Path:           record.StoragePath,
				Detail:         fmt.Sprintf("%d catalog rows share this title", len(group)),
			})
		}
	}

	// Files referenced by the catalog outside the triple match (variant
	// rows, or original paths of other records) are accounted for too.
	referenced := make(map[string]bool)
	for _, record := range p.records {
		referenced[record.StoragePath] = true
	}
	for _, variant := range p.variants {
		referenced[variant.TranscodedPath] = true
		referenced[variant.OriginalPath] = true
	}
	for _, f := range p.files {
		if p.protected[f.path] {
			continue
		}
		if referenced[f.path] {
			p.protected[f.path] = true
			matchedNames[f.normName] = true
			p.findings = append(p.findings, dto.Finding{
				Kind:           constant.FindingProtected,
				Path:           f.path,
				NormalizedName: f.normName,
				Resolution:     f.resolution,
				SizeBytes:      f.size,
			})
		}
	}

	p.matchedNames = matchedNames
}

// classify groups the files no record or variant accounts for.
func (r *reconcileService) classify(p *pass) {
	groups := make(map[string][]*scannedFile)
	var orderedKeys []string
	for _, f := range p.files {
		if p.protected[f.path] {
			continue
		}
		key := f.groupKey()
		if _, seen := groups[key]; !seen {
			orderedKeys = append(orderedKeys, key)
		}
		groups[key] = append(groups[key], f)
	}

	for _, key := range orderedKeys {
		group := groups[key]
		sort.Slice(group, func(i, j int) bool { return group[i].modTime.After(group[j].modTime) })

		protectedTitle := p.matchedNames[group[0].normName]
		switch {
		case protectedTitle:
			// Unreferenced copies of a title the catalog already protects.
			keptPath := r.protectedPathForName(p, group[0].normName)
			for _, f := range group {
				p.findings = append(p.findings, dto.Finding{
					Kind:           constant.FindingFilesystemDuplicate,
					Path:           f.path,
					NormalizedName: f.normName,
					Resolution:     f.resolution,
					SizeBytes:      f.size,
					KeptPath:       keptPath,
				})
			}
		case len(group) > 1:
			// No protected member; keep the most recently modified copy.
			kept := group[0]
			for _, f := range group[1:] {
				p.findings = append(p.findings, dto.Finding{
					Kind:           constant.FindingFilesystemDuplicate,
					Path:           f.path,
					NormalizedName: f.normName,
					Resolution:     f.resolution,
					SizeBytes:      f.size,
					KeptPath:       kept.path,
				})
			}
		default:
			p.findings = append(p.findings, dto.Finding{
				Kind:           constant.FindingOrphan,
				Path:           group[0].path,
				NormalizedName: group[0].normName,
				Resolution:     group[0].resolution,
				SizeBytes:      group[0].size,
			})
		}
	}
}

func (r *reconcileService) protectedPathForName(p *pass, normName string) string {
	for _, f := range p.files {
		if p.protected[f.path] && f.normName == normName {
			return f.path
		}
	}
	return ""
}

func (r *reconcileService) summarize(p *pass) {
	for _, finding := range p.findings {
		switch finding.Kind {
		case constant.FindingProtected:
			p.summary.Protected++
		case constant.FindingOrphan:
			p.summary.Orphans++
			p.summary.ReclaimableBytes += finding.SizeBytes
		case constant.FindingFilesystemDuplicate:
			p.summary.FilesystemDuplicates++
			p.summary.ReclaimableBytes += finding.SizeBytes
		case constant.FindingDatabaseDuplicate:
			p.summary.DatabaseDuplicates++
		case constant.FindingMismatch:
			p.summary.Mismatches++
		case constant.FindingMissing:
			p.summary.Missing++
		}
	}
}

func (p *pass) report() *dto.ReconcileReport {
	return &dto.ReconcileReport{
		Findings: p.findings,
		Summary:  p.summary,
		Errors:   p.errors,
	}
}

func (r *reconcileService) Analyze(ctx context.Context) (*dto.ReconcileReport, error) {
	p, err := r.run(ctx)
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().
		Int("files", p.summary.FilesScanned).
		Int("records", p.summary.RecordsScanned).
		Int("orphans", p.summary.Orphans).
		Int("duplicates", p.summary.FilesystemDuplicates).
		Int64("reclaimable_bytes", p.summary.ReclaimableBytes).
		Msg("reconciliation pass complete")
	return p.report(), nil
}

// Fix applies metadata fixups for mismatched records and prunes variant
// rows whose files or originals no longer exist.
func (r *reconcileService) Fix(ctx context.Context) (*dto.ReconcileReport, error) {
	p, err := r.run(ctx)
	if err != nil {
		return nil, err
	}
	report := p.report()

	for _, fix := range p.fixups {
		if err := r.catalog.UpdateMediaFile(ctx, fix.mediaID, fix.path, fix.size, fix.hash, fix.resolution); err != nil {
			report.Errors = append(report.Errors, dto.FileError{Path: fix.path, Error: err.Error()})
			continue
		}
		report.Fixed++
	}

	originals := make(map[string]bool)
	for _, record := range p.records {
		originals[record.StoragePath] = true
	}
	for _, fix := range p.fixups {
		originals[fix.path] = true
	}
	for _, variant := range p.variants {
		_, statErr := os.Stat(variant.TranscodedPath)
		if statErr == nil && originals[variant.OriginalPath] {
			continue
		}
		if err := r.catalog.DeleteVariant(ctx, variant.ID); err != nil {
			report.Errors = append(report.Errors, dto.FileError{Path: variant.TranscodedPath, Error: err.Error()})
			continue
		}
		report.StaleVariantsPruned++
	}

	zerolog.Ctx(ctx).Info().
		Int("fixed", report.Fixed).
		Int("stale_variants_pruned", report.StaleVariantsPruned).
		Msg("reconciliation fix applied")
	return report, nil
}

// Cleanup deletes filesystem duplicates and orphans, never protected files,
// then prunes any directory the deletions left empty up to the managed
// roots. When an archive bucket is configured each victim is offloaded
// there first; a failed offload skips the deletion.
func (r *reconcileService) Cleanup(ctx context.Context, confirm bool) (*dto.CleanupReport, error) {
	if !confirm {
		return nil, ErrConfirmRequired
	}

	p, err := r.run(ctx)
	if err != nil {
		return nil, err
	}

	report := &dto.CleanupReport{Errors: p.errors}
	for _, finding := range p.findings {
		if finding.Kind != constant.FindingOrphan && finding.Kind != constant.FindingFilesystemDuplicate {
			continue
		}
		if p.protected[finding.Path] {
			continue
		}

		if r.cfg.Archive != nil {
			objectName := filepath.Base(finding.Path)
			if _, err := r.cfg.Archive.FPutObject(ctx, r.cfg.ArchiveBucket, objectName, finding.Path, minio.PutObjectOptions{}); err != nil {
				report.Errors = append(report.Errors, dto.FileError{Path: finding.Path, Error: fmt.Sprintf("archive failed, kept: %v", err)})
				continue
			}
			report.Archived = append(report.Archived, objectName)
		}

		if err := os.Remove(finding.Path); err != nil {
			report.Errors = append(report.Errors, dto.FileError{Path: finding.Path, Error: err.Error()})
			continue
		}
		report.Removed = append(report.Removed, finding.Path)
		report.FreedBytes += finding.SizeBytes
		report.PrunedDirs = append(report.PrunedDirs, r.pruneEmptyDirs(finding.Path)...)
	}

	zerolog.Ctx(ctx).Info().
		Int("removed", len(report.Removed)).
		Int64("freed_bytes", report.FreedBytes).
		Msg("reconciliation cleanup complete")
	return report, nil
}

// pruneEmptyDirs removes directories left empty by a deletion, walking
// upward until a managed root is reached.
func (r *reconcileService) pruneEmptyDirs(deleted string) []string {
	var pruned []string
	dir := filepath.Dir(deleted)
	for {
		insideRoot := false
		for _, root := range r.roots() {
			if dir != root && strings.HasPrefix(dir, root+string(filepath.Separator)) {
				insideRoot = true
				break
			}
		}
		if !insideRoot {
			break
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			break
		}
		if err := os.Remove(dir); err != nil {
			break
		}
		pruned = append(pruned, dir)
		dir = filepath.Dir(dir)
	}
	return pruned
}
