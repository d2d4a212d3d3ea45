// Package build runs the site pipeline: it walks the source tree, expands
// embed directives in pages on a pool of workers, copies every other file
// verbatim and writes a manifest describing the embeds found.
package build

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/vidembed/internal/config"
	"github.com/conneroisu/vidembed/internal/directive"
	"github.com/conneroisu/vidembed/internal/errors"
	"github.com/conneroisu/vidembed/internal/logging"
)

// Options controls a Pipeline.
type Options struct {
	Source      string
	Destination string
	Extensions  []string
	Exclude     []string
	Workers     int
	Manifest    string
	Clean       bool
}

// OptionsFromConfig maps the site configuration onto pipeline options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Source:      cfg.Site.Source,
		Destination: cfg.Site.Destination,
		Extensions:  cfg.Site.Extensions,
		Exclude:     cfg.Site.Exclude,
		Workers:     cfg.Site.Workers,
		Manifest:    cfg.Site.Manifest,
	}
}

// BuildTask is a single file queued for processing
type BuildTask struct {
	Path string // relative to Source
	Page bool
}

// BuildResult represents the result of processing one file
type BuildResult struct {
	Task     BuildTask
	Page     *Page
	Error    error
	Duration time.Duration
	CacheHit bool
}

// BuildMetrics tracks build totals
type BuildMetrics struct {
	TotalBuilds  int64
	Pages        int64
	Copied       int64
	Failed       int64
	CacheHits    int64
	Embeds       int64
	LastDuration time.Duration
	mutex        sync.RWMutex
}

// Report summarises one Build call.
type Report struct {
	Pages     []Page              `json:"pages" yaml:"pages"`
	Copied    int                 `json:"copied" yaml:"copied"`
	CacheHits int                 `json:"cache_hits" yaml:"cache_hits"`
	Errors    []errors.BuildError `json:"errors,omitempty" yaml:"errors,omitempty"`
	Duration  time.Duration       `json:"duration" yaml:"duration"`
}

// Embeds returns the total number of embeds expanded.
func (r *Report) Embeds() int {
	n := 0
	for _, p := range r.Pages {
		n += len(p.Embeds)
	}
	return n
}

// Manifest is written next to the built site.
type Manifest struct {
	Generated time.Time `yaml:"generated"`
	Pages     []Page    `yaml:"pages"`
}

// BuildCallback is called after every Build
type BuildCallback func(report *Report, err error)

// Pipeline expands a site tree
type Pipeline struct {
	opts      Options
	expander  *directive.Expander
	logger    logging.Logger
	collector *errors.ErrorCollector
	metrics   *BuildMetrics
	callbacks []BuildCallback

	cacheMutex sync.Mutex
	cache      map[string]cacheEntry
	buildMutex sync.Mutex
}

type cacheEntry struct {
	hash string
	page Page
}

// NewPipeline creates a pipeline. A nil logger discards output.
func NewPipeline(opts Options, expander *directive.Expander, logger logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.Nop()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Pipeline{
		opts:      opts,
		expander:  expander,
		logger:    logger.WithComponent("build"),
		collector: errors.NewErrorCollector(),
		metrics:   &BuildMetrics{},
		cache:     make(map[string]cacheEntry),
	}
}

// AddCallback adds a callback to be called when builds complete
func (p *Pipeline) AddCallback(callback BuildCallback) {
	p.callbacks = append(p.callbacks, callback)
}

// Errors exposes the errors of the most recent build
func (p *Pipeline) Errors() *errors.ErrorCollector {
	return p.collector
}

// GetMetrics returns a snapshot of the build metrics
func (p *Pipeline) GetMetrics() BuildMetrics {
	p.metrics.mutex.RLock()
	defer p.metrics.mutex.RUnlock()
	return BuildMetrics{
		TotalBuilds:  p.metrics.TotalBuilds,
		Pages:        p.metrics.Pages,
		Copied:       p.metrics.Copied,
		Failed:       p.metrics.Failed,
		CacheHits:    p.metrics.CacheHits,
		Embeds:       p.metrics.Embeds,
		LastDuration: p.metrics.LastDuration,
	}
}

// ClearCache forces every page to be expanded on the next build
func (p *Pipeline) ClearCache() {
	p.cacheMutex.Lock()
	defer p.cacheMutex.Unlock()
	p.cache = make(map[string]cacheEntry)
}

// Build processes the whole source tree. Pages that fail are reported in the
// returned Report and joined into the error; the rest of the site is still
// written.
func (p *Pipeline) Build(ctx context.Context) (*Report, error) {
	p.buildMutex.Lock()
	defer p.buildMutex.Unlock()

	perf := logging.StartOperation(p.logger, "build")
	start := time.Now()
	p.collector.Clear()

	report, err := p.build(ctx)
	if report != nil {
		report.Duration = time.Since(start)
		report.Errors = p.collector.GetErrors()
		p.updateMetrics(report)
	}
	if err == nil {
		err = p.collector.Err()
	}

	if err != nil {
		perf.EndWithError(ctx, err)
	} else {
		perf.End(ctx, "pages", len(report.Pages), "copied", report.Copied, "embeds", report.Embeds())
	}

	for _, cb := range p.callbacks {
		cb(report, err)
	}

	return report, err
}

func (p *Pipeline) build(ctx context.Context) (*Report, error) {
	if p.opts.Clean {
		if err := os.RemoveAll(p.opts.Destination); err != nil {
			return nil, errors.NewIOError(errors.ErrCodeBuildFailed, "cleaning destination", err)
		}
	}
	if err := os.MkdirAll(p.opts.Destination, 0o755); err != nil {
		return nil, errors.NewIOError(errors.ErrCodeBuildFailed, "creating destination", err)
	}

	tasks, err := p.collect()
	if err != nil {
		return nil, err
	}

	taskCh := make(chan BuildTask)
	resultCh := make(chan BuildResult, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				resultCh <- p.process(ctx, task)
			}
		}()
	}

feed:
	for _, task := range tasks {
		select {
		case <-ctx.Done():
			break feed
		case taskCh <- task:
		}
	}
	close(taskCh)
	wg.Wait()
	close(resultCh)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{}
	for result := range resultCh {
		if result.Error != nil {
			p.collector.Add(errors.FromError(result.Task.Path, result.Error))
			p.logger.Warn(ctx, result.Error, "Page failed", "path", result.Task.Path)
			continue
		}
		if result.CacheHit {
			report.CacheHits++
		}
		if result.Page != nil {
			report.Pages = append(report.Pages, *result.Page)
		} else {
			report.Copied++
		}
	}
	sort.Slice(report.Pages, func(i, j int) bool { return report.Pages[i].Path < report.Pages[j].Path })

	if p.opts.Manifest != "" {
		if err := p.writeManifest(report); err != nil {
			return report, err
		}
	}

	return report, nil
}

// collect walks the source tree and returns a task per file
func (p *Pipeline) collect() ([]BuildTask, error) {
	destAbs, _ := filepath.Abs(p.opts.Destination)
	var tasks []BuildTask

	err := filepath.WalkDir(p.opts.Source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == p.opts.Source {
			return nil
		}

		if abs, _ := filepath.Abs(path); abs == destAbs {
			return skip(d)
		}
		if p.Excluded(path) {
			return skip(d)
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(p.opts.Source, path)
		if err != nil {
			return err
		}
		tasks = append(tasks, BuildTask{Path: rel, Page: p.IsPage(path)})
		return nil
	})
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotFound, "walking source", err)
	}

	return tasks, nil
}

func skip(d fs.DirEntry) error {
	if d.IsDir() {
		return filepath.SkipDir
	}
	return nil
}

// IsPage reports whether a file carries directives
func (p *Pipeline) IsPage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range p.opts.Extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// Excluded reports whether path matches an exclude pattern
func (p *Pipeline) Excluded(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range p.opts.Exclude {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

func (p *Pipeline) process(ctx context.Context, task BuildTask) BuildResult {
	start := time.Now()
	result := BuildResult{Task: task}

	src := filepath.Join(p.opts.Source, task.Path)
	dst := filepath.Join(p.opts.Destination, task.Path)

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		result.Error = err
		return result
	}

	if !task.Page {
		result.Error = copyFile(src, dst)
		result.Duration = time.Since(start)
		return result
	}

	data, err := os.ReadFile(src)
	if err != nil {
		result.Error = err
		return result
	}
	hash := contentHash(data)

	if entry, ok := p.cached(task.Path, hash); ok {
		if _, err := os.Stat(dst); err == nil {
			page := entry.page
			result.Page = &page
			result.CacheHit = true
			result.Duration = time.Since(start)
			return result
		}
	}

	out, page, err := ExpandPage(ctx, p.expander, task.Path, data)
	if err != nil {
		result.Error = err
		return result
	}
	page.Hash = hash

	if err := os.WriteFile(dst, out, 0o644); err != nil {
		result.Error = err
		return result
	}

	p.cacheMutex.Lock()
	p.cache[task.Path] = cacheEntry{hash: hash, page: *page}
	p.cacheMutex.Unlock()

	result.Page = page
	result.Duration = time.Since(start)
	return result
}

func (p *Pipeline) cached(path, hash string) (cacheEntry, bool) {
	p.cacheMutex.Lock()
	defer p.cacheMutex.Unlock()
	entry, ok := p.cache[path]
	return entry, ok && entry.hash == hash
}

func (p *Pipeline) writeManifest(report *Report) error {
	manifest := Manifest{Generated: time.Now().UTC(), Pages: report.Pages}
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	path := filepath.Join(p.opts.Destination, p.opts.Manifest)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.NewIOError(errors.ErrCodeBuildFailed, "writing manifest", err)
	}
	return nil
}

// ReadManifest loads a manifest written by a previous build.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest %s: %w", path, err)
	}
	return &m, nil
}

func (p *Pipeline) updateMetrics(report *Report) {
	p.metrics.mutex.Lock()
	defer p.metrics.mutex.Unlock()

	p.metrics.TotalBuilds++
	p.metrics.Pages += int64(len(report.Pages))
	p.metrics.Copied += int64(report.Copied)
	p.metrics.Failed += int64(len(report.Errors))
	p.metrics.CacheHits += int64(report.CacheHits)
	p.metrics.Embeds += int64(report.Embeds())
	p.metrics.LastDuration = report.Duration
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
