package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rlch/phpintel/analysis"
	"github.com/rlch/phpintel/cache"
	"github.com/rlch/phpintel/index"
)

// Action identifies the kind of progress event.
type Action string

// Progress actions.
const (
	ActionDiscover  Action = "discover"
	ActionDefine    Action = "define"
	ActionReference Action = "reference"
	ActionRemove    Action = "remove"
	ActionIndexed   Action = "indexed"
)

// Event reports indexing progress.
type Event struct {
	Time   time.Time
	Action Action
	// File is set for per-file events.
	File File
	// Done counts the files finished in the current phase, out of Total.
	Done  int
	Total int
	// Cached reports whether definitions came from the cache.
	Cached bool
	// Diagnostics of the file, set for ActionDefine.
	Diagnostics []analysis.Diagnostic
}

// Handler receives progress events. Events of one phase may arrive from
// several goroutines; handlers serialize themselves.
type Handler interface {
	Event(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

// Event calls f.
func (f HandlerFunc) Event(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Result is the outcome of indexing one file.
type Result struct {
	File        File
	Diagnostics []analysis.Diagnostic
	Definitions int
	References  int
	Cached      bool
	// Err is set when the file could not be read. Source problems are
	// diagnostics, never errors.
	Err error
}

// Change is the outcome of synchronizing one changed path.
type Change struct {
	File    File
	Removed bool
	// Analysis is the fresh analysis of the file, nil when Removed.
	Analysis *analysis.AnalyzedFile
}

// Indexer keeps an index in sync with the files of a workspace.
type Indexer struct {
	loader   *Loader
	index    *index.Index
	analyzer *analysis.Analyzer
	cache    cache.Cache
	logger   *zap.Logger
	handler  Handler
	workers  int
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithCache memoizes definitions analysis in c.
func WithCache(c cache.Cache) Option {
	return func(x *Indexer) {
		x.cache = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(x *Indexer) {
		x.logger = logger
	}
}

// WithHandler sets the progress handler.
func WithHandler(h Handler) Option {
	return func(x *Indexer) {
		x.handler = h
	}
}

// WithWorkers overrides the configured number of concurrent workers.
func WithWorkers(n int) Option {
	return func(x *Indexer) {
		if n > 0 {
			x.workers = n
		}
	}
}

// NewIndexer creates an indexer that fills idx with the files selected by loader.
func NewIndexer(loader *Loader, idx *index.Index, opts ...Option) *Indexer {
	x := &Indexer{
		loader:  loader,
		index:   idx,
		logger:  zap.NewNop(),
		workers: loader.Config().Workers,
	}

	for _, opt := range opts {
		opt(x)
	}

	if x.workers <= 0 {
		x.workers = 1
	}

	rules, err := analysis.RulesByName(loader.Config().Rules)
	if err != nil {
		x.logger.Warn("Ignoring configured rules", zap.Strings("rules", loader.Config().Rules), zap.Error(err))
		rules = analysis.DefaultRules()
	}

	x.analyzer = analysis.NewAnalyzerWithRules(idx, rules)

	// Cached diagnostics depend on the rules that produced them.
	if x.cache != nil {
		x.cache = cache.WithPrefix(x.cache, ruleSetKey(rules))
	}

	return x
}

func ruleSetKey(rules []*analysis.Rule) string {
	names := make([]string, 0, len(rules))
	for _, r := range rules {
		names = append(names, r.Name)
	}

	slices.Sort(names)

	return strings.Join(names, ",") + ":"
}

// Index returns the index the indexer maintains.
func (x *Indexer) Index() *index.Index {
	return x.index
}

// Loader returns the file loader.
func (x *Indexer) Loader() *Loader {
	return x.loader
}

// Analyzer returns the analyzer bound to the index.
func (x *Indexer) Analyzer() *analysis.Analyzer {
	return x.analyzer
}

// IndexAll discovers every workspace file and indexes it in two phases:
// definitions of all files first, then references against the complete index.
// Files indexed earlier that no longer exist are removed.
func (x *Indexer) IndexAll(ctx context.Context) ([]Result, error) {
	files, err := x.loader.Discover(ctx)
	if err != nil {
		return nil, err
	}

	x.emit(ctx, Event{Action: ActionDiscover, Total: len(files)})
	x.pruneMissing(ctx, files)

	results := make([]Result, len(files))
	analyzed := make([]*analysis.AnalyzedFile, len(files))
	contents := make([][]byte, len(files))

	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.workers)

	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			results[i].File = f

			content, err := x.loader.Read(f)
			if err != nil {
				x.logger.Warn("Skipping unreadable file", zap.String("path", f.Path), zap.Error(err))
				results[i].Err = err

				return nil
			}

			af, cached := x.define(gctx, f.URI, content)
			x.index.ReplaceDefinitions(f.URI, af.Definitions)

			analyzed[i], contents[i] = af, content
			results[i].Diagnostics = af.Diagnostics
			results[i].Definitions = len(af.Definitions)
			results[i].Cached = cached

			x.emit(gctx, Event{
				Action:      ActionDefine,
				File:        f,
				Done:        int(done.Add(1)),
				Total:       len(files),
				Cached:      cached,
				Diagnostics: af.Diagnostics,
			})

			return nil
		})
	}

	err = g.Wait()
	if err != nil {
		return nil, fmt.Errorf("index definitions: %w", err)
	}

	done.Store(0)

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(x.workers)

	for i, af := range analyzed {
		if af == nil {
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			x.references(af, contents[i])
			x.index.ReplaceReferences(af.URI, af.References)
			results[i].References = len(af.References)

			// The tree is only needed while collecting references.
			af.Tree = nil

			x.emit(gctx, Event{
				Action: ActionReference,
				File:   files[i],
				Done:   int(done.Add(1)),
				Total:  len(files),
			})

			return nil
		})
	}

	err = g.Wait()
	if err != nil {
		return nil, fmt.Errorf("index references: %w", err)
	}

	x.updateGauges()
	x.emit(ctx, Event{Action: ActionIndexed, Done: len(files), Total: len(files)})

	x.logger.Info("Indexed workspace",
		zap.Int("files", len(files)),
		zap.Int("definitions", x.index.Len()))

	return results, nil
}

// Reindex analyzes one file from content and swaps its contribution to the
// index. The returned analysis keeps its tree for position queries.
func (x *Indexer) Reindex(ctx context.Context, uri string, content []byte) *analysis.AnalyzedFile {
	af, _ := x.define(ctx, uri, content)

	// The file's own definitions resolve locally; the index sees both
	// halves of the new contribution at once.
	x.references(af, content)
	x.index.ReplaceFile(uri, af.Definitions, af.References)

	x.updateGauges()

	return af
}

// Remove drops a file's contribution to the index.
func (x *Indexer) Remove(ctx context.Context, uri string) {
	x.index.RemoveFile(uri)
	x.updateGauges()

	f, err := x.loader.FileForURI(uri)
	if err != nil {
		f = File{URI: uri}
	}

	x.emit(ctx, Event{Action: ActionRemove, File: f})
}

// Sync brings the index up to date with the given changed paths: existing
// workspace files are reindexed from disk, missing ones are removed.
// Paths the config does not select are ignored.
func (x *Indexer) Sync(ctx context.Context, paths []string) []Change {
	changes := make([]Change, 0, len(paths))

	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}

		if !x.loader.Accepts(path) {
			continue
		}

		f := x.loader.FileForPath(path)

		content, err := x.loader.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			x.Remove(ctx, f.URI)
			changes = append(changes, Change{File: f, Removed: true})

			continue
		}

		if err != nil {
			x.logger.Warn("Skipping unreadable file", zap.String("path", path), zap.Error(err))

			continue
		}

		changes = append(changes, Change{File: f, Analysis: x.Reindex(ctx, f.URI, content)})
	}

	return changes
}

// define runs the index-independent analysis, from the cache when possible.
func (x *Indexer) define(ctx context.Context, uri string, content []byte) (*analysis.AnalyzedFile, bool) {
	if x.cache != nil {
		b, ok, err := cache.GetBundle(ctx, x.cache, uri, content)

		switch {
		case err != nil:
			CacheRequests.WithLabelValues("error").Inc()
			x.logger.Warn("Cache read failed", zap.String("uri", uri), zap.Error(err))
		case ok:
			CacheRequests.WithLabelValues("hit").Inc()

			return b.File(uri), true
		default:
			CacheRequests.WithLabelValues("miss").Inc()
		}
	}

	start := time.Now()
	af := x.analyzer.AnalyzeDefinitionsContext(ctx, uri, content)

	AnalysisDuration.WithLabelValues(phaseDefinitions).Observe(time.Since(start).Seconds())
	FilesAnalyzed.WithLabelValues(phaseDefinitions).Inc()

	// A cancelled parse is not a property of the content.
	if x.cache != nil && ctx.Err() == nil {
		err := cache.SetBundle(ctx, x.cache, uri, content, af.Bundle())
		if err != nil {
			x.logger.Warn("Cache write failed", zap.String("uri", uri), zap.Error(err))
		}
	}

	return af, false
}

func (x *Indexer) references(af *analysis.AnalyzedFile, content []byte) {
	start := time.Now()
	x.analyzer.CollectReferences(af, content)

	AnalysisDuration.WithLabelValues(phaseReferences).Observe(time.Since(start).Seconds())
	FilesAnalyzed.WithLabelValues(phaseReferences).Inc()
}

// pruneMissing removes indexed files that were not discovered.
func (x *Indexer) pruneMissing(ctx context.Context, files []File) {
	found := make(map[string]bool, len(files))
	for _, f := range files {
		found[f.URI] = true
	}

	for _, uri := range x.index.Files() {
		if found[uri] {
			continue
		}

		path, err := x.loader.FileForURI(uri)
		if err == nil {
			_, statErr := os.Stat(path.Path)
			if statErr == nil && x.loader.Accepts(path.Path) {
				continue
			}
		}

		x.Remove(ctx, uri)
	}
}

func (x *Indexer) updateGauges() {
	IndexDefinitions.Set(float64(x.index.Len()))
	IndexFiles.Set(float64(len(x.index.Files())))
}

func (x *Indexer) emit(ctx context.Context, event Event) {
	if x.handler == nil {
		return
	}

	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	err := x.handler.Event(ctx, event)
	if err != nil {
		x.logger.Debug("Progress handler failed", zap.String("action", string(event.Action)), zap.Error(err))
	}
}
