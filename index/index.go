// Package index is the global, cross-file symbol store: definitions by FQN and
// the references that point at them, with per-file ownership so a file's
// contribution can be replaced atomically when it is re-indexed.
package index

import (
	"cmp"
	"slices"
	"strings"
	"sync"

	"github.com/rlch/phpintel/analysis"
)

// Index maps FQNs to definitions and references. It is safe for concurrent use.
//
// When several files define the same FQN the most recent new definition wins;
// removing that file makes the previous definition visible again. Re-indexing
// a file keeps its definitions where they were, so re-indexing unchanged
// content never changes which definition is visible.
type Index struct {
	mu sync.RWMutex

	// defs holds every definition of an FQN in write order. The last one is visible.
	defs map[string][]analysis.Definition

	// refs holds the references to an FQN.
	refs map[string][]analysis.Reference

	// files records which FQNs each file contributed to.
	files map[string]*fileRecord
}

type fileRecord struct {
	defs map[string]struct{}
	refs map[string]struct{}
}

func newFileRecord() *fileRecord {
	return &fileRecord{
		defs: make(map[string]struct{}),
		refs: make(map[string]struct{}),
	}
}

// New returns an empty index.
func New() *Index {
	return &Index{
		defs:  make(map[string][]analysis.Definition),
		refs:  make(map[string][]analysis.Reference),
		files: make(map[string]*fileRecord),
	}
}

// Definition returns the visible definition of an FQN.
func (x *Index) Definition(fqn string) (analysis.Definition, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	defs := x.defs[fqn]
	if len(defs) == 0 {
		return analysis.Definition{}, false
	}

	return defs[len(defs)-1].Detached(), true
}

// References returns every reference to an FQN, ordered by file and position.
func (x *Index) References(fqn string) []analysis.Reference {
	x.mu.RLock()
	defer x.mu.RUnlock()

	return slices.Clone(x.refs[fqn])
}

// Definitions returns the definitions a file contributed, in source order.
func (x *Index) Definitions(uri string) []analysis.Definition {
	x.mu.RLock()
	defer x.mu.RUnlock()

	rec := x.files[uri]
	if rec == nil {
		return nil
	}

	var out []analysis.Definition

	for fqn := range rec.defs {
		for _, d := range x.defs[fqn] {
			if d.Location.URI == uri {
				out = append(out, d.Detached())
			}
		}
	}

	slices.SortFunc(out, func(a, b analysis.Definition) int {
		return cmp.Or(
			a.Location.Span.Start.Offset-b.Location.Span.Start.Offset,
			strings.Compare(a.FQN, b.FQN),
		)
	})

	return out
}

// Prefix returns the visible definitions whose FQN starts with prefix, sorted by FQN.
func (x *Index) Prefix(prefix string) []analysis.Definition {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var out []analysis.Definition

	for fqn, defs := range x.defs {
		if strings.HasPrefix(fqn, prefix) && len(defs) > 0 {
			out = append(out, defs[len(defs)-1].Detached())
		}
	}

	sortByFQN(out)

	return out
}

// Search returns up to limit visible definitions whose short name contains
// query, case-insensitively. Variables are never indexed, so never returned.
// Exact name matches come first. A limit of 0 means no limit.
func (x *Index) Search(query string, limit int) []analysis.Definition {
	query = strings.ToLower(query)

	x.mu.RLock()

	var out []analysis.Definition

	for _, defs := range x.defs {
		if len(defs) == 0 {
			continue
		}

		d := defs[len(defs)-1]
		if strings.Contains(strings.ToLower(d.Name()), query) {
			out = append(out, d.Detached())
		}
	}

	x.mu.RUnlock()

	slices.SortFunc(out, func(a, b analysis.Definition) int {
		ea := strings.EqualFold(a.Name(), query)
		eb := strings.EqualFold(b.Name(), query)

		switch {
		case ea && !eb:
			return -1
		case eb && !ea:
			return 1
		default:
			return strings.Compare(a.FQN, b.FQN)
		}
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out
}

// Files returns the URIs of every indexed file, sorted.
func (x *Index) Files() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make([]string, 0, len(x.files))
	for uri := range x.files {
		out = append(out, uri)
	}

	slices.Sort(out)

	return out
}

// Len returns the number of FQNs with a visible definition.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()

	return len(x.defs)
}

// UpsertDefinition records def under fqn, owned by def.Location.URI. It
// replaces a previous definition of the same FQN from the same file.
func (x *Index) UpsertDefinition(fqn string, def analysis.Definition) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.upsertDefinition(fqn, def)
}

// AddReference records a reference to fqn, owned by ref.URI. Unresolved
// references (empty fqn) are not stored.
func (x *Index) AddReference(fqn string, ref analysis.Reference) {
	if fqn == "" {
		return
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	x.addReference(fqn, ref)
}

// RemoveFile drops every definition and reference the file contributed.
func (x *Index) RemoveFile(uri string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.removeDefinitions(uri)
	x.removeReferences(uri)
	delete(x.files, uri)
}

// ReplaceFile swaps a file's whole contribution under a single write lock.
func (x *Index) ReplaceFile(uri string, defs []*analysis.Definition, refs []*analysis.Reference) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.replaceDefinitions(uri, defs)
	x.removeReferences(uri)
	x.putReferences(uri, refs)
}

// ReplaceDefinitions swaps only the definitions a file contributed.
func (x *Index) ReplaceDefinitions(uri string, defs []*analysis.Definition) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.replaceDefinitions(uri, defs)
}

// ReplaceReferences swaps only the references a file contributed.
func (x *Index) ReplaceReferences(uri string, refs []*analysis.Reference) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.removeReferences(uri)
	x.putReferences(uri, refs)
}

// Snapshot is a deterministic copy of the visible index state.
type Snapshot struct {
	Definitions map[string]analysis.Definition
	References  map[string][]analysis.Reference
}

// Snapshot copies the visible definitions and all references.
func (x *Index) Snapshot() Snapshot {
	x.mu.RLock()
	defer x.mu.RUnlock()

	snap := Snapshot{
		Definitions: make(map[string]analysis.Definition, len(x.defs)),
		References:  make(map[string][]analysis.Reference, len(x.refs)),
	}

	for fqn, defs := range x.defs {
		snap.Definitions[fqn] = defs[len(defs)-1].Detached()
	}

	for fqn, refs := range x.refs {
		snap.References[fqn] = slices.Clone(refs)
	}

	return snap
}

// ----------------------------------------------------------------------------
// Internals. Callers hold x.mu for writing.
// ----------------------------------------------------------------------------

func (x *Index) record(uri string) *fileRecord {
	rec := x.files[uri]
	if rec == nil {
		rec = newFileRecord()
		x.files[uri] = rec
	}

	return rec
}

func (x *Index) upsertDefinition(fqn string, def analysis.Definition) {
	def = def.Detached()
	def.FQN = fqn
	uri := def.Location.URI

	owned := func(d analysis.Definition) bool { return d.Location.URI == uri }

	defs := x.defs[fqn]
	if at := slices.IndexFunc(defs, owned); at >= 0 {
		x.defs[fqn] = slices.Insert(slices.DeleteFunc(defs, owned), at, def)
	} else {
		x.defs[fqn] = append(defs, def)
	}

	x.record(uri).defs[fqn] = struct{}{}
}

func (x *Index) addReference(fqn string, ref analysis.Reference) {
	ref.Node = nil
	ref.Target = fqn

	refs := append(x.refs[fqn], ref)
	slices.SortStableFunc(refs, compareReferences)
	x.refs[fqn] = refs

	x.record(ref.URI).refs[fqn] = struct{}{}
}

// replaceDefinitions swaps a file's definitions. An FQN the file already
// defined keeps its place in the stack; new FQNs go on top.
func (x *Index) replaceDefinitions(uri string, defs []*analysis.Definition) {
	fresh := make(map[string][]analysis.Definition)

	var order []string

	for _, d := range defs {
		if d == nil || d.FQN == "" {
			continue
		}

		def := d.Detached()
		def.Location.URI = uri

		if _, ok := fresh[d.FQN]; !ok {
			order = append(order, d.FQN)
		}

		fresh[d.FQN] = append(fresh[d.FQN], def)
	}

	owned := func(d analysis.Definition) bool { return d.Location.URI == uri }
	rec := x.record(uri)

	for fqn := range rec.defs {
		stack := x.defs[fqn]
		at := slices.IndexFunc(stack, owned)
		stack = slices.DeleteFunc(stack, owned)

		if group, ok := fresh[fqn]; ok && at >= 0 {
			stack = slices.Insert(stack, at, group...)
			delete(fresh, fqn)
		}

		if len(stack) == 0 {
			delete(x.defs, fqn)
		} else {
			x.defs[fqn] = stack
		}
	}

	clear(rec.defs)

	for _, fqn := range order {
		rec.defs[fqn] = struct{}{}

		if group, ok := fresh[fqn]; ok {
			x.defs[fqn] = append(x.defs[fqn], group...)
		}
	}
}

func (x *Index) putReferences(uri string, refs []*analysis.Reference) {
	touched := make(map[string]struct{})

	for _, r := range refs {
		if r == nil || r.Target == "" {
			continue
		}

		ref := *r
		ref.Node = nil
		ref.URI = uri
		x.refs[r.Target] = append(x.refs[r.Target], ref)
		touched[r.Target] = struct{}{}
	}

	rec := x.record(uri)

	for fqn := range touched {
		slices.SortStableFunc(x.refs[fqn], compareReferences)
		rec.refs[fqn] = struct{}{}
	}
}

func (x *Index) removeDefinitions(uri string) {
	rec := x.files[uri]
	if rec == nil {
		return
	}

	for fqn := range rec.defs {
		defs := slices.DeleteFunc(x.defs[fqn], func(d analysis.Definition) bool {
			return d.Location.URI == uri
		})

		if len(defs) == 0 {
			delete(x.defs, fqn)
		} else {
			x.defs[fqn] = defs
		}
	}

	clear(rec.defs)
}

func (x *Index) removeReferences(uri string) {
	rec := x.files[uri]
	if rec == nil {
		return
	}

	for fqn := range rec.refs {
		refs := slices.DeleteFunc(x.refs[fqn], func(r analysis.Reference) bool {
			return r.URI == uri
		})

		if len(refs) == 0 {
			delete(x.refs, fqn)
		} else {
			x.refs[fqn] = refs
		}
	}

	clear(rec.refs)
}

func compareReferences(a, b analysis.Reference) int {
	return cmp.Or(
		strings.Compare(a.URI, b.URI),
		a.Span.Start.Offset-b.Span.Start.Offset,
	)
}

func sortByFQN(defs []analysis.Definition) {
	slices.SortFunc(defs, func(a, b analysis.Definition) int {
		return strings.Compare(a.FQN, b.FQN)
	})
}
