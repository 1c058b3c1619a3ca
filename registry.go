package hexrec

import (
	"log"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/mod/semver"

	"hexrec/hexerr"
	"hexrec/sparseimage"
)

// Descriptor registers one format with the process-wide registry. Format
// packages call Register from their own init(), the dynamic-registry idiom
// spec.md §9 asks for ("registration happens at init, not at module import
// with side effects") and the one Go's own image/database drivers use.
type Descriptor struct {
	// Name is the format's canonical name, e.g. "ihex", "srec".
	Name string

	// Extensions are the filename extensions (lowercase, with leading
	// dot) recognized for this format, used by GuessFormatName.
	Extensions []string

	// FormatVersion is an optional "vX.Y.Z"-style semver string used only
	// to break ties when two descriptors claim the same extension (see
	// GuessFormatName); formats that don't version their wire format can
	// leave this empty.
	FormatVersion string

	// SniffLast reports that this format's Parse accepts essentially any
	// byte stream (e.g. raw binary) and so must never shadow a more
	// specific format during content sniffing (see Load). Descriptors
	// with SniffLast set are tried only after every other registered
	// format's parser has rejected the stream.
	SniffLast bool

	// New returns a fresh, empty RecordFile of this format.
	New func() RecordFile

	// FromMemory returns a RecordFile of this format seeded with mem
	// (Records() is derived from it lazily). Used by Convert and Merge
	// to build a destination file polymorphically.
	FromMemory func(mem *sparseimage.Image) RecordFile
}

var registry struct {
	sync.RWMutex
	byName      map[string]Descriptor
	byExtension map[string][]Descriptor
	order       []string // registration order, for deterministic content-sniffing
}

// Verbose, when true, makes the registry and facade log.Printf diagnostic
// detail (format registration and rejected content-sniff attempts).
// Warnings demoted by ParseOptions.IgnoreErrors are not logged.
var Verbose = false

func init() {
	registry.byName = make(map[string]Descriptor)
	registry.byExtension = make(map[string][]Descriptor)
}

// Register adds d to the registry. It panics if d.Name is already
// registered (a programming error: two format packages claiming the same
// name), matching the teacher's convention of panicking on malformed
// init-time registration (cf. RegisterAtExit's guard in the distri CLI).
func Register(d Descriptor) {
	registry.Lock()
	defer registry.Unlock()
	if _, ok := registry.byName[d.Name]; ok {
		panic("hexrec: format " + d.Name + " registered twice")
	}
	registry.byName[d.Name] = d
	registry.order = append(registry.order, d.Name)
	for _, ext := range d.Extensions {
		ext = strings.ToLower(ext)
		registry.byExtension[ext] = append(registry.byExtension[ext], d)
	}
	if Verbose {
		log.Printf("hexrec: registered format %q (extensions %v)", d.Name, d.Extensions)
	}
}

// Lookup returns the descriptor registered under name.
func Lookup(name string) (Descriptor, bool) {
	registry.RLock()
	defer registry.RUnlock()
	d, ok := registry.byName[name]
	return d, ok
}

// Descriptors returns all registered descriptors in registration order.
func Descriptors() []Descriptor {
	registry.RLock()
	defer registry.RUnlock()
	out := make([]Descriptor, 0, len(registry.order))
	for _, name := range registry.order {
		out = append(out, registry.byName[name])
	}
	return out
}

// sniffOrder returns Descriptors() with every SniffLast descriptor moved
// after every non-SniffLast one, each group keeping registration order --
// so a catch-all format like raw never shadows a more specific format
// during content sniffing.
func sniffOrder() []Descriptor {
	all := Descriptors()
	out := make([]Descriptor, 0, len(all))
	var last []Descriptor
	for _, d := range all {
		if d.SniffLast {
			last = append(last, d)
		} else {
			out = append(out, d)
		}
	}
	return append(out, last...)
}

// GuessFormatName inspects path's extension and returns the registered
// format name it maps to. If no format claims the extension it fails with
// *hexerr.FormatError. If more than one does, it returns the candidate with
// the highest FormatVersion (compared with semver) when the two leading
// candidates both set FormatVersion to different versions; otherwise it
// fails with *hexerr.FormatError, and callers wanting content-sniffing on
// ambiguity use Load with an empty format name instead.
func GuessFormatName(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	registry.RLock()
	cands := registry.byExtension[ext]
	registry.RUnlock()
	switch len(cands) {
	case 0:
		return "", &hexerr.FormatError{Name: ext, Reason: "no registered format claims this extension"}
	case 1:
		return cands[0].Name, nil
	default:
		// More than one format claims this extension. If their
		// FormatVersion strings form a strict order, the newest wins
		// deterministically; otherwise it's a genuine ambiguity and
		// callers should fall back to content sniffing via Load.
		sorted := append([]Descriptor(nil), cands...)
		sort.Slice(sorted, func(i, j int) bool {
			vi, vj := normalizeVersion(sorted[i].FormatVersion), normalizeVersion(sorted[j].FormatVersion)
			if vi != "" && vj != "" && vi != vj {
				return semver.Compare(vi, vj) > 0
			}
			return sorted[i].Name < sorted[j].Name
		})
		if sorted[0].FormatVersion != "" && sorted[1].FormatVersion != "" &&
			normalizeVersion(sorted[0].FormatVersion) != normalizeVersion(sorted[1].FormatVersion) {
			return sorted[0].Name, nil
		}
		names := make([]string, len(cands))
		for i, c := range cands {
			names[i] = c.Name
		}
		sort.Strings(names)
		return "", &hexerr.FormatError{Name: ext, Reason: "ambiguous extension, candidates: " + strings.Join(names, ", ")}
	}
}

// normalizeVersion prefixes v with "v" if needed, so callers may register
// FormatVersion as "1.0.0" or "v1.0.0" and semver.Compare still accepts it.
// Returns "" unchanged (no version set).
func normalizeVersion(v string) string {
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return v
}
