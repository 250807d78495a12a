// Package loadpath maintains the function search path: an ordered list of
// directories, each indexed for plain function files, @class method
// directories, +package directories and private directories.
package loadpath

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/funvibe/symtab/internal/config"
	"github.com/funvibe/symtab/internal/utils"
)

// dirInfo is the index of one directory on the path, or of a package
// directory below one.
type dirInfo struct {
	dir      string
	files    map[string]string            // function name -> file
	methods  map[string]map[string]string // class -> method name -> file
	packages map[string]*dirInfo
	// private indexes dir/private and @class/private, keyed by the
	// directory the private directory belongs to.
	private map[string]map[string]string
	// stamps records the modification time of every directory scanned.
	stamps map[string]time.Time
}

func newDirInfo(dir string) *dirInfo {
	return &dirInfo{
		dir:      dir,
		files:    make(map[string]string),
		methods:  make(map[string]map[string]string),
		packages: make(map[string]*dirInfo),
		private:  make(map[string]map[string]string),
		stamps:   make(map[string]time.Time),
	}
}

// LoadPath resolves function names to files. It is owned by one goroutine;
// only the dirty flag may be touched from elsewhere.
type LoadPath struct {
	dirs   []string
	infos  map[string]*dirInfo
	logger *zap.Logger
	dirty  atomic.Bool
	scans  atomic.Int64
}

// New returns a load path over dirs, highest precedence first. Nothing is
// scanned until the first Update.
func New(dirs []string, logger *zap.Logger) *LoadPath {
	if logger == nil {
		logger = zap.NewNop()
	}
	lp := &LoadPath{
		infos:  make(map[string]*dirInfo),
		logger: logger.Named("loadpath"),
	}
	lp.SetPath(dirs)
	return lp
}

// Dirs returns the path in precedence order.
func (lp *LoadPath) Dirs() []string {
	return append([]string(nil), lp.dirs...)
}

// SetPath replaces the path. Duplicate entries keep their first position.
func (lp *LoadPath) SetPath(dirs []string) {
	lp.dirs = lp.dirs[:0]
	seen := make(map[string]bool)
	for _, d := range dirs {
		d = filepath.Clean(d)
		if !seen[d] {
			seen[d] = true
			lp.dirs = append(lp.dirs, d)
		}
	}
	lp.MarkDirty()
}

// Add puts dir at the front of the path, or at the end when atEnd is set.
// A directory already on the path is moved.
func (lp *LoadPath) Add(dir string, atEnd bool) {
	dir = filepath.Clean(dir)
	rest := make([]string, 0, len(lp.dirs)+1)
	for _, d := range lp.dirs {
		if d != dir {
			rest = append(rest, d)
		}
	}
	if atEnd {
		lp.SetPath(append(rest, dir))
	} else {
		lp.SetPath(append([]string{dir}, rest...))
	}
}

// Remove takes dir off the path and reports whether it was there.
func (lp *LoadPath) Remove(dir string) bool {
	dir = filepath.Clean(dir)
	for i, d := range lp.dirs {
		if d == dir {
			lp.SetPath(append(append([]string(nil), lp.dirs[:i]...), lp.dirs[i+1:]...))
			delete(lp.infos, dir)
			return true
		}
	}
	return false
}

// MarkDirty forces the next Update to rescan every directory. It is safe
// to call from any goroutine.
func (lp *LoadPath) MarkDirty() { lp.dirty.Store(true) }

// Dirty reports whether a full rescan is pending.
func (lp *LoadPath) Dirty() bool { return lp.dirty.Load() }

// Scans counts directory scans, for tests and diagnostics.
func (lp *LoadPath) Scans() int64 { return lp.scans.Load() }

// Update rescans the directories whose contents may have changed: all of
// them when the path is dirty, otherwise those whose modification times
// moved. Directories are scanned in parallel.
func (lp *LoadPath) Update() error {
	force := lp.dirty.Swap(false)

	var todo []string
	for _, d := range lp.dirs {
		if info, ok := lp.infos[d]; force || !ok || info.stale() {
			todo = append(todo, d)
		}
	}
	if len(todo) == 0 {
		return nil
	}

	results := make([]*dirInfo, len(todo))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, d := range todo {
		g.Go(func() error {
			info, err := lp.scan(d)
			if err != nil {
				return err
			}
			results[i] = info
			return nil
		})
	}
	err := g.Wait()

	for i, d := range todo {
		if results[i] != nil {
			lp.infos[d] = results[i]
		}
	}
	for d := range lp.infos {
		if !lp.onPath(d) {
			delete(lp.infos, d)
		}
	}
	if err != nil {
		lp.dirty.Store(true)
		return fmt.Errorf("updating load path: %w", err)
	}
	lp.logger.Debug("load path updated", zap.Int("scanned", len(todo)), zap.Bool("forced", force))
	return nil
}

func (lp *LoadPath) onPath(dir string) bool {
	for _, d := range lp.dirs {
		if d == dir {
			return true
		}
	}
	return false
}

// scan indexes one path directory. A directory that does not exist is
// indexed as empty with a warning.
func (lp *LoadPath) scan(dir string) (*dirInfo, error) {
	lp.scans.Add(1)
	info := newDirInfo(dir)
	if err := info.scanDir(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			lp.logger.Warn("load path directory does not exist", zap.String("dir", dir))
			return info, nil
		}
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	return info, nil
}

func (info *dirInfo) stamp(dir string) error {
	fi, err := os.Stat(dir)
	if err != nil {
		return err
	}
	info.stamps[dir] = fi.ModTime()
	return nil
}

// stale reports whether any directory this index was built from changed.
func (info *dirInfo) stale() bool {
	for dir, t := range info.stamps {
		fi, err := os.Stat(dir)
		if err != nil || !fi.ModTime().Equal(t) {
			return true
		}
	}
	return len(info.stamps) == 0
}

func (info *dirInfo) scanDir(dir string) error {
	if err := info.stamp(dir); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if !e.IsDir() {
			addFunctionFile(info.files, path)
			continue
		}
		if class, ok := utils.ClassFromDir(path); ok {
			if err := info.scanClassDir(class, path); err != nil {
				return err
			}
			continue
		}
		if pkg, ok := utils.PackageFromDir(path); ok {
			sub := newDirInfo(path)
			if err := sub.scanDir(path); err != nil {
				return err
			}
			// Stamps are checked from the root index only.
			for d, t := range sub.stamps {
				info.stamps[d] = t
			}
			info.packages[pkg] = sub
			continue
		}
		if utils.IsPrivateDir(path) {
			if err := info.scanPrivateDir(dir, path); err != nil {
				return err
			}
		}
	}
	return nil
}

func (info *dirInfo) scanClassDir(class, dir string) error {
	if err := info.stamp(dir); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	methods := info.methods[class]
	if methods == nil {
		methods = make(map[string]string)
		info.methods[class] = methods
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.IsDir() {
			if utils.IsPrivateDir(path) {
				if err := info.scanPrivateDir(dir, path); err != nil {
					return err
				}
			}
			continue
		}
		addFunctionFile(methods, path)
	}
	return nil
}

func (info *dirInfo) scanPrivateDir(owner, dir string) error {
	if err := info.stamp(dir); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	fns := make(map[string]string)
	for _, e := range entries {
		if !e.IsDir() {
			addFunctionFile(fns, filepath.Join(dir, e.Name()))
		}
	}
	info.private[owner] = fns
	return nil
}

// addFunctionFile records path under its function name unless a file
// with a preferred extension is already there.
func addFunctionFile(m map[string]string, path string) {
	if !config.HasFunctionFileExt(path) {
		return
	}
	name := utils.FunctionName(path)
	if prev, ok := m[name]; ok && extRank(prev) <= extRank(path) {
		return
	}
	m[name] = path
}

func extRank(path string) int {
	ext := filepath.Ext(path)
	for i, e := range config.FunctionFileExtensions {
		if e == ext {
			return i
		}
	}
	return len(config.FunctionFileExtensions)
}

// lookupPackage walks the +pkg directories named by pkg.
func (info *dirInfo) lookupPackage(pkg string) *dirInfo {
	for _, seg := range utils.PackageSegments(pkg) {
		if info = info.packages[seg]; info == nil {
			return nil
		}
	}
	return info
}

// FindFcn returns the first file on the path defining name in package
// pkg, and the directory holding it.
func (lp *LoadPath) FindFcn(name, pkg string) (file, dir string) {
	for _, d := range lp.dirs {
		info := lp.infos[d]
		if info == nil {
			continue
		}
		if info = info.lookupPackage(pkg); info == nil {
			continue
		}
		if f, ok := info.files[name]; ok {
			return f, filepath.Dir(f)
		}
	}
	return "", ""
}

// FindMethod returns the first @class/name file on the path. The returned
// directory is the @class directory.
func (lp *LoadPath) FindMethod(class, name, pkg string) (file, dir string) {
	for _, d := range lp.dirs {
		info := lp.infos[d]
		if info == nil {
			continue
		}
		if info = info.lookupPackage(pkg); info == nil {
			continue
		}
		if f, ok := info.methods[class][name]; ok {
			return f, filepath.Dir(f)
		}
	}
	return "", ""
}

// FindPrivateFcn returns the file defining name in the private directory
// belonging to dir.
func (lp *LoadPath) FindPrivateFcn(dir, name string) string {
	dir = filepath.Clean(dir)
	for _, d := range lp.dirs {
		info := lp.infos[d]
		if info == nil {
			continue
		}
		if f := info.findPrivate(dir, name); f != "" {
			return f
		}
	}
	return ""
}

func (info *dirInfo) findPrivate(dir, name string) string {
	if fns, ok := info.private[dir]; ok {
		return fns[name]
	}
	for _, sub := range info.packages {
		if f := sub.findPrivate(dir, name); f != "" {
			return f
		}
	}
	return ""
}

// Methods lists the method names of class found anywhere on the path.
func (lp *LoadPath) Methods(class string) []string {
	seen := make(map[string]bool)
	for _, d := range lp.dirs {
		if info := lp.infos[d]; info != nil {
			for name := range info.methods[class] {
				seen[name] = true
			}
		}
	}
	return sortedKeys(seen)
}

// Functions lists the plain function names defined in dir.
func (lp *LoadPath) Functions(dir string) []string {
	info := lp.infos[filepath.Clean(dir)]
	if info == nil {
		return nil
	}
	seen := make(map[string]bool, len(info.files))
	for name := range info.files {
		seen[name] = true
	}
	return sortedKeys(seen)
}

// WatchDirs returns every directory the current index was built from.
func (lp *LoadPath) WatchDirs() []string {
	seen := make(map[string]bool)
	for _, d := range lp.dirs {
		seen[d] = true
		if info := lp.infos[d]; info != nil {
			for sub := range info.stamps {
				seen[sub] = true
			}
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
