package workspace

import (
	"context"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"
	ignore "github.com/sabhiram/go-gitignore"
	"github.com/sourcegraph/ctxvfs"

	"github.com/sourcegraph/refsearch/langserver/internal/utils"
)

// sourceExt is the extension of the files a workspace serves.
const sourceExt = ".cs"

var skipDirs = map[string]struct{}{
	".git":         {},
	".hg":          {},
	".svn":         {},
	".vs":          {},
	".idea":        {},
	"bin":          {},
	"obj":          {},
	"node_modules": {},
	"packages":     {},
	"TestResults":  {},
}

// discover returns the paths, relative to root and slash separated, of the
// source files under root. It honours root/.gitignore plus the extra
// gitignore-style patterns in exclude.
func discover(ctx context.Context, fs ctxvfs.FileSystem, root string, exclude []string) ([]string, error) {
	lines := readIgnoreFile(ctx, fs, path.Join(root, ".gitignore"))
	gi := ignore.CompileIgnoreLines(append(lines, exclude...)...)

	var files []string
	var walk func(dir string, top bool) error
	walk = func(dir string, top bool) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		fis, err := fs.ReadDir(ctx, dir)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if top {
				return errors.Wrapf(err, "read workspace root %s", dir)
			}
			return nil // skip unreadable subdirectories
		}
		for _, fi := range fis {
			name := fi.Name()
			p := path.Join(dir, name)
			rel := utils.PathTrimPrefix(p, root)
			if fi.Mode()&os.ModeSymlink != 0 {
				continue
			}
			if fi.IsDir() {
				if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
					continue
				}
				if gi.MatchesPath(rel) || gi.MatchesPath(rel+"/") {
					continue
				}
				if err := walk(p, false); err != nil {
					return err
				}
				continue
			}
			if path.Ext(name) != sourceExt || gi.MatchesPath(rel) {
				continue
			}
			files = append(files, rel)
		}
		return nil
	}
	if err := walk(root, true); err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func readIgnoreFile(ctx context.Context, fs ctxvfs.FileSystem, name string) []string {
	data, err := ctxvfs.ReadFile(ctx, fs, name)
	if err != nil {
		return nil
	}
	return strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
}
