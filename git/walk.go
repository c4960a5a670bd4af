package git

import (
	"errors"
	"iter"
	"os"
	"path"
	"path/filepath"

	"github.com/go-git/go-git/v5/plumbing/filemode"

	"github.com/input-output-hk/catalyst-forge-libs/gitpublish/fs"
)

var errStopWalk = errors.New("walk stopped")

// WalkFiles yields a FileInfo for every regular file below srcDir in fsys.
// Directories and symlinks are skipped. Files are executable when fsys
// implements fs.ExecutableChecker and reports the bit.
//
// With destinations, each file is yielded once per destination with the
// destination prepended to its path; the file is read only once. Without
// destinations paths are relative to srcDir.
//
// The sequence is lazy and can be ranged over again. A walk error is yielded
// once and ends the sequence.
func WalkFiles(fsys fs.Filesystem, srcDir string, destinations ...string) iter.Seq2[FileInfo, error] {
	dests := destinations
	if len(dests) == 0 {
		dests = []string{""}
	}
	checker, _ := fsys.(fs.ExecutableChecker)

	return func(yield func(FileInfo, error) bool) {
		err := fsys.Walk(srcDir, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.Mode().IsRegular() {
				return nil
			}

			rel, err := filepath.Rel(srcDir, p)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)

			content, err := fsys.ReadFile(p)
			if err != nil {
				return err
			}
			mode := filemode.Regular
			if checker != nil {
				exec, err := checker.IsExecutable(p)
				if err != nil {
					return err
				}
				if exec {
					mode = filemode.Executable
				}
			}

			for _, dest := range dests {
				f := FileInfo{Path: path.Join(filepath.ToSlash(dest), rel), Content: content, Mode: mode}
				if !yield(f, nil) {
					return errStopWalk
				}
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStopWalk) {
			yield(FileInfo{}, newError("walk files", "", srcDir, err))
		}
	}
}
