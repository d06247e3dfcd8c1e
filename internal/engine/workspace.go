package engine

// workspace.go - Working directory lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WorkDirPrefix starts the name of every working directory.
const WorkDirPrefix = "SQLite_"

// prepareWorkspace creates the working directory and the working store,
// copied from the template when one is configured.
func (e *Engine) prepareWorkspace(ctx context.Context, p *Process) error {
	dir := filepath.Join(e.tempDir, WorkDirPrefix+p.Timestamp)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return &IOError{Op: "create working directory", Path: dir, Err: err}
	}
	p.WorkDir = dir
	p.Logger.Debug("working directory created", "path", dir)

	name, err := p.storeFileName()
	if err != nil {
		return err
	}
	p.StorePath = filepath.Join(dir, name)

	if tmpl := p.Config.Base.TemplateName; tmpl != "" {
		p.Logger.Debug("copying template", "template", tmpl, "store", p.StorePath)
		if err := copyFile(tmpl, p.StorePath); err != nil {
			return &IOError{Op: "copy template", Path: tmpl, Err: err}
		}
	} else {
		p.Warn("", "", "no SQLite template configured, starting from an empty store")
	}
	p.emit(0.5, "working store ready")

	if err := p.Checkpoint(ctx); err != nil {
		return err
	}

	st, err := e.openStore(p.StorePath, p.Logger)
	if err != nil {
		return fmt.Errorf("failed to open working store: %w", err)
	}
	p.Store = st
	return nil
}

// storeFileName returns the file name of the working store: the expanded
// kept_db_name, or Database_<timestamp>.sqlite.
func (p *Process) storeFileName() (string, error) {
	if tmpl := p.Config.Base.KeptDBName; tmpl != "" {
		name, err := p.Expand(tmpl)
		if err != nil {
			return "", fmt.Errorf("kept_db_name: %w", err)
		}
		return filepath.Base(name), nil
	}
	return "Database_" + p.Timestamp + ".sqlite", nil
}

// stageSources copies CSV sources into the working directory. Single files
// go to 000_CSV/NNN_<name>, directories to NNN_<dir>, numbered separately
// in declared order. Plans are updated to read the copies.
func stageSources(ctx context.Context, p *Process, plans []ImportPlan) error {
	var fileNum, dirNum int
	for i := range plans {
		plan := &plans[i]
		if plan.Spreadsheet != nil || len(plan.Files) == 0 {
			continue
		}
		if err := p.Checkpoint(ctx); err != nil {
			return err
		}

		if plan.Files[0].Root == "" {
			fileNum++
			f := &plan.Files[0]
			dst := filepath.Join(p.WorkDir, "000_CSV", fmt.Sprintf("%03d_%s", fileNum, f.Name))
			if err := copyFile(f.Path, dst); err != nil {
				return &IOError{Op: "copy source", Path: f.Path, Err: err}
			}
			f.Path = dst
			continue
		}

		dirNum++
		root := plan.Files[0].Root
		destRoot := filepath.Join(p.WorkDir, fmt.Sprintf("%03d_%s", dirNum, filepath.Base(root)))
		for j := range plan.Files {
			f := &plan.Files[j]
			rel, err := filepath.Rel(f.Root, f.Path)
			if err != nil {
				rel = f.Name
			}
			dst := filepath.Join(destRoot, rel)
			if err := copyFile(f.Path, dst); err != nil {
				return &IOError{Op: "copy source", Path: f.Path, Err: err}
			}
			f.Path, f.Root = dst, destRoot
		}
	}
	return nil
}

// retain copies the exports, and the store when keep_db is set, to the
// destination.
func (e *Engine) retain(p *Process) error {
	if err := os.MkdirAll(e.destination, 0o750); err != nil {
		return &IOError{Op: "create destination", Path: e.destination, Err: err}
	}

	for i := range p.Report.Exports {
		exp := &p.Report.Exports[i]
		dst, err := e.retainFile(p, exp.Path)
		if err != nil {
			return err
		}
		if dst != "" {
			exp.Path = dst
		}
	}

	if p.Config.Base.KeepDB {
		if _, err := e.retainFile(p, p.StorePath); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) retainFile(p *Process, src string) (string, error) {
	if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
		p.Warn("", filepath.Base(src), "file to retain not found")
		return "", nil
	}
	dst := filepath.Join(e.destination, filepath.Base(src))
	if err := copyFile(src, dst); err != nil {
		return "", &IOError{Op: "retain", Path: src, Err: err}
	}
	p.Report.Retained = append(p.Report.Retained, dst)
	p.Logger.Info("file retained", "path", dst)
	return dst, nil
}

// cleanup removes the working directory. Failures are logged only.
func (p *Process) cleanup() {
	if p.WorkDir == "" {
		return
	}
	if err := os.RemoveAll(p.WorkDir); err != nil {
		p.Logger.Warn("failed to remove working directory", "path", p.WorkDir, "error", err)
		return
	}
	p.Logger.Debug("working directory removed", "path", p.WorkDir)
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src) //nolint:gosec // paths come from the run configuration
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	out, err := os.Create(dst) //nolint:gosec // destination chosen by the run
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}
