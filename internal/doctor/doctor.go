package doctor

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ocrd-go/resmgr/internal/branding"
	"github.com/ocrd-go/resmgr/internal/config"
	"github.com/ocrd-go/resmgr/internal/discovery"
	"github.com/ocrd-go/resmgr/internal/location"
	"github.com/ocrd-go/resmgr/internal/manifest"
	"github.com/ocrd-go/resmgr/internal/registry"
)

// Checker runs the checks and writes one line per finding to its writer.
// With Fix set it repairs what it safely can: missing directories and
// leftover temporary files from an interrupted save.
type Checker struct {
	Settings config.Settings
	Scanner  *discovery.Scanner
	Fix      bool

	w        io.Writer
	problems int
}

// Run writes the report to w and returns the number of problems left
// unfixed.
func (c *Checker) Run(ctx context.Context, w io.Writer) (int, error) {
	c.w = w
	c.problems = 0

	fmt.Fprintln(w, "Locations:")
	c.checkDir(c.Settings.DataResourcesDir(), true)
	c.checkDir(c.Settings.SystemDir, false)

	fmt.Fprintln(w, "User list:")
	c.checkUserList()

	fmt.Fprintln(w, "Processors:")
	if err := c.checkProcessors(ctx); err != nil {
		return c.problems, err
	}
	return c.problems, nil
}

func (c *Checker) line(tag, format string, args ...any) {
	fmt.Fprintf(c.w, "  [%s] %s\n", tag, fmt.Sprintf(format, args...))
}

// checkDir reports whether path exists and is writable. Only required
// directories count as problems or get created.
func (c *Checker) checkDir(path string, required bool) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if !required {
			c.line("INFO", "%s does not exist", path)
			return
		}
		c.line("MISS", "%s does not exist", path)
		if !c.Fix {
			c.problems++
			return
		}
		if err := os.MkdirAll(path, location.DirPermNormal); err != nil {
			c.line("FAIL", "could not create %s: %v", path, err)
			c.problems++
			return
		}
		c.line("FIX ", "created %s", path)
		return
	}
	if err != nil {
		c.line("FAIL", "%s: %v", path, err)
		c.problems++
		return
	}
	if !info.IsDir() {
		c.line("FAIL", "%s exists but is not a directory", path)
		c.problems++
		return
	}
	if !writable(path) {
		if required {
			c.line("WARN", "%s is not writable", path)
			c.problems++
		} else {
			c.line("INFO", "%s is not writable", path)
		}
		return
	}
	c.line(" OK ", "%s", path)
}

func (c *Checker) checkUserList() {
	path := c.Settings.UserListPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		c.line("INFO", "%s does not exist yet; it is created on first use", path)
	} else {
		result, err := manifest.ValidateListFile(path)
		switch {
		case err != nil:
			c.line("FAIL", "%s: %v", path, err)
			c.problems++
		case !result.Valid:
			c.line("FAIL", "%s does not match the resource list schema", path)
			for _, msg := range result.Messages() {
				fmt.Fprintf(c.w, "         %s\n", msg)
			}
			c.problems++
		default:
			c.line(" OK ", "%s", path)
		}
	}

	tmp := path + registry.TempSuffix
	if _, err := os.Stat(tmp); err == nil {
		c.line("WARN", "%s left over from an interrupted save", tmp)
		if !c.Fix {
			c.problems++
			return
		}
		if err := os.Remove(tmp); err != nil {
			c.line("FAIL", "could not remove %s: %v", tmp, err)
			c.problems++
			return
		}
		c.line("FIX ", "removed %s", tmp)
	}
}

func (c *Checker) checkProcessors(ctx context.Context) error {
	found, err := c.Scanner.Scan(ctx, branding.ToolPrefix()+"*")
	if err != nil {
		return fmt.Errorf("scanning for processors: %w", err)
	}
	if len(found) == 0 {
		c.line("INFO", "no processors found on the search path")
		return nil
	}
	for _, f := range found {
		n := 0
		if f.Description != nil {
			n = len(f.Description.Resources)
		}
		c.line(" OK ", "%s (%s, %d resources declared)", f.Executable, f.Path, n)
	}
	return nil
}

func writable(dir string) bool {
	f, err := os.CreateTemp(dir, ".resmgr-doctor-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	_ = os.Remove(name)
	return true
}
