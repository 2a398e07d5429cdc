package volume

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/styl-labs/styld/internal/xfs"
)

const helpText = `Commands:
  ls [-l] [path]      list entries
  cd [path]           change directory
  pwd                 print working directory
  get <remote> <local>  download an object
  put <local> <remote>  upload a file
  rm <path>           remove an object
  stat <path>         show object details
  help                show this help
  exit                leave the shell
`

// Shell is an interactive session against a volume. Commands are read
// from in and results written to out.
type Shell struct {
	store *Store
	in    *bufio.Scanner
	out   io.Writer
	cwd   string
}

// NewShell creates a shell over the given volume.
func NewShell(store *Store, in io.Reader, out io.Writer) *Shell {
	return &Shell{
		store: store,
		in:    bufio.NewScanner(in),
		out:   out,
		cwd:   "/",
	}
}

// Run evaluates commands until exit, EOF or context cancellation.
func (sh *Shell) Run(ctx context.Context) error {
	fmt.Fprintf(sh.out, "Connected to volume %s (%s). Type help for commands.\n",
		sh.store.Name(), sh.store.BaseURL())

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprintf(sh.out, "%s:%s> ", sh.store.Name(), sh.cwd)
		if !sh.in.Scan() {
			fmt.Fprintln(sh.out)
			return sh.in.Err()
		}

		fields := strings.Fields(sh.in.Text())
		if len(fields) == 0 {
			continue
		}

		if fields[0] == "exit" || fields[0] == "quit" {
			return nil
		}

		if err := sh.eval(ctx, fields[0], fields[1:]); err != nil {
			fmt.Fprintf(sh.out, "error: %v\n", err)
		}
	}
}

func (sh *Shell) eval(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "ls":
		return sh.ls(ctx, args)
	case "cd":
		return sh.cd(ctx, args)
	case "pwd":
		fmt.Fprintln(sh.out, sh.cwd)
		return nil
	case "get":
		if len(args) != 2 {
			return fmt.Errorf("usage: get <remote> <local>")
		}
		return sh.store.Get(ctx, sh.resolve(args[0]), args[1])
	case "put":
		if len(args) != 2 {
			return fmt.Errorf("usage: put <local> <remote>")
		}
		return sh.store.Put(ctx, args[0], sh.resolve(args[1]))
	case "rm":
		if len(args) != 1 {
			return fmt.Errorf("usage: rm <path>")
		}
		return sh.store.Remove(ctx, sh.resolve(args[0]))
	case "stat":
		if len(args) != 1 {
			return fmt.Errorf("usage: stat <path>")
		}
		return sh.stat(ctx, args[0])
	case "help":
		fmt.Fprint(sh.out, helpText)
		return nil
	default:
		return fmt.Errorf("unknown command %q, type help", cmd)
	}
}

func (sh *Shell) ls(ctx context.Context, args []string) error {
	long := false
	target := sh.cwd
	for _, a := range args {
		if a == "-l" {
			long = true
			continue
		}
		target = sh.resolve(a)
	}

	entries, err := sh.store.List(ctx, target)
	if err != nil {
		return err
	}

	if long {
		fmt.Fprint(sh.out, FormatLong(entries))
		return nil
	}

	for _, e := range entries {
		name := e.Name
		if e.Dir {
			name += "/"
		}
		fmt.Fprintln(sh.out, name)
	}

	return nil
}

func (sh *Shell) cd(ctx context.Context, args []string) error {
	target := "/"
	if len(args) > 0 {
		target = sh.resolve(args[0])
	}

	if target != "/" {
		entry, err := sh.store.Stat(ctx, target)
		if err != nil {
			return err
		}
		if !entry.Dir {
			return fmt.Errorf("%s is not a directory", target)
		}
	}

	sh.cwd = target
	return nil
}

func (sh *Shell) stat(ctx context.Context, arg string) error {
	entry, err := sh.store.Stat(ctx, sh.resolve(arg))
	if err != nil {
		return err
	}

	kind, size := "file", xfs.HumanSize(entry.Size)
	if entry.Dir {
		kind, size = "directory", "-"
	}

	fmt.Fprintf(sh.out, "%s  %s  %s  modified %s\n",
		entry.Name, kind, size, entry.ModTime.Format(time.RFC3339))
	return nil
}

// resolve maps a possibly relative path onto the working directory.
func (sh *Shell) resolve(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = path.Join(sh.cwd, p)
	}
	return path.Clean(p)
}
