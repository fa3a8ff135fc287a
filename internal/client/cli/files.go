package cli

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newLsCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ls [path]",
		Short: "List a remote directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireAuth(); err != nil {
				return err
			}
			dir := ""
			if len(args) > 0 {
				dir = args[0]
			}

			l, err := a.client.List(cmd.Context(), dir)
			if err != nil {
				return a.forgetIfUnauthorized(err)
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			for _, d := range l.Directories {
				fmt.Fprintf(tw, "%s/\t-\t%s\n", d.Name, formatTime(d.LastModified))
			}
			for _, f := range l.Files {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Name, formatSize(f.Size), formatTime(f.LastModified))
			}
			return tw.Flush()
		},
	}
}

func newGetCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "get <remote> [local]",
		Short: "Download a file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireAuth(); err != nil {
				return err
			}
			remote := args[0]
			local := path.Base(remote)
			if len(args) > 1 {
				local = args[1]
			}
			if fi, err := os.Stat(local); err == nil && fi.IsDir() {
				local = filepath.Join(local, path.Base(remote))
			}

			tmp := local + ".download"
			f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
			if err != nil {
				return err
			}
			n, err := a.client.Download(cmd.Context(), remote, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(tmp)
				return a.forgetIfUnauthorized(err)
			}
			if err := os.Rename(tmp, local); err != nil {
				_ = os.Remove(tmp)
				return err
			}
			a.printf("Downloaded %s (%s)\n", local, formatSize(n))
			return nil
		},
	}
}

func newPutCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "put <local>... [remote-dir]",
		Short: "Upload files into a remote directory",
		Long: `Upload one or more local files. When more than one argument is given
and the last one is not a local file, it names the remote directory.

  cloudkeeper-cli put report.pdf             Upload to the root
  cloudkeeper-cli put a.txt b.txt docs       Upload two files into docs`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireAuth(); err != nil {
				return err
			}

			files, dir := args, ""
			if len(args) > 1 {
				last := args[len(args)-1]
				if _, err := os.Stat(last); err != nil {
					files, dir = args[:len(args)-1], last
				}
			}

			for _, local := range files {
				fi, err := os.Stat(local)
				if err != nil {
					return err
				}
				if fi.IsDir() {
					return fmt.Errorf("%s is a directory", local)
				}
				names, err := a.client.Upload(cmd.Context(), dir, local)
				if err != nil {
					return a.forgetIfUnauthorized(fmt.Errorf("uploading %s: %w", filepath.Base(local), err))
				}
				for _, n := range names {
					a.printf("Uploaded %s (%s)\n", path.Join("/", dir, n), formatSize(fi.Size()))
				}
			}
			return nil
		},
	}
}

func newMkdirCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a remote directory and any missing parents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireAuth(); err != nil {
				return err
			}
			if err := a.client.Mkdir(cmd.Context(), args[0]); err != nil {
				return a.forgetIfUnauthorized(err)
			}
			a.printf("Created %s\n", args[0])
			return nil
		},
	}
}

func newMvCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "mv <from> <to>",
		Short: "Move or rename a remote file or directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireAuth(); err != nil {
				return err
			}
			if err := a.client.Move(cmd.Context(), args[0], args[1]); err != nil {
				return a.forgetIfUnauthorized(err)
			}
			a.printf("Moved %s -> %s\n", args[0], args[1])
			return nil
		},
	}
}

func newCpCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cp <from> <to>",
		Short: "Copy a remote file or directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireAuth(); err != nil {
				return err
			}
			if err := a.client.Copy(cmd.Context(), args[0], args[1]); err != nil {
				return a.forgetIfUnauthorized(err)
			}
			a.printf("Copied %s -> %s\n", args[0], args[1])
			return nil
		},
	}
}

func newRmCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>",
		Short: "Remove a remote file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireAuth(); err != nil {
				return err
			}
			if err := a.client.Remove(cmd.Context(), args[0]); err != nil {
				return a.forgetIfUnauthorized(err)
			}
			a.printf("Removed %s\n", args[0])
			return nil
		},
	}
}

// formatSize renders n in binary units.
func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatTime(unix int64) string {
	return time.Unix(unix, 0).Local().Format("2006-01-02 15:04")
}
