package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/cloudkeeper/internal/buildinfo"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree reading prompts from in and writing
// output to out.
func NewRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	a := newApp(in, out)

	root := &cobra.Command{
		Use:   "cloudkeeper-cli",
		Short: "cloudkeeper CLI: manage your files from the terminal",
		Long: `cloudkeeper CLI talks to a cloudkeeper server.

Get started:
  cloudkeeper-cli register          Create an account
  cloudkeeper-cli login alice       Sign in and remember the session
  cloudkeeper-cli ls                List your root directory
  cloudkeeper-cli put report.pdf    Upload a file`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	root.SetOut(out)
	root.SetErr(out)
	root.SetIn(in)

	root.PersistentFlags().StringVar(&a.serverURL, "server", "", "Override server URL (default: from config or http://localhost:8080)")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to the CLI config file")

	root.AddCommand(
		newRegisterCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newDeleteAccountCmd(a),
		newLsCmd(a),
		newGetCmd(a),
		newPutCmd(a),
		newMkdirCmd(a),
		newMvCmd(a),
		newCpCmd(a),
		newRmCmd(a),
		newVersionCmd(a),
	)
	return root
}

// Execute runs the CLI against the process stdio.
func Execute() error {
	if err := NewRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func newVersionCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			buildinfo.PrintBuildData(a.out)
			return nil
		},
	}
}
