package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/torosent/crankdb/internal/config"
)

func newRootCmd(stdout, stderr io.Writer, exit func(int)) *cobra.Command {
	root := &cobra.Command{
		Use:   "crankdb",
		Short: "Concurrent SELECT/INSERT benchmark for MySQL-protocol databases",
		Long: `crankdb drives a SELECT or INSERT workload against a MySQL-compatible
database (TiDB, MySQL) from many concurrent workers and reports throughput,
bandwidth and latency percentiles.

The benchmark creates its own table, runs the workload and drops the table
again. Stop it with --iterations, --duration or Ctrl-C; a second Ctrl-C
aborts without a report.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.RegisterFlags(root)

	root.AddCommand(
		newWorkloadCmd(config.WorkloadSelect, "Read --select-count rows per iteration", stdout, stderr, exit),
		newWorkloadCmd(config.WorkloadInsert, "Insert --batch-size rows per iteration", stdout, stderr, exit),
		newVersionCmd(stdout),
	)
	return root
}

func newWorkloadCmd(workload config.Workload, short string, stdout, stderr io.Writer, exit func(int)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(workload) + " [flags]",
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewLoader().Load(workload, cmd.Flags())
			if err != nil {
				return &exitError{code: exitConfig, err: err}
			}
			b := &benchmark{cfg: cfg, stdout: stdout, stderr: stderr, exit: exit}
			return b.run(cmd.Context())
		},
	}
	config.RegisterWorkloadFlags(cmd, workload)
	return cmd
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the crankdb version",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(stdout, "crankdb %s\n", version)
		},
	}
}
