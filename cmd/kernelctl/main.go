// Command kernelctl is the debug/introspection CLI for a running kerneld,
// grounded on the teacher's cmd/wt/main.go: a cobra root with one
// subcommand per transport.Client call, talking over the same unix
// socket the daemon exposes.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/zeroos-kernel/zeroos/internal/config"
	"github.com/zeroos-kernel/zeroos/internal/transport"
)

func main() {
	var socketPath string

	root := &cobra.Command{
		Use:   "kernelctl",
		Short: "Inspect a running zeroos kernel",
	}
	root.PersistentFlags().StringVar(&socketPath, "socket", "", "Debug socket path (default: ~/.zeroos/kernel.sock)")

	root.AddCommand(
		psCmd(&socketPath),
		commitsCmd(&socketPath),
		hashCmd(&socketPath),
		replayCmd(&socketPath),
		statusCmd(&socketPath),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func clientFor(socketPath *string) (*transport.Client, error) {
	sock := *socketPath
	if sock == "" {
		dir, err := config.GetUserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve config dir: %w", err)
		}
		cfg, err := config.LoadKernelConfig(dir)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		sock = cfg.DebugSocket
	}
	return transport.NewClient(sock), nil
}

func psCmd(socketPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ps [pid]",
		Short: "List processes, or show one process's detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFor(socketPath)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				pid, err := strconv.ParseUint(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid pid %q: %w", args[0], err)
				}
				p, err := c.GetProcess(pid)
				if err != nil {
					return fmt.Errorf("get process: %w", err)
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			}

			procs, err := c.ListProcesses()
			if err != nil {
				return fmt.Errorf("list processes: %w", err)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PID\tNAME\tSTATE\tSYSCALLS\tMEMORY")
			for _, p := range procs {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", p.PID, p.Name, p.State, p.SyscallCount, humanize.Bytes(p.MemoryBytes))
			}
			return w.Flush()
		},
	}
}

func commitsCmd(socketPath *string) *cobra.Command {
	var since int
	cmd := &cobra.Command{
		Use:   "commits",
		Short: "Show commit log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFor(socketPath)
			if err != nil {
				return err
			}
			commits, err := c.Commits(since)
			if err != nil {
				return fmt.Errorf("commits: %w", err)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "INDEX\tPID\tSYSCALL\tOK\tVALUE\tTIME")
			for _, c := range commits {
				fmt.Fprintf(w, "%d\t%d\t%#02x\t%t\t%d\t%s\n", c.Index, c.PID, c.Num, c.Success, c.Value, c.TS)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&since, "since", 0, "Only show commits at or after this index")
	return cmd
}

func hashCmd(socketPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "hash",
		Short: "Show the rolling state hash",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFor(socketPath)
			if err != nil {
				return err
			}
			h, err := c.StateHash()
			if err != nil {
				return fmt.Errorf("state hash: %w", err)
			}
			fmt.Printf("%s %s (%d commits)\n", h.Algorithm, h.Hash, h.CommitCount)
			return nil
		},
	}
}

func replayCmd(socketPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Re-dispatch the commit log against a fresh state and verify it agrees",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFor(socketPath)
			if err != nil {
				return err
			}
			r, err := c.Replay()
			if err != nil {
				return fmt.Errorf("replay: %w", err)
			}
			if !r.OK {
				fmt.Printf("DIVERGED: %s (%d commits in log)\n", r.Diverged, r.CommitCount)
				os.Exit(1)
			}
			fmt.Printf("OK: %d commits replayed, hash %s\n", r.CommitCount, r.Hash)
			return nil
		},
	}
}

func statusCmd(socketPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Kernel-wide summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFor(socketPath)
			if err != nil {
				return err
			}
			s, err := c.Status()
			if err != nil {
				return fmt.Errorf("daemon not reachable: %w", err)
			}
			fmt.Printf("processes: %d\nendpoints: %d\nipc total: %d\ncommits:   %d\nmemory:    %s\n",
				s.ProcessCount, s.EndpointCount, s.TotalIPC, s.CommitCount, humanize.Bytes(s.TotalMemory))
			return nil
		},
	}
}
