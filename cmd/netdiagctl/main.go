/**
 * netdiagctl entrypoint.
 *
 * Thin cobra-based IPC client for a running netdiagd: status, stop,
 * reload, run <type>, results, and monitor get|pause|resume.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/netdiag/netdiag/internal/cli"
	"github.com/netdiag/netdiag/internal/config"
	"github.com/netdiag/netdiag/internal/daemon"
)

// Exit codes reported to the shell.
const (
	exitOK                = 0
	exitGeneric           = 1
	exitConfig            = 2
	exitPrivilege         = 3
	exitPlatformUnsupported = 4
)

func main() {
	var socketPath string

	root := &cobra.Command{
		Use:   "netdiagctl",
		Short: "Control a running netdiagd instance",
	}
	root.PersistentFlags().StringVar(&socketPath, "socket", config.DefaultSocketPath, "path to netdiagd's IPC socket")

	root.AddCommand(
		newStatusCmd(&socketPath),
		newStopCmd(&socketPath),
		newReloadCmd(&socketPath),
		newRunCmd(&socketPath),
		newResultsCmd(&socketPath),
		newMonitorCmd(&socketPath),
		newPingCmd(&socketPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitGeneric)
	}
}

func client(socketPath *string) *daemon.Client {
	return daemon.NewClient(*socketPath)
}

// request sends req and exits the process with exitGeneric on any failure,
// so every subcommand shares one success/failure path; exitConfig,
// exitPrivilege and exitPlatformUnsupported are not used.
func request(socketPath *string, req daemon.Request) daemon.Response {
	resp, err := client(socketPath).Request(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "netdiagctl: %v\n", err)
		fmt.Fprintln(os.Stderr, "is netdiagd running? check --socket and the daemon's ipc.socket_path")
		os.Exit(exitGeneric)
	}
	if resp.Kind == daemon.RespError {
		fmt.Fprintf(os.Stderr, "netdiagctl: %s\n", resp.Message)
		os.Exit(exitGeneric)
	}
	return resp
}

func newPingCmd(socketPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check whether netdiagd is reachable",
		Run: func(cmd *cobra.Command, args []string) {
			if client(socketPath).Ping() {
				fmt.Println("pong")
				return
			}
			fmt.Fprintln(os.Stderr, "netdiagd did not respond")
			os.Exit(exitGeneric)
		},
	}
}

func newStatusCmd(socketPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon lifecycle state and counters",
		Run: func(cmd *cobra.Command, args []string) {
			resp := request(socketPath, daemon.Request{Kind: daemon.ReqStatus})
			fmt.Print(cli.GetBanner())
			cli.Table(
				[]string{"STATE", "UPTIME_S", "DIAGNOSTICS_RUN", "ALERTS", "MONITORING"},
				[][]string{{
					resp.State,
					fmt.Sprintf("%d", resp.UptimeSecs),
					fmt.Sprintf("%d", resp.DiagnosticsRun),
					fmt.Sprintf("%d", resp.AlertsGenerated),
					fmt.Sprintf("%t", resp.MonitoringActive),
				}},
			)
		},
	}
}

func newStopCmd(socketPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Request a graceful daemon shutdown",
		Run: func(cmd *cobra.Command, args []string) {
			resp := request(socketPath, daemon.Request{Kind: daemon.ReqStop})
			fmt.Println(resp.Message)
		},
	}
}

func newReloadCmd(socketPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Ask the daemon to re-parse daemon.toml",
		Run: func(cmd *cobra.Command, args []string) {
			resp := request(socketPath, daemon.Request{Kind: daemon.ReqReload})
			fmt.Println(resp.Message)
		},
	}
}

func newRunCmd(socketPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run <quick|full|wifi|speed|custom>",
		Short: "Queue an on-demand diagnostic run",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			resp := request(socketPath, daemon.Request{Kind: daemon.ReqRunDiagnostic, DiagnosticType: args[0]})
			fmt.Println(resp.Message)
		},
	}
}

func newResultsCmd(socketPath *string) *cobra.Command {
	var limit int
	c := &cobra.Command{
		Use:   "results",
		Short: "Show recent diagnostic run history",
		Run: func(cmd *cobra.Command, args []string) {
			resp := request(socketPath, daemon.Request{Kind: daemon.ReqGetResults, Limit: limit})
			if len(resp.Results) == 0 {
				fmt.Println("no diagnostic runs recorded yet")
				return
			}
			rows := make([][]string, 0, len(resp.Results))
			for _, r := range resp.Results {
				rows = append(rows, []string{r})
			}
			cli.Table([]string{"RUN"}, rows)
		},
	}
	c.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to show")
	return c
}

func newMonitorCmd(socketPath *string) *cobra.Command {
	parent := &cobra.Command{
		Use:   "monitor",
		Short: "Inspect or control the continuous monitor",
	}
	parent.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Print the latest monitoring snapshot",
			Run: func(cmd *cobra.Command, args []string) {
				resp := request(socketPath, daemon.Request{Kind: daemon.ReqGetMonitoringData})
				cli.Section("monitoring snapshot")
				fmt.Println(resp.Data)
			},
		},
		&cobra.Command{
			Use:   "pause",
			Short: "Pause periodic monitor checks",
			Run: func(cmd *cobra.Command, args []string) {
				resp := request(socketPath, daemon.Request{Kind: daemon.ReqPauseMonitoring})
				fmt.Println(resp.Message)
			},
		},
		&cobra.Command{
			Use:   "resume",
			Short: "Resume periodic monitor checks",
			Run: func(cmd *cobra.Command, args []string) {
				resp := request(socketPath, daemon.Request{Kind: daemon.ReqResumeMonitoring})
				fmt.Println(resp.Message)
			},
		},
	)
	return parent
}
