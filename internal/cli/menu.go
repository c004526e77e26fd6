/**
 * CLI Rendering Helpers.
 *
 * Small operator-facing pretty-printer shared by cmd/netdiagctl: a banner
 * for interactive sessions and a fixed-width table renderer for status,
 * results, and monitoring output.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package cli

import (
	"fmt"
	"strings"
)

const banner = `
╔═══════════════════════════════════════════════════════════╗
║                        netdiag v0.1                        ║
║        Network Diagnostics, Monitoring & Auto-Repair        ║
╚═══════════════════════════════════════════════════════════╝
`

// GetBanner returns the application banner printed at the top of
// "netdiagctl status".
func GetBanner() string {
	return banner
}

// Table prints a fixed-width table of headers and rows to stdout.
func Table(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	fmt.Println()
	for i, h := range headers {
		fmt.Printf("%-*s  ", widths[i], h)
	}
	fmt.Println()

	for _, w := range widths {
		fmt.Print(strings.Repeat("━", w) + "  ")
	}
	fmt.Println()

	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				fmt.Printf("%-*s  ", widths[i], cell)
			}
		}
		fmt.Println()
	}
	fmt.Println()
}

// Section prints a titled divider, used to separate blocks of status output.
func Section(title string) {
	fmt.Println(title)
	fmt.Println(strings.Repeat("━", 60))
}
