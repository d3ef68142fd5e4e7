// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// configFile is the global config flag shared by all subcommands.
var configFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tyto",
	Short: "Tyto - offline VoIP signalling and control-protocol analyzer",
	Long: `Tyto dissects capture files the way an interactive protocol analyzer
would: frames decode into annotated field trees with expert findings,
SIP/SDP signalling pins negotiated media flows to their dissectors, and
RTCP, SRTCP and TPNCP payloads are interpreted against their grammars.

Protocols:
  - RTCP/SRTCP compound packets: reports, SDES, BYE, feedback (RTPFB/
    PSFB including transport-cc), extended reports, profile-specific
    extensions, roundtrip estimation from LSR/DLSR
  - TPNCP events and commands decoded against a tpncp.dat driver table,
    over UDP and length-framed TCP streams
  - SIP/SDP offer-answer tracking that registers negotiated RTP/RTCP
    port pairs, including SRTCP trailer geometry from SDES crypto lines`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (built-in defaults when empty)")
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
