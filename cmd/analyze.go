package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tytonet/tyto/internal/config"
	"github.com/tytonet/tyto/internal/core"
	"github.com/tytonet/tyto/internal/core/decoder"
	"github.com/tytonet/tyto/internal/engine"
	"github.com/tytonet/tyto/internal/log"
	"github.com/tytonet/tyto/internal/metrics"
	"github.com/tytonet/tyto/internal/source/pcapfile"
	"github.com/tytonet/tyto/pkg/dissect"
	"github.com/tytonet/tyto/plugins/dissector/rtcp"
	"github.com/tytonet/tyto/plugins/dissector/rtp"
	"github.com/tytonet/tyto/plugins/dissector/sip"
	"github.com/tytonet/tyto/plugins/dissector/tpncp"
)

var (
	analyzeFilter  string
	analyzeVerbose bool
	analyzeExport  string
	analyzeTwoPass bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <capture-file>",
	Short: "Dissect a pcap or pcapng capture offline",
	Long: `Replay a capture file through the protocol dissectors and print one
summary line per frame. The file format (pcap or pcapng) is detected
automatically.

Examples:
  tyto analyze call.pcap                    # summary lines
  tyto analyze -V call.pcapng               # full decoded trees
  tyto analyze --filter "udp port 2424" trunk.pcap
  tyto analyze --two-pass --export out.yml call.pcap`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runAnalyze(args[0])
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeFilter, "filter", "f", "",
		"BPF filter expression applied while reading")
	analyzeCmd.Flags().BoolVarP(&analyzeVerbose, "verbose-trees", "V", false,
		"print the full decoded tree of every frame")
	analyzeCmd.Flags().StringVar(&analyzeExport, "export", "",
		"write the analysis as YAML to this file, '-' for stdout")
	analyzeCmd.Flags().BoolVar(&analyzeTwoPass, "two-pass", false,
		"re-dissect every frame after the first pass so early frames see setup state from later signalling")
	rootCmd.AddCommand(analyzeCmd)
}

// frameOutput is one frame's rendering state: the record feeding the
// summary line and export, plus the tree when the frame decoded.
type frameOutput struct {
	rec  core.OutputRecord
	tree *dissect.Node
}

func runAnalyze(path string) {
	cfg, err := config.Load(configFile)
	if err != nil {
		exitWithError("failed to load config", err)
	}
	log.Init(&cfg.Log)
	stopMetrics := startMetrics(cfg)
	defer stopMetrics()

	src, err := pcapfile.Open(path)
	if err != nil {
		exitWithError("failed to open capture", err)
	}
	defer src.Close()

	if analyzeFilter != "" {
		if err := src.SetFilter(analyzeFilter); err != nil {
			exitWithError("failed to apply filter", err)
		}
	}

	dec, err := decoder.New(src.LinkType())
	if err != nil {
		exitWithError("unsupported capture link type", err)
	}

	eng := buildEngine(cfg)
	outputs := dissectCapture(src, dec, eng)

	if analyzeTwoPass {
		// Rerun against the complete conversation state of pass one.
		for i := range outputs {
			r, ok := eng.Result(outputs[i].rec.Number)
			if !ok {
				continue
			}
			rr := eng.Redissect(r.Packet)
			outputs[i].rec = rr.Record()
			outputs[i].tree = rr.Tree
		}
	}

	printOutputs(outputs)

	if analyzeExport != "" {
		if err := exportYAML(analyzeExport, outputs); err != nil {
			exitWithError("failed to export analysis", err)
		}
	}

	dissected := 0
	for _, out := range outputs {
		if out.rec.Dissector != "" {
			dissected++
		}
	}
	conversations := 0
	if ms, ok := eng.Store().(*dissect.MemoryStore); ok {
		conversations = ms.Len()
	}
	fmt.Fprintf(os.Stderr, "%d frames, %d dissected, %d conversations\n",
		len(outputs), dissected, conversations)
}

// dissectCapture runs the first pass: read, decode, dissect, collect.
func dissectCapture(src *pcapfile.Source, dec *decoder.Decoder, eng *engine.Engine) []frameOutput {
	logger := log.GetLogger()
	var outputs []frameOutput
	for {
		raw, err := src.Next()
		if errors.Is(err, core.ErrSourceExhausted) {
			return outputs
		}
		if err != nil {
			exitWithError("failed to read capture", err)
		}

		pkt, err := dec.Decode(raw)
		if err != nil {
			// Non-IP frames, fragments and truncated headers keep their
			// frame number but carry only the fault.
			if logger.IsDebugEnabled() {
				logger.Debugf("frame %d: %v", raw.Number, err)
			}
			outputs = append(outputs, frameOutput{rec: core.OutputRecord{
				Number:    raw.Number,
				Timestamp: raw.Timestamp,
				Err:       err.Error(),
			}})
			continue
		}

		r := eng.Dissect(pkt)
		outputs = append(outputs, frameOutput{rec: r.Record(), tree: r.Tree})
	}
}

func printOutputs(outputs []frameOutput) {
	if len(outputs) == 0 {
		return
	}
	base := outputs[0].rec.Timestamp
	for _, out := range outputs {
		if !analyzeVerbose {
			fmt.Println(engine.Summary(out.rec, base))
			continue
		}
		fmt.Println(engine.Header(out.rec, base))
		if out.rec.Err != "" && out.tree == nil {
			fmt.Printf("  [%s]\n", out.rec.Err)
		}
		if out.tree != nil {
			fmt.Print(indent(out.tree.Dump(), "  "))
		}
		fmt.Println()
	}
}

// buildEngine wires the dissectors the way the configuration asks:
// registry bindings for ports and heuristics, the shared conversation
// store, and name registration for signalling pins.
func buildEngine(cfg *config.Config) *engine.Engine {
	registry := dissect.NewRegistry()
	store := dissect.NewMemoryStore()
	eng := engine.New(registry, store)

	rtcpDissector := rtcp.New(rtcp.Options{
		ShowSetupInfo:   cfg.RTCP.ShowSetupInfo,
		ShowRoundtrip:   cfg.RTCP.ShowRoundtrip,
		RoundtripMinMS:  cfg.RTCP.RoundtripMinMS,
		DefaultProtocol: cfg.RTCP.DefaultProtocol,
		Heuristic:       cfg.RTCP.Heuristic,
	}, registry, store)
	rtcp.RegisterExtensions(registry)
	eng.Register(rtcpDissector)
	if cfg.RTCP.Heuristic {
		registry.AddHeuristic("udp", rtcpDissector)
	}

	tpncpDissector := tpncp.New(tpncp.Options{
		LoadSchema: cfg.TPNCP.LoadSchema,
		SchemaPath: cfg.TPNCP.SchemaPath,
		Port:       uint16(cfg.TPNCP.UDPPort),
		HAPort:     uint16(cfg.TPNCP.HAPort),
	}, loadTPNCPSchema(cfg))
	eng.Register(tpncpDissector)
	registry.AddUint(dissect.TableUDPPort, uint32(cfg.TPNCP.UDPPort), tpncpDissector)
	registry.AddUint(dissect.TableUDPPort, uint32(cfg.TPNCP.HAPort), tpncpDissector)
	registry.AddUint(dissect.TableTCPPort, uint32(cfg.TPNCP.TCPPort), tpncpDissector)

	sipDissector := sip.New(store)
	eng.Register(sipDissector)
	for _, port := range cfg.SIP.Ports {
		registry.AddUint(dissect.TableUDPPort, uint32(port), sipDissector)
		registry.AddUint(dissect.TableTCPPort, uint32(port), sipDissector)
	}
	registry.AddHeuristic("udp", sipDissector)

	// RTP goes last in the heuristic chain; its header checks are the
	// weakest of the set.
	rtpDissector := rtp.New(store)
	eng.Register(rtpDissector)
	if cfg.RTP.Heuristic {
		registry.AddHeuristic("udp", rtpDissector)
	}

	return eng
}

// loadTPNCPSchema loads the driver table named by the configuration.
// A missing or unreadable table disables TPNCP decoding but is not
// fatal; captures without TPNCP traffic should not require it.
func loadTPNCPSchema(cfg *config.Config) *tpncp.Schema {
	if !cfg.TPNCP.LoadSchema {
		return nil
	}
	schema, err := tpncp.LoadSchema(cfg.TPNCP.SchemaPath)
	if err != nil {
		log.GetLogger().WithError(err).
			Warnf("tpncp driver table %s not loaded, tpncp decoding disabled", cfg.TPNCP.SchemaPath)
		return nil
	}
	if n := schema.Skipped(); n > 0 {
		log.GetLogger().Warnf("tpncp driver table %s: %d malformed rows skipped", cfg.TPNCP.SchemaPath, n)
	}
	return schema
}

// startMetrics starts the Prometheus endpoint when enabled and returns
// the matching stop function.
func startMetrics(cfg *config.Config) func() {
	if !cfg.Metrics.Enabled {
		return func() {}
	}
	srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
	if err := srv.Start(context.Background()); err != nil {
		log.GetLogger().WithError(err).Warn("metrics server failed to start")
		return func() {}
	}
	return func() {
		if err := srv.Stop(context.Background()); err != nil {
			log.GetLogger().WithError(err).Warn("metrics server stop failed")
		}
	}
}

func indent(s, prefix string) string {
	if s == "" {
		return s
	}
	return prefix + strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n"+prefix) + "\n"
}
