package cmd

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tytonet/tyto/internal/core"
)

// exportRecord is the YAML projection of one analyzed frame.
type exportRecord struct {
	Number    uint32            `yaml:"number"`
	Time      string            `yaml:"time"`
	Src       string            `yaml:"src,omitempty"`
	Dst       string            `yaml:"dst,omitempty"`
	Transport string            `yaml:"transport,omitempty"`
	Dissector string            `yaml:"dissector,omitempty"`
	Labels    map[string]string `yaml:"labels,omitempty"`
	Consumed  int               `yaml:"consumed,omitempty"`
	Error     string            `yaml:"error,omitempty"`
}

func exportYAML(path string, outputs []frameOutput) error {
	docs := make([]exportRecord, 0, len(outputs))
	for _, out := range outputs {
		docs = append(docs, toExportRecord(out.rec))
	}
	data, err := yaml.Marshal(docs)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func toExportRecord(rec core.OutputRecord) exportRecord {
	out := exportRecord{
		Number:    rec.Number,
		Time:      rec.Timestamp.UTC().Format(time.RFC3339Nano),
		Dissector: rec.Dissector,
		Labels:    rec.Labels,
		Consumed:  rec.Consumed,
		Error:     rec.Err,
	}
	if rec.SrcIP.IsValid() {
		out.Src = fmt.Sprintf("%s:%d", rec.SrcIP, rec.SrcPort)
		out.Dst = fmt.Sprintf("%s:%d", rec.DstIP, rec.DstPort)
		switch rec.Protocol {
		case 6:
			out.Transport = "tcp"
		case 17:
			out.Transport = "udp"
		default:
			out.Transport = fmt.Sprintf("ip-%d", rec.Protocol)
		}
	}
	return out
}
