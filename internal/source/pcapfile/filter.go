package pcapfile

import (
	"fmt"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"
)

// maxSnapLen is the snap length the filter is compiled against. Capture
// files carry their own snap length but the compiled program only uses
// this value for length checks, so the common maximum is safe for any
// file.
const maxSnapLen = 65535

// compileFilter compiles a tcpdump-style expression for the given link
// type into a BPF virtual machine that can run against raw frame bytes.
func compileFilter(linkType layers.LinkType, filter string) (*bpf.VM, error) {
	pcapBpf, err := pcap.CompileBPFFilter(linkType, maxSnapLen, filter)
	if err != nil {
		return nil, fmt.Errorf("pcapfile: compile filter %q: %w", filter, err)
	}

	rawBpf := make([]bpf.RawInstruction, len(pcapBpf))
	for i, ins := range pcapBpf {
		rawBpf[i] = bpf.RawInstruction{Op: ins.Code, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}

	prog, ok := bpf.Disassemble(rawBpf)
	if !ok {
		return nil, fmt.Errorf("pcapfile: filter %q compiles to unsupported instructions", filter)
	}
	vm, err := bpf.NewVM(prog)
	if err != nil {
		return nil, fmt.Errorf("pcapfile: filter %q: %w", filter, err)
	}
	return vm, nil
}
