package rtcp

import (
	"time"

	"github.com/tytonet/tyto/internal/metrics"
	"github.com/tytonet/tyto/pkg/dissect"
)

// roundtripState is the last sender report seen on a flow, stored on the
// reverse flow's conversation so the receiver's report blocks can find
// it by the LSR timestamp they echo.
type roundtripState struct {
	lastLSR   uint32
	lastFrame uint32
	lastTime  time.Time
}

// roundtripResult is one computed estimate, cached per frame so that
// re-dissecting the frame reproduces the original finding even after the
// conversation state has moved on to later sender reports.
type roundtripResult struct {
	srFrame uint32
	delayMS int64
}

// recordSentSR remembers a sender report's middle-32 NTP timestamp for
// the flow that will echo it. Callers gate on the first visit; storing
// the same frame again is a no-op by value.
func (d *Dissector) recordSentSR(frame *dissect.Frame, lsr uint32) {
	conv := d.store.Ensure(frame.ReverseKey())
	conv.SetValue(valueRoundtrip, &roundtripState{
		lastLSR:   lsr,
		lastFrame: frame.Number,
		lastTime:  frame.Timestamp,
	})
}

// correlateRoundtrip matches a report block's LSR/DLSR against the
// remembered sender report and annotates the estimated network
// roundtrip. Estimates below the configured threshold are computed but
// not displayed; negative estimates point at broken peer clocks and are
// flagged.
func (d *Dissector) correlateRoundtrip(frame *dissect.Frame, lsr uint32, dlsrMS int64, rb *dissect.Node) {
	result, ok := d.roundtrips[frame.Number]
	if !ok {
		conv, found := d.store.Lookup(frame.Key())
		if !found {
			return
		}
		v, found := conv.Value(valueRoundtrip)
		if !found {
			return
		}
		state, found := v.(*roundtripState)
		if !found || state.lastLSR != lsr || state.lastFrame >= frame.Number {
			return
		}
		gapMS := frame.Timestamp.Sub(state.lastTime).Milliseconds()
		result = &roundtripResult{
			srFrame: state.lastFrame,
			delayMS: gapMS - dlsrMS,
		}
		d.roundtrips[frame.Number] = result
		if result.delayMS >= 0 {
			metrics.RoundtripSeconds.Observe(float64(result.delayMS) / 1000)
		}
	}

	rb.Addf("rtcp.roundtrip.frame", 0, 0, result.srFrame, "SR frame used in calculation: %d", result.srFrame)
	switch {
	case result.delayMS < 0:
		item := rb.Addf("rtcp.roundtrip.delay", 0, 0, result.delayMS, "Roundtrip delay: %d ms", result.delayMS)
		item.Expert(dissect.SeverityError, "negative roundtrip delay %d ms, sender and receiver clocks disagree", result.delayMS)
	case result.delayMS >= int64(d.opts.RoundtripMinMS):
		rb.Addf("rtcp.roundtrip.delay", 0, 0, result.delayMS, "Roundtrip delay: %d ms", result.delayMS)
	}
}
