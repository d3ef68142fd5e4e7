package sip

import (
	"bytes"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// sessionDescription is the slice of an SDP body the media registrar
// needs: a connection address and one entry per m= line.
type sessionDescription struct {
	connection netip.Addr
	media      []mediaStream
}

// mediaStream is one m= line together with the attributes that decide
// where the matching RTCP flow lives and how it is framed.
type mediaStream struct {
	mediaType string // audio, video, ...
	proto     string // RTP/AVP, RTP/SAVPF, UDP/TLS/RTP/SAVPF, ...
	rtpPort   uint16 // 0 on rejected streams
	rtcpPort  uint16 // rtpPort+1 unless an a=rtcp attribute overrides
	rtcpMux   bool
	codec     string // first a=rtpmap, kept for labels
	direction string // sendrecv unless an attribute overrides
	secure    bool   // the m= profile token names SRTP
	crypto    *cryptoParams
}

// cryptoParams is the SRTCP-relevant part of one a=crypto attribute.
type cryptoParams struct {
	authTagLen int
	mkiLen     int
	encrypted  bool
}

// parseSDP reads the c=, m= and a= lines of an SDP body. A media-level
// connection line wins over the session-level one; a body without any
// media stream is an error since there is nothing to correlate.
func parseSDP(body []byte) (*sessionDescription, error) {
	sdp := &sessionDescription{
		media: make([]mediaStream, 0, 2),
	}

	var sessionIP netip.Addr
	var current *mediaStream

	for _, line := range bytes.Split(body, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) < 2 || line[1] != '=' {
			continue
		}

		typ := line[0]
		value := string(bytes.TrimSpace(line[2:]))

		switch typ {
		case 'c':
			ip := parseConnectionLine(value)
			if !ip.IsValid() {
				continue
			}
			if current != nil {
				sdp.connection = ip
			} else {
				sessionIP = ip
			}

		case 'm':
			if current != nil {
				sdp.media = append(sdp.media, *current)
			}

			// m=audio 49170 RTP/AVP 0 8
			parts := strings.Fields(value)
			if len(parts) < 3 {
				current = nil
				continue
			}
			// A port count suffix as in "49170/2" names extra pairs;
			// the first pair is the one worth registering.
			portField, _, _ := strings.Cut(parts[1], "/")
			port, err := strconv.ParseUint(portField, 10, 16)
			if err != nil {
				current = nil
				continue
			}

			current = &mediaStream{
				mediaType: parts[0],
				proto:     parts[2],
				rtpPort:   uint16(port),
				rtcpPort:  uint16(port) + 1,
				direction: "sendrecv",
				secure:    strings.Contains(parts[2], "SAVP"),
			}

		case 'a':
			if current == nil {
				continue
			}

			if value == "rtcp-mux" {
				current.rtcpMux = true
				current.rtcpPort = current.rtpPort
				continue
			}

			// a=rtcp:53020 or the full a=rtcp:53020 IN IP4 126.16.64.4
			if strings.HasPrefix(value, "rtcp:") {
				fields := strings.Fields(value[5:])
				if len(fields) == 0 {
					continue
				}
				if port, err := strconv.ParseUint(fields[0], 10, 16); err == nil {
					current.rtcpPort = uint16(port)
				}
				continue
			}

			// a=rtpmap:0 PCMU/8000, first one names the stream
			if strings.HasPrefix(value, "rtpmap:") {
				if current.codec == "" {
					parts := strings.SplitN(value[7:], " ", 2)
					if len(parts) == 2 {
						current.codec = parts[1]
					}
				}
				continue
			}

			if strings.HasPrefix(value, "crypto:") {
				if cp := parseCryptoLine(value[7:]); cp != nil {
					current.crypto = cp
				}
				continue
			}

			if value == "sendrecv" || value == "sendonly" || value == "recvonly" || value == "inactive" {
				current.direction = value
			}
		}
	}

	if current != nil {
		sdp.media = append(sdp.media, *current)
	}

	if !sdp.connection.IsValid() && sessionIP.IsValid() {
		sdp.connection = sessionIP
	}

	if len(sdp.media) == 0 {
		return nil, fmt.Errorf("no media streams in SDP")
	}

	return sdp, nil
}

// parseConnectionLine extracts the address from a connection value such
// as "IN IP4 192.168.1.100" or "IN IP6 2001:db8::1".
func parseConnectionLine(value string) netip.Addr {
	parts := strings.Fields(value)
	if len(parts) < 3 {
		return netip.Addr{}
	}
	ip, err := netip.ParseAddr(parts[2])
	if err != nil {
		return netip.Addr{}
	}
	return ip
}

// parseCryptoLine reads an a=crypto value, already stripped of the
// attribute name: "1 AES_CM_128_HMAC_SHA1_80 inline:<key>|2^20|1:4
// [session-params]". Only the pieces that shape SRTCP framing are kept:
// the auth tag length implied by the suite, the MKI length from the key
// parameter, and whether UNENCRYPTED_SRTCP was negotiated.
func parseCryptoLine(value string) *cryptoParams {
	parts := strings.Fields(value)
	if len(parts) < 3 {
		return nil
	}

	cp := &cryptoParams{authTagLen: 10, encrypted: true}
	switch {
	case strings.Contains(parts[1], "GCM"):
		cp.authTagLen = 16
	case strings.HasSuffix(parts[1], "_32"):
		cp.authTagLen = 4
	}

	// The MKI segment of the key parameter is "value:length"; the
	// lifetime segment carries no colon and is skipped.
	for _, seg := range strings.Split(parts[2], "|")[1:] {
		if i := strings.IndexByte(seg, ':'); i != -1 {
			if n, err := strconv.Atoi(seg[i+1:]); err == nil {
				cp.mkiLen = n
			}
		}
	}

	for _, param := range parts[3:] {
		if param == "UNENCRYPTED_SRTCP" {
			cp.encrypted = false
		}
	}

	return cp
}

// extractURI pulls the bare URI out of a From/To header value, either
// the angle-bracketed form or the first token minus its parameters.
func extractURI(value string) string {
	start := strings.IndexByte(value, '<')
	if start == -1 {
		parts := strings.Fields(value)
		if len(parts) == 0 {
			return ""
		}
		uri := parts[0]
		if semi := strings.IndexByte(uri, ';'); semi != -1 {
			uri = uri[:semi]
		}
		return uri
	}

	end := strings.IndexByte(value[start:], '>')
	if end == -1 {
		return ""
	}
	return value[start+1 : start+end]
}
