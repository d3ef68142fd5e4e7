package sip

import (
	"net/netip"
	"testing"
)

func TestParseSDPOffer(t *testing.T) {
	body := []byte("v=0\r\n" +
		"o=- 2890844526 2890844526 IN IP4 10.0.1.1\r\n" +
		"s=call\r\n" +
		"c=IN IP4 10.0.1.1\r\n" +
		"t=0 0\r\n" +
		"m=audio 49170 RTP/AVP 0 8\r\n" +
		"a=rtpmap:0 PCMU/8000\r\n" +
		"a=rtpmap:8 PCMA/8000\r\n" +
		"a=sendonly\r\n" +
		"m=video 51372 RTP/AVP 31\r\n" +
		"a=rtpmap:31 H261/90000\r\n")

	sdp, err := parseSDP(body)
	if err != nil {
		t.Fatalf("parseSDP: %v", err)
	}
	if want := netip.MustParseAddr("10.0.1.1"); sdp.connection != want {
		t.Errorf("connection = %v, want %v", sdp.connection, want)
	}
	if len(sdp.media) != 2 {
		t.Fatalf("media count = %d, want 2", len(sdp.media))
	}

	audio := sdp.media[0]
	if audio.mediaType != "audio" || audio.proto != "RTP/AVP" {
		t.Errorf("audio stream = %s %s", audio.mediaType, audio.proto)
	}
	if audio.rtpPort != 49170 || audio.rtcpPort != 49171 {
		t.Errorf("audio ports = %d/%d, want 49170/49171", audio.rtpPort, audio.rtcpPort)
	}
	if audio.codec != "PCMU/8000" {
		t.Errorf("audio codec = %q, want first rtpmap", audio.codec)
	}
	if audio.direction != "sendonly" {
		t.Errorf("audio direction = %q, want sendonly", audio.direction)
	}
	if audio.secure {
		t.Error("audio marked secure on RTP/AVP")
	}

	video := sdp.media[1]
	if video.rtpPort != 51372 || video.rtcpPort != 51373 {
		t.Errorf("video ports = %d/%d, want 51372/51373", video.rtpPort, video.rtcpPort)
	}
	if video.direction != "sendrecv" {
		t.Errorf("video direction = %q, want default sendrecv", video.direction)
	}
}

func TestParseSDPRTCPAttribute(t *testing.T) {
	body := []byte("v=0\r\n" +
		"c=IN IP4 10.0.1.1\r\n" +
		"m=audio 49170 RTP/AVP 0\r\n" +
		"a=rtcp:53020\r\n" +
		"m=video 51372 RTP/AVP 31\r\n" +
		"a=rtcp:60065 IN IP4 126.16.64.4\r\n" +
		"m=audio 58000 RTP/AVP 0\r\n" +
		"a=rtcp-mux\r\n")

	sdp, err := parseSDP(body)
	if err != nil {
		t.Fatalf("parseSDP: %v", err)
	}
	if len(sdp.media) != 3 {
		t.Fatalf("media count = %d, want 3", len(sdp.media))
	}
	if got := sdp.media[0].rtcpPort; got != 53020 {
		t.Errorf("plain a=rtcp port = %d, want 53020", got)
	}
	if got := sdp.media[1].rtcpPort; got != 60065 {
		t.Errorf("full-form a=rtcp port = %d, want 60065", got)
	}
	mux := sdp.media[2]
	if !mux.rtcpMux || mux.rtcpPort != 58000 {
		t.Errorf("muxed stream = mux %v port %d, want RTCP on the RTP port", mux.rtcpMux, mux.rtcpPort)
	}
}

func TestParseSDPMediaLevelConnection(t *testing.T) {
	body := []byte("v=0\r\n" +
		"c=IN IP4 10.0.1.1\r\n" +
		"m=audio 49170 RTP/AVP 0\r\n" +
		"c=IN IP4 10.9.9.9\r\n")

	sdp, err := parseSDP(body)
	if err != nil {
		t.Fatalf("parseSDP: %v", err)
	}
	if want := netip.MustParseAddr("10.9.9.9"); sdp.connection != want {
		t.Errorf("connection = %v, want media-level %v", sdp.connection, want)
	}
}

func TestParseSDPRejectedStream(t *testing.T) {
	body := []byte("c=IN IP4 10.0.1.1\r\n" +
		"m=audio 0 RTP/AVP 0\r\n" +
		"m=video 51372 RTP/AVP 31\r\n")

	sdp, err := parseSDP(body)
	if err != nil {
		t.Fatalf("parseSDP: %v", err)
	}
	if len(sdp.media) != 2 {
		t.Fatalf("media count = %d, want rejected stream kept in place", len(sdp.media))
	}
	if sdp.media[0].rtpPort != 0 {
		t.Errorf("rejected stream port = %d, want 0", sdp.media[0].rtpPort)
	}
}

func TestParseSDPPortCount(t *testing.T) {
	body := []byte("c=IN IP4 10.0.1.1\r\n" +
		"m=audio 49170/2 RTP/AVP 0\r\n")

	sdp, err := parseSDP(body)
	if err != nil {
		t.Fatalf("parseSDP: %v", err)
	}
	if len(sdp.media) != 1 {
		t.Fatalf("media count = %d, want 1", len(sdp.media))
	}
	if sdp.media[0].rtpPort != 49170 || sdp.media[0].rtcpPort != 49171 {
		t.Errorf("ports = %d/%d, want the first pair", sdp.media[0].rtpPort, sdp.media[0].rtcpPort)
	}
}

func TestParseSDPSecureProfile(t *testing.T) {
	body := []byte("c=IN IP4 10.0.1.1\r\n" +
		"m=audio 49170 RTP/SAVP 0\r\n" +
		"a=crypto:1 AES_CM_128_HMAC_SHA1_80 inline:WVNfX19zZW1jdGwgKCkgewkyMjA7fQp9CnVubGVz|2^20|1:4\r\n" +
		"m=video 51372 UDP/TLS/RTP/SAVPF 96\r\n")

	sdp, err := parseSDP(body)
	if err != nil {
		t.Fatalf("parseSDP: %v", err)
	}

	audio := sdp.media[0]
	if !audio.secure {
		t.Error("RTP/SAVP stream not marked secure")
	}
	if audio.crypto == nil {
		t.Fatal("crypto attribute not parsed")
	}
	if audio.crypto.authTagLen != 10 || audio.crypto.mkiLen != 4 || !audio.crypto.encrypted {
		t.Errorf("crypto = %+v, want auth 10, mki 4, encrypted", *audio.crypto)
	}

	video := sdp.media[1]
	if !video.secure {
		t.Error("DTLS-SRTP stream not marked secure")
	}
	if video.crypto != nil {
		t.Error("DTLS-SRTP stream should carry no crypto attribute")
	}
}

func TestParseSDPNoMedia(t *testing.T) {
	if _, err := parseSDP([]byte("v=0\r\nc=IN IP4 10.0.1.1\r\n")); err == nil {
		t.Fatal("expected error for SDP without media streams")
	}
}

func TestParseCryptoLine(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  *cryptoParams
	}{
		{
			name:  "sha1_80 with mki",
			value: "1 AES_CM_128_HMAC_SHA1_80 inline:abc|2^20|1:4",
			want:  &cryptoParams{authTagLen: 10, mkiLen: 4, encrypted: true},
		},
		{
			name:  "sha1_32",
			value: "2 AES_CM_128_HMAC_SHA1_32 inline:abc",
			want:  &cryptoParams{authTagLen: 4, encrypted: true},
		},
		{
			name:  "gcm",
			value: "1 AEAD_AES_128_GCM inline:abc",
			want:  &cryptoParams{authTagLen: 16, encrypted: true},
		},
		{
			name:  "unencrypted srtcp",
			value: "1 AES_CM_128_HMAC_SHA1_80 inline:abc|2^20|1:4 UNENCRYPTED_SRTCP",
			want:  &cryptoParams{authTagLen: 10, mkiLen: 4},
		},
		{
			name:  "lifetime only",
			value: "1 AES_CM_128_HMAC_SHA1_80 inline:abc|2^20",
			want:  &cryptoParams{authTagLen: 10, encrypted: true},
		},
		{
			name:  "too short",
			value: "1 AES_CM_128_HMAC_SHA1_80",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCryptoLine(tt.value)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("parseCryptoLine = %+v, want nil", *got)
				}
				return
			}
			if got == nil {
				t.Fatal("parseCryptoLine = nil")
			}
			if *got != *tt.want {
				t.Errorf("parseCryptoLine = %+v, want %+v", *got, *tt.want)
			}
		})
	}
}

func TestParseConnectionLine(t *testing.T) {
	if got := parseConnectionLine("IN IP4 192.168.1.100"); got != netip.MustParseAddr("192.168.1.100") {
		t.Errorf("IP4 = %v", got)
	}
	if got := parseConnectionLine("IN IP6 2001:db8::1"); got != netip.MustParseAddr("2001:db8::1") {
		t.Errorf("IP6 = %v", got)
	}
	if got := parseConnectionLine("IN IP4"); got.IsValid() {
		t.Errorf("short line = %v, want invalid", got)
	}
	if got := parseConnectionLine("IN IP4 not-an-ip"); got.IsValid() {
		t.Errorf("bad address = %v, want invalid", got)
	}
}

func TestExtractURI(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{`"Alice" <sip:alice@example.com>;tag=1234`, "sip:alice@example.com"},
		{`<sip:carol@chicago.com>`, "sip:carol@chicago.com"},
		{`sip:bob@example.com;tag=x`, "sip:bob@example.com"},
		{`sip:bob@example.com`, "sip:bob@example.com"},
		{`"Broken <sip:x`, ""},
		{``, ""},
	}
	for _, tt := range tests {
		if got := extractURI(tt.value); got != tt.want {
			t.Errorf("extractURI(%q) = %q, want %q", tt.value, got, tt.want)
		}
	}
}
