package decoder

import (
	"errors"
	"net/netip"
	"testing"
	"time"

	"firestige.xyz/flowzip/internal/core"
)

// Helper function to create a simple IPv4 UDP packet
func makeSimpleUDPPacket() []byte {
	packet := make([]byte, 42) // Ethernet + IPv4 + UDP headers

	// Ethernet header (14 bytes)
	// Dst MAC: 00:11:22:33:44:55
	packet[0], packet[1], packet[2] = 0x00, 0x11, 0x22
	packet[3], packet[4], packet[5] = 0x33, 0x44, 0x55
	// Src MAC: AA:BB:CC:DD:EE:FF
	packet[6], packet[7], packet[8] = 0xAA, 0xBB, 0xCC
	packet[9], packet[10], packet[11] = 0xDD, 0xEE, 0xFF
	// EtherType: IPv4 (0x0800)
	packet[12], packet[13] = 0x08, 0x00

	// IPv4 header (20 bytes)
	packet[14] = 0x45                   // Version 4, IHL 5
	packet[15] = 0x00                   // DSCP, ECN
	packet[16], packet[17] = 0x00, 0x1C // Total Length: 28 bytes
	packet[18], packet[19] = 0x12, 0x34 // Identification
	packet[20], packet[21] = 0x00, 0x00 // Flags, Fragment Offset
	packet[22] = 0x40                   // TTL: 64
	packet[23] = 0x11                   // Protocol: UDP (17)
	packet[24], packet[25] = 0x00, 0x00 // Checksum (not calculated)
	// Src IP: 192.168.1.1
	packet[26], packet[27], packet[28], packet[29] = 192, 168, 1, 1
	// Dst IP: 192.168.1.2
	packet[30], packet[31], packet[32], packet[33] = 192, 168, 1, 2

	// UDP header (8 bytes)
	packet[34], packet[35] = 0x13, 0x88 // Src Port: 5000
	packet[36], packet[37] = 0x13, 0x89 // Dst Port: 5001
	packet[38], packet[39] = 0x00, 0x08 // Length: 8 bytes
	packet[40], packet[41] = 0x00, 0x00 // Checksum (not calculated)

	return packet
}

// Helper function to create an IPv4 TCP packet with a 4-byte payload
func makeSimpleTCPPacket() []byte {
	packet := make([]byte, 58) // Ethernet + IPv4 + TCP headers + payload

	copy(packet[0:12], []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF})
	packet[12], packet[13] = 0x08, 0x00

	packet[14] = 0x45
	packet[15] = 0x10                   // TOS
	packet[16], packet[17] = 0x00, 0x2C // Total Length: 44 bytes
	packet[18], packet[19] = 0x00, 0x64 // Identification: 100
	packet[20], packet[21] = 0x40, 0x00 // Don't fragment
	packet[22] = 0x40                   // TTL: 64
	packet[23] = 0x06                   // Protocol: TCP
	packet[24], packet[25] = 0xBE, 0xEF // Checksum
	packet[26], packet[27], packet[28], packet[29] = 10, 0, 0, 1
	packet[30], packet[31], packet[32], packet[33] = 10, 0, 0, 2

	packet[34], packet[35] = 0x30, 0x39 // Src Port: 12345
	packet[36], packet[37] = 0x00, 0x50 // Dst Port: 80
	packet[38], packet[39], packet[40], packet[41] = 0x00, 0x00, 0x03, 0xE8 // Seq: 1000
	packet[42], packet[43], packet[44], packet[45] = 0x00, 0x00, 0x00, 0x07 // Ack: 7
	packet[46] = 0x50                   // Data Offset: 5
	packet[47] = 0x18                   // Flags: ACK + PSH
	packet[48], packet[49] = 0x20, 0x00 // Window
	packet[50], packet[51] = 0x12, 0x34 // Checksum
	packet[52], packet[53] = 0x00, 0x00 // Urgent Pointer
	copy(packet[54:], []byte{0xDE, 0xAD, 0xBE, 0xEF})

	return packet
}

// Helper function to create an ARP request
func makeARPPacket() []byte {
	packet := make([]byte, 42)
	copy(packet[0:6], []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
	copy(packet[6:12], []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF})
	packet[12], packet[13] = 0x08, 0x06

	packet[14], packet[15] = 0x00, 0x01 // Hardware type: Ethernet
	packet[16], packet[17] = 0x08, 0x00 // Protocol type: IPv4
	packet[18], packet[19] = 6, 4
	packet[20], packet[21] = 0x00, 0x01 // Request
	copy(packet[22:28], []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF})
	copy(packet[28:32], []byte{192, 168, 1, 1})
	copy(packet[38:42], []byte{192, 168, 1, 254})
	return packet
}

func TestStandardDecoderDecode(t *testing.T) {
	decoder := NewStandardDecoder(Config{})

	raw := core.RawPacket{
		Data:       makeSimpleUDPPacket(),
		Timestamp:  time.Now(),
		CaptureLen: 42,
		OrigLen:    42,
	}

	decoded, err := decoder.Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if decoded.Tuple.EtherType != core.EtherTypeIPv4 {
		t.Errorf("Expected EtherType 0x0800, got 0x%04x", decoded.Tuple.EtherType)
	}
	if decoded.Tuple.Protocol != 17 {
		t.Errorf("Expected protocol 17 (UDP), got %d", decoded.Tuple.Protocol)
	}
	expectedSrcIP := netip.MustParseAddr("192.168.1.1")
	if decoded.Tuple.Src != expectedSrcIP {
		t.Errorf("Expected SrcIP %v, got %v", expectedSrcIP, decoded.Tuple.Src)
	}
	if decoded.Tuple.SrcPort != 5000 || decoded.Tuple.DstPort != 5001 {
		t.Errorf("Expected ports 5000/5001, got %d/%d", decoded.Tuple.SrcPort, decoded.Tuple.DstPort)
	}

	h := decoded.Headers
	if h[core.IPHL] != 5 || h[core.IPLen] != 28 || h[core.IPID] != 0x1234 || h[core.IPTTL] != 64 {
		t.Errorf("Unexpected IP fields: hl=%d len=%d id=%#x ttl=%d", h[core.IPHL], h[core.IPLen], h[core.IPID], h[core.IPTTL])
	}
	if h[core.UDPSrc] != 5000 || h[core.UDPLen] != 8 {
		t.Errorf("Unexpected UDP fields: src=%d len=%d", h[core.UDPSrc], h[core.UDPLen])
	}
	if h.IsSet(core.TCPSeq) {
		t.Errorf("TCP_SEQ should be unset for UDP")
	}

	if decoded.Layout.L3Offset != 14 || decoded.Layout.L4Offset != 34 || decoded.Layout.HeaderLen != 42 {
		t.Errorf("Unexpected layout: %+v", decoded.Layout)
	}
	if decoded.InferredLen() != 42 {
		t.Errorf("Expected inferred length 42, got %d", decoded.InferredLen())
	}
}

func TestStandardDecoderTCP(t *testing.T) {
	decoder := NewStandardDecoder(Config{})

	decoded, err := decoder.Decode(core.RawPacket{Data: makeSimpleTCPPacket()})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	h := decoded.Headers
	if h[core.TCPSeq] != 1000 || h[core.TCPAck] != 7 {
		t.Errorf("Expected seq/ack 1000/7, got %d/%d", h[core.TCPSeq], h[core.TCPAck])
	}
	if h[core.TCPOff] != 5 || h[core.TCPFlags] != 0x18 || h[core.TCPWin] != 0x2000 {
		t.Errorf("Unexpected TCP fields: off=%d flags=%#x win=%#x", h[core.TCPOff], h[core.TCPFlags], h[core.TCPWin])
	}
	if h[core.IPOff] != 0x4000 || h[core.IPTOS] != 0x10 || h[core.IPCsum] != 0xBEEF {
		t.Errorf("Unexpected IP fields: off=%#x tos=%#x csum=%#x", h[core.IPOff], h[core.IPTOS], h[core.IPCsum])
	}
	if decoded.Layout.HeaderLen != 54 {
		t.Errorf("Expected header length 54, got %d", decoded.Layout.HeaderLen)
	}
	if len(decoded.HeaderBytes()) != 54 {
		t.Errorf("Expected 54 header bytes, got %d", len(decoded.HeaderBytes()))
	}
}

func TestStandardDecoderARP(t *testing.T) {
	decoder := NewStandardDecoder(Config{})

	decoded, err := decoder.Decode(core.RawPacket{Data: makeARPPacket()})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Tuple.EtherType != core.EtherTypeARP {
		t.Errorf("Expected EtherType ARP, got 0x%04x", decoded.Tuple.EtherType)
	}
	if decoded.Tuple.Protocol != 1 {
		t.Errorf("Expected opcode 1, got %d", decoded.Tuple.Protocol)
	}
	if decoded.Tuple.Dst != netip.MustParseAddr("192.168.1.254") {
		t.Errorf("Unexpected target address %v", decoded.Tuple.Dst)
	}
	for id := core.HeaderID(0); id < core.NumHeaders; id++ {
		if decoded.Headers.IsSet(id) {
			t.Errorf("%s should be unset for ARP", id)
		}
	}
}

func TestStandardDecoderRawIP(t *testing.T) {
	decoder := NewStandardDecoder(Config{RawIP: true})

	decoded, err := decoder.Decode(core.RawPacket{Data: makeSimpleUDPPacket()[14:]})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Layout.L3Offset != 0 || decoded.Layout.HeaderLen != 28 {
		t.Errorf("Unexpected layout: %+v", decoded.Layout)
	}
}

func TestStandardDecoderFragment(t *testing.T) {
	decoder := NewStandardDecoder(Config{})
	packet := makeSimpleUDPPacket()
	packet[20], packet[21] = 0x00, 0x10 // fragment offset 16

	decoded, err := decoder.Decode(core.RawPacket{Data: packet})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Headers.IsSet(core.UDPSrc) {
		t.Errorf("non-initial fragment should not carry UDP fields")
	}
	if decoded.Layout.HeaderLen != 34 {
		t.Errorf("Expected header length 34, got %d", decoded.Layout.HeaderLen)
	}
}

func TestStandardDecoderUnsupported(t *testing.T) {
	decoder := NewStandardDecoder(Config{})
	packet := makeSimpleUDPPacket()
	packet[12], packet[13] = 0x86, 0xDD // IPv6

	_, err := decoder.Decode(core.RawPacket{Data: packet})
	if !errors.Is(err, core.ErrUnsupportedProto) {
		t.Errorf("Expected ErrUnsupportedProto, got %v", err)
	}
}

func TestStandardDecoderEmptyPacket(t *testing.T) {
	decoder := NewStandardDecoder(Config{})

	raw := core.RawPacket{
		Data:       []byte{},
		Timestamp:  time.Now(),
		CaptureLen: 0,
		OrigLen:    0,
	}

	_, err := decoder.Decode(raw)
	if err == nil {
		t.Error("Expected error for empty packet, got nil")
	}
}

func TestStandardDecoderTooShort(t *testing.T) {
	decoder := NewStandardDecoder(Config{})

	raw := core.RawPacket{
		Data:       makeSimpleTCPPacket()[:40], // TCP header cut short
		Timestamp:  time.Now(),
		CaptureLen: 40,
		OrigLen:    58,
	}

	_, err := decoder.Decode(raw)
	if !errors.Is(err, core.ErrPacketTooShort) {
		t.Errorf("Expected ErrPacketTooShort, got %v", err)
	}
}

func BenchmarkStandardDecoderDecode(b *testing.B) {
	decoder := NewStandardDecoder(Config{})
	packet := makeSimpleUDPPacket()

	raw := core.RawPacket{
		Data:       packet,
		Timestamp:  time.Now(),
		CaptureLen: uint32(len(packet)),
		OrigLen:    uint32(len(packet)),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := decoder.Decode(raw)
		if err != nil {
			b.Fatal(err)
		}
	}
}
