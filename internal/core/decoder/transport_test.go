package decoder

import (
	"errors"
	"testing"

	"firestige.xyz/flowzip/internal/core"
)

func TestDecodeUDP(t *testing.T) {
	// Minimal UDP header (8 bytes)
	data := []byte{
		0x13, 0x88, // Src Port: 5000
		0x13, 0x89, // Dst Port: 5001
		0x00, 0x0C, // Length: 12 bytes (8 header + 4 payload)
		0x55, 0x66, // Checksum
		0x01, 0x02, 0x03, 0x04, // Payload
	}

	pkt := newIPPacket(data)
	if err := decodeUDP(pkt, data); err != nil {
		t.Fatalf("decodeUDP failed: %v", err)
	}

	if pkt.Tuple.SrcPort != 5000 {
		t.Errorf("Expected SrcPort 5000, got %d", pkt.Tuple.SrcPort)
	}
	if pkt.Tuple.DstPort != 5001 {
		t.Errorf("Expected DstPort 5001, got %d", pkt.Tuple.DstPort)
	}
	if pkt.Headers[core.UDPLen] != 12 {
		t.Errorf("Expected UDP length 12, got %d", pkt.Headers[core.UDPLen])
	}
	if pkt.Headers[core.UDPCsum] != 0x5566 {
		t.Errorf("Expected checksum 0x5566, got %#x", pkt.Headers[core.UDPCsum])
	}
	if pkt.Layout.HeaderLen != 8 {
		t.Errorf("Expected header length 8, got %d", pkt.Layout.HeaderLen)
	}
}

func TestDecodeTCP(t *testing.T) {
	// TCP header with 4 bytes of options
	data := []byte{
		0x13, 0x88, // Src Port: 5000
		0x13, 0x89, // Dst Port: 5001
		0x00, 0x00, 0x00, 0x01, // Seq Num: 1
		0x00, 0x00, 0x00, 0x02, // Ack Num: 2
		0x60,       // Data Offset: 6 (24 bytes)
		0x12,       // Flags: SYN + ACK
		0x20, 0x00, // Window Size
		0x00, 0x00, // Checksum
		0x00, 0x09, // Urgent Pointer
		0x02, 0x04, 0x05, 0xB4, // MSS option
		0x01, 0x02, // Payload
	}

	pkt := newIPPacket(data)
	if err := decodeTCP(pkt, data); err != nil {
		t.Fatalf("decodeTCP failed: %v", err)
	}

	h := pkt.Headers
	if h[core.TCPSeq] != 1 || h[core.TCPAck] != 2 {
		t.Errorf("Expected seq/ack 1/2, got %d/%d", h[core.TCPSeq], h[core.TCPAck])
	}
	if h[core.TCPOff] != 6 {
		t.Errorf("Expected data offset 6, got %d", h[core.TCPOff])
	}
	if h[core.TCPFlags] != 0x12 {
		t.Errorf("Expected flags 0x12, got %#x", h[core.TCPFlags])
	}
	if h[core.TCPUrp] != 9 {
		t.Errorf("Expected urgent pointer 9, got %d", h[core.TCPUrp])
	}
	if pkt.Layout.HeaderLen != 24 {
		t.Errorf("Expected header length 24, got %d", pkt.Layout.HeaderLen)
	}
}

func TestDecodeTCPTooShort(t *testing.T) {
	data := make([]byte, 22)
	data[12] = 0x60 // claims 24 bytes
	if err := decodeTCP(newIPPacket(data), data); !errors.Is(err, core.ErrPacketTooShort) {
		t.Errorf("Expected ErrPacketTooShort, got %v", err)
	}
}
