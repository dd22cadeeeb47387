package decoder

import (
	"bytes"
	"testing"

	"firestige.xyz/flowzip/internal/core"
)

func TestPackRoundTrip(t *testing.T) {
	decoder := NewStandardDecoder(Config{})

	for name, frame := range map[string][]byte{
		"tcp": makeSimpleTCPPacket(),
		"udp": makeSimpleUDPPacket(),
		"arp": makeARPPacket(),
	} {
		t.Run(name, func(t *testing.T) {
			pkt, err := decoder.Decode(core.RawPacket{Data: frame})
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			want := append([]byte(nil), pkt.HeaderBytes()...)

			clone := pkt.Clone()
			if err := Pack(clone); err != nil {
				t.Fatalf("Pack failed: %v", err)
			}
			if !bytes.Equal(clone.Data, want) {
				t.Errorf("Pack changed header bytes:\n got %x\nwant %x", clone.Data, want)
			}
		})
	}
}

func TestPackPatchesFields(t *testing.T) {
	decoder := NewStandardDecoder(Config{})
	pkt, err := decoder.Decode(core.RawPacket{Data: makeSimpleTCPPacket()})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	next := pkt.Clone()
	next.Headers[core.TCPSeq] = 1500
	next.Headers[core.IPID] = 101
	next.Headers[core.IPTTL] = 63
	next.Headers[core.TCPFlags] = 0x11
	if err := Pack(next); err != nil {
		t.Fatalf("Pack failed: %v", err)
	}

	redecoded, err := decoder.Decode(core.RawPacket{Data: next.Data})
	if err != nil {
		t.Fatalf("Decode of packed frame failed: %v", err)
	}
	if redecoded.Headers != next.Headers {
		t.Errorf("Headers differ after pack:\n got %v\nwant %v", redecoded.Headers, next.Headers)
	}
	if pkt.Headers[core.TCPSeq] != 1000 {
		t.Errorf("original packet was modified")
	}
}

func TestPackGrowsTCPHeader(t *testing.T) {
	decoder := NewStandardDecoder(Config{})
	pkt, err := decoder.Decode(core.RawPacket{Data: makeSimpleTCPPacket()})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	next := pkt.Clone()
	next.Headers[core.TCPOff] = 8
	if err := Pack(next); err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	if next.Layout.HeaderLen != 14+20+32 {
		t.Errorf("Expected header length 66, got %d", next.Layout.HeaderLen)
	}

	redecoded, err := decoder.Decode(core.RawPacket{Data: next.Data})
	if err != nil {
		t.Fatalf("Decode of packed frame failed: %v", err)
	}
	if redecoded.Headers[core.TCPOff] != 8 {
		t.Errorf("Expected data offset 8, got %d", redecoded.Headers[core.TCPOff])
	}
}

func TestPackRejectsUnsupported(t *testing.T) {
	pkt := &core.Packet{Data: make([]byte, 40), Tuple: core.Tuple{EtherType: 0x86DD}}
	if err := Pack(pkt); err == nil {
		t.Error("Expected error for IPv6, got nil")
	}
}
