package compress

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"

	"firestige.xyz/flowzip/internal/core"
	"firestige.xyz/flowzip/internal/core/decoder"
	"firestige.xyz/flowzip/internal/flow"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type tcpOpts struct {
	src     net.IP
	sport   uint16
	ipid    uint16
	ttl     uint8
	seq     uint32
	ack     uint32
	syn     bool
	payload int
}

func buildTCP(t *testing.T, s tcpOpts) []byte {
	t.Helper()
	if s.src == nil {
		s.src = net.IP{10, 0, 0, 1}
	}
	if s.ttl == 0 {
		s.ttl = 64
	}
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF},
		DstMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      s.ttl,
		Id:       s.ipid,
		Flags:    layers.IPv4DontFragment,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    s.src,
		DstIP:    net.IP{10, 0, 0, 2},
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(s.sport),
		DstPort: 80,
		Seq:     s.seq,
		Ack:     s.ack,
		SYN:     s.syn,
		ACK:     !s.syn,
		Window:  65535,
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(make([]byte, s.payload))))
	return buf.Bytes()
}

func buildUDP(t *testing.T, sport uint16, ipid uint16, payload int) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0x01},
		DstMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x66},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      32,
		Id:       ipid,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IP{192, 168, 0, 10},
		DstIP:    net.IP{192, 168, 0, 20},
	}
	udp := &layers.UDP{SrcPort: layers.UDPPort(sport), DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(make([]byte, payload))))
	return buf.Bytes()
}

func decodeFrame(t *testing.T, data []byte, ts time.Time) *core.Packet {
	t.Helper()
	pkt, err := decoder.NewStandardDecoder(decoder.Config{}).Decode(core.RawPacket{
		Data:       data,
		Timestamp:  ts,
		CaptureLen: uint32(len(data)),
		OrigLen:    uint32(len(data)),
	})
	require.NoError(t, err)
	return &pkt
}

// syntheticPacket builds a packet with only the given header fields set.
func syntheticPacket(ts time.Time, sport uint16, fields map[core.HeaderID]uint32) *core.Packet {
	p := &core.Packet{
		Timestamp: ts,
		Data:      make([]byte, 54),
		Tuple: core.Tuple{
			EtherType: core.EtherTypeIPv4,
			Protocol:  6,
			SrcPort:   sport,
			DstPort:   80,
		},
		Layout:  core.Layout{L3Offset: 14, L4Offset: 34, HeaderLen: 54},
		Headers: core.NewHeaderValues(),
	}
	for id, v := range fields {
		p.Headers[id] = v
	}
	return p
}

type streams struct {
	ts, first, diffs bytes.Buffer
}

func (s *streams) compressor(cfg Config) *Compressor {
	return NewCompressor(&s.ts, &s.first, &s.diffs, cfg)
}

func (s *streams) decompressor(t *testing.T) *Decompressor {
	t.Helper()
	d, err := NewDecompressor(bytes.NewReader(s.ts.Bytes()), bytes.NewReader(s.first.Bytes()),
		bytes.NewReader(s.diffs.Bytes()), decoder.NewStandardDecoder(decoder.Config{}))
	require.NoError(t, err)
	return d
}

func readAll(t *testing.T, d *Decompressor) []*Output {
	t.Helper()
	var out []*Output
	for {
		o, err := d.ReadPacket()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, o)
	}
}

func flowKeyOf(p *core.Packet) flow.Key {
	return flow.NewKey(p.Tuple)
}
