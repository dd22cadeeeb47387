package flow

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/flowzip/internal/core"
)

func tcpTuple(src string, sport uint16) core.Tuple {
	return core.Tuple{
		EtherType: core.EtherTypeIPv4,
		Protocol:  6,
		Src:       netip.MustParseAddr(src),
		Dst:       netip.MustParseAddr("10.0.0.2"),
		SrcPort:   sport,
		DstPort:   80,
	}
}

func packetWithSeq(seq uint32) *core.Packet {
	p := &core.Packet{Headers: core.NewHeaderValues()}
	p.Headers[core.TCPSeq] = seq
	return p
}

func TestKeyLayout(t *testing.T) {
	k := NewKey(tcpTuple("10.0.0.1", 12345))
	buf := k.Bytes()

	assert.Equal(t, []byte{0x08, 0x00}, buf[0:2])
	assert.Equal(t, byte(6), buf[4])
	assert.Equal(t, []byte{0, 0, 0}, buf[5:8])
	assert.Equal(t, []byte{10, 0, 0, 1}, buf[8:12])
	assert.Equal(t, []byte{10, 0, 0, 2}, buf[12:16])
	assert.Equal(t, []byte{0x30, 0x39}, buf[16:18])
	assert.Equal(t, []byte{0x00, 0x50}, buf[18:20])
	assert.Equal(t, "0800/0 6 10.0.0.1:12345 > 10.0.0.2:80", k.String())
}

func TestKeyEquality(t *testing.T) {
	a := NewKey(tcpTuple("10.0.0.1", 12345))
	b := NewKey(tcpTuple("10.0.0.1", 12345))
	c := NewKey(tcpTuple("10.0.0.1", 12346))

	assert.Equal(t, a, b)
	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a, c)
}

func TestKeySeparatesEtherTypes(t *testing.T) {
	// An ARP request and an ICMP packet can share protocol byte and addresses.
	icmp := core.Tuple{EtherType: core.EtherTypeIPv4, Protocol: 1,
		Src: netip.MustParseAddr("192.168.1.1"), Dst: netip.MustParseAddr("192.168.1.254")}
	arp := icmp
	arp.EtherType = core.EtherTypeARP

	assert.NotEqual(t, NewKey(icmp), NewKey(arp))
}

func TestKeyVLAN(t *testing.T) {
	a := tcpTuple("10.0.0.1", 1)
	b := a
	b.VLAN = 100
	assert.NotEqual(t, NewKey(a), NewKey(b))
}

func TestTrackerHashCollision(t *testing.T) {
	tracker := NewTracker()
	ka := NewKey(tcpTuple("10.0.0.1", 1))
	kb := NewKey(tcpTuple("10.0.0.2", 2))
	// Force both keys into one bucket.
	kb.hash = ka.hash

	_, firstA := tracker.Observe(ka, packetWithSeq(1), 0)
	_, firstB := tracker.Observe(kb, packetWithSeq(2), 1)
	assert.True(t, firstA)
	assert.True(t, firstB)
	assert.Equal(t, 2, tracker.Len())

	fb, ok := tracker.Lookup(kb)
	require.True(t, ok)
	assert.Equal(t, uint32(2), fb.Current[core.TCPSeq])
	fa, ok := tracker.Lookup(ka)
	require.True(t, ok)
	assert.Equal(t, uint32(1), fa.Current[core.TCPSeq])
}

func TestTrackerObserve(t *testing.T) {
	tracker := NewTracker()
	key := NewKey(tcpTuple("10.0.0.1", 12345))

	_, ok := tracker.Lookup(key)
	assert.False(t, ok)

	f, isFirst := tracker.Observe(key, packetWithSeq(1000), 0)
	require.True(t, isFirst)
	assert.Equal(t, StateActive, f.State)
	assert.Equal(t, uint32(1000), f.First[core.TCPSeq])
	assert.Equal(t, uint32(1000), f.Previous[core.TCPSeq])
	assert.Equal(t, uint32(1000), f.Current[core.TCPSeq])

	f, isFirst = tracker.Observe(key, packetWithSeq(1500), 3)
	require.False(t, isFirst)
	assert.Equal(t, uint32(1000), f.Previous[core.TCPSeq])
	assert.Equal(t, uint32(1500), f.Current[core.TCPSeq])
	assert.Equal(t, uint32(0), f.PrevSeq)
	assert.Equal(t, uint32(3), f.LastSeq)
	assert.Equal(t, uint64(2), f.Packets)

	f, _ = tracker.Observe(key, packetWithSeq(1700), 5)
	assert.Equal(t, uint32(1500), f.Previous[core.TCPSeq])
	assert.Equal(t, uint32(3), f.PrevSeq)
	assert.Equal(t, uint32(1000), f.First[core.TCPSeq])
	assert.Equal(t, StateActive, f.State)
}

func TestTrackerIndependentFlows(t *testing.T) {
	tracker := NewTracker()
	ka := NewKey(tcpTuple("10.0.0.1", 1))
	kb := NewKey(tcpTuple("10.0.0.3", 1))

	_, firstA := tracker.Observe(ka, packetWithSeq(1), 0)
	_, firstB := tracker.Observe(kb, packetWithSeq(2), 1)
	assert.True(t, firstA)
	assert.True(t, firstB)
	assert.Equal(t, 2, tracker.Len())

	fa, _ := tracker.Lookup(ka)
	assert.Equal(t, uint32(1), fa.Current[core.TCPSeq])

	count := 0
	tracker.Range(func(f *Flow) bool {
		count++
		return false
	})
	assert.Equal(t, 1, count)
}
