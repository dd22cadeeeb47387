// Package filter selects which frames are compressed using a classic BPF
// program assembled from protocol names.
package filter

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/net/bpf"

	"firestige.xyz/flowzip/internal/core"
)

const (
	etherTypeOffset = 12
	etherTypeVLAN   = 0x8100
	etherTypeQinQ   = 0x88A8
	vlanTagLen      = 4
	ipProtoOffset   = etherTypeOffset + 2 + 9

	// maxVLANTags is how many stacked tags the program looks through.
	// Frames with deeper stacks are rejected by any non-empty filter.
	maxVLANTags = 2

	acceptLen = 0x40000
)

// Protocols maps accepted names to their EtherType and, for L4 classes,
// IP protocol number.
var Protocols = map[string]struct {
	EtherType uint16
	IPProto   uint8
}{
	"ip":   {core.EtherTypeIPv4, 0},
	"arp":  {core.EtherTypeARP, 0},
	"icmp": {core.EtherTypeIPv4, 1},
	"tcp":  {core.EtherTypeIPv4, 6},
	"udp":  {core.EtherTypeIPv4, 17},
}

// Filter matches Ethernet frames. A nil Filter or one compiled from an
// empty list accepts everything.
type Filter struct {
	protocols []string
	program   []bpf.Instruction
	vm        *bpf.VM
}

type target int

const (
	next target = iota
	accept
	reject
)

type assembler struct {
	insns []bpf.Instruction
	jumps map[int][2]target
}

func (a *assembler) emit(ins ...bpf.Instruction) {
	a.insns = append(a.insns, ins...)
}

func (a *assembler) jump(cond bpf.JumpTest, val uint32, onTrue, onFalse target) {
	a.jumps[len(a.insns)] = [2]target{onTrue, onFalse}
	a.emit(bpf.JumpIf{Cond: cond, Val: val})
}

// finish appends the reject and accept returns and resolves jump targets.
func (a *assembler) finish() ([]bpf.Instruction, error) {
	rejectAt := len(a.insns)
	acceptAt := rejectAt + 1
	a.emit(bpf.RetConstant{Val: 0}, bpf.RetConstant{Val: acceptLen})

	skip := func(from int, to target) (uint8, error) {
		var n int
		switch to {
		case accept:
			n = acceptAt - from - 1
		case reject:
			n = rejectAt - from - 1
		}
		if n > 255 {
			return 0, fmt.Errorf("filter program too long")
		}
		return uint8(n), nil
	}

	for at, tg := range a.jumps {
		j := a.insns[at].(bpf.JumpIf)
		var err error
		if j.SkipTrue, err = skip(at, tg[0]); err != nil {
			return nil, err
		}
		if j.SkipFalse, err = skip(at, tg[1]); err != nil {
			return nil, err
		}
		a.insns[at] = j
	}
	return a.insns, nil
}

// Compile builds a filter accepting frames of any of the named classes.
func Compile(protocols []string) (*Filter, error) {
	f := &Filter{}
	for _, p := range protocols {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if _, ok := Protocols[p]; !ok {
			return nil, fmt.Errorf("%w: unknown filter protocol %q", core.ErrConfigInvalid, p)
		}
		if !slices.Contains(f.protocols, p) {
			f.protocols = append(f.protocols, p)
		}
	}
	if len(f.protocols) == 0 {
		return f, nil
	}

	a := &assembler{jumps: make(map[int][2]target)}
	// X holds the total VLAN tag length, A the inner EtherType.
	a.emit(
		bpf.LoadConstant{Dst: bpf.RegX, Val: 0},
		bpf.LoadAbsolute{Off: etherTypeOffset, Size: 2},
	)
	const tagInsns = 4
	for i := 1; i <= maxVLANTags; i++ {
		rest := uint8((maxVLANTags - i) * tagInsns)
		a.emit(
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: etherTypeVLAN, SkipTrue: 1},
			bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: etherTypeQinQ, SkipTrue: 2 + rest},
			bpf.LoadConstant{Dst: bpf.RegX, Val: uint32(i * vlanTagLen)},
			bpf.LoadIndirect{Off: etherTypeOffset, Size: 2},
		)
	}

	var l4 []uint8
	for _, p := range f.protocols {
		proto := Protocols[p]
		if proto.IPProto == 0 {
			a.jump(bpf.JumpEqual, uint32(proto.EtherType), accept, next)
		} else {
			l4 = append(l4, proto.IPProto)
		}
	}
	if len(l4) > 0 {
		a.jump(bpf.JumpEqual, uint32(core.EtherTypeIPv4), next, reject)
		a.emit(bpf.LoadIndirect{Off: ipProtoOffset, Size: 1})
		for _, proto := range l4 {
			a.jump(bpf.JumpEqual, uint32(proto), accept, next)
		}
	}

	program, err := a.finish()
	if err != nil {
		return nil, err
	}
	vm, err := bpf.NewVM(program)
	if err != nil {
		return nil, fmt.Errorf("failed to load filter program: %w", err)
	}
	f.program, f.vm = program, vm
	return f, nil
}

// Match reports whether the frame passes the filter.
func (f *Filter) Match(frame []byte) bool {
	if f == nil || f.vm == nil {
		return true
	}
	n, err := f.vm.Run(frame)
	return err == nil && n > 0
}

// Protocols returns the normalised class names the filter accepts.
func (f *Filter) Protocols() []string {
	if f == nil {
		return nil
	}
	return f.protocols
}

// Program returns the assembled instructions in kernel form.
func (f *Filter) Program() ([]bpf.RawInstruction, error) {
	if f == nil || len(f.program) == 0 {
		return nil, nil
	}
	return bpf.Assemble(f.program)
}

// String renders the program one instruction per line.
func (f *Filter) String() string {
	if f == nil || len(f.program) == 0 {
		return "accept all"
	}
	var sb strings.Builder
	for i, ins := range f.program {
		fmt.Fprintf(&sb, "%03d: %v\n", i, ins)
	}
	return sb.String()
}
