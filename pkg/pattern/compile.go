package pattern

type opcode uint8

const (
	opLabel opcode = iota // consume one label equal to inst.label
	opAny                 // consume any label
	opClass               // consume a label in (or, negated, outside) inst.set
	opSplit               // epsilon to x and y
	opNop                 // epsilon to x
	opMatch
)

type inst struct {
	op     opcode
	label  string
	set    map[string]struct{}
	negate bool
	x, y   int
}

func (in *inst) consumes(label string) bool {
	switch in.op {
	case opLabel:
		return in.label == label
	case opAny:
		return true
	case opClass:
		_, ok := in.set[label]
		return ok != in.negate
	}
	return false
}

// maxInsts bounds the size of a compiled program. Nested repetitions
// multiply, so the size is checked on the tree before compiling.
const maxInsts = 1 << 16

// size returns the number of instructions compile emits for n, saturating
// just above maxInsts.
func size(n *node) int {
	sat := func(v int) int { return min(v, maxInsts+1) }
	switch n.kind {
	case nodeConcat, nodeAlt:
		total := 0
		for _, s := range n.subs {
			total = sat(total + size(s))
		}
		if n.kind == nodeAlt {
			total = sat(total + len(n.subs) - 1)
		}
		return total
	case nodeRepeat:
		s := size(n.subs[0])
		total := sat(n.min * s)
		if n.max == unbounded {
			total = sat(total + s + 1)
		} else {
			total = sat(total + (n.max-n.min)*(s+1))
		}
		return max(total, 1)
	}
	return 1
}

// hole is an unpatched successor slot of an instruction.
type hole struct {
	pc int
	y  bool
}

type frag struct {
	start int
	out   []hole
}

type compiler struct {
	insts []inst
}

func (c *compiler) emit(in inst) int {
	in.x, in.y = -1, -1
	c.insts = append(c.insts, in)
	return len(c.insts) - 1
}

func (c *compiler) patch(hs []hole, target int) {
	for _, h := range hs {
		if h.y {
			c.insts[h.pc].y = target
		} else {
			c.insts[h.pc].x = target
		}
	}
}

func (c *compiler) single(in inst) frag {
	pc := c.emit(in)
	return frag{start: pc, out: []hole{{pc: pc}}}
}

func (c *compiler) compile(n *node) frag {
	switch n.kind {
	case nodeLabel:
		return c.single(inst{op: opLabel, label: n.label})
	case nodeAny:
		return c.single(inst{op: opAny})
	case nodeClass:
		set := make(map[string]struct{}, len(n.set))
		for _, l := range n.set {
			set[l] = struct{}{}
		}
		return c.single(inst{op: opClass, set: set, negate: n.negate})
	case nodeConcat:
		f := c.compile(n.subs[0])
		for _, s := range n.subs[1:] {
			g := c.compile(s)
			c.patch(f.out, g.start)
			f = frag{start: f.start, out: g.out}
		}
		return f
	case nodeAlt:
		f := c.compile(n.subs[0])
		for _, s := range n.subs[1:] {
			g := c.compile(s)
			pc := c.emit(inst{op: opSplit})
			c.insts[pc].x, c.insts[pc].y = f.start, g.start
			f = frag{start: pc, out: append(f.out, g.out...)}
		}
		return f
	case nodeRepeat:
		return c.repeat(n.subs[0], n.min, n.max)
	}
	return c.single(inst{op: opNop})
}

func (c *compiler) star(sub *node) frag {
	pc := c.emit(inst{op: opSplit})
	f := c.compile(sub)
	c.insts[pc].x = f.start
	c.patch(f.out, pc)
	return frag{start: pc, out: []hole{{pc: pc, y: true}}}
}

func (c *compiler) quest(sub *node) frag {
	pc := c.emit(inst{op: opSplit})
	f := c.compile(sub)
	c.insts[pc].x = f.start
	return frag{start: pc, out: append(f.out, hole{pc: pc, y: true})}
}

// repeat expands sub{min,max} into min mandatory copies followed by either a
// star or max-min optional copies.
func (c *compiler) repeat(sub *node, min, max int) frag {
	var parts []frag
	for range min {
		parts = append(parts, c.compile(sub))
	}
	if max == unbounded {
		parts = append(parts, c.star(sub))
	} else {
		for range max - min {
			parts = append(parts, c.quest(sub))
		}
	}
	if len(parts) == 0 {
		return c.single(inst{op: opNop})
	}
	f := parts[0]
	for _, g := range parts[1:] {
		c.patch(f.out, g.start)
		f = frag{start: f.start, out: g.out}
	}
	return f
}
