package perm

import "math/big"

// stabChain is a base and strong generating set built with the deterministic
// Schreier-Sims procedure. Level i holds generators of the pointwise
// stabilizer of the first i base points together with the transversal of
// its base point's orbit.
type stabChain struct {
	n      int
	levels []*stabLevel
}

type stabLevel struct {
	base  int
	gens  []Perm
	orbit []int
	// trans[p] maps base to p; nil outside the orbit.
	trans []Perm
}

func newStabLevel(n, base int) *stabLevel {
	lv := &stabLevel{base: base, orbit: []int{base}, trans: make([]Perm, n)}
	lv.trans[base] = Identity(n)
	return lv
}

func newStabChain(n int, gens []Perm) *stabChain {
	c := &stabChain{n: n}
	for _, g := range gens {
		c.sift(0, g.Extend(n))
	}
	return c
}

func (c *stabChain) order() *big.Int {
	out := big.NewInt(1)
	for _, lv := range c.levels {
		out.Mul(out, big.NewInt(int64(len(lv.orbit))))
	}
	return out
}

func (c *stabChain) contains(g Perm) bool {
	if len(g) > c.n {
		for i := c.n; i < len(g); i++ {
			if g[i] != i {
				return false
			}
		}
		g = g[:c.n]
	}
	residue, _ := c.strip(0, g.Extend(c.n))
	return residue.IsIdentity()
}

// strip divides g by transversal elements from level start downwards and
// returns the residue with the level where it could not be divided further.
func (c *stabChain) strip(start int, g Perm) (Perm, int) {
	h := g
	for j := start; j < len(c.levels); j++ {
		lv := c.levels[j]
		t := lv.trans[h[lv.base]]
		if t == nil {
			return h, j
		}
		h = h.Mul(t.Inverse())
	}
	return h, len(c.levels)
}

// sift adds g to the chain below level start when it is not already a
// member. The residue joins every level from the one it stopped at back up
// to start, deepest first, so each level's generators include those of the
// levels below it.
func (c *stabChain) sift(start int, g Perm) {
	h, stop := c.strip(start, g)
	if h.IsIdentity() {
		return
	}
	if stop == len(c.levels) {
		c.levels = append(c.levels, newStabLevel(c.n, h.firstMoved()))
	}
	for k := stop; k >= start; k-- {
		c.addGenerator(k, h)
	}
}

func (c *stabChain) addGenerator(i int, g Perm) {
	lv := c.levels[i]
	lv.gens = append(lv.gens, g)

	type edge struct {
		point int
		gen   Perm
	}
	queue := make([]edge, 0, len(lv.orbit))
	for _, point := range lv.orbit {
		queue = append(queue, edge{point: point, gen: g})
	}
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]

		image := e.gen[e.point]
		path := lv.trans[e.point].Mul(e.gen)
		if lv.trans[image] == nil {
			lv.trans[image] = path
			lv.orbit = append(lv.orbit, image)
			for _, s := range lv.gens {
				queue = append(queue, edge{point: image, gen: s})
			}
			continue
		}
		schreier := path.Mul(lv.trans[image].Inverse())
		if !schreier.IsIdentity() {
			c.sift(i+1, schreier)
		}
	}
}
