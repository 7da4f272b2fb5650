package model

// Param is one trainable tensor stored flat in row-major order, with the
// gradient buffer of the same length.
type Param struct {
	Name    string
	Shape   []int
	Value   []float64
	Grad    []float64
	NoDecay bool
}

func newParam(name string, noDecay bool, shape ...int) *Param {
	size := 1
	for _, d := range shape {
		size *= d
	}

	return &Param{
		Name:    name,
		Shape:   shape,
		Value:   make([]float64, size),
		Grad:    make([]float64, size),
		NoDecay: noDecay,
	}
}

func (p *Param) Size() int {
	return len(p.Value)
}

func (p *Param) ZeroGrad() {
	clear(p.Grad)
}

func zeroGrads(params []*Param) {
	for _, p := range params {
		p.ZeroGrad()
	}
}
