package regress

// VarComps is an ordered mapping from variance-component name to estimated
// variance. Order is insertion order, so full and reduced model estimates
// line up by name rather than by position.
type VarComps struct {
	names []string
	vals  map[string]float64
}

func NewVarComps() *VarComps {
	return &VarComps{vals: make(map[string]float64)}
}

// Set stores the variance for name, appending the name on first use.
func (v *VarComps) Set(name string, val float64) {
	if _, ok := v.vals[name]; !ok {
		v.names = append(v.names, name)
	}
	v.vals[name] = val
}

// Get returns the variance for name.
func (v *VarComps) Get(name string) (float64, bool) {
	val, ok := v.vals[name]
	return val, ok
}

// Names returns the component names in insertion order.
func (v *VarComps) Names() []string {
	return append([]string(nil), v.names...)
}

func (v *VarComps) Len() int { return len(v.names) }

// Total returns the sum of all component variances.
func (v *VarComps) Total() float64 {
	var t float64
	for _, nm := range v.names {
		t += v.vals[nm]
	}
	return t
}

func (v *VarComps) Clone() *VarComps {
	out := NewVarComps()
	for _, nm := range v.names {
		out.Set(nm, v.vals[nm])
	}
	return out
}
