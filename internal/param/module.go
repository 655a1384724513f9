package param

// Module is a header/implementation pair and the parameters extracted from
// it. Base names the module whose parameters are inherited.
type Module struct {
	Name       string
	HeaderPath string
	ImplPath   string
	Class      string
	Parent     string
	Params     List
	Base       *Module
}

// Inherited returns every parameter provided by the base chain, nearest
// ancestor first
func (m *Module) Inherited() List {
	var chain []List
	seen := map[*Module]bool{m: true}
	for b := m.Base; b != nil && !seen[b]; b = b.Base {
		seen[b] = true
		chain = append(chain, b.Params)
	}
	return Union(chain...)
}

// RegistryClass is the generated registry class name for a driver class
func RegistryClass(class string) string {
	return class + "ParamSet"
}

// ParentRegistryClass is the registry class the generated one derives from
func ParentRegistryClass(parent string) string {
	if parent == "" || parent == "asynPortDriver" {
		return "asynParamSet"
	}
	return RegistryClass(parent)
}
