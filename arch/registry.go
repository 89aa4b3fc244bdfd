package arch

import "fmt"

// Registry resolves architectures by ELF machine value, chip name, or LLVM
// target triple. Lookups keep a one entry most-recently-used cache, since a
// debugger session hits the same architecture over and over.
type Registry struct {
	all []*Architecture

	byMachine map[uint32]*Architecture
	byName    map[string]*Architecture
	byTriple  map[string]*Architecture

	lastMachine *Architecture
	lastName    *Architecture
	lastTriple  *Architecture
}

// NewRegistry returns a registry holding every supported architecture.
func NewRegistry() *Registry {
	r := &Registry{
		byMachine: map[uint32]*Architecture{},
		byName:    map[string]*Architecture{},
		byTriple:  map[string]*Architecture{},
	}
	for _, a := range supported() {
		r.all = append(r.all, a)
		r.byMachine[a.ElfMachine] = a
		r.byName[a.Name] = a
		r.byTriple[a.Triple] = a
	}
	return r
}

// All returns every registered architecture in registration order.
func (r *Registry) All() []*Architecture { return r.all }

// FindMachine returns the architecture with the given EF_AMDGPU_MACH value.
func (r *Registry) FindMachine(machine uint32) (*Architecture, error) {
	if a := r.lastMachine; a != nil && a.ElfMachine == machine {
		return a, nil
	}
	a, ok := r.byMachine[machine]
	if !ok {
		return nil, fmt.Errorf("%w: elf machine %#x",
			ErrUnsupportedMachine, machine)
	}
	r.lastMachine = a
	return a, nil
}

// FindName returns the architecture with the given chip name.
func (r *Registry) FindName(name string) (*Architecture, error) {
	if a := r.lastName; a != nil && a.Name == name {
		return a, nil
	}
	a, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMachine, name)
	}
	r.lastName = a
	return a, nil
}

// FindTriple returns the architecture with the given LLVM target triple.
func (r *Registry) FindTriple(triple string) (*Architecture, error) {
	if a := r.lastTriple; a != nil && a.Triple == triple {
		return a, nil
	}
	a, ok := r.byTriple[triple]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMachine, triple)
	}
	r.lastTriple = a
	return a, nil
}

func supported() []*Architecture {
	var all []*Architecture
	all = append(all, gfx9Architectures()...)
	all = append(all, gfx10Architectures()...)
	all = append(all, gfx11Architectures()...)
	all = append(all, gfx12Architectures()...)
	return all
}
