package shaders

import (
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/spaghettifunk/tessera/engine/core"
)

type BindingKind int

const (
	TextureBinding BindingKind = iota
	UniformBinding
	AttributeBinding
)

func (k BindingKind) lockGroup() core.LockGroup {
	switch k {
	case TextureBinding:
		return core.TextureBindings
	case UniformBinding:
		return core.UniformBindings
	}
	return core.AttributeBindings
}

func (k BindingKind) String() string {
	switch k {
	case TextureBinding:
		return "texture"
	case UniformBinding:
		return "uniform"
	}
	return "attribute"
}

const UnresolvedLocation int32 = -1

// Binding maps a material key to a shader variable.
type Binding struct {
	Key      string
	Variable string
	Type     string
	Location int32
}

// LocationResolver picks the GPU location of a variable. index is the
// registration order inside its table.
type LocationResolver func(kind BindingKind, variable string, index int) int32

// SequentialLocations assigns locations in registration order.
func SequentialLocations(_ BindingKind, _ string, index int) int32 {
	return int32(index)
}

type bindingTable struct {
	vars  []Binding
	index map[string]int
	dirty bool
}

// BindingTables may be written from any goroutine. Each table has its own
// lock so a texture registration never blocks uniform lookups.
type BindingTables struct {
	locks   *core.LockPool
	tables  [3]*bindingTable
	version atomic.Uint64
}

func NewBindingTables(locks *core.LockPool) *BindingTables {
	bt := &BindingTables{locks: locks}
	for i := range bt.tables {
		bt.tables[i] = &bindingTable{index: make(map[string]int)}
	}
	return bt
}

func (bt *BindingTables) add(kind BindingKind, key, variable, typ string) {
	_ = bt.locks.SafeCall(kind.lockGroup(), func() error {
		t := bt.tables[kind]
		b := Binding{Key: key, Variable: variable, Type: typ, Location: UnresolvedLocation}
		if i, ok := t.index[key]; ok {
			if t.vars[i].Variable == variable && t.vars[i].Type == typ {
				return nil
			}
			t.vars[i] = b
		} else {
			t.index[key] = len(t.vars)
			t.vars = append(t.vars, b)
		}
		t.dirty = true
		bt.version.Add(1)
		return nil
	})
}

func (bt *BindingTables) AddTexture(key, variable string) {
	bt.add(TextureBinding, key, variable, "sampler2D")
}

func (bt *BindingTables) AddUniform(key, variable, typ string) {
	bt.add(UniformBinding, key, variable, typ)
}

func (bt *BindingTables) AddAttribute(key, variable, typ string) {
	bt.add(AttributeBinding, key, variable, typ)
}

// Remove drops a binding. Returns false when the key is unknown.
func (bt *BindingTables) Remove(kind BindingKind, key string) bool {
	removed := false
	_ = bt.locks.SafeCall(kind.lockGroup(), func() error {
		t := bt.tables[kind]
		i, ok := t.index[key]
		if !ok {
			return nil
		}
		t.vars = append(t.vars[:i], t.vars[i+1:]...)
		delete(t.index, key)
		for j := i; j < len(t.vars); j++ {
			t.index[t.vars[j].Key] = j
		}
		for j := range t.vars {
			t.vars[j].Location = UnresolvedLocation
		}
		t.dirty = true
		bt.version.Add(1)
		removed = true
		return nil
	})
	return removed
}

// Version changes on every registration.
func (bt *BindingTables) Version() uint64 {
	return bt.version.Load()
}

func (bt *BindingTables) IsDirty(kind BindingKind) bool {
	dirty := false
	_ = bt.locks.SafeCall(kind.lockGroup(), func() error {
		dirty = bt.tables[kind].dirty
		return nil
	})
	return dirty
}

// ResolveLocations fills unresolved locations of dirty tables. Called from
// the render thread before the bindings are used.
func (bt *BindingTables) ResolveLocations(resolve LocationResolver) int {
	if resolve == nil {
		resolve = SequentialLocations
	}
	resolved := 0
	for kind := range bt.tables {
		k := BindingKind(kind)
		_ = bt.locks.SafeCall(k.lockGroup(), func() error {
			t := bt.tables[k]
			if !t.dirty {
				return nil
			}
			for i := range t.vars {
				if t.vars[i].Location == UnresolvedLocation {
					t.vars[i].Location = resolve(k, t.vars[i].Variable, i)
					resolved++
				}
			}
			t.dirty = false
			return nil
		})
	}
	return resolved
}

func (bt *BindingTables) Lookup(kind BindingKind, key string) (Binding, bool) {
	var (
		b  Binding
		ok bool
	)
	_ = bt.locks.SafeCall(kind.lockGroup(), func() error {
		t := bt.tables[kind]
		var i int
		if i, ok = t.index[key]; ok {
			b = t.vars[i]
		}
		return nil
	})
	return b, ok
}

// Snapshot is an immutable copy of the three tables.
type Snapshot struct {
	Textures   []Binding
	Uniforms   []Binding
	Attributes []Binding
}

func (bt *BindingTables) Snapshot() Snapshot {
	copyTable := func(kind BindingKind) []Binding {
		var out []Binding
		_ = bt.locks.SafeCall(kind.lockGroup(), func() error {
			out = make([]Binding, len(bt.tables[kind].vars))
			copy(out, bt.tables[kind].vars)
			return nil
		})
		return out
	}
	return Snapshot{
		Textures:   copyTable(TextureBinding),
		Uniforms:   copyTable(UniformBinding),
		Attributes: copyTable(AttributeBinding),
	}
}

// Signature encodes the layout of a snapshot, locations included.
func (s Snapshot) Signature() string {
	var b strings.Builder
	write := func(prefix string, vars []Binding) {
		b.WriteString(prefix)
		for _, v := range vars {
			b.WriteString(v.Variable)
			b.WriteByte(':')
			b.WriteString(v.Type)
			b.WriteByte('@')
			b.WriteString(strconv.Itoa(int(v.Location)))
			b.WriteByte(';')
		}
	}
	write("t", s.Textures)
	write("u", s.Uniforms)
	write("a", s.Attributes)
	return b.String()
}
