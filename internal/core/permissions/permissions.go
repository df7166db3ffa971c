package permissions

import (
	"fmt"
	"sort"
	"strings"
)

// GlobalMark marca un permiso global: nunca se le antepone el prefijo del
// módulo.
const GlobalMark = "@"

// Definition es la forma declarativa: strings requeridos y grupos "any-of".
type Definition struct {
	Required []string
	Optional [][]string
}

// Of arma una Definition a partir de una lista mixta: cada string es
// requerido y cada []string es un grupo donde alcanza con uno.
//
//	Of("get")                               // requiere get
//	Of([]string{"update", "updateMySelf"})  // update o updateMySelf
//	Of("update", "create")                  // ambos
func Of(items ...any) Definition {
	var def Definition
	for _, item := range items {
		switch v := item.(type) {
		case string:
			def.Required = append(def.Required, v)
		case []string:
			def.Optional = append(def.Optional, append([]string{}, v...))
		default:
			panic(fmt.Sprintf("permissions: unsupported definition item %T", item))
		}
	}
	return def
}

// Permissions es una Definition ya expandida con el prefijo del módulo.
type Permissions struct {
	Prefix   string     `json:"prefix"`
	Required []string   `json:"required"`
	Optional [][]string `json:"optional"`
}

// Build antepone prefix + "." a cada entrada que no empiece con "@".
func Build(def Definition, prefix string) Permissions {
	p := Permissions{
		Prefix:   prefix,
		Required: make([]string, 0, len(def.Required)),
		Optional: make([][]string, 0, len(def.Optional)),
	}
	for _, name := range def.Required {
		p.Required = append(p.Required, qualify(name, prefix))
	}
	for _, group := range def.Optional {
		g := make([]string, 0, len(group))
		for _, name := range group {
			g = append(g, qualify(name, prefix))
		}
		p.Optional = append(p.Optional, g)
	}
	return p
}

func qualify(name, prefix string) string {
	if strings.HasPrefix(name, GlobalMark) || prefix == "" {
		return name
	}
	return prefix + "." + name
}

// Check devuelve lo que falta: los requeridos ausentes y, por cada grupo
// opcional sin ningún miembro presente, el grupo como "a | b".
// Un grupo vacío se considera satisfecho.
func (p Permissions) Check(has func(string) bool) []string {
	var missing []string
	for _, name := range p.Required {
		if !has(name) {
			missing = append(missing, name)
		}
	}
	for _, group := range p.Optional {
		if len(group) == 0 {
			continue
		}
		ok := false
		for _, name := range group {
			if has(name) {
				ok = true
				break
			}
		}
		if !ok {
			missing = append(missing, strings.Join(group, " | "))
		}
	}
	return missing
}

// Keys lista todas las keys mencionadas, sin repetir.
func (p Permissions) Keys() []string {
	seen := map[string]struct{}{}
	for _, name := range p.Required {
		seen[name] = struct{}{}
	}
	for _, group := range p.Optional {
		for _, name := range group {
			seen[name] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
