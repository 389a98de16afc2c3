package starkattest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Param is a named, typed function input, output or struct member.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Function is a contract entry point declared in the ABI.
type Function struct {
	Name            string  `json:"name"`
	Inputs          []Param `json:"inputs"`
	Outputs         []Param `json:"outputs"`
	StateMutability string  `json:"state_mutability,omitempty"`
}

// IsView reports whether the function is declared read-only.
func (f *Function) IsView() bool {
	return f.StateMutability == "view"
}

// Struct is a struct type declared in the ABI.
type Struct struct {
	Name    string  `json:"name"`
	Members []Param `json:"members"`
}

// EnumDef is an enum type declared in the ABI.
type EnumDef struct {
	Name     string  `json:"name"`
	Variants []Param `json:"variants"`
}

// ABI is a parsed Cairo contract interface.
type ABI struct {
	Functions map[string]*Function
	Structs   map[string]*Struct
	Enums     map[string]*EnumDef
}

type abiEntry struct {
	Type            string     `json:"type"`
	Name            string     `json:"name"`
	Inputs          []Param    `json:"inputs"`
	Outputs         []Param    `json:"outputs"`
	StateMutability string     `json:"state_mutability"`
	Members         []Param    `json:"members"`
	Variants        []Param    `json:"variants"`
	Items           []abiEntry `json:"items"`
}

// ParseABI parses a contract ABI. Sierra classes serve the ABI as a JSON
// string holding the array; both that form and the bare array are accepted.
func ParseABI(data []byte) (*ABI, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, fmt.Errorf("starkattest: parse ABI: %w", err)
		}
		data = []byte(inner)
	}

	var entries []abiEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("starkattest: parse ABI: %w", err)
	}

	a := &ABI{
		Functions: make(map[string]*Function),
		Structs:   make(map[string]*Struct),
		Enums:     make(map[string]*EnumDef),
	}
	a.add(entries)
	return a, nil
}

// MustParseABI is like ParseABI but panics on error.
func MustParseABI(abiJSON string) *ABI {
	parsed, err := ParseABI([]byte(abiJSON))
	if err != nil {
		panic(err)
	}
	return parsed
}

func (a *ABI) add(entries []abiEntry) {
	for _, e := range entries {
		switch e.Type {
		case "function":
			a.Functions[e.Name] = &Function{
				Name:            e.Name,
				Inputs:          e.Inputs,
				Outputs:         e.Outputs,
				StateMutability: e.StateMutability,
			}
		case "interface":
			a.add(e.Items)
		case "struct":
			a.Structs[e.Name] = &Struct{Name: e.Name, Members: e.Members}
		case "enum":
			a.Enums[e.Name] = &EnumDef{Name: e.Name, Variants: e.Variants}
		}
		// impl, event, constructor and l1_handler entries carry nothing callable.
	}
}

// Function looks up a function by name.
func (a *ABI) Function(name string) (*Function, bool) {
	f, ok := a.Functions[name]
	return f, ok
}

// FunctionNames returns all function names, sorted.
func (a *ABI) FunctionNames() []string {
	names := make([]string, 0, len(a.Functions))
	for name := range a.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
