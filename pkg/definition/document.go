package definition

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Document is the plain nested form of a Definition handed to storage and
// serialization layers.
type Document struct {
	Group   string           `json:"group" yaml:"group"`
	Title   string           `json:"title" yaml:"title"`
	Sources []SourceDocument `json:"sources" yaml:"sources"`
}

type SourceDocument struct {
	Name         string               `json:"name" yaml:"name"`
	Dependencies []DependencyDocument `json:"dependencies" yaml:"dependencies"`
	Modules      []ModuleDocument     `json:"modules" yaml:"modules"`
}

type DependencyDocument struct {
	Name      string             `json:"name" yaml:"name"`
	MethodIDs []MethodIDDocument `json:"method_ids" yaml:"method_ids"`
}

type MethodIDDocument struct {
	Name  string   `json:"name" yaml:"name"`
	Kind  string   `json:"kind" yaml:"kind"`
	Paths []string `json:"paths" yaml:"paths"`
}

type ModuleDocument struct {
	Name string `json:"name" yaml:"name"`
}

// Document converts the definition to its plain form. All lists are sorted
// by natural key and never nil.
func (d *Definition) Document() Document {
	doc := Document{
		Group:   d.Group,
		Title:   d.Title,
		Sources: make([]SourceDocument, 0, len(d.sources)),
	}

	for _, s := range d.Sources() {
		sd := SourceDocument{
			Name:         s.name,
			Dependencies: make([]DependencyDocument, 0, len(s.dependencies)),
			Modules:      make([]ModuleDocument, 0, len(s.modules)),
		}
		for _, dep := range s.Dependencies() {
			dd := DependencyDocument{
				Name:      dep.name,
				MethodIDs: make([]MethodIDDocument, 0, len(dep.methodIDs)),
			}
			for _, m := range dep.MethodIDs() {
				dd.MethodIDs = append(dd.MethodIDs, MethodIDDocument{
					Name:  m.name,
					Kind:  string(m.kind),
					Paths: m.Paths(),
				})
			}
			sd.Dependencies = append(sd.Dependencies, dd)
		}
		for _, m := range s.Modules() {
			sd.Modules = append(sd.Modules, ModuleDocument{Name: m.Name})
		}
		doc.Sources = append(doc.Sources, sd)
	}

	return doc
}

// Equal compares two documents after normalizing them through a Definition,
// so ordering and duplicate paths do not matter.
func (doc Document) Equal(other Document) bool {
	a, errA := FromDocument(doc)
	b, errB := FromDocument(other)
	if errA != nil || errB != nil {
		return false
	}
	return reflect.DeepEqual(a.Document(), b.Document())
}

// FromDocument rebuilds a Definition from its plain form.
func FromDocument(doc Document) (*Definition, error) {
	def := New(doc.Group, doc.Title)

	for _, sd := range doc.Sources {
		if _, exists := def.sources[sd.Name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateSource, sd.Name)
		}
		source := def.FindOrBuildSource(sd.Name)
		for _, md := range sd.Modules {
			source.AddModule(md.Name)
		}
		for _, dd := range sd.Dependencies {
			dep := source.FindOrBuildDependency(dd.Name)
			if dep == nil {
				// self references carry no information
				continue
			}
			for _, mid := range dd.MethodIDs {
				kind, err := ParseKind(mid.Kind)
				if err != nil {
					return nil, fmt.Errorf("source %q, dependency %q, method %q: %w", sd.Name, dd.Name, mid.Name, err)
				}
				dep.FindOrBuildMethodID(mid.Name, kind).AddPath(mid.Paths...)
			}
		}
	}

	return def, nil
}

// MarshalJSON encodes the definition as its Document.
func (d *Definition) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Document())
}

// UnmarshalJSON decodes a Document into the definition.
func (d *Definition) UnmarshalJSON(data []byte) error {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	def, err := FromDocument(doc)
	if err != nil {
		return err
	}
	*d = *def
	return nil
}
