package typeinfo

import (
	"reflect"
)

// goType adapts a reflect.Type. Struct embedding stands in for inheritance:
// the first embedded struct field other than the type itself is the parent.
type goType struct {
	t reflect.Type
}

// Of returns the effective type of v. Pointers are collapsed to the pointed-to
// type, and a Type value is returned as is so type-level calls can pass the
// type itself as the receiver.
func Of(v any) Type {
	switch x := v.(type) {
	case nil:
		return nil
	case Type:
		return x
	case reflect.Type:
		return fromReflect(x)
	}
	return fromReflect(reflect.TypeOf(v))
}

// TypeFor returns the Type of T.
func TypeFor[T any]() Type {
	return fromReflect(reflect.TypeFor[T]())
}

func fromReflect(t reflect.Type) Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return goType{t: t}
}

func (g goType) Name() string {
	if g.t.Name() == "" {
		return ""
	}
	if g.t.PkgPath() == "" {
		return g.t.Name()
	}
	return g.t.PkgPath() + "." + g.t.Name()
}

func (g goType) Inheritable() bool {
	return g.t.Kind() == reflect.Struct
}

func (g goType) Parent() (Type, error) {
	if g.t.Kind() != reflect.Struct {
		return nil, nil
	}
	for i := 0; i < g.t.NumField(); i++ {
		field := g.t.Field(i)
		if !field.Anonymous {
			continue
		}
		ft := field.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct && ft != g.t {
			return goType{t: ft}, nil
		}
	}
	return nil, nil
}

func (g goType) String() string {
	return g.t.String()
}
