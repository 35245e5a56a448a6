/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Entity describes how documents of one Go type are persisted.
type Entity struct {
	// Name is the logical type name, stored as EntityType in single-table backends.
	Name string
	// Collection is the default collection (or table prefix) for the type.
	Collection string
	// IndexMap holds key templates such as "PK": "PERSON#{_id}".
	IndexMap map[string]string
}

var (
	entities = make(map[reflect.Type]Entity)
	names    = make(map[string]reflect.Type)
	mu       sync.RWMutex
)

func typeOf[T any]() reflect.Type {
	var zero T
	return reflect.TypeOf(zero)
}

// RegisterEntity associates a Go type T with its persistence description.
// Registering the same name for two different types panics to prevent accidental overrides.
func RegisterEntity[T any](e Entity) {
	t := typeOf[T]()

	mu.Lock()
	defer mu.Unlock()

	if other, exists := names[e.Name]; exists && other != t {
		panic(fmt.Sprintf("registry: entity name %q already registered for %s", e.Name, other))
	}
	if old, ok := entities[t]; ok && old.Name != e.Name {
		delete(names, old.Name)
	}
	if e.IndexMap != nil {
		e.IndexMap = copyMap(e.IndexMap)
	}
	entities[t] = e
	names[e.Name] = t
}

// Lookup returns the registered description of T.
func Lookup[T any]() (Entity, bool) {
	mu.RLock()
	defer mu.RUnlock()

	e, ok := entities[typeOf[T]()]
	return e, ok
}

// EntityName returns the registered name of T, or the Go type name when T is unregistered.
func EntityName[T any]() string {
	if e, ok := Lookup[T](); ok && e.Name != "" {
		return e.Name
	}
	return typeOf[T]().Name()
}

// CollectionName returns the registered collection of T, if any.
func CollectionName[T any]() (string, bool) {
	e, ok := Lookup[T]()
	if !ok || e.Collection == "" {
		return "", false
	}
	return e.Collection, true
}

// GetIndexMap retrieves the index map for type T, if any.
func GetIndexMap[T any]() (map[string]string, bool) {
	e, ok := Lookup[T]()
	if !ok || len(e.IndexMap) == 0 {
		return nil, false
	}
	return copyMap(e.IndexMap), true
}

// Names lists registered entity names in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()

	res := make([]string, 0, len(names))
	for n := range names {
		res = append(res, n)
	}
	sort.Strings(res)
	return res
}

func copyMap(m map[string]string) map[string]string {
	res := make(map[string]string, len(m))
	for k, v := range m {
		res[k] = v
	}
	return res
}
