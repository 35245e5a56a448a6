/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package match evaluates storagemodels filters, sort keys and projections
// against decoded documents, for backends that cannot run them server-side.
package match

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/suparena/peoplestore/storagemodels"
)

// Doc is a decoded document keyed by wire field name.
type Doc = map[string]any

// Normalize converts driver-specific values to a small set of comparable forms:
// nil, float64, string, bool, []any, time and other values are kept as is.
func Normalize(v any) any {
	switch v := v.(type) {
	case nil:
		return nil
	case primitive.ObjectID:
		return v.Hex()
	case primitive.A:
		return normalizeSlice([]any(v))
	case []any:
		return normalizeSlice(v)
	case []string:
		res := make([]any, len(v))
		for i, s := range v {
			res[i] = s
		}
		return res
	case int:
		return float64(v)
	case int8:
		return float64(v)
	case int16:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint:
		return float64(v)
	case uint8:
		return float64(v)
	case uint16:
		return float64(v)
	case uint32:
		return float64(v)
	case uint64:
		return float64(v)
	case float32:
		return float64(v)
	case primitive.Null:
		return nil
	default:
		return v
	}
}

func normalizeSlice(s []any) []any {
	res := make([]any, len(s))
	for i, e := range s {
		res[i] = Normalize(e)
	}
	return res
}

// rank orders values of different kinds: missing and null values come first.
func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case float64:
		return 1
	case string:
		return 2
	case []any:
		return 3
	case bool:
		return 4
	default:
		return 5
	}
}

// Compare orders two normalized values, returning -1, 0 or +1.
func Compare(a, b any) int {
	if ra, rb := rank(a), rank(b); ra != rb {
		return cmpInt(ra, rb)
	}

	switch a := a.(type) {
	case nil:
		return 0
	case float64:
		bf := b.(float64)
		switch {
		case a < bf:
			return -1
		case a > bf:
			return 1
		}
		return 0
	case string:
		bs := b.(string)
		switch {
		case a < bs:
			return -1
		case a > bs:
			return 1
		}
		return 0
	case bool:
		bb := b.(bool)
		switch {
		case a == bb:
			return 0
		case !a:
			return -1
		}
		return 1
	case []any:
		bs := b.([]any)
		for i := 0; i < len(a) && i < len(bs); i++ {
			if c := Compare(a[i], bs[i]); c != 0 {
				return c
			}
		}
		return cmpInt(len(a), len(bs))
	default:
		if reflect.DeepEqual(a, b) {
			return 0
		}
		return bytes.Compare([]byte(fmt.Sprint(a)), []byte(fmt.Sprint(b)))
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Matches reports whether doc satisfies every condition of filter.
func Matches(doc Doc, filter storagemodels.Filter) bool {
	for _, c := range filter {
		if !matchCondition(doc, c) {
			return false
		}
	}
	return true
}

func matchCondition(doc Doc, c storagemodels.Condition) bool {
	want := Normalize(c.Value)
	actual, present := doc[c.Field]
	got := Normalize(actual)

	switch c.Op {
	case storagemodels.OpEq:
		if !present {
			return want == nil
		}
		if arr, ok := got.([]any); ok {
			if _, wantArr := want.([]any); wantArr {
				return Compare(got, want) == 0
			}
			return containsValue(arr, want)
		}
		return Compare(got, want) == 0

	case storagemodels.OpContains:
		arr, ok := got.([]any)
		if !ok {
			return false
		}
		return containsValue(arr, want)
	}

	return false
}

func containsValue(arr []any, v any) bool {
	for _, e := range arr {
		if Compare(e, v) == 0 {
			return true
		}
	}
	return false
}

// Less orders a before b by keys; earlier keys take precedence.
func Less(a, b Doc, keys []storagemodels.SortField) bool {
	for _, k := range keys {
		c := Compare(Normalize(a[k.Field]), Normalize(b[k.Field]))
		if k.Descending {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
	}
	return false
}

// Sort stably orders items by keys, reading fields through doc.
func Sort[E any](items []E, doc func(E) Doc, keys []storagemodels.SortField) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		return Less(doc(items[i]), doc(items[j]), keys)
	})
}

// Apply filters, sorts and limits items according to q. Projection is left to
// the caller since it depends on how items are decoded; see Project.
func Apply[E any](items []E, doc func(E) Doc, q *storagemodels.Query) []E {
	if q == nil {
		return items
	}

	res := make([]E, 0, len(items))
	for _, it := range items {
		if Matches(doc(it), q.Filter) {
			res = append(res, it)
		}
	}

	Sort(res, doc, q.Sort)

	if q.HasLimit() && int64(len(res)) > q.Limit {
		res = res[:q.Limit]
	}
	return res
}

// Project returns a shallow copy of doc without the excluded fields.
func Project(doc Doc, exclude []string) Doc {
	res := make(Doc, len(doc))
	for k, v := range doc {
		res[k] = v
	}
	for _, f := range exclude {
		delete(res, f)
	}
	return res
}

// ToDoc encodes v with bson and decodes it back as a Doc.
func ToDoc(v any) (Doc, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return Doc(doc), nil
}

// FromDoc decodes doc into out through bson.
func FromDoc(doc Doc, out any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, out)
}
