/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"github.com/suparena/peoplestore/storagemodels"
)

// gsiMatch is an equality condition answerable by a GSI partition key lookup.
type gsiMatch struct {
	config GSIConfig
	// key is the rendered partition key value, e.g. "NAME#Mary"
	key string
	// condition is the index of the condition in the filter
	condition int
}

// findGSI returns the first equality condition of filter whose field is the only
// macro of a GSI partition key template, e.g. Eq("name", "Mary") for "NAME#{name}".
func findGSI(indexMap map[string]string, filter storagemodels.Filter) (gsiMatch, bool) {
	for _, config := range gsiConfigs() {
		template, ok := indexMap[config.PartitionKeyName]
		if !ok {
			continue
		}

		macros := macroPattern.FindAllStringSubmatch(template, -1)
		if len(macros) != 1 {
			continue
		}
		field := macros[0][1]

		for i, c := range filter {
			if c.Op != storagemodels.OpEq || c.Field != field {
				continue
			}
			value, ok := c.Value.(string)
			if !ok || value == "" {
				continue
			}
			return gsiMatch{
				config:    config,
				key:       macroPattern.ReplaceAllLiteralString(template, value),
				condition: i,
			}, true
		}
	}

	return gsiMatch{}, false
}
