/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"fmt"
	"sort"

	storeerrors "github.com/suparena/peoplestore/errors"
)

// GSIConfig holds the configuration for GSI key mappings
type GSIConfig struct {
	// IndexName is the actual GSI name in DynamoDB (e.g., "GSI1")
	IndexName string
	// PartitionKeyName is the partition key attribute of the GSI; its template
	// is looked up in the index map under the same name (e.g., "GSI1PK")
	PartitionKeyName string
	// SortKeyName is the sort key attribute of the GSI (e.g., "GSI1SK"); an index map
	// with the partition key template must carry this template too
	SortKeyName string
}

// DefaultGSIConfigs holds the default GSI configurations
var DefaultGSIConfigs = map[string]GSIConfig{
	"GSI1": {
		IndexName:        "GSI1",
		PartitionKeyName: "GSI1PK",
		SortKeyName:      "GSI1SK",
	},
}

// gsiConfigs returns the configured GSIs ordered by index name.
func gsiConfigs() []GSIConfig {
	names := make([]string, 0, len(DefaultGSIConfigs))
	for name := range DefaultGSIConfigs {
		names = append(names, name)
	}
	sort.Strings(names)

	res := make([]GSIConfig, 0, len(names))
	for _, name := range names {
		res = append(res, DefaultGSIConfigs[name])
	}
	return res
}

// checkGSIKeys reports index maps that set a GSI partition key without its sort key,
// since DynamoDB leaves such items out of the index.
func checkGSIKeys(indexMap map[string]string) error {
	for _, config := range gsiConfigs() {
		if indexMap[config.PartitionKeyName] != "" && indexMap[config.SortKeyName] == "" {
			return storeerrors.NewValidationError("indexMap",
				fmt.Sprintf("%s template requires a %s template", config.PartitionKeyName, config.SortKeyName))
		}
	}
	return nil
}
