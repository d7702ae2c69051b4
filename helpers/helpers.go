package helpers

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Errors collects failures keyed by the component that produced them.
type Errors map[string]error

// Add records err under key, ignoring nil errors.
func (errs Errors) Add(key string, err error) {
	if err != nil {
		errs[key] = err
	}
}

func ErrorsToError(errs Errors) error {
	if len(errs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(errs))
	for key := range errs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, key := range keys {
		if i > 0 {
			sb.WriteString("; ")
		}
		fmt.Fprintf(&sb, "[%s] %s", key, errs[key].Error())
	}
	return errors.New(sb.String())
}
