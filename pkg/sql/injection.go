package sql

import (
	"fmt"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/ekaya-inc/ekaya-gateway/pkg/models"
)

// InjectionCheckResult describes a filter value libinjection flagged.
type InjectionCheckResult struct {
	Column      string // Filter column the value was supplied for
	Fingerprint string // libinjection fingerprint of the detected pattern
	Value       string
}

// CheckValueForInjection runs libinjection over a single filter value.
// Only strings can carry an injection payload; lists are checked element by element.
// Returns nil when the value is clean.
//
//	CheckValueForInjection("status", "shipped")               // nil
//	CheckValueForInjection("status", "'; DROP TABLE users--") // Fingerprint "s;T..."
func CheckValueForInjection(column string, value any) *InjectionCheckResult {
	switch v := value.(type) {
	case string:
		if isSQLi, fingerprint := libinjection.IsSQLi(v); isSQLi {
			return &InjectionCheckResult{
				Column:      column,
				Fingerprint: string(fingerprint),
				Value:       v,
			}
		}
	case []any:
		for _, item := range v {
			if result := CheckValueForInjection(column, item); result != nil {
				return result
			}
		}
	case []string:
		for _, item := range v {
			if result := CheckValueForInjection(column, item); result != nil {
				return result
			}
		}
	}
	return nil
}

// CheckFilters screens every filter value and returns one result per flagged filter.
//
// Values are always bound as parameters, so a flagged value could not alter the
// statement; screening rejects obvious probes before they reach a customer database.
func CheckFilters(filters []models.Filter) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for _, f := range filters {
		if result := CheckValueForInjection(f.Column, f.Value); result != nil {
			results = append(results, result)
		}
	}
	return results
}

func (r *InjectionCheckResult) Error() string {
	return fmt.Sprintf("value for %q looks like SQL injection (fingerprint %s)", r.Column, r.Fingerprint)
}
