package auth

import (
	"errors"

	"github.com/baechuer/natours-auth/internal/domain"
)

func domainCode(err error) string {
	if err == nil {
		return ""
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "non_domain_error"
}

// auditor builds the audit callback for one use case invocation.
func (s *Service) auditor(action string, base map[string]string) func(result string, err error, extra map[string]string) {
	return func(result string, err error, extra map[string]string) {
		fields := make(map[string]string, len(base)+len(extra)+2)
		for k, v := range base {
			fields[k] = v
		}
		fields["result"] = result
		if err != nil {
			fields["error_code"] = domainCode(err)
		}
		for k, v := range extra {
			fields[k] = v
		}
		s.audit(action, fields)
	}
}
