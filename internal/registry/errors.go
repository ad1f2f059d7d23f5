package registry

import (
	"fmt"
	"strings"

	"github.com/ocrd-go/resmgr/internal/manifest"
)

// SchemaError reports a resource list that fails validation on load. It is
// never repaired automatically.
type SchemaError struct {
	Origin string
	Issues []manifest.ValidationIssue
}

func (e *SchemaError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		msgs = append(msgs, issue.String())
	}
	return fmt.Sprintf("resource list %s is invalid: %s", e.Origin, strings.Join(msgs, "; "))
}
