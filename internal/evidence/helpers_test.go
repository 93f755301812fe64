package evidence_test

import (
	"fmt"
	"strings"

	"github.com/signalnine/skillcheck/internal/cases"
)

func sprintf(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}

func lines(l ...string) string {
	return strings.Join(l, "\n")
}

func boolPtr(b bool) *bool { return &b }

func xunitCase() *cases.Case {
	return &cases.Case{ID: "xunit", Prompt: "write tests", ExpectedSkill: "dotnet-xunit"}
}
