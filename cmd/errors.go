package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	ExitCodeSuccess     = 0
	ExitCodeFailure     = 1
	ExitCodeConfigError = 2
)

type ValidationError struct {
	Sections map[string]*ValidationSection
	ExitCode int
}

type ValidationSection struct {
	Issues        []string
	Solutions     []string
	SettingAdvice []string
}

func newValidationError() *ValidationError {
	return &ValidationError{
		Sections: make(map[string]*ValidationSection),
		ExitCode: ExitCodeConfigError,
	}
}

func (e *ValidationError) section(name string) *ValidationSection {
	s, ok := e.Sections[name]
	if !ok {
		s = &ValidationSection{}
		e.Sections[name] = s
	}
	return s
}

func (e *ValidationError) orNil() *ValidationError {
	for _, s := range e.Sections {
		if len(s.Issues) > 0 {
			return e
		}
	}
	return nil
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Sections))
	for name := range e.Sections {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("🔴 Configuration Errors\n")
	sb.WriteString("══════════════════════\n\n")

	for _, sectionName := range names {
		section := e.Sections[sectionName]
		if len(section.Issues) == 0 {
			continue
		}

		sb.WriteString(fmt.Sprintf("■ %s\n", sectionName))
		sb.WriteString(strings.Repeat("─", len(sectionName)+2) + "\n")
		sb.WriteString("  Issue(s):\n")

		for _, item := range section.Issues {
			sb.WriteString(fmt.Sprintf("    • %s\n", item))
		}

		if len(section.Solutions) > 0 {
			sb.WriteString("\n  How to fix:\n")
			for _, solution := range section.Solutions {
				sb.WriteString(fmt.Sprintf("    • %s\n", solution))
			}
		}

		if len(section.SettingAdvice) > 0 {
			sb.WriteString("\n  Ways to provide values:\n")
			for _, advice := range section.SettingAdvice {
				sb.WriteString(fmt.Sprintf("    • %s\n", advice))
			}
		}

		sb.WriteString("\n")
	}

	sb.WriteString("══════════════════════\n")
	return sb.String()
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.ExitCode
	}
	return ExitCodeFailure
}
