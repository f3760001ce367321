package catalog

import (
	"fmt"
	"strings"
)

type ValidationIssue struct {
	// Ref is a logical reference path like:
	// - config.json
	// - build_bundles[0].repos[1].repo
	// - repo_info.core.sub_project_dependencies.HDPS
	Ref     string
	Message string
	// Err carries the typed error behind the issue, when there is one.
	Err error
}

type ValidationResult struct {
	Path   string
	Issues []ValidationIssue
}

func (r *ValidationResult) add(ref, message string) {
	r.Issues = append(r.Issues, ValidationIssue{Ref: ref, Message: message})
}

func (r *ValidationResult) addErr(ref string, err error) {
	r.Issues = append(r.Issues, ValidationIssue{Ref: ref, Message: err.Error(), Err: err})
}

// ConfigError rejects a whole configuration document. It lists every issue
// found; Error reports the first one.
type ConfigError struct {
	Result ValidationResult
}

func (e *ConfigError) Error() string {
	if len(e.Result.Issues) == 0 {
		return fmt.Sprintf("invalid config %s", e.Result.Path)
	}
	first := e.Result.Issues[0]
	msg := fmt.Sprintf("invalid config: %s: %s", first.Ref, first.Message)
	if more := len(e.Result.Issues) - 1; more > 0 {
		msg += fmt.Sprintf(" (and %d more)", more)
	}
	return msg
}

// Unwrap exposes the typed errors behind individual issues so errors.As
// can find an *UnresolvedReferenceError inside a rejected document.
func (e *ConfigError) Unwrap() []error {
	var errs []error
	for _, issue := range e.Result.Issues {
		if issue.Err != nil {
			errs = append(errs, issue.Err)
		}
	}
	return errs
}

type RefKind string

const (
	RefBundle RefKind = "bundle"
	RefRepo   RefKind = "repo"
	RefBinary RefKind = "binary"
)

// UnresolvedReferenceError reports a name that is absent from its catalog section.
type UnresolvedReferenceError struct {
	Kind RefKind
	Name string
	// Ref is where the name was used; empty for names given on the command line.
	Ref string
}

func (e *UnresolvedReferenceError) Error() string {
	section := ""
	switch e.Kind {
	case RefBundle:
		section = SectionBundles
	case RefRepo:
		section = SectionRepos
	case RefBinary:
		section = SectionBinaries
	}
	msg := fmt.Sprintf("%s %q not found in %s", e.Kind, e.Name, section)
	if strings.TrimSpace(e.Ref) != "" {
		msg = fmt.Sprintf("%s (referenced by %s)", msg, e.Ref)
	}
	return msg
}
