// Package validate checks a generated or loaded State against its
// environment schema: structure, solvability within the step budget, and the
// reward incentives. Validation never returns an error; every finding is an
// Issue in the Report.
package validate

import (
	"fmt"
	"sort"
)

type Category string

const (
	CategorySolvability  Category = "SOLVABILITY"
	CategoryReward       Category = "REWARD"
	CategoryStructure    Category = "STRUCTURE"
	CategoryResource     Category = "RESOURCE"
	CategoryStepBudget   Category = "STEP_BUDGET"
	CategoryFileError    Category = "FILE_ERROR"
	CategoryExploitation Category = "EXPLOITATION"
	CategoryConfig       Category = "CONFIG"
	CategoryEncoding     Category = "ENCODING"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

type Issue struct {
	Category Category `json:"category"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Path     string   `json:"path,omitempty"`
}

func (i Issue) String() string {
	if i.Path != "" {
		return fmt.Sprintf("%s %s at %s: %s", i.Severity, i.Category, i.Path, i.Message)
	}
	return fmt.Sprintf("%s %s: %s", i.Severity, i.Category, i.Message)
}

func errorf(cat Category, path, format string, args ...any) Issue {
	return Issue{Category: cat, Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, args...)}
}

func warnf(cat Category, path, format string, args ...any) Issue {
	return Issue{Category: cat, Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, args...)}
}

// Report is the outcome of a validation run. Valid is true iff no issue has
// error severity.
type Report struct {
	Valid  bool               `json:"valid"`
	Issues []Issue            `json:"issues"`
	Stats  map[string]float64 `json:"stats,omitempty"`
}

func newReport() Report {
	return Report{Valid: true, Issues: []Issue{}, Stats: map[string]float64{}}
}

func (r *Report) add(issues ...Issue) {
	for _, is := range issues {
		r.Issues = append(r.Issues, is)
		if is.Severity == SeverityError {
			r.Valid = false
		}
	}
}

func (r *Report) stats(m map[string]float64) {
	for k, v := range m {
		r.Stats[k] = v
	}
}

// FileError is the report for a level that could not be read at all.
func FileError(path string, err error) Report {
	r := newReport()
	r.add(errorf(CategoryFileError, path, "%v", err))
	return r
}

func (r Report) Errors() []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Severity == SeverityError {
			out = append(out, is)
		}
	}
	return out
}

func (r Report) Warnings() []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Severity == SeverityWarning {
			out = append(out, is)
		}
	}
	return out
}

// Has reports whether any issue of cat is present, at any severity.
func (r Report) Has(cat Category) bool {
	for _, is := range r.Issues {
		if is.Category == cat {
			return true
		}
	}
	return false
}

// Categories lists the distinct categories present, sorted.
func (r Report) Categories() []Category {
	seen := map[Category]bool{}
	var out []Category
	for _, is := range r.Issues {
		if !seen[is.Category] {
			seen[is.Category] = true
			out = append(out, is.Category)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
