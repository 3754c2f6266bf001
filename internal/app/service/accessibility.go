package service

import (
	"fmt"

	"novalabs_hub/internal/common"
	"novalabs_hub/internal/domain/model"
)

// Accessibility reports whether a user with the given completed set may
// enter the lab, along with the prerequisite refs still missing. A lab
// with no prerequisites is always accessible. Only direct prerequisites
// are consulted: chains hold because every intermediate lab is gated the
// same way, so no transitive walk is needed.
func Accessibility(lab *model.Lab, completed map[string]bool) (bool, []string) {
	missing := []string{}
	for _, ref := range lab.PrerequisiteRefs {
		if !completed[ref] {
			missing = append(missing, ref)
		}
	}
	return len(missing) == 0, missing
}

// CompletedRefs reduces a user's progress records to the set of lab refs
// with completed status, for feeding Accessibility.
func CompletedRefs(labs []model.Lab, records []model.ProgressRecord) map[string]bool {
	refByID := make(map[string]string, len(labs))
	for _, lab := range labs {
		refByID[lab.ID] = lab.Ref
	}
	completed := make(map[string]bool)
	for _, rec := range records {
		if rec.Status != model.StatusCompleted {
			continue
		}
		if ref, ok := refByID[rec.LabID]; ok {
			completed[ref] = true
		}
	}
	return completed
}

// ValidatePrerequisites rejects a candidate lab whose prerequisite set
// references a lab outside the catalog or would close a cycle. Runs at
// create/update time so accessibility checks never re-verify the graph.
func ValidatePrerequisites(catalog []model.Lab, candidate *model.Lab) error {
	prereqs := make(map[string][]string, len(catalog)+1)
	known := make(map[string]bool, len(catalog)+1)
	for _, lab := range catalog {
		if lab.Ref == candidate.Ref {
			continue // Candidate replaces its old edge set on update
		}
		prereqs[lab.Ref] = lab.PrerequisiteRefs
		known[lab.Ref] = true
	}
	prereqs[candidate.Ref] = candidate.PrerequisiteRefs
	known[candidate.Ref] = true

	for _, ref := range candidate.PrerequisiteRefs {
		if !known[ref] {
			return fmt.Errorf("prerequisite lab %q does not exist: %w", ref, common.ErrValidation)
		}
	}

	// Depth-first walk from the candidate; a back edge means the new edge
	// set would make some lab (transitively) require itself.
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(prereqs))
	var visit func(ref string) error
	visit = func(ref string) error {
		switch state[ref] {
		case visiting:
			return fmt.Errorf("prerequisite cycle through lab %q: %w", ref, common.ErrValidation)
		case done:
			return nil
		}
		state[ref] = visiting
		for _, dep := range prereqs[ref] {
			if !known[dep] {
				continue // Pre-existing dangling ref; not this update's fault
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[ref] = done
		return nil
	}
	return visit(candidate.Ref)
}
