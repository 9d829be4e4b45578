package main

import "fmt"

// SourceObjects holds non-table source objects that are not migrated.
type SourceObjects struct {
	Views    []string
	Triggers []string
}

func sourceObjectWarnings(objs *SourceObjects) []string {
	if objs == nil {
		return nil
	}

	var warnings []string
	if len(objs.Views) == 0 && len(objs.Triggers) == 0 {
		return warnings
	}

	warnings = append(warnings,
		fmt.Sprintf(
			"source contains non-table objects that are not migrated (%d views, %d triggers)",
			len(objs.Views), len(objs.Triggers),
		),
	)
	for _, v := range objs.Views {
		warnings = append(warnings, fmt.Sprintf("view: %s", v))
	}
	for _, t := range objs.Triggers {
		warnings = append(warnings, fmt.Sprintf("trigger: %s", t))
	}
	return warnings
}
