package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"hive/internal/app"
	"hive/internal/app/automation"
	"hive/internal/domain"
)

func writeJSON(w io.Writer, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printResolveReport(w io.Writer, report app.ResolveReport, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "instance=%s connections=%d errors=%d\n", report.InstanceID, report.Resolved.Count, report.Resolved.ErrorCount)
	keys := make([]domain.CacheKey, 0, len(report.Resolved.Values))
	for key := range report.Resolved.Values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		value := report.Resolved.Values[key]
		if value.Status == domain.ConnectionStatusError {
			fmt.Fprintf(w, "  %s error: %s\n", key, value.Error)
			continue
		}
		cached := ""
		if value.Cached {
			cached = " (cached)"
		}
		fmt.Fprintf(w, "  %s = %v%s\n", key, value.Value, cached)
	}
	return nil
}

func printPreview(w io.Writer, result automation.TestResult, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(w, result)
	}
	fmt.Fprintf(w, "%s: %s\n", result.AutomationName, result.Message)
	for _, detail := range result.ConditionResults {
		mark := "fail"
		if detail.Passed {
			mark = "pass"
		}
		fmt.Fprintf(w, "  [%s] %s %s %v (actual %v)\n", mark, detail.Field, detail.Operator, detail.Expected, detail.Actual)
	}
	for _, action := range result.Actions {
		fmt.Fprintf(w, "  -> %s\n", action.Summary)
	}
	return nil
}
