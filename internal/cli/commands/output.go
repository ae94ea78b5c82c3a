package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/usradm-dev/usradm/internal/models"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

func checkOutput(format string) error {
	switch format {
	case outputTable, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("invalid output format '%s' (expected table, json or yaml)", format)
	}
}

// printUsers writes users in the requested format
func printUsers(w io.Writer, users []models.User, format string) error {
	switch format {
	case outputJSON:
		return writeJSON(w, users)
	case outputYAML:
		return writeYAML(w, users)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE")
	fmt.Fprintln(tw, "──\t────\t─────\t────")

	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			u.ID,
			u.Name,
			u.Email,
			roleOrDefault(u.Role),
		)
	}

	return tw.Flush()
}

// printUser writes a single user in the requested format
func printUser(w io.Writer, user *models.User, format string) error {
	switch format {
	case outputJSON:
		return writeJSON(w, user)
	case outputYAML:
		return writeYAML(w, user)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", user.ID)
	fmt.Fprintf(tw, "Name:\t%s\n", user.Name)
	fmt.Fprintf(tw, "Email:\t%s\n", user.Email)
	fmt.Fprintf(tw, "Role:\t%s\n", roleOrDefault(user.Role))
	return tw.Flush()
}

func roleOrDefault(role string) string {
	if role == "" {
		return models.RoleUser
	}
	return role
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}
