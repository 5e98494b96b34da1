package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/petasbytes/fig2code/memory"
)

const showLongDesc = `Print a saved record, or one field of it.

--field takes a gjson path, for example:
  fig2code show rec.json --field code
  fig2code show rec.json --field conversation_history.#
  fig2code show rec.json --field "conversation_history.1.content.0.text"`

type showCommander struct {
	field string
}

func newShowCmd() *cobra.Command {
	cmder := &showCommander{}

	cmd := &cobra.Command{
		Use:   "show <record.json>",
		Short: "Print a saved record",
		Long:  showLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&cmder.field, "field", "f", "", "gjson path to print")

	return cmd
}

func (c *showCommander) run(cmd *cobra.Command, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if !gjson.ValidBytes(b) {
		return fmt.Errorf("%s is not valid JSON", path)
	}
	w := cmd.OutOrStdout()

	if c.field != "" {
		res := gjson.GetBytes(b, c.field)
		if !res.Exists() {
			return fmt.Errorf("field %q not found", c.field)
		}
		if res.Type == gjson.String {
			fmt.Fprintln(w, res.String())
			return nil
		}
		fmt.Fprintln(w, res.Raw)
		return nil
	}

	rec, err := memory.Unmarshal(b)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "image:     %s\n", rec.Image)
	fmt.Fprintf(w, "created:   %s\n", rec.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "attempts:  %d\n", rec.Attempts)
	fmt.Fprintf(w, "turns:     %d\n", len(rec.ConversationHistory))
	fmt.Fprintf(w, "tokens:    %d in / %d out ($%.4f)\n", rec.Usage.InputTokens, rec.Usage.OutputTokens, rec.CostUSD)
	fmt.Fprintf(w, "artifact:  %s\n\n", rec.Artifact)
	fmt.Fprintln(w, rec.Code)
	if rec.Doc != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, rec.Doc)
	}
	return nil
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of saved records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := json.MarshalIndent(memory.Schema(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
}
