package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/HyperAST/HyperAST-sub006/internal/diff"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/errors"
)

func diffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <old> <new>",
		Short: "Compute the edit script between two files",
		Long: `Generate both files into one store and print the GumTree edit script
turning the first tree into the second.

Examples:
  hyperast diff old/main.go new/main.go
  hyperast diff --json a.py b.py
  hyperast diff --text a.txt b.txt   # add a unified line diff`,
		Args: cobra.ExactArgs(2),
		RunE: runDiff,
	}
	cmd.Flags().Bool("json", false, "print the script as JSON")
	cmd.Flags().Bool("text", false, "also print a unified line diff")
	cmd.Flags().StringP("language", "l", "", "language of both files (detected from the new file by default)")
	cmd.Flags().Bool("verify", false, "replay the script and check it reproduces the new tree")
	return cmd
}

func readInput(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.NotFoundError("file: " + path)
	}
	return content, err
}

func runDiff(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	withText, _ := cmd.Flags().GetBool("text")
	language, _ := cmd.Flags().GetString("language")
	verify, _ := cmd.Flags().GetBool("verify")

	oldPath, newPath := args[0], args[1]
	oldContent, err := readInput(oldPath)
	if err != nil {
		return err
	}
	newContent, err := readInput(newPath)
	if err != nil {
		return err
	}

	a, err := newApp(cmd, appOptions{verify: verify})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	// Both roots carry the new file's name so a rename alone is no update.
	name := filepath.Base(newPath)
	src, err := a.ws.Intern(ctx, name, language, oldContent)
	if err != nil {
		return err
	}
	dst, err := a.ws.Intern(ctx, name, language, newContent)
	if err != nil {
		return err
	}
	res, err := a.ws.Diff(ctx, src.ID, dst.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	stores := a.ws.Stores()
	if asJSON {
		payload := map[string]any{
			"src":     res.Src,
			"dst":     res.Dst,
			"mapped":  res.Mapped,
			"summary": res.Summary,
			"actions": diff.Describe(stores, res),
		}
		if withText {
			text, err := diff.UnifiedText(oldPath, newPath, string(oldContent), string(newContent))
			if err != nil {
				return err
			}
			payload["text"] = text
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}

	if err := diff.Render(out, stores, res); err != nil {
		return err
	}
	if withText {
		text, err := diff.UnifiedText(oldPath, newPath, string(oldContent), string(newContent))
		if err != nil {
			return err
		}
		fmt.Fprint(out, text)
	}
	return nil
}
