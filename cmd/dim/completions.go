package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// GenerateCompletions writes a completion script for every supported shell
// into dir.
func GenerateCompletions(cmd *cobra.Command, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	shells := []struct {
		name string
		file string
		gen  func(path string) error
	}{
		{"bash", "dim.bash", func(path string) error { return cmd.GenBashCompletionFileV2(path, true) }},
		{"zsh", "_dim", cmd.GenZshCompletionFile},
		{"fish", "dim.fish", func(path string) error { return cmd.GenFishCompletionFile(path, true) }},
		{"powershell", "_dim.ps1", cmd.GenPowerShellCompletionFileWithDesc},
	}

	for _, shell := range shells {
		path := filepath.Join(dir, shell.file)
		if err := shell.gen(path); err != nil {
			return fmt.Errorf("%s: %w", shell.name, err)
		}
		fmt.Printf("Generated completion for %s at %q\n", shell.name, path)
	}

	return nil
}
