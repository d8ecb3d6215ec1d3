package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"filevc/client"
	"filevc/shared/types"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "filevc",
	Short: "filevc records and reverts file edits",
	Long: `filevc is a client for the filevc server. Every edit applied through it is
locked per path, written through to the workspace and recorded as a reversible
version that can be rolled back later.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("FILEVC_SERVER", "http://localhost:8080"), "filevc server URL")

	var editFile, editMessage string
	var editCmd = &cobra.Command{
		Use:   "edit <path>",
		Short: "Apply new content to a path and record a version",
		Long:  `Reads the new content from --file, or from stdin when no file is given.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readContent(cmd, editFile)
			if err != nil {
				return err
			}

			change, err := newClient().ApplyEdit(cmd.Context(), args[0], content, editMessage)
			if err != nil {
				return fmt.Errorf("applying edit: %w", err)
			}
			if change == nil {
				fmt.Println("No changes (content already current)")
				return nil
			}
			printColoredDiff(change.Diff)
			return nil
		},
	}
	editCmd.Flags().StringVarP(&editFile, "file", "f", "", "read content from file")
	editCmd.Flags().StringVarP(&editMessage, "message", "m", "", "version description")

	var previewFile string
	var previewCmd = &cobra.Command{
		Use:   "preview <path>",
		Short: "Show the diff an edit would produce",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readContent(cmd, previewFile)
			if err != nil {
				return err
			}

			preview, err := newClient().Preview(cmd.Context(), args[0], content)
			if err != nil {
				return fmt.Errorf("previewing edit: %w", err)
			}
			if preview.Change == nil {
				fmt.Println("No changes")
				return nil
			}
			printColoredDiff(preview.Change.Diff)
			fmt.Printf("%d additions, %d deletions\n", preview.Stats.Additions, preview.Stats.Deletions)
			return nil
		},
	}
	previewCmd.Flags().StringVarP(&previewFile, "file", "f", "", "read content from file")

	var logCmd = &cobra.Command{
		Use:   "log",
		Short: "List versions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			versions, err := newClient().Versions(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing versions: %w", err)
			}
			if len(versions) == 0 {
				fmt.Println("No versions recorded")
				return nil
			}

			yellow := color.New(color.FgYellow).SprintFunc()
			for i := len(versions) - 1; i >= 0; i-- {
				printVersion(versions[i], yellow)
			}
			return nil
		},
	}

	var revertCmd = &cobra.Command{
		Use:   "revert <version-id>",
		Short: "Restore files to a version and drop later versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changes, err := newClient().Revert(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("reverting: %w", err)
			}
			if len(changes) == 0 {
				fmt.Println("Already at", args[0])
				return nil
			}

			green := color.New(color.FgGreen).SprintFunc()
			for _, c := range changes {
				fmt.Printf("\t%s %s\n", green("restored"), c.Path)
			}
			return nil
		},
	}

	var addFile string
	var addCmd = &cobra.Command{
		Use:   "add <path>",
		Short: "Record a pending change without writing it",
		Long:  `Reads the content from --file, or from the local file at <path> when no file is given.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := addFile
			if source == "" {
				source = args[0]
			}
			data, err := os.ReadFile(source)
			if err != nil {
				return fmt.Errorf("reading %s: %w", source, err)
			}

			if err := newClient().AddChange(cmd.Context(), args[0], string(data)); err != nil {
				return fmt.Errorf("adding change: %w", err)
			}
			fmt.Println("Pending change recorded for", args[0])
			return nil
		},
	}
	addCmd.Flags().StringVarP(&addFile, "file", "f", "", "read content from file")

	var stageCmd = &cobra.Command{
		Use:   "stage [paths...]",
		Short: "Stage pending changes for the next commit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			return forEachPath(args, "staged", func(path string) (bool, error) {
				return c.Stage(cmd.Context(), path)
			})
		},
	}

	var unstageCmd = &cobra.Command{
		Use:   "unstage [paths...]",
		Short: "Keep pending changes out of the next commit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			return forEachPath(args, "unstaged", func(path string) (bool, error) {
				return c.Unstage(cmd.Context(), path)
			})
		},
	}

	var discardCmd = &cobra.Command{
		Use:   "discard [paths...]",
		Short: "Drop pending changes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			return forEachPath(args, "discarded", func(path string) (bool, error) {
				return true, c.Discard(cmd.Context(), path)
			})
		},
	}

	var statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show staged and unstaged changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			changes, err := newClient().Changes(cmd.Context())
			if err != nil {
				return fmt.Errorf("getting status: %w", err)
			}

			if len(changes.Staged)+len(changes.Unstaged) == 0 {
				fmt.Println("No pending changes")
				return nil
			}

			green := color.New(color.FgGreen).SprintFunc()
			yellow := color.New(color.FgYellow).SprintFunc()

			if len(changes.Staged) > 0 {
				fmt.Println("Changes to be committed:")
				fmt.Println("  (use \"filevc commit -m <message>\" to record them)")
				for _, c := range changes.Staged {
					fmt.Printf("\t%s %s\n", green("S"), c.Path)
				}
				fmt.Println()
			}

			if len(changes.Unstaged) > 0 {
				fmt.Println("Changes not staged:")
				fmt.Println("  (use \"filevc stage <path>...\" to include in the next commit)")
				for _, c := range changes.Unstaged {
					fmt.Printf("\t%s %s\n", yellow("M"), c.Path)
				}
				fmt.Println()
			}
			return nil
		},
	}

	var commitMessage string
	var commitCmd = &cobra.Command{
		Use:   "commit",
		Short: "Write staged changes and record them as one version",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(commitMessage) == "" {
				return fmt.Errorf("a commit message is required (-m)")
			}

			changes, err := newClient().Commit(cmd.Context(), commitMessage)
			if err != nil {
				return fmt.Errorf("committing: %w", err)
			}
			if len(changes) == 0 {
				fmt.Println("Nothing to commit")
				return nil
			}
			fmt.Printf("Committed %d file(s)\n", len(changes))
			return nil
		},
	}
	commitCmd.Flags().StringVarP(&commitMessage, "message", "m", "", "commit message")

	var locksCmd = &cobra.Command{
		Use:   "locks",
		Short: "List paths with an edit in progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			locks, err := newClient().Locks(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing locks: %w", err)
			}
			if len(locks) == 0 {
				fmt.Println("No locked paths")
				return nil
			}

			red := color.New(color.FgRed).SprintFunc()
			for _, path := range locks {
				fmt.Printf("\t%s %s\n", red("L"), path)
			}
			return nil
		},
	}

	var unlockCmd = &cobra.Command{
		Use:   "unlock <path>",
		Short: "Force-release a path lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient().Unlock(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("unlocking: %w", err)
			}
			fmt.Println("Released", args[0])
			return nil
		},
	}

	rootCmd.AddCommand(editCmd, previewCmd, logCmd, revertCmd)
	rootCmd.AddCommand(addCmd, stageCmd, unstageCmd, discardCmd, statusCmd, commitCmd)
	rootCmd.AddCommand(locksCmd, unlockCmd)
}

func newClient() *client.Client {
	return client.New(strings.TrimRight(serverURL, "/"))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func readContent(cmd *cobra.Command, file string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", file, err)
		}
		return string(data), nil
	}

	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}

func forEachPath(paths []string, verb string, fn func(string) (bool, error)) error {
	for _, path := range paths {
		ok, err := fn(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if !ok {
			fmt.Printf("%s: no pending change\n", path)
			continue
		}
		fmt.Printf("%s %s\n", path, verb)
	}
	return nil
}

func printVersion(v shared.Version, highlight func(a ...interface{}) string) {
	fmt.Printf("%s %s\n", highlight("version "+v.ID), v.Timestamp.Format(time.RFC3339))
	if v.Description != "" {
		fmt.Printf("\n    %s\n", v.Description)
	}
	fmt.Println()
	for _, c := range v.Changes {
		fmt.Printf("\t%s\n", c.Path)
	}
	fmt.Println()
}

func printColoredDiff(diff string) {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	header := color.New(color.FgCyan)

	for _, line := range strings.Split(strings.TrimSuffix(diff, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
			fmt.Println(line)
		case strings.HasPrefix(line, "@@"):
			header.Println(line)
		case strings.HasPrefix(line, "+"):
			added.Println(line)
		case strings.HasPrefix(line, "-"):
			removed.Println(line)
		default:
			fmt.Println(line)
		}
	}
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
