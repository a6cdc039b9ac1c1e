// Package cli provides the operator commands for a search-sync
// deployment. Index definitions and store wiring are host-application
// code, so the host constructs the components and hands them to
// NewRootCommand.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/searchsync/searchsync"
)

// Deps are the wired components the commands operate on.
type Deps struct {
	Registry   *searchsync.Registry
	Backend    *searchsync.Backend
	Store      searchsync.EntityStore
	Consumer   *searchsync.Consumer
	Maintainer *searchsync.Maintainer
	Logger     searchsync.Logger
}

// NewRootCommand builds the command tree:
//
//	setup      push schemas to the search engine
//	check      report mapping conflicts (exit 1 when any exist)
//	clean      delete indexed documents, whole indexes or per type
//	reindex    rebuild documents from the store
//	leftovers  remove documents whose entities are gone
//	consume    drain the update queue
func NewRootCommand(deps Deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "searchsync",
		Short:         "Keep search indexes synchronized with the entity store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newSetupCommand(deps),
		newCheckCommand(deps),
		newCleanCommand(deps),
		newReindexCommand(deps),
		newLeftoversCommand(deps),
		newConsumeCommand(deps),
	)
	return root
}

// parseTypes converts "namespace.name" arguments to entity types.
func parseTypes(args []string) ([]searchsync.EntityType, error) {
	var types []searchsync.EntityType
	for _, arg := range args {
		parts := strings.Split(arg, ".")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid entity type %q, expected namespace.name", arg)
		}
		types = append(types, searchsync.EntityType{Namespace: parts[0], Name: parts[1]})
	}
	return types, nil
}

func newSetupCommand(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create indexes and push schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return deps.Backend.Setup(cmd.Context())
		},
	}
}

func newCheckCommand(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report schema mapping conflicts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conflicts, err := deps.Backend.CheckConflicts(cmd.Context())
			if err != nil {
				return err
			}
			if err := searchsync.WriteConflictReport(os.Stdout, conflicts); err != nil {
				return err
			}
			if len(conflicts) > 0 {
				return fmt.Errorf("%d mapping conflict(s) found", len(conflicts))
			}
			return nil
		},
	}
}

func newCleanCommand(deps Deps) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "clean [namespace.name ...]",
		Short: "Delete indexed documents; without arguments, whole indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := parseTypes(args)
			if err != nil {
				return err
			}
			return deps.Backend.Clear(cmd.Context(), types, refresh)
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "make deletions immediately visible")
	return cmd
}

func newReindexCommand(deps Deps) *cobra.Command {
	var (
		batch   int
		refresh bool
	)
	cmd := &cobra.Command{
		Use:   "reindex [namespace.name ...]",
		Short: "Rebuild documents from the entity store",
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := parseTypes(args)
			if err != nil {
				return err
			}
			indexed, err := deps.Maintainer.Reindex(cmd.Context(), types, batch, refresh)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d entities.\n", indexed)
			return nil
		},
	}
	cmd.Flags().IntVar(&batch, "batch", searchsync.DefaultReindexBatch, "bulk batch size")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "make writes immediately visible")
	return cmd
}

func newLeftoversCommand(deps Deps) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "leftovers [namespace.name ...]",
		Short: "Remove documents whose entities no longer exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := parseTypes(args)
			if err != nil {
				return err
			}
			removed, err := deps.Maintainer.CleanLeftovers(cmd.Context(), types, refresh)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d leftover documents.\n", removed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "make deletions immediately visible")
	return cmd
}

func newConsumeCommand(deps Deps) *cobra.Command {
	var (
		max    int
		daemon bool
	)
	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Drain the update queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if daemon {
				return deps.Consumer.RunDaemon(cmd.Context())
			}
			processed, err := deps.Consumer.RunBatch(cmd.Context(), max)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Processed %d messages.\n", processed)
			return nil
		},
	}
	cmd.Flags().IntVar(&max, "max", 0, "stop after this many messages (0 = until empty)")
	cmd.Flags().BoolVar(&daemon, "daemon", false, "keep consuming until interrupted")
	return cmd
}
