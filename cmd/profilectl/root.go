package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/jacksonlee411/community-portal/modules/profile/presentation/render"
	"github.com/jacksonlee411/community-portal/modules/profile/services"
	"github.com/spf13/cobra"
)

type serviceOpener func(ctx context.Context) (*services.ProfileService, func(), error)

const (
	viewerOwner  = "owner"
	viewerPublic = "public"
)

func newRootCmd(open serviceOpener) *cobra.Command {
	root := &cobra.Command{
		Use:          "profilectl",
		Short:        "Inspect community profiles from the configured stores",
		SilenceUsage: true,
	}
	root.AddCommand(newFieldsCmd(open), newRenderCmd(open), newPrivacyCmd(open))
	return root
}

func newFieldsCmd(open serviceOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "fields",
		Short: "List the field registry by section",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			return printFields(cmd.OutOrStdout(), svc)
		},
	}
}

func printFields(out io.Writer, svc *services.ProfileService) error {
	reg := svc.Registry()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SECTION\tKEY\tKIND\tPOLICY")
	for _, s := range reg.Sections() {
		for _, f := range reg.FieldsOf(s.ID) {
			policy := f.PolicyKey
			if policy == "" {
				policy = "-"
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, f.Key, f.Kind, policy)
		}
	}
	return tw.Flush()
}

func newRenderCmd(open serviceOpener) *cobra.Command {
	var as string
	cmd := &cobra.Command{
		Use:   "render <profile-id>",
		Short: "Print the display tree of a profile as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			as = strings.ToLower(strings.TrimSpace(as))
			if as != viewerOwner && as != viewerPublic {
				return fmt.Errorf("--as must be %s or %s", viewerOwner, viewerPublic)
			}
			svc, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := cmd.Context()
			record, _, err := svc.OpenRecord(ctx, args[0])
			if err != nil {
				return err
			}
			policy := svc.Policies().RevealAll()
			if as == viewerPublic {
				if policy, err = svc.LoadPolicy(ctx, args[0]); err != nil {
					return err
				}
			}
			tree, err := render.RenderProfile(svc.Registry(), record, policy, render.ModeDisplay)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(tree)
		},
	}
	cmd.Flags().StringVar(&as, "as", viewerPublic, "viewer: owner or public")
	return cmd
}

func newPrivacyCmd(open serviceOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "privacy <profile-id>",
		Short: "Print the visibility policy of a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			policy, err := svc.LoadPolicy(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			flags := svc.Policies().ToPersistable(policy)
			keys := make([]string, 0, len(flags))
			for k := range flags {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, k := range keys {
				state := "hidden"
				if flags[k] {
					state = "shown"
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\n", k, state)
			}
			return tw.Flush()
		},
	}
}
