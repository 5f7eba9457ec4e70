// Copyright 2026 The Leadboard Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/leadboard/leadboard/internal/lead"
	"github.com/spf13/cobra"
)

func newFollowUpsCmd() *cobra.Command {
	var businessID string
	cmd := &cobra.Command{
		Use:   "followups",
		Short: "List the leads of a business that are due for follow-up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			due, now, err := a.leads.FollowUpsForBusiness(cmd.Context(), businessID)
			if err != nil {
				return fmt.Errorf("business %s: %w", businessID, err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPHONE\tSTATUS\tCREATED\tWHATSAPP")
			for _, l := range due.Leads {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					l.Name, l.Phone, l.Status.LocalizedLabel(cfg.Locale.Language),
					lead.RelativeTime(l.CreatedAt, now), lead.WhatsAppLink(l.Phone, ""))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d due", due.Total)
			if due.Remaining > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), ", %d more not shown", due.Remaining)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().StringVar(&businessID, "business", "", "business ID")
	_ = cmd.MarkFlagRequired("business")
	return cmd
}

func newBusinessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "business",
		Short: "Administrative business operations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <business-id>",
		Short: "Delete a business and all of its leads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.business.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete business %s: %w", args[0], err)
			}
			if a.leadCache != nil {
				a.leadCache.InvalidateBusiness(cmd.Context(), args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "business %s deleted\n", args[0])
			return nil
		},
	})
	return cmd
}
