package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/auth"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/config"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/actiontoken"
	"github.com/spf13/cobra"
)

func signer() (*actiontoken.Signer, error) {
	secret, err := config.RequiredString("APP_SECRET")
	if err != nil {
		return nil, err
	}
	return actiontoken.NewSigner([]byte(secret), config.Duration("ACTION_TOKEN_TTL", 72*time.Hour))
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint or inspect emailed confirm/cancel links",
	}

	issue := &cobra.Command{
		Use:   "issue APPOINTMENT_ID",
		Short: "Mint an action token for an appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("action")
			action, ok := actiontoken.ParseAction(strings.ToLower(raw))
			if !ok {
				return fmt.Errorf("--action must be cancel or confirm")
			}
			ttl, _ := cmd.Flags().GetDuration("ttl")
			s, err := signer()
			if err != nil {
				return err
			}
			tok, exp, err := s.Issue(args[0], action, ttl)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, tok)
			if base, _ := cmd.Flags().GetString("base-url"); base != "" {
				fmt.Fprintf(out, "%s/appointments/%s?token=%s\n", strings.TrimRight(base, "/"), action, tok)
			}
			fmt.Fprintf(out, "expires %s\n", exp.UTC().Format(time.RFC3339))
			return nil
		},
	}
	issue.Flags().String("action", "cancel", "cancel or confirm")
	issue.Flags().Duration("ttl", 0, "token lifetime (defaults to ACTION_TOKEN_TTL)")
	issue.Flags().String("base-url", "", "print a full link under this public base URL")
	cmd.AddCommand(issue)

	cmd.AddCommand(&cobra.Command{
		Use:   "inspect TOKEN",
		Short: "Check a token's signature and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := signer()
			if err != nil {
				return err
			}
			c, err := s.Parse(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "appointment %s\naction %s\nexpires %s\njti %s\n",
				c.AppointmentID, c.Action, c.ExpiresAt.UTC().Format(time.RFC3339), c.ID)
			return nil
		},
	})
	return cmd
}

func newAdminTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin-token SUBJECT",
		Short: "Sign a dashboard bearer token with the admin role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := config.RequiredString("JWT_SECRET")
			if err != nil {
				return err
			}
			issuer, err := auth.NewHS256([]byte(secret), config.String("JWT_ISSUER", ""))
			if err != nil {
				return err
			}
			ttl, _ := cmd.Flags().GetDuration("ttl")
			tok, err := issuer.Sign(args[0], auth.RoleAdmin, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().Duration("ttl", 12*time.Hour, "token lifetime")
	return cmd
}
