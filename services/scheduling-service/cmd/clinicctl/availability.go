package main

import (
	"encoding/json"
	"fmt"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/config"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/db"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/availability"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/schedule"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/storage"
	"github.com/spf13/cobra"
)

func newAvailabilityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Print bookable slots straight from the database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			serviceID, _ := cmd.Flags().GetString("service")
			rawStart, _ := cmd.Flags().GetString("start")
			rawEnd, _ := cmd.Flags().GetString("end")
			start, err := schedule.ParseDate(rawStart)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			end := start
			if rawEnd != "" {
				if end, err = schedule.ParseDate(rawEnd); err != nil {
					return fmt.Errorf("--end: %w", err)
				}
			}
			loc, err := config.Location("CLINIC_TIMEZONE", "UTC")
			if err != nil {
				return err
			}
			url, err := databaseURL(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := db.Open(ctx, url, db.PoolConfig{MaxConns: 2})
			if err != nil {
				return err
			}
			defer pool.Close()

			settings := storage.NewSettingsRepository(pool)
			svc := availability.NewService(settings, storage.NewExceptionRepository(pool),
				storage.NewAppointmentRepository(pool), storage.NewCatalogRepository(pool), nil,
				availability.Options{Location: loc})
			days, err := svc.Availability(ctx, start, end, serviceID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(days)
		},
	}
	cmd.Flags().String("service", "", "service id")
	cmd.Flags().String("start", "", "first date, YYYY-MM-DD")
	cmd.Flags().String("end", "", "last date, YYYY-MM-DD (defaults to --start)")
	cmd.Flags().String("database-url", "", "PostgreSQL URL (defaults to DATABASE_URL)")
	_ = cmd.MarkFlagRequired("service")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}
