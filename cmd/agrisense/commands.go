package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	httpadapter "github.com/couchcryptid/agrisense/internal/adapter/http"
	"github.com/couchcryptid/agrisense/internal/config"
	"github.com/couchcryptid/agrisense/internal/domain"
	"github.com/couchcryptid/agrisense/internal/observability"
	"github.com/couchcryptid/agrisense/internal/simulator"
)

func cropsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crops",
		Short: "List the crop catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles := domain.DefaultCatalog().Profiles()
			if viper.GetBool("json") {
				return printJSON(profiles)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Crop", "Base yield (t/ha)", "Water need (mm)", "Fertilizer optimum (kg/ha)", "Drought resistant"})
			for _, p := range profiles {
				tw.AppendRow(table.Row{p.Name, p.BaseYield, p.WaterNeed, p.FertilizerOptimum, p.DroughtResistant})
			}
			tw.Render()
			return nil
		},
	}
}

func climateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "climate",
		Short: "Show average rainfall and temperature over the observation window",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			at, err := a.location()
			if err != nil {
				return err
			}
			summary := a.service.ResolveClimate(cmd.Context(), at)
			if viper.GetBool("json") {
				return printJSON(summary)
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendRows([]table.Row{
				{"Location", fmt.Sprintf("%.4f, %.4f", at.Lat, at.Lon)},
				{"Source", summary.Source},
				{"Avg rainfall (mm/day)", fmt.Sprintf("%.2f", summary.AvgRainfallMm)},
				{"Avg temperature (°C)", fmt.Sprintf("%.2f", summary.AvgTemperatureC)},
				{"Observations", summary.Observations},
			})
			if !summary.WindowStart.IsZero() {
				tw.AppendRow(table.Row{"Window", summary.WindowStart.Format(time.DateOnly) + " .. " + summary.WindowEnd.Format(time.DateOnly)})
			}
			tw.Render()
			return nil
		},
	}
}

func simulateCmd() *cobra.Command {
	var (
		decision    domain.DecisionInput
		rainfall    float64
		temperature float64
		withSurface bool
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Score one season for a crop and resource plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (cmd.Flags().Changed("rainfall")) != (cmd.Flags().Changed("temperature")) {
				return errors.New("--rainfall and --temperature must be given together")
			}

			a, err := loadApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			at, err := a.location()
			if err != nil {
				return err
			}
			req := simulator.Request{
				Decision:       decision,
				Location:       &at,
				IncludeSurface: withSurface,
			}
			if cmd.Flags().Changed("rainfall") {
				req.RainfallMm = &rainfall
				req.TemperatureC = &temperature
			}

			outcome, err := a.service.Simulate(cmd.Context(), req)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(outcome)
			}
			printOutcome(outcome)
			return nil
		},
	}
	cmd.Flags().StringVar(&decision.Crop, "crop", "", "crop name (see 'agrisense crops')")
	cmd.Flags().Float64Var(&decision.IrrigationMm, "irrigation", 0, "irrigation for the season (mm)")
	cmd.Flags().Float64Var(&decision.FertilizerKg, "fertilizer", 0, "fertilizer (kg/ha)")
	cmd.Flags().Float64Var(&rainfall, "rainfall", 0, "average rainfall override (mm); skips NASA POWER")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "average temperature override (°C); skips NASA POWER")
	cmd.Flags().BoolVar(&withSurface, "surface", false, "include soil moisture and NDVI placeholder series")
	_ = cmd.MarkFlagRequired("crop")
	return cmd
}

func printOutcome(o domain.SeasonOutcome) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetTitle("Season " + o.ID)
	tw.AppendRows([]table.Row{
		{"Crop", o.Decision.Crop},
		{"Irrigation (mm)", o.Decision.IrrigationMm},
		{"Fertilizer (kg/ha)", o.Decision.FertilizerKg},
		{"Climate source", o.Climate.Source},
		{"Avg rainfall (mm)", fmt.Sprintf("%.2f", o.Climate.AvgRainfallMm)},
		{"Avg temperature (°C)", fmt.Sprintf("%.2f", o.Climate.AvgTemperatureC)},
		{"Crop yield", fmt.Sprintf("%.1f tons/ha", o.Result.YieldTonsPerHa)},
		{"Sustainability score", fmt.Sprintf("%d/100", o.Result.SustainabilityScore)},
	})
	tw.Render()

	switch o.Advice.Level {
	case domain.AdviceWarning:
		fmt.Println("warning:", o.Advice.Message)
	case domain.AdviceInfo:
		fmt.Println("info:", o.Advice.Message)
	}

	if len(o.Surface) == 0 {
		return
	}
	st := table.NewWriter()
	st.SetOutputMirror(os.Stdout)
	st.SetTitle("Soil and vegetation (placeholder)")
	st.AppendHeader(table.Row{"Date", "Soil moisture (%)", "NDVI"})
	for _, r := range o.Surface {
		st.AppendRow(table.Row{r.Date.Format(time.DateOnly), fmt.Sprintf("%.1f", r.SoilMoisturePct), fmt.Sprintf("%.2f", r.NDVI)})
	}
	st.Render()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := observability.NewLogger(cfg)
			metrics := observability.NewMetrics()

			a, err := newApp(cfg, logger, metrics, true)
			if err != nil {
				return err
			}
			defer a.Close()

			logger.Info("crop catalog loaded", "crops", a.service.Catalog().Len())
			srv := httpadapter.NewServer(cfg.HTTPAddr, a.service, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Start HTTP server.
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server error", "error", err)
					stop()
				}
			}()

			// Resolve farm climate so /readyz flips once the cache is primed.
			go func() {
				warmCtx, cancel := context.WithTimeout(ctx, cfg.PowerTimeout*time.Duration(cfg.PowerMaxRetries+2))
				defer cancel()
				a.service.Warm(warmCtx)
			}()

			<-ctx.Done()
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}

			logger.Info("shutdown complete")
			return nil
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
