package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"voltonic-power/common/database"
	"voltonic-power/internal/config"
	"voltonic-power/internal/models"
	"voltonic-power/internal/repository"

	"go.uber.org/zap"
)

func main() {
	var actionTypes = flag.String("type", "", "Comma-separated action types (e.g. 'POWER_CUTOFF,DEMAND_SPIKE')")
	var buildingID = flag.Int64("building", 0, "Only show actions of this building")
	var limit = flag.Int("limit", 20, "Number of actions to show")
	var days = flag.Int("days", 7, "Window for cutoff accuracy")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	store := repository.NewStore(db, cfg.Persistence.BatchSize, repository.RetryPolicy{MaxTries: 1}, zap.NewNop())

	fmt.Printf("Connected to database: %s\n\n", cfg.Database.Database)

	// 1. power modes
	printHeader("1. Building power modes")
	configs, err := store.ListPowerConfigs(ctx)
	if err != nil {
		log.Fatalf("Failed to list power configs: %v", err)
	}
	fmt.Printf("%-10s %-14s %-8s %-12s %-12s %-25s\n", "building", "mode", "hybrid", "solar_kw", "spike_kw", "last_switch")
	for _, c := range configs {
		lastSwitch := "-"
		if c.LastSourceSwitch != nil {
			lastSwitch = c.LastSourceSwitch.Format(time.RFC3339)
		}
		fmt.Printf("%-10d %-14s %-8t %-12.2f %-12.2f %-25s\n",
			c.BuildingID, c.Mode, c.HybridModeActive, c.CurrentSolarOutputKW, c.SpikeThresholdKW, lastSwitch)
	}

	// 2. latest loads
	printHeader("2. Latest building loads")
	loads, err := store.Readings.LatestBuildingLoads(ctx)
	if err != nil {
		log.Fatalf("Failed to query building loads: %v", err)
	}
	for _, l := range loads {
		fmt.Printf("building %-6d %8.2f kW at %s\n", l.BuildingID, l.TotalLoadKW, l.Timestamp.Format(time.RFC3339))
	}

	// 3. recent actions
	printHeader("3. Recent autonomous actions")
	filters := repository.ActionFilters{}
	for _, t := range strings.Split(*actionTypes, ",") {
		if t = strings.TrimSpace(t); t != "" {
			filters.ActionTypes = append(filters.ActionTypes, models.ActionKind(strings.ToUpper(t)))
		}
	}
	if *buildingID > 0 {
		filters.BuildingID = buildingID
	}
	actions, total, err := store.Actions.ListActions(ctx, filters, 1, *limit)
	if err != nil {
		log.Fatalf("Failed to list actions: %v", err)
	}
	fmt.Printf("%d matching, showing %d\n", total, len(actions))
	for _, a := range actions {
		fmt.Printf("%s %-18s %-8s %-8s %8.4f kWh  %s\n",
			a.Timestamp.Format(time.RFC3339), a.ActionType, idOrDash(a.RoomID), idOrDash(a.BuildingID), a.EnergySavedKWh, a.Reason)
	}

	// 4. cutoff accuracy
	printHeader(fmt.Sprintf("4. Cutoff accuracy (last %d days)", *days))
	acc, err := store.Actions.GetCutoffAccuracy(ctx, time.Now().AddDate(0, 0, -*days))
	if err != nil {
		log.Fatalf("Failed to compute accuracy: %v", err)
	}
	if acc.AccuracyPercent == nil {
		fmt.Println("No cutoffs in range")
		return
	}
	fmt.Printf("%d of %d cutoffs followed by an empty room (%.1f%%)\n",
		acc.CorrectPredictions, acc.TotalPredictions, *acc.AccuracyPercent)
}

func printHeader(title string) {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println(title)
	fmt.Println(strings.Repeat("=", 80))
}

func idOrDash(id *int64) string {
	if id == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *id)
}
