package sync

import (
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"esg-sync/internal/config"
	"esg-sync/internal/core"
	"esg-sync/internal/models"
	"esg-sync/internal/service/orchestrator"
	"esg-sync/pkg/log"
)

var (
	initiatingUser     string
	isScheduled        bool
	approvedOverrideBy string
	queryLimit         int
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run and inspect connector synchronization",
	Long:  `Run connector synchronization, probe connections, and inspect run history.`,
}

var runCmd = &cobra.Command{
	Use:     "run <connector-id>",
	Short:   "Run one sync for a connector and exit",
	Example: `esg-sync sync run 3 --user alice --config /path/to/config.yaml`,
	Args:    cobra.ExactArgs(1),
	Run:     runSync,
}

var probeCmd = &cobra.Command{
	Use:     "probe <connector-id>",
	Short:   "Verify a connector's credentials and capability grants",
	Example: `esg-sync sync probe 3 --user alice`,
	Args:    cobra.ExactArgs(1),
	Run:     runProbe,
}

var historyCmd = &cobra.Command{
	Use:   "history <connector-id>",
	Short: "Show the most recent sync records for a connector",
	Args:  cobra.ExactArgs(1),
	Run:   runHistory,
}

var rejectedCmd = &cobra.Command{
	Use:   "rejected <connector-id>",
	Short: "Show recently rejected records for a connector",
	Args:  cobra.ExactArgs(1),
	Run:   runRejected,
}

var conflictsCmd = &cobra.Command{
	Use:   "conflicts <connector-id>",
	Short: "Show recent conflicts for a connector",
	Args:  cobra.ExactArgs(1),
	Run:   runConflicts,
}

var logsCmd = &cobra.Command{
	Use:   "logs <correlation-id>",
	Short: "Show the full integration log trace of one run",
	Args:  cobra.ExactArgs(1),
	Run:   runLogs,
}

var markEditedCmd = &cobra.Command{
	Use:   "mark-edited <connector-id> <entity-id>",
	Short: "Record a manual edit of a synced entity so the next run preserves it",
	Args:  cobra.ExactArgs(2),
	Run:   runMarkEdited,
}

func init() {
	SyncCmd.PersistentFlags().StringVar(&initiatingUser, "user", "", "initiating user")
	runCmd.Flags().BoolVar(&isScheduled, "scheduled", false, "mark the run as scheduler-initiated")
	runCmd.Flags().StringVar(&approvedOverrideBy, "approve-override-by", "",
		"user id authorizing overwrites of manually approved data")

	for _, queryCmd := range []*cobra.Command{historyCmd, rejectedCmd, conflictsCmd} {
		queryCmd.Flags().IntVar(&queryLimit, "limit", 50, "maximum records to return")
	}

	SyncCmd.AddCommand(runCmd)
	SyncCmd.AddCommand(probeCmd)
	SyncCmd.AddCommand(historyCmd)
	SyncCmd.AddCommand(rejectedCmd)
	SyncCmd.AddCommand(conflictsCmd)
	SyncCmd.AddCommand(logsCmd)
	SyncCmd.AddCommand(markEditedCmd)
}

func runSync(cmd *cobra.Command, args []string) {
	logger, wiring, connectorID, ok := setup("sync-run", args[0])
	if !ok {
		return
	}

	summary, err := wiring.InitOrchestrator(nil).
		ExecuteSync(cmd.Context(), connectorID, initiatingUser, isScheduled, approvedOverrideBy)
	if err != nil {
		logger.Error().Err(err).Int64("connector_id", connectorID).Msg("Sync run rejected")
		return
	}

	logger.Info().
		Str("correlation_id", summary.CorrelationID).
		Int("total_fetched", summary.TotalFetched).
		Int("imported", summary.Imported).
		Int("updated", summary.Updated).
		Int("conflicts_preserved", summary.ConflictsPreserved).
		Int("conflicts_overridden", summary.ConflictsOverridden).
		Int("rejected", summary.Rejected).
		Int("failed", summary.Failed).
		Bool("cancelled", summary.Cancelled).
		Bool("success", summary.Success).
		Str("message", summary.Message).
		Msg("Sync run finished")
}

func runProbe(cmd *cobra.Command, args []string) {
	logger, wiring, connectorID, ok := setup("sync-probe", args[0])
	if !ok {
		return
	}

	outcome := wiring.InitProber().Probe(cmd.Context(), connectorID, initiatingUser)

	event := logger.Info()
	if !outcome.Success {
		event = logger.Error()
	}
	event.
		Bool("success", outcome.Success).
		Str("correlation_id", outcome.CorrelationID).
		Int64("duration_ms", outcome.DurationMs).
		Str("message", outcome.Message).
		Str("error_details", outcome.ErrorDetails).
		Msg("Probe finished")
}

func runHistory(cmd *cobra.Command, args []string) {
	showRecords("sync-history", args[0], func(o *orchestrator.SyncOrchestrator, id int64) ([]*models.SyncRecord, error) {
		return o.GetSyncHistory(id, queryLimit)
	})
}

func runRejected(cmd *cobra.Command, args []string) {
	showRecords("sync-rejected", args[0], func(o *orchestrator.SyncOrchestrator, id int64) ([]*models.SyncRecord, error) {
		return o.GetRejectedRecords(id, queryLimit)
	})
}

func runConflicts(cmd *cobra.Command, args []string) {
	showRecords("sync-conflicts", args[0], func(o *orchestrator.SyncOrchestrator, id int64) ([]*models.SyncRecord, error) {
		return o.GetConflicts(id, queryLimit)
	})
}

func runLogs(cmd *cobra.Command, args []string) {
	logger, wiring, ok := loadWiring("sync-logs")
	if !ok {
		return
	}

	entries, err := wiring.InitOrchestrator(nil).GetLogsByCorrelationID(args[0])
	if err != nil {
		logger.Error().Err(err).Str("correlation_id", args[0]).Msg("Failed to load integration logs")
		return
	}

	for _, entry := range entries {
		event := logger.Info().
			Str("operation", string(entry.Operation)).
			Str("status", string(entry.Status)).
			Int("attempt", entry.Attempt).
			Int64("duration_ms", entry.DurationMs).
			Time("started_at", entry.StartedAt).
			Str("initiated_by", entry.InitiatedBy)
		if entry.ErrorDetail != nil {
			event = event.Str("error_detail", *entry.ErrorDetail)
		}
		event.Msg("Integration log entry")
	}
	logger.Info().Int("entries", len(entries)).Str("correlation_id", args[0]).Msg("Run trace complete")
}

func runMarkEdited(cmd *cobra.Command, args []string) {
	logger, wiring, connectorID, ok := setup("sync-mark-edited", args[0])
	if !ok {
		return
	}

	entityID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		logger.Error().Str("argument", args[1]).Msg("Entity id must be numeric")
		return
	}

	if err := wiring.InitOrchestrator(nil).MarkEntityManuallyEdited(cmd.Context(), connectorID, entityID); err != nil {
		logger.Error().Err(err).
			Int64("connector_id", connectorID).
			Int64("entity_id", entityID).
			Msg("Failed to record manual edit")
		return
	}

	logger.Info().
		Int64("connector_id", connectorID).
		Int64("entity_id", entityID).
		Msg("Manual edit recorded")
}

func showRecords(
	component string,
	arg string,
	query func(o *orchestrator.SyncOrchestrator, connectorID int64) ([]*models.SyncRecord, error),
) {
	logger, wiring, connectorID, ok := setup(component, arg)
	if !ok {
		return
	}

	records, err := query(wiring.InitOrchestrator(nil), connectorID)
	if err != nil {
		logger.Error().Err(err).Int64("connector_id", connectorID).Msg("Failed to load sync records")
		return
	}

	for _, record := range records {
		event := logger.Info().
			Str("correlation_id", record.CorrelationID).
			Str("external_id", record.ExternalID).
			Str("status", record.Status.String()).
			Str("initiated_by", record.InitiatedBy).
			Time("synced_at", record.SyncedAt)
		if record.RejectionReason != nil {
			event = event.Str("rejection_reason", *record.RejectionReason)
		}
		if record.ConflictResolution != nil {
			event = event.Str("conflict_resolution", string(*record.ConflictResolution))
		}
		event.Msg("Sync record")
	}
	logger.Info().Int("records", len(records)).Int64("connector_id", connectorID).Msg("Query complete")
}

func setup(component string, arg string) (zerolog.Logger, *core.Wiring, int64, bool) {
	logger, wiring, ok := loadWiring(component)
	if !ok {
		return logger, nil, 0, false
	}

	connectorID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		logger.Error().Str("argument", arg).Msg("Connector id must be numeric")
		return logger, nil, 0, false
	}
	return logger, wiring, connectorID, true
}

func loadWiring(component string) (zerolog.Logger, *core.Wiring, bool) {
	logger := log.Logger.With().Str("component", component).Logger()

	appConfig, err := config.NewConfig()
	if err != nil {
		logger.Error().Err(err).Msg("Error creating config")
		return logger, nil, false
	}
	log.Init(appConfig.ID, appConfig.LogLevel)
	logger = log.Logger.With().Str("component", component).Logger()

	return logger, core.NewWiring(appConfig), true
}
