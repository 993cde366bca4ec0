package models

import "time"

type SyncRecordStatus string

const (
	SyncRecordStatusImported SyncRecordStatus = "imported"
	SyncRecordStatusUpdated  SyncRecordStatus = "updated"
	SyncRecordStatusRejected SyncRecordStatus = "rejected"
	SyncRecordStatusConflict SyncRecordStatus = "conflict"
	SyncRecordStatusFailed   SyncRecordStatus = "failed"
)

func (s SyncRecordStatus) String() string {
	return string(s)
}

type ConflictResolution string

const (
	ConflictResolutionPreserved  ConflictResolution = "preserved"
	ConflictResolutionOverridden ConflictResolution = "overridden"
)

// InitiatedBySystem is recorded as the initiating user of scheduled runs.
const InitiatedBySystem = "system"

// SyncRecord is the audit record for one external record processed in a run.
// RawPayload is retained for rejected and conflicted records so operators can
// inspect what the source actually sent.
type SyncRecord struct {
	ID                  int64               `db:"id"`
	CorrelationID       string              `db:"correlation_id"`
	ConnectorID         int64               `db:"connector_id"`
	ExternalID          string              `db:"external_id"`
	RawPayload          string              `db:"raw_payload"`
	EntityID            *int64              `db:"entity_id"`
	Status              SyncRecordStatus    `db:"status"`
	RejectionReason     *string             `db:"rejection_reason"`
	ConflictDetected    bool                `db:"conflict_detected"`
	ConflictResolution  *ConflictResolution `db:"conflict_resolution"`
	OverwroteApproved   bool                `db:"overwrote_approved_data"`
	ApprovedOverrideBy  *string             `db:"approved_override_by"`
	InitiatedBy         string              `db:"initiated_by"`
	SyncedAt            time.Time           `db:"synced_at"`
}

func (r *SyncRecord) SetRejected(reason string) {
	r.Status = SyncRecordStatusRejected
	r.RejectionReason = &reason
}

func (r *SyncRecord) SetConflictPreserved() {
	resolution := ConflictResolutionPreserved
	r.Status = SyncRecordStatusConflict
	r.ConflictDetected = true
	r.ConflictResolution = &resolution
}

func (r *SyncRecord) SetConflictOverridden(approvedBy string) {
	resolution := ConflictResolutionOverridden
	r.Status = SyncRecordStatusConflict
	r.ConflictDetected = true
	r.ConflictResolution = &resolution
	r.OverwroteApproved = true
	r.ApprovedOverrideBy = &approvedBy
}
