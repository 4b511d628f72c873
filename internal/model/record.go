package model

// SyncMeta is the sync-relevant metadata every Record carries (§3).
type SyncMeta struct {
	IsSynced      bool   `json:"isSynced"`
	SyncPending   bool   `json:"syncPending"`
	ServerVersion string `json:"serverVersion,omitempty"`
}

// Record is the generic persisted entity shape. Kind-specific payloads are
// carried in Payload as kind-tagged JSON; components that need the typed
// payload (e.g. EVVRecord) decode it with encoding/json.
// updatedAt is monotonically non-decreasing per (EntityKind, ID); this is
// enforced by the Local Store on write, not by this type.
type Record struct {
	ID             string     `json:"id" db:"id"`
	EntityKind     EntityKind `json:"entityKind" db:"entity_kind"`
	OrganizationID string     `json:"organizationId" db:"organization_id"`
	UpdatedAt      int64      `json:"updatedAt" db:"updated_at"`
	Deleted        bool       `json:"deleted" db:"deleted"`
	Payload        []byte     `json:"payload" db:"payload"`
	SyncMeta
}

// Location is a captured GPS/network fix.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

// ServiceAddress is the scheduled service location for a visit.
type ServiceAddress struct {
	Line             string  `json:"line"`
	City             string  `json:"city"`
	StateCode        string  `json:"stateCode"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	GeofenceRadius   float64 `json:"geofenceRadius"`
}

// Verification is the captured evidence accompanying a clock event (§3).
type Verification struct {
	Latitude            float64            `json:"latitude"`
	Longitude           float64            `json:"longitude"`
	Accuracy            float64            `json:"accuracy"`
	Timestamp           int64              `json:"timestamp"`
	TimestampSource     string             `json:"timestampSource"`
	Method              VerificationMethod `json:"method"`
	LocationSource      string             `json:"locationSource"`
	IsWithinGeofence    bool               `json:"isWithinGeofence"`
	DistanceFromAddress float64            `json:"distanceFromAddress"`
	GeofencePassed      bool               `json:"geofencePassed"`
	DeviceID            string             `json:"deviceId"`
	MockLocationDetected bool              `json:"mockLocationDetected"`
	VerificationPassed  bool               `json:"verificationPassed"`
	PhotoURL            string             `json:"photoUrl,omitempty"`
	BiometricVerified   *bool              `json:"biometricVerified,omitempty"`

	// SupervisorOverrideID is required whenever Method is MANUAL (§3
	// invariant). Empty means no supervisor-approved override exists.
	SupervisorOverrideID string `json:"supervisorOverrideId,omitempty"`
}

// DeviceInfo is captured once per clock event for device validation (§4.4).
type DeviceInfo struct {
	DeviceID     string `json:"deviceId"`
	DeviceModel  string `json:"deviceModel"`
	DeviceOS     string `json:"deviceOS"`
	AppVersion   string `json:"appVersion"`
	IsRooted     bool   `json:"isRooted"`
	IsJailbroken bool   `json:"isJailbroken"`
}

// EVVRecord carries the regulated clock event (§3).
type EVVRecord struct {
	VisitID              string             `json:"visitId"`
	ClientID             string             `json:"clientId"`
	CaregiverID          string             `json:"caregiverId"`
	ServiceDate          string             `json:"serviceDate"`
	ServiceAddress       ServiceAddress     `json:"serviceAddress"`
	ClockInTime          int64              `json:"clockInTime"`
	ClockOutTime         int64              `json:"clockOutTime,omitempty"`
	ClockInVerification  Verification       `json:"clockInVerification"`
	ClockOutVerification *Verification      `json:"clockOutVerification,omitempty"`
	RecordStatus         RecordStatus       `json:"recordStatus"`
	VerificationLevel    VerificationLevel  `json:"verificationLevel"`
	ComplianceFlags      []ComplianceFlag   `json:"complianceFlags"`
	TotalDurationMinutes int64              `json:"totalDurationMinutes,omitempty"`
	IntegrityHash        string             `json:"integrityHash"`
	IntegrityChecksum    string             `json:"integrityChecksum"`
}

// HasComplianceFlag reports whether the record carries the given flag.
func (r *EVVRecord) HasComplianceFlag(f ComplianceFlag) bool {
	for _, existing := range r.ComplianceFlags {
		if existing == f {
			return true
		}
	}
	return false
}
