package domain

import "time"

// IncidentStatus represents the lifecycle stage of an incident.
type IncidentStatus string

// Incident statuses. The progression is ordered but not strictly
// monotonic: stepping back from monitoring to identified is allowed.
const (
	IncidentStatusInvestigating IncidentStatus = "investigating"
	IncidentStatusIdentified    IncidentStatus = "identified"
	IncidentStatusMonitoring    IncidentStatus = "monitoring"
	IncidentStatusResolved      IncidentStatus = "resolved"
)

// IsValid checks if the incident status is valid.
func (s IncidentStatus) IsValid() bool {
	switch s {
	case IncidentStatusInvestigating, IncidentStatusIdentified,
		IncidentStatusMonitoring, IncidentStatusResolved:
		return true
	}
	return false
}

// Impact represents the severity classification of an incident.
type Impact string

// Impact levels.
const (
	ImpactNone     Impact = "none"
	ImpactMinor    Impact = "minor"
	ImpactMajor    Impact = "major"
	ImpactCritical Impact = "critical"
)

// IsValid checks if the impact is valid.
func (i Impact) IsValid() bool {
	switch i {
	case ImpactNone, ImpactMinor, ImpactMajor, ImpactCritical:
		return true
	}
	return false
}

// severityRank orders impacts for worst-case comparison.
func (i Impact) severityRank() int {
	switch i {
	case ImpactCritical:
		return 3
	case ImpactMajor:
		return 2
	case ImpactMinor:
		return 1
	default:
		return 0
	}
}

// ImpactToServiceStatus maps a single impact level to the service
// status it imposes on an affected service.
func ImpactToServiceStatus(impact Impact) ServiceStatus {
	switch impact {
	case ImpactCritical:
		return ServiceStatusMajorOutage
	case ImpactMajor:
		return ServiceStatusPartialOutage
	case ImpactMinor:
		return ServiceStatusDegraded
	default:
		return ServiceStatusOperational
	}
}

// StatusForImpacts derives a service's status from the impacts of all
// unresolved incidents currently referencing it: the maximum-severity
// impact wins. An empty set means the service is operational.
func StatusForImpacts(impacts []Impact) ServiceStatus {
	worst := ImpactNone
	for _, impact := range impacts {
		if impact.severityRank() > worst.severityRank() {
			worst = impact
		}
	}
	return ImpactToServiceStatus(worst)
}

// UpdateStatus marks an incident update entry as a regular note or the
// resolving one.
type UpdateStatus string

// Update entry statuses.
const (
	UpdateStatusUpdate   UpdateStatus = "update"
	UpdateStatusResolved UpdateStatus = "resolved"
)

// IsValid checks if the update status is valid.
func (s UpdateStatus) IsValid() bool {
	return s == UpdateStatusUpdate || s == UpdateStatusResolved
}

// InitialUpdateMessage seeds every incident's update log on creation.
const InitialUpdateMessage = "Incident created"

// Incident represents a reported incident affecting one or more services.
// Invariant maintained at every write site: Resolved is true iff Status
// is resolved iff ResolvedAt is set.
type Incident struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      IncidentStatus `json:"status"`
	Impact      Impact         `json:"impact"`
	ServiceIDs  []string       `json:"service_ids"`
	StartedAt   time.Time      `json:"started_at"`
	ResolvedAt  *time.Time     `json:"resolved_at,omitempty"`
	Resolved    bool           `json:"is_resolved"`
	CreatedBy   string         `json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// IsResolved reports whether the incident no longer affects service status.
func (i *Incident) IsResolved() bool {
	return i.Status == IncidentStatusResolved
}

// IncidentUpdate is a single entry in an incident's append-only update log.
type IncidentUpdate struct {
	ID         string       `json:"id"`
	IncidentID string       `json:"incident_id"`
	Message    string       `json:"message"`
	Status     UpdateStatus `json:"status"`
	CreatedBy  string       `json:"created_by"`
	CreatedAt  time.Time    `json:"created_at"`
}
