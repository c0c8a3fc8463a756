package model

import "time"

// Fault statuses. A fault is created Open and may move freely between the
// four values; closing additionally needs at least one note on the fault.
const (
	StatusOpen       = "Open"
	StatusInProgress = "In Progress"
	StatusPending    = "Pending"
	StatusClosed     = "Closed"
)

// Statuses lists every accepted Status value in display order.
var Statuses = []string{StatusOpen, StatusInProgress, StatusPending, StatusClosed}

// ValidStatus reports whether s is one of Statuses.
func ValidStatus(s string) bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// Fault is a reported incident as stored in the `faults` table. JSON names
// follow the field names the front end already uses.
//
// Fields:
//
//	ID             – faults.id, storage assigned.
//	SystemID       – faults.system_id, a registered system code.
//	SectionID      – faults.section_id (nullable), a registered section.
//	Location       – faults.location, free text.
//	LocationOfFault– faults.location_of_fault (nullable), a registered location name.
//	LocFaultID     – faults.loc_fault_id (nullable).
//	DescFault      – faults.desc_fault.
//	ReportedBy     – faults.reported_by.
//	ExtNo          – faults.ext_no (nullable) telephone extension.
//	AssignTo       – faults.assign_to, one name or "A, B, C".
//	Status         – faults.status.
//	FaultForwardID – faults.fault_forward_id (nullable).
//	DateTime       – faults.date_time, set on create and on every update.
//	Assignees      – decoded AssignTo, not stored in this column.
type Fault struct {
	ID              int64     `json:"id"`
	SystemID        string    `json:"SystemID"`
	SectionID       *int64    `json:"SectionID"`
	Location        string    `json:"Location"`
	LocationOfFault *string   `json:"LocationOfFault"`
	LocFaultID      *int64    `json:"LocFaultID"`
	DescFault       string    `json:"DescFault"`
	ReportedBy      string    `json:"ReportedBy"`
	ExtNo           *string   `json:"ExtNo"`
	AssignTo        string    `json:"AssignTo"`
	Status          string    `json:"Status"`
	FaultForwardID  *int64    `json:"FaultForwardID"`
	DateTime        time.Time `json:"DateTime"`
	Assignees       []string  `json:"Assignees"`
}

// Field names accepted by fault updates. Any other key in an update body is
// ignored.
const (
	FieldSystemID        = "SystemID"
	FieldLocation        = "Location"
	FieldLocationOfFault = "LocationOfFault"
	FieldLocFaultID      = "LocFaultID"
	FieldDescFault       = "DescFault"
	FieldReportedBy      = "ReportedBy"
	FieldExtNo           = "ExtNo"
	FieldAssignTo        = "AssignTo"
	FieldStatus          = "Status"
	FieldSectionID       = "SectionID"
	FieldFaultForwardID  = "FaultForwardID"
)

// UpdatableFields is the update whitelist in a stable order.
var UpdatableFields = []string{
	FieldSystemID, FieldLocation, FieldLocationOfFault, FieldLocFaultID,
	FieldDescFault, FieldReportedBy, FieldExtNo, FieldAssignTo,
	FieldStatus, FieldSectionID, FieldFaultForwardID,
}

// FieldChange is one validated column assignment for a fault update. Value
// is nil for SQL NULL, otherwise a string or int64.
type FieldChange struct {
	Field string
	Value any
}

// FaultUpdate is the validated form of a partial update. Assignees is set
// only when AssignTo changed and replaces the normalized assignee rows.
type FaultUpdate struct {
	Changes   []FieldChange
	Assignees []string
	DateTime  time.Time
}
