package model

// System is a row of the `systems` dictionary. Faults reference it by Code.
type System struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// FaultLocation is a row of the `fault_locations` dictionary. Faults store
// the Name in LocationOfFault.
type FaultLocation struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Section is a row of the `sections` dictionary referenced by SectionID.
type Section struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
