package domain

// Medication is the canonical medication record as stored on the device and
// mirrored to the remote store.
type Medication struct {
	ID                   string   `json:"id"`
	PatientID            string   `json:"patient_id"`
	Name                 string   `json:"name"`
	DoseValue            string   `json:"dose_value"`
	DoseUnit             string   `json:"dose_unit"`
	QuantityType         string   `json:"quantity_type"`
	Frequency            string   `json:"frequency"`
	Times                []string `json:"times,omitempty"`
	Emoji                string   `json:"emoji,omitempty"`
	TrackInventory       bool     `json:"track_inventory"`
	CurrentQuantity      int      `json:"current_quantity"`
	LowQuantityThreshold int      `json:"low_quantity_threshold"`
}

// Clone returns a deep copy. Event snapshots must own their data; the
// original record may be mutated by later edits.
func (m Medication) Clone() Medication {
	c := m
	if m.Times != nil {
		c.Times = make([]string, len(m.Times))
		copy(c.Times, m.Times)
	}
	return c
}
