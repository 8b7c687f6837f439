package models

import "time"

// Session is a completed charging session read from the record store.
type Session struct {
	ID        int64     `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	StationID string    `db:"station_id" json:"station_id"`
	StartTime time.Time `db:"start_time" json:"start_time"`
	EndTime   time.Time `db:"end_time" json:"end_time"`
	EnergyKWh float64   `db:"energy_kwh" json:"energy_kwh"`
}

// SessionRecord is the shape of a session inside a recommendation prompt.
type SessionRecord struct {
	StationID      string    `json:"stationId"`
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime"`
	EnergyConsumed float64   `json:"energyConsumed"`
}

// Record converts a stored session into its prompt representation.
func (s Session) Record() SessionRecord {
	return SessionRecord{
		StationID:      s.StationID,
		StartTime:      s.StartTime.UTC(),
		EndTime:        s.EndTime.UTC(),
		EnergyConsumed: s.EnergyKWh,
	}
}
