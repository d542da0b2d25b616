package model

import (
	"time"

	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []any{
	&Session{},
	&FrameReport{},
}

// Session is one recording session, from start to stop.
type Session struct {
	ID        string     `json:"id" gorm:"primaryKey;size:36"`
	Mission   string     `json:"mission" gorm:"size:255;index:idx_session_mission"`
	StartedAt time.Time  `json:"startedAt" gorm:"index:idx_session_started"`
	EndedAt   *time.Time `json:"endedAt"`
	Reports   int        `json:"reports"`
}

func (*Session) TableName() string {
	return "sessions"
}

// FrameReport is one rolling monitor report.
type FrameReport struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time" gorm:"index:idx_framereport_time"`
	SessionID string    `json:"sessionId" gorm:"size:36;index:idx_framereport_session_id"`
	Session   Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Kind      string    `json:"kind" gorm:"size:16"`
	Level     string    `json:"level" gorm:"size:8"`
	Frame     uint64    `json:"frame"`
	SimTime   float64   `json:"simTime"`
	Frames    int       `json:"frames"`
	FPS       float64   `json:"fps"`
	// MinFrameMs is the fastest frame in the window, the value compared to
	// the stall threshold.
	MinFrameMs    float64        `json:"minFrameMs"`
	MaxUnits      int            `json:"maxUnits"`
	MaxBallistics int            `json:"maxBallistics"`
	Summary       datatypes.JSON `json:"summary"`
}

func (*FrameReport) TableName() string {
	return "frame_reports"
}
