package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/OCAP2/tetrad/internal/model"
	"github.com/OCAP2/tetrad/internal/monitor"
	"gorm.io/gorm"
)

// ReportStore is a monitor.ReportSink writing one row per report.
// The session row is created on open and closed off on Close.
type ReportStore struct {
	m       *Manager
	session model.Session
	closed  bool
}

// NewReportStore registers the session and returns a store bound to it.
// Closing the store closes the manager.
func NewReportStore(m *Manager, sessionID, mission string, started time.Time) (*ReportStore, error) {
	s := &ReportStore{
		m: m,
		session: model.Session{
			ID:        sessionID,
			Mission:   mission,
			StartedAt: started,
		},
	}
	if err := m.DB.Create(&s.session).Error; err != nil {
		return nil, fmt.Errorf("failed to register session: %w", err)
	}
	return s, nil
}

// ToModel converts a report to its database row.
func ToModel(r monitor.Report) (model.FrameReport, error) {
	summary, err := json.Marshal(r.Stats)
	if err != nil {
		return model.FrameReport{}, err
	}
	return model.FrameReport{
		Time:          r.At,
		SessionID:     r.Session,
		Kind:          string(r.Kind),
		Level:         string(r.Level),
		Frame:         r.Frame,
		SimTime:       r.SimTime,
		Frames:        r.Stats.Frames,
		FPS:           r.Stats.FPS,
		MinFrameMs:    r.Stats.SimDelta.Min * 1000,
		MaxUnits:      r.Stats.MaxUnits,
		MaxBallistics: r.Stats.MaxBallistics,
		Summary:       summary,
	}, nil
}

// WriteReport inserts the report.
func (s *ReportStore) WriteReport(r monitor.Report) error {
	if r.Session == "" {
		r.Session = s.session.ID
	}
	row, err := ToModel(r)
	if err != nil {
		return fmt.Errorf("failed to encode report summary: %w", err)
	}
	if err := s.m.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	s.session.Reports++
	return nil
}

// Close marks the session ended and closes the database.
func (s *ReportStore) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	ended := time.Now()
	err := s.m.DB.Model(&model.Session{}).
		Where("id = ?", s.session.ID).
		Updates(map[string]any{"ended_at": ended, "reports": s.session.Reports}).Error
	if err != nil {
		s.m.Logger.Error().Err(err).Str("session", s.session.ID).Msg("Failed to close session row")
	}
	if cerr := s.m.Close(); cerr != nil {
		return cerr
	}
	return err
}

// Reports loads every report of a session in insertion order.
func Reports(db *gorm.DB, sessionID string) ([]model.FrameReport, error) {
	var rows []model.FrameReport
	err := db.Where("session_id = ?", sessionID).Order("id").Find(&rows).Error
	return rows, err
}
