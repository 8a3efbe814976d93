// Package history keeps a durable record of who played which round and how
// it ended.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/razzie/razroom/pkg/razroom"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Participation is one player's part in one round.
type Participation struct {
	ID          uint            `gorm:"primaryKey" json:"-"`
	PlayerID    string          `gorm:"index;not null" json:"player_id"`
	Variant     string          `gorm:"index;not null" json:"variant"`
	RoomID      string          `gorm:"index;not null" json:"room_id"`
	DisplayName string          `json:"display_name"`
	Score       razroom.Outcome `gorm:"not null" json:"score"`
	CreatedAt   time.Time       `json:"created_at"`
}

type Recorder struct {
	db  *gorm.DB
	now func() time.Time
}

var _ razroom.Recorder = (*Recorder)(nil)

// Open connects to Postgres and migrates the participation table.
func Open(dsn string) (*Recorder, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	return NewRecorder(db)
}

func NewRecorder(db *gorm.DB) (*Recorder, error) {
	if err := db.AutoMigrate(&Participation{}); err != nil {
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return &Recorder{db: db, now: time.Now}, nil
}

// Participations maps the outcomes of a round to rows.
func Participations(ref razroom.Ref, outcomes []razroom.Participation, at time.Time) []Participation {
	rows := make([]Participation, 0, len(outcomes))
	for _, o := range outcomes {
		if o.PlayerID == "" {
			continue
		}
		rows = append(rows, Participation{
			PlayerID:    o.PlayerID,
			Variant:     ref.Variant,
			RoomID:      ref.ID,
			DisplayName: o.DisplayName,
			Score:       o.Outcome,
			CreatedAt:   at,
		})
	}
	return rows
}

func (r *Recorder) RecordOutcomes(ctx context.Context, ref razroom.Ref, outcomes []razroom.Participation) error {
	rows := Participations(ref, outcomes, r.now())
	if len(rows) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("record outcomes of %s: %w", ref, err)
	}
	return nil
}

// Recent lists the latest rounds of a player, newest first.
func (r *Recorder) Recent(ctx context.Context, playerID string, limit int) ([]Participation, error) {
	var rows []Participation
	err := r.db.WithContext(ctx).
		Where("player_id = ?", playerID).
		Order("created_at desc").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Recorder) Close() error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
