package storage

import (
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/model"
)

const (
	// DefaultToneTolerance is the tone detector tolerance, in percent, assigned to agencies without one.
	DefaultToneTolerance = 2.0
	// DefaultIgnoreTime is the number of seconds repeated tone matches are ignored for.
	DefaultIgnoreTime = 180.0
)

// AutoMigrate creates or updates the dispatch tables and backfills agency tone defaults.
func AutoMigrate(database *gorm.DB) error {
	if err := database.AutoMigrate(&model.System{}, &model.SystemAlertEmail{}, &model.Agency{}, &model.AgencyEmail{}); err != nil {
		return err
	}
	return backfillAgencyToneDefaults(database)
}

func backfillAgencyToneDefaults(database *gorm.DB) error {
	if err := database.Model(&model.Agency{}).
		Where("tone_tolerance IS NULL OR tone_tolerance <= 0").
		Update("tone_tolerance", DefaultToneTolerance).Error; err != nil {
		return err
	}
	return database.Model(&model.Agency{}).
		Where("ignore_time IS NULL OR ignore_time <= 0").
		Update("ignore_time", DefaultIgnoreTime).Error
}
