package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/model"
	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/storage"
)

const (
	DefaultEmailAlertBody      = `{agency_list} Alert at {timestamp}<br><br>{transcript}<br><br><a href="{audio_url}">Click for Dispatch Audio</a><br><br><a href="{stream_url}">Click Audio Stream</a>`
	DefaultPushoverBody        = `<font color="red"><b>{agency_name}</b></font><br><br><a href="{audio_url}">Click for Dispatch Audio</a><br><br><a href="{stream_url}">Click Audio Stream</a>`
	DefaultFacebookPostBody    = "{timestamp} Departments:\n{agency_list}\n\nDispatch Audio:\n{audio_url}"
	DefaultFacebookCommentBody = "{transcript}{stream_url}"
	DefaultEmailAddressFrom    = "dispatch@example.com"
	DefaultEmailTextFrom       = "iCAD Dispatch"
	DefaultAlertSubject        = "Dispatch Alert"
	DefaultPushoverSound       = "pushover"
	DefaultSMTPSecurity        = 2
	DefaultMQTTPort            = 1883
	DefaultMQTTMessageInterval = 5.0

	emptyHeadersJSON = "{}"
	alertEmailJoiner = ", "
)

var (
	ErrSystemNotFound  = errors.New("backend: system not found")
	ErrAgencyNotFound  = errors.New("backend: agency not found")
	ErrDuplicateSystem = errors.New("backend: a system with that name already exists")
	ErrDuplicateAgency = errors.New("backend: an agency with that agency code already exists")
	ErrMissingSystemID = errors.New("backend: no system id given")
)

// Store persists systems and agencies.
type Store struct {
	database *gorm.DB
}

func NewStore(database *gorm.DB) *Store {
	return &Store{database: database}
}

// ListSystems returns every system, or only systemID when it is non-zero.
func (store *Store) ListSystems(ctx context.Context, systemID uint, withAgencies bool) ([]model.System, error) {
	query := store.database.WithContext(ctx).Preload("AlertEmails", func(database *gorm.DB) *gorm.DB {
		return database.Order("id")
	}).Order("system_id")
	if withAgencies {
		query = query.Preload("Agencies", func(database *gorm.DB) *gorm.DB {
			return database.Order("agency_id")
		}).Preload("Agencies.Emails", func(database *gorm.DB) *gorm.DB {
			return database.Order("id")
		})
	}
	if systemID != 0 {
		query = query.Where("system_id = ?", systemID)
	}
	var systems []model.System
	if err := query.Find(&systems).Error; err != nil {
		return nil, err
	}
	for index := range systems {
		projectSystem(&systems[index])
	}
	return systems, nil
}

// ListAgencies returns the agencies of systemID.
func (store *Store) ListAgencies(ctx context.Context, systemID uint) ([]model.Agency, error) {
	var agencies []model.Agency
	if err := store.database.WithContext(ctx).
		Preload("Emails", func(database *gorm.DB) *gorm.DB {
			return database.Order("id")
		}).
		Where("system_id = ?", systemID).
		Order("agency_id").
		Find(&agencies).Error; err != nil {
		return nil, err
	}
	for index := range agencies {
		projectAgency(&agencies[index])
	}
	return agencies, nil
}

// CreateSystem inserts a system with default settings and a freshly generated API key.
func (store *Store) CreateSystem(ctx context.Context, values formValues) (uint, error) {
	system := model.System{
		SystemAPIKey:        storage.NewID(),
		SMTPSecurity:        DefaultSMTPSecurity,
		EmailAddressFrom:    DefaultEmailAddressFrom,
		EmailTextFrom:       DefaultEmailTextFrom,
		EmailAlertSubject:   DefaultAlertSubject,
		EmailAlertBody:      DefaultEmailAlertBody,
		PushoverSubject:     DefaultAlertSubject,
		PushoverBody:        DefaultPushoverBody,
		PushoverSound:       DefaultPushoverSound,
		FacebookPostBody:    DefaultFacebookPostBody,
		FacebookCommentBody: DefaultFacebookCommentBody,
		WebhookHeadersJSON:  emptyHeadersJSON,
	}
	defaultMQTTPort := DefaultMQTTPort
	system.MQTTPort = &defaultMQTTPort
	if applyErr := applySystemValues(&system, values); applyErr != nil {
		return 0, applyErr
	}
	// The key is generated server side; a posted value never seeds a new system.
	system.SystemAPIKey = storage.NewID()
	if strings.TrimSpace(system.SystemName) == "" {
		return 0, fmt.Errorf("%w: system_name is required", ErrInvalidField)
	}

	createErr := store.database.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		if duplicateErr := ensureUniqueSystemName(transaction, system.SystemName, 0); duplicateErr != nil {
			return duplicateErr
		}
		if err := transaction.Omit(clause.Associations).Create(&system).Error; err != nil {
			return err
		}
		if emails, present := values.emailList(fieldSystemAlertEmails); present {
			return syncSystemAlertEmails(transaction, system.SystemID, emails)
		}
		return nil
	})
	if createErr != nil {
		return 0, createErr
	}
	return system.SystemID, nil
}

// UpdateSystem applies the posted settings to an existing system.
func (store *Store) UpdateSystem(ctx context.Context, systemID uint, values formValues) error {
	return store.database.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		var system model.System
		if err := transaction.First(&system, "system_id = ?", systemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSystemNotFound
			}
			return err
		}
		if applyErr := applySystemValues(&system, values); applyErr != nil {
			return applyErr
		}
		if strings.TrimSpace(system.SystemName) == "" {
			return fmt.Errorf("%w: system_name is required", ErrInvalidField)
		}
		if strings.TrimSpace(system.SystemAPIKey) == "" {
			system.SystemAPIKey = storage.NewID()
		}
		if duplicateErr := ensureUniqueSystemName(transaction, system.SystemName, system.SystemID); duplicateErr != nil {
			return duplicateErr
		}
		if err := transaction.Omit(clause.Associations).Save(&system).Error; err != nil {
			return err
		}
		if emails, present := values.emailList(fieldSystemAlertEmails); present {
			return syncSystemAlertEmails(transaction, system.SystemID, emails)
		}
		return nil
	})
}

// DeleteSystem removes a system together with its agencies and recipients.
func (store *Store) DeleteSystem(ctx context.Context, systemID uint) error {
	return store.database.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		agencyIDs := transaction.Model(&model.Agency{}).Select("agency_id").Where("system_id = ?", systemID)
		if err := transaction.Where("agency_id IN (?)", agencyIDs).Delete(&model.AgencyEmail{}).Error; err != nil {
			return err
		}
		if err := transaction.Where("system_id = ?", systemID).Delete(&model.Agency{}).Error; err != nil {
			return err
		}
		if err := transaction.Where("system_id = ?", systemID).Delete(&model.SystemAlertEmail{}).Error; err != nil {
			return err
		}
		result := transaction.Where("system_id = ?", systemID).Delete(&model.System{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrSystemNotFound
		}
		return nil
	})
}

// CreateAgency inserts an agency under systemID.
func (store *Store) CreateAgency(ctx context.Context, systemID uint, values formValues) (uint, error) {
	agency := model.Agency{
		SystemID:            systemID,
		ToneTolerance:       storage.DefaultToneTolerance,
		IgnoreTime:          storage.DefaultIgnoreTime,
		MQTTMessageInterval: DefaultMQTTMessageInterval,
		WebhookHeadersJSON:  emptyHeadersJSON,
	}
	if applyErr := applyAgencyValues(&agency, values); applyErr != nil {
		return 0, applyErr
	}
	if strings.TrimSpace(agency.AgencyCode) == "" || strings.TrimSpace(agency.AgencyName) == "" {
		return 0, fmt.Errorf("%w: agency_code and agency_name are required", ErrInvalidField)
	}

	createErr := store.database.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		if existsErr := ensureSystemExists(transaction, systemID); existsErr != nil {
			return existsErr
		}
		if duplicateErr := ensureUniqueAgencyCode(transaction, systemID, agency.AgencyCode, 0); duplicateErr != nil {
			return duplicateErr
		}
		if err := transaction.Omit(clause.Associations).Create(&agency).Error; err != nil {
			return err
		}
		if emails, present := values.emailList(fieldAgencyEmails); present {
			return syncAgencyEmails(transaction, agency.AgencyID, emails)
		}
		return nil
	})
	if createErr != nil {
		return 0, createErr
	}
	return agency.AgencyID, nil
}

// UpdateAgency applies the posted settings to an agency of systemID.
func (store *Store) UpdateAgency(ctx context.Context, systemID uint, agencyID uint, values formValues) error {
	return store.database.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		var agency model.Agency
		if err := transaction.First(&agency, "agency_id = ? AND system_id = ?", agencyID, systemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAgencyNotFound
			}
			return err
		}
		if applyErr := applyAgencyValues(&agency, values); applyErr != nil {
			return applyErr
		}
		if strings.TrimSpace(agency.AgencyCode) == "" || strings.TrimSpace(agency.AgencyName) == "" {
			return fmt.Errorf("%w: agency_code and agency_name are required", ErrInvalidField)
		}
		if duplicateErr := ensureUniqueAgencyCode(transaction, systemID, agency.AgencyCode, agency.AgencyID); duplicateErr != nil {
			return duplicateErr
		}
		if err := transaction.Omit(clause.Associations).Save(&agency).Error; err != nil {
			return err
		}
		if emails, present := values.emailList(fieldAgencyEmails); present {
			return syncAgencyEmails(transaction, agency.AgencyID, emails)
		}
		return nil
	})
}

// DeleteAgency removes an agency of systemID by id, or by agency code when agencyID is zero.
func (store *Store) DeleteAgency(ctx context.Context, systemID uint, agencyID uint, agencyCode string) error {
	return store.database.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		var agency model.Agency
		lookup := transaction.Where("system_id = ?", systemID)
		if agencyID != 0 {
			lookup = lookup.Where("agency_id = ?", agencyID)
		} else {
			lookup = lookup.Where("agency_code = ?", agencyCode)
		}
		if err := lookup.First(&agency).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAgencyNotFound
			}
			return err
		}
		if err := transaction.Where("agency_id = ?", agency.AgencyID).Delete(&model.AgencyEmail{}).Error; err != nil {
			return err
		}
		return transaction.Delete(&model.Agency{}, "agency_id = ?", agency.AgencyID).Error
	})
}

func ensureUniqueSystemName(transaction *gorm.DB, systemName string, exceptSystemID uint) error {
	var count int64
	if err := transaction.Model(&model.System{}).
		Where("system_name = ? AND system_id <> ?", systemName, exceptSystemID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicateSystem
	}
	return nil
}

func ensureUniqueAgencyCode(transaction *gorm.DB, systemID uint, agencyCode string, exceptAgencyID uint) error {
	var count int64
	if err := transaction.Model(&model.Agency{}).
		Where("system_id = ? AND agency_code = ? AND agency_id <> ?", systemID, agencyCode, exceptAgencyID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicateAgency
	}
	return nil
}

func ensureSystemExists(transaction *gorm.DB, systemID uint) error {
	var count int64
	if err := transaction.Model(&model.System{}).Where("system_id = ?", systemID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrSystemNotFound
	}
	return nil
}

// syncSystemAlertEmails makes the stored recipient set equal to emails.
func syncSystemAlertEmails(transaction *gorm.DB, systemID uint, emails []string) error {
	var current []model.SystemAlertEmail
	if err := transaction.Where("system_id = ?", systemID).Find(&current).Error; err != nil {
		return err
	}
	wanted := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		wanted[email] = struct{}{}
	}
	existing := make(map[string]struct{}, len(current))
	for _, stored := range current {
		existing[stored.Email] = struct{}{}
		if _, keep := wanted[stored.Email]; keep {
			continue
		}
		if err := transaction.Delete(&model.SystemAlertEmail{}, stored.ID).Error; err != nil {
			return err
		}
	}
	for _, email := range emails {
		if _, stored := existing[email]; stored {
			continue
		}
		if err := transaction.Create(&model.SystemAlertEmail{SystemID: systemID, Email: email}).Error; err != nil {
			return err
		}
	}
	return nil
}

func syncAgencyEmails(transaction *gorm.DB, agencyID uint, emails []string) error {
	if err := transaction.Where("agency_id = ?", agencyID).Delete(&model.AgencyEmail{}).Error; err != nil {
		return err
	}
	for _, email := range emails {
		if err := transaction.Create(&model.AgencyEmail{AgencyID: agencyID, EmailAddress: email}).Error; err != nil {
			return err
		}
	}
	return nil
}

func projectSystem(system *model.System) {
	emails := make([]string, 0, len(system.AlertEmails))
	for _, alertEmail := range system.AlertEmails {
		emails = append(emails, alertEmail.Email)
	}
	system.AlertEmailList = strings.Join(emails, alertEmailJoiner)
	system.WebhookHeaders = decodeHeaders(system.WebhookHeadersJSON)
	for index := range system.Agencies {
		projectAgency(&system.Agencies[index])
	}
}

func projectAgency(agency *model.Agency) {
	agency.EmailList = make([]string, 0, len(agency.Emails))
	for _, agencyEmail := range agency.Emails {
		agency.EmailList = append(agency.EmailList, agencyEmail.EmailAddress)
	}
	agency.WebhookHeaders = decodeHeaders(agency.WebhookHeadersJSON)
}
