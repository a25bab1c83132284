package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mselim/campaign-gateway/internal/model"
	"github.com/mselim/campaign-gateway/pkg/logger"
)

var (
	ErrEmptyImport         = errors.New("import source contains no rows")
	ErrNoPhoneColumn       = errors.New("csv has no phone column")
	ErrCampaignNotEditable = errors.New("contacts can only be added to draft, scheduled or paused campaigns")
)

// CrmDirectory exposes the read-only CRM contact store.
type CrmDirectory interface {
	ListWithPhone(ctx context.Context) ([]model.RawContact, error)
}

type ContactWriter interface {
	Insert(ctx context.Context, c *model.Contact) (bool, error)
	List(ctx context.Context, f model.ContactFilter) ([]*model.Contact, int64, error)
}

type CampaignReader interface {
	GetStatus(ctx context.Context, id int64) (model.CampaignStatus, error)
	SyncTotals(ctx context.Context, id int64) error
}

type ImportService struct {
	contacts  ContactWriter
	campaigns CampaignReader
	crm       CrmDirectory
}

func NewImportService(contacts ContactWriter, campaigns CampaignReader, crm CrmDirectory) *ImportService {
	return &ImportService{
		contacts:  contacts,
		campaigns: campaigns,
		crm:       crm,
	}
}

// ImportManual parses pasted text, one contact per line. Fields are
// separated by commas or tabs: phone, first name, last name.
func (s *ImportService) ImportManual(ctx context.Context, campaignID int64, text string) (*model.ImportResult, error) {
	var raws []model.RawContact
	skippedLines := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == '\t'
		})
		// Separator-only lines produce no fields at all.
		if len(fields) == 0 || strings.TrimSpace(fields[0]) == "" {
			skippedLines++
			continue
		}
		raw := model.RawContact{PhoneRaw: strings.TrimSpace(fields[0])}
		if len(fields) > 1 {
			raw.FirstName = strings.TrimSpace(fields[1])
		}
		if len(fields) > 2 {
			raw.LastName = strings.TrimSpace(fields[2])
		}
		raws = append(raws, raw)
	}

	if len(raws) == 0 && skippedLines == 0 {
		return nil, ErrEmptyImport
	}

	result, err := s.importRaw(ctx, campaignID, raws, model.ContactSourceManual)
	if err != nil {
		return nil, err
	}
	result.Skipped += skippedLines
	return result, nil
}

// ImportCSV parses a CSV document. Column roles are discovered from the
// header row by case-insensitive substring match.
func (s *ImportService) ImportCSV(ctx context.Context, campaignID int64, r io.Reader) (*model.ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, ErrEmptyImport
	}

	phoneIdx, firstIdx, lastIdx := -1, -1, -1
	for i, col := range header {
		name := strings.ToLower(strings.TrimSpace(col))
		switch {
		case phoneIdx < 0 && (strings.Contains(name, "phone") || strings.Contains(name, "mobile")):
			phoneIdx = i
		case lastIdx < 0 && strings.Contains(name, "last"):
			lastIdx = i
		case firstIdx < 0 && (strings.Contains(name, "name") || strings.Contains(name, "first")):
			firstIdx = i
		}
	}
	if phoneIdx < 0 {
		return nil, ErrNoPhoneColumn
	}

	var raws []model.RawContact
	skippedRows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skippedRows++
			continue
		}
		if phoneIdx >= len(record) || strings.TrimSpace(record[phoneIdx]) == "" {
			skippedRows++
			continue
		}

		raw := model.RawContact{PhoneRaw: strings.TrimSpace(record[phoneIdx])}
		if firstIdx >= 0 && firstIdx < len(record) {
			raw.FirstName = strings.TrimSpace(record[firstIdx])
		}
		if lastIdx >= 0 && lastIdx < len(record) {
			raw.LastName = strings.TrimSpace(record[lastIdx])
		}
		raws = append(raws, raw)
	}

	if len(raws) == 0 && skippedRows == 0 {
		return nil, ErrEmptyImport
	}

	result, err := s.importRaw(ctx, campaignID, raws, model.ContactSourceCSV)
	if err != nil {
		return nil, err
	}
	result.Skipped += skippedRows
	return result, nil
}

// ImportCRM pulls every CRM contact that has a phone number on file.
func (s *ImportService) ImportCRM(ctx context.Context, campaignID int64) (*model.ImportResult, error) {
	if s.crm == nil {
		return nil, errors.New("crm directory is not configured")
	}

	raws, err := s.crm.ListWithPhone(ctx)
	if err != nil {
		return nil, fmt.Errorf("crm lookup: %w", err)
	}
	if len(raws) == 0 {
		return nil, ErrEmptyImport
	}

	return s.importRaw(ctx, campaignID, raws, model.ContactSourceCRM)
}

// ListContacts returns campaign contacts filtered by status.
func (s *ImportService) ListContacts(ctx context.Context, f model.ContactFilter) ([]*model.Contact, int64, error) {
	return s.contacts.List(ctx, f)
}

func (s *ImportService) importRaw(ctx context.Context, campaignID int64, raws []model.RawContact, source model.ContactSource) (*model.ImportResult, error) {
	status, err := s.campaigns.GetStatus(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if status != model.CampaignStatusDraft && status != model.CampaignStatusPaused && status != model.CampaignStatusScheduled {
		return nil, ErrCampaignNotEditable
	}

	result := &model.ImportResult{}
	for _, raw := range raws {
		phone, err := model.NormalizePhone(raw.PhoneRaw)
		if err != nil {
			result.Skipped++
			continue
		}

		inserted, err := s.contacts.Insert(ctx, &model.Contact{
			CampaignID:  campaignID,
			PhoneNumber: phone,
			FirstName:   strings.TrimSpace(raw.FirstName),
			LastName:    strings.TrimSpace(raw.LastName),
			Status:      model.ContactStatusPending,
			Source:      source,
		})
		if err != nil {
			return nil, fmt.Errorf("insert contact: %w", err)
		}
		if inserted {
			result.Imported++
		} else {
			result.Skipped++
		}
	}

	if err := s.campaigns.SyncTotals(ctx, campaignID); err != nil {
		return nil, fmt.Errorf("sync totals: %w", err)
	}

	logger.Info("Contacts imported", "campaign_id", campaignID, "source", string(source), "imported", result.Imported, "skipped", result.Skipped)

	return result, nil
}
