package slotstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/kevcor13/client-interface1/internal/models"
)

// Sheet column layout, rows start at 2 below the header:
// A=id B=date C=time D=status E=client_name F=client_email
// G=booking_date H=remote_interview.
const sheetFirstDataRow = 2

// SheetsConfig configures the Google Sheets backed slot store.
type SheetsConfig struct {
	CredentialsFile string
	SpreadsheetID   string
	SheetName       string
	// Prefiltered: the sheet only carries bookable rows (a filtered
	// view), so no status column filtering happens client side.
	Prefiltered bool
}

// SheetsStore reads and updates slots held in a Google Sheets
// spreadsheet. Updates are read-verify-then-write and therefore not
// atomic: two sessions racing on the same row can both observe an
// available status before either write lands. The losing session's
// confirmation is wrong; this is a documented limitation of the
// backend, not something the client can repair.
type SheetsStore struct {
	svc    *sheets.Service
	cfg    SheetsConfig
	logger zerolog.Logger

	mu       sync.Mutex
	rowCache map[string]int // slot id -> sheet row
}

// NewSheetsStore builds the client from a service-account credentials file.
func NewSheetsStore(ctx context.Context, cfg SheetsConfig, logger zerolog.Logger) (*SheetsStore, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	if cfg.SheetName == "" {
		cfg.SheetName = "Slots"
	}
	return &SheetsStore{
		svc:      svc,
		cfg:      cfg,
		logger:   logger.With().Str("component", "slotstore_sheets").Logger(),
		rowCache: make(map[string]int),
	}, nil
}

// Prefiltered implements Store.
func (s *SheetsStore) Prefiltered() bool { return s.cfg.Prefiltered }

// List reads all slot rows from the sheet.
func (s *SheetsStore) List(ctx context.Context) ([]models.Slot, error) {
	readRange := fmt.Sprintf("%s!A%d:H", s.cfg.SheetName, sheetFirstDataRow)
	resp, err := s.svc.Spreadsheets.Values.Get(s.cfg.SpreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, mapSheetsError(err)
	}

	slots := make([]models.Slot, 0, len(resp.Values))
	dropped := 0

	s.mu.Lock()
	s.rowCache = make(map[string]int, len(resp.Values))
	for i, row := range resp.Values {
		slot, ok := rowToSlot(row)
		if !ok {
			dropped++
			continue
		}
		s.rowCache[slot.ID] = sheetFirstDataRow + i
		slots = append(slots, slot)
	}
	s.mu.Unlock()

	if dropped > 0 {
		s.logger.Warn().Int("dropped", dropped).Msg("dropped malformed sheet rows")
	}
	return slots, nil
}

// Patch marks the row as booked after verifying the status cell still
// reads available. The verify and the write are two separate calls.
func (s *SheetsStore) Patch(ctx context.Context, id string, p Patch) error {
	row, err := s.rowForSlot(ctx, id)
	if err != nil {
		return err
	}

	statusRange := fmt.Sprintf("%s!D%d", s.cfg.SheetName, row)
	cur, err := s.svc.Spreadsheets.Values.Get(s.cfg.SpreadsheetID, statusRange).Context(ctx).Do()
	if err != nil {
		return mapSheetsError(err)
	}
	if len(cur.Values) > 0 {
		if status := cell(cur.Values[0], 0); status != "" &&
			normalizeStatus(status) != models.SlotAvailable {
			return fmt.Errorf("%w (sheet row %d)", ErrConflict, row)
		}
	}

	vr := &sheets.ValueRange{
		Values: [][]interface{}{{
			string(p.Status),
			p.ClientName,
			p.ClientEmail,
			p.BookingDate,
			p.RemoteInterview,
		}},
	}
	writeRange := fmt.Sprintf("%s!D%d:H%d", s.cfg.SheetName, row, row)
	_, err = s.svc.Spreadsheets.Values.Update(s.cfg.SpreadsheetID, writeRange, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return mapSheetsError(err)
	}
	return nil
}

// rowForSlot resolves the sheet row for a slot id, re-listing once if
// the cached layout is stale.
func (s *SheetsStore) rowForSlot(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	row, ok := s.rowCache[id]
	s.mu.Unlock()
	if ok {
		return row, nil
	}

	if _, err := s.List(ctx); err != nil {
		return 0, err
	}

	s.mu.Lock()
	row, ok = s.rowCache[id]
	s.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("%w: slot %s not found in sheet", ErrRejected, id)
	}
	return row, nil
}

func rowToSlot(row []interface{}) (models.Slot, bool) {
	raw := rawSlot{
		ID:     quoteCell(row, 0),
		Date:   cell(row, 1),
		Time:   cell(row, 2),
		Status: cell(row, 3),
	}
	return raw.toSlot()
}

func quoteCell(row []interface{}, idx int) json.RawMessage {
	s := cell(row, idx)
	if s == "" {
		return nil
	}
	data, _ := json.Marshal(s)
	return data
}

func cell(row []interface{}, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[idx]))
}

func mapSheetsError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return fmt.Errorf("%w: http %d", ErrRejected, gerr.Code)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
