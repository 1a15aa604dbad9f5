package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/racereg/internal/config"
	"github.com/JonMunkholm/racereg/internal/logging"
)

// Service provides the registration operations on top of a Store.
type Service struct {
	store  Store
	cfg    *config.Config
	now    func() time.Time
	policy DistancePolicy
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDistancePolicy replaces FirstEntryLongest.
func WithDistancePolicy(p DistancePolicy) Option {
	return func(s *Service) { s.policy = p }
}

// NewService creates a Service. The store stays owned by the caller.
func NewService(store Store, cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		store:  store,
		cfg:    cfg,
		now:    time.Now,
		policy: FirstEntryLongest,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ImportReport is the outcome of one reconciliation batch.
type ImportReport struct {
	BatchID        uuid.UUID
	FileName       string
	Classification *ClassifyResult
	Reconcile      *ReconcileResult

	// Paths of the diagnostic files written, empty when not needed.
	InvalidFile   string
	DuplicateFile string
}

// Skipped returns the number of rows that were neither inserted nor updated.
func (r *ImportReport) Skipped() int {
	return r.Classification.Empty + len(r.Classification.Invalid) + len(r.Reconcile.Failed)
}

// ImportFile reconciles the CSV at path. A missing file fails with
// ErrInputNotFound before the store is touched.
func (s *Service) ImportFile(ctx context.Context, path string) (*ImportReport, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	return s.Import(ctx, filepath.Base(path), f)
}

// Import reconciles a CSV stream as one batch.
func (s *Service) Import(ctx context.Context, name string, r io.Reader) (*ImportReport, error) {
	header, rows, err := ReadRows(r, s.cfg.Import.MaxFileSize)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	batch := ImportBatch{ID: uuid.New(), FileName: name, StartedAt: s.now()}
	ctx = logging.ContextWithBatchID(ctx, batch.ID.String())
	logger := logging.FromContext(ctx)
	logger.Info("import started", "file", name, "rows", len(rows))

	report := &ImportReport{BatchID: batch.ID, FileName: name}
	err = s.store.RunInTx(ctx, func(tx Tx) error {
		cls := Classify(ctx, tx, header, rows, s.cfg.Import.Location())
		rec := Reconcile(ctx, tx, cls, s.now())
		report.Classification = cls
		report.Reconcile = rec

		batch.Inserted = rec.Inserted
		batch.Updated = rec.Updated
		batch.Invalid = len(cls.Invalid)
		batch.Empty = cls.Empty
		batch.Failed = len(rec.Failed)
		batch.FinishedAt = s.now()
		return tx.RecordBatch(ctx, batch)
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile %s: %w", name, err)
	}

	if err := s.writeDiagnostics(report); err != nil {
		return report, err
	}

	logger.Info("import finished",
		"added", batch.Inserted,
		"updated", batch.Updated,
		"empty", batch.Empty,
		"invalid", batch.Invalid,
		"failed", batch.Failed,
	)
	return report, nil
}

// writeDiagnostics writes the invalid and duplicate files when there is
// something to put in them.
func (s *Service) writeDiagnostics(report *ImportReport) error {
	cls := report.Classification

	if len(cls.Invalid) > 0 {
		path := filepath.Join(s.cfg.Paths.ConflictsDir, InvalidFileName)
		header, rows := invalidRecords(cls.Header, cls.Invalid)
		if err := WriteCSV(path, header, rows); err != nil {
			return fmt.Errorf("write invalid registrations: %w", err)
		}
		report.InvalidFile = path
	}

	dups := append(append([]ImportRow{}, cls.Updated...), report.Reconcile.Demoted...)
	if len(dups) > 0 {
		path := filepath.Join(s.cfg.Paths.ConflictsDir, DuplicateFileName)
		header, rows := duplicateRecords(cls.Header, dups)
		if err := WriteCSV(path, header, rows); err != nil {
			return fmt.Errorf("write duplicate registrations: %w", err)
		}
		report.DuplicateFile = path
	}

	return nil
}

// StartList builds the start list for raceDate without writing it.
func (s *Service) StartList(ctx context.Context, raceDate Date) (*StartList, error) {
	var list *StartList
	err := s.store.RunInTx(ctx, func(tx Tx) error {
		var err error
		list, err = BuildStartList(ctx, tx, raceDate, s.policy)
		return err
	})
	return list, err
}

// WriteStartList builds the start list and writes it to the start lists
// directory. The file is named after label when given, else the race date.
func (s *Service) WriteStartList(ctx context.Context, raceDate Date, label string) (*StartList, string, error) {
	list, err := s.StartList(ctx, raceDate)
	if err != nil {
		return nil, "", err
	}

	name := "startlist" + raceDate.Time().Format("20060102")
	if label = sanitizeLabel(label); label != "" {
		name = "startlist" + label
	}
	path := filepath.Join(s.cfg.Paths.StartListsDir, name+".csv")

	if err := s.export(path, StartListHeaders, list.Rows()); err != nil {
		return nil, "", err
	}
	return list, path, nil
}

// Roster builds the roster without writing it.
func (s *Service) Roster(ctx context.Context) (*Roster, error) {
	var roster *Roster
	err := s.store.RunInTx(ctx, func(tx Tx) error {
		var err error
		roster, err = BuildRoster(ctx, tx)
		return err
	})
	return roster, err
}

// WriteRoster builds the roster and writes it under a timestamped name.
func (s *Service) WriteRoster(ctx context.Context) (*Roster, string, error) {
	roster, err := s.Roster(ctx)
	if err != nil {
		return nil, "", err
	}

	name := "registrations_list_" + s.now().Format("2006Jan02-1504") + ".csv"
	path := filepath.Join(s.cfg.Paths.RostersDir, name)

	if err := s.export(path, RosterHeaders, roster.Rows()); err != nil {
		return nil, "", err
	}
	return roster, path, nil
}

func (s *Service) export(path string, header []string, rows [][]string) error {
	if err := WriteCSV(path, header, rows); err != nil {
		return err
	}
	if s.cfg.Export.XLSX {
		if err := WriteXLSX(xlsxPath(path), header, rows); err != nil {
			return err
		}
	}
	return nil
}

// SetRaceGender records the race category a non-binary registrant races in.
func (s *Service) SetRaceGender(ctx context.Context, bib int64, gender string) error {
	gender = strings.TrimSpace(gender)
	if gender == "" {
		return fmt.Errorf("race gender: %w", ErrEmptyRequiredField)
	}
	return s.store.RunInTx(ctx, func(tx Tx) error {
		if err := tx.SetOverride(ctx, RaceGenderOverride{RegistrationID: bib, Gender: gender}); err != nil {
			return fmt.Errorf("set race gender for %d: %w", bib, err)
		}
		logging.FromContext(ctx).Info("race gender set", "registration_id", bib, "gender", gender)
		return nil
	})
}

// History returns the most recent import batches, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]ImportBatch, error) {
	var batches []ImportBatch
	err := s.store.RunInTx(ctx, func(tx Tx) error {
		var err error
		batches, err = tx.ListBatches(ctx, limit)
		return err
	})
	return batches, err
}

// Reset deletes every registration, race gender and import record.
func (s *Service) Reset(ctx context.Context) error {
	r, ok := s.store.(Resetter)
	if !ok {
		return errors.New("store does not support reset")
	}
	if err := r.Reset(ctx); err != nil {
		return err
	}
	logging.FromContext(ctx).Warn("all registrations deleted")
	return nil
}

// sanitizeLabel keeps an operator label usable as part of a file name.
func sanitizeLabel(label string) string {
	label = strings.TrimSpace(label)
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, label)
}
