package index

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dftracer-utils/traceindex/pkg/common"
)

// Store is the persistent, single-file relational index for one
// archive. Its on-disk path is the archive path with the format's
// IndexExtension appended (spec §6).
type Store struct {
	db *gorm.DB
}

// Open opens (creating if absent) the SQLite-backed index file at
// path and ensures its schema exists.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, common.Wrap(common.CategoryIoError, "open index store "+path, err)
	}

	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, common.Wrap(common.CategoryIoError, "enable foreign keys", err)
	}

	if err := db.AutoMigrate(&fileRow{}, &checkpointRow{}, &metadataRow{}, &tarMemberRow{}); err != nil {
		return nil, common.Wrap(common.CategoryCorruptIndex, "migrate index schema", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying sqlite connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// LoadHandle returns the stored archive identity for logicalName, if
// any row exists.
func (s *Store) LoadHandle(logicalName string) (common.ArchiveHandle, bool, error) {
	var row fileRow
	err := s.db.Where("logical_name = ?", logicalName).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return common.ArchiveHandle{}, false, nil
	}
	if err != nil {
		return common.ArchiveHandle{}, false, common.Wrap(common.CategoryCorruptIndex, "load file row", err)
	}

	return common.ArchiveHandle{
		LogicalName: row.LogicalName,
		ByteSize:    row.ByteSize,
		ModTimeUnix: row.ModTimeUnix,
		SHA256Hex:   row.SHA256Hex,
	}, true, nil
}

// LoadCheckpoints returns all checkpoints for logicalName ordered by
// checkpoint_idx, the order NearestCheckpoint's binary search assumes.
func (s *Store) LoadCheckpoints(logicalName string) ([]common.CheckpointRecord, error) {
	fileID, ok, err := s.fileID(logicalName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var rows []checkpointRow
	if err := s.db.Where("file_id = ?", fileID).Order("checkpoint_idx asc").Find(&rows).Error; err != nil {
		return nil, common.Wrap(common.CategoryCorruptIndex, "load checkpoints", err)
	}

	out := make([]common.CheckpointRecord, len(rows))
	for i, r := range rows {
		out[i] = common.CheckpointRecord{
			CheckpointIdx:  r.CheckpointIdx,
			UCOffset:       r.UCOffset,
			UCSize:         r.UCSize,
			COffset:        r.COffset,
			CSize:          r.CSize,
			Bits:           uint8(r.Bits),
			DictCompressed: r.DictCompressed,
			NumLines:       r.NumLines,
		}
	}
	return out, nil
}

// LoadMetadata returns the stored per-archive totals.
func (s *Store) LoadMetadata(logicalName string) (common.IndexMetadata, error) {
	fileID, ok, err := s.fileID(logicalName)
	if err != nil || !ok {
		return common.IndexMetadata{}, err
	}

	var row metadataRow
	if err := s.db.Where("file_id = ?", fileID).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return common.IndexMetadata{}, nil
		}
		return common.IndexMetadata{}, common.Wrap(common.CategoryCorruptIndex, "load metadata row", err)
	}

	return common.IndexMetadata{
		CheckpointSize: row.CheckpointSize,
		TotalLines:     row.TotalLines,
		TotalUCSize:    row.TotalUCSize,
		HeaderLen:      row.HeaderLen,
	}, nil
}

// LoadTarMembers returns the recorded tar member boundaries for
// logicalName, empty for plain-gzip archives.
func (s *Store) LoadTarMembers(logicalName string) ([]common.TarMember, error) {
	fileID, ok, err := s.fileID(logicalName)
	if err != nil || !ok {
		return nil, err
	}

	var rows []tarMemberRow
	if err := s.db.Where("file_id = ?", fileID).Order("uc_start_offset asc").Find(&rows).Error; err != nil {
		return nil, common.Wrap(common.CategoryCorruptIndex, "load tar members", err)
	}

	out := make([]common.TarMember, len(rows))
	for i, r := range rows {
		out[i] = common.TarMember{Name: r.Name, UCStartOffset: r.UCStartOffset, UCLength: r.UCLength}
	}
	return out, nil
}

func (s *Store) fileID(logicalName string) (int64, bool, error) {
	var row fileRow
	err := s.db.Select("id").Where("logical_name = ?", logicalName).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, common.Wrap(common.CategoryCorruptIndex, "lookup file id", err)
	}
	return row.ID, true, nil
}

// Rebuild atomically replaces everything stored for handle.LogicalName
// with the given checkpoints, metadata, and tar members. Any prior row
// for the same logical name, together with its checkpoint, metadata,
// and member rows, is deleted first, so rebuilding twice from identical
// inputs leaves the same stored content (row ids are assigned afresh).
func (s *Store) Rebuild(handle common.ArchiveHandle, checkpoints []common.CheckpointRecord, meta common.IndexMetadata, members []common.TarMember) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var prior fileRow
		err := tx.Where("logical_name = ?", handle.LogicalName).First(&prior).Error
		if err == nil {
			for _, child := range []any{&checkpointRow{}, &metadataRow{}, &tarMemberRow{}} {
				if err := tx.Where("file_id = ?", prior.ID).Delete(child).Error; err != nil {
					return fmt.Errorf("delete stale rows: %w", err)
				}
			}
		} else if err != gorm.ErrRecordNotFound {
			return fmt.Errorf("lookup stale file row: %w", err)
		}

		if err := tx.Where("logical_name = ?", handle.LogicalName).Delete(&fileRow{}).Error; err != nil {
			return fmt.Errorf("delete stale file row: %w", err)
		}

		row := fileRow{
			LogicalName: handle.LogicalName,
			ByteSize:    handle.ByteSize,
			ModTimeUnix: handle.ModTimeUnix,
			SHA256Hex:   handle.SHA256Hex,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert file row: %w", err)
		}

		if err := tx.Create(&metadataRow{
			FileID:         row.ID,
			CheckpointSize: meta.CheckpointSize,
			TotalLines:     meta.TotalLines,
			TotalUCSize:    meta.TotalUCSize,
			HeaderLen:      meta.HeaderLen,
		}).Error; err != nil {
			return fmt.Errorf("insert metadata row: %w", err)
		}

		cpRows := make([]checkpointRow, len(checkpoints))
		for i, c := range checkpoints {
			cpRows[i] = checkpointRow{
				FileID:         row.ID,
				CheckpointIdx:  c.CheckpointIdx,
				UCOffset:       c.UCOffset,
				UCSize:         c.UCSize,
				COffset:        c.COffset,
				CSize:          c.CSize,
				Bits:           int64(c.Bits),
				DictCompressed: c.DictCompressed,
				NumLines:       c.NumLines,
			}
		}
		if len(cpRows) > 0 {
			if err := tx.CreateInBatches(cpRows, 100).Error; err != nil {
				return fmt.Errorf("insert checkpoints: %w", err)
			}
		}

		memberRows := make([]tarMemberRow, len(members))
		for i, m := range members {
			memberRows[i] = tarMemberRow{
				FileID:        row.ID,
				Name:          m.Name,
				UCStartOffset: m.UCStartOffset,
				UCLength:      m.UCLength,
			}
		}
		if len(memberRows) > 0 {
			if err := tx.CreateInBatches(memberRows, 100).Error; err != nil {
				return fmt.Errorf("insert tar members: %w", err)
			}
		}

		return nil
	})
}

// IsFresh reports whether stored still describes current: identical
// size, mtime, and content fingerprint. A mismatch in any field means
// the index must be silently rebuilt (spec §7, StaleIndex).
func IsFresh(stored, current common.ArchiveHandle) bool {
	return stored.ByteSize == current.ByteSize &&
		stored.ModTimeUnix == current.ModTimeUnix &&
		stored.SHA256Hex == current.SHA256Hex
}
